// Package media converts arbitrary input media into the normalized, chunked
// audio the recognition engine consumes.
package media

import (
	"context"
	"fmt"
	"time"
)

// Input references a caller-owned source media file.
type Input struct {
	Path        string
	DisplayName string
}

// Audio is a mono, fixed-rate, 16-bit PCM artifact inside a run workspace.
type Audio struct {
	Path       string
	SampleRate int
	Duration   time.Duration
}

// Segment is one bounded-duration slice of normalized audio. Index is the
// chunk ordinal parsed from the filename; playback order equals Index order.
type Segment struct {
	Path  string
	Index int
}

// Transcoder turns media into normalized audio and normalized audio into
// ordered chunks. Implementations are swappable; the pipeline only sees this.
type Transcoder interface {
	Normalize(ctx context.Context, input Input, workspace string) (Audio, error)
	Segment(ctx context.Context, audio Audio, workspace string, chunkSeconds int) ([]Segment, error)
}

// ConversionError reports a failed normalization. Stderr carries the decoder
// diagnostic (unsupported codec, corrupt file, ...).
type ConversionError struct {
	Stderr string
	Err    error
}

func (e *ConversionError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("audio conversion failed: %s", e.Stderr)
	}
	return fmt.Sprintf("audio conversion failed: %v", e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// SegmentationError reports that chunking produced no segments, which points
// at a structural problem with the input rather than silence.
type SegmentationError struct {
	Stderr string
	Err    error
}

func (e *SegmentationError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("audio segmentation failed: %s", e.Stderr)
	}
	if e.Err != nil {
		return fmt.Sprintf("audio segmentation failed: %v", e.Err)
	}
	return "audio segmentation produced no segments"
}

func (e *SegmentationError) Unwrap() error { return e.Err }
