// Package asr adapts the external FunASR recognition worker. The worker loads
// the acoustic, VAD, and punctuation models once and then answers one
// transcription request per line; this package owns its lifecycle.
package asr

import (
	"context"
	"fmt"
)

// Result is the output of transcribing one audio chunk. Empty Text means the
// engine found no speech, which is a valid outcome.
type Result struct {
	Text string
}

// Engine converts one mono 16 kHz audio file into punctuated text per call.
type Engine interface {
	Transcribe(ctx context.Context, audioPath string) (Result, error)
	Close() error
}

// NotReadyError means the engine cannot be constructed, typically because a
// required model directory is missing from local storage.
type NotReadyError struct {
	Path string
	Err  error
}

func (e *NotReadyError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("recognition engine not ready: missing model directory %s", e.Path)
	}
	return fmt.Sprintf("recognition engine not ready: %v", e.Err)
}

func (e *NotReadyError) Unwrap() error { return e.Err }

// InvocationError means a transcription call failed inside the engine. It is
// scoped to the request that triggered it.
type InvocationError struct {
	Err error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("recognition engine invocation failed: %v", e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }
