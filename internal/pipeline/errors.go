package pipeline

import (
	"errors"
	"fmt"
)

// Stages, used both for error reporting and metrics labels.
const (
	StageNormalize = "normalize"
	StageSegment   = "segment"
	StageEngine    = "engine"
	StageAssemble  = "assemble"
	StagePersist   = "persist"
)

// ErrEmptyTranscript means every segment was processed but none contained
// recognizable speech. A no-speech input is not a system fault.
var ErrEmptyTranscript = errors.New("no speech recognized in the input audio")

// TranscriptionError is the single failure surface the orchestrator exposes:
// whichever stage failed, callers get this, carrying the original diagnostic.
type TranscriptionError struct {
	Stage string
	Err   error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription failed (%s): %v", e.Stage, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

func fail(stage string, err error) error {
	return &TranscriptionError{Stage: stage, Err: err}
}

// Stage returns the failing stage of err, or "" when err is not a
// TranscriptionError.
func Stage(err error) string {
	var te *TranscriptionError
	if errors.As(err, &te) {
		return te.Stage
	}
	return ""
}
