package pipeline

import (
	"errors"
	"fmt"
)

// Submission and cache errors.
var (
	// ErrScanInFlight means a scan worker is still running; submissions
	// are rejected, not queued.
	ErrScanInFlight = errors.New("a document scan is already in progress")

	// ErrExplainInFlight means an explanation worker is still running.
	ErrExplainInFlight = errors.New("an explanation request is already in progress")

	// ErrNoDocument means no scan has completed yet, so there is no
	// document text to explain against.
	ErrNoDocument = errors.New("no scanned document available")
)

// PipelineError wraps a stage failure with the stage that produced it.
type PipelineError struct {
	Op      string
	Err     error
	Details string
}

func (e *PipelineError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("pipeline: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("pipeline: %s failed: %v", e.Op, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func (e *PipelineError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewPipelineError creates a new PipelineError.
func NewPipelineError(op string, err error, details string) *PipelineError {
	return &PipelineError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapPipelineError wraps an error, preserving an existing PipelineError.
func WrapPipelineError(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var pipelineErr *PipelineError
	if errors.As(err, &pipelineErr) {
		return err
	}
	return NewPipelineError(op, err, details)
}
