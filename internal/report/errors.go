package report

import (
	"errors"
	"fmt"
)

// ErrRenderFailed wraps failures producing report output.
var ErrRenderFailed = errors.New("report rendering failed")

// ReportError wraps a rendering failure with its operation.
type ReportError struct {
	Op      string
	Err     error
	Details string
}

func (e *ReportError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("report: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("report: %s failed: %v", e.Op, e.Err)
}

func (e *ReportError) Unwrap() error {
	return e.Err
}

func (e *ReportError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewReportError creates a new ReportError.
func NewReportError(op string, err error, details string) *ReportError {
	return &ReportError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}
