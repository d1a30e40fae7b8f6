package imaging

import (
	"errors"
	"fmt"
)

var (
	// ErrUndecodableImage is returned when input bytes cannot be decoded
	// into an image.
	ErrUndecodableImage = errors.New("input is not a decodable image")

	// ErrEncodeFailed is returned when the processed image cannot be
	// encoded back to bytes.
	ErrEncodeFailed = errors.New("failed to encode processed image")
)

// ImagingError wraps errors with context about the imaging failure.
type ImagingError struct {
	Op      string
	Err     error
	Details string
}

func (e *ImagingError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("imaging: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("imaging: %s failed: %v", e.Op, e.Err)
}

func (e *ImagingError) Unwrap() error {
	return e.Err
}

func (e *ImagingError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewImagingError creates a new ImagingError.
func NewImagingError(op string, err error, details string) *ImagingError {
	return &ImagingError{Op: op, Err: err, Details: details}
}

// WrapImagingError wraps an error as an ImagingError if it isn't already one.
func WrapImagingError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var imgErr *ImagingError
	if errors.As(err, &imgErr) {
		return err
	}

	return NewImagingError(op, err, details)
}
