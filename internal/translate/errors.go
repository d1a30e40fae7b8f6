package translate

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedLanguage is returned when no translation model is
	// mapped for the requested language.
	ErrUnsupportedLanguage = errors.New("no translation model for this language")

	// ErrModelMissing is returned when the model files for a supported
	// language are not present on disk. This is fatal for the request:
	// the models must be fetched before translation can work.
	ErrModelMissing = errors.New("translation model files not found")

	// ErrDecoderNotFound is returned when the marian-decoder binary is
	// not installed or not on PATH.
	ErrDecoderNotFound = errors.New("marian-decoder binary not found")

	// ErrTranslationFailed is returned when a loaded model fails to
	// translate.
	ErrTranslationFailed = errors.New("translation failed")
)

// TranslateError wraps errors with context about the translation failure.
type TranslateError struct {
	// Op is the operation that failed (e.g., "Translate", "Load").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *TranslateError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("translate: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("translate: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *TranslateError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *TranslateError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewTranslateError creates a new TranslateError.
func NewTranslateError(op string, err error, details string) *TranslateError {
	return &TranslateError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapTranslateError wraps an error as a TranslateError if it isn't already one.
func WrapTranslateError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var trErr *TranslateError
	if errors.As(err, &trErr) {
		return err
	}

	return NewTranslateError(op, err, details)
}
