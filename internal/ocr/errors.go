package ocr

import (
	"errors"
	"fmt"
)

// Common OCR processing errors
var (
	// ErrDocumentTooLarge is returned when the document exceeds the maximum
	// file size limit. The cloud APIs have a 20MB limit for synchronous
	// processing.
	ErrDocumentTooLarge = errors.New("document size exceeds the maximum limit (20MB)")

	// ErrInvalidPDF is returned when the provided data is not a valid PDF
	// document.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrTooManyPages is returned when a PDF has too many pages for
	// synchronous processing (maximum 5 pages).
	ErrTooManyPages = errors.New("PDF has too many pages (maximum 5 pages for synchronous processing)")

	// ErrUnsupportedInput is returned when the selected engine cannot read
	// the given input type, e.g. a PDF handed to the tesseract engine.
	ErrUnsupportedInput = errors.New("engine does not support this input type")

	// ErrNoText is returned when the document contains no readable text.
	ErrNoText = errors.New("document contains no readable text")

	// ErrOCRFailed is returned when the OCR backend fails to process the
	// document.
	ErrOCRFailed = errors.New("OCR processing failed")

	// ErrMissingCredentials is returned when neither GOOGLE_APPLICATION_CREDENTIALS
	// nor GOOGLE_CREDENTIALS environment variables are configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrInvalidCredentials is returned when the configured credentials are
	// rejected by the cloud API.
	ErrInvalidCredentials = errors.New("invalid or insufficient Google Cloud credentials")

	// ErrQuotaExceeded is returned when the cloud API quota is exhausted.
	ErrQuotaExceeded = errors.New("cloud API quota exceeded")

	// ErrProcessorNotFound is returned when the configured Document AI
	// processor does not exist.
	ErrProcessorNotFound = errors.New("Document AI processor not found")

	// ErrInvalidConfiguration is returned when required engine settings are
	// missing or malformed.
	ErrInvalidConfiguration = errors.New("invalid OCR engine configuration")

	// ErrUnknownEngine is returned when OCR_ENGINE names an engine this
	// build does not provide.
	ErrUnknownEngine = errors.New("unknown OCR engine")

	// ErrContextCanceled is returned when the context is canceled during
	// processing.
	ErrContextCanceled = errors.New("OCR processing was canceled")
)

// OCRError wraps errors with additional context about the OCR processing failure.
type OCRError struct {
	// Op is the operation that failed (e.g., "Recognize", "NewVisionEngine").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *OCRError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewOCRError creates a new OCRError with the specified operation and underlying error.
func NewOCRError(op string, err error, details string) *OCRError {
	return &OCRError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapOCRError wraps an error as an OCRError if it isn't already one.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err // Already wrapped
	}

	return NewOCRError(op, err, details)
}
