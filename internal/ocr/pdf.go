package ocr

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const (
	// MaxFileSizeBytes is the maximum file size for synchronous processing (20MB)
	MaxFileSizeBytes = 20 * 1024 * 1024

	// MaxPagesSync is the maximum number of pages for synchronous processing
	MaxPagesSync = 5
)

// validatePDF checks size, header, structural validity and the
// synchronous page limit before a PDF is sent to a cloud engine.
// It returns the page count.
func validatePDF(op string, data []byte) (int, error) {
	if len(data) > MaxFileSizeBytes {
		return 0, WrapOCRError(op, ErrDocumentTooLarge, fmt.Sprintf("file size: %d bytes", len(data)))
	}

	if len(data) < 4 || string(data[:4]) != "%PDF" {
		return 0, WrapOCRError(op, ErrInvalidPDF, "missing PDF header")
	}

	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed

	if err := api.Validate(bytes.NewReader(data), cfg); err != nil {
		return 0, WrapOCRError(op, ErrInvalidPDF, fmt.Sprintf("validation failed: %v", err))
	}

	pages, err := api.PageCount(bytes.NewReader(data), cfg)
	if err != nil {
		return 0, WrapOCRError(op, ErrInvalidPDF, fmt.Sprintf("failed to count pages: %v", err))
	}

	if pages > MaxPagesSync {
		return 0, WrapOCRError(op, ErrTooManyPages, fmt.Sprintf("document has %d pages", pages))
	}

	return pages, nil
}

// validateRaster applies the shared size limit to raster inputs.
func validateRaster(op string, data []byte) error {
	if len(data) == 0 {
		return WrapOCRError(op, ErrUnsupportedInput, "empty input")
	}
	if len(data) > MaxFileSizeBytes {
		return WrapOCRError(op, ErrDocumentTooLarge, fmt.Sprintf("file size: %d bytes", len(data)))
	}
	return nil
}
