// Package ocr extracts text from medical document photos and PDFs.
//
// Three interchangeable engines are provided:
//   - tesseract: offline recognition via the Tesseract C library,
//     raster images only
//   - vision: Google Cloud Vision document text detection, rasters and
//     PDFs up to 5 pages
//   - documentai: Google Document AI, for deployments that already run
//     a processor
//
// Required Environment Variables (cloud engines only):
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//   - GOOGLE_CLOUD_PROJECT: Google Cloud project ID
//
// Cloud API Limitations:
//   - Maximum file size: 20MB for synchronous processing
//   - Maximum pages: 5 pages for synchronous PDF processing
//   - Supported formats: PNG, JPEG, TIFF, PDF
package ocr

import (
	"context"
	"net/http"
	"time"
)

// Engine is the interface implemented by all OCR backends.
type Engine interface {
	// Recognize extracts text from a single document. The input may be
	// a raster image or, for engines that support it, a PDF.
	Recognize(ctx context.Context, input Input) (*Result, error)

	// Name identifies the backend, e.g. "tesseract" or "google-vision".
	Name() string

	// Close releases resources held by the engine.
	Close() error
}

// Input describes one document to recognize.
type Input struct {
	// Data is the raw file content (PNG, JPEG, TIFF or PDF bytes).
	Data []byte

	// MimeType is the content type of Data. Detected from the bytes
	// when empty.
	MimeType string

	// Language is an ISO 639-2 recognition hint such as "eng".
	Language string
}

// Result contains the recognized text with metadata.
type Result struct {
	// Text is the extracted text content from all pages, concatenated
	// in reading order.
	Text string `json:"text"`

	// PageCount is the number of pages that were processed.
	PageCount int `json:"page_count"`

	// Confidence is the average confidence score across all detected
	// text (0.0 to 1.0). Higher values indicate more reliable detection.
	Confidence float32 `json:"confidence"`

	// Engine names the backend that produced this result.
	Engine string `json:"engine"`

	// LanguageCodes contains the detected languages in the document.
	LanguageCodes []string `json:"language_codes,omitempty"`

	// ProcessedAt is the timestamp when recognition completed.
	ProcessedAt time.Time `json:"processed_at"`

	// ProcessingDuration is how long recognition took.
	ProcessingDuration time.Duration `json:"processing_duration"`
}

// MIME types the engines care about.
const (
	MimePDF  = "application/pdf"
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeTIFF = "image/tiff"
)

// DetectMimeType sniffs the content type of raw document bytes. It
// extends http.DetectContentType with TIFF, which the stdlib sniffer
// does not know.
func DetectMimeType(data []byte) string {
	if len(data) >= 4 {
		// TIFF magic: little endian "II*\0" or big endian "MM\0*".
		if (data[0] == 'I' && data[1] == 'I' && data[2] == 0x2A && data[3] == 0) ||
			(data[0] == 'M' && data[1] == 'M' && data[2] == 0 && data[3] == 0x2A) {
			return MimeTIFF
		}
	}
	return http.DetectContentType(data)
}

// languageHint converts an ISO 639-2 recognition language to the
// BCP-47 hint the Google APIs expect.
func languageHint(language string) string {
	switch language {
	case "":
		return ""
	case "eng":
		return "en"
	case "spa":
		return "es"
	case "hin":
		return "hi"
	default:
		if len(language) > 2 {
			return language[:2]
		}
		return language
	}
}
