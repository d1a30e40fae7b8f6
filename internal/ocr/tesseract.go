package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"

	"meditranslate/internal/logger"
)

// TesseractEngine implements Engine using the local Tesseract library.
// It works fully offline, which keeps document photos on the machine.
type TesseractEngine struct {
	clientFactory func() *gosseract.Client
	log           zerolog.Logger
}

// NewTesseractEngine creates an offline OCR engine.
func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{
		clientFactory: gosseract.NewClient,
		log:           logger.WithComponent("ocr-tesseract"),
	}
}

// Name identifies the backend.
func (e *TesseractEngine) Name() string { return "tesseract" }

// Close releases engine resources. Tesseract clients are per-call, so
// there is nothing to release here.
func (e *TesseractEngine) Close() error { return nil }

// Recognize extracts text from a raster image. PDFs are rejected with
// ErrUnsupportedInput; callers should select a cloud engine for those.
func (e *TesseractEngine) Recognize(ctx context.Context, input Input) (*Result, error) {
	const op = "TesseractEngine.Recognize"
	startTime := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, WrapOCRError(op, ErrContextCanceled, err.Error())
	}

	if err := validateRaster(op, input.Data); err != nil {
		return nil, err
	}

	mimeType := input.MimeType
	if mimeType == "" {
		mimeType = DetectMimeType(input.Data)
	}
	if mimeType == MimePDF {
		return nil, WrapOCRError(op, ErrUnsupportedInput, "tesseract cannot read PDFs, use the vision or documentai engine")
	}

	client := e.clientFactory()
	defer client.Close()

	if err := client.SetImageFromBytes(input.Data); err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("failed to set image: %v", err))
	}
	// PSM 3: fully automatic page segmentation, matches plain
	// `tesseract --psm 3` runs.
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("failed to set page segmentation mode: %v", err))
	}
	if input.Language != "" {
		if err := client.SetLanguage(input.Language); err != nil {
			return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("failed to set language %q: %v", input.Language, err))
		}
	}

	text, err := client.Text()
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("recognition failed: %v", err))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, WrapOCRError(op, ErrNoText, "")
	}

	confidence := wordConfidence(client)

	e.log.Debug().
		Int("chars", len(text)).
		Float32("confidence", confidence).
		Str("language", input.Language).
		Msg("Tesseract recognition completed")

	processedAt := time.Now()
	return &Result{
		Text:               text,
		PageCount:          1,
		Confidence:         confidence,
		Engine:             e.Name(),
		ProcessedAt:        processedAt,
		ProcessingDuration: processedAt.Sub(startTime),
	}, nil
}

// wordConfidence averages Tesseract's per-word confidence scores and
// rescales them from 0-100 to 0-1.
func wordConfidence(client *gosseract.Client) float32 {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}

	var sum float64
	for _, box := range boxes {
		sum += box.Confidence
	}
	return float32(sum / float64(len(boxes)) / 100)
}
