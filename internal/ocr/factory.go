package ocr

import (
	"context"

	"meditranslate/internal/config"
)

// NewEngine builds the OCR engine selected by OCR_ENGINE. The cloud
// engines dial their APIs here, so credential problems surface at
// construction rather than mid-scan.
func NewEngine(ctx context.Context, cfg *config.Config) (Engine, error) {
	const op = "NewEngine"

	switch cfg.OCREngine {
	case config.OCREngineTesseract:
		return NewTesseractEngine(), nil
	case config.OCREngineVision:
		return NewVisionEngine(ctx)
	case config.OCREngineDocumentAI:
		return NewDocumentAIEngine(ctx, DocumentAIConfig{
			ProjectID:        cfg.GoogleCloudProject,
			Location:         cfg.GoogleCloudLocation,
			ProcessorID:      cfg.DocumentAIProcessorID,
			ProcessorVersion: cfg.DocumentAIProcessorVersion,
			Timeout:          DefaultDocumentAITimeout,
		})
	default:
		return nil, NewOCRError(op, ErrUnknownEngine, cfg.OCREngine)
	}
}
