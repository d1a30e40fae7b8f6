package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"meditranslate/internal/logger"
)

// DefaultDocumentAITimeout bounds a single processor call.
const DefaultDocumentAITimeout = 60 * time.Second

// DocumentAIConfig holds the processor coordinates for the Document AI
// engine.
type DocumentAIConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
	Timeout          time.Duration
}

// DocumentAIEngine implements Engine using a Google Document AI OCR
// processor. Compared to plain Vision it handles scanned forms better,
// at the cost of requiring a deployed processor.
type DocumentAIEngine struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIEngine creates an engine with credentials from environment.
// Expects: GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS
func NewDocumentAIEngine(ctx context.Context, config DocumentAIConfig) (*DocumentAIEngine, error) {
	const op = "NewDocumentAIEngine"

	if config.ProjectID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "GOOGLE_CLOUD_PROJECT is required")
	}
	if config.ProcessorID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "DOCUMENT_AI_PROCESSOR_ID is required")
	}
	if config.Location == "" {
		config.Location = "us" // Default location
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultDocumentAITimeout
	}

	// Create Document AI client with regional endpoint
	var clientOptions []option.ClientOption

	// Set regional endpoint if not us-central1
	if config.Location != "" && config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}

	// Add credentials
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
	}

	// Create client with options
	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if len(clientOptions) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return &DocumentAIEngine{
		client: client,
		config: config,
		log:    logger.WithComponent("ocr-documentai"),
	}, nil
}

// NewDocumentAIEngineWithClient creates an engine with an explicit client (for testing).
func NewDocumentAIEngineWithClient(config DocumentAIConfig, client *documentai.DocumentProcessorClient) *DocumentAIEngine {
	if config.Timeout <= 0 {
		config.Timeout = DefaultDocumentAITimeout
	}
	return &DocumentAIEngine{
		client: client,
		config: config,
		log:    logger.WithComponent("ocr-documentai"),
	}
}

// Name identifies the backend.
func (p *DocumentAIEngine) Name() string { return "documentai" }

// Recognize extracts text from a raster image or PDF through the
// configured processor.
func (p *DocumentAIEngine) Recognize(ctx context.Context, input Input) (*Result, error) {
	const op = "DocumentAIEngine.Recognize"
	startTime := time.Now()

	mimeType := input.MimeType
	if mimeType == "" {
		mimeType = DetectMimeType(input.Data)
	}

	pageCount := 1
	if mimeType == MimePDF {
		pages, err := validatePDF(op, input.Data)
		if err != nil {
			return nil, err
		}
		pageCount = pages
	} else {
		if err := validateRaster(op, input.Data); err != nil {
			return nil, err
		}
	}

	// Create context with timeout
	processCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	// Prepare the request
	req := &documentaipb.ProcessRequest{
		Name: p.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  input.Data,
				MimeType: mimeType,
			},
		},
	}

	// Process document
	resp, err := p.client.ProcessDocument(processCtx, req)
	if err != nil {
		return nil, p.handleProcessingError(op, err)
	}

	if resp.Document == nil {
		return nil, WrapOCRError(op, ErrOCRFailed, "no document in response")
	}

	text := strings.TrimSpace(resp.Document.Text)
	if text == "" {
		return nil, WrapOCRError(op, ErrNoText, "")
	}

	if pages := len(resp.Document.Pages); pages > 0 {
		pageCount = pages
	}

	p.log.Debug().
		Int("chars", len(text)).
		Int("pages", pageCount).
		Str("mime_type", mimeType).
		Msg("Document AI recognition completed")

	processedAt := time.Now()
	return &Result{
		Text:               text,
		PageCount:          pageCount,
		Confidence:         documentConfidence(resp.Document),
		Engine:             p.Name(),
		LanguageCodes:      documentLanguages(resp.Document),
		ProcessedAt:        processedAt,
		ProcessingDuration: processedAt.Sub(startTime),
	}, nil
}

// processorName constructs the full processor name for the Document AI API.
func (p *DocumentAIEngine) processorName() string {
	if p.config.ProcessorVersion != "" {
		return fmt.Sprintf("projects/%s/locations/%s/processors/%s/processorVersions/%s",
			p.config.ProjectID, p.config.Location, p.config.ProcessorID, p.config.ProcessorVersion)
	}
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		p.config.ProjectID, p.config.Location, p.config.ProcessorID)
}

// handleProcessingError converts Document AI errors to the package's
// sentinel errors.
func (p *DocumentAIEngine) handleProcessingError(op string, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return WrapOCRError(op, ErrInvalidCredentials, "insufficient permissions for Document AI")
	case strings.Contains(errStr, "QUOTA_EXCEEDED") || strings.Contains(errStr, "RESOURCE_EXHAUSTED"):
		return WrapOCRError(op, ErrQuotaExceeded, "Document AI API quota exceeded")
	case strings.Contains(errStr, "NOT_FOUND"):
		return WrapOCRError(op, ErrProcessorNotFound, fmt.Sprintf("processor not found: %s", p.config.ProcessorID))
	case strings.Contains(errStr, "INVALID_ARGUMENT"):
		return WrapOCRError(op, ErrInvalidPDF, "document format not supported or corrupted")
	case strings.Contains(errStr, "DeadlineExceeded") || strings.Contains(errStr, "context deadline exceeded"):
		return WrapOCRError(op, context.DeadlineExceeded, "processing timeout")
	case strings.Contains(errStr, "Canceled") || strings.Contains(errStr, "context canceled"):
		return WrapOCRError(op, ErrContextCanceled, "processing was canceled")
	default:
		return WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Document AI error: %v", err))
	}
}

// documentConfidence averages page layout confidences when present.
func documentConfidence(doc *documentaipb.Document) float32 {
	var sum float32
	var count int
	for _, page := range doc.Pages {
		if page.Layout != nil && page.Layout.Confidence > 0 {
			sum += page.Layout.Confidence
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float32(count)
}

// documentLanguages collects detected language codes across pages.
func documentLanguages(doc *documentaipb.Document) []string {
	languageSet := make(map[string]bool)
	for _, page := range doc.Pages {
		for _, lang := range page.DetectedLanguages {
			if lang.LanguageCode != "" {
				languageSet[lang.LanguageCode] = true
			}
		}
	}
	return languageSlice(languageSet)
}

// Close closes the underlying Document AI client.
func (p *DocumentAIEngine) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
