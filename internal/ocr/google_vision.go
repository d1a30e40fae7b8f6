package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// VisionEngine implements Engine using Google Cloud Vision document
// text detection. It reads both raster images and PDFs up to the
// synchronous limits.
type VisionEngine struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionEngine creates a new OCR engine with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
func NewVisionEngine(ctx context.Context) (*VisionEngine, error) {
	const op = "NewVisionEngine"

	var client *vision.ImageAnnotatorClient
	var err error

	// Check for inline credentials first
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		// Use credentials file
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		// Try default credentials as fallback
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return &VisionEngine{
		client: client,
	}, nil
}

// NewVisionEngineWithClient creates a new OCR engine with an explicit client (for testing).
func NewVisionEngineWithClient(client *vision.ImageAnnotatorClient) *VisionEngine {
	return &VisionEngine{
		client: client,
	}
}

// Name identifies the backend.
func (g *VisionEngine) Name() string { return "google-vision" }

// Recognize extracts text from a raster image or a PDF document.
func (g *VisionEngine) Recognize(ctx context.Context, input Input) (*Result, error) {
	const op = "VisionEngine.Recognize"
	startTime := time.Now()

	mimeType := input.MimeType
	if mimeType == "" {
		mimeType = DetectMimeType(input.Data)
	}

	var (
		result *Result
		err    error
	)
	if mimeType == MimePDF {
		result, err = g.recognizePDF(ctx, input)
	} else {
		result, err = g.recognizeImage(ctx, input)
	}
	if err != nil {
		return nil, WrapOCRError(op, err, "")
	}

	result.Engine = g.Name()
	result.ProcessedAt = time.Now()
	result.ProcessingDuration = result.ProcessedAt.Sub(startTime)
	return result, nil
}

// recognizeImage runs document text detection on a single raster image.
func (g *VisionEngine) recognizeImage(ctx context.Context, input Input) (*Result, error) {
	const op = "recognizeImage"

	if err := validateRaster(op, input.Data); err != nil {
		return nil, err
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: input.Data},
				Features: []*visionpb.Feature{
					{
						Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION,
					},
				},
				ImageContext: imageContext(input.Language),
			},
		},
	}

	resp, err := g.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	annotation := resp.Responses[0]
	if annotation.Error != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", annotation.Error.Message))
	}
	if annotation.FullTextAnnotation == nil || strings.TrimSpace(annotation.FullTextAnnotation.Text) == "" {
		return nil, WrapOCRError(op, ErrNoText, "")
	}

	var confidenceSum float32
	var confidenceCount int
	languageSet := make(map[string]bool)
	for _, page := range annotation.FullTextAnnotation.Pages {
		if page.Confidence > 0 {
			confidenceSum += page.Confidence
			confidenceCount++
		}
		collectPageLanguages(page, languageSet)
	}

	var avgConfidence float32
	if confidenceCount > 0 {
		avgConfidence = confidenceSum / float32(confidenceCount)
	}

	return &Result{
		Text:          strings.TrimSpace(annotation.FullTextAnnotation.Text),
		PageCount:     1,
		Confidence:    avgConfidence,
		LanguageCodes: languageSlice(languageSet),
	}, nil
}

// recognizePDF extracts text from a PDF document within the
// synchronous size and page limits.
func (g *VisionEngine) recognizePDF(ctx context.Context, input Input) (*Result, error) {
	const op = "recognizePDF"

	if _, err := validatePDF(op, input.Data); err != nil {
		return nil, err
	}

	// Prepare the request
	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					GcsSource: nil, // We're using inline content
					Content:   input.Data,
					MimeType:  MimePDF,
				},
				Features: []*visionpb.Feature{
					{
						Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION,
					},
				},
				Pages: nil, // Process all pages
			},
		},
	}

	// Call the Vision API
	resp, err := g.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}

	// Check for API errors
	if len(resp.Responses) == 0 {
		return nil, WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	fileResp := resp.Responses[0]
	if fileResp.Error != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", fileResp.Error.Message))
	}

	result, err := g.processFileResponse(fileResp)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to process Vision API response")
	}

	return result, nil
}

// processFileResponse aggregates the per-page Vision responses of a PDF
// into a single result.
func (g *VisionEngine) processFileResponse(fileResp *visionpb.AnnotateFileResponse) (*Result, error) {
	if len(fileResp.Responses) == 0 {
		return nil, ErrNoText
	}

	var allText strings.Builder
	var confidenceSum float32
	var confidenceCount int
	languageSet := make(map[string]bool)
	pageCount := len(fileResp.Responses)

	// Check page limit
	if pageCount > MaxPagesSync {
		return nil, WrapOCRError("processFileResponse", ErrTooManyPages, fmt.Sprintf("document has %d pages", pageCount))
	}

	for pageIdx, page := range fileResp.Responses {
		if page.Error != nil {
			return nil, fmt.Errorf("error processing page %d: %s", pageIdx+1, page.Error.Message)
		}

		if page.FullTextAnnotation == nil {
			continue
		}

		// Add page separator (except for first page)
		if pageIdx > 0 {
			allText.WriteString("\n\n--- Page ")
			allText.WriteString(fmt.Sprintf("%d", pageIdx+1))
			allText.WriteString(" ---\n\n")
		}

		// Add text content
		allText.WriteString(page.FullTextAnnotation.Text)

		// Collect confidence scores from text annotations
		for _, textAnnotation := range page.TextAnnotations {
			if textAnnotation.Confidence > 0 {
				confidenceSum += textAnnotation.Confidence
				confidenceCount++
			}
		}

		// Collect language information
		for _, pageInfo := range page.FullTextAnnotation.Pages {
			collectPageLanguages(pageInfo, languageSet)
		}
	}

	// Calculate average confidence
	var avgConfidence float32
	if confidenceCount > 0 {
		avgConfidence = confidenceSum / float32(confidenceCount)
	}

	// Check if we extracted any text
	extractedText := strings.TrimSpace(allText.String())
	if extractedText == "" {
		return nil, ErrNoText
	}

	return &Result{
		Text:          extractedText,
		PageCount:     pageCount,
		Confidence:    avgConfidence,
		LanguageCodes: languageSlice(languageSet),
	}, nil
}

// collectPageLanguages walks a page's symbol properties and records
// every detected language code.
func collectPageLanguages(page *visionpb.Page, languageSet map[string]bool) {
	for _, block := range page.Blocks {
		for _, paragraph := range block.Paragraphs {
			for _, word := range paragraph.Words {
				for _, symbol := range word.Symbols {
					if symbol.Property == nil || symbol.Property.DetectedLanguages == nil {
						continue
					}
					for _, lang := range symbol.Property.DetectedLanguages {
						if lang.LanguageCode != "" {
							languageSet[lang.LanguageCode] = true
						}
					}
				}
			}
		}
	}
}

func languageSlice(languageSet map[string]bool) []string {
	var languages []string
	for lang := range languageSet {
		languages = append(languages, lang)
	}
	return languages
}

// imageContext builds the optional language hint for a Vision request.
func imageContext(language string) *visionpb.ImageContext {
	hint := languageHint(language)
	if hint == "" {
		return nil
	}
	return &visionpb.ImageContext{
		LanguageHints: []string{hint},
	}
}

// Close closes the underlying Vision client.
func (g *VisionEngine) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
