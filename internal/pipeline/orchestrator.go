// Package pipeline sequences a document scan end to end: normalize the
// image, recognize text, classify and extract insights, translate, and
// compose the result. A second, independent flow produces explanations
// for terms the user picks from a completed scan.
//
// Each submission runs on its own short-lived worker goroutine and
// reports back through a buffered completion channel. At most one scan
// and one explanation are in flight at a time; overlapping submissions
// are rejected with ErrScanInFlight / ErrExplainInFlight rather than
// queued.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"meditranslate/internal/analysis"
	"meditranslate/internal/explain"
	"meditranslate/internal/logger"
	"meditranslate/internal/ocr"
	"meditranslate/internal/translate"
	"meditranslate/pkg/models"
)

// fallbackDefinition is used when a term appears in neither the last
// scan's insights nor the lexicon.
const fallbackDefinition = "Medical term found in document."

// Normalizer prepares raw image bytes for recognition.
type Normalizer interface {
	NormalizeBytes(data []byte, highContrast bool) ([]byte, float64, error)
}

// Explainer produces a patient-friendly explanation for one request.
type Explainer interface {
	Explain(ctx context.Context, req models.ExplanationRequest) explain.Result
}

// Outcome is the completion message of one scan run.
type Outcome struct {
	Result *models.ScanResult
	Err    error
}

// Run identifies a submitted scan. Done delivers exactly one Outcome.
type Run struct {
	ID   string
	Done <-chan Outcome
}

// ExplainOutcome is the completion message of one explanation run. The
// explanation gateway never fails with an error value, so there is no
// Err field; failures arrive as a Result in a failed state.
type ExplainOutcome struct {
	Result explain.Result
}

// ExplainRun identifies a submitted explanation request.
type ExplainRun struct {
	ID   string
	Done <-chan ExplainOutcome
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Normalizer  Normalizer
	Engine      ocr.Engine
	Analyzer    *analysis.Analyzer
	Translator  translate.Gateway
	Explainer   Explainer
	OCRLanguage string
}

// Orchestrator owns the scan and explanation flows and the cache that
// connects them.
type Orchestrator struct {
	normalizer  Normalizer
	engine      ocr.Engine
	analyzer    *analysis.Analyzer
	translator  translate.Gateway
	explainer   Explainer
	ocrLanguage string

	mu           sync.Mutex
	scanBusy     bool
	explainBusy  bool
	lastText     string
	lastInsights []models.Insight

	log zerolog.Logger
}

// NewOrchestrator builds an orchestrator from its collaborators.
func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{
		normalizer:  deps.Normalizer,
		engine:      deps.Engine,
		analyzer:    deps.Analyzer,
		translator:  deps.Translator,
		explainer:   deps.Explainer,
		ocrLanguage: deps.OCRLanguage,
		log:         logger.WithComponent("pipeline"),
	}
}

// Submit starts one scan worker for the request. It returns immediately;
// the worker reports through Run.Done. A second Submit while one scan is
// outstanding fails with ErrScanInFlight.
func (o *Orchestrator) Submit(ctx context.Context, req models.ScanRequest) (*Run, error) {
	const op = "Submit"

	o.mu.Lock()
	if o.scanBusy {
		o.mu.Unlock()
		return nil, NewPipelineError(op, ErrScanInFlight, req.ImagePath)
	}
	o.scanBusy = true
	o.mu.Unlock()

	runID := uuid.New().String()
	done := make(chan Outcome, 1)
	runLog := logger.WithRunID(runID)

	o.log.Info().
		Str("run_id", runID).
		Str("path", req.ImagePath).
		Str("language", req.TargetLanguage).
		Bool("high_contrast", req.HighContrast).
		Msg("Scan submitted")

	go func() {
		outcome := o.runScan(ctx, runLog, runID, req)

		// Cache and busy flag settle before the outcome is delivered, so
		// a caller that receives it can submit again right away.
		o.mu.Lock()
		if outcome.Err == nil && outcome.Result != nil {
			o.lastText = outcome.Result.RawText
			o.lastInsights = outcome.Result.Insights
		}
		o.scanBusy = false
		o.mu.Unlock()

		done <- outcome
	}()

	return &Run{ID: runID, Done: done}, nil
}

// runScan executes the scan and converts any panic into a failed
// outcome; nothing escapes the worker.
func (o *Orchestrator) runScan(ctx context.Context, log zerolog.Logger, runID string, req models.ScanRequest) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Scan worker panicked")
			outcome = Outcome{Err: NewPipelineError("scan", fmt.Errorf("worker panic: %v", r), runID)}
		}
	}()

	result, err := o.scan(ctx, log, runID, req)
	if err != nil {
		log.Error().Err(err).Msg("Scan failed")
		return Outcome{Err: err}
	}
	log.Info().
		Str("document_type", result.DocumentType.String()).
		Int("insights", len(result.Insights)).
		Dur("duration", result.Duration).
		Msg("Scan completed")
	return Outcome{Result: result}
}

// scan is the worker body: read, normalize, recognize, analyze,
// translate, compose. Recognition runs exactly once per submission; all
// later stages reuse its text.
func (o *Orchestrator) scan(ctx context.Context, log zerolog.Logger, runID string, req models.ScanRequest) (*models.ScanResult, error) {
	started := time.Now()

	data, err := os.ReadFile(req.ImagePath)
	if err != nil {
		return nil, NewPipelineError("read", err, req.ImagePath)
	}

	// PDFs go to the engine untouched; normalization applies to raster
	// images only.
	mimeType := ocr.DetectMimeType(data)
	var skew float64
	if mimeType != ocr.MimePDF {
		normalized, angle, err := o.normalizer.NormalizeBytes(data, req.HighContrast)
		if err != nil {
			return nil, WrapPipelineError("normalize", err, req.ImagePath)
		}
		data = normalized
		skew = angle
		mimeType = ocr.MimePNG
		log.Debug().Float64("skew_degrees", angle).Msg("Image normalized")
	}

	recognized, err := o.engine.Recognize(ctx, ocr.Input{
		Data:     data,
		MimeType: mimeType,
		Language: o.ocrLanguage,
	})
	if err != nil {
		return nil, WrapPipelineError("recognize", err, runID)
	}
	log.Debug().
		Str("engine", recognized.Engine).
		Int("pages", recognized.PageCount).
		Float32("confidence", recognized.Confidence).
		Msg("Text recognized")

	docType := o.analyzer.Classify(recognized.Text)
	insights := o.analyzer.ExtractInsights(recognized.Text)
	log.Info().
		Str("document_type", docType.String()).
		Int("insights", len(insights)).
		Msg("Document analyzed")

	for i := range insights {
		title, err := o.translator.Translate(ctx, insights[i].Title, req.TargetLanguage)
		if err != nil {
			return nil, WrapPipelineError("translate", err, insights[i].Title)
		}
		description, err := o.translator.Translate(ctx, insights[i].Description, req.TargetLanguage)
		if err != nil {
			return nil, WrapPipelineError("translate", err, insights[i].Title)
		}
		insights[i].TranslatedTitle = title
		insights[i].TranslatedDescription = description
	}

	translatedDocument, err := o.translator.Translate(ctx, recognized.Text, req.TargetLanguage)
	if err != nil {
		return nil, WrapPipelineError("translate", err, runID)
	}

	return &models.ScanResult{
		RunID:              runID,
		RawText:            recognized.Text,
		TranslatedDocument: translatedDocument,
		DocumentType:       docType,
		Insights:           insights,
		TargetLanguage:     req.TargetLanguage,
		SkewAngle:          skew,
		OCRConfidence:      recognized.Confidence,
		ProcessedAt:        time.Now(),
		Duration:           time.Since(started),
	}, nil
}

// SubmitExplanation starts one explanation worker for a term against the
// last completed scan. Fails with ErrNoDocument before any scan has
// succeeded and with ErrExplainInFlight while another explanation is
// outstanding.
func (o *Orchestrator) SubmitExplanation(ctx context.Context, term, language string) (*ExplainRun, error) {
	const op = "SubmitExplanation"

	o.mu.Lock()
	if o.explainBusy {
		o.mu.Unlock()
		return nil, NewPipelineError(op, ErrExplainInFlight, term)
	}
	if o.lastText == "" {
		o.mu.Unlock()
		return nil, NewPipelineError(op, ErrNoDocument, term)
	}
	o.explainBusy = true
	contextText := o.lastText
	o.mu.Unlock()

	runID := uuid.New().String()
	done := make(chan ExplainOutcome, 1)
	runLog := logger.WithRunID(runID)

	req := models.ExplanationRequest{
		Term:            term,
		LocalDefinition: o.LookupDefinition(term),
		DocumentContext: contextText,
		TargetLanguage:  language,
	}

	o.log.Info().
		Str("run_id", runID).
		Str("term", term).
		Str("language", language).
		Msg("Explanation submitted")

	go func() {
		result := o.explainer.Explain(ctx, req)

		o.mu.Lock()
		o.explainBusy = false
		o.mu.Unlock()

		runLog.Info().
			Str("state", result.State.String()).
			Int("attempts", result.Attempts).
			Msg("Explanation completed")
		done <- ExplainOutcome{Result: result}
	}()

	return &ExplainRun{ID: runID, Done: done}, nil
}

// ContextText returns the recognized text of the last completed scan,
// empty before the first success.
func (o *Orchestrator) ContextText() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastText
}

// LookupDefinition resolves a term's local definition: the matching
// insight from the last scan, then the lexicon, then a generic
// placeholder.
func (o *Orchestrator) LookupDefinition(term string) string {
	o.mu.Lock()
	insights := o.lastInsights
	o.mu.Unlock()

	for _, insight := range insights {
		if strings.EqualFold(insight.Title, term) {
			return insight.Description
		}
	}
	if definition, ok := o.analyzer.Lexicon().Definition(term); ok {
		return definition
	}
	return fallbackDefinition
}

// Close releases the collaborators that hold external resources.
func (o *Orchestrator) Close() error {
	var firstErr error
	if err := o.engine.Close(); err != nil {
		firstErr = err
	}
	if err := o.translator.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if closer, ok := o.explainer.(io.Closer); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
