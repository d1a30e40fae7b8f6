package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"meditranslate/internal/analysis"
	"meditranslate/internal/explain"
	"meditranslate/internal/ocr"
	"meditranslate/internal/translate"
	"meditranslate/pkg/models"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

type fakeNormalizer struct {
	skew  float64
	err   error
	calls int
}

func (f *fakeNormalizer) NormalizeBytes(data []byte, _ bool) ([]byte, float64, error) {
	f.calls++
	if f.err != nil {
		return nil, 0, f.err
	}
	return data, f.skew, nil
}

type fakeEngine struct {
	text  string
	err   error
	block chan struct{}
	calls int
	last  ocr.Input
}

func (f *fakeEngine) Recognize(_ context.Context, input ocr.Input) (*ocr.Result, error) {
	f.calls++
	f.last = input
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return &ocr.Result{
		Text:       f.text,
		PageCount:  1,
		Confidence: 0.9,
		Engine:     "fake",
	}, nil
}

func (f *fakeEngine) Name() string { return "fake" }
func (f *fakeEngine) Close() error { return nil }

// fakeTranslator prefixes inputs with the target language so tests can
// see exactly what was translated.
type fakeTranslator struct {
	err    error
	mu     sync.Mutex
	inputs []string
	closed bool
}

func (f *fakeTranslator) Translate(_ context.Context, text, language string) (string, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, text)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return language + ":" + text, nil
}

func (f *fakeTranslator) Close() error {
	f.closed = true
	return nil
}

type fakeExplainer struct {
	result explain.Result
	block  chan struct{}
	mu     sync.Mutex
	req    models.ExplanationRequest
	calls  int
}

func (f *fakeExplainer) Explain(_ context.Context, req models.ExplanationRequest) explain.Result {
	f.mu.Lock()
	f.req = req
	f.calls++
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.result
}

func (f *fakeExplainer) request() models.ExplanationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.req
}

func testAnalyzer() *analysis.Analyzer {
	lex := analysis.NewLexicon([]analysis.PrimaryEntry{
		{
			Term: "metformin",
			Insight: models.Insight{
				Title:       "Metformin",
				Description: "Helps control blood sugar.",
				Category:    models.CategoryDrug,
			},
		},
		{
			Term: "aspirin",
			Insight: models.Insight{
				Title:       "Aspirin",
				Description: "Thins the blood and eases pain.",
				Category:    models.CategoryDrug,
			},
		},
	}, nil)
	return analysis.NewAnalyzer(lex)
}

func testOrchestrator(norm Normalizer, engine ocr.Engine, translator translate.Gateway, explainer Explainer) *Orchestrator {
	return NewOrchestrator(Deps{
		Normalizer:  norm,
		Engine:      engine,
		Analyzer:    testAnalyzer(),
		Translator:  translator,
		Explainer:   explainer,
		OCRLanguage: "eng",
	})
}

func writeScanFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write scan file: %v", err)
	}
	return path
}

func waitOutcome(t *testing.T, run *Run) Outcome {
	t.Helper()
	select {
	case outcome := <-run.Done:
		return outcome
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not complete")
		return Outcome{}
	}
}

func waitExplainOutcome(t *testing.T, run *ExplainRun) ExplainOutcome {
	t.Helper()
	select {
	case outcome := <-run.Done:
		return outcome
	case <-time.After(5 * time.Second):
		t.Fatal("explanation did not complete")
		return ExplainOutcome{}
	}
}

func TestSubmitRunsFullPipeline(t *testing.T) {
	const docText = "Prescription for patient. Take Metformin 500 mg daily."

	norm := &fakeNormalizer{skew: 2.5}
	engine := &fakeEngine{text: docText}
	translator := &fakeTranslator{}
	o := testOrchestrator(norm, engine, translator, &fakeExplainer{})

	path := writeScanFile(t, "scan.png", pngHeader)
	run, err := o.Submit(context.Background(), models.ScanRequest{
		ImagePath:      path,
		TargetLanguage: "Spanish",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if run.ID == "" {
		t.Error("run ID is empty")
	}

	outcome := waitOutcome(t, run)
	if outcome.Err != nil {
		t.Fatalf("outcome: %v", outcome.Err)
	}
	result := outcome.Result

	if result.RunID != run.ID {
		t.Errorf("result run ID %q, want %q", result.RunID, run.ID)
	}
	if result.RawText != docText {
		t.Errorf("raw text = %q", result.RawText)
	}
	if result.DocumentType != models.DocumentTypePrescription {
		t.Errorf("document type = %s, want prescription", result.DocumentType)
	}
	if result.TranslatedDocument != "Spanish:"+docText {
		t.Errorf("translated document = %q", result.TranslatedDocument)
	}
	if result.SkewAngle != 2.5 {
		t.Errorf("skew = %v, want 2.5", result.SkewAngle)
	}
	if result.OCRConfidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", result.OCRConfidence)
	}
	if result.Duration <= 0 {
		t.Errorf("duration = %v, want > 0", result.Duration)
	}

	if len(result.Insights) != 1 {
		t.Fatalf("insights = %v, want exactly the metformin card", result.Insights)
	}
	insight := result.Insights[0]
	if insight.Title != "Metformin" {
		t.Errorf("insight title = %q", insight.Title)
	}
	if insight.TranslatedTitle != "Spanish:Metformin" {
		t.Errorf("translated title = %q", insight.TranslatedTitle)
	}
	if insight.TranslatedDescription != "Spanish:Helps control blood sugar." {
		t.Errorf("translated description = %q", insight.TranslatedDescription)
	}

	if norm.calls != 1 {
		t.Errorf("normalizer called %d times, want 1", norm.calls)
	}
	if engine.calls != 1 {
		t.Errorf("engine called %d times, want 1", engine.calls)
	}
	if engine.last.MimeType != ocr.MimePNG {
		t.Errorf("engine mime = %q, want %q", engine.last.MimeType, ocr.MimePNG)
	}
	if engine.last.Language != "eng" {
		t.Errorf("engine language = %q, want eng", engine.last.Language)
	}
	if o.ContextText() != docText {
		t.Errorf("context cache = %q", o.ContextText())
	}
}

func TestSubmitRejectsOverlappingScan(t *testing.T) {
	engine := &fakeEngine{text: "take daily", block: make(chan struct{})}
	o := testOrchestrator(&fakeNormalizer{}, engine, &fakeTranslator{}, &fakeExplainer{})
	path := writeScanFile(t, "scan.png", pngHeader)
	req := models.ScanRequest{ImagePath: path, TargetLanguage: "Spanish"}

	first, err := o.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	if _, err := o.Submit(context.Background(), req); !errors.Is(err, ErrScanInFlight) {
		t.Fatalf("second Submit err = %v, want ErrScanInFlight", err)
	}

	close(engine.block)
	if outcome := waitOutcome(t, first); outcome.Err != nil {
		t.Fatalf("first outcome: %v", outcome.Err)
	}

	// The guard resets before the outcome is delivered.
	third, err := o.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit after completion: %v", err)
	}
	waitOutcome(t, third)
}

func TestSubmitReadFailureReleasesGuard(t *testing.T) {
	o := testOrchestrator(&fakeNormalizer{}, &fakeEngine{text: "x"}, &fakeTranslator{}, &fakeExplainer{})
	missing := filepath.Join(t.TempDir(), "missing.png")

	run, err := o.Submit(context.Background(), models.ScanRequest{ImagePath: missing, TargetLanguage: "Spanish"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	outcome := waitOutcome(t, run)
	if outcome.Err == nil {
		t.Fatal("outcome error is nil for a missing file")
	}
	if o.ContextText() != "" {
		t.Errorf("context cache populated by a failed run: %q", o.ContextText())
	}

	path := writeScanFile(t, "scan.png", pngHeader)
	retry, err := o.Submit(context.Background(), models.ScanRequest{ImagePath: path, TargetLanguage: "Spanish"})
	if err != nil {
		t.Fatalf("Submit after failure: %v", err)
	}
	waitOutcome(t, retry)
}

func TestSubmitPDFSkipsNormalization(t *testing.T) {
	norm := &fakeNormalizer{skew: 9}
	engine := &fakeEngine{text: "discharge summary for patient"}
	o := testOrchestrator(norm, engine, &fakeTranslator{}, &fakeExplainer{})

	path := writeScanFile(t, "report.pdf", []byte("%PDF-1.4\nfake body"))
	run, err := o.Submit(context.Background(), models.ScanRequest{ImagePath: path, TargetLanguage: "Hindi"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	outcome := waitOutcome(t, run)
	if outcome.Err != nil {
		t.Fatalf("outcome: %v", outcome.Err)
	}

	if norm.calls != 0 {
		t.Errorf("normalizer called %d times for a PDF", norm.calls)
	}
	if engine.last.MimeType != ocr.MimePDF {
		t.Errorf("engine mime = %q, want %q", engine.last.MimeType, ocr.MimePDF)
	}
	if outcome.Result.SkewAngle != 0 {
		t.Errorf("skew = %v, want 0 for a PDF", outcome.Result.SkewAngle)
	}
}

func TestSubmitSurfacesRecognitionSentinel(t *testing.T) {
	engine := &fakeEngine{err: ocr.NewOCRError("Recognize", ocr.ErrNoText, "")}
	o := testOrchestrator(&fakeNormalizer{}, engine, &fakeTranslator{}, &fakeExplainer{})

	path := writeScanFile(t, "blank.png", pngHeader)
	run, err := o.Submit(context.Background(), models.ScanRequest{ImagePath: path, TargetLanguage: "Spanish"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	outcome := waitOutcome(t, run)
	if !errors.Is(outcome.Err, ocr.ErrNoText) {
		t.Errorf("outcome err = %v, want ErrNoText", outcome.Err)
	}
}

func TestSubmitSurfacesMissingModel(t *testing.T) {
	translator := &fakeTranslator{err: translate.NewTranslateError("Translate", translate.ErrModelMissing, "Spanish")}
	o := testOrchestrator(&fakeNormalizer{}, &fakeEngine{text: "take metformin daily"}, translator, &fakeExplainer{})

	path := writeScanFile(t, "scan.png", pngHeader)
	run, err := o.Submit(context.Background(), models.ScanRequest{ImagePath: path, TargetLanguage: "Spanish"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	outcome := waitOutcome(t, run)
	if !errors.Is(outcome.Err, translate.ErrModelMissing) {
		t.Errorf("outcome err = %v, want ErrModelMissing", outcome.Err)
	}
}

func TestSubmitExplanationRequiresDocument(t *testing.T) {
	o := testOrchestrator(&fakeNormalizer{}, &fakeEngine{text: "x"}, &fakeTranslator{}, &fakeExplainer{})

	if _, err := o.SubmitExplanation(context.Background(), "Metformin", "Spanish"); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("err = %v, want ErrNoDocument", err)
	}
}

func TestSubmitExplanationUsesCachedScan(t *testing.T) {
	const docText = "Take Metformin twice daily."
	explainer := &fakeExplainer{result: explain.Result{
		Text:  "Metformin helps your body use insulin.",
		State: explain.StateSucceeded,
	}}
	o := testOrchestrator(&fakeNormalizer{}, &fakeEngine{text: docText}, &fakeTranslator{}, explainer)

	path := writeScanFile(t, "scan.png", pngHeader)
	run, err := o.Submit(context.Background(), models.ScanRequest{ImagePath: path, TargetLanguage: "Spanish"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome := waitOutcome(t, run); outcome.Err != nil {
		t.Fatalf("scan outcome: %v", outcome.Err)
	}

	explainRun, err := o.SubmitExplanation(context.Background(), "Metformin", "Spanish")
	if err != nil {
		t.Fatalf("SubmitExplanation: %v", err)
	}
	outcome := waitExplainOutcome(t, explainRun)

	if outcome.Result.State != explain.StateSucceeded {
		t.Errorf("state = %s", outcome.Result.State)
	}
	req := explainer.request()
	if req.DocumentContext != docText {
		t.Errorf("document context = %q, want the cached scan text", req.DocumentContext)
	}
	if req.LocalDefinition != "Helps control blood sugar." {
		t.Errorf("local definition = %q, want the insight description", req.LocalDefinition)
	}
	if req.TargetLanguage != "Spanish" {
		t.Errorf("target language = %q", req.TargetLanguage)
	}
}

func TestSubmitExplanationRejectsOverlap(t *testing.T) {
	explainer := &fakeExplainer{block: make(chan struct{})}
	o := testOrchestrator(&fakeNormalizer{}, &fakeEngine{text: "Take Metformin daily."}, &fakeTranslator{}, explainer)

	path := writeScanFile(t, "scan.png", pngHeader)
	run, err := o.Submit(context.Background(), models.ScanRequest{ImagePath: path, TargetLanguage: "Spanish"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome := waitOutcome(t, run); outcome.Err != nil {
		t.Fatalf("scan outcome: %v", outcome.Err)
	}

	first, err := o.SubmitExplanation(context.Background(), "Metformin", "Spanish")
	if err != nil {
		t.Fatalf("first SubmitExplanation: %v", err)
	}
	if _, err := o.SubmitExplanation(context.Background(), "Metformin", "Spanish"); !errors.Is(err, ErrExplainInFlight) {
		t.Fatalf("second SubmitExplanation err = %v, want ErrExplainInFlight", err)
	}

	close(explainer.block)
	waitExplainOutcome(t, first)
}

func TestLookupDefinition(t *testing.T) {
	const docText = "Take Metformin twice daily."
	o := testOrchestrator(&fakeNormalizer{}, &fakeEngine{text: docText}, &fakeTranslator{}, &fakeExplainer{})

	path := writeScanFile(t, "scan.png", pngHeader)
	run, err := o.Submit(context.Background(), models.ScanRequest{ImagePath: path, TargetLanguage: "Spanish"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome := waitOutcome(t, run); outcome.Err != nil {
		t.Fatalf("scan outcome: %v", outcome.Err)
	}

	// Insight from the last scan wins, matched case-insensitively.
	if got := o.LookupDefinition("METFORMIN"); got != "Helps control blood sugar." {
		t.Errorf("insight lookup = %q", got)
	}
	// Terms absent from the scan fall back to the lexicon.
	if got := o.LookupDefinition("Aspirin"); got != "Thins the blood and eases pain." {
		t.Errorf("lexicon lookup = %q", got)
	}
	// Unknown terms get the generic placeholder.
	if got := o.LookupDefinition("floccinaucinihilipilification"); got != fallbackDefinition {
		t.Errorf("unknown lookup = %q", got)
	}
}

func TestCloseReleasesCollaborators(t *testing.T) {
	translator := &fakeTranslator{}
	o := testOrchestrator(&fakeNormalizer{}, &fakeEngine{text: "x"}, translator, &fakeExplainer{})

	if err := o.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !translator.closed {
		t.Error("translator not closed")
	}
}

func TestTranslatorReceivesInsightTextBeforeDocument(t *testing.T) {
	const docText = "Take Metformin daily."
	translator := &fakeTranslator{}
	o := testOrchestrator(&fakeNormalizer{}, &fakeEngine{text: docText}, translator, &fakeExplainer{})

	path := writeScanFile(t, "scan.png", pngHeader)
	run, err := o.Submit(context.Background(), models.ScanRequest{ImagePath: path, TargetLanguage: "Spanish"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome := waitOutcome(t, run); outcome.Err != nil {
		t.Fatalf("outcome: %v", outcome.Err)
	}

	want := []string{"Metformin", "Helps control blood sugar.", docText}
	if strings.Join(translator.inputs, "|") != strings.Join(want, "|") {
		t.Errorf("translator inputs = %v, want %v", translator.inputs, want)
	}
}
