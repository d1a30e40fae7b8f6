package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"meditranslate/internal/analysis"
	"meditranslate/internal/config"
	"meditranslate/internal/explain"
	"meditranslate/internal/imaging"
	"meditranslate/internal/logger"
	"meditranslate/internal/ocr"
	"meditranslate/internal/pipeline"
	"meditranslate/internal/report"
	"meditranslate/internal/translate"
	"meditranslate/pkg/models"
)

var scanCmd = &cobra.Command{
	Use:   "scan [image-or-pdf]",
	Short: "Scan a medical document: normalize, recognize, analyze, translate",
	Long: `Run a document photo or PDF through the full pipeline.

Images are denoised, contrast-adjusted and deskewed before recognition.
The recognized text is classified, mined for clinically relevant terms,
and translated into the target language with a local Marian model.

The default engine is the local tesseract installation. The vision and
documentai engines need Google Cloud credentials:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  GOOGLE_CLOUD_PROJECT - Your Google Cloud project ID`,
	Example: `  # Scan a prescription photo, translate to Spanish
  meditranslate scan prescription.jpg

  # High-contrast mode for tinted paper, Hindi output
  meditranslate scan faded-scan.png --high-contrast -l Hindi

  # Cloud recognition for a PDF, JSON output to a file
  meditranslate scan report.pdf --engine vision --json -o result.json

  # Scan, then explain one detected term using the scanned context
  meditranslate scan lab.png --explain "CBC"

  # Write a bilingual PDF report
  meditranslate scan prescription.jpg --report report.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

// ScanOutput represents the JSON output structure when --json flag is used
type ScanOutput struct {
	FileName           string             `json:"file_name"`
	FileSize           int64              `json:"file_size"`
	RunID              string             `json:"run_id"`
	DocumentType       string             `json:"document_type"`
	TargetLanguage     string             `json:"target_language"`
	SkewAngle          float64            `json:"skew_angle"`
	Confidence         float32            `json:"confidence,omitempty"`
	RawText            string             `json:"raw_text"`
	TranslatedDocument string             `json:"translated_document"`
	Insights           []models.Insight   `json:"insights"`
	ProcessedAt        time.Time          `json:"processed_at"`
	ProcessingDuration string             `json:"processing_duration"`
	Explanation        *ExplanationOutput `json:"explanation,omitempty"`
}

// ExplanationOutput is the JSON shape of an inline --explain result.
type ExplanationOutput struct {
	Term         string `json:"term"`
	Text         string `json:"text"`
	Model        string `json:"model,omitempty"`
	State        string `json:"state"`
	UsedFallback bool   `json:"used_fallback"`
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringP("language", "l", "Spanish", "Target language (Spanish, Hindi)")
	scanCmd.Flags().Bool("high-contrast", false, "Binarize instead of adaptive equalization (tinted or faded paper)")
	scanCmd.Flags().String("engine", "", "OCR engine override: tesseract, vision or documentai")
	scanCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	scanCmd.Flags().Bool("json", false, "Output as JSON")
	scanCmd.Flags().String("report", "", "Write a bilingual PDF report to this path")
	scanCmd.Flags().String("explain", "", "Explain this term after the scan using the scanned context")
	scanCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("scan")

	language, _ := cmd.Flags().GetString("language")
	highContrast, _ := cmd.Flags().GetBool("high-contrast")
	engineOverride, _ := cmd.Flags().GetString("engine")
	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	reportPath, _ := cmd.Flags().GetString("report")
	explainTerm, _ := cmd.Flags().GetString("explain")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	inputPath := args[0]

	log.Info().
		Str("file", inputPath).
		Str("language", language).
		Bool("high_contrast", highContrast).
		Bool("json", jsonOutput).
		Int("timeout", timeoutSecs).
		Msg("Starting document scan")

	fileInfo, err := validateInputFile(inputPath, log)
	if err != nil {
		return err
	}

	cfg, err := loadScanConfig(engineOverride, language)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	orchestrator, err := buildOrchestrator(ctx, cfg, explainTerm != "", log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := orchestrator.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close pipeline services")
		}
	}()

	run, err := orchestrator.Submit(ctx, models.ScanRequest{
		ImagePath:      inputPath,
		TargetLanguage: language,
		HighContrast:   highContrast,
	})
	if err != nil {
		return handleScanError(err, log)
	}

	outcome := <-run.Done
	if outcome.Err != nil {
		return handleScanError(outcome.Err, log)
	}
	result := outcome.Result

	log.Info().
		Str("run_id", result.RunID).
		Str("document_type", result.DocumentType.String()).
		Int("insights", len(result.Insights)).
		Dur("duration", result.Duration).
		Msg("Scan completed successfully")

	var explanation *ExplanationOutput
	if explainTerm != "" {
		explanation, err = runInlineExplanation(ctx, orchestrator, explainTerm, language, log)
		if err != nil {
			return err
		}
	}

	if reportPath != "" {
		renderer := report.NewRenderer(cfg.FontsDir)
		if err := renderer.WritePDF(reportPath, result); err != nil {
			return fmt.Errorf("failed to write PDF report: %w", err)
		}
		fmt.Fprintf(os.Stderr, "PDF report written to %s\n", reportPath)
	}

	return outputScanResults(result, explanation, fileInfo, outputPath, jsonOutput, log)
}

// loadScanConfig loads the environment configuration and applies the
// command-line engine override.
func loadScanConfig(engineOverride, language string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if engineOverride != "" {
		switch engineOverride {
		case config.OCREngineTesseract, config.OCREngineVision, config.OCREngineDocumentAI:
			cfg.OCREngine = engineOverride
		default:
			return nil, fmt.Errorf("unknown OCR engine %q: use tesseract, vision or documentai", engineOverride)
		}
	}
	if _, ok := translate.ModelName(language); !ok {
		return nil, fmt.Errorf("unsupported target language %q: supported languages are %s",
			language, strings.Join(translate.Languages(), ", "))
	}
	return cfg, nil
}

// buildOrchestrator assembles the pipeline services from configuration.
// The explanation gateway is only constructed when the scan will use it.
func buildOrchestrator(ctx context.Context, cfg *config.Config, withExplain bool, log zerolog.Logger) (*pipeline.Orchestrator, error) {
	engine, err := createEngine(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var explainer pipeline.Explainer
	if withExplain {
		gateway, err := explain.NewGateway(ctx, cfg)
		if err != nil {
			if closeErr := engine.Close(); closeErr != nil {
				log.Warn().Err(closeErr).Msg("Failed to close OCR engine")
			}
			return nil, fmt.Errorf("failed to create explanation gateway: %w", err)
		}
		explainer = gateway
	}

	return pipeline.NewOrchestrator(pipeline.Deps{
		Normalizer:  imaging.NewNormalizer(),
		Engine:      engine,
		Analyzer:    analysis.NewAnalyzer(analysis.LoadLexicon(cfg.GlossaryDir)),
		Translator:  translate.NewService(cfg),
		Explainer:   explainer,
		OCRLanguage: cfg.OCRLanguage,
	}), nil
}

// createEngine creates the configured OCR engine with credential
// guidance for the cloud engines.
func createEngine(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ocr.Engine, error) {
	if cfg.OCREngine != config.OCREngineTesseract {
		hasCredentials := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" || os.Getenv("GOOGLE_CREDENTIALS") != ""
		if !hasCredentials {
			log.Error().Str("engine", cfg.OCREngine).Msg("Google Cloud credentials not configured")
			return nil, fmt.Errorf("Google Cloud credentials not configured for the %s engine. Please set one of:\n\n"+
				"1. Export GOOGLE_APPLICATION_CREDENTIALS with path to service account JSON:\n"+
				"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n"+
				"2. Export GOOGLE_CREDENTIALS with inline JSON:\n"+
				"   export GOOGLE_CREDENTIALS='{\"type\":\"service_account\",\"project_id\":\"your-project\",...}'\n\n"+
				"3. Use Application Default Credentials (if gcloud is configured):\n"+
				"   gcloud auth application-default login\n\n"+
				"Or run with the local engine: --engine tesseract", cfg.OCREngine)
		}
	}

	engine, err := ocr.NewEngine(ctx, cfg)
	if err != nil {
		if errors.Is(err, ocr.ErrMissingCredentials) {
			log.Error().Err(err).Msg("Google Cloud credentials validation failed")
			return nil, fmt.Errorf("Google Cloud credentials validation failed. Please verify:\n\n"+
				"1. Credentials file exists and is readable\n"+
				"2. JSON format is valid\n"+
				"3. Service account has proper permissions\n\n"+
				"Original error: %w", err)
		}
		if errors.Is(err, ocr.ErrInvalidConfiguration) {
			log.Error().Err(err).Msg("OCR engine configuration incomplete")
			return nil, fmt.Errorf("the documentai engine needs GOOGLE_CLOUD_PROJECT and "+
				"DOCUMENT_AI_PROCESSOR_ID set: %w", err)
		}
		log.Error().Err(err).Msg("Failed to create OCR engine")
		return nil, fmt.Errorf("failed to create OCR engine: %w", err)
	}

	log.Debug().Str("engine", engine.Name()).Msg("OCR engine created")
	return engine, nil
}

// runInlineExplanation exercises the orchestrator's second flow for the
// --explain flag, reusing the text cached by the scan that just finished.
func runInlineExplanation(ctx context.Context, orchestrator *pipeline.Orchestrator, term, language string, log zerolog.Logger) (*ExplanationOutput, error) {
	run, err := orchestrator.SubmitExplanation(ctx, term, language)
	if err != nil {
		return nil, handleScanError(err, log)
	}
	outcome := <-run.Done
	result := outcome.Result

	if result.State == explain.StateFailed {
		log.Warn().Str("term", term).Msg("Explanation failed, reporting the error text")
	}
	return &ExplanationOutput{
		Term:         term,
		Text:         result.Text,
		Model:        result.Model,
		State:        result.State.String(),
		UsedFallback: result.UsedFallback,
	}, nil
}

// validateInputFile checks that the scan input exists, is a regular
// non-empty file, and is within the processing size limit.
func validateInputFile(inputPath string, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(inputPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().
				Str("file", inputPath).
				Msg("Input file not found")
			return nil, fmt.Errorf("input file not found: %s", inputPath)
		}
		if os.IsPermission(err) {
			log.Error().
				Str("file", inputPath).
				Msg("Permission denied accessing input file")
			return nil, fmt.Errorf("permission denied accessing input file: %s", inputPath)
		}
		return nil, fmt.Errorf("error accessing input file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		log.Error().
			Str("file", inputPath).
			Msg("Path is not a regular file")
		return nil, fmt.Errorf("path is not a regular file: %s", inputPath)
	}

	switch strings.ToLower(filepath.Ext(inputPath)) {
	case ".pdf", ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp":
	default:
		log.Warn().
			Str("file", inputPath).
			Msg("Unrecognized file extension, attempting to process anyway")
	}

	if fileInfo.Size() == 0 {
		log.Error().
			Str("file", inputPath).
			Msg("Input file is empty")
		return nil, fmt.Errorf("input file is empty: %s", inputPath)
	}

	if fileInfo.Size() > ocr.MaxFileSizeBytes {
		log.Error().
			Str("file", inputPath).
			Int64("size", fileInfo.Size()).
			Int64("max_size", ocr.MaxFileSizeBytes).
			Msg("Input file exceeds maximum size limit")
		return nil, fmt.Errorf("input file too large (%d bytes). Maximum size is %d bytes (20MB)",
			fileInfo.Size(), ocr.MaxFileSizeBytes)
	}

	return fileInfo, nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	// Handle interrupt signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling processing")
			cancel()
		case <-ctx.Done():
			// Context completed normally
		}
	}()

	return ctx, cancel
}

// handleScanError provides user-friendly error messages for scan failures
func handleScanError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Scan failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("processing timed out. Try increasing --timeout or processing a smaller file")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("processing was canceled")
	case errors.Is(err, pipeline.ErrScanInFlight):
		return fmt.Errorf("another scan is already in progress")
	case errors.Is(err, pipeline.ErrExplainInFlight):
		return fmt.Errorf("another explanation request is already in progress")
	case errors.Is(err, pipeline.ErrNoDocument):
		return fmt.Errorf("no scanned document to explain against. Run a scan first")
	case errors.Is(err, ocr.ErrDocumentTooLarge):
		return fmt.Errorf("document is too large (maximum 20MB). Try compressing or splitting the file")
	case errors.Is(err, ocr.ErrTooManyPages):
		return fmt.Errorf("PDF has too many pages (maximum 5 pages). Try splitting into smaller files")
	case errors.Is(err, ocr.ErrInvalidPDF):
		return fmt.Errorf("invalid or corrupted PDF file. Please check the file integrity")
	case errors.Is(err, ocr.ErrUnsupportedInput):
		return fmt.Errorf("the local tesseract engine cannot process PDFs. Use --engine vision or --engine documentai")
	case errors.Is(err, ocr.ErrNoText):
		return fmt.Errorf("no readable text found in the document. Try --high-contrast for faded or tinted scans")
	case errors.Is(err, imaging.ErrUndecodableImage):
		return fmt.Errorf("could not decode the image. Supported formats: PNG, JPEG, TIFF, BMP")
	case errors.Is(err, translate.ErrUnsupportedLanguage):
		return fmt.Errorf("unsupported target language. Supported languages are %s",
			strings.Join(translate.Languages(), ", "))
	case errors.Is(err, translate.ErrModelMissing):
		return fmt.Errorf("System Error: translation model files are missing. " +
			"Download the Helsinki-NLP Marian model for the target language into the models directory " +
			"(run 'meditranslate models' to see what is expected)")
	case errors.Is(err, translate.ErrDecoderNotFound):
		return fmt.Errorf("marian-decoder was not found. Install marian-nmt or point MARIAN_DECODER at the binary")
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "auth:") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Please check your credentials:\n\n"+
			"1. Set GOOGLE_APPLICATION_CREDENTIALS to your service account JSON file path\n"+
			"2. Or set GOOGLE_CREDENTIALS with inline JSON\n"+
			"3. Ensure the service account has access to the configured API\n\n"+
			"Original error: %v", err)
	case strings.Contains(errStr, "PERMISSION_DENIED") ||
		strings.Contains(errStr, "permission") ||
		strings.Contains(errStr, "forbidden"):
		return fmt.Errorf("permission denied. Please ensure your Google Cloud service account has access to the configured API")
	case strings.Contains(errStr, "QUOTA_EXCEEDED") ||
		strings.Contains(errStr, "quota"):
		return fmt.Errorf("API quota exceeded. Check your project quotas in the Google Cloud Console")
	case errors.Is(err, ocr.ErrOCRFailed):
		return fmt.Errorf("text recognition failed. This may be due to network issues, API quota limits, or service unavailability: %w", err)
	default:
		return fmt.Errorf("scan failed: %w", err)
	}
}

// outputScanResults formats and outputs the scan results
func outputScanResults(result *models.ScanResult, explanation *ExplanationOutput, fileInfo os.FileInfo, outputPath string, jsonOutput bool, log zerolog.Logger) error {
	var outputData []byte
	var err error

	if jsonOutput {
		scanOutput := ScanOutput{
			FileName:           filepath.Base(fileInfo.Name()),
			FileSize:           fileInfo.Size(),
			RunID:              result.RunID,
			DocumentType:       result.DocumentType.String(),
			TargetLanguage:     result.TargetLanguage,
			SkewAngle:          result.SkewAngle,
			Confidence:         result.OCRConfidence,
			RawText:            result.RawText,
			TranslatedDocument: result.TranslatedDocument,
			Insights:           result.Insights,
			ProcessedAt:        result.ProcessedAt,
			ProcessingDuration: result.Duration.String(),
			Explanation:        explanation,
		}

		outputData, err = json.MarshalIndent(scanOutput, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal JSON output")
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
	} else {
		var output strings.Builder
		output.WriteString(fmt.Sprintf("=== Scan Results for %s ===\n", filepath.Base(fileInfo.Name())))
		output.WriteString(fmt.Sprintf("Document type: %s\n", result.DocumentType))
		output.WriteString(fmt.Sprintf("Target language: %s\n", result.TargetLanguage))
		if result.SkewAngle != 0 {
			output.WriteString(fmt.Sprintf("Skew corrected: %.1f degrees\n", result.SkewAngle))
		}
		if result.OCRConfidence > 0 {
			output.WriteString(fmt.Sprintf("Confidence: %.1f%%\n", result.OCRConfidence*100))
		}
		output.WriteString(fmt.Sprintf("Processing time: %v\n", result.Duration))

		output.WriteString("\n=== Original Text ===\n\n")
		output.WriteString(result.RawText)
		output.WriteString("\n")

		output.WriteString(fmt.Sprintf("\n=== %s Translation ===\n\n", result.TargetLanguage))
		output.WriteString(result.TranslatedDocument)
		output.WriteString("\n")

		if len(result.Insights) > 0 {
			output.WriteString(fmt.Sprintf("\n=== Detected Insights (%d) ===\n\n", len(result.Insights)))
			for _, insight := range result.Insights {
				output.WriteString(fmt.Sprintf("[%s] %s: %s\n", insight.Category, insight.Title, insight.Description))
				if insight.TranslatedTitle != "" || insight.TranslatedDescription != "" {
					output.WriteString(fmt.Sprintf("       %s: %s\n", insight.TranslatedTitle, insight.TranslatedDescription))
				}
			}
		}

		if explanation != nil {
			header := fmt.Sprintf("\n=== Explanation: %s", explanation.Term)
			if explanation.Model != "" {
				header += fmt.Sprintf(" (%s)", explanation.Model)
			}
			output.WriteString(header + " ===\n\n")
			output.WriteString(explanation.Text)
			output.WriteString("\n")
		}
		outputData = []byte(output.String())
	}

	if outputPath != "" {
		err = os.WriteFile(outputPath, outputData, 0644)
		if err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}

		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(outputData)).
			Msg("Scan results written to file")
	} else {
		_, err = os.Stdout.Write(outputData)
		if err != nil {
			log.Error().Err(err).Msg("Failed to write to stdout")
			return fmt.Errorf("failed to write output: %w", err)
		}

		if !jsonOutput {
			fmt.Println()
		}
	}

	return nil
}
