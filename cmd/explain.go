package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"meditranslate/internal/analysis"
	"meditranslate/internal/config"
	"meditranslate/internal/explain"
	"meditranslate/internal/logger"
	"meditranslate/internal/report"
	"meditranslate/pkg/models"
)

var explainCmd = &cobra.Command{
	Use:   "explain [term]",
	Short: "Explain a medical term in plain, bilingual language",
	Long: `Ask the configured AI model for a patient-friendly explanation of a
medical term. The answer has a target-language half and an English half.

Transient model failures are retried with backoff before switching to the
lighter fallback model. A failed request still prints a readable message
instead of aborting.

The openai provider needs OPENAI_API_KEY; the vertex provider needs
GOOGLE_CLOUD_PROJECT and Application Default Credentials.`,
	Example: `  # Explain a term for a Spanish-speaking patient
  meditranslate explain "Metformin"

  # Use the text of a scanned document as context
  meditranslate explain "CBC" --context-file extracted.txt -l Hindi

  # Pipe context from a previous scan and render HTML
  meditranslate scan lab.png -o extracted.txt
  meditranslate explain "Hemoglobin" --context-file - --html -o explanation.html < extracted.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runExplain,
}

func init() {
	rootCmd.AddCommand(explainCmd)

	explainCmd.Flags().StringP("language", "l", "Spanish", "Language for the localized half of the explanation")
	explainCmd.Flags().String("context-file", "", "File with document text used as context (\"-\" for stdin)")
	explainCmd.Flags().String("definition", "", "Local definition of the term (default: lexicon lookup)")
	explainCmd.Flags().Bool("html", false, "Render the explanation as a standalone HTML page")
	explainCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	explainCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
}

func runExplain(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("explain")

	language, _ := cmd.Flags().GetString("language")
	contextFile, _ := cmd.Flags().GetString("context-file")
	definition, _ := cmd.Flags().GetString("definition")
	htmlOutput, _ := cmd.Flags().GetBool("html")
	outputPath, _ := cmd.Flags().GetString("output")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	term := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	contextText, err := readContextFile(contextFile)
	if err != nil {
		return err
	}

	if definition == "" {
		lexicon := analysis.LoadLexicon(cfg.GlossaryDir)
		if found, ok := lexicon.Definition(term); ok {
			definition = found
			log.Debug().Str("term", term).Msg("Definition found in lexicon")
		}
	}

	log.Info().
		Str("term", term).
		Str("language", language).
		Str("provider", cfg.ExplainProvider).
		Int("context_chars", len(contextText)).
		Msg("Requesting explanation")

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	gateway, err := explain.NewGateway(ctx, cfg)
	if err != nil {
		return explainGatewayError(cfg, err)
	}
	defer func() {
		if closeErr := gateway.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close explanation gateway")
		}
	}()

	result := gateway.Explain(ctx, models.ExplanationRequest{
		Term:            term,
		LocalDefinition: definition,
		DocumentContext: contextText,
		TargetLanguage:  language,
	})

	log.Info().
		Str("state", result.State.String()).
		Int("attempts", result.Attempts).
		Bool("used_fallback", result.UsedFallback).
		Str("model", result.Model).
		Msg("Explanation finished")

	output := result.Text
	if htmlOutput {
		output, err = report.ExplanationHTML(result.Text)
		if err != nil {
			return fmt.Errorf("failed to render HTML: %w", err)
		}
	}

	return writeTextOutput(output, outputPath, log)
}

// readContextFile loads document context from a file or stdin.
func readContextFile(contextFile string) (string, error) {
	switch contextFile {
	case "":
		return "", nil
	case "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read context from stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(contextFile)
		if err != nil {
			return "", fmt.Errorf("failed to read context file: %w", err)
		}
		return string(data), nil
	}
}

// explainGatewayError turns gateway construction failures into setup
// guidance for the configured provider.
func explainGatewayError(cfg *config.Config, err error) error {
	if cfg.ExplainProvider == config.ExplainProviderVertex {
		return fmt.Errorf("failed to create the Vertex AI gateway. Please verify:\n\n"+
			"1. GOOGLE_CLOUD_PROJECT is set to your project ID\n"+
			"2. Application Default Credentials are configured:\n"+
			"   gcloud auth application-default login\n\n"+
			"Original error: %w", err)
	}
	return fmt.Errorf("failed to create the OpenAI gateway. Please verify:\n\n"+
		"1. OPENAI_API_KEY is set (or switch providers with EXPLAIN_PROVIDER=vertex)\n\n"+
		"Original error: %w", err)
}

// writeTextOutput writes command output to a file or stdout.
func writeTextOutput(output, outputPath string, log zerolog.Logger) error {
	if outputPath != "" {
		if err := os.WriteFile(outputPath, []byte(output), 0644); err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}
		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(output)).
			Msg("Output written to file")
		return nil
	}

	fmt.Println(output)
	return nil
}
