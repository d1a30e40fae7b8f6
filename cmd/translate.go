package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"meditranslate/internal/config"
	"meditranslate/internal/logger"
	"meditranslate/internal/translate"
)

var translateCmd = &cobra.Command{
	Use:   "translate [text]",
	Short: "Translate text with the local Marian model",
	Long: `Translate English text into the target language using the local
Helsinki-NLP Marian model for that language pair.

The model is loaded from the models directory on first use and kept in
memory for the rest of the process. Run 'meditranslate models' to see
which model directories are expected.`,
	Example: `  # Translate a phrase to Spanish
  meditranslate translate "Take two tablets with food" -l Spanish

  # Translate a file of extracted text to Hindi
  meditranslate translate --file extracted.txt -l Hindi -o translated.txt

  # Translate from stdin
  cat extracted.txt | meditranslate translate --file -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTranslate,
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringP("language", "l", "Spanish", "Target language (Spanish, Hindi)")
	translateCmd.Flags().StringP("file", "f", "", "Translate the contents of this file (\"-\" for stdin)")
	translateCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	translateCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("translate")

	language, _ := cmd.Flags().GetString("language")
	filePath, _ := cmd.Flags().GetString("file")
	outputPath, _ := cmd.Flags().GetString("output")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	text, err := translateInput(args, filePath)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log.Info().
		Str("language", language).
		Int("chars", len(text)).
		Msg("Starting translation")

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	service := translate.NewService(cfg)
	defer func() {
		if closeErr := service.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close translation service")
		}
	}()

	translated, err := service.Translate(ctx, text, language)
	if err != nil {
		return handleTranslateError(err, cfg, language)
	}

	log.Info().
		Str("language", language).
		Int("chars", len(translated)).
		Int64("models_loaded", service.LoadCount()).
		Msg("Translation completed")

	return writeTextOutput(translated, outputPath, log)
}

// translateInput resolves the text to translate from the argument or the
// --file flag; exactly one source must be given.
func translateInput(args []string, filePath string) (string, error) {
	hasArg := len(args) == 1 && args[0] != ""

	switch {
	case hasArg && filePath != "":
		return "", fmt.Errorf("pass either text or --file, not both")
	case hasArg:
		return args[0], nil
	case filePath == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return string(data), nil
	case filePath != "":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("nothing to translate: pass text or --file")
	}
}

// handleTranslateError maps translation failures to remediation text.
func handleTranslateError(err error, cfg *config.Config, language string) error {
	switch {
	case errors.Is(err, translate.ErrUnsupportedLanguage):
		return fmt.Errorf("unsupported target language %q. Supported languages are %s",
			language, strings.Join(translate.Languages(), ", "))
	case errors.Is(err, translate.ErrModelMissing):
		dirName, _ := translate.ModelDir(language)
		modelName, _ := translate.ModelName(language)
		return fmt.Errorf("System Error: translation model files are missing.\n\n"+
			"Expected the %s model under:\n"+
			"  %s\n\n"+
			"Download the Helsinki-NLP Marian model for this language and try again",
			modelName, filepath.Join(cfg.ModelsDir, dirName))
	case errors.Is(err, translate.ErrDecoderNotFound):
		return fmt.Errorf("marian-decoder was not found. Install marian-nmt or set MARIAN_DECODER to the binary path")
	default:
		return fmt.Errorf("translation failed: %w", err)
	}
}
