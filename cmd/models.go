package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"meditranslate/internal/config"
	"meditranslate/internal/logger"
	"meditranslate/internal/translate"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show translation model and decoder status",
	Long: `List the supported target languages with their Marian model
directories and whether the files are present, plus whether the
marian-decoder binary is reachable.

Model files are not bundled; download the Helsinki-NLP OPUS-MT model for
each language you need into the models directory.`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("models")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	fmt.Printf("Models directory: %s\n\n", cfg.ModelsDir)
	missing := 0
	for _, language := range translate.Languages() {
		modelName, _ := translate.ModelName(language)
		dirName, _ := translate.ModelDir(language)
		dir := filepath.Join(cfg.ModelsDir, dirName)

		status := "ready"
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			status = "missing"
			missing++
		}
		fmt.Printf("  %-8s  %-28s  %-7s  %s\n", language, modelName, status, dir)
	}

	fmt.Println()
	if decoderPath, err := exec.LookPath(cfg.MarianDecoder); err == nil {
		fmt.Printf("Decoder: %s\n", decoderPath)
	} else {
		fmt.Printf("Decoder: %s not found. Install marian-nmt or set MARIAN_DECODER\n", cfg.MarianDecoder)
	}

	if missing > 0 {
		fmt.Printf("\n%d model(s) missing. Download the Helsinki-NLP OPUS-MT files into the directories above.\n", missing)
	}

	log.Debug().Int("missing", missing).Msg("Model status listed")
	return nil
}
