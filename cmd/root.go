package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meditranslate/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "meditranslate",
	Short: "MediTranslate - translate and explain medical documents",
	Long: `MediTranslate turns a photographed or scanned medical document into a
translated, annotated report.

A scan is normalized (denoised, contrast-adjusted, deskewed), run through
a text-recognition engine, classified, mined for clinically relevant
terms, and translated with a local Marian model. Detected terms can be
explained in plain language through an AI model with a lighter fallback
tier.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("MediTranslate executed")

		fmt.Println("Welcome to MediTranslate!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
