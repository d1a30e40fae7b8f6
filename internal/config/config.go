package config

import (
	"fmt"
	"os"
	"strings"

	"meditranslate/internal/logger"
)

// Supported values for the EXPLAIN_PROVIDER setting.
const (
	ExplainProviderOpenAI = "openai"
	ExplainProviderVertex = "vertex"
)

// Supported values for the OCR_ENGINE setting.
const (
	OCREngineTesseract  = "tesseract"
	OCREngineVision     = "vision"
	OCREngineDocumentAI = "documentai"
)

type Config struct {
	// Explanation service
	OpenAIAPIKey         string
	ExplainProvider      string
	ExplainModel         string
	ExplainFallbackModel string

	// Google Cloud (vision/documentai engines, vertex provider)
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string

	// Recognition
	OCREngine   string
	OCRLanguage string

	// Translation models
	ModelsDir     string
	MarianDecoder string

	// Lexicon and report resources
	GlossaryDir string
	FontsDir    string

	// Logging
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		ExplainProvider:      strings.ToLower(getEnv("EXPLAIN_PROVIDER", ExplainProviderOpenAI)),
		ExplainModel:         getEnv("EXPLAIN_MODEL", ""),
		ExplainFallbackModel: getEnv("EXPLAIN_FALLBACK_MODEL", ""),

		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),

		OCREngine:   strings.ToLower(getEnv("OCR_ENGINE", OCREngineTesseract)),
		OCRLanguage: getEnv("OCR_LANGUAGE", "eng"),

		ModelsDir:     getEnv("MODELS_DIR", "resources/models"),
		MarianDecoder: getEnv("MARIAN_DECODER", "marian-decoder"),

		GlossaryDir: getEnv("GLOSSARY_DIR", "data"),
		FontsDir:    getEnv("FONTS_DIR", "resources/fonts"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
		LogTimeFormat: getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:     getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validate checks setting shapes. Credentials are checked lazily by the
// component that needs them so that offline commands keep working.
func (c *Config) validate() error {
	switch c.ExplainProvider {
	case ExplainProviderOpenAI, ExplainProviderVertex:
	default:
		return fmt.Errorf("EXPLAIN_PROVIDER must be %q or %q, got %q",
			ExplainProviderOpenAI, ExplainProviderVertex, c.ExplainProvider)
	}
	switch c.OCREngine {
	case OCREngineTesseract, OCREngineVision, OCREngineDocumentAI:
	default:
		return fmt.Errorf("OCR_ENGINE must be %q, %q or %q, got %q",
			OCREngineTesseract, OCREngineVision, OCREngineDocumentAI, c.OCREngine)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
