// Package translate renders English medical text in the patient's
// language using local Marian machine translation models. Models are
// loaded lazily per language and cached for the lifetime of the
// service, so the first request for a language pays the load cost and
// later ones reuse it.
package translate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"meditranslate/internal/config"
	"meditranslate/internal/logger"
)

// languageModels maps display language names to the Helsinki-NLP Marian
// models that translate English into them. The directory under
// MODELS_DIR carries the last path segment of the model name.
var languageModels = map[string]string{
	"Spanish": "Helsinki-NLP/opus-mt-en-es",
	"Hindi":   "Helsinki-NLP/opus-mt-en-hi",
}

// Languages returns the supported target languages in sorted order.
func Languages() []string {
	languages := make([]string, 0, len(languageModels))
	for language := range languageModels {
		languages = append(languages, language)
	}
	sort.Strings(languages)
	return languages
}

// ModelName returns the Marian model identifier for a language.
func ModelName(language string) (string, bool) {
	name, ok := languageModels[language]
	return name, ok
}

// ModelDir returns the on-disk directory for a language's model,
// relative to the models root.
func ModelDir(language string) (string, bool) {
	name, ok := languageModels[language]
	if !ok {
		return "", false
	}
	return name[strings.LastIndex(name, "/")+1:], true
}

// Model is a loaded translation model for one language pair.
type Model interface {
	// Translate renders each input line in the target language.
	Translate(ctx context.Context, lines []string) ([]string, error)

	// Close releases the model.
	Close() error
}

// Loader loads the model for a language from its directory.
type Loader interface {
	Load(ctx context.Context, language, dir string) (Model, error)
}

// Gateway is the translation interface used by the pipeline.
type Gateway interface {
	Translate(ctx context.Context, text, language string) (string, error)
	Close() error
}

// Service implements Gateway with a lazy per-language model cache.
type Service struct {
	modelsDir string
	loader    Loader

	mu     sync.RWMutex
	models map[string]Model
	group  singleflight.Group

	loadCount atomic.Int64
	log       zerolog.Logger
}

// NewService creates a translation service backed by marian-decoder
// subprocesses.
func NewService(cfg *config.Config) *Service {
	return NewServiceWithLoader(cfg.ModelsDir, &marianLoader{decoder: cfg.MarianDecoder})
}

// NewServiceWithLoader creates a service with an explicit model loader
// (for testing).
func NewServiceWithLoader(modelsDir string, loader Loader) *Service {
	return &Service{
		modelsDir: modelsDir,
		loader:    loader,
		models:    make(map[string]Model),
		log:       logger.WithComponent("translate"),
	}
}

// Translate renders text in the target language. Blank input returns
// an empty string without touching the model cache, so callers can
// safely pass through optional fields.
func (s *Service) Translate(ctx context.Context, text, language string) (string, error) {
	const op = "Translate"

	dirName, ok := ModelDir(language)
	if !ok {
		return "", WrapTranslateError(op, ErrUnsupportedLanguage, language)
	}

	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	model, err := s.model(ctx, language, dirName)
	if err != nil {
		return "", err
	}

	lines := splitLines(text)
	translated, err := model.Translate(ctx, lines)
	if err != nil {
		return "", WrapTranslateError(op, ErrTranslationFailed, err.Error())
	}

	return strings.Join(translated, " "), nil
}

// LoadCount reports how many models have been loaded so far. Repeat
// translations into a cached language do not increase it.
func (s *Service) LoadCount() int64 {
	return s.loadCount.Load()
}

// model returns the cached model for a language, loading it on first
// use. Concurrent first requests for the same language share a single
// load.
func (s *Service) model(ctx context.Context, language, dirName string) (Model, error) {
	const op = "model"

	s.mu.RLock()
	model, ok := s.models[language]
	s.mu.RUnlock()
	if ok {
		return model, nil
	}

	v, err, _ := s.group.Do(language, func() (interface{}, error) {
		s.mu.RLock()
		model, ok := s.models[language]
		s.mu.RUnlock()
		if ok {
			return model, nil
		}

		dir := filepath.Join(s.modelsDir, dirName)
		if _, statErr := os.Stat(dir); statErr != nil {
			return nil, WrapTranslateError(op, ErrModelMissing,
				fmt.Sprintf("no model directory for %s at %s, fetch the Marian models first", language, dir))
		}

		s.log.Info().
			Str("language", language).
			Str("dir", dir).
			Msg("Loading translation model")

		loaded, loadErr := s.loader.Load(ctx, language, dir)
		if loadErr != nil {
			return nil, WrapTranslateError(op, loadErr, fmt.Sprintf("failed to load model for %s", language))
		}

		s.mu.Lock()
		s.models[language] = loaded
		s.mu.Unlock()
		s.loadCount.Add(1)

		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Model), nil
}

// Close releases all cached models.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for language, model := range s.models {
		if err := model.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close model for %s: %w", language, err)
		}
	}
	s.models = make(map[string]Model)
	return firstErr
}

// splitLines breaks text into non-blank trimmed lines for the
// line-oriented decoder.
func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
