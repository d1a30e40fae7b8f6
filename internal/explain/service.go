// Package explain turns a detected medical term into a patient-friendly
// bilingual explanation using a chat model.
//
// The gateway drives a small state machine around two configured models.
// Transient failures of the primary model (rate limits, overload) are
// retried with exponential backoff; after the attempt budget is spent, or
// immediately when the primary model does not exist, the fallback model
// is asked once. Explain never returns an error: every outcome, including
// total failure, is reported as a Result with a terminal state and a
// display-ready text.
package explain

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"meditranslate/internal/config"
	"meditranslate/internal/logger"
	"meditranslate/pkg/models"
)

// maxAttempts bounds calls to the primary model per request. The
// fallback model is only ever asked once.
const maxAttempts = 3

// Generator produces one completion for one prompt. Implementations wrap
// a concrete provider client and are safe for sequential reuse.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Result is the outcome of one explanation request.
type Result struct {
	// Text is always displayable: the explanation on success, an error
	// notice addressed to the user otherwise.
	Text string `json:"text"`
	// State is the terminal state the request ended in.
	State State `json:"-"`
	// Attempts counts calls made to the primary model.
	Attempts int `json:"attempts"`
	// UsedFallback reports whether the fallback model was asked.
	UsedFallback bool `json:"used_fallback"`
	// Model is the model that produced Text; empty on failure.
	Model string `json:"model,omitempty"`
}

// Gateway runs explanation requests against a primary and a fallback
// model.
type Gateway struct {
	primary  Generator
	fallback Generator

	// sleep and jitter are replaceable for tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64

	log zerolog.Logger
}

// NewGateway builds the gateway for the provider selected in the
// configuration. Both the primary and the fallback generator use the
// same provider.
func NewGateway(ctx context.Context, cfg *config.Config) (*Gateway, error) {
	switch cfg.ExplainProvider {
	case config.ExplainProviderVertex:
		location := vertexLocation(cfg.GoogleCloudLocation)
		primary, err := NewVertexGenerator(ctx, cfg.GoogleCloudProject, location, cfg.ExplainModel)
		if err != nil {
			return nil, err
		}
		fallbackModel := cfg.ExplainFallbackModel
		if fallbackModel == "" {
			fallbackModel = defaultVertexFallbackModel
		}
		fallback := NewVertexGeneratorWithClient(primary.client, fallbackModel)
		return NewGatewayWithGenerators(primary, fallback), nil

	default:
		primary, err := NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.ExplainModel)
		if err != nil {
			return nil, err
		}
		fallbackModel := cfg.ExplainFallbackModel
		if fallbackModel == "" {
			fallbackModel = defaultOpenAIFallbackModel
		}
		fallback := NewOpenAIGeneratorWithClient(primary.client, fallbackModel)
		return NewGatewayWithGenerators(primary, fallback), nil
	}
}

// NewGatewayWithGenerators builds a gateway around explicit generators.
// Used by tests and by callers that assemble their own clients.
func NewGatewayWithGenerators(primary, fallback Generator) *Gateway {
	return &Gateway{
		primary:  primary,
		fallback: fallback,
		sleep:    sleepContext,
		jitter:   rand.Float64,
		log:      logger.WithComponent("explain"),
	}
}

// Explain runs one request through the state machine. The returned
// Result is always usable; callers decide what to do with a Failed
// state, the Text is already phrased for the user.
func (g *Gateway) Explain(ctx context.Context, req models.ExplanationRequest) Result {
	prompt := BuildPrompt(req)
	result := Result{State: StateIdle}

	for attempt := 0; ; attempt++ {
		result.State = StateRequesting
		result.Attempts = attempt + 1
		g.log.Debug().
			Str("state", result.State.String()).
			Int("attempt", result.Attempts).
			Str("model", g.primary.Model()).
			Str("term", req.Term).
			Msg("Requesting explanation")

		text, err := g.primary.Generate(ctx, prompt)
		if err == nil {
			result.State = StateSucceeded
			result.Text = text
			result.Model = g.primary.Model()
			g.log.Info().
				Int("attempt", result.Attempts).
				Str("model", result.Model).
				Msg("Explanation generated")
			return result
		}

		class := classifyFailure(err)
		switch class {
		case failureTransient:
			if attempt+1 >= maxAttempts {
				g.log.Warn().
					Err(err).
					Int("attempts", result.Attempts).
					Msg("Primary model exhausted, switching to fallback")
				return g.explainFallback(ctx, prompt, result)
			}
			delay := g.backoff(attempt)
			result.State = StateRetryWait
			g.log.Warn().
				Err(err).
				Str("state", result.State.String()).
				Int("attempt", result.Attempts).
				Dur("backoff", delay).
				Msg("Transient failure, backing off before retry")
			if sleepErr := g.sleep(ctx, delay); sleepErr != nil {
				result.State = StateFailed
				result.Text = connectErrorText(sleepErr)
				return result
			}

		case failureModelMissing:
			g.log.Warn().
				Err(err).
				Str("model", g.primary.Model()).
				Msg("Primary model unavailable, switching to fallback")
			return g.explainFallback(ctx, prompt, result)

		default:
			result.State = StateFailed
			result.Text = connectErrorText(err)
			g.log.Error().
				Err(err).
				Str("class", class.String()).
				Msg("Explanation request failed")
			return result
		}
	}
}

// explainFallback asks the fallback model once and ends the request.
func (g *Gateway) explainFallback(ctx context.Context, prompt string, result Result) Result {
	result.State = StateFallback
	result.UsedFallback = true
	g.log.Info().
		Str("state", result.State.String()).
		Str("model", g.fallback.Model()).
		Msg("Requesting explanation from fallback model")

	text, err := g.fallback.Generate(ctx, prompt)
	if err != nil {
		result.State = StateFailed
		result.Text = allFailedText(err)
		g.log.Error().Err(err).Msg("Fallback model failed, no explanation produced")
		return result
	}

	result.State = StateSucceeded
	result.Text = text
	result.Model = g.fallback.Model()
	g.log.Info().Str("model", result.Model).Msg("Explanation generated by fallback model")
	return result
}

// Close releases provider clients held by the generators.
func (g *Gateway) Close() error {
	var firstErr error
	for _, gen := range []Generator{g.primary, g.fallback} {
		if closer, ok := gen.(io.Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// backoff returns the wait before retry number attempt+2: 2^attempt
// seconds plus up to one second of jitter.
func (g *Gateway) backoff(attempt int) time.Duration {
	seconds := math.Pow(2, float64(attempt)) + g.jitter()
	return time.Duration(seconds * float64(time.Second))
}

func connectErrorText(err error) string {
	return fmt.Sprintf("Error connecting to AI: %v", err)
}

func allFailedText(err error) string {
	return fmt.Sprintf("System Error: All AI models failed. %v", err)
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// normalizeResponse trims the completion and unwraps output the model
// wrapped entirely in a markdown fence.
func normalizeResponse(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") && strings.HasSuffix(content, "```") && len(content) > 6 {
		content = strings.TrimPrefix(content, "```markdown")
		content = strings.TrimPrefix(content, "```md")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}
	return content
}

// vertexLocation maps the coarse region names used elsewhere in the
// configuration onto Vertex AI regions.
func vertexLocation(location string) string {
	switch location {
	case "", "us":
		return "us-central1"
	case "eu":
		return "europe-west4"
	default:
		return location
	}
}
