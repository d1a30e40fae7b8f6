package explain

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/rs/zerolog"

	"meditranslate/internal/logger"
)

// Default model pair for the Vertex AI provider.
const (
	defaultVertexModel         = "gemini-1.5-pro"
	defaultVertexFallbackModel = "gemini-1.5-flash"
)

// VertexGenerator produces explanations through Vertex AI Gemini models.
type VertexGenerator struct {
	client *genai.Client
	model  string
	// ownsClient is false for generators sharing another generator's
	// client; Close is then a no-op.
	ownsClient bool
	log        zerolog.Logger
}

// NewVertexGenerator creates a generator with its own Vertex AI client.
// Credentials are resolved through Application Default Credentials.
func NewVertexGenerator(ctx context.Context, projectID, location, model string) (*VertexGenerator, error) {
	const op = "NewVertexGenerator"

	if projectID == "" {
		return nil, fmt.Errorf("%s: GOOGLE_CLOUD_PROJECT environment variable is required", op)
	}
	if location == "" {
		location = "us-central1"
	}

	client, err := genai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create Vertex AI client: %w", op, err)
	}

	gen := NewVertexGeneratorWithClient(client, model)
	gen.ownsClient = true
	return gen, nil
}

// NewVertexGeneratorWithClient creates a generator around an existing
// client. The client stays owned by the caller.
func NewVertexGeneratorWithClient(client *genai.Client, model string) *VertexGenerator {
	if model == "" {
		model = defaultVertexModel
	}
	return &VertexGenerator{
		client: client,
		model:  model,
		log:    logger.WithComponent("explain-vertex"),
	}
}

// Model returns the model name requests are sent to.
func (v *VertexGenerator) Model() string {
	return v.model
}

// Generate sends one generation request and returns the normalized
// response text.
func (v *VertexGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	model := v.client.GenerativeModel(v.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](explainTemperature),
		MaxOutputTokens: genai.Ptr[int32](maxResponseTokens),
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("empty response from model %s", v.model)
	}

	v.log.Debug().Str("model", v.model).Msg("Generation response received")
	return normalizeResponse(text), nil
}

// Close releases the underlying client when this generator owns it.
func (v *VertexGenerator) Close() error {
	if !v.ownsClient || v.client == nil {
		return nil
	}
	return v.client.Close()
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}
