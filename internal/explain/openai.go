package explain

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"meditranslate/internal/logger"
)

// Default model pair for the OpenAI provider.
const (
	defaultOpenAIModel         = openai.GPT4o
	defaultOpenAIFallbackModel = openai.GPT4oMini
)

// Generation settings shared by both providers. The high temperature is
// deliberate: explanations should read naturally, not like a lookup.
const (
	explainTemperature = 0.75
	maxResponseTokens  = 1000
)

// OpenAIGenerator produces explanations through the OpenAI chat
// completion API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	log    zerolog.Logger
}

// NewOpenAIGenerator creates a generator for the given model, or the
// default model when empty.
func NewOpenAIGenerator(apiKey, model string) (*OpenAIGenerator, error) {
	const op = "NewOpenAIGenerator"

	if apiKey == "" {
		return nil, fmt.Errorf("%s: OPENAI_API_KEY environment variable is required", op)
	}
	return NewOpenAIGeneratorWithClient(openai.NewClient(apiKey), model), nil
}

// NewOpenAIGeneratorWithClient creates a generator around an existing
// client. Used for the fallback model and in tests.
func NewOpenAIGeneratorWithClient(client *openai.Client, model string) *OpenAIGenerator {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIGenerator{
		client: client,
		model:  model,
		log:    logger.WithComponent("explain-openai"),
	}
}

// Model returns the model name requests are sent to.
func (o *OpenAIGenerator) Model() string {
	return o.model
}

// Generate sends one chat completion request and returns the normalized
// response text.
func (o *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: explainTemperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens: maxResponseTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices from model %s", o.model)
	}

	o.log.Debug().
		Str("model", o.model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("Chat completion received")

	return normalizeResponse(resp.Choices[0].Message.Content), nil
}
