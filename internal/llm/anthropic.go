package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-haiku-4-5-20251001"

const defaultMaxTokens = 4096

// Anthropic wraps the Anthropic Messages API.
type Anthropic struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewAnthropic creates an Anthropic provider with the given API key and model.
// An empty key falls back to the SDK's ANTHROPIC_API_KEY lookup.
func NewAnthropic(apiKey, model string, extra ...option.RequestOption) *Anthropic {
	if model == "" {
		model = DefaultAnthropicModel
	}
	// Retries are owned by WithRetry.
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	opts = append(opts, extra...)
	client := anthropic.NewClient(opts...)
	return &Anthropic{
		api:   &client,
		model: anthropic.Model(model),
	}
}

func (a *Anthropic) Name() string  { return ProviderAnthropic }
func (a *Anthropic) Model() string { return string(a.model) }

// Generate sends req as a single user turn and returns the first text block.
func (a *Anthropic) Generate(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       a.model,
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(0),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := a.api.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", ErrNoText
}
