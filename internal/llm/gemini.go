package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini implements Provider for Google Gemini.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini provider. The caller must Close it.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required (set GOOGLE_API_KEY)")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Name() string  { return ProviderGemini }
func (g *Gemini) Model() string { return g.model }

// Generate runs req with a deterministic generation config.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0)
	model.SetTopP(1)
	model.SetTopK(1)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return geminiText(resp)
}

// geminiText joins the text parts of the first candidate.
func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrNoText
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", ErrNoText
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", ErrNoText
	}
	return strings.Join(parts, ""), nil
}

// ListModels returns the models that support generateContent.
func (g *Gemini) ListModels(ctx context.Context) ([]string, error) {
	var names []string
	it := g.client.ListModels(ctx)
	for {
		m, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list models: %w", err)
		}
		for _, method := range m.SupportedGenerationMethods {
			if method == "generateContent" {
				names = append(names, m.Name)
				break
			}
		}
	}
	return names, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
