package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoText is returned when a provider answers without any text content.
var ErrNoText = errors.New("no text content in API response")

// Request is a single-turn prompt sent to a provider.
type Request struct {
	System    string
	User      string
	MaxTokens int
}

// Provider generates free-form text for a prompt.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
	Model() string
}

// Provider names accepted by New.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Options configures a provider built by New.
type Options struct {
	Provider   string
	APIKey     string
	Model      string
	MaxRetries int
}

// New creates a provider by name, wrapped in the retry policy from opts.
func New(ctx context.Context, opts Options) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch strings.ToLower(opts.Provider) {
	case ProviderAnthropic:
		p = NewAnthropic(opts.APIKey, opts.Model)
	case ProviderGemini, "google":
		p, err = NewGemini(ctx, opts.APIKey, opts.Model)
	default:
		return nil, fmt.Errorf("unknown provider: %s", opts.Provider)
	}
	if err != nil {
		return nil, err
	}
	return WithRetry(p, opts.MaxRetries), nil
}

// Close releases provider resources when the provider holds any.
func Close(p Provider) error {
	if r, ok := p.(*retrying); ok {
		p = r.Provider
	}
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
