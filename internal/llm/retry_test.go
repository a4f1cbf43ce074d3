package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

type scriptedProvider struct {
	errs  []error
	calls int
}

func (s *scriptedProvider) Name() string  { return "scripted" }
func (s *scriptedProvider) Model() string { return "scripted-1" }

func (s *scriptedProvider) Generate(_ context.Context, _ Request) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	return "ok", nil
}

func fastBackoff(t *testing.T) {
	t.Helper()
	orig := baseBackoff
	baseBackoff = time.Millisecond
	t.Cleanup(func() { baseBackoff = orig })
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"google 429", &googleapi.Error{Code: http.StatusTooManyRequests}, true},
		{"google 503", &googleapi.Error{Code: http.StatusServiceUnavailable}, true},
		{"google 400", &googleapi.Error{Code: http.StatusBadRequest}, false},
		{"wrapped google 500", errors.Join(errors.New("ctx"), &googleapi.Error{Code: 500}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestWithRetry_RetriesTransientFailures(t *testing.T) {
	fastBackoff(t)
	sp := &scriptedProvider{errs: []error{
		&googleapi.Error{Code: http.StatusTooManyRequests},
		&googleapi.Error{Code: http.StatusBadGateway},
	}}

	p := WithRetry(sp, 2)
	text, err := p.Generate(context.Background(), Request{User: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, sp.calls)
	assert.Equal(t, "scripted", p.Name())
	assert.Equal(t, "scripted-1", p.Model())
}

func TestWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	fastBackoff(t)
	rateLimited := &googleapi.Error{Code: http.StatusTooManyRequests}
	sp := &scriptedProvider{errs: []error{rateLimited, rateLimited, rateLimited}}

	_, err := WithRetry(sp, 2).Generate(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, 3, sp.calls)
}

func TestWithRetry_DoesNotRetryPermanentFailures(t *testing.T) {
	fastBackoff(t)
	sp := &scriptedProvider{errs: []error{errors.New("invalid api key")}}

	_, err := WithRetry(sp, 5).Generate(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, 1, sp.calls)
}

func TestWithRetry_StopsOnContextCancel(t *testing.T) {
	orig := baseBackoff
	baseBackoff = time.Hour
	t.Cleanup(func() { baseBackoff = orig })

	sp := &scriptedProvider{errs: []error{&googleapi.Error{Code: 500}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WithRetry(sp, 3).Generate(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sp.calls)
}

func TestWithRetry_ZeroIsPassthrough(t *testing.T) {
	sp := &scriptedProvider{}
	assert.Same(t, Provider(sp), WithRetry(sp, 0))
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Options{Provider: "llama"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestNew_GeminiRequiresKey(t *testing.T) {
	_, err := New(context.Background(), Options{Provider: ProviderGemini})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestNew_Anthropic(t *testing.T) {
	p, err := New(context.Background(), Options{Provider: "Anthropic", APIKey: "k", MaxRetries: 1})
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, p.Name())
	assert.NoError(t, Close(p))
}
