package llm

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiText(t *testing.T) {
	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		want    string
		wantErr error
	}{
		{name: "nil response", resp: nil, wantErr: ErrNoText},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}, wantErr: ErrNoText},
		{
			name:    "nil content",
			resp:    &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}},
			wantErr: ErrNoText,
		},
		{
			name: "joins text parts",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text("REVIEW: ok\n"), genai.Text("OPTIMIZED CODE:\nx")}},
			}}},
			want: "REVIEW: ok\nOPTIMIZED CODE:\nx",
		},
		{
			name: "first candidate only",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
				{Content: &genai.Content{Parts: []genai.Part{genai.Text("first")}}},
				{Content: &genai.Content{Parts: []genai.Part{genai.Text("second")}}},
			}},
			want: "first",
		},
		{
			name: "non-text parts only",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}},
			}}},
			wantErr: ErrNoText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := geminiText(tt.resp)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewGemini_DefaultModel(t *testing.T) {
	g, err := NewGemini(context.Background(), "test-key", "")
	require.NoError(t, err)
	defer g.Close()

	assert.Equal(t, DefaultGeminiModel, g.Model())
	assert.Equal(t, ProviderGemini, g.Name())
}
