// Package review turns source code into an LLM review with metrics and a score.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joescharf/codeguardian/internal/llm"
	"github.com/joescharf/codeguardian/internal/scoring"
)

var (
	// ErrEmptyCode is returned when there is nothing to review.
	ErrEmptyCode = errors.New("please enter or upload some code first")
	// ErrUnsupportedFile is returned for uploads outside SupportedExtensions.
	ErrUnsupportedFile = errors.New("unsupported file type")
)

// errorPrefix starts the review text of a degraded result.
const errorPrefix = "⚠️ Error while reviewing code: "

// Result is a completed (or degraded) review.
type Result struct {
	Review        string         `json:"review"`
	OptimizedCode string         `json:"optimized_code"`
	Metrics       Metrics        `json:"metrics"`
	Score         float64        `json:"score"`
	Rating        scoring.Rating `json:"rating"`
	Degraded      bool           `json:"degraded"`
	Error         string         `json:"error,omitempty"`
	Provider      string         `json:"provider,omitempty"`
	Model         string         `json:"model,omitempty"`
	ReviewedAt    time.Time      `json:"reviewed_at"`
}

// Config holds review service settings.
type Config struct {
	Timeout   time.Duration
	MaxTokens int
}

// DefaultConfig returns the default review settings.
func DefaultConfig() Config {
	return Config{
		Timeout:   60 * time.Second,
		MaxTokens: 4096,
	}
}

// Service runs the review pipeline against a provider.
type Service struct {
	provider llm.Provider
	scorer   *scoring.Scorer
	cfg      Config
	logger   *slog.Logger
}

// NewService creates a review service. A nil scorer uses the default weights
// and a nil logger uses slog.Default().
func NewService(p llm.Provider, scorer *scoring.Scorer, cfg Config, logger *slog.Logger) *Service {
	if scorer == nil {
		scorer = scoring.NewScorer()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{provider: p, scorer: scorer, cfg: cfg, logger: logger}
}

// Scorer returns the scorer used for results.
func (s *Service) Scorer() *scoring.Scorer {
	return s.scorer
}

// Review sends code to the provider and assembles the result. Blank code is
// rejected with ErrEmptyCode before any call. A provider failure does not
// return an error: it yields a Degraded result with zeroed metrics.
func (s *Service) Review(ctx context.Context, code string) (*Result, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrEmptyCode
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	system, user := buildPrompt(code)
	start := time.Now()
	raw, err := s.provider.Generate(ctx, llm.Request{
		System:    system,
		User:      user,
		MaxTokens: s.cfg.MaxTokens,
	})
	if err != nil {
		s.logger.Warn("review call failed",
			"provider", s.provider.Name(), "model", s.provider.Model(),
			"duration", time.Since(start), "error", err)
		return s.degraded(err), nil
	}

	res := s.Assemble(raw)
	s.logger.Info("review complete",
		"provider", s.provider.Name(), "model", s.provider.Model(),
		"duration", time.Since(start), "score", res.Score)
	return res, nil
}

// Assemble builds a Result from a raw model response.
func (s *Service) Assemble(raw string) *Result {
	res := Parse(raw)
	res.Metrics = ExtractMetrics(res.Review)
	s.finish(&res)
	return &res
}

func (s *Service) degraded(err error) *Result {
	res := Result{
		Review:   errorPrefix + err.Error(),
		Degraded: true,
		Error:    err.Error(),
	}
	s.finish(&res)
	return &res
}

func (s *Service) finish(res *Result) {
	res.Score = s.scorer.Score(res.Review, res.OptimizedCode)
	res.Rating = scoring.Rate(res.Score)
	res.Provider = s.provider.Name()
	res.Model = s.provider.Model()
	res.ReviewedAt = time.Now().UTC()
}

// ValidateUpload checks an uploaded file name and content.
func ValidateUpload(name string, content []byte) error {
	if !IsSupportedFile(name) {
		return fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedFile, name, strings.Join(SupportedExtensions, ", "))
	}
	if strings.TrimSpace(string(content)) == "" {
		return ErrEmptyCode
	}
	return nil
}
