package scoring

import (
	"math"
	"strings"
)

// Score bounds.
const (
	MinScore = 0.0
	MaxScore = 10.0
)

// Scorer computes the keyword quality score (0-10) for a review.
// It does not look at the model's self-reported metrics.
type Scorer struct {
	weights Weights
}

// NewScorer returns a Scorer using the built-in keyword tables.
func NewScorer() *Scorer {
	return NewScorerWithWeights(DefaultWeights())
}

// NewScorerWithWeights returns a Scorer using w. Callers should Validate w first.
func NewScorerWithWeights(w Weights) *Scorer {
	return &Scorer{weights: w.normalized()}
}

// Weights returns the tables the scorer runs with.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score scans the lowercased review and optimized code. Each positive or
// negative keyword present adds its weight once; the total is clamped to
// [0,10] and rounded to one decimal.
func (s *Scorer) Score(review, optimizedCode string) float64 {
	text := strings.ToLower(review + " " + optimizedCode)

	score := s.weights.Base
	var covered []span
	for _, k := range s.weights.Positive {
		spans := occurrences(text, k.Phrase)
		if len(spans) == 0 {
			continue
		}
		score += k.Weight
		covered = append(covered, spans...)
	}
	for _, k := range s.weights.Negative {
		if presentOutside(text, k.Phrase, covered) {
			score += k.Weight
		}
	}

	return round1(clamp(score))
}

type span struct{ start, end int }

func (sp span) contains(o span) bool {
	return sp.start <= o.start && o.end <= sp.end
}

// occurrences returns every (possibly overlapping) match of phrase in text.
func occurrences(text, phrase string) []span {
	if phrase == "" {
		return nil
	}
	var out []span
	for from := 0; from < len(text); {
		idx := strings.Index(text[from:], phrase)
		if idx < 0 {
			break
		}
		start := from + idx
		out = append(out, span{start, start + len(phrase)})
		from = start + 1
	}
	return out
}

// presentOutside reports whether phrase occurs at least once outside every
// covered span, so "bug" inside "no bugs" does not count against the code.
func presentOutside(text, phrase string, covered []span) bool {
	for _, o := range occurrences(text, phrase) {
		shadowed := false
		for _, c := range covered {
			if c.contains(o) {
				shadowed = true
				break
			}
		}
		if !shadowed {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	return math.Max(MinScore, math.Min(MaxScore, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
