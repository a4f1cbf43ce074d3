package scoring

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Keyword is a phrase and the weight it contributes when present.
type Keyword struct {
	Phrase string  `yaml:"phrase" json:"phrase"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// Weights is the full keyword heuristic: a base score plus ordered
// positive and negative keyword tables.
type Weights struct {
	Base     float64   `yaml:"base" json:"base"`
	Positive []Keyword `yaml:"positive" json:"positive"`
	Negative []Keyword `yaml:"negative" json:"negative"`
}

// DefaultWeights returns the built-in keyword tables.
func DefaultWeights() Weights {
	return Weights{
		Base: 5.0,
		Positive: []Keyword{
			{"optimized", 1.5},
			{"efficient", 1.3},
			{"readable", 1.2},
			{"maintainable", 1.2},
			{"clean", 1.0},
			{"good practice", 1.0},
			{"modular", 1.1},
			{"no bugs", 1.3},
			{"works", 1.0},
			{"improved", 1.1},
		},
		Negative: []Keyword{
			{"bug", -1.5},
			{"error", -1.2},
			{"inefficient", -1.3},
			{"redundant", -1.0},
			{"complex", -1.0},
			{"bad", -1.1},
			{"issue", -1.3},
			{"not working", -1.5},
		},
	}
}

// Validate checks that every phrase is non-empty and that weights carry the
// sign of their table.
func (w Weights) Validate() error {
	if w.Base < MinScore || w.Base > MaxScore {
		return fmt.Errorf("base score %.1f out of range [%.0f, %.0f]", w.Base, MinScore, MaxScore)
	}
	for _, k := range w.Positive {
		if strings.TrimSpace(k.Phrase) == "" {
			return fmt.Errorf("positive keyword with empty phrase")
		}
		if k.Weight <= 0 {
			return fmt.Errorf("positive keyword %q must have a weight > 0 (got %.2f)", k.Phrase, k.Weight)
		}
	}
	for _, k := range w.Negative {
		if strings.TrimSpace(k.Phrase) == "" {
			return fmt.Errorf("negative keyword with empty phrase")
		}
		if k.Weight >= 0 {
			return fmt.Errorf("negative keyword %q must have a weight < 0 (got %.2f)", k.Phrase, k.Weight)
		}
	}
	return nil
}

// normalized lowercases every phrase so matching runs on lowercased text.
func (w Weights) normalized() Weights {
	out := Weights{
		Base:     w.Base,
		Positive: make([]Keyword, len(w.Positive)),
		Negative: make([]Keyword, len(w.Negative)),
	}
	for i, k := range w.Positive {
		out.Positive[i] = Keyword{Phrase: strings.ToLower(k.Phrase), Weight: k.Weight}
	}
	for i, k := range w.Negative {
		out.Negative[i] = Keyword{Phrase: strings.ToLower(k.Phrase), Weight: k.Weight}
	}
	return out
}

// LoadWeights reads a YAML weights file. Tables missing from the file keep
// their defaults; a missing base keeps the default base.
func LoadWeights(path string) (Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, fmt.Errorf("read weights file: %w", err)
	}

	var raw struct {
		Base     *float64  `yaml:"base"`
		Positive []Keyword `yaml:"positive"`
		Negative []Keyword `yaml:"negative"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Weights{}, fmt.Errorf("parse weights file %s: %w", path, err)
	}

	w := DefaultWeights()
	if raw.Base != nil {
		w.Base = *raw.Base
	}
	if raw.Positive != nil {
		w.Positive = raw.Positive
	}
	if raw.Negative != nil {
		w.Negative = raw.Negative
	}
	if err := w.Validate(); err != nil {
		return Weights{}, fmt.Errorf("invalid weights file %s: %w", path, err)
	}
	return w, nil
}
