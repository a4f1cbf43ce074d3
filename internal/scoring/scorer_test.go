package scoring

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_WorkedExample(t *testing.T) {
	s := NewScorer()

	review := "Good, efficient, no bugs found.\nReadability: 9/10\nEfficiency: 8/10"
	code := "def f(): pass"

	// efficient (+1.3) and no bugs (+1.3); "bug" sits inside "no bugs".
	assert.Equal(t, 7.6, s.Score(review, code))
}

func TestScore_BaseWhenNoKeywords(t *testing.T) {
	s := NewScorer()
	assert.Equal(t, 5.0, s.Score("", ""))
	assert.Equal(t, 5.0, s.Score("lorem ipsum", "x = 1"))
}

func TestScore_PresenceNotFrequency(t *testing.T) {
	s := NewScorer()
	once := s.Score("clean", "")
	many := s.Score(strings.Repeat("clean clean ", 20), "")
	assert.Equal(t, 6.0, once)
	assert.Equal(t, once, many)
}

func TestScore_NegativeKeywords(t *testing.T) {
	s := NewScorer()

	tests := []struct {
		name   string
		review string
		want   float64
	}{
		{"bug", "there is a bug here", 3.5},
		{"error and issue", "an error and an issue", 2.5},
		{"inefficient also matches efficient", "this loop is inefficient", 5.0},
		{"not working", "the parser is not working", 3.5},
		{"bug outside no bugs still counts", "no bugs in parse, but a bug in emit", 4.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Score(tt.review, ""))
		})
	}
}

func TestScore_ClampsToRange(t *testing.T) {
	s := NewScorer()

	allPositive := "optimized efficient readable maintainable clean good practice modular no bugs works improved"
	assert.Equal(t, MaxScore, s.Score(allPositive, ""))

	allNegative := "bug error redundant complex bad issue not working"
	assert.Equal(t, MinScore, s.Score(allNegative, ""))
}

func TestScore_CaseInsensitive(t *testing.T) {
	s := NewScorer()
	assert.Equal(t, s.Score("optimized", ""), s.Score("OPTIMIZED", ""))
}

func TestScore_OptimizedCodeContributes(t *testing.T) {
	s := NewScorer()
	assert.Equal(t, 6.5, s.Score("", "# optimized version"))
}

func TestScore_Deterministic(t *testing.T) {
	s := NewScorer()
	review := "Readable and modular, but one redundant branch."
	code := "func main() {}"
	assert.Equal(t, s.Score(review, code), s.Score(review, code))
}

func TestScore_MonotonicUnderPositiveSentences(t *testing.T) {
	s := NewScorer()
	review := "There is an error in the loop and a bad name."

	prev := s.Score(review, "")
	for _, k := range DefaultWeights().Positive {
		review += " The code is " + k.Phrase + "."
		next := s.Score(review, "")
		assert.GreaterOrEqual(t, next, prev, "adding %q lowered the score", k.Phrase)
		prev = next
	}
}

func TestScore_DivergesFromSelfReportedMetrics(t *testing.T) {
	s := NewScorer()
	review := "Clean, readable, modular and efficient code that works. Bugs: 2/10"
	assert.GreaterOrEqual(t, s.Score(review, ""), 8.0)
}

func TestScorer_CustomWeights(t *testing.T) {
	w := Weights{
		Base:     2,
		Positive: []Keyword{{Phrase: "Idiomatic", Weight: 3}},
		Negative: []Keyword{{Phrase: "panic", Weight: -1}},
	}
	require.NoError(t, w.Validate())

	s := NewScorerWithWeights(w)
	assert.Equal(t, 5.0, s.Score("idiomatic go", ""))
	assert.Equal(t, 4.0, s.Score("idiomatic but may panic", ""))
	assert.Equal(t, "idiomatic", s.Weights().Positive[0].Phrase)
}

func TestWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(w *Weights)
		wantErr string
	}{
		{"defaults", func(w *Weights) {}, ""},
		{"base out of range", func(w *Weights) { w.Base = 11 }, "out of range"},
		{"empty positive", func(w *Weights) { w.Positive[0].Phrase = " " }, "empty phrase"},
		{"non-positive weight", func(w *Weights) { w.Positive[0].Weight = 0 }, "weight > 0"},
		{"non-negative weight", func(w *Weights) { w.Negative[0].Weight = 0.5 }, "weight < 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := DefaultWeights()
			tt.mutate(&w)
			err := w.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	content := `base: 4
positive:
  - phrase: well tested
    weight: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	w, err := LoadWeights(path)
	require.NoError(t, err)
	assert.Equal(t, 4.0, w.Base)
	require.Len(t, w.Positive, 1)
	assert.Equal(t, "well tested", w.Positive[0].Phrase)
	assert.Equal(t, DefaultWeights().Negative, w.Negative, "missing table keeps defaults")
}

func TestLoadWeights_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadWeights(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("negative:\n  - phrase: slow\n    weight: 1\n"), 0o644))
	_, err = LoadWeights(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weight < 0")
}

func TestRate(t *testing.T) {
	assert.Equal(t, RatingExcellent, Rate(8.0))
	assert.Equal(t, RatingExcellent, Rate(10))
	assert.Equal(t, RatingGood, Rate(7.9))
	assert.Equal(t, RatingGood, Rate(5.0))
	assert.Equal(t, RatingNeedsImprovement, Rate(4.9))
	assert.Equal(t, RatingNeedsImprovement, Rate(0))
}
