package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractMetrics_WorkedExample(t *testing.T) {
	review := "Good, efficient, no bugs found.\nReadability: 9/10\nEfficiency: 8/10"

	m := ExtractMetrics(review)
	assert.Equal(t, 9, m.Readability)
	assert.Equal(t, 8, m.Efficiency)
	assert.Equal(t, DefaultMetricValue, m.Maintainability)
	assert.Equal(t, DefaultMetricValue, m.Bugs, `"no bugs found" carries no number`)
}

func TestExtractMetrics_Defaults(t *testing.T) {
	assert.Equal(t, DefaultMetrics(), ExtractMetrics(""))
	assert.Equal(t, DefaultMetrics(), ExtractMetrics("The code looks fine overall."))
	assert.Equal(t, Metrics{5, 5, 5, 5}, DefaultMetrics())
}

func TestExtractMetrics_Phrasing(t *testing.T) {
	tests := []struct {
		name   string
		review string
		want   Metrics
	}{
		{
			name:   "template format",
			review: "Readability: 7/10\nEfficiency: 6/10\nMaintainability: 8/10\nBugs: 3/10",
			want:   Metrics{7, 6, 8, 3},
		},
		{
			name:   "prose",
			review: "The readability score is 7. Overall efficiency rating 4.\nEasy to maintain, I'd say 9.\nOne bug, so 2.",
			want:   Metrics{7, 4, 9, 2},
		},
		{
			name:   "case insensitive",
			review: "READABILITY - 6\nEFFICIENCY = 5\nMAINTAINABILITY 4\nBUGS 10",
			want:   Metrics{6, 5, 4, 10},
		},
		{
			name:   "stem tolerates suffixes",
			review: "Efficiency-wise: 7",
			want:   Metrics{5, 7, 5, 5},
		},
		{
			name:   "efficient is not a stem match",
			review: "Efficient: 7",
			want:   Metrics{5, 5, 5, 5},
		},
		{
			name:   "first match wins",
			review: "Readability: 3/10\nLater readability: 9/10",
			want:   Metrics{3, 5, 5, 5},
		},
		{
			name:   "markdown bold",
			review: "**Readability:** 8/10\n**Bugs:** 7/10",
			want:   Metrics{8, 5, 5, 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractMetrics(tt.review))
		})
	}
}

func TestExtractMetrics_Clamps(t *testing.T) {
	tests := []struct {
		review string
		want   int
	}{
		{"Readability: 00/10", 1},
		{"Readability: 0/10", 1},
		{"Readability: 15/10", 10},
		{"Readability: 99", 10},
		{"Readability: 100/10", 10},
		{"Readability: 1", 1},
		{"Readability: 10", 10},
	}
	for _, tt := range tests {
		t.Run(tt.review, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractMetrics(tt.review).Readability)
		})
	}
}

func TestExtractMetrics_DivergesFromScore(t *testing.T) {
	review := "Clean, readable, modular and efficient code that works. Bugs: 2/10"
	assert.Equal(t, 2, ExtractMetrics(review).Bugs)
}

func TestMetricsGet(t *testing.T) {
	m := Metrics{Readability: 1, Efficiency: 2, Maintainability: 3, Bugs: 4}
	for i, p := range MetricPatterns {
		assert.Equal(t, i+1, m.Get(p.Name))
	}
	assert.Equal(t, 0, m.Get("style"))
}
