package review

import (
	"regexp"
	"strconv"
)

const (
	// DefaultMetricValue is assigned when a metric is not mentioned.
	DefaultMetricValue = 5
	minMetricValue     = 1
	maxMetricValue     = 10
)

// Metrics holds the model's self-reported 1-10 sub-scores.
// A degraded result carries all zeros.
type Metrics struct {
	Readability     int `json:"readability"`
	Efficiency      int `json:"efficiency"`
	Maintainability int `json:"maintainability"`
	Bugs            int `json:"bugs"`
}

// MetricPattern ties a metric name to the stem used to find it in free text.
type MetricPattern struct {
	Name string
	Stem string
	re   *regexp.Regexp
}

// metricPattern compiles "<stem><filler><1-2 digits>". The filler is any run
// of non-digits on the same line, so "no bugs found.\nReadability: 9" does not
// attribute the readability score to bugs.
func metricPattern(name, stem string) MetricPattern {
	return MetricPattern{
		Name: name,
		Stem: stem,
		re:   regexp.MustCompile(`(?i)` + stem + `[^\d\n]*(\d{1,2})`),
	}
}

// MetricPatterns is the ordered extraction table.
var MetricPatterns = []MetricPattern{
	metricPattern("readability", "readability"),
	metricPattern("efficiency", "efficienc"),
	metricPattern("maintainability", "maintain"),
	metricPattern("bugs", "bugs?"),
}

// DefaultMetrics returns the "mentioned nowhere" metric set.
func DefaultMetrics() Metrics {
	return Metrics{
		Readability:     DefaultMetricValue,
		Efficiency:      DefaultMetricValue,
		Maintainability: DefaultMetricValue,
		Bugs:            DefaultMetricValue,
	}
}

// ExtractMetrics finds the first numeric mention of each metric in reviewText.
// Values are clamped to [1,10]; unmatched metrics keep DefaultMetricValue.
func ExtractMetrics(reviewText string) Metrics {
	m := DefaultMetrics()
	for _, p := range MetricPatterns {
		match := p.re.FindStringSubmatch(reviewText)
		if match == nil {
			continue
		}
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		m.set(p.Name, clampMetric(n))
	}
	return m
}

// Get returns the value for a metric name, or 0 for an unknown name.
func (m Metrics) Get(name string) int {
	switch name {
	case "readability":
		return m.Readability
	case "efficiency":
		return m.Efficiency
	case "maintainability":
		return m.Maintainability
	case "bugs":
		return m.Bugs
	default:
		return 0
	}
}

func (m *Metrics) set(name string, v int) {
	switch name {
	case "readability":
		m.Readability = v
	case "efficiency":
		m.Efficiency = v
	case "maintainability":
		m.Maintainability = v
	case "bugs":
		m.Bugs = v
	}
}

func clampMetric(n int) int {
	return max(minMetricValue, min(n, maxMetricValue))
}
