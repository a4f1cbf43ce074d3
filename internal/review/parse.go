package review

import "strings"

const (
	// ReviewMarker introduces the feedback section of a model response.
	ReviewMarker = "REVIEW:"
	// OptimizedMarker separates the feedback from the rewritten code.
	OptimizedMarker = "OPTIMIZED CODE:"
	// NoOptimizedCode is used when the response carries no OptimizedMarker.
	NoOptimizedCode = "No optimized code provided."
)

// Parse splits a raw model response into review text and optimized code.
// It never fails: marker-free or empty input falls back to NoOptimizedCode.
func Parse(raw string) Result {
	before, after, found := strings.Cut(raw, OptimizedMarker)
	if !found {
		return Result{
			Review:        strings.TrimSpace(raw),
			OptimizedCode: NoOptimizedCode,
		}
	}

	review := strings.TrimSpace(before)
	review = strings.TrimSpace(strings.TrimPrefix(review, ReviewMarker))

	return Result{
		Review:        review,
		OptimizedCode: strings.TrimSpace(after),
	}
}

// StripFence removes a surrounding markdown code fence (```lang ... ```) from s.
// Text without a leading fence is returned trimmed but otherwise unchanged.
func StripFence(s string) string {
	text := strings.TrimSpace(s)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.SplitN(text, "\n", 2)
	if len(lines) < 2 {
		return strings.TrimSpace(strings.Trim(text, "`"))
	}
	text = lines[1]
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
