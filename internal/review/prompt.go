package review

import (
	"path/filepath"
	"strings"
)

// SupportedExtensions lists the source file extensions accepted for upload.
var SupportedExtensions = []string{
	"py", "js", "java", "cpp", "c", "html", "css", "ts", "go", "php", "rb", "htm",
}

// IsSupportedFile reports whether name carries one of SupportedExtensions.
func IsSupportedFile(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return false
	}
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

const systemPrompt = `You are a professional software engineer and senior code reviewer.`

// buildPrompt constructs the system and user prompts for a code review.
func buildPrompt(code string) (system string, user string) {
	system = systemPrompt

	var sb strings.Builder
	sb.WriteString(`Review the following code for:
- Bugs and errors
- Code readability
- Efficiency
- Maintainability
- Best practices

Provide the review in detail, and at the end of the review include numeric scores (1-10)
for each of these categories in this format:
Readability: x/10
Efficiency: x/10
Maintainability: x/10
Bugs: x/10

Then provide the optimized version of the same code below.

Format exactly like this:
`)
	sb.WriteString(ReviewMarker)
	sb.WriteString("\n(your detailed feedback)\n\n")
	sb.WriteString(OptimizedMarker)
	sb.WriteString("\n(improved version)\n\n")
	sb.WriteString("--- Code Start ---\n")
	sb.WriteString(code)
	sb.WriteString("\n--- Code End ---\n")
	user = sb.String()
	return
}
