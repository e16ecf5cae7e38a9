package grader

import (
	"strings"
)

// answerMarkers are final-answer delimiters models use, checked against
// the lowercased response. The last occurrence wins.
var answerMarkers = []string{
	"ответ:",
	"ответ -",
	"итоговый ответ:",
	"final answer:",
	"the answer is",
	"answer:",
}

// ExtractAnswer locates the model's final answer inside free-form output.
// It prefers an explicit answer marker, then a \boxed{} span, then falls
// back to the last numeric or expression token. Returns ok=false when the
// text holds nothing answer-shaped.
func ExtractAnswer(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	if span, ok := lastMarkedSpan(text); ok {
		if boxed, ok := lastBoxedSpan(span); ok {
			return boxed, true
		}
		return span, true
	}
	if boxed, ok := lastBoxedSpan(text); ok {
		return boxed, true
	}
	return lastExpressionToken(text)
}

func lastMarkedSpan(text string) (string, bool) {
	lower := strings.ToLower(text)

	best := -1
	bestLen := 0
	for _, m := range answerMarkers {
		if idx := strings.LastIndex(lower, m); idx > best {
			best = idx
			bestLen = len(m)
		}
	}
	if best < 0 {
		return "", false
	}

	span := text[best+bestLen:]
	// The answer ends at the first blank line after the marker.
	if idx := strings.Index(span, "\n\n"); idx >= 0 {
		span = span[:idx]
	}
	span = strings.TrimSpace(span)
	span = strings.TrimRight(span, ".")
	if span == "" {
		return "", false
	}
	return span, true
}

// lastBoxedSpan extracts the content of the last \boxed{...}, balancing
// nested braces.
func lastBoxedSpan(text string) (string, bool) {
	const marker = `\boxed{`
	idx := strings.LastIndex(text, marker)
	if idx < 0 {
		return "", false
	}

	depth := 1
	start := idx + len(marker)
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				span := strings.TrimSpace(text[start:i])
				if span == "" {
					return "", false
				}
				return span, true
			}
		}
	}
	return "", false
}

// lastExpressionToken returns the last run of digits, fraction slashes,
// signs, and separators in the text.
func lastExpressionToken(text string) (string, bool) {
	end := -1
	start := -1
	for i := len(text) - 1; i >= 0; i-- {
		if isExprByte(text[i]) {
			end = i + 1
			start = i
			for start > 0 && (isExprByte(text[start-1]) || text[start-1] == '-') {
				start--
			}
			break
		}
	}
	if start < 0 {
		return "", false
	}

	token := strings.Trim(text[start:end], ".,")
	if token == "" || token == "-" || token == "/" {
		return "", false
	}
	return token, true
}

func isExprByte(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.' || c == ',' || c == '/'
}
