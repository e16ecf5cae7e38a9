package grader

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Numeric tolerance: answers differing by formatting (fractions, trailing
// zeros, decimal commas) compare equal; genuinely different values do not.
const (
	absEpsilon = 1e-6
	relEpsilon = 1e-3
)

// ParseNumber parses a numeric answer in the forms datasets and models
// produce: decimal point or comma, simple fractions, percent suffix,
// thousands separators inside integers.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)

	if num, den, ok := splitFraction(s); ok {
		n, okN := parsePlainNumber(num)
		d, okD := parsePlainNumber(den)
		if !okN || !okD || d == 0 {
			return 0, false
		}
		v := n / d
		if percent {
			v /= 100
		}
		return v, true
	}

	v, ok := parsePlainNumber(s)
	if !ok {
		return 0, false
	}
	if percent {
		v /= 100
	}
	return v, true
}

func splitFraction(s string) (string, string, bool) {
	idx := strings.Index(s, "/")
	if idx <= 0 || idx >= len(s)-1 {
		return "", "", false
	}
	return s[:idx], s[idx+1:], true
}

func parsePlainNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	// "1,5" is a decimal comma; "1,500" is a thousands separator.
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		parts := strings.SplitN(s, ",", 2)
		if len(parts[1]) != 3 {
			s = parts[0] + "." + parts[1]
		} else {
			s = parts[0] + parts[1]
		}
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// NumbersEqual compares under combined absolute and relative tolerance.
func NumbersEqual(a, b float64) bool {
	diff := math.Abs(a - b)
	if diff <= absEpsilon {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return diff <= relEpsilon*scale
}

// CanonicalExpression reduces a symbolic answer to a comparable string:
// lowercase, whitespace and explicit multiplication stripped, LaTeX
// fractions and roots rewritten, decimal commas normalized, and top-level
// '+'-separated terms sorted. It is a string-level canonicalization, not a
// CAS: expressions it cannot identify compare unequal.
func CanonicalExpression(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSuffix(s, "$")

	s = rewriteFrac(s)
	s = strings.ReplaceAll(s, `\sqrt`, "sqrt")
	s = strings.ReplaceAll(s, `\cdot`, "")
	s = strings.ReplaceAll(s, `\times`, "")
	s = strings.ReplaceAll(s, `\pi`, "pi")
	s = strings.ReplaceAll(s, `\left`, "")
	s = strings.ReplaceAll(s, `\right`, "")

	var b strings.Builder
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '*':
			continue
		case ',':
			b.WriteRune('.')
		case '{':
			b.WriteRune('(')
		case '}':
			b.WriteRune(')')
		default:
			b.WriteRune(r)
		}
	}
	s = b.String()

	// Trailing zeros after a decimal point: 0.50 == 0.5.
	if v, ok := parsePlainNumber(s); ok {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}

	terms := splitTopLevel(s, '+')
	if len(terms) > 1 {
		sort.Strings(terms)
		s = strings.Join(terms, "+")
	}
	return s
}

// rewriteFrac turns \frac{a}{b} into (a)/(b), handling nesting.
func rewriteFrac(s string) string {
	const marker = `\frac`
	for {
		idx := strings.Index(s, marker)
		if idx < 0 {
			return s
		}
		rest := s[idx+len(marker):]
		num, afterNum, ok := takeBraced(rest)
		if !ok {
			return s
		}
		den, afterDen, ok := takeBraced(afterNum)
		if !ok {
			return s
		}
		s = s[:idx] + wrapOperand(num) + "/" + wrapOperand(den) + afterDen
	}
}

// wrapOperand parenthesizes a fraction operand only when it contains an
// operator or a nested LaTeX command, so \frac{5}{6} canonicalizes the
// same as 5/6.
func wrapOperand(s string) string {
	if strings.ContainsAny(s, `+-*/^ \`) {
		return "(" + s + ")"
	}
	return s
}

func takeBraced(s string) (string, string, bool) {
	s = strings.TrimLeft(s, " ")
	if len(s) == 0 || s[0] != '{' {
		return "", "", false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[1:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}

func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 && i > last {
				out = append(out, s[last:i])
				last = i + 1
			}
		}
	}
	if last < len(s) {
		out = append(out, s[last:])
	}
	return out
}

// CanonicalChoice normalizes a multiple-choice answer to a single Latin
// letter, mapping the Cyrillic option labels datasets use.
func CanonicalChoice(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.Trim(s, ".)(")
	if s == "" {
		return "", false
	}

	cyrillic := map[string]string{"А": "A", "Б": "B", "В": "C", "Г": "D", "Д": "E"}
	if latin, ok := cyrillic[s]; ok {
		return latin, true
	}
	if len(s) == 1 && s[0] >= 'A' && s[0] <= 'E' {
		return s, true
	}
	return "", false
}
