// Package grader extracts a model's final answer from free-form output and
// compares it to the reference under dataset-specific equivalence rules.
// Grading is a pure function of its inputs: same response, same example,
// same verdict.
package grader

import (
	"fmt"
	"strings"

	"github.com/Technolog796/DeathMath/internal/dataset"
)

// Verdict is the outcome of grading one response.
type Verdict struct {
	Correct   bool
	Extracted string
	// Diagnostic explains why the comparison passed or failed.
	Diagnostic string
	// DataFault marks a malformed reference answer: a dataset defect, not
	// a model failure, excluded from the accuracy denominator.
	DataFault bool
}

// Grade scores raw model output against an example's reference answer.
// It never fails on malformed model output; unparseable output grades
// incorrect with a diagnostic.
func Grade(response string, ex *dataset.Example, kind dataset.Kind) Verdict {
	if ex == nil {
		return Verdict{DataFault: true, Diagnostic: "nil example"}
	}

	reference := strings.TrimSpace(ex.Answer)
	if reference == "" && strings.TrimSpace(ex.Canonical) == "" {
		return Verdict{DataFault: true, Diagnostic: "empty reference answer"}
	}

	extracted, ok := ExtractAnswer(response)
	if !ok {
		return Verdict{Diagnostic: "no answer found"}
	}

	switch kind {
	case dataset.KindChoice:
		return gradeChoice(extracted, reference)
	case dataset.KindNumeric:
		return gradeNumeric(extracted, reference)
	default:
		return gradeSymbolic(extracted, ex)
	}
}

func gradeNumeric(extracted, reference string) Verdict {
	refNum, ok := ParseNumber(reference)
	if !ok {
		return Verdict{
			Extracted:  extracted,
			DataFault:  true,
			Diagnostic: fmt.Sprintf("reference %q is not numeric", reference),
		}
	}

	gotNum, ok := ParseNumber(extracted)
	if !ok {
		// The answer span may carry units or prose; retry on its last
		// numeric token.
		token, tokOk := lastExpressionToken(extracted)
		if tokOk {
			gotNum, ok = ParseNumber(token)
		}
		if !ok {
			return Verdict{
				Extracted:  extracted,
				Diagnostic: fmt.Sprintf("extracted %q is not numeric", extracted),
			}
		}
	}

	if NumbersEqual(refNum, gotNum) {
		return Verdict{
			Correct:    true,
			Extracted:  extracted,
			Diagnostic: fmt.Sprintf("%v ≈ %v within tolerance", gotNum, refNum),
		}
	}
	return Verdict{
		Extracted:  extracted,
		Diagnostic: fmt.Sprintf("%v != %v", gotNum, refNum),
	}
}

func gradeSymbolic(extracted string, ex *dataset.Example) Verdict {
	reference := strings.TrimSpace(ex.Canonical)
	if reference == "" {
		reference = strings.TrimSpace(ex.Answer)
	}

	// Numeric comparison first: "1/3" and "0,3333" should match even
	// though their canonical strings differ.
	if refNum, ok := ParseNumber(reference); ok {
		if gotNum, ok := ParseNumber(extracted); ok {
			if NumbersEqual(refNum, gotNum) {
				return Verdict{
					Correct:    true,
					Extracted:  extracted,
					Diagnostic: fmt.Sprintf("%v ≈ %v within tolerance", gotNum, refNum),
				}
			}
			return Verdict{
				Extracted:  extracted,
				Diagnostic: fmt.Sprintf("%v != %v", gotNum, refNum),
			}
		}
	}

	refCanon := CanonicalExpression(reference)
	gotCanon := CanonicalExpression(extracted)
	if refCanon == "" {
		return Verdict{
			Extracted:  extracted,
			DataFault:  true,
			Diagnostic: fmt.Sprintf("reference %q canonicalizes to nothing", reference),
		}
	}

	if refCanon == gotCanon {
		return Verdict{
			Correct:    true,
			Extracted:  extracted,
			Diagnostic: fmt.Sprintf("canonical forms match: %q", refCanon),
		}
	}
	return Verdict{
		Extracted:  extracted,
		Diagnostic: fmt.Sprintf("canonical %q != %q", gotCanon, refCanon),
	}
}

func gradeChoice(extracted, reference string) Verdict {
	refLetter, ok := CanonicalChoice(reference)
	if !ok {
		return Verdict{
			Extracted:  extracted,
			DataFault:  true,
			Diagnostic: fmt.Sprintf("reference %q is not a choice letter", reference),
		}
	}

	gotLetter, ok := CanonicalChoice(extracted)
	if !ok {
		// Look for a lone letter anywhere in the extracted span.
		for _, f := range strings.Fields(extracted) {
			if l, fok := CanonicalChoice(f); fok {
				gotLetter, ok = l, true
				break
			}
		}
	}
	if !ok {
		return Verdict{
			Extracted:  extracted,
			Diagnostic: fmt.Sprintf("no choice letter in %q", extracted),
		}
	}

	if gotLetter == refLetter {
		return Verdict{Correct: true, Extracted: extracted, Diagnostic: "choice " + gotLetter}
	}
	return Verdict{
		Extracted:  extracted,
		Diagnostic: fmt.Sprintf("choice %s != %s", gotLetter, refLetter),
	}
}
