package rules

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/coolbeans/citecheck/pkg/citation"
)

// Check is a deterministic hand-written predicate, used where a single
// regex cannot express the condition. Checks share the Violation shape with
// catalog rules and compose with them under the engine's evaluate contract.
type Check interface {
	// ID identifies the check in violation output, in the same namespace
	// as rule ids.
	ID() string

	// Evaluate returns zero or more violations for the citation.
	Evaluate(cit *citation.Citation) []Violation
}

// DefaultChecks returns the built-in deterministic checks.
func DefaultChecks() []Check {
	return []Check{
		ParentheticalCapitalizationCheck{},
	}
}

// ParentheticalCapitalizationCheck flags explanatory parentheticals that
// open with an uppercase letter. A quoted excerpt is exempt because its
// internal capitalization reflects the source. The check yields at most one
// violation per parenthetical found.
type ParentheticalCapitalizationCheck struct{}

func (ParentheticalCapitalizationCheck) ID() string {
	return "check-parenthetical-capitalization"
}

func (c ParentheticalCapitalizationCheck) Evaluate(cit *citation.Citation) []Violation {
	var violations []Violation

	text := cit.FullText
	for i := 0; i < len(text); i++ {
		if text[i] != '(' {
			continue
		}
		end := strings.IndexByte(text[i+1:], ')')
		if end < 0 {
			break
		}
		content := text[i+1 : i+1+end]
		if c.fires(content) {
			violations = append(violations, Violation{
				RuleID:      c.ID(),
				CitationID:  cit.ID,
				Source:      SourceCheck,
				Severity:    SeverityMedium,
				Message:     "explanatory parenthetical should begin with a lowercase letter",
				MatchedSpan: "(" + content + ")",
			})
		}
		i += end + 1
	}

	return violations
}

// fires decides whether a single parenthetical's content violates the
// capitalization rule: the first non-whitespace character is an uppercase
// letter and not a quotation mark.
func (ParentheticalCapitalizationCheck) fires(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return false
	}

	first, _ := utf8.DecodeRuneInString(trimmed)
	switch first {
	case '"', '\'', '“', '‘':
		// Quoted excerpt: exempt.
		return false
	}
	return unicode.IsUpper(first)
}
