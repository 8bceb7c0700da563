// Package rules evaluates a declarative rule catalog and a library of
// deterministic checks against classified citations.
package rules

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/google/uuid"
)

// Severity ranks how serious a violation is.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Rank orders severities for sorting and weighting. Higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is one of the four defined severities.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// Condition selects how a rule's pattern is interpreted.
type Condition string

const (
	// ConditionMustContain fires a violation when the pattern does NOT
	// match the citation text.
	ConditionMustContain Condition = "must_contain"

	// ConditionMustNotContain fires a violation when the pattern DOES
	// match the citation text.
	ConditionMustNotContain Condition = "must_not_contain"
)

// Valid reports whether c is a defined condition.
func (c Condition) Valid() bool {
	return c == ConditionMustContain || c == ConditionMustNotContain
}

// Applicability filters which citations a rule is evaluated against.
// Empty filters match everything.
type Applicability struct {
	// CitationTypes limits the rule to the listed citation types.
	CitationTypes []string `yaml:"citation_types,omitempty" json:"citation_types,omitempty"`

	// TextContext is a regex the citation text must match for the rule
	// to apply.
	TextContext string `yaml:"text_context,omitempty" json:"text_context,omitempty"`

	// Compiled context regex (populated by Compile)
	contextCompiled *regexp.Regexp
}

// Rule is one declarative validation rule from the catalog.
type Rule struct {
	ID            string        `yaml:"id" json:"id"`
	Category      string        `yaml:"category" json:"category"`
	Pattern       string        `yaml:"pattern" json:"pattern"`
	Condition     Condition     `yaml:"condition" json:"condition"`
	Applicability Applicability `yaml:"applicability,omitempty" json:"applicability,omitempty"`
	Message       string        `yaml:"message" json:"message"`
	Severity      Severity      `yaml:"severity" json:"severity"`
	SuggestedFix  string        `yaml:"suggested_fix,omitempty" json:"suggested_fix,omitempty"`

	// Compiled pattern (populated by Compile)
	compiled *regexp.Regexp
}

// Compile compiles the rule's pattern and applicability regexes.
// Returns an error if any pattern fails to compile. A patternless rule
// compiles trivially; it is a declarative record with nothing to match.
func (r *Rule) Compile() error {
	if r.Pattern != "" {
		compiled, err := regexp.Compile(r.Pattern)
		if err != nil {
			return fmt.Errorf("compiling rule %q pattern %q: %w", r.ID, r.Pattern, err)
		}
		r.compiled = compiled
	}

	if r.Applicability.TextContext != "" {
		ctx, err := regexp.Compile(r.Applicability.TextContext)
		if err != nil {
			return fmt.Errorf("compiling rule %q text context %q: %w", r.ID, r.Applicability.TextContext, err)
		}
		r.Applicability.contextCompiled = ctx
	}

	return nil
}

// IsCompiled returns true if the rule has been compiled.
func (r *Rule) IsCompiled() bool {
	return r.compiled != nil
}

// Validate checks that the rule has all required fields. The pattern is
// optional; a rule that carries one must pair it with a valid condition.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if (r.Pattern != "" || r.Condition != "") && !r.Condition.Valid() {
		return fmt.Errorf("rule %q: condition must be must_contain or must_not_contain", r.ID)
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("rule %q: severity must be CRITICAL, HIGH, MEDIUM or LOW", r.ID)
	}
	if r.Message == "" {
		return fmt.Errorf("rule %q: message is required", r.ID)
	}
	return nil
}

// ViolationSource distinguishes catalog-rule violations from
// deterministic-check violations. Both share the Violation shape.
type ViolationSource string

const (
	SourceRule  ViolationSource = "rule"
	SourceCheck ViolationSource = "check"
)

// Violation records one rule or check firing against one citation.
type Violation struct {
	RuleID       string          `json:"rule_id"`
	CitationID   uuid.UUID       `json:"citation_id"`
	Source       ViolationSource `json:"source"`
	Severity     Severity        `json:"severity"`
	Message      string          `json:"message"`
	MatchedSpan  string          `json:"matched_span,omitempty"`
	SuggestedFix string          `json:"suggested_fix,omitempty"`
}

// SortViolations orders violations by severity, most severe first, then by
// rule id. Reports stay reproducible across runs.
func SortViolations(violations []Violation) {
	sort.SliceStable(violations, func(i, j int) bool {
		ri, rj := violations[i].Severity.Rank(), violations[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		return violations[i].RuleID < violations[j].RuleID
	})
}
