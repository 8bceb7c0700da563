package rules

import (
	"github.com/coolbeans/citecheck/pkg/citation"
)

// SkippedRule records a rule that could not be evaluated. A malformed rule
// never aborts validation of a citation or a batch.
type SkippedRule struct {
	RuleID string `json:"rule_id"`
	Reason string `json:"reason"`
}

// Engine evaluates a rule catalog and a set of deterministic checks against
// citations. Evaluation is a pure function of (citation, catalog): identical
// inputs always yield identical violation sets in stable sorted order.
// An engine is safe for concurrent use; rule compilation happens once at
// construction.
type Engine struct {
	catalog *Catalog
	checks  []Check
	skipped []SkippedRule
	broken  map[string]bool
}

// NewEngine builds an engine over the catalog and checks, compiling any
// rule the loader left uncompiled. Rules whose patterns do not compile are
// recorded and skipped at evaluation time. Passing no checks installs the
// built-in defaults; pass an explicit empty slice to run the catalog alone.
func NewEngine(catalog *Catalog, checks ...[]Check) *Engine {
	e := &Engine{
		catalog: catalog,
		checks:  DefaultChecks(),
		broken:  make(map[string]bool),
	}
	if len(checks) > 0 {
		e.checks = checks[0]
	}

	for i := range catalog.Rules {
		rule := &catalog.Rules[i]
		if rule.IsCompiled() {
			continue
		}
		if err := rule.Compile(); err != nil {
			e.skipped = append(e.skipped, SkippedRule{RuleID: rule.ID, Reason: err.Error()})
			e.broken[rule.ID] = true
		}
	}

	return e
}

// Skipped returns the rules the engine cannot evaluate.
func (e *Engine) Skipped() []SkippedRule {
	return e.skipped
}

// Evaluate runs every applicable rule and check against the citation.
// Rules are independent: no rule suppresses another, and all applicable
// rules run regardless of earlier matches. Violations come back sorted by
// severity then rule id; skipped holds the rules that failed to compile.
func (e *Engine) Evaluate(cit *citation.Citation) (violations []Violation, skipped []SkippedRule) {
	for i := range e.catalog.Rules {
		rule := &e.catalog.Rules[i]

		if e.broken[rule.ID] {
			continue
		}

		// A patternless rule is a declarative record with nothing to match.
		if rule.compiled == nil {
			continue
		}

		if !e.applies(rule, cit) {
			continue
		}

		if v, ok := e.evaluateRule(rule, cit); ok {
			violations = append(violations, v)
		}
	}

	for _, check := range e.checks {
		violations = append(violations, check.Evaluate(cit)...)
	}

	SortViolations(violations)
	return violations, e.skipped
}

// applies runs the rule's applicability filters: citation-type filter
// first, then the text-context regex.
func (e *Engine) applies(rule *Rule, cit *citation.Citation) bool {
	if len(rule.Applicability.CitationTypes) > 0 {
		found := false
		for _, t := range rule.Applicability.CitationTypes {
			if citation.Type(t) == cit.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if rule.Applicability.contextCompiled != nil &&
		!rule.Applicability.contextCompiled.MatchString(cit.FullText) {
		return false
	}

	return true
}

// evaluateRule applies the rule's condition to the citation text and builds
// the violation when the condition is violated.
func (e *Engine) evaluateRule(rule *Rule, cit *citation.Citation) (Violation, bool) {
	var fired bool
	var matchedSpan string

	switch rule.Condition {
	case ConditionMustContain:
		fired = !rule.compiled.MatchString(cit.FullText)
	case ConditionMustNotContain:
		if loc := rule.compiled.FindStringIndex(cit.FullText); loc != nil {
			fired = true
			matchedSpan = cit.FullText[loc[0]:loc[1]]
		}
	}

	if !fired {
		return Violation{}, false
	}

	return Violation{
		RuleID:       rule.ID,
		CitationID:   cit.ID,
		Source:       SourceRule,
		Severity:     rule.Severity,
		Message:      rule.Message,
		MatchedSpan:  matchedSpan,
		SuggestedFix: rule.SuggestedFix,
	}, true
}
