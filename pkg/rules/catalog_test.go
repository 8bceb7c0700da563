package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog() error: %v", err)
	}
	if len(catalog.Rules) == 0 {
		t.Fatal("default catalog has no rules")
	}
	if catalog.Name != "default" {
		t.Errorf("catalog name = %q, want default", catalog.Name)
	}

	if errs := ValidateCatalog(catalog); len(errs) != 0 {
		t.Errorf("default catalog fails validation:\n%s", errs.Error())
	}

	for _, rule := range catalog.Rules {
		if !rule.IsCompiled() {
			t.Errorf("rule %q did not compile", rule.ID)
		}
		if err := rule.Validate(); err != nil {
			t.Errorf("rule %q invalid: %v", rule.ID, err)
		}
	}
}

func TestParseCatalogKeepsMalformedRules(t *testing.T) {
	catalog, err := ParseCatalog([]byte(`
name: test
version: 1.0.0
rules:
  - id: bad-regex
    pattern: '(['
    condition: must_contain
    message: broken
    severity: LOW
  - id: good-rule
    pattern: 'x'
    condition: must_contain
    message: fine
    severity: LOW
`))
	if err != nil {
		t.Fatalf("ParseCatalog() error: %v", err)
	}
	if len(catalog.Rules) != 2 {
		t.Fatalf("rules = %d, want 2 (malformed rule stays for skip reporting)", len(catalog.Rules))
	}
	if catalog.Rules[0].IsCompiled() {
		t.Error("malformed rule reported as compiled")
	}
	if !catalog.Rules[1].IsCompiled() {
		t.Error("well-formed rule did not compile")
	}
}

func TestParseCatalogRejectsBadYAML(t *testing.T) {
	if _, err := ParseCatalog([]byte("rules: [unclosed")); err == nil {
		t.Error("ParseCatalog accepted malformed YAML")
	}
}

func TestLoadDirectoryMergesInNameOrder(t *testing.T) {
	dir := t.TempDir()

	writeCatalog(t, filepath.Join(dir, "b-second.yaml"), `
rules:
  - id: rule-b
    pattern: 'b'
    condition: must_contain
    message: b
    severity: LOW
`)
	writeCatalog(t, filepath.Join(dir, "a-first.yaml"), `
rules:
  - id: rule-a
    pattern: 'a'
    condition: must_contain
    message: a
    severity: LOW
`)
	writeCatalog(t, filepath.Join(dir, "ignored.txt"), "not yaml")

	catalog, err := LoadDirectory(dir)
	if err != nil {
		t.Fatalf("LoadDirectory() error: %v", err)
	}
	if len(catalog.Rules) != 2 {
		t.Fatalf("rules = %d, want 2", len(catalog.Rules))
	}
	if catalog.Rules[0].ID != "rule-a" || catalog.Rules[1].ID != "rule-b" {
		t.Errorf("merge order = [%s %s], want [rule-a rule-b]", catalog.Rules[0].ID, catalog.Rules[1].ID)
	}
}

func TestValidateCatalog(t *testing.T) {
	catalog := &Catalog{Rules: []Rule{
		{
			// Uppercase id, broken pattern, unknown condition and severity,
			// no message, bogus citation type.
			ID:        "Bad_ID",
			Pattern:   "([",
			Condition: Condition("contains"),
			Severity:  Severity("URGENT"),
			Applicability: Applicability{
				CitationTypes: []string{"treaty"},
			},
		},
		{
			ID:        "dup",
			Pattern:   "x",
			Condition: ConditionMustContain,
			Message:   "m",
			Severity:  SeverityLow,
		},
		{
			ID:        "dup",
			Pattern:   "x",
			Condition: ConditionMustContain,
			Message:   "m",
			Severity:  SeverityLow,
		},
	}}

	errs := ValidateCatalog(catalog)
	wantFields := []string{
		"rules[0].id",
		"rules[0].pattern",
		"rules[0].condition",
		"rules[0].severity",
		"rules[0].message",
		"rules[0].applicability.citation_types[0]",
		"rules[2].id",
	}
	for _, field := range wantFields {
		found := false
		for _, e := range errs {
			if e.Field == field {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing validation error for %s in:\n%s", field, errs.Error())
		}
	}
	if !strings.Contains(errs.Error(), "validation errors") {
		t.Errorf("aggregate error lacks count header: %s", errs.Error())
	}
}

func TestValidateCatalogAcceptsPatternlessRule(t *testing.T) {
	catalog := &Catalog{Rules: []Rule{
		{
			ID:       "style-guidance",
			Category: "style",
			Message:  "prefer the house citation order",
			Severity: SeverityLow,
		},
	}}

	if errs := ValidateCatalog(catalog); len(errs) != 0 {
		t.Errorf("patternless rule rejected:\n%s", errs.Error())
	}
	if err := catalog.Rules[0].Validate(); err != nil {
		t.Errorf("Validate() on patternless rule: %v", err)
	}
	if err := catalog.Rules[0].Compile(); err != nil {
		t.Errorf("Compile() on patternless rule: %v", err)
	}
}

func writeCatalog(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
