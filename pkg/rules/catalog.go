package rules

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRulesFS embed.FS

// Catalog is an ordered list of rules, loaded once and treated as read-only
// for the duration of a run.
type Catalog struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
	Rules   []Rule `yaml:"rules" json:"rules"`
}

// DefaultCatalog returns the embedded default rule catalog, compiled.
func DefaultCatalog() (*Catalog, error) {
	data, err := defaultRulesFS.ReadFile("default_rules.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses a YAML catalog document and compiles its rules.
// A rule that fails to compile stays in the catalog uncompiled; the engine
// skips it at evaluation time rather than failing the load.
func ParseCatalog(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parsing catalog YAML: %w", err)
	}

	for i := range catalog.Rules {
		// Best effort; compile errors surface as skip records later.
		_ = catalog.Rules[i].Compile()
	}

	return &catalog, nil
}

// LoadFile loads a single catalog file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	catalog, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return catalog, nil
}

// LoadDirectory loads and merges all YAML catalog files from a directory.
// Files merge in name order so the merged rule order is deterministic.
func LoadDirectory(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("checking directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	merged := &Catalog{Name: filepath.Base(dir)}
	var loadErrors []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		catalog, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			loadErrors = append(loadErrors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		merged.Rules = append(merged.Rules, catalog.Rules...)
	}

	if len(loadErrors) > 0 {
		return nil, fmt.Errorf("errors loading catalogs: %s", strings.Join(loadErrors, "; "))
	}

	return merged, nil
}

// ValidationError is one schema violation in a catalog, with field context.
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return "no errors"
	}
	if len(errs) == 1 {
		return errs[0].Error()
	}
	messages := make([]string, len(errs))
	for i, err := range errs {
		messages[i] = err.Error()
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(errs), strings.Join(messages, "\n  - "))
}

// ValidateCatalog performs comprehensive validation of a catalog, returning
// descriptive errors for all failures rather than stopping at the first.
func ValidateCatalog(catalog *Catalog) ValidationErrors {
	var errs ValidationErrors

	seen := make(map[string]bool)
	for i := range catalog.Rules {
		rule := &catalog.Rules[i]
		field := fmt.Sprintf("rules[%d]", i)

		if rule.ID == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: "required field is missing",
			})
		} else {
			if !isValidRuleID(rule.ID) {
				errs = append(errs, ValidationError{
					Field:   field + ".id",
					Message: "must be lowercase alphanumeric with hyphens, starting with a letter",
					Value:   rule.ID,
				})
			}
			if seen[rule.ID] {
				errs = append(errs, ValidationError{
					Field:   field + ".id",
					Message: "duplicate rule id",
					Value:   rule.ID,
				})
			}
			seen[rule.ID] = true
		}

		if rule.Pattern != "" {
			if err := rule.Compile(); err != nil {
				errs = append(errs, ValidationError{
					Field:   field + ".pattern",
					Message: "does not compile",
					Value:   rule.Pattern,
				})
			}
		}

		// The pattern is optional; a rule that carries one, or names a
		// condition, must name a valid condition.
		if (rule.Pattern != "" || rule.Condition != "") && !rule.Condition.Valid() {
			errs = append(errs, ValidationError{
				Field:   field + ".condition",
				Message: "must be must_contain or must_not_contain",
				Value:   string(rule.Condition),
			})
		}

		if !rule.Severity.Valid() {
			errs = append(errs, ValidationError{
				Field:   field + ".severity",
				Message: "must be CRITICAL, HIGH, MEDIUM or LOW",
				Value:   string(rule.Severity),
			})
		}

		if rule.Message == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".message",
				Message: "required field is missing",
			})
		}

		for j, t := range rule.Applicability.CitationTypes {
			if !validCitationTypes[t] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.applicability.citation_types[%d]", field, j),
					Message: "invalid citation type",
					Value:   t,
				})
			}
		}
	}

	return errs
}

var validCitationTypes = map[string]bool{
	"case": true, "statute": true, "book": true,
	"journal_article": true, "cross_reference": true, "unknown": true,
}

func isValidRuleID(id string) bool {
	if len(id) == 0 {
		return false
	}
	if id[0] < 'a' || id[0] > 'z' {
		return false
	}
	for _, c := range id[1:] {
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-') {
			return false
		}
	}
	return true
}
