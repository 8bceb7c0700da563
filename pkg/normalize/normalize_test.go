package normalize

import (
	"strings"
	"testing"
)

func TestNormalizeMergesAdjacentRuns(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "italic runs separated by space",
			input: "*See** infra*",
			want:  "*See infra*",
		},
		{
			name:  "italic runs with no separator",
			input: "*See**infra*",
			want:  "*Seeinfra*",
		},
		{
			name:  "bold runs with no separator",
			input: "**bold****text**",
			want:  "**boldtext**",
		},
		{
			name:  "small-caps runs with no separator",
			input: "[SC]small[/SC][SC]caps[/SC]",
			want:  "[SC]smallcaps[/SC]",
		},
		{
			name:  "three italic runs collapse to one",
			input: "*a**b**c*",
			want:  "*abc*",
		},
		{
			name:  "separate runs with content between stay separate",
			input: "*See* note *infra*",
			want:  "*See* note *infra*",
		},
		{
			name:  "explicit close-open pair with space between runs",
			input: "*See* *infra*",
			want:  "*See infra*",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, warnings := Normalize(tt.input)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if len(warnings) != 0 {
				t.Errorf("Normalize(%q) produced unexpected warnings: %v", tt.input, warnings)
			}
		})
	}
}

func TestNormalizeRelocatesTrailingSpace(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "trailing space moves outside close marker",
			input: "*supra *note",
			want:  "*supra* note",
		},
		{
			name:  "trailing space inside small-caps",
			input: "[SC]Smith [/SC]& Jones",
			want:  "[SC]Smith[/SC] & Jones",
		},
		{
			name:  "already canonical text unchanged",
			input: "*supra* note 12",
			want:  "*supra* note 12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Normalize(tt.input)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain text with no markers",
		"*See** infra*",
		"*See**infra*",
		"**bold****text**",
		"[SC]small[/SC][SC]caps[/SC]",
		"*supra *note",
		"See *Smith v. Jones*, 347 U.S. 483 (1954).",
		"*a **b** c*",
		"* *note",
		"unbalanced *italic with no close",
		"stray close[/SC] marker",
	}

	for _, input := range inputs {
		once, _ := Normalize(input)
		twice, _ := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: first %q, second %q", input, once, twice)
		}
	}
}

func TestNormalizeUnbalancedPassesThrough(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "open italic never closed", input: "*See infra note 3"},
		{name: "stray small-caps close", input: "Smith[/SC] v. Jones"},
		{name: "open bold never closed", input: "**emphasis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, warnings := Normalize(tt.input)
			if got != tt.input {
				t.Errorf("Normalize(%q) modified unbalanced text: got %q", tt.input, got)
			}
			if len(warnings) == 0 {
				t.Errorf("Normalize(%q) produced no warning for unbalanced markers", tt.input)
			}
		})
	}
}

func TestNormalizeNestedKinds(t *testing.T) {
	// Different marker kinds may nest; same-kind runs still merge inside.
	input := "*case name **with bold** tail*"
	got, warnings := Normalize(input)
	if got != input {
		t.Errorf("Normalize(%q) = %q, want unchanged", input, got)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
}

func TestOpenAt(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		offset int
		want   []MarkerKind
	}{
		{
			name:   "inside italic run",
			text:   "*See infra* note",
			offset: 5,
			want:   []MarkerKind{MarkerItalic},
		},
		{
			name:   "after italic run closed",
			text:   "*See infra* note",
			offset: 12,
			want:   nil,
		},
		{
			name:   "inside small-caps",
			text:   "[SC]Author[/SC], Title",
			offset: 7,
			want:   []MarkerKind{MarkerSmallCaps},
		},
		{
			name:   "nested bold inside italic",
			text:   "*a **b** c*",
			offset: 6,
			want:   []MarkerKind{MarkerItalic, MarkerBold},
		},
		{
			name:   "offset zero",
			text:   "*abc*",
			offset: 0,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OpenAt(tt.text, tt.offset)
			if len(got) != len(tt.want) {
				t.Fatalf("OpenAt(%q, %d) = %v, want %v", tt.text, tt.offset, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("OpenAt(%q, %d)[%d] = %v, want %v", tt.text, tt.offset, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNormalizePreservesPlainText(t *testing.T) {
	inputs := []string{
		"See 42 U.S.C. § 1983 (2018).",
		"Smith v. Jones, 347 U.S. 483, 490 (1954) (discussing the issue).",
		"Id. at 491; see also infra note 12.",
	}
	for _, input := range inputs {
		got, warnings := Normalize(input)
		if got != input {
			t.Errorf("Normalize(%q) = %q, want unchanged", input, got)
		}
		if len(warnings) != 0 {
			t.Errorf("Normalize(%q) warnings = %v, want none", input, warnings)
		}
	}
}

func TestNormalizeCollapsesSeparatorWhitespace(t *testing.T) {
	// The separating whitespace between merged runs collapses to one space
	// and is not doubled when the run content already carries one.
	got, _ := Normalize("*See * *infra*")
	if strings.Contains(got, "  ") {
		t.Errorf("Normalize produced a double space: %q", got)
	}
}
