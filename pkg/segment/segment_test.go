package segment

import (
	"strings"
	"testing"

	"github.com/coolbeans/citecheck/pkg/normalize"
)

func TestSegmentEmptyText(t *testing.T) {
	if units := Segment("", 1); len(units) != 0 {
		t.Errorf("Segment(\"\") = %d units, want 0", len(units))
	}
	if units := Segment("   ", 1); len(units) != 0 {
		t.Errorf("Segment(whitespace) = %d units, want 0", len(units))
	}
}

func TestSegmentSingleUnit(t *testing.T) {
	text := "Smith v. Jones, 347 U.S. 483 (1954)."
	units := Segment(text, 7)

	if len(units) != 1 {
		t.Fatalf("Segment(%q) = %d units, want 1", text, len(units))
	}
	unit := units[0]
	if unit.Text != text {
		t.Errorf("unit text = %q, want %q", unit.Text, text)
	}
	if unit.FootnoteNumber != 7 || unit.Ordinal != 1 {
		t.Errorf("unit envelope = footnote %d ordinal %d, want 7/1", unit.FootnoteNumber, unit.Ordinal)
	}
}

func TestSegmentSemicolonStringCite(t *testing.T) {
	text := "See Smith v. Jones, 347 U.S. 483 (1954); Doe v. Roe, 410 U.S. 113 (1973); 42 U.S.C. § 1983."
	units := Segment(text, 3)

	if len(units) != 3 {
		t.Fatalf("Segment = %d units, want 3: %+v", len(units), units)
	}
	if !strings.HasSuffix(units[0].Text, ";") {
		t.Errorf("boundary punctuation should trail the preceding unit, got %q", units[0].Text)
	}
	if units[0].Signal != "See" {
		t.Errorf("first unit signal = %q, want %q", units[0].Signal, "See")
	}
	if units[1].Signal != "" {
		t.Errorf("second unit signal = %q, want empty", units[1].Signal)
	}
	if !strings.HasPrefix(units[2].Text, "42 U.S.C.") {
		t.Errorf("third unit = %q, want statute", units[2].Text)
	}
}

func TestSegmentSemicolonInsideParenthetical(t *testing.T) {
	text := "Smith v. Jones, 347 U.S. 483 (1954) (noting the rule; and its limits)."
	units := Segment(text, 1)

	if len(units) != 1 {
		t.Fatalf("Segment = %d units, want 1 (delimiter inside parenthetical must not split): %+v", len(units), units)
	}
}

func TestSegmentSemicolonInsideQuote(t *testing.T) {
	text := `Smith v. Jones, 347 U.S. 483 (1954) ("The rule; however, admits exceptions.").`
	units := Segment(text, 1)

	if len(units) != 1 {
		t.Fatalf("Segment = %d units, want 1 (delimiter inside quote must not split): %+v", len(units), units)
	}
}

func TestSegmentCommaHeuristic(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{
			name: "comma before signal splits",
			text: "Smith v. Jones, 347 U.S. 483 (1954), see also Doe v. Roe, 410 U.S. 113 (1973).",
			want: 2,
		},
		{
			name: "comma before short form splits",
			text: "Smith v. Jones, 347 U.S. 483 (1954), supra note 12.",
			want: 2,
		},
		{
			name: "ordinary sentence comma does not split",
			text: "Smith v. Jones, 347 U.S. 483, 490 (1954).",
			want: 1,
		},
		{
			name: "comma between case name parties does not split",
			text: "United States v. Carolene Products Co., 304 U.S. 144 (1938).",
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units := Segment(tt.text, 1)
			if len(units) != tt.want {
				t.Errorf("Segment(%q) = %d units, want %d", tt.text, len(units), tt.want)
			}
		})
	}
}

func TestSegmentShortFormUnits(t *testing.T) {
	text := "Id. at 491; see supra note 3; infra note 14."
	units := Segment(text, 9)

	if len(units) != 3 {
		t.Fatalf("Segment = %d units, want 3: %+v", len(units), units)
	}
	if !strings.HasPrefix(units[0].Text, "Id.") {
		t.Errorf("first unit = %q, want id. short form", units[0].Text)
	}
	if units[1].Signal != "see" {
		t.Errorf("second unit signal = %q, want %q", units[1].Signal, "see")
	}
}

func TestSegmentSignalPreservesMarkers(t *testing.T) {
	// A signal inside an italic run keeps its marker on the unit text.
	text := "*See infra* note 111."
	units := Segment(text, 111)

	if len(units) != 1 {
		t.Fatalf("Segment = %d units, want 1", len(units))
	}
	if !strings.HasPrefix(units[0].Text, "*") {
		t.Errorf("unit text = %q, want leading italic marker preserved", units[0].Text)
	}
	if units[0].Signal != "See" {
		t.Errorf("signal = %q, want %q", units[0].Signal, "See")
	}
}

func TestSegmentStraddlingMarkerSynthesized(t *testing.T) {
	// The italic run spans the split point; each fragment must come out
	// independently well-formed.
	text := "*See Smith v. Jones; Doe v. Roe* at 10."
	units := Segment(text, 2)

	if len(units) != 2 {
		t.Fatalf("Segment = %d units, want 2: %+v", len(units), units)
	}
	left, right := units[0].Text, units[1].Text
	if strings.Count(left, "*")%2 != 0 {
		t.Errorf("left fragment has unbalanced markers: %q", left)
	}
	if strings.Count(right, "*")%2 != 0 {
		t.Errorf("right fragment has unbalanced markers: %q", right)
	}
	if !strings.HasSuffix(left, "*") {
		t.Errorf("left fragment = %q, want synthesized closing marker", left)
	}
	if !strings.HasPrefix(right, "*") {
		t.Errorf("right fragment = %q, want synthesized opening marker", right)
	}
}

func TestSegmentReconstruction(t *testing.T) {
	texts := []string{
		"See Smith v. Jones, 347 U.S. 483 (1954); Doe v. Roe, 410 U.S. 113 (1973); 42 U.S.C. § 1983.",
		"Id. at 491; see supra note 3; infra note 14.",
		"*See infra* note 111.",
		"Smith v. Jones, 347 U.S. 483 (1954) (noting the rule; and its limits).",
		"A sentence with, frankly, no citations at all.",
		"*See Smith v. Jones; Doe v. Roe* at 10.",
	}

	for _, text := range texts {
		normalized, _ := normalize.Normalize(text)
		units := Segment(normalized, 1)
		if len(units) == 0 {
			t.Fatalf("Segment(%q) yielded no units", normalized)
		}

		var sb strings.Builder
		sb.WriteString(normalized[:units[0].Start])
		for i, unit := range units {
			sb.WriteString(normalized[unit.Start:unit.End])
			if i+1 < len(units) {
				sb.WriteString(normalized[unit.End:units[i+1].Start])
			}
		}
		sb.WriteString(normalized[units[len(units)-1].End:])

		if sb.String() != normalized {
			t.Errorf("reconstruction mismatch for %q:\n got %q", normalized, sb.String())
		}
	}
}

func TestSegmentDeterministic(t *testing.T) {
	text := "See Smith v. Jones, 347 U.S. 483 (1954); id. at 490; cf. 42 U.S.C. § 1983."
	first := Segment(text, 5)
	for run := 0; run < 10; run++ {
		again := Segment(text, 5)
		if len(again) != len(first) {
			t.Fatalf("run %d: %d units, want %d", run, len(again), len(first))
		}
		for i := range again {
			if again[i] != first[i] {
				t.Errorf("run %d unit %d = %+v, want %+v", run, i, again[i], first[i])
			}
		}
	}
}

func TestSegmentOrdinalsSequential(t *testing.T) {
	text := "See one; two; three; four."
	units := Segment(text, 1)
	for i, unit := range units {
		if unit.Ordinal != i+1 {
			t.Errorf("unit %d ordinal = %d, want %d", i, unit.Ordinal, i+1)
		}
	}
}
