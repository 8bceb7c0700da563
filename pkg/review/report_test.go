package review

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coolbeans/citecheck/pkg/citation"
	"github.com/coolbeans/citecheck/pkg/normalize"
	"github.com/coolbeans/citecheck/pkg/rules"
)

func sampleReport() *Report {
	approved := &citation.Citation{
		ID:         uuid.NewSHA1(uuid.NameSpaceURL, []byte("approved")),
		Ordinal:    1,
		FullText:   "42 U.S.C. § 1983.",
		Type:       citation.TypeStatute,
		Confidence: 1.0,
	}
	flagged := &citation.Citation{
		ID:         uuid.NewSHA1(uuid.NameSpaceURL, []byte("flagged")),
		Ordinal:    2,
		FullText:   "See supra | note.",
		Type:       citation.TypeUnknown,
		Confidence: 0.0,
	}

	return &Report{
		Title:       "Brief Footnotes",
		GeneratedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Sections: []Section{
			{
				FootnoteNumber: 7,
				Warnings: []normalize.Warning{
					{Kind: normalize.MarkerItalic, Message: "unbalanced italic marker"},
				},
				Rows: []Row{
					{
						Citation: approved,
						Decision: ReviewDecision{
							CitationID:     approved.ID,
							Recommendation: Approve,
							Confidence:     1.0,
						},
					},
					{
						Citation: flagged,
						Decision: ReviewDecision{
							CitationID:     flagged.ID,
							Recommendation: FlagForReview,
							Confidence:     0.0,
							Violations: []rules.Violation{
								{
									RuleID:       "supra-infra-note",
									CitationID:   flagged.ID,
									Severity:     rules.SeverityHigh,
									Message:      "supra and infra references must name a note number",
									SuggestedFix: "add \"note N\" after supra or infra",
								},
							},
						},
					},
				},
			},
		},
	}
}

func TestReportTotals(t *testing.T) {
	citations, approved, flagged, violations := sampleReport().Totals()
	if citations != 2 || approved != 1 || flagged != 1 || violations != 1 {
		t.Errorf("Totals() = (%d, %d, %d, %d), want (2, 1, 1, 1)", citations, approved, flagged, violations)
	}
}

func TestReportToMarkdown(t *testing.T) {
	markdown := sampleReport().ToMarkdown()

	for _, want := range []string{
		"# Brief Footnotes `REVIEW`",
		"## Summary",
		"| **Citations** | 2 |",
		"| **Flagged** | 1 |",
		"## Footnote 7",
		"unbalanced italic marker",
		"`APPROVE`",
		"**Citation 2 Violations:**",
		"| HIGH | supra-infra-note |",
	} {
		if !strings.Contains(markdown, want) {
			t.Errorf("markdown missing %q:\n%s", want, markdown)
		}
	}

	// Pipe characters in citation text must not break the table.
	if !strings.Contains(markdown, `See supra \| note.`) {
		t.Error("pipe in citation text not escaped")
	}
}

func TestReportCleanBadge(t *testing.T) {
	report := sampleReport()
	report.Sections[0].Rows = report.Sections[0].Rows[:1]

	if !strings.Contains(report.ToMarkdown(), "`CLEAN`") {
		t.Error("all-approved report should carry the CLEAN badge")
	}
}

func TestReportToJSON(t *testing.T) {
	data, err := sampleReport().ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error: %v", err)
	}

	var decoded Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if decoded.Title != "Brief Footnotes" || len(decoded.Sections) != 1 {
		t.Errorf("decoded report = %+v", decoded)
	}
}
