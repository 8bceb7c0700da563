package review

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coolbeans/citecheck/pkg/citation"
	"github.com/coolbeans/citecheck/pkg/normalize"
)

// Report is a batch review report over one or more footnotes.
type Report struct {
	Title       string    `json:"title"`
	GeneratedAt time.Time `json:"generated_at"`
	Sections    []Section `json:"sections"`
}

// Section groups one footnote's citations and decisions.
type Section struct {
	FootnoteNumber int                 `json:"footnote_number"`
	Warnings       []normalize.Warning `json:"warnings,omitempty"`
	Rows           []Row               `json:"rows"`
}

// Row pairs a citation with its routing decision.
type Row struct {
	Citation *citation.Citation `json:"citation"`
	Decision ReviewDecision     `json:"decision"`
}

// Totals counts the report's outcomes.
func (r *Report) Totals() (citations, approved, flagged, violations int) {
	for _, section := range r.Sections {
		for _, row := range section.Rows {
			citations++
			if row.Decision.Recommendation == Approve {
				approved++
			} else {
				flagged++
			}
			violations += len(row.Decision.Violations)
		}
	}
	return citations, approved, flagged, violations
}

// ToJSON serializes the report.
func (r *Report) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	return data, nil
}

// ToMarkdown generates a Markdown-formatted review report suitable for
// GitHub/GitLab rendering and PR comments.
func (r *Report) ToMarkdown() string {
	var markdownBuilder strings.Builder

	citations, approved, flagged, violations := r.Totals()

	badge := "`CLEAN`"
	if flagged > 0 {
		badge = "`REVIEW`"
	}
	title := r.Title
	if title == "" {
		title = "Citation Review Report"
	}
	markdownBuilder.WriteString(fmt.Sprintf("# %s %s\n\n", title, badge))

	// Summary table
	markdownBuilder.WriteString("## Summary\n\n")
	markdownBuilder.WriteString("| Metric | Value |\n")
	markdownBuilder.WriteString("|--------|-------|\n")
	markdownBuilder.WriteString(fmt.Sprintf("| **Footnotes** | %d |\n", len(r.Sections)))
	markdownBuilder.WriteString(fmt.Sprintf("| **Citations** | %d |\n", citations))
	markdownBuilder.WriteString(fmt.Sprintf("| **Approved** | %d |\n", approved))
	markdownBuilder.WriteString(fmt.Sprintf("| **Flagged** | %d |\n", flagged))
	markdownBuilder.WriteString(fmt.Sprintf("| **Violations** | %d |\n", violations))
	markdownBuilder.WriteString("\n")

	for _, section := range r.Sections {
		markdownBuilder.WriteString(fmt.Sprintf("## Footnote %d\n\n", section.FootnoteNumber))

		if len(section.Warnings) > 0 {
			markdownBuilder.WriteString("**Formatting Warnings:**\n\n")
			for _, warning := range section.Warnings {
				markdownBuilder.WriteString(fmt.Sprintf("- %s\n", warning.Message))
			}
			markdownBuilder.WriteString("\n")
		}

		markdownBuilder.WriteString("| # | Type | Confidence | Recommendation | Citation |\n")
		markdownBuilder.WriteString("|---|------|------------|----------------|----------|\n")
		for _, row := range section.Rows {
			markdownBuilder.WriteString(fmt.Sprintf("| %d | %s | %.2f | %s | %s |\n",
				row.Citation.Ordinal,
				row.Citation.Type,
				row.Decision.Confidence,
				recommendationBadge(row.Decision.Recommendation),
				escapeMarkdownTableCell(row.Citation.FullText)))
		}
		markdownBuilder.WriteString("\n")

		for _, row := range section.Rows {
			if len(row.Decision.Violations) == 0 {
				continue
			}
			markdownBuilder.WriteString(fmt.Sprintf("**Citation %d Violations:**\n\n", row.Citation.Ordinal))
			markdownBuilder.WriteString("| Severity | Rule | Message | Suggested Fix |\n")
			markdownBuilder.WriteString("|----------|------|---------|---------------|\n")
			for _, violation := range row.Decision.Violations {
				markdownBuilder.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
					violation.Severity,
					violation.RuleID,
					escapeMarkdownTableCell(violation.Message),
					escapeMarkdownTableCell(violation.SuggestedFix)))
			}
			markdownBuilder.WriteString("\n")
		}
	}

	return markdownBuilder.String()
}

// recommendationBadge converts a recommendation to a text badge for Markdown.
func recommendationBadge(recommendation Recommendation) string {
	switch recommendation {
	case Approve:
		return "`APPROVE`"
	case FlagForReview:
		return "`REVIEW`"
	default:
		return fmt.Sprintf("`%s`", recommendation)
	}
}

// escapeMarkdownTableCell escapes pipe characters in table cell content.
func escapeMarkdownTableCell(content string) string {
	return strings.ReplaceAll(content, "|", "\\|")
}
