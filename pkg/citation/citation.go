// Package citation defines the citation data model and the classifier that
// assigns a type and structured fields to each segmented footnote unit.
package citation

import (
	"fmt"

	"github.com/google/uuid"
)

// Type classifies the kind of citation found in a footnote.
type Type string

const (
	TypeCase           Type = "case"
	TypeStatute        Type = "statute"
	TypeBook           Type = "book"
	TypeJournalArticle Type = "journal_article"
	TypeCrossReference Type = "cross_reference"
	TypeUnknown        Type = "unknown"
)

// CrossRefKind distinguishes the short-form citation shapes.
type CrossRefKind string

const (
	CrossRefID    CrossRefKind = "id"
	CrossRefSupra CrossRefKind = "supra"
	CrossRefInfra CrossRefKind = "infra"
)

// Citation is one extracted citation unit. Citations are immutable after
// creation; rule evaluation and routing attach derived results that
// reference a citation by ID rather than mutating it.
type Citation struct {
	ID             uuid.UUID `json:"id"`
	FootnoteNumber int       `json:"footnote_number"`
	Ordinal        int       `json:"ordinal"`

	// FullText is the unit text, formatting markers included.
	FullText  string `json:"full_text"`
	ByteStart int    `json:"byte_start"`
	ByteEnd   int    `json:"byte_end"`

	// Signal is the introductory word or phrase, when present.
	Signal string `json:"signal,omitempty"`

	Type       Type    `json:"type"`
	Confidence float64 `json:"confidence"`

	// Type-specific structured fields; exactly one is set for a typed
	// citation, none for unknown.
	Case     *CaseFields     `json:"case,omitempty"`
	Statute  *StatuteFields  `json:"statute,omitempty"`
	Book     *BookFields     `json:"book,omitempty"`
	Journal  *JournalFields  `json:"journal,omitempty"`
	CrossRef *CrossRefFields `json:"cross_ref,omitempty"`
}

// CaseFields holds the parsed components of a case citation. Page and Year
// may be empty: classification tolerates their absence.
type CaseFields struct {
	Parties  string `json:"parties"`
	Volume   string `json:"volume"`
	Reporter string `json:"reporter"`
	Page     string `json:"page,omitempty"`
	PinCite  string `json:"pin_cite,omitempty"`
	Year     string `json:"year,omitempty"`
}

// StatuteFields holds the parsed components of a statutory citation.
// Section is captured verbatim, nested subsection markers included.
type StatuteFields struct {
	Title   string `json:"title,omitempty"`
	Code    string `json:"code"`
	Section string `json:"section"`
}

// BookFields holds the parsed components of a book citation.
type BookFields struct {
	Author string `json:"author,omitempty"`
	Title  string `json:"title,omitempty"`
	Year   string `json:"year,omitempty"`
}

// JournalFields holds the parsed components of a journal article citation.
type JournalFields struct {
	Volume  string `json:"volume"`
	Journal string `json:"journal"`
	Page    string `json:"page,omitempty"`
	Year    string `json:"year,omitempty"`
}

// CrossRefFields holds the back-reference carried by a short-form citation.
// TargetNote is the footnote number named by supra/infra; TargetOrdinal is
// the ordinal of the previous citation an "id." resolves to within its own
// footnote. Zero means unresolved.
type CrossRefFields struct {
	Kind          CrossRefKind `json:"kind"`
	TargetNote    int          `json:"target_note,omitempty"`
	TargetOrdinal int          `json:"target_ordinal,omitempty"`
}

// newID derives a stable citation ID from the unit's identity, so repeated
// runs over the same footnote produce the same IDs.
func newID(footnoteNumber, ordinal int, fullText string) uuid.UUID {
	name := fmt.Sprintf("citecheck:%d:%d:%s", footnoteNumber, ordinal, fullText)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name))
}
