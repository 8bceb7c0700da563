// Package segment splits normalized footnote text into ordered citation
// units. A footnote is frequently a "string cite": several citations joined
// by semicolons (and occasionally commas) into one sentence. Segmentation
// finds the unit boundaries without disturbing formatting markers, quoted
// excerpts, or parentheticals, and never fails: the worst case for
// unrecognizable text is a single unit covering the whole footnote.
package segment

import (
	"regexp"
	"strings"

	"github.com/coolbeans/citecheck/pkg/normalize"
)

// Unit is one raw citation span cut from a footnote. Start and End are byte
// offsets into the normalized footnote text; concatenating unit spans in
// ordinal order with the separator text between them reconstructs the input
// exactly. Text additionally carries synthesized markers when a formatting
// run straddles a unit boundary, so every unit is independently well-formed.
type Unit struct {
	FootnoteNumber int
	Ordinal        int
	Text           string
	Start          int
	End            int
	Signal         string
}

var (
	// signalPattern matches introductory signal words at the start of a
	// unit, longest alternatives first so "See also" wins over "See".
	signalPattern = regexp.MustCompile(`(?i)^(see, e\.g\.,|see generally|see also|but see|but cf\.|e\.g\.,|e\.g\.|accord,?|compare|contra|cf\.|see)(\s|$)`)

	// shortFormPattern matches terminal short-form citation shapes.
	shortFormPattern = regexp.MustCompile(`(?i)^(id\.|supra\s+note\s+\d+|infra\s+note\s+\d+)`)
)

// Segment splits normalized footnote text into ordered citation units.
// Empty text yields no units; text with no recognizable split point yields
// exactly one unit covering the entire footnote.
func Segment(text string, footnoteNumber int) []Unit {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	boundaries := splitPoints(text)

	var units []Unit
	start := 0
	for _, boundary := range append(boundaries, len(text)) {
		if boundary <= start {
			continue
		}
		spanStart, spanEnd := trimSpan(text, start, boundary)
		if spanEnd > spanStart {
			units = append(units, buildUnit(text, footnoteNumber, len(units)+1, spanStart, spanEnd))
		}
		start = boundary
	}

	if len(units) == 0 {
		// Whitespace-only spans between delimiters; fall back to one unit.
		spanStart, spanEnd := trimSpan(text, 0, len(text))
		units = append(units, buildUnit(text, footnoteNumber, 1, spanStart, spanEnd))
	}

	return units
}

// splitPoints returns the byte offsets immediately after each split
// delimiter. Delimiters only count at nesting depth zero and outside
// quotations; the delimiter itself trails the preceding span.
func splitPoints(text string) []int {
	var points []int
	depth := 0
	inQuote := false

	i := 0
	for i < len(text) {
		// Formatting markers are opaque to the depth counter; "[SC]" must
		// not register as a bracket.
		if strings.HasPrefix(text[i:], "[SC]") {
			i += 4
			continue
		}
		if strings.HasPrefix(text[i:], "[/SC]") {
			i += 5
			continue
		}

		c := text[i]
		switch {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
			// Delimiters inside quoted excerpts never split.
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			if depth > 0 {
				depth--
			}
		case c == ';' && depth == 0:
			points = append(points, i+1)
		case c == ',' && depth == 0 && startsNewCitation(text[i+1:]):
			points = append(points, i+1)
		}
		i++
	}

	return points
}

// startsNewCitation reports whether the text after a comma opens a new
// citation unit. The comma heuristic is deliberately conservative: only a
// signal word or a short-form citation after the comma is treated as a
// string-cite separator, an ordinary sentence comma never splits.
func startsNewCitation(rest string) bool {
	rest = strings.TrimLeft(rest, " \t")
	rest = stripLeadingMarkers(rest)
	if signalPattern.MatchString(rest) {
		return true
	}
	return shortFormPattern.MatchString(rest)
}

// stripLeadingMarkers removes formatting markers from the start of text so
// signal detection sees the words themselves.
func stripLeadingMarkers(text string) string {
	for {
		switch {
		case strings.HasPrefix(text, "**"):
			text = text[2:]
		case strings.HasPrefix(text, "*"):
			text = text[1:]
		case strings.HasPrefix(text, "[SC]"):
			text = text[4:]
		default:
			return text
		}
	}
}

// trimSpan narrows [start, boundary) to exclude surrounding whitespace,
// which becomes separator text between units.
func trimSpan(text string, start, end int) (int, int) {
	for start < end && (text[start] == ' ' || text[start] == '\t' || text[start] == '\n') {
		start++
	}
	for end > start && (text[end-1] == ' ' || text[end-1] == '\t' || text[end-1] == '\n') {
		end--
	}
	return start, end
}

// buildUnit assembles a Unit for the span, detecting a leading signal and
// synthesizing markers for runs that straddle the span's edges.
func buildUnit(text string, footnoteNumber, ordinal, start, end int) Unit {
	span := text[start:end]

	// Runs opened before the span re-open at its head; runs still open at
	// its tail re-close, innermost first.
	openAtStart := normalize.OpenAt(text, start)
	openAtEnd := normalize.OpenAt(text, end)

	var sb strings.Builder
	for _, kind := range openAtStart {
		sb.WriteString(normalize.OpenMarker(kind))
	}
	sb.WriteString(span)
	for i := len(openAtEnd) - 1; i >= 0; i-- {
		sb.WriteString(normalize.CloseMarker(openAtEnd[i]))
	}

	return Unit{
		FootnoteNumber: footnoteNumber,
		Ordinal:        ordinal,
		Text:           sb.String(),
		Start:          start,
		End:            end,
		Signal:         detectSignal(span),
	}
}

// detectSignal returns the signal phrase at the head of a span, without
// surrounding markers or trailing separators.
func detectSignal(span string) string {
	head := stripLeadingMarkers(span)
	match := signalPattern.FindStringSubmatch(head)
	if match == nil {
		return ""
	}
	return strings.TrimRight(match[1], ", ")
}
