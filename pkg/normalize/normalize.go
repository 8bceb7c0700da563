// Package normalize canonicalizes inline formatting markers in footnote text.
// Word-processor exports routinely split a single italic, bold, or small-caps
// run into several adjacent runs of the same kind; this package merges those
// runs back together and fixes whitespace placement around marker boundaries
// so downstream segmentation sees stable, canonical markup.
package normalize

import (
	"strings"
)

// MarkerKind identifies an inline formatting marker type.
type MarkerKind int

const (
	MarkerItalic MarkerKind = iota
	MarkerBold
	MarkerSmallCaps
)

// String returns the marker name for diagnostics.
func (k MarkerKind) String() string {
	switch k {
	case MarkerItalic:
		return "italic"
	case MarkerBold:
		return "bold"
	case MarkerSmallCaps:
		return "small-caps"
	default:
		return "unknown"
	}
}

// Warning describes a soft problem found while normalizing. Warnings never
// prevent normalization from returning text; unbalanced markup passes
// through unmodified.
type Warning struct {
	Kind    MarkerKind
	Message string
}

// tokenType distinguishes marker tokens from literal text.
type tokenType int

const (
	tokenText tokenType = iota
	tokenOpen
	tokenClose
)

// token is one element of the lexed marker stream.
type token struct {
	typ  tokenType
	kind MarkerKind
	text string // literal content for tokenText
}

const (
	scOpen  = "[SC]"
	scClose = "[/SC]"
)

// Normalize canonicalizes formatting markers in text. It merges adjacent
// same-kind runs separated only by optional whitespace (keeping at most one
// separating space) and moves a trailing space immediately before a closing
// marker to immediately after it. Normalize is idempotent and total: text
// with unbalanced markers is returned unmodified together with a warning.
func Normalize(text string) (string, []Warning) {
	if text == "" {
		return text, nil
	}

	current := text
	var warnings []Warning

	// Each pass either reaches a fixed point or strictly simplifies the
	// token stream; the bound guards against pathological inputs.
	for pass := 0; pass < len(text)+1; pass++ {
		next, passWarnings := normalizeOnce(current)
		warnings = append(warnings, passWarnings...)
		if next == current {
			break
		}
		current = next
	}

	return current, dedupeWarnings(warnings)
}

// normalizeOnce runs a single tokenize/merge/relocate/render cycle.
func normalizeOnce(text string) (string, []Warning) {
	tokens, state := lex(text)
	warnings := state.warnings()
	if !state.balanced() {
		return text, warnings
	}

	tokens = mergeAdjacentRuns(tokens)
	tokens = relocateTrailingSpace(tokens)
	tokens = dropEmptyRuns(tokens)

	return render(tokens), warnings
}

// OpenAt reports which marker kinds are open immediately before byte offset
// in text, in the order they were opened. Segmentation uses this to re-close
// and re-open runs that straddle a split boundary.
func OpenAt(text string, offset int) []MarkerKind {
	if offset <= 0 {
		return nil
	}
	if offset > len(text) {
		offset = len(text)
	}

	tokens, _ := lex(text[:offset])
	var open []MarkerKind
	active := map[MarkerKind]bool{}
	for _, tok := range tokens {
		switch tok.typ {
		case tokenOpen:
			if !active[tok.kind] {
				active[tok.kind] = true
				open = append(open, tok.kind)
			}
		case tokenClose:
			if active[tok.kind] {
				active[tok.kind] = false
				for i, kind := range open {
					if kind == tok.kind {
						open = append(open[:i], open[i+1:]...)
						break
					}
				}
			}
		}
	}
	return open
}

// OpenMarker returns the literal opening marker for a kind.
func OpenMarker(kind MarkerKind) string { return openMarker(kind) }

// CloseMarker returns the literal closing marker for a kind.
func CloseMarker(kind MarkerKind) string { return closeMarker(kind) }

// lexState records where the lexer ended up and any markup problems seen.
type lexState struct {
	inItalic     bool
	inBold       bool
	inSmallCaps  bool
	strayCloses  []MarkerKind
}

func (s *lexState) balanced() bool {
	return !s.inItalic && !s.inBold && !s.inSmallCaps && len(s.strayCloses) == 0
}

func (s *lexState) warnings() []Warning {
	var warnings []Warning
	for _, kind := range s.strayCloses {
		warnings = append(warnings, Warning{
			Kind:    kind,
			Message: kind.String() + " close marker without matching open",
		})
	}
	if s.inItalic {
		warnings = append(warnings, Warning{Kind: MarkerItalic, Message: "italic marker left open at end of text"})
	}
	if s.inBold {
		warnings = append(warnings, Warning{Kind: MarkerBold, Message: "bold marker left open at end of text"})
	}
	if s.inSmallCaps {
		warnings = append(warnings, Warning{Kind: MarkerSmallCaps, Message: "small-caps marker left open at end of text"})
	}
	return warnings
}

// lex splits text into marker and text tokens. Markers of the same kind
// never nest: a second open of an already-open kind is treated as the
// corresponding close. A star run after non-space content closes the
// innermost open star marker before it can open a new one, which is what
// lets split runs like "*See** infra*" lex as close-then-reopen rather
// than as bold.
func lex(text string) ([]token, *lexState) {
	var tokens []token
	var literal strings.Builder
	state := &lexState{}

	flushLiteral := func() {
		if literal.Len() > 0 {
			tokens = append(tokens, token{typ: tokenText, text: literal.String()})
			literal.Reset()
		}
	}

	emit := func(typ tokenType, kind MarkerKind) {
		flushLiteral()
		tokens = append(tokens, token{typ: typ, kind: kind})
	}

	prevNonSpace := false
	i := 0
	for i < len(text) {
		switch {
		case strings.HasPrefix(text[i:], scOpen):
			if state.inSmallCaps {
				emit(tokenClose, MarkerSmallCaps)
				state.inSmallCaps = false
			} else {
				emit(tokenOpen, MarkerSmallCaps)
				state.inSmallCaps = true
			}
			i += len(scOpen)
			prevNonSpace = false

		case strings.HasPrefix(text[i:], scClose):
			if state.inSmallCaps {
				emit(tokenClose, MarkerSmallCaps)
				state.inSmallCaps = false
			} else {
				state.strayCloses = append(state.strayCloses, MarkerSmallCaps)
				literal.WriteString(scClose)
			}
			i += len(scClose)
			prevNonSpace = false

		case text[i] == '*':
			isPair := i+1 < len(text) && text[i+1] == '*'
			switch {
			case isPair && state.inBold && prevNonSpace:
				emit(tokenClose, MarkerBold)
				state.inBold = false
				i += 2
			case state.inItalic && prevNonSpace:
				emit(tokenClose, MarkerItalic)
				state.inItalic = false
				i++
			case isPair && !state.inBold:
				emit(tokenOpen, MarkerBold)
				state.inBold = true
				i += 2
			case isPair && state.inBold:
				emit(tokenClose, MarkerBold)
				state.inBold = false
				i += 2
			case !state.inItalic:
				emit(tokenOpen, MarkerItalic)
				state.inItalic = true
				i++
			default:
				emit(tokenClose, MarkerItalic)
				state.inItalic = false
				i++
			}
			prevNonSpace = false

		default:
			literal.WriteByte(text[i])
			prevNonSpace = text[i] != ' ' && text[i] != '\t' && text[i] != '\n'
			i++
		}
	}
	flushLiteral()

	return tokens, state
}

// mergeAdjacentRuns deletes close/open pairs of the same kind separated only
// by optional whitespace, concatenating the run contents. A non-empty
// whitespace separator collapses to a single space inside the merged run,
// unless the surrounding content already supplies one.
func mergeAdjacentRuns(tokens []token) []token {
	merged := make([]token, 0, len(tokens))

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.typ != tokenClose {
			merged = append(merged, tok)
			continue
		}

		// Look ahead past a whitespace-only text token for a same-kind open.
		j := i + 1
		separator := ""
		if j < len(tokens) && tokens[j].typ == tokenText && strings.TrimSpace(tokens[j].text) == "" {
			separator = tokens[j].text
			j++
		}
		if j < len(tokens) && tokens[j].typ == tokenOpen && tokens[j].kind == tok.kind {
			if separator != "" && !touchesWhitespace(merged, tokens, j+1) {
				merged = append(merged, token{typ: tokenText, text: " "})
			}
			i = j // skip close, whitespace, and open
			continue
		}

		merged = append(merged, tok)
	}

	return merged
}

// touchesWhitespace reports whether the merge seam already has whitespace on
// either side: the emitted content ends with it or the upcoming content
// begins with it.
func touchesWhitespace(emitted []token, tokens []token, next int) bool {
	if len(emitted) > 0 {
		last := emitted[len(emitted)-1]
		if last.typ == tokenText && last.text != "" {
			tail := last.text[len(last.text)-1]
			if tail == ' ' || tail == '\t' || tail == '\n' {
				return true
			}
		}
	}
	if next < len(tokens) && tokens[next].typ == tokenText && tokens[next].text != "" {
		head := tokens[next].text[0]
		if head == ' ' || head == '\t' || head == '\n' {
			return true
		}
	}
	return false
}

// relocateTrailingSpace moves whitespace sitting immediately before a closing
// marker to immediately after it, so "*supra *note" renders as "*supra* note".
func relocateTrailingSpace(tokens []token) []token {
	result := make([]token, 0, len(tokens))

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.typ != tokenClose || len(result) == 0 {
			result = append(result, tok)
			continue
		}

		last := &result[len(result)-1]
		if last.typ != tokenText {
			result = append(result, tok)
			continue
		}

		trimmed := strings.TrimRight(last.text, " \t")
		if trimmed == last.text {
			result = append(result, tok)
			continue
		}

		moved := last.text[len(trimmed):]
		last.text = trimmed
		result = append(result, tok)
		result = append(result, token{typ: tokenText, text: moved})
	}

	return result
}

// dropEmptyRuns removes text tokens emptied by whitespace relocation and any
// open/close pairs left with no content between them.
func dropEmptyRuns(tokens []token) []token {
	compact := make([]token, 0, len(tokens))
	for _, tok := range tokens {
		if tok.typ == tokenText && tok.text == "" {
			continue
		}
		compact = append(compact, tok)
	}

	result := make([]token, 0, len(compact))
	for i := 0; i < len(compact); i++ {
		tok := compact[i]
		if tok.typ == tokenOpen && i+1 < len(compact) &&
			compact[i+1].typ == tokenClose && compact[i+1].kind == tok.kind {
			i++ // skip both
			continue
		}
		result = append(result, tok)
	}

	return result
}

// render serializes a token stream back to marked-up text.
func render(tokens []token) string {
	var sb strings.Builder
	for _, tok := range tokens {
		switch tok.typ {
		case tokenText:
			sb.WriteString(tok.text)
		case tokenOpen:
			sb.WriteString(openMarker(tok.kind))
		case tokenClose:
			sb.WriteString(closeMarker(tok.kind))
		}
	}
	return sb.String()
}

func openMarker(kind MarkerKind) string {
	switch kind {
	case MarkerItalic:
		return "*"
	case MarkerBold:
		return "**"
	case MarkerSmallCaps:
		return scOpen
	}
	return ""
}

func closeMarker(kind MarkerKind) string {
	switch kind {
	case MarkerItalic:
		return "*"
	case MarkerBold:
		return "**"
	case MarkerSmallCaps:
		return scClose
	}
	return ""
}

// dedupeWarnings collapses repeated warnings produced by multiple passes
// over the same unbalanced text.
func dedupeWarnings(warnings []Warning) []Warning {
	if len(warnings) <= 1 {
		return warnings
	}
	seen := make(map[Warning]bool, len(warnings))
	result := make([]Warning, 0, len(warnings))
	for _, w := range warnings {
		if !seen[w] {
			seen[w] = true
			result = append(result, w)
		}
	}
	return result
}
