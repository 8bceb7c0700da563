package citation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/coolbeans/citecheck/pkg/segment"
)

// Classifier assigns a citation type and extracts structured fields from
// segmented footnote units. Classification precedence: a short-form token
// standing alone routes to cross_reference; a section symbol or code-title
// token routes to statute; the " v. " pivot with a volume-reporter tail
// routes to case; journal and book shapes follow; anything else is unknown.
type Classifier struct {
	statutePattern   *regexp.Regexp // 42 U.S.C. § 1983, 45 C.F.R. § 164.502
	sectionPattern   *regexp.Regexp // bare § 1798.100(c)(3)
	codeTokenPattern *regexp.Regexp // U.S.C. / C.F.R. token anywhere
	pivotPattern     *regexp.Regexp // the " v. " pivot
	caseTailPattern  *regexp.Regexp // 347 U.S. 483, 490
	volumeRepPattern *regexp.Regexp // volume-reporter with page missing
	crossRefPattern  *regexp.Regexp // id. / supra note N / infra note N
	journalPattern   *regexp.Regexp // 73 Yale L.J. 733
	yearPattern      *regexp.Regexp // (1954)
	bookYearPattern  *regexp.Regexp // (2d ed. 1988)
}

// Section strings start with a digit and may carry nested subsection
// markers, captured verbatim: "1983", "164.502", "501(c)(3)(C)".
const sectionExpr = `\d[0-9A-Za-z]*(?:\.\d[0-9A-Za-z]*)*(?:\([0-9A-Za-z]+\))*`

var yearDigitsPattern = regexp.MustCompile(`\d{4}`)

// NewClassifier compiles the classification patterns.
func NewClassifier() *Classifier {
	return &Classifier{
		statutePattern: regexp.MustCompile(
			`(\d+)\s+(U\.?\s?S\.?\s?C\.?|C\.?\s?F\.?\s?R\.?)\s*(?:§§?|[Ss]ection|[Ss]ec\.)\s*(` + sectionExpr + `)`),
		sectionPattern:   regexp.MustCompile(`§§?\s*(` + sectionExpr + `)`),
		codeTokenPattern: regexp.MustCompile(`\b(?:U\.?\s?S\.?\s?C\.?|C\.?\s?F\.?\s?R\.?)\b`),
		pivotPattern:     regexp.MustCompile(`\sv\.?\s`),
		// The reporter word class admits a leading digit for ordinal
		// series abbreviations: F. Supp. 2d, S.W.3d.
		caseTailPattern:  regexp.MustCompile(`(\d+)\s+((?:[A-Z0-9][A-Za-z0-9.']*[ ])+?)(\d+)\b(?:,\s*(\d+)\b)?`),
		volumeRepPattern: regexp.MustCompile(`(\d+)\s+((?:[A-Z][A-Za-z0-9.']*)(?:\s[A-Z][A-Za-z0-9.']*)*)`),
		crossRefPattern:  regexp.MustCompile(`(?i)^(id\.|supra\s+note\s+(\d+)|infra\s+note\s+(\d+))`),
		journalPattern:   regexp.MustCompile(`(\d+)\s+((?:[A-Z][A-Za-z0-9.&']*[ ])+?)(\d+)\b`),
		// The year may share its parenthetical with a court or edition:
		// (1954), (S.D.N.Y. 2012), (2d ed. 1988).
		yearPattern:      regexp.MustCompile(`\((?:[^()]*?\s)?(\d{4})\)`),
		bookYearPattern:  regexp.MustCompile(`\(([^()]*\b\d{4})\)`),
	}
}

// Classify builds a Citation for one segmented unit. It never fails: a unit
// matching no known shape becomes an unknown citation at confidence 0.0.
func (c *Classifier) Classify(unit segment.Unit) *Citation {
	cit := &Citation{
		ID:             newID(unit.FootnoteNumber, unit.Ordinal, unit.Text),
		FootnoteNumber: unit.FootnoteNumber,
		Ordinal:        unit.Ordinal,
		FullText:       unit.Text,
		ByteStart:      unit.Start,
		ByteEnd:        unit.End,
		Signal:         unit.Signal,
		Type:           TypeUnknown,
	}

	plain := stripMarkers(unit.Text)
	body := stripSignal(plain, unit.Signal)

	hasStatuteShape := strings.Contains(body, "§") || c.codeTokenPattern.MatchString(body)
	pivotLoc := c.pivotPattern.FindStringIndex(body)

	// Short forms only win when the unit has no case or statute shape of
	// its own.
	if match := c.crossRefPattern.FindStringSubmatch(body); match != nil && !hasStatuteShape && pivotLoc == nil {
		c.classifyCrossRef(cit, match)
		return cit
	}

	if hasStatuteShape {
		c.classifyStatute(cit, body)
		return cit
	}

	if pivotLoc != nil && c.classifyCase(cit, body, pivotLoc) {
		return cit
	}

	if c.classifyJournal(cit, unit.Text, body) {
		return cit
	}

	if c.classifyBook(cit, unit.Text, body) {
		return cit
	}

	cit.Confidence = 0.0
	return cit
}

func (c *Classifier) classifyCrossRef(cit *Citation, match []string) {
	fields := &CrossRefFields{}
	head := strings.ToLower(match[1])
	switch {
	case strings.HasPrefix(head, "id."):
		fields.Kind = CrossRefID
	case strings.HasPrefix(head, "supra"):
		fields.Kind = CrossRefSupra
		fields.TargetNote, _ = strconv.Atoi(match[2])
	case strings.HasPrefix(head, "infra"):
		fields.Kind = CrossRefInfra
		fields.TargetNote, _ = strconv.Atoi(match[3])
	}

	cit.Type = TypeCrossReference
	cit.CrossRef = fields
	cit.Confidence = 1.0
}

func (c *Classifier) classifyStatute(cit *Citation, body string) {
	cit.Type = TypeStatute

	if match := c.statutePattern.FindStringSubmatch(body); match != nil {
		cit.Statute = &StatuteFields{
			Title:   match[1],
			Code:    normalizeCodeName(match[2]),
			Section: match[3],
		}
		cit.Confidence = 1.0
		return
	}

	// A section symbol without a recognized federal code: keep the section
	// verbatim and take the capitalized words before the symbol as the
	// code name (state codes, session laws).
	fields := &StatuteFields{}
	if match := c.sectionPattern.FindStringSubmatchIndex(body); match != nil {
		fields.Section = body[match[2]:match[3]]
		fields.Code = trailingCodeName(body[:match[0]])
	} else if match := c.codeTokenPattern.FindString(body); match != "" {
		fields.Code = normalizeCodeName(match)
	}
	cit.Statute = fields
	cit.Confidence = 0.8
}

func (c *Classifier) classifyCase(cit *Citation, body string, pivotLoc []int) bool {
	tail := body[pivotLoc[1]:]
	match := c.caseTailPattern.FindStringSubmatchIndex(tail)

	fields := &CaseFields{}
	confidence := 1.0

	if match != nil {
		fields.Volume = tail[match[2]:match[3]]
		fields.Reporter = strings.TrimSpace(tail[match[4]:match[5]])
		fields.Page = tail[match[6]:match[7]]
		if match[8] != -1 {
			fields.PinCite = tail[match[8]:match[9]]
		}
		fields.Parties = trimParties(body[:pivotLoc[1]+match[0]])
	} else {
		// Tolerate a missing page: volume and reporter alone still
		// classify, at lower confidence.
		loose := c.volumeRepPattern.FindStringSubmatchIndex(tail)
		if loose == nil {
			return false
		}
		fields.Volume = tail[loose[2]:loose[3]]
		fields.Reporter = strings.TrimRight(strings.TrimSpace(tail[loose[4]:loose[5]]), ",;")
		fields.Parties = trimParties(body[:pivotLoc[1]+loose[0]])
		confidence = 0.85
	}

	if yearMatch := c.yearPattern.FindStringSubmatch(tail); yearMatch != nil {
		fields.Year = yearMatch[1]
	} else {
		confidence = 0.9
	}

	cit.Type = TypeCase
	cit.Case = fields
	cit.Confidence = confidence
	return true
}

func (c *Classifier) classifyJournal(cit *Citation, fullText, body string) bool {
	yearMatch := c.yearPattern.FindStringSubmatch(body)
	if yearMatch == nil {
		return false
	}

	// A journal article carries an italicized title and a
	// volume-journal-page tail.
	if !strings.Contains(fullText, "*") {
		return false
	}
	match := c.journalPattern.FindStringSubmatch(body)
	if match == nil {
		return false
	}

	cit.Type = TypeJournalArticle
	cit.Journal = &JournalFields{
		Volume:  match[1],
		Journal: strings.TrimSpace(match[2]),
		Page:    match[3],
		Year:    yearMatch[1],
	}
	cit.Confidence = 0.85
	return true
}

func (c *Classifier) classifyBook(cit *Citation, fullText, body string) bool {
	yearMatch := c.bookYearPattern.FindStringSubmatch(body)
	if yearMatch == nil {
		return false
	}

	smallCaps := strings.Contains(fullText, "[SC]")
	comma := strings.Index(body, ",")
	if !smallCaps && comma < 0 {
		return false
	}

	fields := &BookFields{}
	if digits := yearDigitsPattern.FindString(yearMatch[1]); digits != "" {
		fields.Year = digits
	}
	if comma > 0 {
		fields.Author = strings.TrimSpace(body[:comma])
		rest := body[comma+1:]
		if paren := strings.Index(rest, "("); paren > 0 {
			fields.Title = strings.TrimSpace(rest[:paren])
		}
	}

	cit.Type = TypeBook
	cit.Book = fields
	if smallCaps {
		cit.Confidence = 0.85
	} else {
		cit.Confidence = 0.75
	}
	return true
}

// stripMarkers removes formatting markers so classification patterns see
// the words themselves.
func stripMarkers(text string) string {
	replacer := strings.NewReplacer("[SC]", "", "[/SC]", "", "*", "")
	return replacer.Replace(text)
}

// stripSignal removes the detected signal phrase from the head of the
// plain unit text.
func stripSignal(plain, signal string) string {
	if signal == "" {
		return plain
	}
	head := strings.TrimLeft(plain, " \t")
	if len(head) >= len(signal) && strings.EqualFold(head[:len(signal)], signal) {
		return strings.TrimLeft(head[len(signal):], ", \t")
	}
	return plain
}

// trimParties cleans the party-name prefix of a case citation.
func trimParties(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), ",")
}

// normalizeCodeName canonicalizes federal code abbreviations.
func normalizeCodeName(code string) string {
	squeezed := strings.ReplaceAll(strings.ReplaceAll(code, " ", ""), ".", "")
	switch strings.ToUpper(squeezed) {
	case "USC":
		return "U.S.C."
	case "CFR":
		return "C.F.R."
	default:
		return strings.TrimSpace(code)
	}
}

// trailingCodeName takes the capitalized words immediately before a section
// symbol as the code name, e.g. "Cal. Civ. Code" in
// "Cal. Civ. Code § 1798.100".
func trailingCodeName(prefix string) string {
	words := strings.Fields(prefix)
	var name []string
	for i := len(words) - 1; i >= 0 && len(name) < 4; i-- {
		word := words[i]
		if word == "" || (word[0] < 'A' || word[0] > 'Z') {
			break
		}
		name = append([]string{word}, name...)
	}
	return strings.Join(name, " ")
}
