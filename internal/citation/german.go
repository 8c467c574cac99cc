package citation

import (
	"regexp"
	"strings"

	"rechtskern/internal/law"
)

// GermanGrammar recognizes the two German citation shapes:
//
//	§ 823 Abs. 1 S. 2 Nr. 3 Buchst. a BGB   (paragraph form)
//	Art. 1 Abs. 1 GG                        (article form)
//
// The paragraph form accepts one or two section markers and a section spec
// of one or more numbers joined by comma, hyphen, or "bis". Matching is
// case-insensitive over whitespace-collapsed input. The marker normalizes to
// "§§" exactly when the section spec is a range or list.
type GermanGrammar struct {
	paragraphPattern *regexp.Regexp
	articlePattern   *regexp.Regexp
	sectionTokens    *regexp.Regexp
}

const (
	secNum      = `\d+[a-zA-Z]?`
	sectionSpec = secNum + `(?:\s*(?:,|-|–|bis)\s*` + secNum + `)*`

	// Subdivision tail, each component optional, in fixed order. Long forms
	// first so "Absatz" is not split into "Abs" + garbage.
	subdivTail = `(?:\s+(?:Absatz|Abs\.?)\s*(` + secNum + `))?` +
		`(?:\s+(?:Satz|S\.?)\s*(` + secNum + `))?` +
		`(?:\s+(?:Nummer|Nr\.?)\s*(` + secNum + `))?` +
		`(?:\s+(?:Buchstabe|Buchst\.?)\s*([a-zA-Z]))?`

	codeAbbrev = `\s+([A-Za-zÄÖÜäöüß][A-Za-zÄÖÜäöüß0-9]*)`
)

// NewGermanGrammar compiles the German citation patterns.
func NewGermanGrammar() *GermanGrammar {
	return &GermanGrammar{
		paragraphPattern: regexp.MustCompile(`(?i)^(§{1,2})\s*(` + sectionSpec + `)` + subdivTail + codeAbbrev + `$`),
		articlePattern:   regexp.MustCompile(`(?i)^(Artikel|Art\.?)\s+(` + secNum + `)` + subdivTail + codeAbbrev + `$`),
		sectionTokens:    regexp.MustCompile(`(` + secNum + `)|(,|-|–|bis)`),
	}
}

// Jurisdiction returns the ISO-style code served by this grammar.
func (g *GermanGrammar) Jurisdiction() string { return "de" }

// Parse parses a German citation. Returns nil for non-matching input.
func (g *GermanGrammar) Parse(input string) *law.ParsedCitation {
	s := collapseWhitespace(input)
	if s == "" {
		return nil
	}

	if m := g.paragraphPattern.FindStringSubmatch(s); m != nil {
		return g.buildParagraph(m)
	}
	if m := g.articlePattern.FindStringSubmatch(s); m != nil {
		return g.buildArticle(m)
	}
	return nil
}

// buildParagraph assembles a paragraph-form citation from submatches:
// 1=marker 2=section spec 3=Abs 4=Satz 5=Nr 6=Buchst 7=code.
func (g *GermanGrammar) buildParagraph(m []string) *law.ParsedCitation {
	numbers, spec := g.normalizeSectionSpec(m[2])
	if len(numbers) == 0 {
		return nil
	}

	marker := "§"
	if len(numbers) > 1 {
		marker = "§§"
	}
	code := strings.ToUpper(m[7])

	parsed := map[string]string{
		"marker":  marker,
		"section": numbers[0],
		"code":    code,
	}
	if len(numbers) > 1 {
		parsed["sections"] = spec
	}
	addTail(parsed, m[3], m[4], m[5], m[6])

	normalized := marker + " " + spec + tailString(parsed) + " " + code
	return &law.ParsedCitation{
		Type:            law.CitationParagraph,
		Normalized:      normalized,
		Parsed:          parsed,
		LookupCitations: lookupForms("§", numbers, code),
	}
}

// buildArticle assembles an article-form citation from submatches:
// 1=marker 2=article 3=Abs 4=Satz 5=Nr 6=Buchst 7=code.
func (g *GermanGrammar) buildArticle(m []string) *law.ParsedCitation {
	article := normalizeNumber(m[2])
	code := strings.ToUpper(m[7])

	parsed := map[string]string{
		"marker":  "Art.",
		"article": article,
		"code":    code,
	}
	addTail(parsed, m[3], m[4], m[5], m[6])

	normalized := "Art. " + article + tailString(parsed) + " " + code
	return &law.ParsedCitation{
		Type:            law.CitationArticle,
		Normalized:      normalized,
		Parsed:          parsed,
		LookupCitations: lookupForms("Art.", []string{article}, code),
	}
}

// normalizeSectionSpec canonicalizes a section spec ("1 , 2" -> "1, 2",
// "1 bis 3" -> "1 bis 3", "1 - 3" -> "1-3") and returns the individual
// numbers in order plus the canonical spec string.
func (g *GermanGrammar) normalizeSectionSpec(spec string) ([]string, string) {
	var numbers []string
	var b strings.Builder
	for _, m := range g.sectionTokens.FindAllStringSubmatch(spec, -1) {
		switch {
		case m[1] != "":
			n := normalizeNumber(m[1])
			numbers = append(numbers, n)
			b.WriteString(n)
		case strings.EqualFold(m[2], "bis"):
			b.WriteString(" bis ")
		case m[2] == ",":
			b.WriteString(", ")
		default: // hyphen or en-dash
			b.WriteString("-")
		}
	}
	return numbers, b.String()
}

// normalizeNumber lower-cases a trailing letter suffix ("312D" -> "312d").
func normalizeNumber(n string) string { return strings.ToLower(n) }

// addTail records the optional subdivision components.
func addTail(parsed map[string]string, abs, satz, nr, buchst string) {
	if abs != "" {
		parsed["paragraph"] = normalizeNumber(abs)
	}
	if satz != "" {
		parsed["sentence"] = normalizeNumber(satz)
	}
	if nr != "" {
		parsed["number"] = normalizeNumber(nr)
	}
	if buchst != "" {
		parsed["letter"] = strings.ToLower(buchst)
	}
}

// tailString renders the canonical subdivision tail, leading space included.
func tailString(parsed map[string]string) string {
	var b strings.Builder
	if v := parsed["paragraph"]; v != "" {
		b.WriteString(" Abs. " + v)
	}
	if v := parsed["sentence"]; v != "" {
		b.WriteString(" S. " + v)
	}
	if v := parsed["number"]; v != "" {
		b.WriteString(" Nr. " + v)
	}
	if v := parsed["letter"]; v != "" {
		b.WriteString(" Buchst. " + v)
	}
	return b.String()
}

// lookupForms emits the minimal exact-match forms, one per section number,
// always with the single marker (stored citations are per provision).
func lookupForms(marker string, numbers []string, code string) []string {
	out := make([]string, 0, len(numbers))
	seen := make(map[string]bool, len(numbers))
	for _, n := range numbers {
		form := marker + " " + n + " " + code
		if !seen[form] {
			seen[form] = true
			out = append(out, form)
		}
	}
	return out
}
