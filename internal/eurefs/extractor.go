// Package eurefs extracts references to EU legal acts (directives,
// regulations, decisions) from document text and normalizes them into
// comparable identifiers of the form "<JUR> <year>/<number>". CELEX numbers
// resolve into the same space, so "32016R0679", "Verordnung (EU) 2016/679"
// and "2016/679/EU" all denote one act.
package eurefs

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"rechtskern/internal/law"
)

// Detector confidences, one per pattern family, strongest first.
const (
	confCelex         = 0.99
	confTypedPrefix   = 0.95
	confTypedSuffix   = 0.94
	confGenericPrefix = 0.90
	confGenericSuffix = 0.89
)

// contextRadius is the number of characters kept around a match in the
// context snippet.
const contextRadius = 90

// Extractor scans text for EU act references. Safe for concurrent use.
type Extractor struct {
	celex         *regexp.Regexp
	typedSuffix   *regexp.Regexp
	typedPrefix   *regexp.Regexp
	genericPrefix *regexp.Regexp
	genericSuffix *regexp.Regexp
	suffixJur     *regexp.Regexp
}

const (
	typeWords = `Richtlinie|Directive|Verordnung|Regulation|Beschluss|Entscheidung|Decision`
	jurWords  = `EU|EG|EWG|EC|EEC`
	actNum    = `\d{1,4}`
)

// NewExtractor compiles the detector patterns.
func NewExtractor() *Extractor {
	return &Extractor{
		celex: regexp.MustCompile(`(?i)\b(?:CELEX:)?3(\d{4})([RLDC])(\d{4})\b`),
		typedSuffix: regexp.MustCompile(
			`(?i)\b(` + typeWords + `)\s+(?:Nr\.?\s*)?(` + actNum + `)/(` + actNum + `)/(` + jurWords + `)\b`),
		typedPrefix: regexp.MustCompile(
			`(?i)\b(` + typeWords + `)\s+(?:\(\s*(` + jurWords + `)\s*\)\s*|(` + jurWords + `)\s+)?(?:Nr\.?\s*)?(` + actNum + `)/(` + actNum + `)\b`),
		genericPrefix: regexp.MustCompile(
			`(?i)\(\s*(` + jurWords + `)\s*\)\s*(?:Nr\.?\s*)?(` + actNum + `)/(` + actNum + `)\b|\b(` + jurWords + `)\s+(?:Nr\.?\s*)?(` + actNum + `)/(` + actNum + `)\b`),
		genericSuffix: regexp.MustCompile(
			`(?i)\b(` + actNum + `)/(` + actNum + `)/(` + jurWords + `)\b`),
		suffixJur: regexp.MustCompile(`(?i)^\s*/\s*(` + jurWords + `)\b`),
	}
}

// rawMatch is one detector hit before per-document grouping.
type rawMatch struct {
	id         string
	actType    law.EuActType
	confidence float64
	start, end int
}

// Extract scans the document's searchable text and returns its EU
// references, deduplicated by (id, type) keeping the highest confidence.
func (e *Extractor) Extract(doc *law.Document) []law.EuReference {
	if doc == nil {
		return nil
	}
	text := doc.SearchableText()
	matches := e.scan(text)
	if len(matches) == 0 {
		return nil
	}

	best := make(map[string]rawMatch, len(matches))
	var order []string
	for _, m := range matches {
		key := strings.ToLower(m.id) + "\x00" + strings.ToLower(string(m.actType))
		prev, ok := best[key]
		if !ok {
			order = append(order, key)
			best[key] = m
		} else if m.confidence > prev.confidence {
			best[key] = m
		}
	}

	statuteID, _ := doc.Metadata["statuteId"].(string)
	refs := make([]law.EuReference, 0, len(order))
	for _, key := range order {
		m := best[key]
		refs = append(refs, law.EuReference{
			EuID:            m.id,
			EuType:          m.actType,
			SourceKind:      string(doc.Kind),
			SourceID:        doc.ID,
			SourceStatuteID: statuteID,
			SourceCitation:  doc.Citation,
			SourceTitle:     doc.Title,
			SourceURL:       doc.SourceURL,
			ContextSnippet:  snippet(text, m.start, m.end),
			Confidence:      m.confidence,
		})
	}
	return refs
}

// scan runs the detectors in confidence order. A text span claimed by an
// earlier detector is invisible to later ones, so "Richtlinie 95/46/EG" is
// one typed-suffix match, not a typed-suffix plus a generic-suffix hit.
func (e *Extractor) scan(text string) []rawMatch {
	var matches []rawMatch
	var claimed [][2]int

	claim := func(start, end int) bool {
		for _, iv := range claimed {
			if start < iv[1] && iv[0] < end {
				return false
			}
		}
		claimed = append(claimed, [2]int{start, end})
		return true
	}

	// CELEX: 3<year><letter><number>.
	for _, idx := range e.celex.FindAllStringSubmatchIndex(text, -1) {
		year := text[idx[2]:idx[3]]
		letter := strings.ToUpper(text[idx[4]:idx[5]])
		number := text[idx[6]:idx[7]]
		if claim(idx[0], idx[1]) {
			matches = append(matches, rawMatch{
				id:         renderID("EU", year, number),
				actType:    celexType(letter),
				confidence: confCelex,
				start:      idx[0], end: idx[1],
			})
		}
	}

	// Typed suffix: "Richtlinie 95/46/EG". Runs before typed prefix so the
	// prefix detector cannot mis-assign the jurisdiction.
	for _, idx := range e.typedSuffix.FindAllStringSubmatchIndex(text, -1) {
		if !claim(idx[0], idx[1]) {
			continue
		}
		matches = append(matches, rawMatch{
			id:         renderYearNumber(text[idx[8]:idx[9]], text[idx[4]:idx[5]], text[idx[6]:idx[7]]),
			actType:    wordType(text[idx[2]:idx[3]]),
			confidence: confTypedSuffix,
			start:      idx[0], end: idx[1],
		})
	}

	// Typed prefix: "Verordnung (EU) 2016/679", "Directive 2011/83".
	for _, idx := range e.typedPrefix.FindAllStringSubmatchIndex(text, -1) {
		if !claim(idx[0], idx[1]) {
			continue
		}
		jur := submatch(text, idx, 2)
		if jur == "" {
			jur = submatch(text, idx, 3)
		}
		if jur == "" {
			// A trailing "/EG" would have been claimed by the suffix
			// detector already; default the jurisdiction.
			jur = "EU"
		}
		matches = append(matches, rawMatch{
			id:         renderYearNumber(jur, text[idx[8]:idx[9]], text[idx[10]:idx[11]]),
			actType:    wordType(text[idx[2]:idx[3]]),
			confidence: confTypedPrefix,
			start:      idx[0], end: idx[1],
		})
	}

	// Generic prefix: "(EU) 2016/679", "EU Nr. 2016/679".
	for _, idx := range e.genericPrefix.FindAllStringSubmatchIndex(text, -1) {
		if !claim(idx[0], idx[1]) {
			continue
		}
		jur := submatch(text, idx, 1)
		first, second := submatch(text, idx, 2), submatch(text, idx, 3)
		if jur == "" {
			jur = submatch(text, idx, 4)
			first, second = submatch(text, idx, 5), submatch(text, idx, 6)
		}
		// "(EU) 2016/679/EU" style never occurs; but if the span is followed
		// by a /jur tail, leave it for the generic suffix detector.
		if e.suffixJur.MatchString(text[idx[1]:]) {
			continue
		}
		matches = append(matches, rawMatch{
			id:         renderYearNumber(jur, first, second),
			actType:    law.EuAct,
			confidence: confGenericPrefix,
			start:      idx[0], end: idx[1],
		})
	}

	// Generic suffix: "2016/679/EU".
	for _, idx := range e.genericSuffix.FindAllStringSubmatchIndex(text, -1) {
		if !claim(idx[0], idx[1]) {
			continue
		}
		matches = append(matches, rawMatch{
			id:         renderYearNumber(text[idx[6]:idx[7]], text[idx[2]:idx[3]], text[idx[4]:idx[5]]),
			actType:    law.EuAct,
			confidence: confGenericSuffix,
			start:      idx[0], end: idx[1],
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].start < matches[j].start })
	return matches
}

func submatch(text string, idx []int, group int) string {
	if 2*group+1 >= len(idx) || idx[2*group] < 0 {
		return ""
	}
	return text[idx[2*group]:idx[2*group+1]]
}

// celexType maps the CELEX document letter to an act type.
func celexType(letter string) law.EuActType {
	switch letter {
	case "R":
		return law.EuRegulation
	case "L":
		return law.EuDirective
	case "D":
		return law.EuDecision
	default:
		return law.EuAct
	}
}

// wordType maps a German or English type word to an act type.
func wordType(word string) law.EuActType {
	switch strings.ToLower(word) {
	case "richtlinie", "directive":
		return law.EuDirective
	case "verordnung", "regulation":
		return law.EuRegulation
	case "beschluss", "entscheidung", "decision":
		return law.EuDecision
	default:
		return law.EuAct
	}
}

// renderYearNumber decides which of the two numeric components is the year.
// "95/46" reads year-first; "45/2001" (Regulation (EC) No 45/2001 style)
// reads number-first.
func renderYearNumber(jur, first, second string) string {
	year, number := first, second
	if len(second) == 4 && len(first) != 4 {
		year, number = second, first
	}
	return renderID(jur, year, number)
}

// renderID renders the canonical identifier. Two-digit years expand with the
// 1958 cutoff (the founding year of the EEC); the number drops leading
// zeros; the jurisdiction upper-cases with EC/EEC folded to their German
// forms so English and German citations compare equal.
func renderID(jur, year, number string) string {
	return normalizeJur(jur) + " " + normalizeYear(year) + "/" + stripZeros(number)
}

func normalizeJur(jur string) string {
	switch strings.ToUpper(jur) {
	case "EC":
		return "EG"
	case "EEC":
		return "EWG"
	case "":
		return "EU"
	default:
		return strings.ToUpper(jur)
	}
}

func normalizeYear(year string) string {
	if len(year) == 2 {
		if v, err := strconv.Atoi(year); err == nil {
			if v >= 58 {
				return "19" + year
			}
			return "20" + year
		}
	}
	return strings.TrimLeft(year, "0")
}

func stripZeros(number string) string {
	trimmed := strings.TrimLeft(number, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// snippet returns the ±contextRadius characters around a match.
func snippet(text string, start, end int) string {
	lo := start - contextRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + contextRadius
	if hi > len(text) {
		hi = len(text)
	}
	return strings.TrimSpace(text[lo:hi])
}
