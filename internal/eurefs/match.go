package eurefs

import (
	"sort"
	"strings"

	"rechtskern/internal/law"
)

// NormalizeID canonicalizes a caller-supplied EU act identifier into the
// "<JUR> <year>/<number>" space. Accepts already-normalized forms, bare
// "year/number", CELEX numbers, and full typed citations; returns the
// trimmed input unchanged when nothing parses.
func (e *Extractor) NormalizeID(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if matches := e.scan(trimmed); len(matches) > 0 {
		return matches[0].id
	}
	// "EU 2016/679" or bare "2016/679".
	fields := strings.Fields(trimmed)
	if len(fields) == 2 && isJur(fields[0]) && isYearNumber(fields[1]) {
		year, number, _ := strings.Cut(fields[1], "/")
		return renderYearNumber(fields[0], year, number)
	}
	if len(fields) == 1 && isYearNumber(fields[0]) {
		year, number, _ := strings.Cut(fields[0], "/")
		return renderYearNumber("EU", year, number)
	}
	return trimmed
}

// SameID reports whether two identifiers denote the same act: equal after
// normalization, or equal once the jurisdiction prefix is stripped. The
// second rule lets "EG 1995/46" match a caller asking for "EU 1995/46".
func (e *Extractor) SameID(a, b string) bool {
	na, nb := e.NormalizeID(a), e.NormalizeID(b)
	if strings.EqualFold(na, nb) {
		return true
	}
	return strings.EqualFold(stripJur(na), stripJur(nb))
}

func stripJur(id string) string {
	jur, rest, ok := strings.Cut(id, " ")
	if ok && isJur(jur) {
		return rest
	}
	return id
}

func isJur(s string) bool {
	switch strings.ToUpper(strings.Trim(s, "()")) {
	case "EU", "EG", "EWG", "EC", "EEC":
		return true
	}
	return false
}

func isYearNumber(s string) bool {
	year, number, ok := strings.Cut(s, "/")
	return ok && isDigits(year) && isDigits(number)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ImplementationSummary aggregates the national provisions referencing one
// EU act.
type ImplementationSummary struct {
	EuID                string            `json:"euId"`
	EuType              law.EuActType     `json:"euType"`
	ImplementationCount int               `json:"implementationCount"`
	StatuteIDs          []string          `json:"statuteIds,omitempty"`
	Examples            []law.EuReference `json:"examples,omitempty"`
}

// Summarize groups references by (id, type), counts distinct source
// documents, and sorts by count descending, then id ascending. Each summary
// keeps up to maxExamples references as evidence.
func Summarize(refs []law.EuReference, maxExamples int) []ImplementationSummary {
	type bucket struct {
		summary  ImplementationSummary
		sources  map[string]bool
		statutes map[string]bool
	}
	buckets := make(map[string]*bucket)
	var keys []string
	for _, ref := range refs {
		key := strings.ToLower(ref.EuID) + "\x00" + strings.ToLower(string(ref.EuType))
		b, ok := buckets[key]
		if !ok {
			b = &bucket{
				summary:  ImplementationSummary{EuID: ref.EuID, EuType: ref.EuType},
				sources:  make(map[string]bool),
				statutes: make(map[string]bool),
			}
			buckets[key] = b
			keys = append(keys, key)
		}
		if !b.sources[ref.SourceID] {
			b.sources[ref.SourceID] = true
			b.summary.ImplementationCount++
		}
		if ref.SourceStatuteID != "" && !b.statutes[ref.SourceStatuteID] {
			b.statutes[ref.SourceStatuteID] = true
			b.summary.StatuteIDs = append(b.summary.StatuteIDs, ref.SourceStatuteID)
		}
		if maxExamples <= 0 || len(b.summary.Examples) < maxExamples {
			b.summary.Examples = append(b.summary.Examples, ref)
		}
	}

	out := make([]ImplementationSummary, 0, len(keys))
	for _, key := range keys {
		b := buckets[key]
		sort.Strings(b.summary.StatuteIDs)
		out = append(out, b.summary)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ImplementationCount != out[j].ImplementationCount {
			return out[i].ImplementationCount > out[j].ImplementationCount
		}
		return out[i].EuID < out[j].EuID
	})
	return out
}
