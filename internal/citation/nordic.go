package citation

import (
	"regexp"
	"strings"

	"rechtskern/internal/law"
)

// SwedishGrammar recognizes SFS identifiers ("SFS 1998:204").
type SwedishGrammar struct {
	pattern *regexp.Regexp
}

// NewSwedishGrammar compiles the SFS pattern.
func NewSwedishGrammar() *SwedishGrammar {
	return &SwedishGrammar{
		pattern: regexp.MustCompile(`(?i)^SFS\s*(\d{4}):(\d+)$`),
	}
}

func (g *SwedishGrammar) Jurisdiction() string { return "se" }

// Parse matches an SFS identifier; nil otherwise.
func (g *SwedishGrammar) Parse(input string) *law.ParsedCitation {
	m := g.pattern.FindStringSubmatch(collapseWhitespace(input))
	if m == nil {
		return nil
	}
	normalized := "SFS " + m[1] + ":" + m[2]
	return &law.ParsedCitation{
		Type:       law.CitationArticle,
		Normalized: normalized,
		Parsed: map[string]string{
			"marker":  "SFS",
			"code":    "SFS",
			"article": m[1] + ":" + m[2],
			"year":    m[1],
			"number":  m[2],
		},
		LookupCitations: []string{normalized},
	}
}

// NorwegianGrammar recognizes LOV identifiers ("LOV-1814-05-17" or
// "LOV-2018-06-15-38").
type NorwegianGrammar struct {
	pattern *regexp.Regexp
}

// NewNorwegianGrammar compiles the LOV pattern.
func NewNorwegianGrammar() *NorwegianGrammar {
	return &NorwegianGrammar{
		pattern: regexp.MustCompile(`(?i)^LOV-(\d{4})-(\d{2})-(\d{2})(?:-(\d+))?$`),
	}
}

func (g *NorwegianGrammar) Jurisdiction() string { return "no" }

// Parse matches a LOV identifier; nil otherwise.
func (g *NorwegianGrammar) Parse(input string) *law.ParsedCitation {
	m := g.pattern.FindStringSubmatch(collapseWhitespace(input))
	if m == nil {
		return nil
	}
	normalized := "LOV-" + m[1] + "-" + m[2] + "-" + m[3]
	parsed := map[string]string{
		"marker": "LOV",
		"code":   "LOV",
		"year":   m[1],
	}
	if m[4] != "" {
		normalized += "-" + m[4]
		parsed["number"] = m[4]
	}
	parsed["article"] = strings.TrimPrefix(normalized, "LOV-")
	return &law.ParsedCitation{
		Type:            law.CitationArticle,
		Normalized:      normalized,
		Parsed:          parsed,
		LookupCitations: []string{normalized},
	}
}
