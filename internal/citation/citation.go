// Package citation parses and normalizes jurisdiction-specific citation
// strings into structured records plus canonical lookup forms. Each
// jurisdiction supplies a Grammar; the German grammar covers the §/Art.
// shapes, the Swedish and Norwegian grammars are simple identifier patterns.
package citation

import (
	"strings"

	"rechtskern/internal/law"
)

// Grammar parses citation strings for one jurisdiction.
//
// Parse returns nil for any input that does not match the jurisdiction's
// citation shapes; it never returns an error.
type Grammar interface {
	Jurisdiction() string
	Parse(input string) *law.ParsedCitation
}

// ShortForm reduces a parsed citation to marker + primary number + code,
// dropping the subdivision tail: "§ 1 Abs. 1 BDSG" becomes "§ 1 BDSG" and
// "Art. 1 Abs. 1 GG" becomes "Art. 1 GG".
func ShortForm(pc *law.ParsedCitation) string {
	if pc == nil {
		return ""
	}
	marker := pc.Parsed["marker"]
	code := pc.Parsed["code"]
	primary := pc.Parsed["section"]
	if pc.Type == law.CitationArticle {
		primary = pc.Parsed["article"]
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{marker, primary, code} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// collapseWhitespace trims and squeezes runs of whitespace to single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
