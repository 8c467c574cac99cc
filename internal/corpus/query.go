package corpus

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CompiledQuery is a pair of FTS5 expressions derived from raw user input.
// Primary is prefix-conjunctive (every token a prefix match, AND-joined);
// Fallback is prefix-disjunctive and only present for multi-token input.
type CompiledQuery struct {
	Primary  string
	Fallback string
}

// CompileQuery turns a free-text query into expressions that cannot produce
// an FTS5 parse failure: double quotes are stripped, and any token carrying
// reserved operator characters is wrapped in quotes so it matches literally.
// Same input always yields the same output.
func CompileQuery(raw string) CompiledQuery {
	cleaned := strings.ReplaceAll(raw, `"`, "")
	tokens := strings.Fields(cleaned)
	if len(tokens) == 0 {
		return CompiledQuery{}
	}

	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		terms = append(terms, prefixTerm(tok))
	}

	cq := CompiledQuery{Primary: strings.Join(terms, " AND ")}
	if len(terms) > 1 {
		cq.Fallback = strings.Join(terms, " OR ")
	}
	return cq
}

// prefixTerm renders one token as an FTS5 prefix term, quoting it when it
// contains anything outside bareword characters or is a reserved operator
// keyword.
func prefixTerm(tok string) string {
	if isBareword(tok) && !isOperatorWord(tok) {
		return tok + "*"
	}
	return `"` + tok + `"*`
}

// isOperatorWord reports whether tok is an FTS5 keyword operator. Only the
// upper-case spellings are operators.
func isOperatorWord(tok string) bool {
	switch tok {
	case "AND", "OR", "NOT", "NEAR":
		return true
	}
	return false
}

func isBareword(tok string) bool {
	for _, r := range tok {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

// substringTokens produces the substring-stage tokens: NFC-normalized,
// whitespace-split, lower-cased, keeping tokens of at least two runes.
func substringTokens(raw string) []string {
	var out []string
	for _, tok := range strings.Fields(norm.NFC.String(raw)) {
		if len([]rune(tok)) >= 2 {
			out = append(out, strings.ToLower(tok))
		}
	}
	return out
}
