package adapter

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"rechtskern/internal/law"
)

//go:embed seeds/*.yaml
var seedFS embed.FS

// seedDocument mirrors the YAML seed layout.
type seedDocument struct {
	ID            string `yaml:"id"`
	StatuteID     string `yaml:"statuteId"`
	SectionRef    string `yaml:"sectionRef"`
	Kind          string `yaml:"kind"`
	Title         string `yaml:"title"`
	Citation      string `yaml:"citation"`
	SourceURL     string `yaml:"sourceUrl"`
	EffectiveDate string `yaml:"effectiveDate"`
	TextSnippet   string `yaml:"textSnippet"`
}

type seedFile struct {
	Documents []seedDocument `yaml:"documents"`
}

// seedCorpus is the in-memory fallback served when the database is absent.
type seedCorpus struct {
	country string
	docs    []law.Document
}

// loadSeeds parses one embedded seed file into a corpus for the country.
func loadSeeds(name, country string) (*seedCorpus, error) {
	raw, err := seedFS.ReadFile("seeds/" + name)
	if err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", name, err)
	}
	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", name, err)
	}

	docs := make([]law.Document, 0, len(file.Documents))
	for _, sd := range file.Documents {
		kind := law.DocumentKind(sd.Kind)
		if !law.ValidKind(kind) {
			kind = law.KindStatute
		}
		docs = append(docs, law.Document{
			ID:            sd.ID,
			Jurisdiction:  country,
			Kind:          kind,
			Title:         sd.Title,
			Citation:      sd.Citation,
			SourceURL:     sd.SourceURL,
			EffectiveDate: sd.EffectiveDate,
			TextSnippet:   sd.TextSnippet,
			Metadata: map[string]any{
				"statuteId":  sd.StatuteID,
				"sectionRef": sd.SectionRef,
				"seed":       true,
			},
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return &seedCorpus{country: country, docs: docs}, nil
}

// byID returns the seed with the given id, or nil.
func (sc *seedCorpus) byID(id string) *law.Document {
	for i := range sc.docs {
		if sc.docs[i].ID == id {
			doc := sc.docs[i]
			return &doc
		}
	}
	return nil
}

// byStatute lists seeds of one statute in section order.
func (sc *seedCorpus) byStatute(statuteID string, limit int) []law.Document {
	out := []law.Document{}
	for _, doc := range sc.docs {
		if len(out) >= limit {
			break
		}
		if sid, _ := doc.Metadata["statuteId"].(string); strings.EqualFold(sid, statuteID) {
			out = append(out, doc)
		}
	}
	return out
}

// byCitation matches the lower-cased lookup forms against seed citations.
func (sc *seedCorpus) byCitation(lookups []string, limit int) []law.Document {
	out := []law.Document{}
	seen := make(map[string]bool)
	for _, lookup := range lookups {
		lookup = strings.ToLower(lookup)
		for _, doc := range sc.docs {
			if len(out) >= limit {
				return out
			}
			if !seen[doc.ID] && strings.ToLower(doc.Citation) == lookup {
				seen[doc.ID] = true
				out = append(out, doc)
			}
		}
	}
	return out
}

// search is substring-only: every token of length >= 2 must appear in the
// title, citation, or snippet (case-insensitive). Exact citation matches via
// lookups come first.
func (sc *seedCorpus) search(query string, lookups []string, limit int) []law.Document {
	out := sc.byCitation(lookups, limit)
	seen := make(map[string]bool, len(out))
	for _, doc := range out {
		seen[doc.ID] = true
	}

	tokens := []string{}
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		if len([]rune(tok)) >= 2 {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		return out
	}

	for _, doc := range sc.docs {
		if len(out) >= limit {
			break
		}
		if seen[doc.ID] {
			continue
		}
		haystack := strings.ToLower(doc.Title + " " + doc.Citation + " " + doc.TextSnippet)
		all := true
		for _, tok := range tokens {
			if !strings.Contains(haystack, tok) {
				all = false
				break
			}
		}
		if all {
			seen[doc.ID] = true
			out = append(out, doc)
		}
	}
	return out
}
