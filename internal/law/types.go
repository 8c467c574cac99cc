// Package law defines the shared domain types of the retrieval core:
// documents, parsed citations, EU references, capabilities, and the
// adapter descriptor. Every other package depends on this one; it depends
// on nothing but the standard library.
package law

import "strings"

// DocumentKind classifies a retrievable document.
type DocumentKind string

const (
	KindStatute         DocumentKind = "statute"
	KindRegulation      DocumentKind = "regulation"
	KindCase            DocumentKind = "case"
	KindPreparatoryWork DocumentKind = "preparatory_work"
	KindOther           DocumentKind = "other"
)

// ValidKind reports whether k is one of the closed document kinds.
func ValidKind(k DocumentKind) bool {
	switch k {
	case KindStatute, KindRegulation, KindCase, KindPreparatoryWork, KindOther:
		return true
	}
	return false
}

// Document is the atomic retrieval unit. Metadata values are scalars only
// (string, float64, bool, or nil); nested structures never appear.
type Document struct {
	ID            string         `json:"id"`
	Jurisdiction  string         `json:"jurisdiction"`
	Kind          DocumentKind   `json:"kind"`
	Title         string         `json:"title"`
	Citation      string         `json:"citation,omitempty"`
	SourceURL     string         `json:"sourceUrl,omitempty"`
	EffectiveDate string         `json:"effectiveDate,omitempty"`
	TextSnippet   string         `json:"textSnippet,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// SearchableText assembles the text the EU extractor scans: title, citation,
// snippet, and metadata values, whitespace-collapsed.
func (d *Document) SearchableText() string {
	parts := make([]string, 0, 4+len(d.Metadata))
	parts = append(parts, d.Title, d.Citation, d.TextSnippet)
	for _, v := range d.Metadata {
		if s, ok := v.(string); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// CitationType discriminates the two recognized citation shapes.
type CitationType string

const (
	CitationParagraph CitationType = "paragraph"
	CitationArticle   CitationType = "article"
)

// ParsedCitation is the outcome of grammar parsing.
type ParsedCitation struct {
	Type CitationType `json:"type"`

	// Normalized is the canonical rendering, e.g. "§ 823 Abs. 1 BGB".
	Normalized string `json:"normalized"`

	// Parsed holds the individual components (section, paragraph, sentence,
	// number, letter, article, code, marker) keyed by name.
	Parsed map[string]string `json:"parsed"`

	// LookupCitations are minimal forms (marker + section/article + code)
	// used for exact-match joins against stored citations. Lower-cased
	// matching is expected on the store side.
	LookupCitations []string `json:"lookup_citations"`
}

// EuActType classifies an extracted EU reference.
type EuActType string

const (
	EuDirective  EuActType = "directive"
	EuRegulation EuActType = "regulation"
	EuDecision   EuActType = "decision"
	EuAct        EuActType = "act"
)

// EuReference is a cross-reference from a national document to an EU act.
type EuReference struct {
	EuID            string    `json:"euId"`
	EuType          EuActType `json:"euType"`
	SourceKind      string    `json:"sourceKind"`
	SourceID        string    `json:"sourceId"`
	SourceStatuteID string    `json:"sourceStatuteId,omitempty"`
	SourceCitation  string    `json:"sourceCitation,omitempty"`
	SourceTitle     string    `json:"sourceTitle,omitempty"`
	SourceURL       string    `json:"sourceUrl,omitempty"`
	ContextSnippet  string    `json:"contextSnippet,omitempty"`
	Confidence      float64   `json:"confidence"`
}

// Capability names a runtime-detected corpus feature.
type Capability string

const (
	CapCoreLegislation      Capability = "core_legislation"
	CapBasicCaseLaw         Capability = "basic_case_law"
	CapEuReferences         Capability = "eu_references"
	CapExpandedCaseLaw      Capability = "expanded_case_law"
	CapFullPreparatoryWorks Capability = "full_preparatory_works"
	CapAgencyGuidance       Capability = "agency_guidance"
)

// CapabilitySet is the set of capabilities detected in a corpus snapshot.
type CapabilitySet map[Capability]bool

// Has reports whether c is present.
func (s CapabilitySet) Has(c Capability) bool { return s[c] }

// List returns the present capabilities in stable (alphabetical) order.
func (s CapabilitySet) List() []string {
	ordered := []Capability{
		CapAgencyGuidance,
		CapBasicCaseLaw,
		CapCoreLegislation,
		CapEuReferences,
		CapExpandedCaseLaw,
		CapFullPreparatoryWorks,
	}
	out := make([]string, 0, len(s))
	for _, c := range ordered {
		if s[c] {
			out = append(out, string(c))
		}
	}
	return out
}

// ToolFlags is the static capability contract of an adapter. A false flag
// means the operation is not part of the adapter's surface at all; the
// runtime CapabilitySet then narrows what a true flag can actually serve.
type ToolFlags struct {
	Documents        bool `json:"documents"`
	CaseLaw          bool `json:"caseLaw"`
	PreparatoryWorks bool `json:"preparatoryWorks"`
	Citations        bool `json:"citations"`
	Formatting       bool `json:"formatting"`
	Currency         bool `json:"currency"`
	LegalStance      bool `json:"legalStance"`
	EU               bool `json:"eu"`
	Ingestion        bool `json:"ingestion"`
}

// Descriptor describes a registered jurisdiction adapter.
type Descriptor struct {
	JurisdictionCode string    `json:"jurisdiction_code"`
	Name             string    `json:"name"`
	DefaultLanguage  string    `json:"default_language"`
	Sources          []string  `json:"sources"`
	Tools            ToolFlags `json:"tools"`
}

// IngestionReport summarizes one ingestion subprocess run. A failed run is
// reported with zero counts, never as an error.
type IngestionReport struct {
	StartedAt     string `json:"startedAt"`
	FinishedAt    string `json:"finishedAt"`
	SourceID      string `json:"sourceId,omitempty"`
	DryRun        bool   `json:"dryRun"`
	IngestedCount int    `json:"ingestedCount"`
	SkippedCount  int    `json:"skippedCount"`
}
