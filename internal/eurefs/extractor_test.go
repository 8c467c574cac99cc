package eurefs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"rechtskern/internal/law"
)

func doc(id, snippet string) *law.Document {
	return &law.Document{
		ID:           id,
		Jurisdiction: "de",
		Kind:         law.KindStatute,
		Title:        "Testdokument",
		TextSnippet:  snippet,
		Metadata:     map[string]any{"statuteId": "bdsg"},
	}
}

func TestExtractCelex(t *testing.T) {
	e := NewExtractor()

	tests := []struct {
		snippet    string
		id         string
		actType    law.EuActType
		confidence float64
	}{
		{"Siehe CELEX:32016R0679 zur Datenverarbeitung.", "EU 2016/679", law.EuRegulation, 0.99},
		{"vgl. 31995L0046 (aufgehoben)", "EU 1995/46", law.EuDirective, 0.99},
		{"Beschluss 32000D0520 des Rates", "EU 2000/520", law.EuDecision, 0.99},
	}
	for _, tt := range tests {
		refs := e.Extract(doc("d1", tt.snippet))
		require.NotEmpty(t, refs, "snippet %q", tt.snippet)
		require.Equal(t, tt.id, refs[0].EuID)
		require.Equal(t, tt.actType, refs[0].EuType)
		require.Equal(t, tt.confidence, refs[0].Confidence)
	}
}

func TestExtractTypedForms(t *testing.T) {
	e := NewExtractor()

	tests := []struct {
		name       string
		snippet    string
		id         string
		actType    law.EuActType
		confidence float64
	}{
		{
			name:       "typed prefix with parenthesized jurisdiction",
			snippet:    "ergänzend zur Verordnung (EU) 2016/679 des Europäischen Parlaments",
			id:         "EU 2016/679",
			actType:    law.EuRegulation,
			confidence: 0.95,
		},
		{
			name:       "typed prefix without jurisdiction",
			snippet:    "Umsetzung der Richtlinie 2011/83 über Verbraucherrechte",
			id:         "EU 2011/83",
			actType:    law.EuDirective,
			confidence: 0.95,
		},
		{
			name:       "typed suffix",
			snippet:    "die Richtlinie 95/46/EG wurde aufgehoben",
			id:         "EG 1995/46",
			actType:    law.EuDirective,
			confidence: 0.94,
		},
		{
			name:       "english regulation number-first",
			snippet:    "see Regulation (EC) Nr. 45/2001 of the European Parliament",
			id:         "EG 2001/45",
			actType:    law.EuRegulation,
			confidence: 0.95,
		},
		{
			name:       "decision word",
			snippet:    "gemäß Beschluss (EU) 2021/915 der Kommission",
			id:         "EU 2021/915",
			actType:    law.EuDecision,
			confidence: 0.95,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs := e.Extract(doc("d1", tt.snippet))
			require.Len(t, refs, 1)
			require.Equal(t, tt.id, refs[0].EuID)
			require.Equal(t, tt.actType, refs[0].EuType)
			require.Equal(t, tt.confidence, refs[0].Confidence)
		})
	}
}

func TestExtractGenericForms(t *testing.T) {
	e := NewExtractor()

	refs := e.Extract(doc("d1", "im Sinne der (EU) 2016/679 geltenden Regeln"))
	require.Len(t, refs, 1)
	require.Equal(t, "EU 2016/679", refs[0].EuID)
	require.Equal(t, law.EuAct, refs[0].EuType)
	require.Equal(t, 0.90, refs[0].Confidence)

	refs = e.Extract(doc("d1", "nach Maßgabe von 2016/679/EU ist zu verfahren"))
	require.Len(t, refs, 1)
	require.Equal(t, "EU 2016/679", refs[0].EuID)
	require.Equal(t, 0.89, refs[0].Confidence)
}

// A typed suffix must not double-report as a generic suffix, and a document
// citing the same act in three spellings yields one reference per type.
func TestExtractDedupWithinDocument(t *testing.T) {
	e := NewExtractor()

	refs := e.Extract(doc("d1", "die Richtlinie 95/46/EG, vgl. auch 95/46/EG"))
	ids := map[string]int{}
	for _, r := range refs {
		ids[r.EuID+"/"+string(r.EuType)]++
	}
	require.Equal(t, 1, ids["EG 1995/46/directive"], "typed mention deduplicated")

	refs = e.Extract(doc("d1",
		"Verordnung (EU) 2016/679 (CELEX:32016R0679); die 2016/679/EU gilt unmittelbar."))
	var regulation, act int
	for _, r := range refs {
		require.Equal(t, "EU 2016/679", r.EuID)
		switch r.EuType {
		case law.EuRegulation:
			regulation++
			// CELEX wins the confidence contest for the regulation-typed entry.
			require.Equal(t, 0.99, r.Confidence)
		case law.EuAct:
			act++
		}
	}
	require.Equal(t, 1, regulation)
	require.Equal(t, 1, act)
}

func TestExtractContextSnippet(t *testing.T) {
	e := NewExtractor()

	long := strings.Repeat("x ", 120) + "Verordnung (EU) 2016/679" + strings.Repeat(" y", 120)
	refs := e.Extract(doc("d1", long))
	require.Len(t, refs, 1)
	require.Contains(t, refs[0].ContextSnippet, "Verordnung (EU) 2016/679")
	require.LessOrEqual(t, len(refs[0].ContextSnippet), len("Verordnung (EU) 2016/679")+2*contextRadius)
}

func TestExtractSourceFields(t *testing.T) {
	e := NewExtractor()

	d := &law.Document{
		ID:           "bdsg:1",
		Jurisdiction: "de",
		Kind:         law.KindStatute,
		Title:        "§ 1 BDSG",
		Citation:     "§ 1 BDSG",
		SourceURL:    "https://example.org/bdsg/1",
		TextSnippet:  "ergänzend zur Verordnung (EU) 2016/679",
		Metadata:     map[string]any{"statuteId": "bdsg"},
	}
	refs := e.Extract(d)
	require.Len(t, refs, 1)
	require.Equal(t, "bdsg:1", refs[0].SourceID)
	require.Equal(t, "bdsg", refs[0].SourceStatuteID)
	require.Equal(t, "§ 1 BDSG", refs[0].SourceCitation)
	require.Equal(t, "statute", refs[0].SourceKind)
	require.Equal(t, "https://example.org/bdsg/1", refs[0].SourceURL)
}

func TestExtractNoMatches(t *testing.T) {
	e := NewExtractor()
	require.Empty(t, e.Extract(doc("d1", "Der Schuldner ist zur Leistung verpflichtet.")))
	require.Empty(t, e.Extract(nil))
}

func TestNormalizeID(t *testing.T) {
	e := NewExtractor()

	tests := []struct {
		input string
		want  string
	}{
		{"EU 2016/679", "EU 2016/679"},
		{"2016/679", "EU 2016/679"},
		{"32016R0679", "EU 2016/679"},
		{"CELEX:32016R0679", "EU 2016/679"},
		{"Richtlinie 95/46/EG", "EG 1995/46"},
		{"(EU) 2016/679", "EU 2016/679"},
		{"ec 45/2001", "EG 2001/45"},
		{"", ""},
		{"not an identifier", "not an identifier"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, e.NormalizeID(tt.input), "input %q", tt.input)
	}
}

func TestSameID(t *testing.T) {
	e := NewExtractor()

	require.True(t, e.SameID("EU 2016/679", "2016/679"))
	require.True(t, e.SameID("32016R0679", "EU 2016/679"))
	require.True(t, e.SameID("Richtlinie 95/46/EG", "EU 1995/46"), "jurisdiction prefix stripped")
	require.False(t, e.SameID("EU 2016/679", "EU 2016/680"))
	require.False(t, e.SameID("EU 2016/679", "EU 2015/679"))
}

func TestSummarize(t *testing.T) {
	refs := []law.EuReference{
		{EuID: "EU 2016/679", EuType: law.EuRegulation, SourceID: "bdsg:1", SourceStatuteID: "bdsg"},
		{EuID: "EU 2016/679", EuType: law.EuRegulation, SourceID: "bdsg:22", SourceStatuteID: "bdsg"},
		{EuID: "EU 2016/679", EuType: law.EuRegulation, SourceID: "sgb:67", SourceStatuteID: "sgb"},
		{EuID: "EG 2002/58", EuType: law.EuDirective, SourceID: "ttdsg:1", SourceStatuteID: "ttdsg"},
		// Same source twice must count once.
		{EuID: "EG 2002/58", EuType: law.EuDirective, SourceID: "ttdsg:1", SourceStatuteID: "ttdsg"},
	}

	out := Summarize(refs, 2)
	require.Len(t, out, 2)

	require.Equal(t, "EU 2016/679", out[0].EuID)
	require.Equal(t, 3, out[0].ImplementationCount)
	require.Equal(t, []string{"bdsg", "sgb"}, out[0].StatuteIDs)
	require.Len(t, out[0].Examples, 2)

	require.Equal(t, "EG 2002/58", out[1].EuID)
	require.Equal(t, 1, out[1].ImplementationCount)
}

func TestSummarizeTieBreaksByID(t *testing.T) {
	refs := []law.EuReference{
		{EuID: "EU 2019/1024", EuType: law.EuDirective, SourceID: "a"},
		{EuID: "EU 2016/679", EuType: law.EuRegulation, SourceID: "b"},
	}
	out := Summarize(refs, 0)
	require.Len(t, out, 2)
	require.Equal(t, "EU 2016/679", out[0].EuID)
	require.Equal(t, "EU 2019/1024", out[1].EuID)
}
