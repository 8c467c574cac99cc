package corpus

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"rechtskern/internal/law"
)

// newTestCorpus writes a corpus fixture with the real schema to a temp file
// and returns its path. The FTS companions are created best-effort: when the
// driver build lacks FTS5 the ranked stage degrades to a miss and the
// substring stage carries the search, which is exactly the production
// behavior on a corpus without indexes.
func newTestCorpus(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.sqlite3")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	ddl := []string{
		`CREATE TABLE statutes (
			statute_id TEXT PRIMARY KEY, title TEXT, jurabk TEXT, amtabk TEXT,
			full_title TEXT, issue_date TEXT, source_url TEXT, xml_url TEXT,
			section_count INTEGER, updated_at TEXT)`,
		`CREATE TABLE law_documents (
			id TEXT PRIMARY KEY, country TEXT, statute_id TEXT, section_ref TEXT,
			kind TEXT, title TEXT, citation TEXT, source_url TEXT,
			effective_date TEXT, text_snippet TEXT, metadata_json TEXT, updated_at TEXT)`,
		`CREATE TABLE case_law_documents (
			id TEXT PRIMARY KEY, country TEXT, case_id TEXT UNIQUE, ecli TEXT,
			court TEXT, decision_date TEXT, file_number TEXT, decision_type TEXT,
			title TEXT, citation TEXT, source_url TEXT, text_snippet TEXT,
			metadata_json TEXT, updated_at TEXT)`,
		`CREATE TABLE preparatory_works (
			id TEXT PRIMARY KEY, country TEXT, dip_id TEXT UNIQUE, title TEXT,
			statute_id TEXT, statute_citation TEXT, work_type TEXT,
			publication_date TEXT, source_url TEXT, text_snippet TEXT,
			metadata_json TEXT, updated_at TEXT)`,
		`CREATE TABLE corpus_meta (key TEXT PRIMARY KEY, value TEXT)`,
		`CREATE TABLE ingestion_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT, source_id TEXT, started_at TEXT,
			finished_at TEXT, status TEXT, total_laws INTEGER, ingested_laws INTEGER,
			skipped_laws INTEGER, ingested_sections INTEGER, skipped_sections INTEGER,
			error_count INTEGER, error_sample TEXT, notes TEXT)`,
	}
	for _, stmt := range ddl {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	lawRows := [][]any{
		{"bdsg:1", "de", "bdsg", "1", "statute", "§ 1 BDSG — Anwendungsbereich des Gesetzes",
			"§ 1 BDSG", "https://example.org/bdsg/1", "2018-05-25",
			"Dieses Gesetz gilt ergänzend zur Verordnung (EU) 2016/679 (Datenschutz-Grundverordnung).",
			`{"jurabk":"BDSG"}`},
		{"bdsg:3", "de", "bdsg", "3", "statute", "§ 3 BDSG — Verarbeitung durch öffentliche Stellen",
			"§ 3 BDSG", "https://example.org/bdsg/3", "2018-05-25",
			"Die Verarbeitung personenbezogener Daten durch öffentliche Stellen ist zulässig.",
			`{"jurabk":"BDSG","extra":{"nested":true}}`},
		{"bdsg:22", "de", "bdsg", "22", "statute", "§ 22 BDSG — Besondere Kategorien personenbezogener Daten",
			"§ 22 BDSG", "https://example.org/bdsg/22", "2018-05-25",
			"Abweichend von Artikel 9 Absatz 1 der Verordnung (EU) 2016/679 ist die Verarbeitung zulässig.",
			nil},
		{"bgb:242", "de", "bgb", "242", "statute", "§ 242 BGB — Leistung nach Treu und Glauben",
			"§ 242 BGB", "https://example.org/bgb/242", "2002-01-02",
			"Der Schuldner ist verpflichtet, die Leistung nach Treu und Glauben zu bewirken.",
			nil},
		{"bgb:823", "de", "bgb", "823", "statute", "§ 823 BGB — Schadensersatzpflicht",
			"§ 823 BGB", "https://example.org/bgb/823", "2002-01-02",
			"Wer vorsätzlich oder fahrlässig ein Recht eines anderen verletzt, ist zum Schadensersatz verpflichtet.",
			nil},
	}
	for _, r := range lawRows {
		_, err := db.Exec(`INSERT INTO law_documents
			(id, country, statute_id, section_ref, kind, title, citation, source_url,
			 effective_date, text_snippet, metadata_json, updated_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,'2024-01-01')`, r...)
		require.NoError(t, err)
	}

	caseRows := [][]any{
		{"case:bgh:2019:1", "de", "bgh-vi-zr-506-17", "ECLI:DE:BGH:2019:190219UVIZR506.17.0",
			"Bundesgerichtshof", "2019-02-19", "VI ZR 506/17", "Urteil",
			"Schadensersatz bei Persönlichkeitsrechtsverletzung",
			"BGH, Urteil vom 19.02.2019 - VI ZR 506/17",
			"https://example.org/bgh/1", "Der Anspruch aus § 823 BGB setzt eine Rechtsgutverletzung voraus."},
		{"case:bverfg:2020:1", "de", "bverfg-1-bvr-16-13", "ECLI:DE:BVerfG:2020:rs20200206.1bvr001613",
			"Bundesverfassungsgericht", "2020-02-06", "1 BvR 16/13", "Beschluss",
			"Recht auf Vergessen",
			"BVerfG, Beschluss vom 06.02.2020 - 1 BvR 16/13",
			"https://example.org/bverfg/1", "Grundrechtsschutz im Anwendungsbereich der DSGVO."},
	}
	for _, r := range caseRows {
		_, err := db.Exec(`INSERT INTO case_law_documents
			(id, country, case_id, ecli, court, decision_date, file_number, decision_type,
			 title, citation, source_url, text_snippet, metadata_json, updated_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,NULL,'2024-01-01')`, r...)
		require.NoError(t, err)
	}

	prepRows := [][]any{
		{"prep:dip:1", "de", "dip-19-4674", "Entwurf eines Gesetzes zur Anpassung des Datenschutzrechts",
			"bdsg", "§ 1 BDSG", "Gesetzentwurf", "2017-02-14",
			"https://example.org/dip/1", "Anpassung an die Verordnung (EU) 2016/679."},
		{"prep:dip:2", "de", "dip-19-27441", "Entwurf eines Telekommunikation-Telemedien-Datenschutz-Gesetzes",
			"ttdsg", "§ 1 TTDSG", "Gesetzentwurf", "2021-01-26",
			"https://example.org/dip/2", "Umsetzung der Richtlinie 2002/58/EG."},
	}
	for _, r := range prepRows {
		_, err := db.Exec(`INSERT INTO preparatory_works
			(id, country, dip_id, title, statute_id, statute_citation, work_type,
			 publication_date, source_url, text_snippet, metadata_json, updated_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,NULL,'2024-01-01')`, r...)
		require.NoError(t, err)
	}

	_, err = db.Exec(`INSERT INTO corpus_meta (key, value) VALUES
		('tier','development'), ('schema_version','3'),
		('built_at','2024-06-01T00:00:00Z'), ('builder','pipeline')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO ingestion_runs
		(source_id, started_at, finished_at, status, total_laws, ingested_laws,
		 skipped_laws, ingested_sections, skipped_sections, error_count)
		VALUES ('gesetze-im-internet', '2024-06-01T00:00:00Z', '2024-06-01T01:00:00Z',
		        'completed', 10, 9, 1, 500, 12, 0)`)
	require.NoError(t, err)

	// FTS companions, best-effort.
	for _, stmt := range []string{
		`CREATE VIRTUAL TABLE law_documents_fts USING fts5(
			title, citation, text_snippet, content='law_documents', content_rowid='rowid', tokenize='unicode61')`,
		`INSERT INTO law_documents_fts(rowid, title, citation, text_snippet)
			SELECT rowid, title, citation, text_snippet FROM law_documents`,
		`CREATE VIRTUAL TABLE case_law_documents_fts USING fts5(
			title, citation, text_snippet, content='case_law_documents', content_rowid='rowid', tokenize='unicode61')`,
		`INSERT INTO case_law_documents_fts(rowid, title, citation, text_snippet)
			SELECT rowid, title, citation, text_snippet FROM case_law_documents`,
		`CREATE VIRTUAL TABLE preparatory_works_fts USING fts5(
			title, statute_citation, text_snippet, content='preparatory_works', content_rowid='rowid', tokenize='unicode61')`,
		`INSERT INTO preparatory_works_fts(rowid, title, statute_citation, text_snippet)
			SELECT rowid, title, statute_citation, text_snippet FROM preparatory_works`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			break
		}
	}

	return path
}

func TestStoreUnavailable(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing.sqlite3"), "de")
	defer s.Close()

	require.False(t, s.Available())
	require.Empty(t, s.Capabilities())

	_, err := s.SearchDocuments(context.Background(), "§ 823 BGB", nil, 10)
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = s.GetDocument(context.Background(), "bgb:823")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestStoreCapabilitiesAndMeta(t *testing.T) {
	s := New(newTestCorpus(t), "de")
	defer s.Close()

	require.True(t, s.Available())
	caps := s.Capabilities()
	require.True(t, caps.Has(law.CapCoreLegislation))
	require.True(t, caps.Has(law.CapEuReferences))
	require.True(t, caps.Has(law.CapBasicCaseLaw))
	require.True(t, caps.Has(law.CapFullPreparatoryWorks))
	require.False(t, caps.Has(law.CapExpandedCaseLaw), "two rows are not an expanded corpus")
	require.False(t, caps.Has(law.CapAgencyGuidance))

	meta := s.Metadata()
	require.Equal(t, "development", meta.Tier)
	require.Equal(t, "3", meta.SchemaVersion)
	require.Equal(t, "pipeline", meta.Builder)
}

func TestSearchDocumentsExactCitationFirst(t *testing.T) {
	s := New(newTestCorpus(t), "de")
	defer s.Close()

	docs, err := s.SearchDocuments(context.Background(), "§ 1 BDSG", []string{"§ 1 bdsg"}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	require.Equal(t, "bdsg:1", docs[0].ID)
	require.Equal(t, law.KindStatute, docs[0].Kind)
	require.Equal(t, "bdsg", docs[0].Metadata["statuteId"])
	require.Equal(t, "1", docs[0].Metadata["sectionRef"])
}

func TestSearchDocumentsDedupAcrossStages(t *testing.T) {
	s := New(newTestCorpus(t), "de")
	defer s.Close()

	// "§ 1 BDSG" matches bdsg:1 exactly and again in later stages; it must
	// appear once.
	docs, err := s.SearchDocuments(context.Background(), "§ 1 BDSG", []string{"§ 1 bdsg"}, 10)
	require.NoError(t, err)
	seen := map[string]int{}
	for _, d := range docs {
		seen[d.ID]++
	}
	for id, n := range seen {
		require.Equal(t, 1, n, "document %s returned %d times", id, n)
	}
}

func TestSearchDocumentsSubstringFallback(t *testing.T) {
	s := New(newTestCorpus(t), "de")
	defer s.Close()

	docs, err := s.SearchDocuments(context.Background(), "Treu Glauben", nil, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "bgb:242", docs[0].ID)
}

func TestSearchDocumentsNoMatch(t *testing.T) {
	s := New(newTestCorpus(t), "de")
	defer s.Close()

	docs, err := s.SearchDocuments(context.Background(), "Mietrecht Kündigungsfrist Sonderfall", nil, 10)
	require.NoError(t, err)
	require.NotNil(t, docs)
	require.Empty(t, docs)
}

func TestSearchDocumentsLimitClamp(t *testing.T) {
	s := New(newTestCorpus(t), "de")
	defer s.Close()

	docs, err := s.SearchDocuments(context.Background(), "BDSG", nil, 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestDocumentsByStatuteNumericOrder(t *testing.T) {
	s := New(newTestCorpus(t), "de")
	defer s.Close()

	docs, err := s.DocumentsByStatute(context.Background(), "bdsg", 10)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	// Numeric section order, not lexicographic ("22" would sort before "3").
	require.Equal(t, "bdsg:1", docs[0].ID)
	require.Equal(t, "bdsg:3", docs[1].ID)
	require.Equal(t, "bdsg:22", docs[2].ID)
}

func TestDocumentsByCitation(t *testing.T) {
	s := New(newTestCorpus(t), "de")
	defer s.Close()

	docs, err := s.DocumentsByCitation(context.Background(), []string{"§ 823 bgb"}, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "bgb:823", docs[0].ID)
}

func TestGetDocumentProbesAllTables(t *testing.T) {
	s := New(newTestCorpus(t), "de")
	defer s.Close()
	ctx := context.Background()

	doc, err := s.GetDocument(ctx, "bgb:823")
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Equal(t, law.KindStatute, doc.Kind)

	doc, err = s.GetDocument(ctx, "case:bgh:2019:1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Equal(t, law.KindCase, doc.Kind)
	require.Equal(t, "Bundesgerichtshof", doc.Metadata["court"])

	doc, err = s.GetDocument(ctx, "prep:dip:1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Equal(t, law.KindPreparatoryWork, doc.Kind)
	require.Equal(t, "dip-19-4674", doc.Metadata["dipId"])

	doc, err = s.GetDocument(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, doc)
}

func TestGetDocumentDropsNestedMetadata(t *testing.T) {
	s := New(newTestCorpus(t), "de")
	defer s.Close()

	doc, err := s.GetDocument(context.Background(), "bdsg:3")
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Equal(t, "BDSG", doc.Metadata["jurabk"])
	require.NotContains(t, doc.Metadata, "extra")
}

func TestSearchCaseLawExactIdentifiers(t *testing.T) {
	s := New(newTestCorpus(t), "de")
	defer s.Close()
	ctx := context.Background()

	for _, query := range []string{
		"ECLI:DE:BGH:2019:190219UVIZR506.17.0",
		"VI ZR 506/17",
		"case:bgh:2019:1",
		"bgh-vi-zr-506-17",
	} {
		docs, err := s.SearchCaseLaw(ctx, query, CaseLawFilter{}, 5)
		require.NoError(t, err, "query %q", query)
		require.NotEmpty(t, docs, "query %q", query)
		require.Equal(t, "case:bgh:2019:1", docs[0].ID, "query %q", query)
	}
}

func TestSearchCaseLawFilters(t *testing.T) {
	s := New(newTestCorpus(t), "de")
	defer s.Close()
	ctx := context.Background()

	docs, err := s.SearchCaseLaw(ctx, "Schadensersatz", CaseLawFilter{Court: "bundesgerichtshof"}, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "case:bgh:2019:1", docs[0].ID)

	docs, err = s.SearchCaseLaw(ctx, "Recht", CaseLawFilter{DateFrom: "2020-01-01"}, 10)
	require.NoError(t, err)
	for _, d := range docs {
		require.GreaterOrEqual(t, d.EffectiveDate, "2020-01-01")
	}

	docs, err = s.SearchCaseLaw(ctx, "Schadensersatz", CaseLawFilter{DateTo: "2018-12-31"}, 10)
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestSearchPreparatoryWorks(t *testing.T) {
	s := New(newTestCorpus(t), "de")
	defer s.Close()
	ctx := context.Background()

	docs, err := s.SearchPreparatoryWorks(ctx, []string{"Datenschutzrechts"}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	require.Equal(t, "prep:dip:1", docs[0].ID)

	// No hints: newest first.
	docs, err = s.SearchPreparatoryWorks(ctx, nil, 10)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "prep:dip:2", docs[0].ID)

	docs, err = s.PreparatoryWorksByStatute(ctx, "bdsg", 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "prep:dip:1", docs[0].ID)
}

func TestCountsAndLastIngestionRun(t *testing.T) {
	s := New(newTestCorpus(t), "de")
	defer s.Close()
	ctx := context.Background()

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 5, counts["law_documents"])
	require.EqualValues(t, 2, counts["case_law_documents"])
	require.EqualValues(t, 2, counts["preparatory_works"])
	require.EqualValues(t, 1, counts["ingestion_runs"])

	run, err := s.LastIngestionRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)
	require.Equal(t, "gesetze-im-internet", run["sourceId"])
	require.Equal(t, "completed", run["status"])
	require.EqualValues(t, 9, run["ingestedLaws"])
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		limit, def, max, want int
	}{
		{0, 20, 100, 20},
		{-5, 20, 100, 20},
		{7, 20, 100, 7},
		{500, 20, 100, 100},
		{250, 20, 200, 200},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.limit, tt.def, tt.max); got != tt.want {
			t.Errorf("clampLimit(%d,%d,%d) = %d, want %d", tt.limit, tt.def, tt.max, got, tt.want)
		}
	}
}
