// Package corpus provides read-only access to the indexed German-law corpus:
// typed tables with FTS5 companions, per-table presence probing (the
// capability set), and the deterministic three-tier search used by the
// adapters. The underlying sqlite file is opened read-only once per Store;
// a missing file surfaces as ErrUnavailable, never as a crash, so adapters
// can fall back to seed data.
package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"rechtskern/internal/law"
	"rechtskern/internal/logging"
)

// ErrUnavailable reports that the corpus database is absent or carries none
// of the expected tables. It is distinct from an empty query result: a query
// that legitimately matches nothing returns an empty slice and a nil error.
var ErrUnavailable = errors.New("corpus store unavailable")

// expandedCaseLawThreshold is the row count at which basic case-law coverage
// is considered expanded.
const expandedCaseLawThreshold = 10000

// Meta describes the corpus snapshot, read from the optional corpus_meta
// table.
type Meta struct {
	Tier          string `json:"tier,omitempty"`
	SchemaVersion string `json:"schemaVersion,omitempty"`
	BuiltAt       string `json:"builtAt,omitempty"`
	Builder       string `json:"builder,omitempty"`
}

// Store is the process-wide read-only corpus handle. All methods are safe
// for concurrent use; initialization runs once under a sync.Once guard and
// the capability set is immutable afterwards.
type Store struct {
	path    string
	country string

	once      sync.Once
	db        *sql.DB
	tables    map[string]bool
	caps      law.CapabilitySet
	meta      Meta
	available bool
}

// New creates a Store for the sqlite file at path, scoped to one country
// code. The database is not touched until first use.
func New(path, country string) *Store {
	return &Store{path: path, country: country}
}

// init opens the database read-only and probes the schema. Runs once.
func (s *Store) init() {
	timer := logging.StartTimer(logging.CategoryStore, "corpus.init")
	defer timer.Stop()

	if _, err := os.Stat(s.path); err != nil {
		logging.Store("corpus database absent at %s; store unavailable", s.path)
		return
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", s.path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		logging.Get(logging.CategoryStore).Errorf("open corpus database: %v", err)
		return
	}
	db.SetMaxOpenConns(4)

	tables, err := probeTables(db)
	if err != nil {
		logging.Get(logging.CategoryStore).Errorf("probe corpus tables: %v", err)
		db.Close()
		return
	}
	if !tables["law_documents"] && !tables["case_law_documents"] && !tables["preparatory_works"] {
		logging.Store("corpus database at %s has no corpus tables; store unavailable", s.path)
		db.Close()
		return
	}

	s.db = db
	s.tables = tables
	s.caps = s.deriveCapabilities()
	s.meta = readMeta(db, tables)
	s.available = true
	logging.Store("corpus store ready: path=%s capabilities=%v", s.path, s.caps.List())
}

func probeTables(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type IN ('table','view')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables[name] = true
	}
	return tables, rows.Err()
}

func (s *Store) deriveCapabilities() law.CapabilitySet {
	caps := make(law.CapabilitySet)
	if s.tables["law_documents"] {
		caps[law.CapCoreLegislation] = true
		caps[law.CapEuReferences] = true
	}
	if s.tables["case_law_documents"] {
		caps[law.CapBasicCaseLaw] = true
		var n int64
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM case_law_documents`).Scan(&n); err == nil && n >= expandedCaseLawThreshold {
			caps[law.CapExpandedCaseLaw] = true
		}
	}
	if s.tables["preparatory_works"] {
		caps[law.CapFullPreparatoryWorks] = true
	}
	if s.tables["agency_guidance"] {
		caps[law.CapAgencyGuidance] = true
	}
	return caps
}

func readMeta(db *sql.DB, tables map[string]bool) Meta {
	var meta Meta
	if !tables["corpus_meta"] {
		return meta
	}
	rows, err := db.Query(`SELECT key, value FROM corpus_meta`)
	if err != nil {
		return meta
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if rows.Scan(&k, &v) != nil {
			continue
		}
		switch k {
		case "tier":
			meta.Tier = v
		case "schema_version":
			meta.SchemaVersion = v
		case "built_at":
			meta.BuiltAt = v
		case "builder":
			meta.Builder = v
		}
	}
	return meta
}

// ensure initializes the store and returns ErrUnavailable when the database
// cannot serve reads.
func (s *Store) ensure() error {
	s.once.Do(s.init)
	if !s.available {
		return ErrUnavailable
	}
	return nil
}

// Available reports whether the corpus can serve reads.
func (s *Store) Available() bool {
	return s.ensure() == nil
}

// Capabilities returns a copy of the detected capability set. An unavailable
// store has an empty set.
func (s *Store) Capabilities() law.CapabilitySet {
	caps := make(law.CapabilitySet)
	if s.ensure() != nil {
		return caps
	}
	for k, v := range s.caps {
		caps[k] = v
	}
	return caps
}

// Metadata returns the corpus snapshot metadata.
func (s *Store) Metadata() Meta {
	if s.ensure() != nil {
		return Meta{}
	}
	return s.meta
}

// Close releases the database handle. Safe on an unavailable store.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Counts returns per-table row counts for diagnostics, tolerating absent
// tables.
func (s *Store) Counts(ctx context.Context) (map[string]int64, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for _, table := range []string{"statutes", "law_documents", "case_law_documents", "preparatory_works", "ingestion_runs"} {
		if !s.tables[table] {
			continue
		}
		var n int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			logging.StoreDebug("count %s failed: %v", table, err)
			continue
		}
		counts[table] = n
	}
	return counts, nil
}

// LastIngestionRun returns the most recent ingestion_runs row as a flat map,
// or nil when the table is absent or empty.
func (s *Store) LastIngestionRun(ctx context.Context) (map[string]any, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	if !s.tables["ingestion_runs"] {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT source_id, started_at, COALESCE(finished_at, ''), status,
		       ingested_laws, skipped_laws, ingested_sections, skipped_sections, error_count
		FROM ingestion_runs ORDER BY id DESC LIMIT 1`)
	var sourceID, startedAt, finishedAt, status string
	var ingestedLaws, skippedLaws, ingestedSections, skippedSections, errorCount int64
	err := row.Scan(&sourceID, &startedAt, &finishedAt, &status,
		&ingestedLaws, &skippedLaws, &ingestedSections, &skippedSections, &errorCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read last ingestion run: %w", err)
	}
	return map[string]any{
		"sourceId":         sourceID,
		"startedAt":        startedAt,
		"finishedAt":       finishedAt,
		"status":           status,
		"ingestedLaws":     ingestedLaws,
		"skippedLaws":      skippedLaws,
		"ingestedSections": ingestedSections,
		"skippedSections":  skippedSections,
		"errorCount":       errorCount,
	}, nil
}

// GetDocument fetches a document by id, probing statutes, then case law,
// then preparatory works. Returns (nil, nil) when no row matches.
func (s *Store) GetDocument(ctx context.Context, id string) (*law.Document, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	if s.tables["law_documents"] {
		doc, err := s.lawDocumentByID(ctx, id)
		if err != nil || doc != nil {
			return doc, err
		}
	}
	if s.tables["case_law_documents"] {
		doc, err := s.caseDocumentByID(ctx, id)
		if err != nil || doc != nil {
			return doc, err
		}
	}
	if s.tables["preparatory_works"] {
		doc, err := s.prepDocumentByID(ctx, id)
		if err != nil || doc != nil {
			return doc, err
		}
	}
	return nil, nil
}

// clampLimit bounds a caller-provided limit to [1,max], defaulting to def
// when unset.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// parseMetadata decodes a metadata_json column into a scalar-valued map.
func parseMetadata(raw sql.NullString) map[string]any {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw.String), &m); err != nil {
		return nil
	}
	for k, v := range m {
		switch v.(type) {
		case string, float64, bool, nil:
		default:
			delete(m, k) // nested structures never enter a Document
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
