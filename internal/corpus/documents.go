package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"rechtskern/internal/law"
	"rechtskern/internal/logging"
)

const lawDocColumns = `d.id, d.country, d.statute_id, d.section_ref, d.kind, d.title,
	d.citation, d.source_url, d.effective_date, d.text_snippet, d.metadata_json`

// collector accumulates search results with stable deduplication by id.
// Earlier stages take precedence; later stages only contribute unseen rows.
type collector struct {
	limit int
	seen  map[string]bool
	docs  []law.Document
}

func newCollector(limit int) *collector {
	return &collector{limit: limit, seen: make(map[string]bool)}
}

func (c *collector) add(doc law.Document) {
	if c.full() || c.seen[doc.ID] {
		return
	}
	c.seen[doc.ID] = true
	c.docs = append(c.docs, doc)
}

func (c *collector) full() bool { return len(c.docs) >= c.limit }

func (c *collector) result() []law.Document {
	if c.docs == nil {
		return []law.Document{}
	}
	return c.docs
}

// SearchDocuments runs the three-tier statute search: exact citation,
// ranked full text, then substring fallback. lookups are the lower-cased
// exact-match candidates from the citation grammar, preferred form first;
// pass nil when the query did not parse as a citation.
func (s *Store) SearchDocuments(ctx context.Context, query string, lookups []string, limit int) ([]law.Document, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	if !s.tables["law_documents"] {
		return []law.Document{}, nil
	}
	timer := logging.StartTimer(logging.CategoryStore, "SearchDocuments")
	defer timer.Stop()

	limit = clampLimit(limit, 20, 100)
	c := newCollector(limit)

	// Stage 1: exact citation. Preferred candidate first, then id ascending
	// within each candidate.
	for _, lookup := range lookups {
		if c.full() {
			break
		}
		if err := s.lawDocsByExactCitation(ctx, lookup, c); err != nil {
			return nil, err
		}
	}

	// Stage 2: ranked full text, primary expression then fallback.
	cq := CompileQuery(query)
	if !c.full() && cq.Primary != "" {
		s.lawDocsByFTS(ctx, cq.Primary, c)
	}
	if !c.full() && cq.Fallback != "" {
		s.lawDocsByFTS(ctx, cq.Fallback, c)
	}

	// Stage 3: AND-ed substring fallback.
	if !c.full() {
		if err := s.lawDocsBySubstring(ctx, query, c); err != nil {
			return nil, err
		}
	}

	return c.result(), nil
}

// DocumentsByCitation fetches rows whose stored citation matches any lookup
// form, preferred normalization first.
func (s *Store) DocumentsByCitation(ctx context.Context, lookups []string, limit int) ([]law.Document, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	if !s.tables["law_documents"] {
		return []law.Document{}, nil
	}
	c := newCollector(clampLimit(limit, 20, 100))
	for _, lookup := range lookups {
		if c.full() {
			break
		}
		if err := s.lawDocsByExactCitation(ctx, lookup, c); err != nil {
			return nil, err
		}
	}
	return c.result(), nil
}

// DocumentsByStatute lists the provisions of one statute in section order.
func (s *Store) DocumentsByStatute(ctx context.Context, statuteID string, limit int) ([]law.Document, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	if !s.tables["law_documents"] {
		return []law.Document{}, nil
	}
	limit = clampLimit(limit, 20, 100)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+lawDocColumns+` FROM law_documents d
		WHERE d.country = ? AND d.statute_id = ?
		ORDER BY CAST(d.section_ref AS INTEGER), d.section_ref, d.id
		LIMIT ?`, s.country, statuteID, limit)
	if err != nil {
		return nil, fmt.Errorf("documents by statute: %w", err)
	}
	c := newCollector(limit)
	if err := collectLawDocs(rows, c); err != nil {
		return nil, err
	}
	return c.result(), nil
}

func (s *Store) lawDocumentByID(ctx context.Context, id string) (*law.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+lawDocColumns+` FROM law_documents d WHERE d.id = ?`, id)
	doc, err := scanLawDoc(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("law document by id: %w", err)
	}
	return &doc, nil
}

func (s *Store) lawDocsByExactCitation(ctx context.Context, lookup string, c *collector) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+lawDocColumns+` FROM law_documents d
		WHERE d.country = ? AND lower(d.citation) = ?
		ORDER BY d.id`, s.country, strings.ToLower(lookup))
	if err != nil {
		return fmt.Errorf("exact citation stage: %w", err)
	}
	return collectLawDocs(rows, c)
}

// lawDocsByFTS runs one compiled expression against the full-text index,
// ordered by rank. FTS errors are treated as a transient miss: logged and
// skipped, so a malformed index never fails the whole search.
func (s *Store) lawDocsByFTS(ctx context.Context, expr string, c *collector) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+lawDocColumns+` FROM law_documents d
		JOIN law_documents_fts ON law_documents_fts.rowid = d.rowid
		WHERE d.country = ? AND law_documents_fts MATCH ?
		ORDER BY law_documents_fts.rank
		LIMIT ?`, s.country, expr, c.limit)
	if err != nil {
		logging.StoreDebug("fts stage skipped (%q): %v", expr, err)
		return
	}
	if err := collectLawDocs(rows, c); err != nil {
		logging.StoreDebug("fts stage scan failed: %v", err)
	}
}

func (s *Store) lawDocsBySubstring(ctx context.Context, query string, c *collector) error {
	tokens := substringTokens(query)
	if len(tokens) == 0 {
		return nil
	}
	var where []string
	var args []any
	args = append(args, s.country)
	for _, tok := range tokens {
		where = append(where, `(lower(d.title) LIKE ? ESCAPE '\' OR lower(COALESCE(d.citation,'')) LIKE ? ESCAPE '\' OR lower(COALESCE(d.text_snippet,'')) LIKE ? ESCAPE '\')`)
		pat := likePattern(tok)
		args = append(args, pat, pat, pat)
	}
	args = append(args, c.limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+lawDocColumns+` FROM law_documents d
		WHERE d.country = ? AND `+strings.Join(where, " AND ")+`
		ORDER BY d.id
		LIMIT ?`, args...)
	if err != nil {
		return fmt.Errorf("substring stage: %w", err)
	}
	return collectLawDocs(rows, c)
}

// likePattern builds a %substring% pattern with LIKE metacharacters escaped.
func likePattern(tok string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(tok) + "%"
}

func collectLawDocs(rows *sql.Rows, c *collector) error {
	defer rows.Close()
	for rows.Next() {
		doc, err := scanLawDoc(rows.Scan)
		if err != nil {
			return err
		}
		c.add(doc)
		if c.full() {
			break
		}
	}
	return rows.Err()
}

func scanLawDoc(scan func(...any) error) (law.Document, error) {
	var (
		id, country, statuteID, sectionRef, kind, title string
		citation, sourceURL, effectiveDate, snippet     sql.NullString
		metadataJSON                                    sql.NullString
	)
	if err := scan(&id, &country, &statuteID, &sectionRef, &kind, &title,
		&citation, &sourceURL, &effectiveDate, &snippet, &metadataJSON); err != nil {
		return law.Document{}, err
	}

	docKind := law.DocumentKind(kind)
	if !law.ValidKind(docKind) {
		docKind = law.KindOther
	}

	metadata := parseMetadata(metadataJSON)
	if metadata == nil {
		metadata = make(map[string]any, 2)
	}
	metadata["statuteId"] = statuteID
	metadata["sectionRef"] = sectionRef

	return law.Document{
		ID:            id,
		Jurisdiction:  country,
		Kind:          docKind,
		Title:         title,
		Citation:      citation.String,
		SourceURL:     sourceURL.String,
		EffectiveDate: effectiveDate.String,
		TextSnippet:   snippet.String,
		Metadata:      metadata,
	}, nil
}
