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

const prepDocColumns = `d.id, d.country, d.dip_id, d.title, d.statute_id, d.statute_citation,
	d.work_type, d.publication_date, d.source_url, d.text_snippet, d.metadata_json`

// SearchPreparatoryWorks searches legislative preparatory works using a hint
// list assembled by the adapter (citation, statute id, free text, parsed
// code). The full-text stage uses the first hint, the substring stage all of
// them. With no hints the newest works are listed.
func (s *Store) SearchPreparatoryWorks(ctx context.Context, hints []string, limit int) ([]law.Document, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	if !s.tables["preparatory_works"] {
		return []law.Document{}, nil
	}
	timer := logging.StartTimer(logging.CategoryStore, "SearchPreparatoryWorks")
	defer timer.Stop()

	limit = clampLimit(limit, 20, 100)
	c := newCollector(limit)

	if len(hints) == 0 {
		if err := s.prepDocsNewest(ctx, c); err != nil {
			return nil, err
		}
		return c.result(), nil
	}

	cq := CompileQuery(hints[0])
	if cq.Primary != "" {
		s.prepDocsByFTS(ctx, cq.Primary, c)
	}
	if !c.full() && cq.Fallback != "" {
		s.prepDocsByFTS(ctx, cq.Fallback, c)
	}

	if !c.full() {
		if err := s.prepDocsBySubstring(ctx, hints, c); err != nil {
			return nil, err
		}
	}
	return c.result(), nil
}

// PreparatoryWorksByStatute lists works attached to one statute id.
func (s *Store) PreparatoryWorksByStatute(ctx context.Context, statuteID string, limit int) ([]law.Document, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	if !s.tables["preparatory_works"] {
		return []law.Document{}, nil
	}
	limit = clampLimit(limit, 20, 100)
	c := newCollector(limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prepDocColumns+` FROM preparatory_works d
		WHERE d.country = ? AND d.statute_id = ?
		ORDER BY d.publication_date DESC, d.id DESC
		LIMIT ?`, s.country, statuteID, limit)
	if err != nil {
		return nil, fmt.Errorf("preparatory works by statute: %w", err)
	}
	if err := collectPrepDocs(rows, c); err != nil {
		return nil, err
	}
	return c.result(), nil
}

func (s *Store) prepDocsNewest(ctx context.Context, c *collector) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prepDocColumns+` FROM preparatory_works d
		WHERE d.country = ?
		ORDER BY d.publication_date DESC, d.id DESC
		LIMIT ?`, s.country, c.limit)
	if err != nil {
		return fmt.Errorf("preparatory works listing: %w", err)
	}
	return collectPrepDocs(rows, c)
}

func (s *Store) prepDocsByFTS(ctx context.Context, expr string, c *collector) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prepDocColumns+` FROM preparatory_works d
		JOIN preparatory_works_fts ON preparatory_works_fts.rowid = d.rowid
		WHERE d.country = ? AND preparatory_works_fts MATCH ?
		ORDER BY preparatory_works_fts.rank
		LIMIT ?`, s.country, expr, c.limit)
	if err != nil {
		logging.StoreDebug("prep fts stage skipped (%q): %v", expr, err)
		return
	}
	if err := collectPrepDocs(rows, c); err != nil {
		logging.StoreDebug("prep fts stage scan failed: %v", err)
	}
}

// prepDocsBySubstring requires each hint to match title, statute citation,
// statute id, or snippet as a substring; hints combine with AND.
func (s *Store) prepDocsBySubstring(ctx context.Context, hints []string, c *collector) error {
	var preds []string
	args := []any{s.country}
	for _, hint := range hints {
		for _, tok := range substringTokens(hint) {
			preds = append(preds, `(lower(d.title) LIKE ? ESCAPE '\' OR lower(COALESCE(d.statute_citation,'')) LIKE ? ESCAPE '\'
				OR lower(COALESCE(d.statute_id,'')) LIKE ? ESCAPE '\' OR lower(COALESCE(d.text_snippet,'')) LIKE ? ESCAPE '\')`)
			pat := likePattern(tok)
			args = append(args, pat, pat, pat, pat)
		}
	}
	if len(preds) == 0 {
		return nil
	}
	args = append(args, c.limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prepDocColumns+` FROM preparatory_works d
		WHERE d.country = ? AND `+strings.Join(preds, " AND ")+`
		ORDER BY d.publication_date DESC, d.id DESC
		LIMIT ?`, args...)
	if err != nil {
		return fmt.Errorf("prep substring stage: %w", err)
	}
	return collectPrepDocs(rows, c)
}

func (s *Store) prepDocumentByID(ctx context.Context, id string) (*law.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+prepDocColumns+` FROM preparatory_works d WHERE d.id = ?`, id)
	doc, err := scanPrepDoc(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("preparatory work by id: %w", err)
	}
	return &doc, nil
}

func collectPrepDocs(rows *sql.Rows, c *collector) error {
	defer rows.Close()
	for rows.Next() {
		doc, err := scanPrepDoc(rows.Scan)
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

func scanPrepDoc(scan func(...any) error) (law.Document, error) {
	var (
		id, country, dipID, title                             string
		statuteID, statuteCitation, workType, publicationDate sql.NullString
		sourceURL, snippet, metadataJSON                      sql.NullString
	)
	if err := scan(&id, &country, &dipID, &title, &statuteID, &statuteCitation,
		&workType, &publicationDate, &sourceURL, &snippet, &metadataJSON); err != nil {
		return law.Document{}, err
	}

	metadata := parseMetadata(metadataJSON)
	if metadata == nil {
		metadata = make(map[string]any, 4)
	}
	metadata["dipId"] = dipID
	setIfValid(metadata, "statuteId", statuteID)
	setIfValid(metadata, "workType", workType)
	setIfValid(metadata, "publicationDate", publicationDate)

	return law.Document{
		ID:            id,
		Jurisdiction:  country,
		Kind:          law.KindPreparatoryWork,
		Title:         title,
		Citation:      statuteCitation.String,
		SourceURL:     sourceURL.String,
		EffectiveDate: publicationDate.String,
		TextSnippet:   snippet.String,
		Metadata:      metadata,
	}, nil
}
