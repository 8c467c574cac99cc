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

const caseDocColumns = `d.id, d.country, d.case_id, d.ecli, d.court, d.decision_date,
	d.file_number, d.decision_type, d.title, d.citation, d.source_url, d.text_snippet, d.metadata_json`

// CaseLawFilter narrows case-law search results. All fields optional; Court
// matches as a case-insensitive substring, the dates bound decision_date.
type CaseLawFilter struct {
	Court    string
	DateFrom string
	DateTo   string
}

// clause renders the filter as SQL predicates plus bind arguments.
func (f CaseLawFilter) clause() (string, []any) {
	var preds []string
	var args []any
	if f.Court != "" {
		preds = append(preds, `lower(COALESCE(d.court,'')) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(strings.ToLower(f.Court)))
	}
	if f.DateFrom != "" {
		preds = append(preds, `d.decision_date >= ?`)
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		preds = append(preds, `d.decision_date <= ?`)
		args = append(args, f.DateTo)
	}
	if len(preds) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(preds, " AND "), args
}

// SearchCaseLaw runs the three-tier template over case law. The exact stage
// matches the raw query against ecli, file number, citation, case id, and id
// (lower-cased equality). Filters apply at every stage. Default ordering is
// decision_date descending, then id descending.
func (s *Store) SearchCaseLaw(ctx context.Context, query string, filter CaseLawFilter, limit int) ([]law.Document, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	if !s.tables["case_law_documents"] {
		return []law.Document{}, nil
	}
	timer := logging.StartTimer(logging.CategoryStore, "SearchCaseLaw")
	defer timer.Stop()

	limit = clampLimit(limit, 20, 100)
	c := newCollector(limit)
	filterSQL, filterArgs := filter.clause()

	// Stage 1: exact identifier match.
	q := strings.ToLower(strings.TrimSpace(query))
	if q != "" {
		args := append([]any{s.country, q, q, q, q, q}, filterArgs...)
		args = append(args, limit)
		rows, err := s.db.QueryContext(ctx, `
			SELECT `+caseDocColumns+` FROM case_law_documents d
			WHERE d.country = ?
			  AND (lower(COALESCE(d.ecli,'')) = ? OR lower(COALESCE(d.file_number,'')) = ?
			    OR lower(COALESCE(d.citation,'')) = ? OR lower(d.case_id) = ? OR lower(d.id) = ?)`+filterSQL+`
			ORDER BY d.decision_date DESC, d.id DESC
			LIMIT ?`, args...)
		if err != nil {
			return nil, fmt.Errorf("case exact stage: %w", err)
		}
		if err := collectCaseDocs(rows, c); err != nil {
			return nil, err
		}
	}

	// Stage 2: ranked full text.
	cq := CompileQuery(query)
	if !c.full() && cq.Primary != "" {
		s.caseDocsByFTS(ctx, cq.Primary, filterSQL, filterArgs, c)
	}
	if !c.full() && cq.Fallback != "" {
		s.caseDocsByFTS(ctx, cq.Fallback, filterSQL, filterArgs, c)
	}

	// Stage 3: substring fallback.
	if !c.full() {
		if err := s.caseDocsBySubstring(ctx, query, filterSQL, filterArgs, c); err != nil {
			return nil, err
		}
	}

	return c.result(), nil
}

func (s *Store) caseDocsByFTS(ctx context.Context, expr, filterSQL string, filterArgs []any, c *collector) {
	args := append([]any{s.country, expr}, filterArgs...)
	args = append(args, c.limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+caseDocColumns+` FROM case_law_documents d
		JOIN case_law_documents_fts ON case_law_documents_fts.rowid = d.rowid
		WHERE d.country = ? AND case_law_documents_fts MATCH ?`+filterSQL+`
		ORDER BY case_law_documents_fts.rank
		LIMIT ?`, args...)
	if err != nil {
		logging.StoreDebug("case fts stage skipped (%q): %v", expr, err)
		return
	}
	if err := collectCaseDocs(rows, c); err != nil {
		logging.StoreDebug("case fts stage scan failed: %v", err)
	}
}

func (s *Store) caseDocsBySubstring(ctx context.Context, query, filterSQL string, filterArgs []any, c *collector) error {
	tokens := substringTokens(query)
	if len(tokens) == 0 {
		return nil
	}
	var preds []string
	args := []any{s.country}
	for _, tok := range tokens {
		preds = append(preds, `(lower(d.title) LIKE ? ESCAPE '\' OR lower(COALESCE(d.citation,'')) LIKE ? ESCAPE '\' OR lower(COALESCE(d.text_snippet,'')) LIKE ? ESCAPE '\')`)
		pat := likePattern(tok)
		args = append(args, pat, pat, pat)
	}
	args = append(args, filterArgs...)
	args = append(args, c.limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+caseDocColumns+` FROM case_law_documents d
		WHERE d.country = ? AND `+strings.Join(preds, " AND ")+filterSQL+`
		ORDER BY d.decision_date DESC, d.id DESC
		LIMIT ?`, args...)
	if err != nil {
		return fmt.Errorf("case substring stage: %w", err)
	}
	return collectCaseDocs(rows, c)
}

func (s *Store) caseDocumentByID(ctx context.Context, id string) (*law.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+caseDocColumns+` FROM case_law_documents d WHERE d.id = ?`, id)
	doc, err := scanCaseDoc(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("case document by id: %w", err)
	}
	return &doc, nil
}

func collectCaseDocs(rows *sql.Rows, c *collector) error {
	defer rows.Close()
	for rows.Next() {
		doc, err := scanCaseDoc(rows.Scan)
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

func scanCaseDoc(scan func(...any) error) (law.Document, error) {
	var (
		id, country, caseID, title                          string
		ecli, court, decisionDate, fileNumber, decisionType sql.NullString
		citation, sourceURL, snippet, metadataJSON          sql.NullString
	)
	if err := scan(&id, &country, &caseID, &ecli, &court, &decisionDate,
		&fileNumber, &decisionType, &title, &citation, &sourceURL, &snippet, &metadataJSON); err != nil {
		return law.Document{}, err
	}

	metadata := parseMetadata(metadataJSON)
	if metadata == nil {
		metadata = make(map[string]any, 6)
	}
	metadata["caseId"] = caseID
	setIfValid(metadata, "ecli", ecli)
	setIfValid(metadata, "court", court)
	setIfValid(metadata, "decisionDate", decisionDate)
	setIfValid(metadata, "fileNumber", fileNumber)
	setIfValid(metadata, "decisionType", decisionType)

	return law.Document{
		ID:            id,
		Jurisdiction:  country,
		Kind:          law.KindCase,
		Title:         title,
		Citation:      citation.String,
		SourceURL:     sourceURL.String,
		EffectiveDate: decisionDate.String,
		TextSnippet:   snippet.String,
		Metadata:      metadata,
	}, nil
}

func setIfValid(m map[string]any, key string, v sql.NullString) {
	if v.Valid && v.String != "" {
		m[key] = v.String
	}
}
