package adapter

import (
	"context"
	"errors"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"rechtskern/internal/citation"
	"rechtskern/internal/corpus"
	"rechtskern/internal/eurefs"
	"rechtskern/internal/ingest"
	"rechtskern/internal/law"
	"rechtskern/internal/logging"
)

// crossDocRefFactor bounds how many references the EU operations collect
// across documents before truncating to the caller's limit.
const crossDocRefFactor = 24

// German is the adapter for German federal law. It binds the sqlite corpus,
// the §/Art. citation grammar, and the EU reference extractor; when the
// corpus database is absent it serves the embedded seed set instead.
type German struct {
	store     *corpus.Store
	grammar   *citation.GermanGrammar
	extractor *eurefs.Extractor
	runner    *ingest.Runner
	seeds     *seedCorpus
}

// NewGerman builds the German adapter. seedFallback controls whether the
// embedded seed corpus is served when the store is unavailable.
func NewGerman(store *corpus.Store, runner *ingest.Runner, seedFallback bool) (*German, error) {
	g := &German{
		store:     store,
		grammar:   citation.NewGermanGrammar(),
		extractor: eurefs.NewExtractor(),
		runner:    runner,
	}
	if seedFallback {
		seeds, err := loadSeeds("german.yaml", "de")
		if err != nil {
			return nil, err
		}
		g.seeds = seeds
	}
	return g, nil
}

// Descriptor implements Adapter.
func (g *German) Descriptor() law.Descriptor {
	return law.Descriptor{
		JurisdictionCode: "de",
		Name:             "Germany",
		DefaultLanguage:  "de",
		Sources: []string{
			"gesetze-im-internet.de",
			"rechtsprechung-im-internet.de",
			"dip.bundestag.de",
		},
		Tools: law.ToolFlags{
			Documents:        true,
			CaseLaw:          true,
			PreparatoryWorks: true,
			Citations:        true,
			Formatting:       true,
			Currency:         true,
			LegalStance:      true,
			EU:               true,
			Ingestion:        true,
		},
	}
}

// Capabilities returns the corpus capability set. With only seeds to serve,
// the legislation and EU capabilities are still advertised so the document
// and citation tools stay usable.
func (g *German) Capabilities(ctx context.Context) law.CapabilitySet {
	caps := g.store.Capabilities()
	if len(caps) == 0 && g.seeds != nil {
		caps[law.CapCoreLegislation] = true
		caps[law.CapEuReferences] = true
	}
	return caps
}

// Grammar implements Adapter.
func (g *German) Grammar() citation.Grammar { return g.grammar }

// lookupsFor lower-cases the grammar's lookup forms for exact-match joins.
func (g *German) lookupsFor(input string) []string {
	pc := g.grammar.Parse(input)
	if pc == nil {
		return nil
	}
	lookups := make([]string, 0, len(pc.LookupCitations))
	for _, l := range pc.LookupCitations {
		lookups = append(lookups, strings.ToLower(l))
	}
	return lookups
}

// SearchDocuments implements Adapter. The query's citation lookup forms, if
// it parses as a citation, feed the store's exact stage.
func (g *German) SearchDocuments(ctx context.Context, query string, limit int) ([]law.Document, error) {
	limit = clampLimit(limit, 20, 100)
	docs, err := g.store.SearchDocuments(ctx, query, g.lookupsFor(query), limit)
	if errors.Is(err, corpus.ErrUnavailable) && g.seeds != nil {
		return g.seeds.search(query, g.lookupsFor(query), limit), nil
	}
	return docs, err
}

// GetDocument implements Adapter. Returns (nil, nil) when no document has
// the id.
func (g *German) GetDocument(ctx context.Context, id string) (*law.Document, error) {
	doc, err := g.store.GetDocument(ctx, id)
	if errors.Is(err, corpus.ErrUnavailable) && g.seeds != nil {
		return g.seeds.byID(id), nil
	}
	return doc, err
}

// SearchCaseLaw implements Adapter. The seed corpus carries no case law, so
// an unavailable store yields an empty result.
func (g *German) SearchCaseLaw(ctx context.Context, query string, filter corpus.CaseLawFilter, limit int) ([]law.Document, error) {
	docs, err := g.store.SearchCaseLaw(ctx, query, filter, clampLimit(limit, 20, 100))
	if errors.Is(err, corpus.ErrUnavailable) {
		return []law.Document{}, nil
	}
	return docs, err
}

// SearchPreparatoryWorks implements Adapter. The hint list feeds the store's
// full-text stage (first hint) and substring stage (all hints).
func (g *German) SearchPreparatoryWorks(ctx context.Context, q PrepWorksQuery) ([]law.Document, error) {
	var hints []string
	if q.Citation != "" {
		hints = append(hints, q.Citation)
		if pc := g.grammar.Parse(q.Citation); pc != nil {
			hints = append(hints, pc.Parsed["code"])
		}
	}
	if q.StatuteID != "" {
		hints = append(hints, q.StatuteID)
	}
	if q.Query != "" {
		hints = append(hints, q.Query)
	}
	docs, err := g.store.SearchPreparatoryWorks(ctx, hints, clampLimit(q.Limit, 20, 100))
	if errors.Is(err, corpus.ErrUnavailable) {
		return []law.Document{}, nil
	}
	return docs, err
}

// documentsByCitation joins lookup forms against stored citations, with seed
// fallback.
func (g *German) documentsByCitation(ctx context.Context, lookups []string, limit int) ([]law.Document, error) {
	docs, err := g.store.DocumentsByCitation(ctx, lookups, limit)
	if errors.Is(err, corpus.ErrUnavailable) && g.seeds != nil {
		return g.seeds.byCitation(lookups, limit), nil
	}
	return docs, err
}

// documentsByStatute lists a statute's provisions, with seed fallback.
func (g *German) documentsByStatute(ctx context.Context, statuteID string, limit int) ([]law.Document, error) {
	docs, err := g.store.DocumentsByStatute(ctx, statuteID, limit)
	if errors.Is(err, corpus.ErrUnavailable) && g.seeds != nil {
		return g.seeds.byStatute(statuteID, limit), nil
	}
	return docs, err
}

// ValidateCitation implements Adapter. A parseable citation is additionally
// checked against the corpus when the store is available; the seed corpus is
// too small to refute existence, so seed mode validates format only.
func (g *German) ValidateCitation(ctx context.Context, input string) ValidationResult {
	pc := g.grammar.Parse(input)
	if pc == nil {
		return ValidationResult{Valid: false, Reason: "unrecognized citation format"}
	}
	if g.store.Available() {
		lookups := make([]string, 0, len(pc.LookupCitations))
		for _, l := range pc.LookupCitations {
			lookups = append(lookups, strings.ToLower(l))
		}
		docs, err := g.store.DocumentsByCitation(ctx, lookups, 1)
		if err == nil && len(docs) == 0 {
			return ValidationResult{
				Valid:      false,
				Normalized: pc.Normalized,
				Reason:     "format valid, not in corpus",
			}
		}
	}
	return ValidationResult{Valid: true, Normalized: pc.Normalized}
}

// FormatCitation implements Adapter.
func (g *German) FormatCitation(ctx context.Context, input, style string) FormatResult {
	if style == "" {
		style = "default"
	}
	pc := g.grammar.Parse(input)
	if pc == nil {
		return FormatResult{
			Original:  input,
			Formatted: strings.TrimSpace(input),
			Style:     style,
			Valid:     false,
			Reason:    "unrecognized citation format",
		}
	}
	formatted := pc.Normalized
	if style == "short" {
		formatted = citation.ShortForm(pc)
	}
	return FormatResult{Original: input, Formatted: formatted, Style: style, Valid: true}
}

// CheckCurrency implements Adapter. The verdict is a pure function of the
// inputs and the corpus snapshot: the corpus stores consolidated current
// text, so an asOfDate before the newest effective date cannot be attested.
func (g *German) CheckCurrency(ctx context.Context, q CurrencyQuery) (*CurrencyReport, error) {
	report := &CurrencyReport{
		Status:    CurrencyUnknown,
		StatuteID: q.StatuteID,
		Citation:  q.Citation,
		AsOfDate:  q.AsOfDate,
	}

	var docs []law.Document
	if q.StatuteID != "" {
		found, err := g.documentsByStatute(ctx, q.StatuteID, 100)
		if err != nil && !errors.Is(err, corpus.ErrUnavailable) {
			return nil, err
		}
		docs = append(docs, found...)
	}
	if q.Citation != "" {
		lookups := g.lookupsFor(q.Citation)
		if len(lookups) == 0 {
			lookups = []string{strings.ToLower(q.Citation)}
		}
		found, err := g.documentsByCitation(ctx, lookups, 100)
		if err != nil && !errors.Is(err, corpus.ErrUnavailable) {
			return nil, err
		}
		docs = append(docs, found...)
	}

	if len(docs) == 0 {
		if !g.store.Available() {
			report.Reason = "corpus unavailable"
			return report, nil
		}
		report.Status = CurrencyNotFound
		report.Reason = "no matching documents in corpus"
		return report, nil
	}

	var sourceDate string
	for _, doc := range docs {
		if doc.EffectiveDate > sourceDate {
			sourceDate = doc.EffectiveDate
		}
	}
	report.SourceDate = sourceDate
	if report.StatuteID == "" {
		report.StatuteID, _ = docs[0].Metadata["statuteId"].(string)
	}

	if q.AsOfDate != "" && sourceDate != "" && q.AsOfDate < sourceDate {
		report.Reason = "corpus holds consolidated current text; historical state cannot be attested"
		return report, nil
	}

	report.Status = CurrencyLikelyInForce
	report.Evidence = &CurrencyEvidence{Matches: len(docs), SampleID: docs[0].ID}
	return report, nil
}

// BuildLegalStance implements Adapter. Up to three retrievals run in
// parallel; key citations are the order-preserving deduplicated union of the
// three lists, truncated to twice the per-category limit.
func (g *German) BuildLegalStance(ctx context.Context, q StanceQuery) (*StanceReport, error) {
	limit := clampLimit(q.Limit, 20, 100)
	report := &StanceReport{
		Query:            q.Query,
		Statutes:         []law.Document{},
		CaseLaw:          []law.Document{},
		PreparatoryWorks: []law.Document{},
		KeyCitations:     []string{},
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		docs, err := g.SearchDocuments(ctx, q.Query, limit)
		if err != nil {
			return err
		}
		report.Statutes = docs
		return nil
	})
	if q.IncludeCaseLaw {
		eg.Go(func() error {
			docs, err := g.SearchCaseLaw(ctx, q.Query, corpus.CaseLawFilter{}, limit)
			if err != nil {
				return err
			}
			report.CaseLaw = docs
			return nil
		})
	}
	if q.IncludePreparatoryWorks {
		eg.Go(func() error {
			docs, err := g.SearchPreparatoryWorks(ctx, PrepWorksQuery{Query: q.Query, Limit: limit})
			if err != nil {
				return err
			}
			report.PreparatoryWorks = docs
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, docs := range [][]law.Document{report.Statutes, report.CaseLaw, report.PreparatoryWorks} {
		for _, doc := range docs {
			if doc.Citation == "" || seen[doc.Citation] {
				continue
			}
			seen[doc.Citation] = true
			report.KeyCitations = append(report.KeyCitations, doc.Citation)
			if len(report.KeyCitations) >= 2*limit {
				return report, nil
			}
		}
	}
	return report, nil
}

// EuBasis implements Adapter: the EU acts referenced by the selected
// provisions. Selectors combine; each selected document contributes its
// deduplicated references.
func (g *German) EuBasis(ctx context.Context, q EuBasisQuery) ([]law.EuReference, error) {
	limit := clampLimit(q.Limit, 20, 200)

	var docs []law.Document
	if q.DocumentID != "" {
		doc, err := g.GetDocument(ctx, q.DocumentID)
		if err != nil && !errors.Is(err, corpus.ErrUnavailable) {
			return nil, err
		}
		if doc != nil {
			docs = append(docs, *doc)
		}
	}
	if q.StatuteID != "" {
		found, err := g.documentsByStatute(ctx, q.StatuteID, 100)
		if err != nil && !errors.Is(err, corpus.ErrUnavailable) {
			return nil, err
		}
		docs = append(docs, found...)
	}
	if q.Citation != "" {
		lookups := g.lookupsFor(q.Citation)
		if len(lookups) == 0 {
			lookups = []string{strings.ToLower(q.Citation)}
		}
		found, err := g.documentsByCitation(ctx, lookups, 100)
		if err != nil && !errors.Is(err, corpus.ErrUnavailable) {
			return nil, err
		}
		docs = append(docs, found...)
	}

	refs := g.extractAll(docs, limit)
	if len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}

// SearchEuImplementations implements Adapter: free-text search over national
// documents, summarized per referenced EU act.
func (g *German) SearchEuImplementations(ctx context.Context, query string, limit int) ([]eurefs.ImplementationSummary, error) {
	limit = clampLimit(limit, 20, 200)
	docs, err := g.SearchDocuments(ctx, query, 100)
	if err != nil {
		return nil, err
	}
	summaries := eurefs.Summarize(g.extractAll(docs, limit), 3)
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// NationalImplementations implements Adapter: the national provisions
// referencing one EU act, located by searching for the act's year/number and
// filtering extracted references through identifier matching.
func (g *German) NationalImplementations(ctx context.Context, euID string, limit int) ([]law.EuReference, error) {
	limit = clampLimit(limit, 20, 200)
	normalized := g.extractor.NormalizeID(euID)
	query := normalized
	if _, rest, ok := strings.Cut(normalized, " "); ok {
		query = rest
	}

	docs, err := g.SearchDocuments(ctx, query, 100)
	if err != nil {
		return nil, err
	}

	matched := []law.EuReference{}
	for _, doc := range docs {
		for _, ref := range g.extractor.Extract(&doc) {
			if !g.extractor.SameID(ref.EuID, euID) {
				continue
			}
			matched = append(matched, ref)
			if len(matched) >= limit*crossDocRefFactor {
				break
			}
		}
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// ValidateEuCompliance implements Adapter. With a citation or statute
// selector the probe checks whether that provision references the act; with
// no selector it checks whether any national provision does.
func (g *German) ValidateEuCompliance(ctx context.Context, euID, cit, statuteID string) (*ComplianceReport, error) {
	report := &ComplianceReport{
		EuID:            g.extractor.NormalizeID(euID),
		Status:          ComplianceUnknown,
		Matches:         []law.EuReference{},
		RelatedStatutes: []string{},
	}

	var refs []law.EuReference
	var err error
	if cit != "" || statuteID != "" {
		refs, err = g.EuBasis(ctx, EuBasisQuery{Citation: cit, StatuteID: statuteID, Limit: 200})
	} else {
		refs, err = g.NationalImplementations(ctx, euID, 200)
	}
	if err != nil {
		return nil, err
	}

	if !g.store.Available() && g.seeds == nil {
		report.Reason = "corpus unavailable"
		return report, nil
	}

	statutes := make(map[string]bool)
	for _, ref := range refs {
		if !g.extractor.SameID(ref.EuID, euID) {
			continue
		}
		report.Matches = append(report.Matches, ref)
		if ref.SourceStatuteID != "" && !statutes[ref.SourceStatuteID] {
			statutes[ref.SourceStatuteID] = true
			report.RelatedStatutes = append(report.RelatedStatutes, ref.SourceStatuteID)
		}
	}
	sort.Strings(report.RelatedStatutes)

	if len(report.Matches) > 0 {
		report.Status = ComplianceMapped
	} else {
		report.Status = ComplianceNotMapped
		report.Reason = "no national reference to this act found"
	}
	return report, nil
}

// RunIngestion implements Adapter.
func (g *German) RunIngestion(ctx context.Context, opts ingest.Options) *law.IngestionReport {
	opts.Country = "de"
	logging.Shell("ingestion requested: source=%s dryRun=%v", opts.SourceID, opts.DryRun)
	return g.runner.Run(ctx, opts)
}

// extractAll extracts references from each document, deduplicated per
// document by the extractor, bounded across documents.
func (g *German) extractAll(docs []law.Document, limit int) []law.EuReference {
	refs := []law.EuReference{}
	for _, doc := range docs {
		refs = append(refs, g.extractor.Extract(&doc)...)
		if len(refs) >= limit*crossDocRefFactor {
			refs = refs[:limit*crossDocRefFactor]
			break
		}
	}
	return refs
}

// clampLimit bounds a caller-provided limit to [1,max], defaulting when
// unset.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
