// Package adapter defines the jurisdiction adapter surface and its German
// implementation. An adapter binds a citation grammar, the corpus store, and
// the EU reference extractor into the typed operations the shell dispatches
// to. All operations are total: they return a payload, an empty result, or a
// structured error, and are safe under concurrent calls.
package adapter

import (
	"context"

	"rechtskern/internal/citation"
	"rechtskern/internal/corpus"
	"rechtskern/internal/eurefs"
	"rechtskern/internal/ingest"
	"rechtskern/internal/law"
)

// CurrencyStatus is the outcome of a currency check.
type CurrencyStatus string

const (
	CurrencyUnknown       CurrencyStatus = "unknown"
	CurrencyNotFound      CurrencyStatus = "not_found"
	CurrencyLikelyInForce CurrencyStatus = "likely_in_force"
)

// CurrencyQuery asks whether a provision or statute is current. At least one
// of Citation or StatuteID must be set; the shell validates that.
type CurrencyQuery struct {
	Citation  string
	StatuteID string
	AsOfDate  string
}

// CurrencyEvidence backs a currency verdict.
type CurrencyEvidence struct {
	Matches  int    `json:"matches"`
	SampleID string `json:"sampleId,omitempty"`
}

// CurrencyReport is the currency-check payload.
type CurrencyReport struct {
	Status     CurrencyStatus    `json:"status"`
	StatuteID  string            `json:"statuteId,omitempty"`
	Citation   string            `json:"citation,omitempty"`
	AsOfDate   string            `json:"asOfDate,omitempty"`
	SourceDate string            `json:"sourceDate,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Evidence   *CurrencyEvidence `json:"evidence,omitempty"`
}

// StanceQuery drives the legal-stance aggregator.
type StanceQuery struct {
	Query                   string
	Limit                   int
	IncludeCaseLaw          bool
	IncludePreparatoryWorks bool
}

// StanceReport aggregates the parallel retrievals for one research question.
type StanceReport struct {
	Query            string         `json:"query"`
	Statutes         []law.Document `json:"statutes"`
	CaseLaw          []law.Document `json:"caseLaw"`
	PreparatoryWorks []law.Document `json:"preparatoryWorks"`
	KeyCitations     []string       `json:"keyCitations"`
}

// PrepWorksQuery selects preparatory works. At least one selector must be
// set; the shell validates that.
type PrepWorksQuery struct {
	Citation  string
	StatuteID string
	Query     string
	Limit     int
}

// EuBasisQuery selects the provisions whose EU basis is wanted. At least one
// selector must be set.
type EuBasisQuery struct {
	Citation   string
	StatuteID  string
	DocumentID string
	Limit      int
}

// ComplianceStatus classifies an EU-compliance probe.
type ComplianceStatus string

const (
	ComplianceMapped    ComplianceStatus = "mapped"
	ComplianceNotMapped ComplianceStatus = "not_mapped"
	ComplianceUnknown   ComplianceStatus = "unknown"
)

// ComplianceReport is the validate_eu_compliance payload.
type ComplianceReport struct {
	EuID            string            `json:"euId"`
	Status          ComplianceStatus  `json:"status"`
	Matches         []law.EuReference `json:"matches"`
	RelatedStatutes []string          `json:"relatedStatutes"`
	Reason          string            `json:"reason,omitempty"`
}

// ValidationResult is the validate_citation payload.
type ValidationResult struct {
	Valid      bool   `json:"valid"`
	Normalized string `json:"normalized,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// FormatResult is the format_citation payload.
type FormatResult struct {
	Original  string `json:"original"`
	Formatted string `json:"formatted"`
	Style     string `json:"style"`
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`
}

// Adapter is the per-jurisdiction operation surface. Implementations must be
// safe for concurrent use and must not panic across this boundary.
type Adapter interface {
	Descriptor() law.Descriptor
	Capabilities(ctx context.Context) law.CapabilitySet
	Grammar() citation.Grammar

	SearchDocuments(ctx context.Context, query string, limit int) ([]law.Document, error)
	GetDocument(ctx context.Context, id string) (*law.Document, error)
	SearchCaseLaw(ctx context.Context, query string, filter corpus.CaseLawFilter, limit int) ([]law.Document, error)
	SearchPreparatoryWorks(ctx context.Context, q PrepWorksQuery) ([]law.Document, error)

	ValidateCitation(ctx context.Context, input string) ValidationResult
	FormatCitation(ctx context.Context, input, style string) FormatResult

	CheckCurrency(ctx context.Context, q CurrencyQuery) (*CurrencyReport, error)
	BuildLegalStance(ctx context.Context, q StanceQuery) (*StanceReport, error)

	EuBasis(ctx context.Context, q EuBasisQuery) ([]law.EuReference, error)
	SearchEuImplementations(ctx context.Context, query string, limit int) ([]eurefs.ImplementationSummary, error)
	NationalImplementations(ctx context.Context, euID string, limit int) ([]law.EuReference, error)
	ValidateEuCompliance(ctx context.Context, euID, cit, statuteID string) (*ComplianceReport, error)

	RunIngestion(ctx context.Context, opts ingest.Options) *law.IngestionReport
}
