// Package shell is the typed tool-dispatch layer: a closed table of tools,
// per-tool argument validation, capability gating, and uniform result
// envelopes. It is transport-free; callers feed it one tool call at a time.
package shell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"rechtskern/internal/adapter"
	"rechtskern/internal/corpus"
	"rechtskern/internal/ingest"
	"rechtskern/internal/law"
	"rechtskern/internal/logging"
	"rechtskern/internal/registry"
)

// Envelope error codes.
const (
	CodeInvalidArguments      = "invalid_arguments"
	CodeUnknownCountry        = "unknown_country"
	CodeDuplicateCountry      = "duplicate_country"
	CodeUnsupportedCapability = "unsupported_capability"
	CodeUnknownTool           = "unknown_tool"
	CodeInvalidJSON           = "invalid_json"
	CodeInternalError         = "internal_error"
)

// ToolError is the structured error carried in a failed envelope.
type ToolError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Envelope is the uniform tool-call result.
type Envelope struct {
	Tool  string     `json:"tool"`
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *ToolError `json:"error,omitempty"`
}

// Call is the wire shape of one tool invocation.
type Call struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Shell dispatches tool calls against the adapter registry. Safe for
// concurrent use; it holds no per-call state.
type Shell struct {
	reg *registry.Registry
}

// New creates a Shell over a registry.
func New(reg *registry.Registry) *Shell {
	return &Shell{reg: reg}
}

// handler executes one tool for one adapter (nil for registry-level tools).
type handler func(ctx context.Context, s *Shell, a adapter.Adapter, args map[string]any) (any, error)

// toolSpec is one row of the closed tool table.
type toolSpec struct {
	needsCountry bool
	flag         func(law.ToolFlags) bool
	capability   law.Capability
	run          handler
}

// ToolNames returns the closed tool set in sorted order.
func ToolNames() []string {
	names := make([]string, 0, len(toolTable))
	for name := range toolTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HandleJSON decodes one wire call and dispatches it. A malformed line
// yields an invalid_json envelope rather than an error.
func (s *Shell) HandleJSON(ctx context.Context, line []byte) Envelope {
	var call Call
	if err := json.Unmarshal(line, &call); err != nil {
		return Envelope{OK: false, Error: &ToolError{
			Code:    CodeInvalidJSON,
			Message: "request is not valid JSON",
		}}
	}
	return s.Handle(ctx, call.Name, call.Arguments)
}

// Handle dispatches one tool call. It never panics: handler panics are
// recovered into internal_error envelopes.
func (s *Shell) Handle(ctx context.Context, name string, args map[string]any) (env Envelope) {
	callID := uuid.NewString()[:8]
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryShell).Errorf("call %s: panic in %s: %v", callID, name, r)
			env = fail(name, CodeInternalError, "internal error")
		}
	}()

	if args == nil {
		args = map[string]any{}
	}
	logging.ShellDebug("call %s: tool=%s", callID, name)

	spec, ok := toolTable[name]
	if !ok {
		return fail(name, CodeUnknownTool, fmt.Sprintf("unknown tool %q", name))
	}

	var a adapter.Adapter
	if spec.needsCountry {
		country, err := requiredString(args, "country")
		if err != nil {
			return failErr(name, err)
		}
		a, err = s.reg.Get(country)
		if err != nil {
			return failErr(name, err)
		}
		if spec.flag != nil && !spec.flag(a.Descriptor().Tools) {
			return fail(name, CodeUnsupportedCapability,
				fmt.Sprintf("tool %q is not supported by %q", name, strings.ToLower(country)))
		}
		// Runtime gating is not an error: a capability the current corpus
		// snapshot lacks yields an upgrade notice instead of data.
		if spec.capability != "" && !a.Capabilities(ctx).Has(spec.capability) {
			return Envelope{Tool: name, OK: true,
				Data: upgradeNotice(spec.capability, strings.ToLower(country))}
		}
	}

	data, err := spec.run(ctx, s, a, args)
	if err != nil {
		logging.Shell("call %s: tool=%s failed: %v", callID, name, err)
		return failErr(name, err)
	}
	return Envelope{Tool: name, OK: true, Data: data}
}

func fail(tool, code, message string) Envelope {
	return Envelope{Tool: tool, OK: false, Error: &ToolError{Code: code, Message: message}}
}

// failErr maps sentinel errors to envelope codes. An unavailable corpus is
// absent data, not a failure.
func failErr(tool string, err error) Envelope {
	var ae *argError
	switch {
	case errors.As(err, &ae):
		return fail(tool, CodeInvalidArguments, ae.Error())
	case errors.Is(err, registry.ErrUnknownCountry):
		return fail(tool, CodeUnknownCountry, err.Error())
	case errors.Is(err, registry.ErrDuplicateCountry):
		return fail(tool, CodeDuplicateCountry, err.Error())
	case errors.Is(err, corpus.ErrUnavailable):
		return Envelope{Tool: tool, OK: true, Data: map[string]any{
			"unavailable": true,
			"message":     "corpus unavailable; no data to serve",
		}}
	default:
		return fail(tool, CodeInternalError, err.Error())
	}
}

// upgradeNotice is the payload served in place of data when the adapter's
// runtime capability set lacks the tool's capability.
func upgradeNotice(capability law.Capability, country string) map[string]any {
	return map[string]any{
		"upgradeRequired": true,
		"capability":      string(capability),
		"message": fmt.Sprintf("capability %q is not available for %q in the current corpus snapshot",
			capability, country),
	}
}

func documentsPayload(docs []law.Document) map[string]any {
	return map[string]any{"documents": docs, "total": len(docs)}
}

// toolTable is populated in init: the describe_country handler ranges over
// the table, so a composite-literal initializer would be an initialization
// cycle.
var toolTable map[string]toolSpec

func init() {
	toolTable = map[string]toolSpec{
		"list_countries": {
			run: func(ctx context.Context, s *Shell, _ adapter.Adapter, _ map[string]any) (any, error) {
				out := []map[string]any{}
				for _, a := range s.reg.All() {
					out = append(out, map[string]any{
						"country":      a.Descriptor().JurisdictionCode,
						"capabilities": a.Capabilities(ctx).List(),
					})
				}
				return out, nil
			},
		},

		"describe_country": {
			needsCountry: true,
			run: func(ctx context.Context, _ *Shell, a adapter.Adapter, _ map[string]any) (any, error) {
				desc := a.Descriptor()
				caps := a.Capabilities(ctx)
				tools := map[string]bool{}
				for name, spec := range toolTable {
					if !spec.needsCountry || name == "describe_country" {
						continue
					}
					enabled := spec.flag == nil || spec.flag(desc.Tools)
					if enabled && spec.capability != "" {
						enabled = caps.Has(spec.capability)
					}
					tools[name] = enabled
				}
				return map[string]any{
					"country":      desc.JurisdictionCode,
					"name":         desc.Name,
					"capabilities": caps.List(),
					"tools":        tools,
				}, nil
			},
		},

		"search_documents": {
			needsCountry: true,
			flag:         func(f law.ToolFlags) bool { return f.Documents },
			capability:   law.CapCoreLegislation,
			run: func(ctx context.Context, _ *Shell, a adapter.Adapter, args map[string]any) (any, error) {
				query, err := requiredString(args, "query")
				if err != nil {
					return nil, err
				}
				limit, err := optionalLimit(args)
				if err != nil {
					return nil, err
				}
				docs, err := a.SearchDocuments(ctx, query, limit)
				if err != nil {
					return nil, err
				}
				return documentsPayload(docs), nil
			},
		},

		"get_document": {
			needsCountry: true,
			flag:         func(f law.ToolFlags) bool { return f.Documents },
			capability:   law.CapCoreLegislation,
			run: func(ctx context.Context, _ *Shell, a adapter.Adapter, args map[string]any) (any, error) {
				id, err := requiredString(args, "id")
				if err != nil {
					return nil, err
				}
				doc, err := a.GetDocument(ctx, id)
				if err != nil {
					return nil, err
				}
				if doc == nil {
					return nil, nil
				}
				return doc, nil
			},
		},

		"search_case_law": {
			needsCountry: true,
			flag:         func(f law.ToolFlags) bool { return f.CaseLaw },
			capability:   law.CapBasicCaseLaw,
			run: func(ctx context.Context, _ *Shell, a adapter.Adapter, args map[string]any) (any, error) {
				query, err := requiredString(args, "query")
				if err != nil {
					return nil, err
				}
				limit, err := optionalLimit(args)
				if err != nil {
					return nil, err
				}
				court, err := optionalString(args, "court")
				if err != nil {
					return nil, err
				}
				dateFrom, err := optionalString(args, "dateFrom")
				if err != nil {
					return nil, err
				}
				dateTo, err := optionalString(args, "dateTo")
				if err != nil {
					return nil, err
				}
				docs, err := a.SearchCaseLaw(ctx, query,
					corpus.CaseLawFilter{Court: court, DateFrom: dateFrom, DateTo: dateTo}, limit)
				if err != nil {
					return nil, err
				}
				return documentsPayload(docs), nil
			},
		},

		"get_preparatory_works": {
			needsCountry: true,
			flag:         func(f law.ToolFlags) bool { return f.PreparatoryWorks },
			capability:   law.CapFullPreparatoryWorks,
			run: func(ctx context.Context, _ *Shell, a adapter.Adapter, args map[string]any) (any, error) {
				if err := anyOf(args, "citation", "statuteId", "query"); err != nil {
					return nil, err
				}
				cit, err := optionalString(args, "citation")
				if err != nil {
					return nil, err
				}
				statuteID, err := optionalString(args, "statuteId")
				if err != nil {
					return nil, err
				}
				query, err := optionalString(args, "query")
				if err != nil {
					return nil, err
				}
				limit, err := optionalLimit(args)
				if err != nil {
					return nil, err
				}
				docs, err := a.SearchPreparatoryWorks(ctx, adapter.PrepWorksQuery{
					Citation: cit, StatuteID: statuteID, Query: query, Limit: limit,
				})
				if err != nil {
					return nil, err
				}
				return documentsPayload(docs), nil
			},
		},

		"parse_citation": {
			needsCountry: true,
			flag:         func(f law.ToolFlags) bool { return f.Citations },
			run: func(ctx context.Context, _ *Shell, a adapter.Adapter, args map[string]any) (any, error) {
				cit, err := requiredString(args, "citation")
				if err != nil {
					return nil, err
				}
				pc := a.Grammar().Parse(cit)
				if pc == nil {
					return nil, nil
				}
				return map[string]any{
					"original":   cit,
					"normalized": pc.Normalized,
					"parsed":     pc.Parsed,
				}, nil
			},
		},

		"validate_citation": {
			needsCountry: true,
			flag:         func(f law.ToolFlags) bool { return f.Citations },
			run: func(ctx context.Context, _ *Shell, a adapter.Adapter, args map[string]any) (any, error) {
				cit, err := requiredString(args, "citation")
				if err != nil {
					return nil, err
				}
				return a.ValidateCitation(ctx, cit), nil
			},
		},

		"format_citation": {
			needsCountry: true,
			flag:         func(f law.ToolFlags) bool { return f.Formatting },
			run: func(ctx context.Context, _ *Shell, a adapter.Adapter, args map[string]any) (any, error) {
				cit, err := requiredString(args, "citation")
				if err != nil {
					return nil, err
				}
				style, err := optionalEnum(args, "style", "default", "short", "pinpoint")
				if err != nil {
					return nil, err
				}
				return a.FormatCitation(ctx, cit, style), nil
			},
		},

		"check_currency": {
			needsCountry: true,
			flag:         func(f law.ToolFlags) bool { return f.Currency },
			run: func(ctx context.Context, _ *Shell, a adapter.Adapter, args map[string]any) (any, error) {
				if err := anyOf(args, "citation", "statuteId"); err != nil {
					return nil, err
				}
				cit, err := optionalString(args, "citation")
				if err != nil {
					return nil, err
				}
				statuteID, err := optionalString(args, "statuteId")
				if err != nil {
					return nil, err
				}
				asOfDate, err := optionalString(args, "asOfDate")
				if err != nil {
					return nil, err
				}
				if asOfDate != "" && !validISODate(asOfDate) {
					return nil, argErrorf("argument %q must be a YYYY-MM-DD date", "asOfDate")
				}
				return a.CheckCurrency(ctx, adapter.CurrencyQuery{
					Citation: cit, StatuteID: statuteID, AsOfDate: asOfDate,
				})
			},
		},

		"build_legal_stance": {
			needsCountry: true,
			flag:         func(f law.ToolFlags) bool { return f.LegalStance },
			run: func(ctx context.Context, _ *Shell, a adapter.Adapter, args map[string]any) (any, error) {
				query, err := requiredString(args, "query")
				if err != nil {
					return nil, err
				}
				limit, err := optionalLimit(args)
				if err != nil {
					return nil, err
				}
				includeCaseLaw, err := optionalBool(args, "includeCaseLaw")
				if err != nil {
					return nil, err
				}
				includePrep, err := optionalBool(args, "includePreparatoryWorks")
				if err != nil {
					return nil, err
				}
				return a.BuildLegalStance(ctx, adapter.StanceQuery{
					Query:                   query,
					Limit:                   limit,
					IncludeCaseLaw:          includeCaseLaw,
					IncludePreparatoryWorks: includePrep,
				})
			},
		},

		"get_eu_basis": {
			needsCountry: true,
			flag:         func(f law.ToolFlags) bool { return f.EU },
			capability:   law.CapEuReferences,
			run: func(ctx context.Context, _ *Shell, a adapter.Adapter, args map[string]any) (any, error) {
				if err := anyOf(args, "citation", "statuteId", "documentId"); err != nil {
					return nil, err
				}
				q, err := euBasisQuery(args)
				if err != nil {
					return nil, err
				}
				refs, err := a.EuBasis(ctx, q)
				if err != nil {
					return nil, err
				}
				return map[string]any{"references": refs, "total": len(refs)}, nil
			},
		},

		"search_eu_implementations": {
			needsCountry: true,
			flag:         func(f law.ToolFlags) bool { return f.EU },
			capability:   law.CapEuReferences,
			run: func(ctx context.Context, _ *Shell, a adapter.Adapter, args map[string]any) (any, error) {
				query, err := requiredString(args, "query")
				if err != nil {
					return nil, err
				}
				limit, err := optionalLimit(args)
				if err != nil {
					return nil, err
				}
				results, err := a.SearchEuImplementations(ctx, query, limit)
				if err != nil {
					return nil, err
				}
				return map[string]any{"results": results, "total": len(results)}, nil
			},
		},

		"get_national_implementations": {
			needsCountry: true,
			flag:         func(f law.ToolFlags) bool { return f.EU },
			capability:   law.CapEuReferences,
			run: func(ctx context.Context, _ *Shell, a adapter.Adapter, args map[string]any) (any, error) {
				euID, err := requiredString(args, "euId")
				if err != nil {
					return nil, err
				}
				limit, err := optionalLimit(args)
				if err != nil {
					return nil, err
				}
				results, err := a.NationalImplementations(ctx, euID, limit)
				if err != nil {
					return nil, err
				}
				return map[string]any{"results": results, "total": len(results)}, nil
			},
		},

		"get_provision_eu_basis": {
			needsCountry: true,
			flag:         func(f law.ToolFlags) bool { return f.EU },
			capability:   law.CapEuReferences,
			run: func(ctx context.Context, _ *Shell, a adapter.Adapter, args map[string]any) (any, error) {
				documentID, err := requiredString(args, "documentId")
				if err != nil {
					return nil, err
				}
				limit, err := optionalLimit(args)
				if err != nil {
					return nil, err
				}
				refs, err := a.EuBasis(ctx, adapter.EuBasisQuery{DocumentID: documentID, Limit: limit})
				if err != nil {
					return nil, err
				}
				return map[string]any{"references": refs, "total": len(refs)}, nil
			},
		},

		"validate_eu_compliance": {
			needsCountry: true,
			flag:         func(f law.ToolFlags) bool { return f.EU },
			capability:   law.CapEuReferences,
			run: func(ctx context.Context, _ *Shell, a adapter.Adapter, args map[string]any) (any, error) {
				euID, err := requiredString(args, "euId")
				if err != nil {
					return nil, err
				}
				cit, err := optionalString(args, "citation")
				if err != nil {
					return nil, err
				}
				statuteID, err := optionalString(args, "statuteId")
				if err != nil {
					return nil, err
				}
				return a.ValidateEuCompliance(ctx, euID, cit, statuteID)
			},
		},

		"run_ingestion": {
			needsCountry: true,
			flag:         func(f law.ToolFlags) bool { return f.Ingestion },
			run: func(ctx context.Context, _ *Shell, a adapter.Adapter, args map[string]any) (any, error) {
				sourceID, err := optionalString(args, "sourceId")
				if err != nil {
					return nil, err
				}
				dryRun, err := optionalBool(args, "dryRun")
				if err != nil {
					return nil, err
				}
				return a.RunIngestion(ctx, ingest.Options{SourceID: sourceID, DryRun: dryRun}), nil
			},
		},
	}
}

func euBasisQuery(args map[string]any) (adapter.EuBasisQuery, error) {
	var q adapter.EuBasisQuery
	var err error
	if q.Citation, err = optionalString(args, "citation"); err != nil {
		return q, err
	}
	if q.StatuteID, err = optionalString(args, "statuteId"); err != nil {
		return q, err
	}
	if q.DocumentID, err = optionalString(args, "documentId"); err != nil {
		return q, err
	}
	if q.Limit, err = optionalLimit(args); err != nil {
		return q, err
	}
	return q, nil
}

// validISODate checks the YYYY-MM-DD shape without pulling in time parsing
// quirks around zones.
func validISODate(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i, r := range s {
		if i == 4 || i == 7 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
