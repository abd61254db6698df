// Package flow provides context-summary merge logic.
package flow

import (
	"strings"

	"github.com/planforge/planforge/internal/models"
)

// The merge precedence is fixed: an LLM-extracted value wins over the
// client's initialContext, which wins over website analysis, which wins over
// financial analysis, which wins over the placeholder. The per-field source
// mappings are deliberately expressed as a configuration table rather than
// re-derived logic, so they can be validated against observed behavior field
// by field.

// fieldSource reads one candidate value for a summary field from the request.
type fieldSource func(req *models.ChatRequest) string

// fieldMerge describes how one summary field is read and written. initial is
// the field's key in the client-supplied initialContext map.
type fieldMerge struct {
	get     func(s *models.ContextSummary) string
	set     func(s *models.ContextSummary, v string)
	initial string
	sources []fieldSource
}

var mergeTable = []fieldMerge{
	{
		get:     func(s *models.ContextSummary) string { return s.BusinessType },
		set:     func(s *models.ContextSummary, v string) { s.BusinessType = v },
		initial: "businessType",
		sources: []fieldSource{
			func(r *models.ChatRequest) string { return websiteField(r, func(w *models.WebsiteAnalysis) string { return w.BusinessType }) },
			func(r *models.ChatRequest) string {
				return financialField(r, func(f *models.FinancialAnalysis) string { return f.BusinessType })
			},
		},
	},
	{
		get:     func(s *models.ContextSummary) string { return s.PainPoints },
		set:     func(s *models.ContextSummary, v string) { s.PainPoints = v },
		initial: "painPoints",
		sources: []fieldSource{
			func(r *models.ChatRequest) string {
				return financialField(r, func(f *models.FinancialAnalysis) string { return strings.Join(f.CostSignals, "; ") })
			},
		},
	},
	{
		get:     func(s *models.ContextSummary) string { return s.Goals },
		set:     func(s *models.ContextSummary, v string) { s.Goals = v },
		initial: "goals",
		sources: []fieldSource{
			func(r *models.ChatRequest) string { return websiteField(r, func(w *models.WebsiteAnalysis) string { return w.Description }) },
		},
	},
	{
		get:     func(s *models.ContextSummary) string { return s.DataAvailable },
		set:     func(s *models.ContextSummary, v string) { s.DataAvailable = v },
		initial: "dataAvailable",
		sources: []fieldSource{
			func(r *models.ChatRequest) string {
				return financialField(r, func(f *models.FinancialAnalysis) string { return strings.Join(f.DataSystems, "; ") })
			},
		},
	},
	{
		get:     func(s *models.ContextSummary) string { return s.PriorTechUse },
		set:     func(s *models.ContextSummary, v string) { s.PriorTechUse = v },
		initial: "priorTechUse",
		sources: []fieldSource{
			func(r *models.ChatRequest) string {
				return websiteField(r, func(w *models.WebsiteAnalysis) string { return strings.Join(w.TechSignals, "; ") })
			},
		},
	},
	{
		get:     func(s *models.ContextSummary) string { return s.GrowthIntent },
		set:     func(s *models.ContextSummary, v string) { s.GrowthIntent = v },
		initial: "growthIntent",
		sources: []fieldSource{
			func(r *models.ChatRequest) string {
				return financialField(r, func(f *models.FinancialAnalysis) string { return strings.Join(f.RevenueSignals, "; ") })
			},
		},
	},
}

func initialField(r *models.ChatRequest, key string) string {
	if r == nil || r.InitialContext == nil {
		return ""
	}
	return r.InitialContext[key]
}

func websiteField(r *models.ChatRequest, get func(*models.WebsiteAnalysis) string) string {
	if r == nil || r.WebsiteAnalysis == nil {
		return ""
	}
	return get(r.WebsiteAnalysis)
}

func financialField(r *models.ChatRequest, get func(*models.FinancialAnalysis) string) string {
	if r == nil || r.FinancialAnalysis == nil {
		return ""
	}
	return get(r.FinancialAnalysis)
}

// MergeContext fills placeholder fields of an LLM-extracted summary from the
// request's initialContext and website/financial analyses, first
// non-placeholder value winning.
// LLM-extracted values are never overwritten. Returns the same summary for
// chaining; a nil summary gets a fresh all-placeholder one.
func MergeContext(summary *models.ContextSummary, req *models.ChatRequest) *models.ContextSummary {
	if summary == nil {
		summary = models.NewContextSummary()
	}
	for _, fm := range mergeTable {
		if !models.IsPlaceholder(fm.get(summary)) {
			continue
		}
		if v := strings.TrimSpace(initialField(req, fm.initial)); !models.IsPlaceholder(v) {
			fm.set(summary, v)
			continue
		}
		for _, source := range fm.sources {
			if v := strings.TrimSpace(source(req)); !models.IsPlaceholder(v) {
				fm.set(summary, v)
				break
			}
		}
	}
	return summary
}
