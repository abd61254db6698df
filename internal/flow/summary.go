// Package flow provides the context-summary extraction call.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/planforge/planforge/internal/genai"
	"github.com/planforge/planforge/internal/models"
)

const (
	// summaryTemperature keeps the extraction call near-deterministic.
	summaryTemperature = 0.1
	// summaryMaxTokens bounds the JSON extraction response.
	summaryMaxTokens = 512
	// summaryTimeout bounds the extraction call independently of the main
	// turn's timeout.
	summaryTimeout = 20 * time.Second
)

var errNoJSONObject = errors.New("no JSON object in extraction output")

// regenerateSummary runs the independent guided-JSON extraction call over the
// full transcript including the assistant reply just produced. The call is
// best-effort: on any failure the prior summary is carried forward unchanged.
// The result is always merged with the request's heuristic analyses.
func (o *Orchestrator) regenerateSummary(ctx context.Context, req *models.ChatRequest, assistantReply string, prior *models.ContextSummary) *models.ContextSummary {
	if prior == nil {
		prior = models.NewContextSummary()
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(contextSummaryPrompt),
		openai.UserMessage(transcriptText(req.Messages, assistantReply)),
	}
	completion, err := o.llm.Generate(ctx, messages, genai.CallOptions{
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
		Timeout:     summaryTimeout,
		GuidedJSON:  ContextSummarySchema(),
	})
	if err != nil {
		slog.Warn("flow.regenerateSummary: extraction call failed, keeping prior summary", "error", err)
		return MergeContext(prior, req)
	}

	extracted, err := parseSummaryJSON(completion.Text)
	if err != nil {
		slog.Warn("flow.regenerateSummary: extraction output unparseable, keeping prior summary", "error", err)
		return MergeContext(prior, req)
	}

	// Extraction can lose facts the model stated earlier; never let a
	// placeholder overwrite a previously known value.
	carryForward(extracted, prior)
	return MergeContext(extracted, req)
}

// carryForward fills placeholder fields of next from prior.
func carryForward(next, prior *models.ContextSummary) {
	fill := func(dst *string, src string) {
		if models.IsPlaceholder(*dst) && !models.IsPlaceholder(src) {
			*dst = src
		}
	}
	fill(&next.BusinessType, prior.BusinessType)
	fill(&next.PainPoints, prior.PainPoints)
	fill(&next.Goals, prior.Goals)
	fill(&next.DataAvailable, prior.DataAvailable)
	fill(&next.PriorTechUse, prior.PriorTechUse)
	fill(&next.GrowthIntent, prior.GrowthIntent)
}

// transcriptText renders the conversation as labeled plain text for the
// extraction call, appending the assistant reply being returned this turn.
func transcriptText(turns []models.ConversationTurn, assistantReply string) string {
	var b strings.Builder
	for _, t := range turns {
		label := "Owner"
		if t.Role == models.RoleAssistant {
			label = "Consultant"
		}
		fmt.Fprintf(&b, "%s: %s\n\n", label, t.Content)
	}
	if assistantReply != "" {
		fmt.Fprintf(&b, "Consultant: %s\n", assistantReply)
	}
	return b.String()
}

// parseSummaryJSON decodes the extraction output, tolerating code fences and
// prose around the JSON object.
func parseSummaryJSON(text string) (*models.ContextSummary, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, errNoJSONObject
	}
	summary := models.NewContextSummary()
	if err := summary.FromJSON(text[start : end+1]); err != nil {
		return nil, fmt.Errorf("failed to decode extraction JSON: %w", err)
	}
	normalizePlaceholders(summary)
	return summary, nil
}

// normalizePlaceholders maps empty extracted fields back to the sentinel.
func normalizePlaceholders(s *models.ContextSummary) {
	for _, f := range []*string{&s.BusinessType, &s.PainPoints, &s.Goals, &s.DataAvailable, &s.PriorTechUse, &s.GrowthIntent} {
		if strings.TrimSpace(*f) == "" {
			*f = models.PlaceholderValue
		}
	}
}
