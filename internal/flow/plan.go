// Package flow provides business plan generation.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/planforge/planforge/internal/genai"
	"github.com/planforge/planforge/internal/models"
	"github.com/planforge/planforge/internal/sanitize"
)

const (
	// PlanTimeout bounds the plan generation call. Plans are long documents
	// and get a far larger budget than question turns.
	PlanTimeout = 120 * time.Second
	// PlanMaxTokens bounds the plan length.
	PlanMaxTokens = 4096
	// planTemperature is the sampling temperature for plan generation.
	planTemperature = 0.7
	// MinPlanLength is the threshold below which generated output is
	// considered unusable and the templated plan is substituted.
	MinPlanLength = 200
	// planRetrievalK is how many document snippets are pulled into the plan
	// prompt from uploaded files.
	planRetrievalK = 4
	// MaxPlanHighlights caps the highlights list returned to the client.
	MaxPlanHighlights = 5
)

const planRules = `You are PlanForge, an AI consultant. The discovery conversation is complete and the owner has confirmed the summary. Write a personalized AI implementation plan for their business as a Markdown document.

Structure:
- Start with a single "# " title naming the business.
- Organize the plan into "## " sections ordered from quickest wins to longer-term initiatives, each with concrete, affordable actions tied to what the owner told you.
- Reference the owner's actual pain points, tools, and goals; never invent facts.
- Keep the tone practical and encouraging. No preamble before the title, no closing remarks after the last section.`

const planIntroMessage = "Here's your personalized AI implementation plan. It's built from everything you shared, starting with the quickest wins."

// generatePlan runs the plan-generation call and assembles the plan response.
// Every failure path degrades to the templated plan with fallback set; the
// response is always a complete plan payload.
func (o *Orchestrator) generatePlan(ctx context.Context, req *models.ChatRequest, summary *models.ContextSummary) *models.ChatResponse {
	prompt := planRules
	if bullets := ContextBullets(summary, req); bullets != "" {
		prompt += "\n\nWhat we know about the business:\n" + bullets
	}
	if snippets := o.retrieveDocSnippets(ctx, req, summary); snippets != "" {
		prompt += "\n\nRelevant excerpts from the owner's uploaded documents:\n" + snippets
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(prompt),
		openai.UserMessage("Discovery transcript:\n\n" + transcriptText(req.Messages, "")),
	}

	generator := o.planLLM
	if generator == nil {
		generator = o.llm
	}
	completion, err := generator.Generate(ctx, messages, genai.CallOptions{
		Temperature: planTemperature,
		MaxTokens:   PlanMaxTokens,
		Timeout:     PlanTimeout,
	})

	markdown := ""
	if err != nil {
		slog.Error("flow.generatePlan: generation failed, substituting templated plan", "error", err)
	} else {
		markdown = strings.TrimSpace(sanitize.CleanSummary(completion.Text))
	}

	fallback := false
	if len(markdown) < MinPlanLength {
		if err == nil {
			slog.Warn("flow.generatePlan: generated plan too short, substituting templated plan", "length", len(markdown))
		}
		markdown = FallbackPlan(summary)
		fallback = true
	}

	return &models.ChatResponse{
		Message:              planIntroMessage,
		ContextSummary:       summary,
		Fallback:             fallback,
		BusinessPlanMarkdown: markdown,
		IsBusinessPlan:       true,
		PlanHighlights:       ExtractHighlights(markdown),
	}
}

// retrieveDocSnippets indexes the request's attached files and retrieves the
// chunks most relevant to the owner's pain points and goals. Best-effort:
// any failure returns no snippets.
func (o *Orchestrator) retrieveDocSnippets(ctx context.Context, req *models.ChatRequest, summary *models.ContextSummary) string {
	if o.docs == nil || len(req.AttachedFiles) == 0 {
		return ""
	}
	for _, f := range req.AttachedFiles {
		if err := o.docs.AddDocument(ctx, f.Name, f.Content); err != nil {
			slog.Warn("flow.retrieveDocSnippets: failed to index attached file", "file", f.Name, "error", err)
		}
	}

	query := "AI implementation opportunities"
	if summary != nil {
		var parts []string
		if !models.IsPlaceholder(summary.PainPoints) {
			parts = append(parts, summary.PainPoints)
		}
		if !models.IsPlaceholder(summary.Goals) {
			parts = append(parts, summary.Goals)
		}
		if len(parts) > 0 {
			query = strings.Join(parts, "; ")
		}
	}

	matches, err := o.docs.Search(ctx, query, planRetrievalK)
	if err != nil {
		slog.Warn("flow.retrieveDocSnippets: retrieval failed", "error", err)
		return ""
	}

	var b strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", m.Source, m.Text)
	}
	return strings.TrimSpace(b.String())
}

// ExtractHighlights pulls section titles ("## " headings) out of a plan as
// the highlights list shown alongside it.
func ExtractHighlights(markdown string) []string {
	var highlights []string
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "## ") {
			continue
		}
		title := strings.TrimSpace(strings.TrimPrefix(line, "## "))
		if title == "" {
			continue
		}
		highlights = append(highlights, title)
		if len(highlights) == MaxPlanHighlights {
			break
		}
	}
	return highlights
}
