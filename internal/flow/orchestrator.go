// Package flow provides the conversation orchestrator, the single entry
// point the API layer calls to process one chat turn.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/openai/openai-go"

	"github.com/planforge/planforge/internal/genai"
	"github.com/planforge/planforge/internal/models"
	"github.com/planforge/planforge/internal/rag"
	"github.com/planforge/planforge/internal/sanitize"
	"github.com/planforge/planforge/internal/store"
	"github.com/planforge/planforge/internal/util"
)

// ErrNilRequest is returned when ProcessTurn is called without a request.
var ErrNilRequest = errors.New("nil chat request")

// Generator is the LLM gateway surface the orchestrator depends on. Both
// *genai.Client and *genai.Reliable satisfy it.
type Generator interface {
	Generate(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, opts genai.CallOptions) (*genai.Completion, error)
}

// Orchestrator drives one discovery conversation turn end to end: step
// derivation, prompt assembly, generation, sanitization, step-discipline
// guarding with bounded corrective retries, deterministic fallback, context
// summary regeneration, and best-effort persistence.
type Orchestrator struct {
	llm     Generator
	planLLM Generator
	store   store.Store
	docs    *rag.Store
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithPlanGenerator sets a separate generator for plan turns, typically the
// multi-provider reliability wrapper.
func WithPlanGenerator(g Generator) OrchestratorOption {
	return func(o *Orchestrator) { o.planLLM = g }
}

// WithStore enables best-effort persistence of turns, context, and plans.
func WithStore(s store.Store) OrchestratorOption {
	return func(o *Orchestrator) { o.store = s }
}

// WithDocStore enables retrieval over uploaded documents during plan
// generation.
func WithDocStore(docs *rag.Store) OrchestratorOption {
	return func(o *Orchestrator) { o.docs = docs }
}

// NewOrchestrator creates an orchestrator around the given turn generator.
func NewOrchestrator(llm Generator, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{llm: llm}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessTurn handles one chat request and always returns a complete
// response for handled outcomes; degraded paths set the fallback flag rather
// than erroring. An error is returned only for unusable requests.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chat request: %w", err)
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = util.GenerateConversationID()
	}

	prior := MergeContext(o.loadPriorSummary(conversationID), req)

	if ShouldGeneratePlan(req.Messages) {
		resp := o.generatePlan(ctx, req, prior)
		o.persistPlan(conversationID, resp)
		return resp, nil
	}

	step := DeriveStep(req.Messages, req.CurrentStep)
	message, usedFallback := o.generateTurn(ctx, req, step, prior)

	// The summary extraction is an independent second call; its failure
	// never degrades the turn itself.
	summary := o.regenerateSummary(ctx, req, message, prior)

	resp := &models.ChatResponse{
		Message:        message,
		ContextSummary: summary,
		Fallback:       usedFallback,
	}
	o.persistTurn(conversationID, req, resp, step)
	return resp, nil
}

// generateTurn runs the guarded generation loop for one question or summary
// turn: generate, sanitize, guard, and re-prompt with a corrective note on
// violation, at most MaxGuardrailRetries corrective attempts. Sanitizer
// rejection consumes an attempt the same way a violation does. On exhaustion
// or gateway failure the deterministic templated message is substituted; the
// templated message is never re-guarded, so the loop always terminates.
func (o *Orchestrator) generateTurn(ctx context.Context, req *models.ChatRequest, step models.Step, summary *models.ContextSummary) (string, bool) {
	var attempt models.GuardrailAttempt
	for !attempt.Exhausted() {
		prompt := BuildSystemPrompt(step, summary, req, attempt.CorrectiveNote)
		completion, err := o.llm.Generate(ctx, chatMessages(prompt, req.Messages), genai.CallOptions{})
		if err != nil {
			slog.Error("flow.generateTurn: generation failed, substituting templated message", "step", step, "error", err)
			return FallbackQuestion(step, summary), true
		}

		var cleaned string
		if step.IsSummary() {
			cleaned = sanitize.CleanSummary(completion.Text)
		} else {
			cleaned = sanitize.CleanQuestion(completion.Text, step)
		}

		switch {
		case cleaned == "":
			slog.Warn("flow.generateTurn: sanitizer rejected output", "step", step, "attempt", attempt.AttemptNumber)
			attempt = attempt.Next("", emptyReplyNote(step))
		default:
			violation, bad := DetectViolation(cleaned, step)
			if !bad {
				return cleaned, false
			}
			slog.Warn("flow.generateTurn: step violation detected", "step", step, "violation", violation, "attempt", attempt.AttemptNumber)
			attempt = attempt.Next(violation, CorrectiveNote(violation, step))
		}
	}

	slog.Warn("flow.generateTurn: retry budget exhausted, substituting templated message", "step", step, "violation", attempt.Violation)
	return FallbackQuestion(step, summary), true
}

// emptyReplyNote is the corrective addendum after a sanitizer rejection.
func emptyReplyNote(step models.Step) string {
	if step.IsSummary() {
		return "CORRECTION REQUIRED: your previous reply was empty or contained only internal reasoning. Write the summary of the conversation directly, with no reasoning, notes, or markup beyond plain Markdown."
	}
	return fmt.Sprintf(
		"CORRECTION REQUIRED: your previous reply was empty or contained only internal reasoning. Reply with exactly one question formatted as \"**Question %d: <topic>**\" about %s, and nothing else.",
		step, StepTopic(step))
}

// chatMessages converts the request history into gateway messages under the
// given system prompt.
func chatMessages(systemPrompt string, turns []models.ConversationTurn) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	messages = append(messages, openai.SystemMessage(systemPrompt))
	for _, t := range turns {
		if t.Role == models.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(t.Content))
		} else {
			messages = append(messages, openai.UserMessage(t.Content))
		}
	}
	return messages
}

// loadPriorSummary reads the persisted context summary for a conversation.
// Missing or unparseable context yields a fresh all-placeholder summary.
func (o *Orchestrator) loadPriorSummary(conversationID string) *models.ContextSummary {
	if o.store == nil || conversationID == "" {
		return models.NewContextSummary()
	}
	raw, err := o.store.GetContext(conversationID)
	if err != nil || raw == "" {
		return models.NewContextSummary()
	}
	summary := models.NewContextSummary()
	if err := summary.FromJSON(raw); err != nil {
		slog.Warn("flow.loadPriorSummary: stored context unparseable", "conversationID", conversationID, "error", err)
		return models.NewContextSummary()
	}
	return summary
}

// persistTurn writes the turn and its context to the store. All writes are
// best-effort; failures are logged and never surface to the client.
func (o *Orchestrator) persistTurn(conversationID string, req *models.ChatRequest, resp *models.ChatResponse, step models.Step) {
	if o.store == nil {
		return
	}
	o.ensureConversation(conversationID)

	if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == models.RoleUser {
		o.saveMessage(models.Message{
			ID:             uuid.New().String(),
			ConversationID: conversationID,
			Role:           models.RoleUser,
			Content:        req.Messages[n-1].Content,
		})
	}
	o.saveMessage(models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        resp.Message,
		Meta: map[string]string{
			"step":     strconv.Itoa(int(step)),
			"fallback": strconv.FormatBool(resp.Fallback),
		},
	})

	if resp.ContextSummary != nil {
		if raw, err := resp.ContextSummary.ToJSON(); err == nil {
			if err := o.store.SaveContext(conversationID, raw); err != nil {
				slog.Warn("flow.persistTurn: failed to save context", "conversationID", conversationID, "error", err)
			}
		}
	}

	o.trackEvent(conversationID, "chat_turn", fmt.Sprintf(`{"step":%d,"fallback":%t}`, step, resp.Fallback))
}

// persistPlan writes a generated plan to the store, best-effort.
func (o *Orchestrator) persistPlan(conversationID string, resp *models.ChatResponse) {
	if o.store == nil {
		return
	}
	o.ensureConversation(conversationID)
	err := o.store.SaveBusinessPlan(models.BusinessPlan{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Markdown:       resp.BusinessPlanMarkdown,
		Highlights:     resp.PlanHighlights,
		Fallback:       resp.Fallback,
	})
	if err != nil {
		slog.Warn("flow.persistPlan: failed to save plan", "conversationID", conversationID, "error", err)
	}
	o.trackEvent(conversationID, "plan_generated", fmt.Sprintf(`{"fallback":%t}`, resp.Fallback))
}

func (o *Orchestrator) ensureConversation(conversationID string) {
	if c, err := o.store.GetConversation(conversationID); err == nil && c != nil {
		return
	}
	if err := o.store.CreateConversation(models.Conversation{ID: conversationID}); err != nil {
		slog.Warn("flow.ensureConversation: failed to create conversation", "conversationID", conversationID, "error", err)
	}
}

func (o *Orchestrator) saveMessage(m models.Message) {
	if err := o.store.SaveMessage(m); err != nil {
		slog.Warn("flow.saveMessage: failed to save message", "conversationID", m.ConversationID, "role", m.Role, "error", err)
	}
}

func (o *Orchestrator) trackEvent(conversationID, kind, payload string) {
	err := o.store.TrackEvent(models.AnalyticsEvent{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Kind:           kind,
		PayloadJSON:    payload,
	})
	if err != nil {
		slog.Debug("flow.trackEvent: failed to track event", "kind", kind, "error", err)
	}
}
