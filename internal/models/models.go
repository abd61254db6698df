// Package models defines the core data structures for PlanForge.
//
// It includes the chat request/response contract, conversation turns, the
// structured context summary, and API envelope types shared across modules.
package models

import (
	"encoding/json"
	"errors"
)

// Role identifies who produced a conversation turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Validation constants for input validation
const (
	// MaxTurnContentLength defines the maximum allowed length for a single turn's content
	MaxTurnContentLength = 32768
	// MaxAttachedFileLength defines the maximum allowed length for an attached file's content
	MaxAttachedFileLength = 262144
	// MaxTurnCount defines the maximum number of turns accepted in one request
	MaxTurnCount = 200
)

// Error variables for better error handling and testability
var (
	ErrInvalidRole        = errors.New("turn role must be user or assistant")
	ErrEmptyTurnContent   = errors.New("turn content cannot be empty")
	ErrTurnContentTooLong = errors.New("turn content exceeds maximum length")
	ErrTooManyTurns       = errors.New("too many turns in request")
	ErrAttachmentTooLong  = errors.New("attached file exceeds maximum length")
)

// ConversationTurn is a single message in the conversation history,
// tagged with the role that produced it. The turn sequence is append-only;
// turn counts by role are the sole source of truth for step progression.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Validate checks a single turn for well-formedness.
func (t *ConversationTurn) Validate() error {
	if t.Role != RoleUser && t.Role != RoleAssistant {
		return ErrInvalidRole
	}
	if t.Content == "" {
		return ErrEmptyTurnContent
	}
	if len(t.Content) > MaxTurnContentLength {
		return ErrTurnContentTooLong
	}
	return nil
}

// AttachedFile is an uploaded document passed along with a chat request.
type AttachedFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ChatRequest is the payload the browser client posts to /api/chat.
// CurrentStep is advisory only; the server derives the authoritative step
// from turn counts and never regresses it based on client state.
type ChatRequest struct {
	Messages          []ConversationTurn `json:"messages"`
	CurrentStep       int                `json:"currentStep"`
	ConversationID    string             `json:"conversationId,omitempty"`
	InitialContext    map[string]string  `json:"initialContext,omitempty"`
	WebsiteAnalysis   *WebsiteAnalysis   `json:"websiteAnalysis,omitempty"`
	FinancialAnalysis *FinancialAnalysis `json:"financialAnalysis,omitempty"`
	AttachedFiles     []AttachedFile     `json:"attachedFiles,omitempty"`
}

// Validate performs comprehensive validation on a ChatRequest.
func (r *ChatRequest) Validate() error {
	if len(r.Messages) > MaxTurnCount {
		return ErrTooManyTurns
	}
	for i := range r.Messages {
		if err := r.Messages[i].Validate(); err != nil {
			return err
		}
	}
	for _, f := range r.AttachedFiles {
		if len(f.Content) > MaxAttachedFileLength {
			return ErrAttachmentTooLong
		}
	}
	return nil
}

// ChatResponse is the payload returned by /api/chat. All handled outcomes,
// including degraded and fallback paths, are returned with HTTP 200; errors
// are encoded in-body to keep the client resilient.
type ChatResponse struct {
	Message              string          `json:"message"`
	ContextSummary       *ContextSummary `json:"contextSummary"`
	Fallback             bool            `json:"fallback,omitempty"`
	BusinessPlanMarkdown string          `json:"businessPlanMarkdown,omitempty"`
	IsBusinessPlan       bool            `json:"isBusinessPlan,omitempty"`
	PlanHighlights       []string        `json:"planHighlights,omitempty"`
}

// PlaceholderValue is the sentinel for context summary fields that have not
// been learned yet. Merge logic treats it as "absent".
const PlaceholderValue = "Not yet specified"

// ContextSummary is the structured 6-field extraction of business facts
// gathered so far. Fields default to PlaceholderValue and are merged with
// heuristic data from website/financial analyses, first non-placeholder
// value winning by field-specific precedence.
type ContextSummary struct {
	BusinessType  string `json:"businessType"`
	PainPoints    string `json:"painPoints"`
	Goals         string `json:"goals"`
	DataAvailable string `json:"dataAvailable"`
	PriorTechUse  string `json:"priorTechUse"`
	GrowthIntent  string `json:"growthIntent"`
}

// NewContextSummary returns a summary with every field set to the sentinel.
func NewContextSummary() *ContextSummary {
	return &ContextSummary{
		BusinessType:  PlaceholderValue,
		PainPoints:    PlaceholderValue,
		Goals:         PlaceholderValue,
		DataAvailable: PlaceholderValue,
		PriorTechUse:  PlaceholderValue,
		GrowthIntent:  PlaceholderValue,
	}
}

// IsPlaceholder reports whether a field value is absent or the sentinel.
func IsPlaceholder(v string) bool {
	return v == "" || v == PlaceholderValue
}

// ToJSON serializes the summary.
func (c *ContextSummary) ToJSON() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FromJSON deserializes a summary, leaving placeholders for missing fields.
func (c *ContextSummary) FromJSON(s string) error {
	*c = *NewContextSummary()
	return json.Unmarshal([]byte(s), c)
}

// WebsiteAnalysis holds facts extracted from a business website. Produced by
// the webanalyze collaborator and consumed as additional prompt context.
type WebsiteAnalysis struct {
	URL             string   `json:"url"`
	Title           string   `json:"title,omitempty"`
	Description     string   `json:"description,omitempty"`
	BusinessType    string   `json:"businessType,omitempty"`
	Services        []string `json:"services,omitempty"`
	TechSignals     []string `json:"techSignals,omitempty"`
	ContentMarkdown string   `json:"contentMarkdown,omitempty"`
}

// FinancialAnalysis holds facts extracted from uploaded financial documents.
type FinancialAnalysis struct {
	BusinessType   string   `json:"businessType,omitempty"`
	RevenueSignals []string `json:"revenueSignals,omitempty"`
	CostSignals    []string `json:"costSignals,omitempty"`
	DataSystems    []string `json:"dataSystems,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse is the standard envelope for non-chat endpoints.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
