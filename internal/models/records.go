// Package models defines persistence records for PlanForge.
package models

import "time"

// Conversation is a persisted discovery conversation.
type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a persisted conversation turn. Meta carries per-turn metadata
// such as the derived step, fallback flags, and token usage.
type Message struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id"`
	Role           string            `json:"role"`
	Content        string            `json:"content"`
	Meta           map[string]string `json:"meta,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// BusinessPlan is a persisted generated plan.
type BusinessPlan struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Markdown       string    `json:"markdown"`
	Highlights     []string  `json:"highlights,omitempty"`
	Fallback       bool      `json:"fallback"`
	CreatedAt      time.Time `json:"created_at"`
}

// AnalyticsEvent is a best-effort tracked event.
type AnalyticsEvent struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Kind           string    `json:"kind"`
	PayloadJSON    string    `json:"payload_json,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// SystemHealthEntry records a provider health observation.
type SystemHealthEntry struct {
	ID         string    `json:"id"`
	Component  string    `json:"component"`
	Healthy    bool      `json:"healthy"`
	Detail     string    `json:"detail,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}
