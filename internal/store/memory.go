// Package store provides storage backends for PlanForge.
//
// This file implements an in-memory store used for tests and for running
// without a database DSN.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/planforge/planforge/internal/models"
)

// InMemoryStore is a mutex-guarded in-memory implementation of Store.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]models.Conversation
	messages      map[string][]models.Message
	contexts      map[string]string
	plans         map[string]models.BusinessPlan
	events        []models.AnalyticsEvent
	health        []models.SystemHealthEntry
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]models.Conversation),
		messages:      make(map[string][]models.Message),
		contexts:      make(map[string]string),
		plans:         make(map[string]models.BusinessPlan),
	}
}

// CreateConversation stores a new conversation record.
func (s *InMemoryStore) CreateConversation(c models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.conversations[c.ID]; exists {
		return fmt.Errorf("conversation %s already exists", c.ID)
	}
	s.conversations[c.ID] = c
	return nil
}

// GetConversation returns the conversation or nil when not found.
func (s *InMemoryStore) GetConversation(id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// SaveMessage appends a message to a conversation.
func (s *InMemoryStore) SaveMessage(m models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.messages[m.ConversationID] = append(s.messages[m.ConversationID], m)
	return nil
}

// ListMessages returns all messages for a conversation in insertion order.
func (s *InMemoryStore) ListMessages(conversationID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// SaveContext stores or replaces the context summary for a conversation.
func (s *InMemoryStore) SaveContext(conversationID, summaryJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[conversationID] = summaryJSON
	return nil
}

// GetContext returns the stored context summary JSON, or "" when absent.
func (s *InMemoryStore) GetContext(conversationID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contexts[conversationID], nil
}

// SaveBusinessPlan stores a generated plan, replacing any prior plan for the
// conversation.
func (s *InMemoryStore) SaveBusinessPlan(p models.BusinessPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.plans[p.ConversationID] = p
	return nil
}

// GetBusinessPlan returns the plan for a conversation or nil when absent.
func (s *InMemoryStore) GetBusinessPlan(conversationID string) (*models.BusinessPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[conversationID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// TrackEvent records an analytics event.
func (s *InMemoryStore) TrackEvent(e models.AnalyticsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	s.events = append(s.events, e)
	return nil
}

// Events returns all tracked events (for tests).
func (s *InMemoryStore) Events() []models.AnalyticsEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AnalyticsEvent, len(s.events))
	copy(out, s.events)
	return out
}

// LogSystemHealth records a health observation.
func (s *InMemoryStore) LogSystemHealth(component string, healthy bool, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = append(s.health, models.SystemHealthEntry{
		ID:         uuid.NewString(),
		Component:  component,
		Healthy:    healthy,
		Detail:     detail,
		ObservedAt: time.Now(),
	})
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
