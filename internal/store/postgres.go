// Package store provides storage backends for PlanForge.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/planforge/planforge/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is the PostgreSQL implementation of Store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// CreateConversation stores a new conversation record.
func (s *PostgresStore) CreateConversation(c models.Conversation) error {
	_, err := s.db.Exec(`INSERT INTO conversations (id, created_at, updated_at) VALUES ($1, $2, $3)`,
		c.ID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateConversation failed", "error", err, "conversationID", c.ID)
		return fmt.Errorf("failed to insert conversation %s: %w", c.ID, err)
	}
	return nil
}

// GetConversation retrieves a conversation, returning nil when not found.
func (s *PostgresStore) GetConversation(id string) (*models.Conversation, error) {
	var c models.Conversation
	err := s.db.QueryRow(`SELECT id, created_at, updated_at FROM conversations WHERE id = $1`, id).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversation failed", "error", err, "conversationID", id)
		return nil, fmt.Errorf("failed to query conversation %s: %w", id, err)
	}
	return &c, nil
}

// SaveMessage appends a message to a conversation.
func (s *PostgresStore) SaveMessage(m models.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	var metaJSON string
	if len(m.Meta) > 0 {
		b, err := json.Marshal(m.Meta)
		if err != nil {
			slog.Error("PostgresStore SaveMessage meta marshal failed", "error", err, "messageID", m.ID)
			return err
		}
		metaJSON = string(b)
	}
	_, err := s.db.Exec(`INSERT INTO messages (id, conversation_id, role, content, meta, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.ConversationID, m.Role, m.Content, nilIfEmpty(metaJSON), m.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveMessage failed", "error", err, "conversationID", m.ConversationID)
		return fmt.Errorf("failed to insert message for %s: %w", m.ConversationID, err)
	}
	return nil
}

// ListMessages returns all messages for a conversation in chronological order.
func (s *PostgresStore) ListMessages(conversationID string) ([]models.Message, error) {
	rows, err := s.db.Query(`SELECT id, conversation_id, role, content, meta, created_at FROM messages WHERE conversation_id = $1 ORDER BY created_at`, conversationID)
	if err != nil {
		slog.Error("PostgresStore ListMessages query failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			slog.Error("PostgresStore ListMessages scan failed", "error", err)
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return messages, nil
}

// SaveContext stores or replaces the context summary for a conversation.
func (s *PostgresStore) SaveContext(conversationID, summaryJSON string) error {
	query := `
		INSERT INTO conversation_contexts (conversation_id, summary_json, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (conversation_id)
		DO UPDATE SET
			summary_json = EXCLUDED.summary_json,
			updated_at = EXCLUDED.updated_at`
	_, err := s.db.Exec(query, conversationID, summaryJSON, time.Now())
	if err != nil {
		slog.Error("PostgresStore SaveContext failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to save context for %s: %w", conversationID, err)
	}
	return nil
}

// GetContext returns the stored context summary JSON, or "" when absent.
func (s *PostgresStore) GetContext(conversationID string) (string, error) {
	var summaryJSON string
	err := s.db.QueryRow(`SELECT summary_json FROM conversation_contexts WHERE conversation_id = $1`, conversationID).Scan(&summaryJSON)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		slog.Error("PostgresStore GetContext failed", "error", err, "conversationID", conversationID)
		return "", fmt.Errorf("failed to query context for %s: %w", conversationID, err)
	}
	return summaryJSON, nil
}

// SaveBusinessPlan stores a generated plan, replacing any prior plan.
func (s *PostgresStore) SaveBusinessPlan(p models.BusinessPlan) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	var highlightsJSON string
	if len(p.Highlights) > 0 {
		b, err := json.Marshal(p.Highlights)
		if err != nil {
			return err
		}
		highlightsJSON = string(b)
	}
	query := `
		INSERT INTO business_plans (id, conversation_id, markdown, highlights, fallback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (conversation_id)
		DO UPDATE SET
			markdown = EXCLUDED.markdown,
			highlights = EXCLUDED.highlights,
			fallback = EXCLUDED.fallback`
	_, err := s.db.Exec(query, p.ID, p.ConversationID, p.Markdown, nilIfEmpty(highlightsJSON), p.Fallback, p.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveBusinessPlan failed", "error", err, "conversationID", p.ConversationID)
		return fmt.Errorf("failed to save plan for %s: %w", p.ConversationID, err)
	}
	return nil
}

// GetBusinessPlan returns the plan for a conversation or nil when absent.
func (s *PostgresStore) GetBusinessPlan(conversationID string) (*models.BusinessPlan, error) {
	var p models.BusinessPlan
	var highlightsJSON sql.NullString
	err := s.db.QueryRow(`SELECT id, conversation_id, markdown, highlights, fallback, created_at FROM business_plans WHERE conversation_id = $1`, conversationID).
		Scan(&p.ID, &p.ConversationID, &p.Markdown, &highlightsJSON, &p.Fallback, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetBusinessPlan failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to query plan for %s: %w", conversationID, err)
	}
	if highlightsJSON.Valid && highlightsJSON.String != "" {
		if err := json.Unmarshal([]byte(highlightsJSON.String), &p.Highlights); err != nil {
			slog.Warn("PostgresStore GetBusinessPlan highlights parse failed", "error", err, "conversationID", conversationID)
		}
	}
	return &p, nil
}

// TrackEvent records an analytics event.
func (s *PostgresStore) TrackEvent(e models.AnalyticsEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO analytics_events (id, conversation_id, kind, payload_json, created_at) VALUES ($1, $2, $3, $4, $5)`,
		e.ID, nilIfEmpty(e.ConversationID), e.Kind, nilIfEmpty(e.PayloadJSON), e.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore TrackEvent failed", "error", err, "kind", e.Kind)
		return fmt.Errorf("failed to insert event %s: %w", e.Kind, err)
	}
	return nil
}

// LogSystemHealth records a health observation.
func (s *PostgresStore) LogSystemHealth(component string, healthy bool, detail string) error {
	_, err := s.db.Exec(`INSERT INTO system_health (id, component, healthy, detail, observed_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), component, healthy, nilIfEmpty(detail), time.Now())
	if err != nil {
		slog.Error("PostgresStore LogSystemHealth failed", "error", err, "component", component)
		return fmt.Errorf("failed to insert health entry for %s: %w", component, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *PostgresStore) Close() error { return s.db.Close() }
