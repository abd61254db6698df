// Package store provides storage backends for PlanForge.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/planforge/planforge/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is the SQLite implementation of Store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// CreateConversation stores a new conversation record.
func (s *SQLiteStore) CreateConversation(c models.Conversation) error {
	_, err := s.db.Exec(`INSERT INTO conversations (id, created_at, updated_at) VALUES (?, ?, ?)`,
		c.ID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateConversation failed", "error", err, "conversationID", c.ID)
		return fmt.Errorf("failed to insert conversation %s: %w", c.ID, err)
	}
	return nil
}

// GetConversation retrieves a conversation, returning nil when not found.
func (s *SQLiteStore) GetConversation(id string) (*models.Conversation, error) {
	var c models.Conversation
	err := s.db.QueryRow(`SELECT id, created_at, updated_at FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversation failed", "error", err, "conversationID", id)
		return nil, fmt.Errorf("failed to query conversation %s: %w", id, err)
	}
	return &c, nil
}

// SaveMessage appends a message to a conversation.
func (s *SQLiteStore) SaveMessage(m models.Message) error {
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
			slog.Error("SQLiteStore SaveMessage meta marshal failed", "error", err, "messageID", m.ID)
			return err
		}
		metaJSON = string(b)
	}
	_, err := s.db.Exec(`INSERT INTO messages (id, conversation_id, role, content, meta, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Role, m.Content, nilIfEmpty(metaJSON), m.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveMessage failed", "error", err, "conversationID", m.ConversationID)
		return fmt.Errorf("failed to insert message for %s: %w", m.ConversationID, err)
	}
	return nil
}

// ListMessages returns all messages for a conversation in chronological order.
func (s *SQLiteStore) ListMessages(conversationID string) ([]models.Message, error) {
	rows, err := s.db.Query(`SELECT id, conversation_id, role, content, meta, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at`, conversationID)
	if err != nil {
		slog.Error("SQLiteStore ListMessages query failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			slog.Error("SQLiteStore ListMessages scan failed", "error", err)
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
func (s *SQLiteStore) SaveContext(conversationID, summaryJSON string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO conversation_contexts (conversation_id, summary_json, updated_at) VALUES (?, ?, ?)`,
		conversationID, summaryJSON, time.Now())
	if err != nil {
		slog.Error("SQLiteStore SaveContext failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to save context for %s: %w", conversationID, err)
	}
	return nil
}

// GetContext returns the stored context summary JSON, or "" when absent.
func (s *SQLiteStore) GetContext(conversationID string) (string, error) {
	var summaryJSON string
	err := s.db.QueryRow(`SELECT summary_json FROM conversation_contexts WHERE conversation_id = ?`, conversationID).Scan(&summaryJSON)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetContext failed", "error", err, "conversationID", conversationID)
		return "", fmt.Errorf("failed to query context for %s: %w", conversationID, err)
	}
	return summaryJSON, nil
}

// SaveBusinessPlan stores a generated plan, replacing any prior plan.
func (s *SQLiteStore) SaveBusinessPlan(p models.BusinessPlan) error {
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
	_, err := s.db.Exec(`INSERT OR REPLACE INTO business_plans (id, conversation_id, markdown, highlights, fallback, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.ConversationID, p.Markdown, nilIfEmpty(highlightsJSON), p.Fallback, p.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveBusinessPlan failed", "error", err, "conversationID", p.ConversationID)
		return fmt.Errorf("failed to save plan for %s: %w", p.ConversationID, err)
	}
	return nil
}

// GetBusinessPlan returns the plan for a conversation or nil when absent.
func (s *SQLiteStore) GetBusinessPlan(conversationID string) (*models.BusinessPlan, error) {
	var p models.BusinessPlan
	var highlightsJSON sql.NullString
	err := s.db.QueryRow(`SELECT id, conversation_id, markdown, highlights, fallback, created_at FROM business_plans WHERE conversation_id = ?`, conversationID).
		Scan(&p.ID, &p.ConversationID, &p.Markdown, &highlightsJSON, &p.Fallback, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetBusinessPlan failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to query plan for %s: %w", conversationID, err)
	}
	if highlightsJSON.Valid && highlightsJSON.String != "" {
		if err := json.Unmarshal([]byte(highlightsJSON.String), &p.Highlights); err != nil {
			slog.Warn("SQLiteStore GetBusinessPlan highlights parse failed", "error", err, "conversationID", conversationID)
		}
	}
	return &p, nil
}

// TrackEvent records an analytics event.
func (s *SQLiteStore) TrackEvent(e models.AnalyticsEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO analytics_events (id, conversation_id, kind, payload_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, nilIfEmpty(e.ConversationID), e.Kind, nilIfEmpty(e.PayloadJSON), e.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore TrackEvent failed", "error", err, "kind", e.Kind)
		return fmt.Errorf("failed to insert event %s: %w", e.Kind, err)
	}
	return nil
}

// LogSystemHealth records a health observation.
func (s *SQLiteStore) LogSystemHealth(component string, healthy bool, detail string) error {
	_, err := s.db.Exec(`INSERT INTO system_health (id, component, healthy, detail, observed_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), component, healthy, nilIfEmpty(detail), time.Now())
	if err != nil {
		slog.Error("SQLiteStore LogSystemHealth failed", "error", err, "component", component)
		return fmt.Errorf("failed to insert health entry for %s: %w", component, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
