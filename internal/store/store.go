// Package store provides storage backends for PlanForge.
//
// It persists conversations, messages, context summaries, generated business
// plans, analytics events, and system health observations. Backends exist
// for PostgreSQL, SQLite, and in-memory use; the chat path treats all store
// writes as best-effort and never fails a request on a storage error.
package store

import (
	"strings"

	"github.com/planforge/planforge/internal/models"
)

// Store is the persistence interface consumed by the API and flow layers.
type Store interface {
	CreateConversation(c models.Conversation) error
	GetConversation(id string) (*models.Conversation, error)
	SaveMessage(m models.Message) error
	ListMessages(conversationID string) ([]models.Message, error)
	SaveContext(conversationID, summaryJSON string) error
	GetContext(conversationID string) (string, error)
	SaveBusinessPlan(p models.BusinessPlan) error
	GetBusinessPlan(conversationID string) (*models.BusinessPlan, error)
	TrackEvent(e models.AnalyticsEvent) error
	LogSystemHealth(component string, healthy bool, detail string) error
	Close() error
}

// Opts holds configuration applied via Option values.
type Opts struct {
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option { return func(o *Opts) { o.DSN = dsn } }

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option { return func(o *Opts) { o.DSN = dsn } }

// DetectDSNType classifies a DSN as "postgres" or "sqlite". Anything that is
// not recognizably a Postgres URL or key/value DSN is assumed to be a SQLite
// file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}
