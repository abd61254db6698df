package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/planforge/planforge/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanMessage scans a Message from sql.Rows shared by both SQL backends.
func scanMessage(rows *sql.Rows) (models.Message, error) {
	var m models.Message
	var metaJSON sql.NullString
	err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &metaJSON, &m.CreatedAt)
	if err != nil {
		return m, fmt.Errorf("scan message failed: %w", err)
	}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &m.Meta); err != nil {
			slog.Warn("store.scanMessage: meta parse failed", "error", err, "messageID", m.ID)
		}
	}
	return m, nil
}
