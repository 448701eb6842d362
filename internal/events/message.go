// Package events announces finished compilation runs to other services.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// RoutingKeyExportCompleted is the topic every finished export is published under.
const RoutingKeyExportCompleted = "exports.completed"

// ExportCompleted is published once a document has been persisted.
type ExportCompleted struct {
	RunID           string    `json:"run_id"`
	UserID          string    `json:"user_id"`
	SubjectID       string    `json:"subject_id"`
	ObjectKey       string    `json:"object_key"`
	Images          int       `json:"images"`
	SkippedExpenses int       `json:"skipped_expenses"`
	CompletedAt     time.Time `json:"completed_at"`
}

func (m *ExportCompleted) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExportCompletedFromJSON(data []byte) (*ExportCompleted, error) {
	var m ExportCompleted
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Publisher delivers completion events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	PublishExportCompleted(ctx context.Context, msg ExportCompleted) error
	Close() error
}

// Noop drops every event; used when no broker is configured.
type Noop struct{}

func (Noop) PublishExportCompleted(context.Context, ExportCompleted) error { return nil }
func (Noop) Close() error                                                  { return nil }
