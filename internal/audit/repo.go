// Package audit keeps an append-only log of workflow transitions for
// diagnostics. The log is optional at runtime; a nil repository disables
// it without changing workflow behavior.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is one recorded workflow transition or outcome.
type Event struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	UserID     string    `json:"user_id"`
	Action     string    `json:"action"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Workflow actions recorded in the log.
const (
	ActionCreated       = "project_created"
	ActionIdeaGenerated = "idea_generated"
	ActionBuildStarted  = "build_started"
	ActionCodeGenerated = "code_generated"
	ActionPublished     = "published"
	ActionGenerateError = "generation_failed"
	ActionStaleDiscard  = "stale_generation_discarded"
)

// EventRepository stores events in Postgres.
type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Record appends one event.
func (r *EventRepository) Record(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	const q = `
INSERT INTO workflow_events (id, project_id, user_id, action, from_status, to_status, detail, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.ProjectID, e.UserID, e.Action, e.FromStatus, e.ToStatus, e.Detail, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("record workflow event: %w", err)
	}
	return nil
}

// ListByProject returns a project's events, newest first.
func (r *EventRepository) ListByProject(ctx context.Context, projectID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	const q = `
SELECT id, project_id, user_id, action, from_status, to_status, detail, created_at
FROM workflow_events
WHERE project_id = $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := r.db.QueryContext(ctx, q, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list workflow events: %w", err)
	}
	defer rows.Close()

	out := make([]Event, 0, 16)
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.UserID, &e.Action, &e.FromStatus, &e.ToStatus, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
