package events

import (
	"context"
	"database/sql"
	"encoding/json"

	"planline/internal/domain"
)

// Payload is the structured detail attached to an event.
type Payload map[string]any

// JSON renders the payload for storage. An empty payload becomes "{}".
func (p Payload) JSON() string {
	if p == nil {
		p = Payload{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Writer appends events to the SQLite event log.
type Writer struct {
	DB *sql.DB
}

func (w Writer) Append(ctx context.Context, e domain.Event) error {
	payload := e.Payload
	if payload == "" {
		payload = "{}"
	}
	_, err := w.DB.ExecContext(ctx,
		`INSERT INTO events(ts,type,project_id,entity_kind,entity_id,payload_json) VALUES (?,?,?,?,?,?)`,
		e.TS, e.Type, nullable(e.ProjectID), e.EntityKind, nullable(e.EntityID), payload)
	return err
}

// List returns the newest events for a project, newest first.
func (w Writer) List(ctx context.Context, projectID string, limit int) ([]domain.Event, error) {
	rows, err := w.DB.QueryContext(ctx,
		`SELECT id,ts,type,COALESCE(project_id,''),entity_kind,COALESCE(entity_id,''),payload_json
		 FROM events WHERE project_id = ? ORDER BY id DESC LIMIT ?`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.ProjectID, &e.EntityKind, &e.EntityID, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
