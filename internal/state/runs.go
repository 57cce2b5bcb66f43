package state

import (
	"context"
	"time"
)

// Run is one finished submission, kept as an experiment log.
type Run struct {
	ID         string
	PanelID    string
	ProjectID  string
	Provider   string
	Adapter    string
	Model      string
	Streaming  bool
	Status     string
	Output     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

func (db *DB) RecordRun(ctx context.Context, r Run) error {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = r.FinishedAt
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO runs (id, panel_id, project_id, provider, adapter, model, streaming, status, output, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			output = excluded.output,
			error = excluded.error,
			finished_at = excluded.finished_at`,
		r.ID, r.PanelID, r.ProjectID, r.Provider, r.Adapter, r.Model, r.Streaming,
		r.Status, r.Output, r.Error, r.StartedAt, r.FinishedAt)
	return err
}

// ListRuns returns the most recent runs first. limit <= 0 means 50.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, panel_id, project_id, provider, adapter, model, streaming, status, output, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.PanelID, &r.ProjectID, &r.Provider, &r.Adapter, &r.Model, &r.Streaming,
			&r.Status, &r.Output, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
