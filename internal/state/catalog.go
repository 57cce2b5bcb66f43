package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yubzen/playground/internal/playground"
)

var ErrNotFound = errors.New("not found")

var builtinCatalog = []playground.Definition{
	{
		ID:          "tool-search-web",
		Kind:        playground.KindTool,
		Name:        "search_web",
		Description: "Search the web for information.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"],"additionalProperties":false}`),
	},
	{
		ID:          "schema-answer",
		Kind:        playground.KindSchema,
		Name:        "answer",
		Description: "A single answer string.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"answer":{"type":"string"}},"required":["answer"],"additionalProperties":false}`),
	},
}

func seedCatalog(db *sql.DB) error {
	for _, d := range builtinCatalog {
		_, err := db.Exec(`INSERT OR IGNORE INTO catalog_items (id, kind, name, description, parameters, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			d.ID, string(d.Kind), d.Name, d.Description, string(d.Parameters), time.Unix(0, 0).UTC())
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
	}
	return nil
}

// SaveDefinition inserts or replaces a tool or schema definition.
func (db *DB) SaveDefinition(ctx context.Context, d playground.Definition) error {
	if d.ID == "" {
		return errors.New("definition id is empty")
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO catalog_items (id, kind, name, description, parameters, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			description = excluded.description,
			parameters = excluded.parameters`,
		d.ID, string(d.Kind), d.Name, d.Description, string(d.Parameters), time.Now().UTC())
	return err
}

// ListDefinitions returns the definitions of kind, oldest first. An empty
// kind lists everything.
func (db *DB) ListDefinitions(ctx context.Context, kind playground.DefinitionKind) ([]playground.Definition, error) {
	query := `SELECT id, kind, name, description, parameters FROM catalog_items`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []playground.Definition
	for rows.Next() {
		var d playground.Definition
		var k, params string
		if err := rows.Scan(&d.ID, &k, &d.Name, &d.Description, &params); err != nil {
			return nil, err
		}
		d.Kind = playground.DefinitionKind(k)
		if params != "" {
			d.Parameters = json.RawMessage(params)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (db *DB) DeleteDefinition(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM catalog_items WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
