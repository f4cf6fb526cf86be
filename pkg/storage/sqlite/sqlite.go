// Package sqlite is a storage.Driver backed by a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	// Registers the "sqlite3" database/sql driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/promptgate/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	id   INTEGER PRIMARY KEY CHECK (id = 1),
	data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS prompts (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	prompt      TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	last_used   DATETIME
);
`

// Driver implements storage.Driver using SQLite.
type Driver struct {
	db *sql.DB
}

// NewDriver opens the database at path and applies the schema.
// Use ":memory:" for an in-memory database.
func NewDriver(ctx context.Context, path string) (*Driver, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and serializes
	// writers, which SQLite requires anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Driver{db: db}, nil
}

func (d *Driver) LoadSettings(ctx context.Context) (storage.Settings, error) {
	var data string
	err := d.db.QueryRowContext(ctx, `SELECT data FROM settings WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.DefaultSettings(), nil
	}
	if err != nil {
		return storage.Settings{}, fmt.Errorf("query settings: %w", err)
	}

	var settings storage.Settings
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return storage.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

func (d *Driver) SaveSettings(ctx context.Context, settings storage.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO settings (id, data) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		string(data),
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (d *Driver) ListPrompts(ctx context.Context) (map[string]storage.Prompt, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, name, prompt, description, created_at, last_used FROM prompts`)
	if err != nil {
		return nil, fmt.Errorf("query prompts: %w", err)
	}
	defer rows.Close()

	prompts := make(map[string]storage.Prompt)
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		prompts[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prompts: %w", err)
	}
	return prompts, nil
}

func (d *Driver) GetPrompt(ctx context.Context, id string) (storage.Prompt, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, name, prompt, description, created_at, last_used FROM prompts WHERE id = ?`, id)

	p, err := scanPrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Prompt{}, storage.ErrNotFound{ID: id}
	}
	return p, err
}

func (d *Driver) PutPrompt(ctx context.Context, prompt storage.Prompt) error {
	if err := prompt.Validate(); err != nil {
		return err
	}

	var lastUsed sql.NullTime
	if prompt.LastUsed != nil {
		lastUsed = sql.NullTime{Time: prompt.LastUsed.UTC(), Valid: true}
	}

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO prompts (id, name, prompt, description, created_at, last_used)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			prompt = excluded.prompt,
			description = excluded.description,
			created_at = excluded.created_at,
			last_used = excluded.last_used`,
		prompt.ID, prompt.Name, prompt.Prompt, prompt.Description, prompt.CreatedAt.UTC(), lastUsed,
	)
	if err != nil {
		return fmt.Errorf("save prompt %s: %w", prompt.ID, err)
	}
	return nil
}

func (d *Driver) DeletePrompt(ctx context.Context, id string) (storage.Prompt, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Prompt{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT id, name, prompt, description, created_at, last_used FROM prompts WHERE id = ?`, id)
	p, err := scanPrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Prompt{}, storage.ErrNotFound{ID: id}
	}
	if err != nil {
		return storage.Prompt{}, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM prompts WHERE id = ?`, id); err != nil {
		return storage.Prompt{}, fmt.Errorf("delete prompt %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return storage.Prompt{}, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrompt(s scanner) (storage.Prompt, error) {
	var (
		p        storage.Prompt
		lastUsed sql.NullTime
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Prompt, &p.Description, &p.CreatedAt, &lastUsed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Prompt{}, err
		}
		return storage.Prompt{}, fmt.Errorf("scan prompt: %w", err)
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		p.LastUsed = &t
	}
	return p, nil
}
