// Package storage defines the persistence collaborators of the gateway:
// the generation settings record and the saved system-prompt library.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Settings is the persisted configuration record. Every field is optional so
// that a record missing a field can be distinguished from one holding the
// zero value; the gateway falls back to hard-coded defaults for missing fields.
type Settings struct {
	Model         *string  `json:"model,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	SystemPrompt  *string  `json:"system_prompt,omitempty"`
	MaxTokens     *int     `json:"max_tokens,omitempty"`
	Stream        *bool    `json:"stream,omitempty"`
	NumCtx        *int     `json:"num_ctx,omitempty"`
	RepeatPenalty *float64 `json:"repeat_penalty,omitempty"`
}

// DefaultSettings returns the record used when nothing has been persisted yet.
func DefaultSettings() Settings {
	return Settings{
		Model:         ptr("llama3.2"),
		Temperature:   ptr(0.7),
		TopP:          ptr(0.9),
		SystemPrompt:  ptr("You are a helpful assistant."),
		MaxTokens:     ptr(4096),
		Stream:        ptr(true),
		NumCtx:        ptr(2048),
		RepeatPenalty: ptr(1.1),
	}
}

// Merge overlays every non-nil field of update onto s and returns the result.
func (s Settings) Merge(update Settings) Settings {
	if update.Model != nil {
		s.Model = update.Model
	}
	if update.Temperature != nil {
		s.Temperature = update.Temperature
	}
	if update.TopP != nil {
		s.TopP = update.TopP
	}
	if update.SystemPrompt != nil {
		s.SystemPrompt = update.SystemPrompt
	}
	if update.MaxTokens != nil {
		s.MaxTokens = update.MaxTokens
	}
	if update.Stream != nil {
		s.Stream = update.Stream
	}
	if update.NumCtx != nil {
		s.NumCtx = update.NumCtx
	}
	if update.RepeatPenalty != nil {
		s.RepeatPenalty = update.RepeatPenalty
	}
	return s
}

// Prompt is a saved, reusable system prompt.
type Prompt struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Prompt      string     `json:"prompt"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsed    *time.Time `json:"last_used"`
}

// localTimestamp is the zone-less ISO 8601 form found in prompt libraries
// written by earlier releases of the web UI.
const localTimestamp = "2006-01-02T15:04:05.999999999"

// UnmarshalJSON accepts RFC 3339 timestamps as well as zone-less local ones.
func (p *Prompt) UnmarshalJSON(data []byte) error {
	type alias Prompt
	aux := struct {
		*alias
		CreatedAt string  `json:"created_at"`
		LastUsed  *string `json:"last_used"`
	}{alias: (*alias)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	createdAt, err := parseTimestamp(aux.CreatedAt)
	if err != nil {
		return fmt.Errorf("created_at: %w", err)
	}
	p.CreatedAt = createdAt

	p.LastUsed = nil
	if aux.LastUsed != nil && *aux.LastUsed != "" {
		lastUsed, err := parseTimestamp(*aux.LastUsed)
		if err != nil {
			return fmt.Errorf("last_used: %w", err)
		}
		p.LastUsed = &lastUsed
	}
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(localTimestamp, s, time.Local)
}

// Validate reports whether the prompt can be persisted.
func (p Prompt) Validate() error {
	if p.ID == "" {
		return errors.New("prompt id is required")
	}
	return nil
}

// SettingsStore reads and writes the settings record.
type SettingsStore interface {
	// LoadSettings returns the persisted record, or DefaultSettings when
	// nothing has been saved.
	LoadSettings(ctx context.Context) (Settings, error)

	// SaveSettings replaces the persisted record.
	SaveSettings(ctx context.Context, settings Settings) error
}

// PromptStore reads and writes saved prompts.
type PromptStore interface {
	// ListPrompts returns every saved prompt keyed by ID.
	ListPrompts(ctx context.Context) (map[string]Prompt, error)

	// GetPrompt returns ErrNotFound if the prompt doesn't exist.
	GetPrompt(ctx context.Context, id string) (Prompt, error)

	// PutPrompt inserts or replaces a prompt by ID.
	PutPrompt(ctx context.Context, prompt Prompt) error

	// DeletePrompt removes a prompt and returns it. Returns ErrNotFound if
	// the prompt doesn't exist.
	DeletePrompt(ctx context.Context, id string) (Prompt, error)
}

// Driver is a complete storage backend.
type Driver interface {
	SettingsStore
	PromptStore

	// Close closes the store and releases any resources.
	Close() error
}

// ErrNotFound is returned when a prompt doesn't exist in the store.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	if e.ID == "" {
		return "prompt not found"
	}

	return "prompt not found: " + e.ID
}

func ptr[T any](v T) *T {
	return &v
}
