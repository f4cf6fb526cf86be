// Package inmemory is a storage.Driver that keeps everything in process memory.
package inmemory

import (
	"context"
	"sync"

	"github.com/papercomputeco/promptgate/pkg/storage"
)

// Driver is a mutex-guarded in-memory storage.Driver.
type Driver struct {
	mu       sync.RWMutex
	settings *storage.Settings
	prompts  map[string]storage.Prompt
}

// NewDriver creates an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		prompts: make(map[string]storage.Prompt),
	}
}

func (d *Driver) LoadSettings(_ context.Context) (storage.Settings, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.settings == nil {
		return storage.DefaultSettings(), nil
	}
	return *d.settings, nil
}

func (d *Driver) SaveSettings(_ context.Context, settings storage.Settings) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.settings = &settings
	return nil
}

func (d *Driver) ListPrompts(_ context.Context) (map[string]storage.Prompt, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]storage.Prompt, len(d.prompts))
	for id, p := range d.prompts {
		out[id] = p
	}
	return out, nil
}

func (d *Driver) GetPrompt(_ context.Context, id string) (storage.Prompt, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.prompts[id]
	if !ok {
		return storage.Prompt{}, storage.ErrNotFound{ID: id}
	}
	return p, nil
}

func (d *Driver) PutPrompt(_ context.Context, prompt storage.Prompt) error {
	if err := prompt.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.prompts[prompt.ID] = prompt
	return nil
}

func (d *Driver) DeletePrompt(_ context.Context, id string) (storage.Prompt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.prompts[id]
	if !ok {
		return storage.Prompt{}, storage.ErrNotFound{ID: id}
	}
	delete(d.prompts, id)
	return p, nil
}

func (d *Driver) Close() error {
	return nil
}
