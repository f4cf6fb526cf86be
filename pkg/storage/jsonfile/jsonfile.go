// Package jsonfile is a storage.Driver backed by two JSON documents in a
// directory: config.json for settings and saved_prompts.json for prompts.
// Parsed documents are cached and an fsnotify watcher drops the cache when
// either file changes on disk, so hand edits are picked up on the next read.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/papercomputeco/promptgate/pkg/storage"
)

const (
	ConfigFile  = "config.json"
	PromptsFile = "saved_prompts.json"
)

// Driver implements storage.Driver on top of JSON files.
type Driver struct {
	dir    string
	logger *zap.Logger

	mu             sync.RWMutex
	settingsCached bool
	settings       *storage.Settings
	prompts        map[string]storage.Prompt

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewDriver opens (creating if needed) the directory and starts watching it.
func NewDriver(dir string, logger *zap.Logger) (*Driver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	d := &Driver{
		dir:     dir,
		logger:  logger,
		watcher: watcher,
		done:    make(chan struct{}),
	}
	go d.watch()

	return d, nil
}

func (d *Driver) watch() {
	defer close(d.done)

	for {
		select {
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			d.invalidate(filepath.Base(event.Name), event.Op)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.Warn("store watcher error", zap.Error(err))
		}
	}
}

func (d *Driver) invalidate(name string, op fsnotify.Op) {
	if op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch name {
	case ConfigFile:
		d.settingsCached = false
		d.settings = nil
	case PromptsFile:
		d.prompts = nil
	default:
		return
	}

	d.logger.Debug("store file changed", zap.String("file", name), zap.String("op", op.String()))
}

func (d *Driver) LoadSettings(_ context.Context) (storage.Settings, error) {
	d.mu.RLock()
	if d.settingsCached {
		defer d.mu.RUnlock()
		return settingsOrDefault(d.settings), nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.loadSettingsLocked(); err != nil {
		return storage.Settings{}, err
	}
	return settingsOrDefault(d.settings), nil
}

func (d *Driver) loadSettingsLocked() error {
	if d.settingsCached {
		return nil
	}

	var settings storage.Settings
	found, err := d.readJSON(ConfigFile, &settings)
	if err != nil {
		return err
	}

	d.settingsCached = true
	d.settings = nil
	if found {
		d.settings = &settings
	}
	return nil
}

func (d *Driver) SaveSettings(_ context.Context, settings storage.Settings) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.writeJSON(ConfigFile, settings); err != nil {
		return err
	}

	d.settingsCached = true
	d.settings = &settings
	return nil
}

func (d *Driver) ListPrompts(_ context.Context) (map[string]storage.Prompt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.loadPromptsLocked(); err != nil {
		return nil, err
	}

	out := make(map[string]storage.Prompt, len(d.prompts))
	for id, p := range d.prompts {
		out[id] = p
	}
	return out, nil
}

func (d *Driver) GetPrompt(_ context.Context, id string) (storage.Prompt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.loadPromptsLocked(); err != nil {
		return storage.Prompt{}, err
	}

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

	if err := d.loadPromptsLocked(); err != nil {
		return err
	}

	next := clonePrompts(d.prompts)
	next[prompt.ID] = prompt
	if err := d.writeJSON(PromptsFile, next); err != nil {
		return err
	}

	d.prompts = next
	return nil
}

func (d *Driver) DeletePrompt(_ context.Context, id string) (storage.Prompt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.loadPromptsLocked(); err != nil {
		return storage.Prompt{}, err
	}

	p, ok := d.prompts[id]
	if !ok {
		return storage.Prompt{}, storage.ErrNotFound{ID: id}
	}

	next := clonePrompts(d.prompts)
	delete(next, id)
	if err := d.writeJSON(PromptsFile, next); err != nil {
		return storage.Prompt{}, err
	}

	d.prompts = next
	return p, nil
}

// Close stops the watcher.
func (d *Driver) Close() error {
	err := d.watcher.Close()
	<-d.done
	return err
}

func (d *Driver) loadPromptsLocked() error {
	if d.prompts != nil {
		return nil
	}

	prompts := make(map[string]storage.Prompt)
	if _, err := d.readJSON(PromptsFile, &prompts); err != nil {
		return err
	}
	if prompts == nil {
		// the file held a JSON null
		prompts = make(map[string]storage.Prompt)
	}

	d.prompts = prompts
	return nil
}

// readJSON decodes the named file into v. A missing file is not an error.
func (d *Driver) readJSON(name string, v any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(d.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", name, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", name, err)
	}
	return true, nil
}

// writeJSON replaces the named file atomically.
func (d *Driver) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(d.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}

	if err := os.Rename(tmpName, filepath.Join(d.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func settingsOrDefault(s *storage.Settings) storage.Settings {
	if s == nil {
		return storage.DefaultSettings()
	}
	return *s
}

func clonePrompts(in map[string]storage.Prompt) map[string]storage.Prompt {
	out := make(map[string]storage.Prompt, len(in)+1)
	for id, p := range in {
		out[id] = p
	}
	return out
}
