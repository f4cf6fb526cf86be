// Package redis is a storage.Driver backed by Redis. Settings live in a
// single string key and prompts in one hash, both JSON encoded.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/papercomputeco/promptgate/pkg/storage"
)

// DefaultKeyPrefix namespaces every key written by the driver.
const DefaultKeyPrefix = "promptgate:"

// Driver implements storage.Driver using Redis.
type Driver struct {
	rdb  *goredis.Client
	keys *Keys
}

// NewDriver connects using a redis:// URL and verifies the connection.
func NewDriver(ctx context.Context, url, keyPrefix string) (*Driver, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewDriverWithClient(rdb, keyPrefix), nil
}

// NewDriverWithClient wraps an existing client.
func NewDriverWithClient(rdb *goredis.Client, keyPrefix string) *Driver {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Driver{rdb: rdb, keys: NewKeys(keyPrefix)}
}

func (d *Driver) LoadSettings(ctx context.Context) (storage.Settings, error) {
	data, err := d.rdb.Get(ctx, d.keys.Settings()).Bytes()
	if errors.Is(err, goredis.Nil) {
		return storage.DefaultSettings(), nil
	}
	if err != nil {
		return storage.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}

	var settings storage.Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return storage.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

func (d *Driver) SaveSettings(ctx context.Context, settings storage.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := d.rdb.Set(ctx, d.keys.Settings(), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func (d *Driver) ListPrompts(ctx context.Context) (map[string]storage.Prompt, error) {
	raw, err := d.rdb.HGetAll(ctx, d.keys.Prompts()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}

	prompts := make(map[string]storage.Prompt, len(raw))
	for id, data := range raw {
		var p storage.Prompt
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("decode prompt %s: %w", id, err)
		}
		prompts[id] = p
	}
	return prompts, nil
}

func (d *Driver) GetPrompt(ctx context.Context, id string) (storage.Prompt, error) {
	data, err := d.rdb.HGet(ctx, d.keys.Prompts(), id).Bytes()
	if errors.Is(err, goredis.Nil) {
		return storage.Prompt{}, storage.ErrNotFound{ID: id}
	}
	if err != nil {
		return storage.Prompt{}, fmt.Errorf("failed to get prompt: %w", err)
	}

	var p storage.Prompt
	if err := json.Unmarshal(data, &p); err != nil {
		return storage.Prompt{}, fmt.Errorf("decode prompt %s: %w", id, err)
	}
	return p, nil
}

func (d *Driver) PutPrompt(ctx context.Context, prompt storage.Prompt) error {
	if err := prompt.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(prompt)
	if err != nil {
		return fmt.Errorf("encode prompt: %w", err)
	}
	if err := d.rdb.HSet(ctx, d.keys.Prompts(), prompt.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to save prompt: %w", err)
	}
	return nil
}

func (d *Driver) DeletePrompt(ctx context.Context, id string) (storage.Prompt, error) {
	p, err := d.GetPrompt(ctx, id)
	if err != nil {
		return storage.Prompt{}, err
	}

	n, err := d.rdb.HDel(ctx, d.keys.Prompts(), id).Result()
	if err != nil {
		return storage.Prompt{}, fmt.Errorf("failed to delete prompt: %w", err)
	}
	if n == 0 {
		// removed concurrently between the read and the delete
		return storage.Prompt{}, storage.ErrNotFound{ID: id}
	}
	return p, nil
}

// Close closes the Redis connection
func (d *Driver) Close() error {
	return d.rdb.Close()
}
