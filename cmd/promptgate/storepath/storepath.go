// Package storepath resolves and opens the local settings and prompt store
// used by the promptgate commands.
package storepath

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/promptgate/pkg/storage"
	"github.com/papercomputeco/promptgate/pkg/storage/inmemory"
	"github.com/papercomputeco/promptgate/pkg/storage/jsonfile"
	"github.com/papercomputeco/promptgate/pkg/storage/redis"
	"github.com/papercomputeco/promptgate/pkg/storage/sqlite"
)

const (
	// EnvStore overrides the default store location.
	EnvStore = "PROMPTGATE_STORE"

	// Memory selects a throwaway in-memory store.
	Memory = "memory"

	defaultDirName  = ".promptgate"
	defaultFileName = "promptgate.db"
)

// Resolve returns the store location: the flag value when set, else
// $PROMPTGATE_STORE, else ~/.promptgate/promptgate.db. The default
// directory is created when needed.
func Resolve(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv(EnvStore); env != "" {
		return env, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find home directory: %w", err)
	}

	dir := filepath.Join(home, defaultDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, defaultFileName), nil
}

// Open opens the driver that fits location:
//
//	memory               in-memory store
//	redis://, rediss://  Redis
//	a directory          config.json and saved_prompts.json inside it
//	*.json               the directory holding that file
//	anything else        SQLite database file
func Open(ctx context.Context, location string, logger *zap.Logger) (storage.Driver, error) {
	switch {
	case location == Memory:
		return inmemory.NewDriver(), nil

	case strings.HasPrefix(location, "redis://"), strings.HasPrefix(location, "rediss://"):
		return redis.NewDriver(ctx, location, redis.DefaultKeyPrefix)

	case strings.HasSuffix(location, ".json"):
		return jsonfile.NewDriver(filepath.Dir(location), logger)

	case isDir(location):
		return jsonfile.NewDriver(location, logger)

	default:
		return sqlite.NewDriver(ctx, location)
	}
}

// Kind names the driver Open would pick, for log and status output.
func Kind(location string) string {
	switch {
	case location == Memory:
		return "inmemory"
	case strings.HasPrefix(location, "redis://"), strings.HasPrefix(location, "rediss://"):
		return "redis"
	case strings.HasSuffix(location, ".json"), isDir(location):
		return "jsonfile"
	default:
		return "sqlite"
	}
}

func isDir(path string) bool {
	if strings.HasSuffix(path, string(os.PathSeparator)) {
		return true
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
