// Package config loads the promptgate server configuration.
//
// Values come from, in increasing precedence: Default(), an optional TOML
// file, PROMPTGATE_* environment variables, and command line flags (applied
// by the caller).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultListen   = ":8000"
	DefaultUpstream = "http://localhost:11434"
	DefaultTimeout  = 60 * time.Second
	DefaultStatic   = "static"
)

// Environment variable names.
const (
	EnvListen    = "PROMPTGATE_LISTEN"
	EnvUpstream  = "PROMPTGATE_UPSTREAM"
	EnvTimeout   = "PROMPTGATE_TIMEOUT"
	EnvStaticDir = "PROMPTGATE_STATIC_DIR"
	EnvStore     = "PROMPTGATE_STORE"
	EnvDebug     = "PROMPTGATE_DEBUG"
	EnvJSONLogs  = "PROMPTGATE_JSON_LOGS"
)

// Duration is a time.Duration that decodes from TOML strings like "90s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Log configures the process logger.
type Log struct {
	Debug bool `toml:"debug"`
	JSON  bool `toml:"json"`
}

// Config is the server configuration.
type Config struct {
	// Listen is the address the HTTP server binds (e.g., ":8000").
	Listen string `toml:"listen"`

	// Upstream is the Ollama base URL.
	Upstream string `toml:"upstream"`

	// Timeout bounds one upstream exchange.
	Timeout Duration `toml:"timeout"`

	// StaticDir holds index.html, board.html, board2.html and /static assets.
	StaticDir string `toml:"static_dir"`

	// Store selects the settings and prompt storage. Empty means the
	// default local database.
	Store string `toml:"store"`

	Log Log `toml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:    DefaultListen,
		Upstream:  DefaultUpstream,
		Timeout:   Duration{DefaultTimeout},
		StaticDir: DefaultStatic,
	}
}

// Load reads path over Default() and applies environment overrides. An
// empty path skips the file. A named file that does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("config file %s not found", path)
			}
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("parse config %s: unknown key %q", path, undecoded[0].String())
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvListen); ok && v != "" {
		c.Listen = v
	}
	if v, ok := lookup(EnvUpstream); ok && v != "" {
		c.Upstream = v
	}
	if v, ok := lookup(EnvStaticDir); ok && v != "" {
		c.StaticDir = v
	}
	if v, ok := lookup(EnvStore); ok && v != "" {
		c.Store = v
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		if err := c.Timeout.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
	}
	if v, ok := lookup(EnvDebug); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvDebug, err)
		}
		c.Log.Debug = b
	}
	if v, ok := lookup(EnvJSONLogs); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvJSONLogs, err)
		}
		c.Log.JSON = b
	}
	return nil
}
