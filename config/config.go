// Package config handles mech.toml runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/mech/core"
	"github.com/chazu/mech/dispatch"
	"github.com/chazu/mech/store"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "mech.toml"

// Config represents a mech.toml file.
type Config struct {
	Runtime Runtime `toml:"runtime"`
	Persist Persist `toml:"persist"`
	Log     Log     `toml:"log"`
	Export  Export  `toml:"export"`

	// Dir is the directory containing the mech.toml file (set at load time).
	Dir string `toml:"-"`
}

// Runtime configures the core.
type Runtime struct {
	Name          string   `toml:"name"`
	ArenaCapacity int      `toml:"arena-capacity"`
	UnknownTable  string   `toml:"unknown-table"`
	Features      []string `toml:"features"`
}

// Persist configures the change log.
type Persist struct {
	Path    string `toml:"path"`
	Backend string `toml:"backend"`
	Replay  bool   `toml:"replay"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	Path      string `toml:"path"`
}

// Export configures snapshot export.
type Export struct {
	DuckDB string `toml:"duckdb"`
}

// Default returns the configuration used when no mech.toml exists.
func Default() *Config {
	return &Config{
		Runtime: Runtime{
			Name:          "mech",
			ArenaCapacity: 1024,
			UnknownTable:  "skip",
		},
		Persist: Persist{
			Backend: "log",
			Replay:  true,
		},
	}
}

// Load parses the mech.toml file in dir. Keys missing from the file keep
// their Default values.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a mech.toml file,
// then loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Runtime.UnknownTable {
	case "", "skip", "error":
	default:
		return fmt.Errorf("runtime.unknown-table: want \"skip\" or \"error\", got %q", c.Runtime.UnknownTable)
	}
	switch c.Persist.Backend {
	case "", "log", "sqlite":
	default:
		return fmt.Errorf("persist.backend: want \"log\" or \"sqlite\", got %q", c.Persist.Backend)
	}
	if c.Runtime.ArenaCapacity < 0 {
		return fmt.Errorf("runtime.arena-capacity: must not be negative")
	}
	if _, err := dispatch.ParseFeatures(c.Runtime.Features); err != nil {
		return fmt.Errorf("runtime.features: %w", err)
	}
	return nil
}

// CoreOptions converts the runtime section into core options.
func (c *Config) CoreOptions() (core.Options, error) {
	features, err := dispatch.ParseFeatures(c.Runtime.Features)
	if err != nil {
		return core.Options{}, err
	}
	opts := core.Options{
		Store:    store.Options{ArenaCapacity: c.Runtime.ArenaCapacity},
		Features: features,
	}
	if c.Runtime.UnknownTable == "error" {
		opts.Store.UnknownTable = store.FailUnknown
	}
	return opts, nil
}

// Resolve returns path relative to the configuration directory. Absolute
// and empty paths are returned unchanged.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.Dir == "" {
		return path
	}
	return filepath.Join(c.Dir, path)
}

// PersistPath returns the resolved change log path, or "" when persistence
// is off.
func (c *Config) PersistPath() string {
	return c.Resolve(c.Persist.Path)
}
