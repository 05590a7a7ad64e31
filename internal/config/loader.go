// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/ief/internal/constants"
	"github.com/coral-mesh/ief/internal/safe"
)

// maxConfigSize bounds the config file read.
const maxConfigSize = 1 << 20

// Loader finds and reads the configuration file.
type Loader struct {
	dir    string
	lookup LookupFunc
}

// NewLoader creates a new config loader.
// The config directory is resolved in this order:
//  1. IEF_CONFIG environment variable.
//  2. ~/.ief
//  3. none: only defaults and environment overrides apply.
func NewLoader() *Loader {
	return newLoader(os.LookupEnv, os.UserHomeDir)
}

// NewLoaderAt reads config.yaml from dir and takes overrides from lookup.
func NewLoaderAt(dir string, lookup LookupFunc) *Loader {
	return &Loader{dir: dir, lookup: lookup}
}

func newLoader(lookup LookupFunc, home func() (string, error)) *Loader {
	if dir, ok := lookup(constants.ConfigDirEnv); ok && dir != "" {
		return &Loader{dir: dir, lookup: lookup}
	}
	if h, err := home(); err == nil {
		return &Loader{dir: filepath.Join(h, constants.DefaultDir), lookup: lookup}
	}
	return &Loader{lookup: lookup}
}

// Path returns the config file path, or "" when no directory is known.
func (l *Loader) Path() string {
	if l.dir == "" {
		return ""
	}
	return filepath.Join(l.dir, constants.ConfigFile)
}

// Load returns defaults overlaid with the config file, if present, and the
// environment. The result is validated.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if path := l.Path(); path != "" {
		data, err := safe.ReadFile(path, &safe.Options{MaxSize: maxConfigSize, AllowSymlinks: true})
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	// Apply environment variable overrides (layered configuration).
	if err := LoadFromLookup(cfg, l.lookup); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
