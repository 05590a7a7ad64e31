package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	if c.Scan.Workers < 1 {
		return fmt.Errorf("%w: scan.workers must be at least 1, got %d", ErrInvalidConfig, c.Scan.Workers)
	}
	if c.Scan.MaxFileSize <= 0 {
		return fmt.Errorf("%w: scan.max_file_size must be positive, got %d", ErrInvalidConfig, c.Scan.MaxFileSize)
	}
	switch c.Scan.Access {
	case "mmap", "read":
	default:
		return fmt.Errorf("%w: scan.access must be mmap or read, got %q", ErrInvalidConfig, c.Scan.Access)
	}
	if !slices.Contains(Formats, c.Output.Format) {
		return fmt.Errorf("%w: output.format must be one of %v, got %q", ErrInvalidConfig, Formats, c.Output.Format)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}
	return nil
}
