package scan

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/ief/internal/constants"
)

// Access selects how candidate files are brought into memory.
type Access string

const (
	// AccessMmap maps each file read-only for the duration of its check.
	AccessMmap Access = "mmap"
	// AccessRead reads each file into a heap buffer.
	AccessRead Access = "read"
)

// Config configures a Scanner.
type Config struct {
	// Workers is the number of files checked concurrently. 1 checks files
	// one at a time on the consumer's goroutine.
	Workers int
	// MaxFileSize skips larger files as unreadable.
	MaxFileSize int64
	Access      Access
	// FollowSymlinks allows candidate paths that are symlinks.
	FollowSymlinks bool
	Logger         zerolog.Logger
}

// DefaultConfig returns a sequential, memory-mapping configuration.
func DefaultConfig() Config {
	return Config{
		Workers:     constants.DefaultWorkers,
		MaxFileSize: constants.DefaultMaxFileSize,
		Access:      AccessMmap,
		Logger:      zerolog.Nop(),
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max file size must be positive, got %d", c.MaxFileSize)
	}
	switch c.Access {
	case AccessMmap, AccessRead:
	default:
		return fmt.Errorf("unknown access mode %q (want %s or %s)", c.Access, AccessMmap, AccessRead)
	}
	return nil
}
