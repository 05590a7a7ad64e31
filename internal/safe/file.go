package safe

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// DefaultMaxFileSize is the default ceiling for whole-file reads (512MB).
const DefaultMaxFileSize = 512 << 20

var (
	// ErrSymlink is returned for a symlink when Options.AllowSymlinks is unset.
	ErrSymlink = errors.New("symlink not allowed")
	// ErrNotRegular is returned for directories, devices, sockets and pipes.
	ErrNotRegular = errors.New("not a regular file")
	// ErrTooLarge is returned for files above Options.MaxSize.
	ErrTooLarge = errors.New("file too large")
)

// Options configures Stat and ReadFile.
type Options struct {
	// MaxSize is the maximum allowed file size in bytes. Zero means DefaultMaxFileSize.
	MaxSize int64
	// AllowSymlinks follows symlinked paths. Default is false.
	AllowSymlinks bool
}

func (o *Options) maxSize() int64 {
	if o == nil || o.MaxSize == 0 {
		return DefaultMaxFileSize
	}
	return o.MaxSize
}

// Stat validates path without opening it.
// It rejects symlinks by default, rejects anything that is not a regular
// file, and enforces the size ceiling.
func Stat(path string, opts *Options) (os.FileInfo, error) {
	if opts == nil {
		opts = &Options{}
	}
	cleanPath := filepath.Clean(path)

	// Check file info without following symlinks.
	info, err := os.Lstat(cleanPath)
	if err != nil {
		return nil, err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		if !opts.AllowSymlinks {
			return nil, fmt.Errorf("%q: %w", path, ErrSymlink)
		}
		info, err = os.Stat(cleanPath)
		if err != nil {
			return nil, err
		}
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%q: %w", path, ErrNotRegular)
	}

	if max := opts.maxSize(); info.Size() > max {
		return nil, fmt.Errorf("%q: %w: %d bytes exceeds %d", path, ErrTooLarge, info.Size(), max)
	}
	return info, nil
}

// ReadFile reads a whole file after validating it with Stat.
func ReadFile(path string, opts *Options) ([]byte, error) {
	if _, err := Stat(path, opts); err != nil {
		return nil, err
	}
	// #nosec G304 - the path was validated above.
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	// The file may have grown between Stat and ReadFile.
	if max := opts.maxSize(); int64(len(data)) > max {
		return nil, fmt.Errorf("%q: %w", path, ErrTooLarge)
	}
	return data, nil
}

// Close closes gracefully a Closer interface, handling and logging the error.
func Close(c io.Closer, logger zerolog.Logger, msg string) {
	if err := c.Close(); err != nil {
		logger.Error().Err(err).Msg(msg)
	}
}
