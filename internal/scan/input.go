package scan

import (
	"bytes"
	"io"

	"golang.org/x/exp/mmap"

	"github.com/coral-mesh/ief/internal/safe"
)

// input is one candidate file held in memory for a single check.
type input interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

type opener func(path string) (input, error)

func (c Config) opener() opener {
	opts := &safe.Options{MaxSize: c.MaxFileSize, AllowSymlinks: c.FollowSymlinks}
	if c.Access == AccessRead {
		return func(path string) (input, error) { return openRead(path, opts) }
	}
	return func(path string) (input, error) { return openMmap(path, opts) }
}

type mapped struct {
	*mmap.ReaderAt
}

func (m mapped) Size() int64 { return int64(m.Len()) }

func openMmap(path string, opts *safe.Options) (input, error) {
	if _, err := safe.Stat(path, opts); err != nil {
		return nil, err
	}
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	return mapped{r}, nil
}

type buffered struct {
	*bytes.Reader
}

func (buffered) Close() error { return nil }

func openRead(path string, opts *safe.Options) (input, error) {
	data, err := safe.ReadFile(path, opts)
	if err != nil {
		return nil, err
	}
	return buffered{bytes.NewReader(data)}, nil
}
