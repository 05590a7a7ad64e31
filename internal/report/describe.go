package report

import (
	"bytes"
	"fmt"

	"github.com/zeebo/xxh3"

	"github.com/coral-mesh/ief/internal/binfmt"
	"github.com/coral-mesh/ief/internal/safe"
)

// Row describes one matching file.
type Row struct {
	Path   string `header:"PATH" json:"path"`
	Format string `header:"FORMAT" json:"format"`
	Size   int64  `header:"SIZE" json:"size"`
	// Digest is the hex XXH3-64 of the file contents.
	Digest string `header:"XXH3" json:"xxh3"`
}

// Describe reads each path and reports its container format, size and
// content digest. Files that can no longer be read get format "unreadable".
func Describe(paths []string, opts *safe.Options) []Row {
	rows := make([]Row, 0, len(paths))
	for _, p := range paths {
		rows = append(rows, describe(p, opts))
	}
	return rows
}

func describe(path string, opts *safe.Options) Row {
	data, err := safe.ReadFile(path, opts)
	if err != nil {
		return Row{Path: path, Format: "unreadable"}
	}
	format, err := binfmt.Sniff(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		format = binfmt.FormatUnknown
	}
	return Row{
		Path:   path,
		Format: format.String(),
		Size:   int64(len(data)),
		Digest: Digest(data),
	}
}

// Digest returns the XXH3-64 hash of data as 16 hex digits.
func Digest(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}
