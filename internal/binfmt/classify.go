package binfmt

import (
	"bytes"
	"fmt"
	"io"
)

// Classify selects the container format of r and extracts its symbol data.
// size is the total number of readable bytes in r.
func Classify(r io.ReaderAt, size int64) (Container, error) {
	format, err := Sniff(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: read magic: %w", ErrIO, err)
	}

	switch format {
	case FormatELF:
		e, err := parseELF(r)
		if err != nil {
			return nil, err
		}
		return e, nil
	case FormatPE:
		p, err := parsePE(r)
		if err != nil {
			return nil, err
		}
		return p, nil
	case FormatMachO:
		m, err := ParseMachO(r, size)
		if err != nil {
			return nil, err
		}
		return m, nil
	case FormatFat:
		f, err := parseFat(r, size)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

// ClassifyBytes is Classify over an in-memory buffer.
func ClassifyBytes(b []byte) (Container, error) {
	return Classify(bytes.NewReader(b), int64(len(b)))
}
