package binfmt

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrUnsupportedFormat means no known magic was found.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrMalformedFatArchive means a fat Mach-O architecture table is invalid.
	ErrMalformedFatArchive = errors.New("malformed fat archive")

	// ErrIO means the file could not be opened, mapped or read in full.
	ErrIO = errors.New("i/o error")

	// ErrTruncatedOrCorrupt means the header was recognized but the payload
	// violates a structural invariant.
	ErrTruncatedOrCorrupt = errors.New("truncated or corrupt")
)

// FormatError describes a structural problem found at a specific offset.
type FormatError struct {
	Format Format
	Offset int64
	Msg    string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s (offset %#x)", e.Format, e.Msg, e.Offset)
}

// Unwrap lets errors.Is classify a FormatError as ErrTruncatedOrCorrupt.
func (e *FormatError) Unwrap() error {
	return ErrTruncatedOrCorrupt
}

func corrupt(f Format, off int64, format string, args ...any) error {
	return &FormatError{Format: f, Offset: off, Msg: fmt.Sprintf(format, args...)}
}

// decodeError classifies an error returned by a debug/* decoder. Short reads
// are I/O failures, anything else is structural.
func decodeError(f Format, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%s: %w: %w", f, ErrIO, err)
	}
	return fmt.Errorf("%s: %w: %w", f, ErrTruncatedOrCorrupt, err)
}

// recoverDecoder converts a decoder panic into ErrTruncatedOrCorrupt. It must
// be deferred directly by the parse function owning err.
func recoverDecoder(f Format, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s: %w: decoder panic: %v", f, ErrTruncatedOrCorrupt, r)
	}
}
