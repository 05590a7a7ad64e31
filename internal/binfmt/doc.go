// Package binfmt classifies executable containers and extracts the symbol data
// needed to answer import, export and library queries.
//
// A candidate is probed once, in a fixed order: ELF, PE, thin Mach-O, fat
// Mach-O. The first recognized magic decides the interpretation; a parse
// failure after that point is final and the file is never retried as a
// different format.
//
// The result is a Container, one of *ELF, *PE, *MachO or *Fat. Containers hold
// no state beyond the file they were parsed from and are meant to be discarded
// once the match decision for that file has been made.
//
// # Errors
//
// Every error returned by this package matches one of ErrUnsupportedFormat,
// ErrMalformedFatArchive, ErrIO or ErrTruncatedOrCorrupt with errors.Is.
// Panics raised by the standard library decoders on hostile input are
// recovered and reported as ErrTruncatedOrCorrupt.
package binfmt
