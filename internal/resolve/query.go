// Package resolve decides whether a parsed binary satisfies a symbol query.
package resolve

import (
	"errors"
	"fmt"
	"strings"
)

// Kind selects which part of a binary a query inspects.
type Kind int

const (
	KindImport Kind = iota + 1
	KindExport
	KindLibrary
)

var (
	// ErrInvalidKind is returned by ParseKind for an unrecognized kind.
	ErrInvalidKind = errors.New("invalid query kind")
	// ErrEmptyName is returned by NewQuery when the name is empty.
	ErrEmptyName = errors.New("query name must not be empty")
)

func (k Kind) String() string {
	switch k {
	case KindImport:
		return "import"
	case KindExport:
		return "export"
	case KindLibrary:
		return "library"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind accepts the long names and the single letter forms i, e and l.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "import", "i":
		return KindImport, nil
	case "export", "e":
		return KindExport, nil
	case "library", "lib", "l":
		return KindLibrary, nil
	}
	return 0, fmt.Errorf("%w: %q (want import, export or library)", ErrInvalidKind, s)
}

// Query is an immutable symbol or library lookup.
type Query struct {
	kind Kind
	name string
	// demangled is the comparison form of name, computed once.
	demangled string
}

// NewQuery validates kind and name.
func NewQuery(kind Kind, name string) (Query, error) {
	switch kind {
	case KindImport, KindExport, KindLibrary:
	default:
		return Query{}, fmt.Errorf("%w: %d", ErrInvalidKind, int(kind))
	}
	if name == "" {
		return Query{}, ErrEmptyName
	}
	return Query{kind: kind, name: name, demangled: Demangle(name)}, nil
}

func (q Query) Kind() Kind   { return q.kind }
func (q Query) Name() string { return q.name }

func (q Query) String() string {
	return fmt.Sprintf("%s %q", q.kind, q.name)
}

// matchesName compares a discovered symbol name against the query.
func (q Query) matchesName(sym string) bool {
	return Demangle(sym) == q.demangled
}

// matchesLibrary reports whether the query name is a substring of lib.
func (q Query) matchesLibrary(lib string) bool {
	return strings.Contains(lib, q.name)
}
