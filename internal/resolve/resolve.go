package resolve

import (
	"fmt"

	"github.com/coral-mesh/ief/internal/binfmt"
)

// Matches reports whether c satisfies q. Errors found while resolving are
// reported as no match; use Resolve to see them.
func Matches(c binfmt.Container, q Query) bool {
	ok, _ := Resolve(c, q)
	return ok
}

// Resolve reports whether c satisfies q. The only error source is a fat
// slice that fails to parse before a matching slice was found.
func Resolve(c binfmt.Container, q Query) (bool, error) {
	switch c := c.(type) {
	case *binfmt.ELF:
		return matchELF(c, q), nil
	case *binfmt.PE:
		return matchPE(c, q), nil
	case *binfmt.MachO:
		return matchMachO(c, q), nil
	case *binfmt.Fat:
		return matchFat(c, q)
	default:
		return false, nil
	}
}

func matchELF(e *binfmt.ELF, q Query) bool {
	switch q.kind {
	case KindImport, KindExport:
		wantUndef := q.kind == KindImport
		for _, s := range e.Symbols {
			if s.Undefined() != wantUndef {
				continue
			}
			if name, ok := e.Name(s); ok && q.matchesName(name) {
				return true
			}
		}
	case KindLibrary:
		for _, lib := range e.Needed {
			if q.matchesLibrary(lib) {
				return true
			}
		}
	}
	return false
}

func matchPE(p *binfmt.PE, q Query) bool {
	switch q.kind {
	case KindImport:
		for _, imp := range p.Imports {
			if imp.Name != "" && q.matchesName(imp.Name) {
				return true
			}
		}
	case KindExport:
		for _, exp := range p.Exports {
			if exp.Name != "" && q.matchesName(exp.Name) {
				return true
			}
		}
	case KindLibrary:
		for _, imp := range p.Imports {
			if q.matchesLibrary(imp.DLL) {
				return true
			}
		}
	}
	return false
}

func matchMachO(m *binfmt.MachO, q Query) bool {
	switch q.kind {
	case KindImport:
		for _, imp := range m.Imports {
			if q.matchesName(imp.Name) {
				return true
			}
		}
	case KindExport:
		for _, name := range m.Exports {
			if q.matchesName(name) {
				return true
			}
		}
	case KindLibrary:
		for _, lib := range m.Dylibs {
			if q.matchesLibrary(lib) {
				return true
			}
		}
	}
	return false
}

// matchFat tries each architecture in table order and stops at the first
// match. Later slices are never parsed.
func matchFat(f *binfmt.Fat, q Query) (bool, error) {
	for i := range f.Arches {
		m, err := f.Slice(i)
		if err != nil {
			return false, fmt.Errorf("%w: architecture %d (%s): %w",
				binfmt.ErrMalformedFatArchive, i, f.Arches[i].Cpu, err)
		}
		if matchMachO(m, q) {
			return true, nil
		}
	}
	return false, nil
}
