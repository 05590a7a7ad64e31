package report

import (
	"fmt"

	"github.com/coral-mesh/ief/internal/binfmt"
	"github.com/coral-mesh/ief/internal/resolve"
)

// Entry is one library, import or export of a binary.
type Entry struct {
	Arch string `header:"ARCH" json:"arch"`
	// Kind is "library", "import" or "export".
	Kind      string `header:"KIND" json:"kind"`
	Name      string `header:"NAME" json:"name"`
	Demangled string `header:"DEMANGLED" json:"demangled,omitempty"`
	// Library is the providing DLL or dylib of an import, when known.
	Library string `header:"LIBRARY" json:"library,omitempty"`
}

// Inspect lists the dynamic linking entries of c. Fat binaries are listed
// per architecture in table order; a slice that fails to parse fails the
// whole listing.
func Inspect(c binfmt.Container) ([]Entry, error) {
	switch c := c.(type) {
	case *binfmt.ELF:
		return inspectELF(c), nil
	case *binfmt.PE:
		return inspectPE(c), nil
	case *binfmt.MachO:
		return inspectMachO(c), nil
	case *binfmt.Fat:
		var out []Entry
		for i := range c.Arches {
			m, err := c.Slice(i)
			if err != nil {
				return nil, err
			}
			out = append(out, inspectMachO(m)...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %T", binfmt.ErrUnsupportedFormat, c)
}

func symbol(arch, kind, name, lib string) Entry {
	e := Entry{Arch: arch, Kind: kind, Name: name, Library: lib}
	if d := resolve.Demangle(name); d != name {
		e.Demangled = d
	}
	return e
}

func libraries(arch string, libs []string) []Entry {
	out := make([]Entry, 0, len(libs))
	for _, l := range libs {
		out = append(out, Entry{Arch: arch, Kind: resolve.KindLibrary.String(), Name: l})
	}
	return out
}

func inspectELF(e *binfmt.ELF) []Entry {
	arch := e.Machine.String()
	out := libraries(arch, e.Libraries())
	for _, s := range e.Symbols {
		name, ok := e.Name(s)
		if !ok || name == "" {
			continue
		}
		kind := resolve.KindExport
		if s.Undefined() {
			kind = resolve.KindImport
		}
		out = append(out, symbol(arch, kind.String(), name, ""))
	}
	return out
}

func inspectPE(p *binfmt.PE) []Entry {
	arch := fmt.Sprintf("0x%04x", p.Machine)
	out := libraries(arch, p.Libraries())
	for _, imp := range p.Imports {
		name := imp.Name
		if name == "" {
			name = fmt.Sprintf("#%d", imp.Ordinal)
		}
		out = append(out, symbol(arch, resolve.KindImport.String(), name, imp.DLL))
	}
	for _, exp := range p.Exports {
		name := exp.Name
		if name == "" {
			name = fmt.Sprintf("#%d", exp.Ordinal)
		}
		out = append(out, symbol(arch, resolve.KindExport.String(), name, exp.Forwarder))
	}
	return out
}

func inspectMachO(m *binfmt.MachO) []Entry {
	arch := m.Cpu.String()
	out := libraries(arch, m.Libraries())
	for _, imp := range m.Imports {
		out = append(out, symbol(arch, resolve.KindImport.String(), imp.Name, imp.Dylib))
	}
	for _, name := range m.Exports {
		out = append(out, symbol(arch, resolve.KindExport.String(), name, ""))
	}
	return out
}
