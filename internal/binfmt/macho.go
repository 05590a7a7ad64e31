package binfmt

import (
	"bytes"
	"debug/macho"
	"encoding/binary"
	"io"
)

// MachOImport is an undefined external symbol and the dylib expected to
// provide it. Dylib is empty for flat-namespace and self references.
type MachOImport struct {
	Name  string
	Dylib string
}

// MachO is the import/export view of a single-architecture Mach-O image.
type MachO struct {
	Cpu  macho.Cpu
	Type macho.Type

	// Dylibs lists the dependent libraries in load command order, which is
	// the order two-level library ordinals refer to.
	Dylibs  []string
	Imports []MachOImport
	Exports []string
}

func (*MachO) Kind() Format { return FormatMachO }
func (*MachO) container()   {}

// Load commands not named by debug/macho.
const (
	lcLoadWeakDylib   macho.LoadCmd = 0x80000018
	lcReexportDylib   macho.LoadCmd = 0x8000001f
	lcLazyLoadDylib   macho.LoadCmd = 0x20
	lcLoadUpwardDylib macho.LoadCmd = 0x80000023
	lcDyldInfo        macho.LoadCmd = 0x22
	lcDyldInfoOnly    macho.LoadCmd = 0x80000022
	lcDyldExportsTrie macho.LoadCmd = 0x80000033
)

// nlist type bits.
const (
	nStab = 0xe0
	nType = 0x0e
	nExt  = 0x01
	nUndf = 0x00
)

// Special two-level library ordinals.
const (
	selfLibraryOrdinal   = 0x00
	executableOrdinal    = 0xfe
	dynamicLookupOrdinal = 0xff
)

// ParseMachO parses a thin Mach-O image of size bytes from r.
func ParseMachO(r io.ReaderAt, size int64) (out *MachO, err error) {
	defer recoverDecoder(FormatMachO, &err)

	f, err := macho.NewFile(r)
	if err != nil {
		return nil, decodeError(FormatMachO, err)
	}

	out = &MachO{Cpu: f.Cpu, Type: f.Type}
	bo := f.ByteOrder

	var trieOff, trieSize uint32
	for _, l := range f.Loads {
		raw := l.Raw()
		if len(raw) < 8 {
			continue
		}
		switch cmd := macho.LoadCmd(bo.Uint32(raw)); cmd {
		case macho.LoadCmdDylib, lcLoadWeakDylib, lcReexportDylib, lcLazyLoadDylib, lcLoadUpwardDylib:
			// A damaged name keeps its slot so later ordinals stay aligned.
			out.Dylibs = append(out.Dylibs, dylibName(raw, bo))
		case lcDyldInfo, lcDyldInfoOnly:
			if len(raw) >= 48 {
				trieOff, trieSize = bo.Uint32(raw[40:]), bo.Uint32(raw[44:])
			}
		case lcDyldExportsTrie:
			if len(raw) >= 16 {
				trieOff, trieSize = bo.Uint32(raw[8:]), bo.Uint32(raw[12:])
			}
		}
	}

	seen := make(map[string]struct{})
	addExport := func(name string) {
		if _, dup := seen[name]; dup || name == "" {
			return
		}
		seen[name] = struct{}{}
		out.Exports = append(out.Exports, name)
	}

	if trieSize > 0 {
		names, err := readExportTrie(r, size, trieOff, trieSize)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			addExport(name)
		}
	}

	if f.Symtab != nil {
		twoLevel := f.Flags&macho.FlagTwoLevel != 0
		for _, s := range f.Symtab.Syms {
			if s.Type&nStab != 0 || s.Type&nExt == 0 {
				continue
			}
			if s.Type&nType != nUndf {
				addExport(s.Name)
				continue
			}
			// Undefined with a value is a common symbol, not an import.
			if s.Value != 0 {
				continue
			}
			imp := MachOImport{Name: s.Name}
			if twoLevel {
				imp.Dylib = out.dylibForOrdinal(uint8(s.Desc >> 8))
			}
			out.Imports = append(out.Imports, imp)
		}
	}

	return out, nil
}

func (m *MachO) dylibForOrdinal(ord uint8) string {
	switch ord {
	case selfLibraryOrdinal, executableOrdinal, dynamicLookupOrdinal:
		return ""
	}
	if int(ord) > len(m.Dylibs) {
		return ""
	}
	return m.Dylibs[ord-1]
}

// dylibName reads the path of a dylib_command (name offset at byte 8).
func dylibName(raw []byte, bo binary.ByteOrder) string {
	if len(raw) < 12 {
		return ""
	}
	off := bo.Uint32(raw[8:])
	if int64(off) >= int64(len(raw)) {
		return ""
	}
	rest := raw[off:]
	if end := bytes.IndexByte(rest, 0); end >= 0 {
		rest = rest[:end]
	}
	return string(rest)
}

// readExportTrie collects every terminal name in the dyld export trie. Each
// node is a ULEB128 terminal size, the terminal payload, a child count and
// that many (NUL terminated edge label, ULEB128 child offset) pairs.
func readExportTrie(r io.ReaderAt, size int64, off, n uint32) ([]string, error) {
	if int64(off)+int64(n) > size {
		return nil, corrupt(FormatMachO, int64(off), "export trie of %d bytes runs past end of image", n)
	}
	buf := make([]byte, n)
	if _, err := r.ReadAt(buf, int64(off)); err != nil {
		return nil, decodeError(FormatMachO, err)
	}

	type frame struct {
		node   uint64
		prefix string
	}
	var names []string
	visited := make(map[uint64]bool)
	stack := []frame{{node: 0}}

	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[fr.node] {
			return nil, corrupt(FormatMachO, int64(off)+int64(fr.node), "export trie node revisited")
		}
		visited[fr.node] = true

		p := fr.node
		termSize, w := binary.Uvarint(buf[p:])
		if w <= 0 {
			return nil, corrupt(FormatMachO, int64(off)+int64(p), "bad terminal size")
		}
		p += uint64(w)
		if termSize > uint64(len(buf)) {
			return nil, corrupt(FormatMachO, int64(off)+int64(p), "terminal size %d exceeds trie", termSize)
		}
		if termSize > 0 {
			names = append(names, fr.prefix)
		}
		p += termSize
		if p >= uint64(len(buf)) {
			return nil, corrupt(FormatMachO, int64(off)+int64(p), "export trie node truncated")
		}
		count := int(buf[p])
		p++

		children := make([]frame, 0, count)
		for c := 0; c < count; c++ {
			if p >= uint64(len(buf)) {
				return nil, corrupt(FormatMachO, int64(off)+int64(p), "export trie edge truncated")
			}
			end := bytes.IndexByte(buf[p:], 0)
			if end < 0 {
				return nil, corrupt(FormatMachO, int64(off)+int64(p), "unterminated export trie edge")
			}
			label := string(buf[p : p+uint64(end)])
			p += uint64(end) + 1
			if p >= uint64(len(buf)) {
				return nil, corrupt(FormatMachO, int64(off)+int64(p), "export trie edge truncated")
			}
			child, w := binary.Uvarint(buf[p:])
			if w <= 0 || child >= uint64(len(buf)) {
				return nil, corrupt(FormatMachO, int64(off)+int64(p), "bad export trie child offset")
			}
			p += uint64(w)
			children = append(children, frame{node: child, prefix: fr.prefix + label})
		}
		// Push in reverse so children are visited in edge order.
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return names, nil
}
