package binfmt

import (
	"bytes"
	"debug/elf"
	"io"
)

// ELFSymbol is one dynamic symbol table entry, kept in its on-disk form. The
// name is resolved lazily against the table's string section.
type ELFSymbol struct {
	NameOff uint32
	Shndx   elf.SectionIndex
}

// Undefined reports whether the symbol is resolved externally (SHN_UNDEF).
// Undefined symbols are imports, every other section index is an export.
func (s ELFSymbol) Undefined() bool {
	return s.Shndx == elf.SHN_UNDEF
}

// ELF is the dynamic linking view of an ELF object.
type ELF struct {
	Class   elf.Class
	Machine elf.Machine

	// Symbols is .dynsym without its reserved null entry. An object with no
	// dynamic symbol table has an empty slice.
	Symbols []ELFSymbol
	// Strtab is the string section linked from .dynsym, or DT_STRTAB when
	// the object has no section headers.
	Strtab []byte
	// Needed lists the DT_NEEDED entries in table order.
	Needed []string
}

func (*ELF) Kind() Format { return FormatELF }
func (*ELF) container()   {}

// Name resolves the name of s. It returns false when the offset falls outside
// the string table or the string is not NUL terminated.
func (e *ELF) Name(s ELFSymbol) (string, bool) {
	if int64(s.NameOff) >= int64(len(e.Strtab)) {
		return "", false
	}
	rest := e.Strtab[s.NameOff:]
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return "", false
	}
	return string(rest[:end]), true
}

func parseELF(r io.ReaderAt) (out *ELF, err error) {
	defer recoverDecoder(FormatELF, &err)

	f, err := elf.NewFile(r)
	if err != nil {
		return nil, decodeError(FormatELF, err)
	}

	out = &ELF{Class: f.Class, Machine: f.Machine}

	if len(f.Sections) == 0 {
		out.Symbols, out.Strtab, out.Needed, err = readDynamicSegment(f)
		if err != nil {
			return nil, err
		}
		return out, nil
	}

	if dynsym := f.SectionByType(elf.SHT_DYNSYM); dynsym != nil {
		out.Symbols, out.Strtab, err = readDynsym(f, dynsym)
		if err != nil {
			return nil, err
		}
	}

	out.Needed, err = f.ImportedLibraries()
	if err != nil {
		return nil, decodeError(FormatELF, err)
	}

	return out, nil
}

// readDynsym decodes the raw entries of a SHT_DYNSYM section. Only the name
// offset and section index are retained.
func readDynsym(f *elf.File, sec *elf.Section) ([]ELFSymbol, []byte, error) {
	entSize := symEntSize(f)

	data, err := sec.Data()
	if err != nil {
		return nil, nil, decodeError(FormatELF, err)
	}
	if len(data)%entSize != 0 {
		return nil, nil, corrupt(FormatELF, int64(sec.Offset),
			"dynamic symbol table size %d is not a multiple of %d", len(data), entSize)
	}

	if sec.Link == 0 || int(sec.Link) >= len(f.Sections) {
		return nil, nil, corrupt(FormatELF, int64(sec.Offset), "dynamic symbol table link %d out of range", sec.Link)
	}
	strsec := f.Sections[sec.Link]
	if strsec.Type != elf.SHT_STRTAB {
		return nil, nil, corrupt(FormatELF, int64(strsec.Offset), "linked section %q is not a string table", strsec.Name)
	}
	strtab, err := strsec.Data()
	if err != nil {
		return nil, nil, decodeError(FormatELF, err)
	}

	return decodeSyms(f, data, entSize), strtab, nil
}

func symEntSize(f *elf.File) int {
	if f.Class == elf.ELFCLASS32 {
		return elf.Sym32Size
	}
	return elf.Sym64Size
}

// decodeSyms keeps the name offset and section index of each raw entry.
// Entry 0 is the reserved undefined symbol and is skipped.
func decodeSyms(f *elf.File, data []byte, entSize int) []ELFSymbol {
	nameAt, shndxAt := 0, 6
	if f.Class == elf.ELFCLASS32 {
		shndxAt = 14
	}
	bo := f.ByteOrder
	var syms []ELFSymbol
	for off := entSize; off+entSize <= len(data); off += entSize {
		syms = append(syms, ELFSymbol{
			NameOff: bo.Uint32(data[off+nameAt:]),
			Shndx:   elf.SectionIndex(bo.Uint16(data[off+shndxAt:])),
		})
	}
	return syms
}
