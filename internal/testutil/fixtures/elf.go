package fixtures

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// ELFSymbol is a dynamic symbol. Shndx 0 makes it undefined (an import).
type ELFSymbol struct {
	Name  string
	Shndx uint16
}

// ELFSpec describes a 64-bit little-endian shared object.
type ELFSpec struct {
	Symbols []ELFSymbol
	Needed  []string
	// BadNameOffset points the first symbol's name past the string table.
	BadNameOffset bool
	// NoDynsym omits the dynamic symbol table entirely.
	NoDynsym bool
	// NoSectionHeaders strips the section header table, leaving only the
	// program headers.
	NoSectionHeaders bool
	// GNUHash sizes the symbol table through DT_GNU_HASH instead of DT_HASH.
	GNUHash bool
}

// Export returns a defined symbol living in section 1.
func Export(name string) ELFSymbol { return ELFSymbol{Name: name, Shndx: 1} }

// Import returns an undefined symbol.
func Import(name string) ELFSymbol { return ELFSymbol{Name: name, Shndx: uint16(elf.SHN_UNDEF)} }

type strtab struct {
	buf    bytes.Buffer
	offset map[string]uint32
}

func newStrtab() *strtab {
	t := &strtab{offset: make(map[string]uint32)}
	t.buf.WriteByte(0)
	return t
}

func (t *strtab) add(s string) uint32 {
	if off, ok := t.offset[s]; ok {
		return off
	}
	off := uint32(t.buf.Len())
	t.buf.WriteString(s)
	t.buf.WriteByte(0)
	t.offset[s] = off
	return off
}

func align(b *bytes.Buffer, n int) {
	for b.Len()%n != 0 {
		b.WriteByte(0)
	}
}

// ELF builds the image described by spec. Section layout:
// null, .dynstr, .dynsym, .dynamic, .shstrtab. A PT_LOAD maps the whole
// file at address 0 and PT_DYNAMIC covers .dynamic.
func ELF(spec ELFSpec) []byte {
	le := binary.LittleEndian

	dynstr := newStrtab()
	symNames := make([]uint32, len(spec.Symbols))
	for i, s := range spec.Symbols {
		symNames[i] = dynstr.add(s.Name)
	}
	needed := make([]uint32, len(spec.Needed))
	for i, n := range spec.Needed {
		needed[i] = dynstr.add(n)
	}
	if spec.BadNameOffset && len(symNames) > 0 {
		symNames[0] = uint32(dynstr.buf.Len() + 100)
	}

	var dynsym bytes.Buffer
	_ = binary.Write(&dynsym, le, elf.Sym64{})
	for i, s := range spec.Symbols {
		_ = binary.Write(&dynsym, le, elf.Sym64{
			Name:  symNames[i],
			Info:  elf.ST_INFO(elf.STB_GLOBAL, elf.STT_FUNC),
			Shndx: s.Shndx,
		})
	}

	// DT_HASH with one empty bucket; only nchain is meaningful.
	nsyms := uint32(len(spec.Symbols) + 1)
	var hash bytes.Buffer
	if spec.GNUHash {
		// One bucket pointing at the first real symbol, one bloom word and a
		// chain whose last entry has the low bit set.
		first := uint32(0)
		if len(spec.Symbols) > 0 {
			first = 1
		}
		_ = binary.Write(&hash, le, []uint32{1, 1, 1, 6})
		_ = binary.Write(&hash, le, uint64(0))
		_ = binary.Write(&hash, le, first)
		for i := range spec.Symbols {
			v := uint32(0)
			if i == len(spec.Symbols)-1 {
				v = 1
			}
			_ = binary.Write(&hash, le, v)
		}
	} else {
		_ = binary.Write(&hash, le, []uint32{1, nsyms, 0})
		_ = binary.Write(&hash, le, make([]uint32, nsyms))
	}

	shstr := newStrtab()
	nameDynstr := shstr.add(".dynstr")
	nameDynsym := shstr.add(".dynsym")
	nameDynamic := shstr.add(".dynamic")
	nameShstrtab := shstr.add(".shstrtab")

	const (
		ehsize    = 64
		phentsize = 56
		phnum     = 2
	)
	var body bytes.Buffer
	body.Write(make([]byte, ehsize+phentsize*phnum))

	// Virtual addresses equal file offsets: one PT_LOAD maps the whole file.
	dynstrOff := body.Len()
	body.Write(dynstr.buf.Bytes())
	align(&body, 8)
	dynsymOff := body.Len()
	body.Write(dynsym.Bytes())
	hashOff := body.Len()
	body.Write(hash.Bytes())
	align(&body, 8)

	hashTag := elf.DT_HASH
	if spec.GNUHash {
		hashTag = elf.DT_GNU_HASH
	}
	var dynamic bytes.Buffer
	for _, off := range needed {
		_ = binary.Write(&dynamic, le, elf.Dyn64{Tag: int64(elf.DT_NEEDED), Val: uint64(off)})
	}
	if !spec.NoDynsym {
		for _, d := range []elf.Dyn64{
			{Tag: int64(hashTag), Val: uint64(hashOff)},
			{Tag: int64(elf.DT_SYMTAB), Val: uint64(dynsymOff)},
			{Tag: int64(elf.DT_SYMENT), Val: elf.Sym64Size},
		} {
			_ = binary.Write(&dynamic, le, d)
		}
	}
	_ = binary.Write(&dynamic, le, elf.Dyn64{Tag: int64(elf.DT_STRTAB), Val: uint64(dynstrOff)})
	_ = binary.Write(&dynamic, le, elf.Dyn64{Tag: int64(elf.DT_STRSZ), Val: uint64(dynstr.buf.Len())})
	_ = binary.Write(&dynamic, le, elf.Dyn64{Tag: int64(elf.DT_NULL)})

	dynamicOff := body.Len()
	body.Write(dynamic.Bytes())
	shstrOff := body.Len()
	body.Write(shstr.buf.Bytes())
	align(&body, 8)
	shoff := body.Len()

	sections := []elf.Section64{
		{},
		{
			Name: nameDynstr, Type: uint32(elf.SHT_STRTAB), Flags: uint64(elf.SHF_ALLOC),
			Off: uint64(dynstrOff), Size: uint64(dynstr.buf.Len()), Addralign: 1,
		},
		{
			Name: nameDynsym, Type: uint32(elf.SHT_DYNSYM), Flags: uint64(elf.SHF_ALLOC),
			Off: uint64(dynsymOff), Size: uint64(dynsym.Len()), Link: 1, Info: 1,
			Addralign: 8, Entsize: elf.Sym64Size,
		},
		{
			Name: nameDynamic, Type: uint32(elf.SHT_DYNAMIC), Flags: uint64(elf.SHF_ALLOC | elf.SHF_WRITE),
			Off: uint64(dynamicOff), Size: uint64(dynamic.Len()), Link: 1,
			Addralign: 8, Entsize: 16,
		},
		{
			Name: nameShstrtab, Type: uint32(elf.SHT_STRTAB),
			Off: uint64(shstrOff), Size: uint64(shstr.buf.Len()), Addralign: 1,
		},
	}
	if spec.NoDynsym {
		// Turn the symbol table into an inert progbits section.
		sections[2].Type = uint32(elf.SHT_PROGBITS)
		sections[2].Link = 0
	}
	if spec.NoSectionHeaders {
		sections = nil
		shoff = 0
	}
	for _, s := range sections {
		_ = binary.Write(&body, le, s)
	}

	shstrndx := uint16(0)
	if len(sections) > 0 {
		shstrndx = uint16(len(sections) - 1)
	}
	hdr := elf.Header64{
		Type:      uint16(elf.ET_DYN),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Phoff:     ehsize,
		Shoff:     uint64(shoff),
		Ehsize:    ehsize,
		Phentsize: phentsize,
		Phnum:     phnum,
		Shentsize: 64,
		Shnum:     uint16(len(sections)),
		Shstrndx:  shstrndx,
	}
	copy(hdr.Ident[:], "\x7fELF")
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	size := uint64(body.Len())
	progs := []elf.Prog64{
		{Type: uint32(elf.PT_LOAD), Flags: uint32(elf.PF_R), Filesz: size, Memsz: size, Align: 0x1000},
		{
			Type: uint32(elf.PT_DYNAMIC), Flags: uint32(elf.PF_R | elf.PF_W),
			Off: uint64(dynamicOff), Vaddr: uint64(dynamicOff), Paddr: uint64(dynamicOff),
			Filesz: uint64(dynamic.Len()), Memsz: uint64(dynamic.Len()), Align: 8,
		},
	}

	out := body.Bytes()
	var h bytes.Buffer
	_ = binary.Write(&h, le, hdr)
	_ = binary.Write(&h, le, progs)
	copy(out, h.Bytes())
	return out
}
