package binfmt

import (
	"bytes"
	"debug/elf"
)

const (
	maxDynamicEntries = 1 << 16
	maxDynamicStrtab  = 64 << 20
	maxDynamicSymbols = 1 << 22
)

// dynamicTags holds the PT_DYNAMIC entries needed to find the dynamic
// symbol table without section headers. Addresses are virtual.
type dynamicTags struct {
	needed  []uint64
	strtab  uint64
	strsz   uint64
	symtab  uint64
	syment  uint64
	hash    uint64
	gnuHash uint64
}

// readDynamicSegment recovers the dynamic symbols, their string table and
// DT_NEEDED through PT_DYNAMIC. It serves objects whose section header table
// was stripped. An object without PT_DYNAMIC has no dynamic symbols.
func readDynamicSegment(f *elf.File) ([]ELFSymbol, []byte, []string, error) {
	var dyn *elf.Prog
	for _, p := range f.Progs {
		if p.Type == elf.PT_DYNAMIC {
			dyn = p
			break
		}
	}
	if dyn == nil {
		return nil, nil, nil, nil
	}

	tags, err := decodeDynamic(f, dyn)
	if err != nil {
		return nil, nil, nil, err
	}
	if tags.strtab == 0 {
		return nil, nil, nil, corrupt(FormatELF, int64(dyn.Off), "dynamic segment has no DT_STRTAB")
	}
	if tags.strsz > maxDynamicStrtab {
		return nil, nil, nil, corrupt(FormatELF, int64(dyn.Off), "DT_STRSZ %d too large", tags.strsz)
	}
	strtab, err := readVaddr(f, tags.strtab, tags.strsz)
	if err != nil {
		return nil, nil, nil, err
	}

	var needed []string
	for _, off := range tags.needed {
		if name, ok := cstring(strtab, off); ok {
			needed = append(needed, name)
		}
	}

	if tags.symtab == 0 {
		return nil, strtab, needed, nil
	}
	entSize := symEntSize(f)
	if tags.syment != 0 && tags.syment != uint64(entSize) {
		return nil, nil, nil, corrupt(FormatELF, int64(dyn.Off), "DT_SYMENT %d, want %d", tags.syment, entSize)
	}
	count, err := dynsymCount(f, tags, uint64(entSize))
	if err != nil {
		return nil, nil, nil, err
	}
	if count > maxDynamicSymbols {
		return nil, nil, nil, corrupt(FormatELF, int64(dyn.Off), "dynamic symbol count %d too large", count)
	}
	data, err := readVaddr(f, tags.symtab, count*uint64(entSize))
	if err != nil {
		return nil, nil, nil, err
	}
	return decodeSyms(f, data, entSize), strtab, needed, nil
}

func decodeDynamic(f *elf.File, dyn *elf.Prog) (dynamicTags, error) {
	entSize := uint64(16)
	if f.Class == elf.ELFCLASS32 {
		entSize = 8
	}
	size := dyn.Filesz
	if size/entSize > maxDynamicEntries {
		return dynamicTags{}, corrupt(FormatELF, int64(dyn.Off), "dynamic segment of %d bytes too large", size)
	}
	data := make([]byte, size)
	if _, err := dyn.ReadAt(data, 0); err != nil && size > 0 {
		return dynamicTags{}, corrupt(FormatELF, int64(dyn.Off), "dynamic segment is not readable: %v", err)
	}

	bo := f.ByteOrder
	var t dynamicTags
	for off := uint64(0); off+entSize <= size; off += entSize {
		var tag elf.DynTag
		var val uint64
		if entSize == 8 {
			tag = elf.DynTag(int32(bo.Uint32(data[off:])))
			val = uint64(bo.Uint32(data[off+4:]))
		} else {
			tag = elf.DynTag(int64(bo.Uint64(data[off:])))
			val = bo.Uint64(data[off+8:])
		}
		switch tag {
		case elf.DT_NULL:
			return t, nil
		case elf.DT_NEEDED:
			t.needed = append(t.needed, val)
		case elf.DT_STRTAB:
			t.strtab = val
		case elf.DT_STRSZ:
			t.strsz = val
		case elf.DT_SYMTAB:
			t.symtab = val
		case elf.DT_SYMENT:
			t.syment = val
		case elf.DT_HASH:
			t.hash = val
		case elf.DT_GNU_HASH:
			t.gnuHash = val
		}
	}
	return t, nil
}

// dynsymCount sizes the dynamic symbol table, null entry included. DT_HASH
// records it directly; DT_GNU_HASH needs its last chain walked. Without
// either, the table is assumed to end where the string table starts.
func dynsymCount(f *elf.File, t dynamicTags, entSize uint64) (uint64, error) {
	switch {
	case t.hash != 0:
		nchain, err := readWord(f, t.hash+4)
		return uint64(nchain), err
	case t.gnuHash != 0:
		return gnuHashCount(f, t.gnuHash)
	case t.strtab > t.symtab:
		return (t.strtab - t.symtab) / entSize, nil
	}
	return 0, nil
}

func gnuHashCount(f *elf.File, addr uint64) (uint64, error) {
	hdr, err := readVaddr(f, addr, 16)
	if err != nil {
		return 0, err
	}
	bo := f.ByteOrder
	nbuckets := uint64(bo.Uint32(hdr[0:]))
	symoffset := uint64(bo.Uint32(hdr[4:]))
	bloomSize := uint64(bo.Uint32(hdr[8:]))
	if nbuckets > maxDynamicSymbols || bloomSize > maxDynamicSymbols {
		return 0, corrupt(FormatELF, 0, "GNU hash table claims %d buckets and %d bloom words", nbuckets, bloomSize)
	}
	wordSize := uint64(8)
	if f.Class == elf.ELFCLASS32 {
		wordSize = 4
	}

	bucketsAddr := addr + 16 + bloomSize*wordSize
	buckets, err := readVaddr(f, bucketsAddr, nbuckets*4)
	if err != nil {
		return 0, err
	}
	last := uint64(0)
	for i := uint64(0); i < nbuckets; i++ {
		last = max(last, uint64(bo.Uint32(buckets[i*4:])))
	}
	if last < symoffset {
		return symoffset, nil
	}

	chainsAddr := bucketsAddr + nbuckets*4
	for idx := last; idx-symoffset < maxDynamicSymbols; idx++ {
		h, err := readWord(f, chainsAddr+(idx-symoffset)*4)
		if err != nil {
			return 0, err
		}
		if h&1 != 0 {
			return idx + 1, nil
		}
	}
	return 0, corrupt(FormatELF, 0, "GNU hash chain does not terminate")
}

func readWord(f *elf.File, addr uint64) (uint32, error) {
	b, err := readVaddr(f, addr, 4)
	if err != nil {
		return 0, err
	}
	return f.ByteOrder.Uint32(b), nil
}

// readVaddr reads n bytes at virtual address addr from the PT_LOAD segment
// whose file image contains them.
func readVaddr(f *elf.File, addr, n uint64) ([]byte, error) {
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD || addr < p.Vaddr {
			continue
		}
		off := addr - p.Vaddr
		if off > p.Filesz || n > p.Filesz-off {
			continue
		}
		buf := make([]byte, n)
		if n == 0 {
			return buf, nil
		}
		if _, err := p.ReadAt(buf, int64(off)); err != nil {
			return nil, corrupt(FormatELF, int64(p.Off+off), "segment data is not readable: %v", err)
		}
		return buf, nil
	}
	return nil, corrupt(FormatELF, 0, "address %#x (%d bytes) is not mapped by a loadable segment", addr, n)
}

func cstring(b []byte, off uint64) (string, bool) {
	if off >= uint64(len(b)) {
		return "", false
	}
	end := bytes.IndexByte(b[off:], 0)
	if end < 0 {
		return "", false
	}
	return string(b[off : off+uint64(end)]), true
}
