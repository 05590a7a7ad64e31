package fixtures

import (
	"bytes"
	"debug/macho"
	"encoding/binary"
)

// MachOImport is an undefined symbol bound to the dylib at Ordinal
// (1-based, as in two-level namespace binding).
type MachOImport struct {
	Name    string
	Ordinal uint8
}

// MachOSpec describes a 64-bit little-endian dylib.
type MachOSpec struct {
	Cpu     macho.Cpu
	Dylibs  []string
	Imports []MachOImport
	// Exports are emitted as defined external symbol table entries.
	Exports []string
	// TrieExports are emitted only through an LC_DYLD_EXPORTS_TRIE.
	TrieExports []string
	// Flat clears MH_TWOLEVEL so no import carries a dylib.
	Flat bool
}

const (
	machoHeaderSize   = 32
	lcDyldExportsTrie = 0x80000033
	mhDylib           = 0x6
	mhDyldLink        = 0x4
	mhTwoLevel        = 0x80
)

// MachO builds the image described by spec.
func MachO(spec MachOSpec) []byte {
	le := binary.LittleEndian
	cpu := spec.Cpu
	if cpu == 0 {
		cpu = macho.CpuAmd64
	}

	var cmds bytes.Buffer
	ncmds := 0
	for _, d := range spec.Dylibs {
		size := 24 + len(d) + 1
		size = (size + 7) &^ 7
		cmd := make([]byte, size)
		le.PutUint32(cmd[0:], uint32(macho.LoadCmdDylib))
		le.PutUint32(cmd[4:], uint32(size))
		le.PutUint32(cmd[8:], 24)
		copy(cmd[24:], d)
		cmds.Write(cmd)
		ncmds++
	}

	symtabCmd := cmds.Len()
	cmds.Write(make([]byte, 24))
	ncmds++

	trieCmd := -1
	if len(spec.TrieExports) > 0 {
		trieCmd = cmds.Len()
		cmds.Write(make([]byte, 16))
		ncmds++
	}

	strs := newStrtab()
	var syms bytes.Buffer
	nsyms := 0
	for _, name := range spec.Exports {
		_ = binary.Write(&syms, le, macho.Nlist64{
			Name: strs.add(name), Type: 0x0f, Sect: 1, Value: 0x1000 + uint64(16*nsyms),
		})
		nsyms++
	}
	for _, imp := range spec.Imports {
		_ = binary.Write(&syms, le, macho.Nlist64{
			Name: strs.add(imp.Name), Type: 0x01, Desc: uint16(imp.Ordinal) << 8,
		})
		nsyms++
	}

	var body bytes.Buffer
	body.Write(make([]byte, machoHeaderSize))
	body.Write(cmds.Bytes())
	align(&body, 8)
	symOff := body.Len()
	body.Write(syms.Bytes())
	strOff := body.Len()
	body.Write(strs.buf.Bytes())
	align(&body, 8)
	trieOff := body.Len()
	trie := exportTrie(spec.TrieExports)
	body.Write(trie)
	align(&body, 8)

	out := body.Bytes()
	flags := uint32(mhDyldLink | mhTwoLevel)
	if spec.Flat {
		flags = mhDyldLink
	}
	le.PutUint32(out[0:], macho.Magic64)
	le.PutUint32(out[4:], uint32(cpu))
	le.PutUint32(out[8:], 3)
	le.PutUint32(out[12:], mhDylib)
	le.PutUint32(out[16:], uint32(ncmds))
	le.PutUint32(out[20:], uint32(cmds.Len()))
	le.PutUint32(out[24:], flags)

	st := out[machoHeaderSize+symtabCmd:]
	le.PutUint32(st[0:], uint32(macho.LoadCmdSymtab))
	le.PutUint32(st[4:], 24)
	le.PutUint32(st[8:], uint32(symOff))
	le.PutUint32(st[12:], uint32(nsyms))
	le.PutUint32(st[16:], uint32(strOff))
	le.PutUint32(st[20:], uint32(strs.buf.Len()))

	if trieCmd >= 0 {
		tc := out[machoHeaderSize+trieCmd:]
		le.PutUint32(tc[0:], lcDyldExportsTrie)
		le.PutUint32(tc[4:], 16)
		le.PutUint32(tc[8:], uint32(trieOff))
		le.PutUint32(tc[12:], uint32(len(trie)))
	}
	return out
}

// exportTrie encodes names as direct children of the root node. Child
// offsets use a two byte ULEB128 encoding so the root size is known up
// front.
func exportTrie(names []string) []byte {
	if len(names) == 0 {
		return nil
	}
	rootSize := 2
	for _, n := range names {
		rootSize += len(n) + 1 + 2
	}

	var b bytes.Buffer
	b.WriteByte(0)
	b.WriteByte(byte(len(names)))
	for i, n := range names {
		child := rootSize + 4*i
		b.WriteString(n)
		b.WriteByte(0)
		b.WriteByte(0x80 | byte(child&0x7f))
		b.WriteByte(byte(child >> 7))
	}
	for range names {
		// terminal size 2: flags 0, address 0; no children
		b.Write([]byte{0x02, 0x00, 0x00, 0x00})
	}
	return b.Bytes()
}

var fatCpus = []macho.Cpu{macho.CpuAmd64, macho.CpuArm64, macho.Cpu386, macho.CpuArm}

// Fat wraps thin images into a universal binary.
func Fat(slices ...[]byte) []byte {
	return FatWithCount(uint32(len(slices)), slices...)
}

// FatWithCount is Fat with an arbitrary architecture count in the header,
// for building damaged tables.
func FatWithCount(count uint32, slices ...[]byte) []byte {
	be := binary.BigEndian
	const alignment = 16
	tableEnd := 8 + 20*len(slices)
	off := (tableEnd + alignment - 1) &^ (alignment - 1)

	header := make([]byte, off)
	be.PutUint32(header[0:], macho.MagicFat)
	be.PutUint32(header[4:], count)

	var data bytes.Buffer
	for i, s := range slices {
		e := header[8+20*i:]
		be.PutUint32(e[0:], uint32(fatCpus[i%len(fatCpus)]))
		be.PutUint32(e[4:], 3)
		be.PutUint32(e[8:], uint32(off+data.Len()))
		be.PutUint32(e[12:], uint32(len(s)))
		be.PutUint32(e[16:], 4)
		data.Write(s)
		align(&data, alignment)
	}
	return append(header, data.Bytes()...)
}
