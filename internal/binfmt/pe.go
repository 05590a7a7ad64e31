package binfmt

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"io"
)

// PEImport is one entry of an import lookup table. Name is empty and
// Ordinal set for imports by ordinal.
type PEImport struct {
	Name    string
	Ordinal uint16
	DLL     string
}

// PEExport is one exported name, or an address table slot that no name
// points at. Name is empty for exports by ordinal only, which never satisfy
// a name query. Aliases share an Ordinal.
type PEExport struct {
	Name      string
	Ordinal   uint32
	Forwarder string
}

// PE is the import/export view of a Portable Executable.
type PE struct {
	Machine uint16
	Is64    bool
	Imports []PEImport
	Exports []PEExport
}

func (*PE) Kind() Format { return FormatPE }
func (*PE) container()   {}

const (
	importDescriptorSize = 20
	exportDirectorySize  = 40

	// Ceilings protecting against tables that claim absurd sizes.
	maxImportDescriptors = 1 << 14
	maxThunksPerDLL      = 1 << 16
	maxExports           = 1 << 20
)

func parsePE(r io.ReaderAt) (out *PE, err error) {
	defer recoverDecoder(FormatPE, &err)

	f, err := pe.NewFile(r)
	if err != nil {
		return nil, decodeError(FormatPE, err)
	}

	img := newPEImage(f)
	out = &PE{Machine: f.Machine, Is64: img.is64}

	if dir, ok := img.directory(pe.IMAGE_DIRECTORY_ENTRY_IMPORT); ok {
		if out.Imports, err = img.imports(dir); err != nil {
			return nil, err
		}
	}
	if dir, ok := img.directory(pe.IMAGE_DIRECTORY_ENTRY_EXPORT); ok {
		if out.Exports, err = img.exports(dir); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// peImage resolves relative virtual addresses against section contents.
type peImage struct {
	file *pe.File
	is64 bool
	dirs []pe.DataDirectory
	data map[*pe.Section][]byte
}

func newPEImage(f *pe.File) *peImage {
	img := &peImage{file: f, data: make(map[*pe.Section][]byte)}
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		n := min(int(oh.NumberOfRvaAndSizes), len(oh.DataDirectory))
		img.dirs = oh.DataDirectory[:n]
	case *pe.OptionalHeader64:
		img.is64 = true
		n := min(int(oh.NumberOfRvaAndSizes), len(oh.DataDirectory))
		img.dirs = oh.DataDirectory[:n]
	}
	return img
}

func (p *peImage) directory(idx int) (pe.DataDirectory, bool) {
	if idx >= len(p.dirs) {
		return pe.DataDirectory{}, false
	}
	d := p.dirs[idx]
	return d, d.VirtualAddress != 0 && d.Size != 0
}

// sectionData returns the raw data of the section containing rva and the
// offset of rva within it.
func (p *peImage) sectionData(rva uint32) ([]byte, uint32, bool) {
	for _, s := range p.file.Sections {
		span := max(s.VirtualSize, s.Size)
		if rva < s.VirtualAddress || rva-s.VirtualAddress >= span {
			continue
		}
		data, ok := p.data[s]
		if !ok {
			// An unreadable section is cached as empty.
			data, _ = s.Data()
			p.data[s] = data
		}
		return data, rva - s.VirtualAddress, true
	}
	return nil, 0, false
}

// bytesAt returns n bytes starting at rva, or false if they are not backed
// by raw section data.
func (p *peImage) bytesAt(rva uint32, n int) ([]byte, bool) {
	data, off, ok := p.sectionData(rva)
	if !ok || int64(off)+int64(n) > int64(len(data)) {
		return nil, false
	}
	return data[off : int(off)+n], true
}

func (p *peImage) stringAt(rva uint32) (string, bool) {
	data, off, ok := p.sectionData(rva)
	if !ok || int64(off) >= int64(len(data)) {
		return "", false
	}
	rest := data[off:]
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return "", false
	}
	return string(rest[:end]), true
}

func (p *peImage) uint16At(rva uint32) (uint16, bool) {
	b, ok := p.bytesAt(rva, 2)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b), true
}

func (p *peImage) uint32At(rva uint32) (uint32, bool) {
	b, ok := p.bytesAt(rva, 4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

func (p *peImage) uint64At(rva uint32) (uint64, bool) {
	b, ok := p.bytesAt(rva, 8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}

// imports walks the import directory. A descriptor that cannot be read is
// a structural error; an unreadable DLL or function name only drops that
// entry.
func (p *peImage) imports(dir pe.DataDirectory) ([]PEImport, error) {
	var out []PEImport
	for i := 0; ; i++ {
		if i >= maxImportDescriptors {
			return nil, corrupt(FormatPE, int64(dir.VirtualAddress), "import directory exceeds %d descriptors", maxImportDescriptors)
		}
		rva := dir.VirtualAddress + uint32(i*importDescriptorSize)
		desc, ok := p.bytesAt(rva, importDescriptorSize)
		if !ok {
			return nil, corrupt(FormatPE, int64(rva), "import descriptor %d is not readable", i)
		}
		lookup := binary.LittleEndian.Uint32(desc[0:])
		nameRVA := binary.LittleEndian.Uint32(desc[12:])
		first := binary.LittleEndian.Uint32(desc[16:])
		if lookup == 0 && nameRVA == 0 && first == 0 {
			break
		}

		dll, ok := p.stringAt(nameRVA)
		if !ok {
			continue
		}
		// Some linkers leave the lookup table empty and only fill the IAT.
		if lookup == 0 {
			lookup = first
		}
		out = append(out, p.thunks(lookup, dll)...)
	}
	return out, nil
}

func (p *peImage) thunks(rva uint32, dll string) []PEImport {
	var out []PEImport
	width := uint32(4)
	ordinalFlag := uint64(1) << 31
	if p.is64 {
		width = 8
		ordinalFlag = 1 << 63
	}

	for j := uint32(0); j < maxThunksPerDLL; j++ {
		var entry uint64
		var ok bool
		if p.is64 {
			entry, ok = p.uint64At(rva + j*width)
		} else {
			var v uint32
			v, ok = p.uint32At(rva + j*width)
			entry = uint64(v)
		}
		if !ok || entry == 0 {
			break
		}
		if entry&ordinalFlag != 0 {
			out = append(out, PEImport{Ordinal: uint16(entry), DLL: dll})
			continue
		}
		// Skip the two byte hint in front of the name.
		name, ok := p.stringAt(uint32(entry&0x7fffffff) + 2)
		if !ok {
			continue
		}
		out = append(out, PEImport{Name: name, DLL: dll})
	}
	return out
}

// exports walks the export directory. Every name table entry yields one
// export, so aliases sharing an ordinal all appear. Address table slots no
// name points at follow as ordinal-only exports.
func (p *peImage) exports(dir pe.DataDirectory) ([]PEExport, error) {
	hdr, ok := p.bytesAt(dir.VirtualAddress, exportDirectorySize)
	if !ok {
		return nil, corrupt(FormatPE, int64(dir.VirtualAddress), "export directory is not readable")
	}
	le := binary.LittleEndian
	base := le.Uint32(hdr[16:])
	nfuncs := le.Uint32(hdr[20:])
	nnames := le.Uint32(hdr[24:])
	funcsRVA := le.Uint32(hdr[28:])
	namesRVA := le.Uint32(hdr[32:])
	ordsRVA := le.Uint32(hdr[36:])

	if nfuncs > maxExports || nnames > maxExports {
		return nil, corrupt(FormatPE, int64(dir.VirtualAddress), "export directory claims %d functions and %d names", nfuncs, nnames)
	}
	// Names can only refer to address table slots.
	if nfuncs == 0 {
		return nil, nil
	}
	table, ok := p.bytesAt(funcsRVA, int(nfuncs)*4)
	if !ok {
		return nil, corrupt(FormatPE, int64(funcsRVA), "export address table is not readable")
	}

	slots := make([]PEExport, nfuncs)
	for i := range slots {
		slots[i].Ordinal = base + uint32(i)
		target := le.Uint32(table[i*4:])
		// A target inside the export directory is a forwarder string.
		if target >= dir.VirtualAddress && target-dir.VirtualAddress < dir.Size {
			slots[i].Forwarder, _ = p.stringAt(target)
		}
	}

	named := make([]bool, nfuncs)
	out := make([]PEExport, 0, nfuncs)
	for i := uint32(0); i < nnames; i++ {
		nameRVA, ok := p.uint32At(namesRVA + i*4)
		if !ok {
			continue
		}
		idx, ok := p.uint16At(ordsRVA + i*2)
		if !ok || int(idx) >= len(slots) {
			continue
		}
		name, ok := p.stringAt(nameRVA)
		if !ok {
			continue
		}
		exp := slots[idx]
		exp.Name = name
		out = append(out, exp)
		named[idx] = true
	}
	for i, exp := range slots {
		if !named[i] {
			out = append(out, exp)
		}
	}
	return out, nil
}
