package fixtures

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
)

// PEImport names one imported function, or an ordinal when Name is empty.
type PEImport struct {
	Name    string
	Ordinal uint16
}

// PEExport names one exported function; an empty Name exports by ordinal only.
// Aliases are further names bound to the same address table slot.
type PEExport struct {
	Name    string
	Aliases []string
}

// PESpec describes a PE32+ DLL with a single data section holding the
// import and export directories.
type PESpec struct {
	// Imports maps DLL names to their imported functions. DLLOrder fixes the
	// descriptor order; DLLs missing from it are not emitted.
	Imports  map[string][]PEImport
	DLLOrder []string
	Exports  []PEExport
	// DLLName is the module name recorded in the export directory.
	DLLName string
	// TruncateExportDir points the export directory at unmapped memory.
	TruncateExportDir bool
	// EmptyExportDir emits an export directory with no functions whose
	// address table RVA is unmapped.
	EmptyExportDir bool
}

const (
	peSignatureOffset = 0x40
	peSectionRVA      = 0x1000
	peFileAlignment   = 0x200
	peSectionAlign    = 0x1000
)

type peSection struct {
	buf bytes.Buffer
}

func (s *peSection) alloc(n int) int {
	off := s.buf.Len()
	s.buf.Write(make([]byte, n))
	return off
}

func (s *peSection) str(v string) int {
	for s.buf.Len()%2 != 0 {
		s.buf.WriteByte(0)
	}
	off := s.buf.Len()
	s.buf.WriteString(v)
	s.buf.WriteByte(0)
	return off
}

func (s *peSection) u16(off int, v uint16) { binary.LittleEndian.PutUint16(s.buf.Bytes()[off:], v) }
func (s *peSection) u32(off int, v uint32) { binary.LittleEndian.PutUint32(s.buf.Bytes()[off:], v) }
func (s *peSection) u64(off int, v uint64) { binary.LittleEndian.PutUint64(s.buf.Bytes()[off:], v) }

func rva(off int) uint32 { return uint32(peSectionRVA + off) }

// PE builds the image described by spec.
func PE(spec PESpec) []byte {
	var sec peSection
	var dirs [16]pe.DataDirectory

	if len(spec.DLLOrder) > 0 {
		descOff := sec.alloc(20 * (len(spec.DLLOrder) + 1))
		for i, dll := range spec.DLLOrder {
			funcs := spec.Imports[dll]
			ilt := sec.alloc(8 * (len(funcs) + 1))
			for j, fn := range funcs {
				if fn.Name == "" {
					sec.u64(ilt+8*j, 1<<63|uint64(fn.Ordinal))
					continue
				}
				hint := sec.str("\x00\x00" + fn.Name)
				sec.u64(ilt+8*j, uint64(rva(hint)))
			}
			name := sec.str(dll)
			d := descOff + 20*i
			sec.u32(d, rva(ilt))
			sec.u32(d+12, rva(name))
			sec.u32(d+16, rva(ilt))
		}
		dirs[pe.IMAGE_DIRECTORY_ENTRY_IMPORT] = pe.DataDirectory{
			VirtualAddress: rva(descOff),
			Size:           uint32(20 * (len(spec.DLLOrder) + 1)),
		}
	}

	if len(spec.Exports) > 0 || spec.EmptyExportDir {
		type binding struct {
			name string
			slot int
		}
		var named []binding
		for i, e := range spec.Exports {
			if e.Name != "" {
				named = append(named, binding{e.Name, i})
			}
			for _, a := range e.Aliases {
				named = append(named, binding{a, i})
			}
		}
		dir := sec.alloc(40)
		funcs := sec.alloc(4 * len(spec.Exports))
		names := sec.alloc(4 * len(named))
		ords := sec.alloc(2 * len(named))
		dllName := sec.str(spec.DLLName)
		for i := range spec.Exports {
			sec.u32(funcs+4*i, 0x2000+uint32(16*i))
		}
		for k, b := range named {
			n := sec.str(b.name)
			sec.u32(names+4*k, rva(n))
			sec.u16(ords+2*k, uint16(b.slot))
		}
		funcsRVA := rva(funcs)
		if spec.EmptyExportDir {
			funcsRVA = peSectionRVA + 0x8000
		}
		sec.u32(dir+12, rva(dllName))
		sec.u32(dir+16, 1)
		sec.u32(dir+20, uint32(len(spec.Exports)))
		sec.u32(dir+24, uint32(len(named)))
		sec.u32(dir+28, funcsRVA)
		sec.u32(dir+32, rva(names))
		sec.u32(dir+36, rva(ords))

		dirRVA := rva(dir)
		if spec.TruncateExportDir {
			dirRVA = peSectionRVA + 0x8000
		}
		dirs[pe.IMAGE_DIRECTORY_ENTRY_EXPORT] = pe.DataDirectory{
			VirtualAddress: dirRVA,
			Size:           uint32(sec.buf.Len() - dir),
		}
	}

	if sec.buf.Len() == 0 {
		sec.alloc(16)
	}
	virtualSize := sec.buf.Len()
	for sec.buf.Len()%peFileAlignment != 0 {
		sec.buf.WriteByte(0)
	}

	var out bytes.Buffer
	dos := make([]byte, peSignatureOffset)
	copy(dos, "MZ")
	binary.LittleEndian.PutUint32(dos[0x3c:], peSignatureOffset)
	out.Write(dos)
	out.WriteString("PE\x00\x00")

	le := binary.LittleEndian
	_ = binary.Write(&out, le, pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_AMD64,
		NumberOfSections:     1,
		SizeOfOptionalHeader: uint16(binary.Size(pe.OptionalHeader64{})),
		Characteristics:      pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_DLL,
	})
	_ = binary.Write(&out, le, pe.OptionalHeader64{
		Magic:               0x20b,
		ImageBase:           0x180000000,
		SectionAlignment:    peSectionAlign,
		FileAlignment:       peFileAlignment,
		SizeOfImage:         uint32(peSectionRVA + peSectionAlign),
		SizeOfHeaders:       peFileAlignment,
		Subsystem:           pe.IMAGE_SUBSYSTEM_WINDOWS_GUI,
		NumberOfRvaAndSizes: 16,
		DataDirectory:       dirs,
	})
	var name [8]uint8
	copy(name[:], ".rdata")
	_ = binary.Write(&out, le, pe.SectionHeader32{
		Name:             name,
		VirtualSize:      uint32(virtualSize),
		VirtualAddress:   peSectionRVA,
		SizeOfRawData:    uint32(sec.buf.Len()),
		PointerToRawData: peFileAlignment,
		Characteristics:  pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_READ,
	})
	for out.Len() < peFileAlignment {
		out.WriteByte(0)
	}
	out.Write(sec.buf.Bytes())
	return out.Bytes()
}
