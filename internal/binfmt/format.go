package binfmt

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Format identifies a container kind.
type Format int

const (
	FormatUnknown Format = iota
	FormatELF
	FormatPE
	FormatMachO
	FormatFat
)

func (f Format) String() string {
	switch f {
	case FormatELF:
		return "elf"
	case FormatPE:
		return "pe"
	case FormatMachO:
		return "macho"
	case FormatFat:
		return "macho-fat"
	default:
		return "unknown"
	}
}

// Container is the parsed form of one candidate file. The set of
// implementations is closed: *ELF, *PE, *MachO and *Fat.
type Container interface {
	Kind() Format
	container()
}

var (
	elfMagic = []byte{0x7f, 'E', 'L', 'F'}
	peMagic  = []byte{'P', 'E', 0, 0}
)

const (
	machoMagic32 = 0xfeedface
	machoMagic64 = 0xfeedfacf
	fatMagic32   = 0xcafebabe
	fatMagic64   = 0xcafebabf

	// dosLfanewOffset is where the DOS header stores the PE header offset.
	dosLfanewOffset = 0x3c
)

// Sniff reports the format implied by the magic bytes of r without parsing
// anything beyond the headers needed to tell formats apart.
func Sniff(r io.ReaderAt, size int64) (Format, error) {
	if size < 4 {
		return FormatUnknown, nil
	}
	var magic [4]byte
	if _, err := r.ReadAt(magic[:], 0); err != nil {
		return FormatUnknown, err
	}

	switch {
	case bytes.Equal(magic[:], elfMagic):
		return FormatELF, nil
	case magic[0] == 'M' && magic[1] == 'Z':
		return sniffPE(r, size)
	}

	be := binary.BigEndian.Uint32(magic[:])
	le := binary.LittleEndian.Uint32(magic[:])
	switch {
	case be == machoMagic32, be == machoMagic64, le == machoMagic32, le == machoMagic64:
		return FormatMachO, nil
	case be == fatMagic32, be == fatMagic64:
		return FormatFat, nil
	}
	return FormatUnknown, nil
}

// sniffPE follows e_lfanew to the PE signature. A bare DOS executable has no
// PE header and is not supported.
func sniffPE(r io.ReaderAt, size int64) (Format, error) {
	if size < dosLfanewOffset+4 {
		return FormatUnknown, nil
	}
	var lfanew [4]byte
	if _, err := r.ReadAt(lfanew[:], dosLfanewOffset); err != nil {
		return FormatUnknown, err
	}
	off := int64(binary.LittleEndian.Uint32(lfanew[:]))
	if off+4 > size {
		return FormatUnknown, nil
	}
	var sig [4]byte
	if _, err := r.ReadAt(sig[:], off); err != nil {
		return FormatUnknown, err
	}
	if !bytes.Equal(sig[:], peMagic) {
		return FormatUnknown, nil
	}
	return FormatPE, nil
}
