package binfmt

import (
	"debug/macho"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/coral-mesh/ief/internal/safe"
)

// FatArch is one entry of a universal binary's architecture table.
type FatArch struct {
	Cpu    macho.Cpu
	SubCpu uint32
	Offset uint64
	Size   uint64
	Align  uint32
}

// SliceLoader parses the image of one architecture.
type SliceLoader func(arch FatArch, r io.ReaderAt) (*MachO, error)

// Fat is a universal Mach-O binary. The architecture table is validated when
// the container is built; slices are only parsed on demand, in table order,
// by Slice.
type Fat struct {
	Arches []FatArch

	r    io.ReaderAt
	load SliceLoader
}

func (*Fat) Kind() Format { return FormatFat }
func (*Fat) container()   {}

// NewFat builds a Fat over r. A nil load parses slices with ParseMachO.
func NewFat(r io.ReaderAt, arches []FatArch, load SliceLoader) *Fat {
	if load == nil {
		load = loadSlice
	}
	return &Fat{Arches: arches, r: r, load: load}
}

// Slice parses the image of architecture i.
func (f *Fat) Slice(i int) (*MachO, error) {
	if i < 0 || i >= len(f.Arches) {
		return nil, fmt.Errorf("%w: architecture %d out of range", ErrMalformedFatArchive, i)
	}
	arch := f.Arches[i]
	off, clampedOff := safe.Uint64ToInt64(arch.Offset)
	n, clampedSize := safe.Uint64ToInt64(arch.Size)
	if clampedOff || clampedSize {
		return nil, fmt.Errorf("%w: architecture %d does not fit in a file", ErrMalformedFatArchive, i)
	}
	return f.load(arch, io.NewSectionReader(f.r, off, n))
}

func loadSlice(arch FatArch, r io.ReaderAt) (*MachO, error) {
	return ParseMachO(r, int64(arch.Size))
}

const (
	fatHeaderSize  = 8
	fatArchSize32  = 20
	fatArchSize64  = 32
	maxFatArches   = 64
	minMachOHeader = 28
)

// parseFat validates the architecture table of a universal binary. Any
// entry pointing outside the file, or a count that cannot be right, rejects
// the whole file.
func parseFat(r io.ReaderAt, size int64) (*Fat, error) {
	var hdr [fatHeaderSize]byte
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		return nil, fmt.Errorf("%w: read header: %w", ErrMalformedFatArchive, err)
	}
	magic := binary.BigEndian.Uint32(hdr[0:])
	count := binary.BigEndian.Uint32(hdr[4:])
	if count == 0 || count > maxFatArches {
		return nil, fmt.Errorf("%w: architecture count %d", ErrMalformedFatArchive, count)
	}

	entSize := fatArchSize32
	if magic == fatMagic64 {
		entSize = fatArchSize64
	}
	tableEnd := int64(fatHeaderSize) + int64(count)*int64(entSize)
	if tableEnd > size {
		return nil, fmt.Errorf("%w: table of %d entries runs past end of file", ErrMalformedFatArchive, count)
	}
	table := make([]byte, tableEnd-fatHeaderSize)
	if _, err := r.ReadAt(table, fatHeaderSize); err != nil {
		return nil, fmt.Errorf("%w: read table: %w", ErrMalformedFatArchive, err)
	}

	be := binary.BigEndian
	arches := make([]FatArch, count)
	for i := range arches {
		e := table[i*entSize:]
		a := FatArch{
			Cpu:    macho.Cpu(be.Uint32(e[0:])),
			SubCpu: be.Uint32(e[4:]),
		}
		if magic == fatMagic64 {
			a.Offset, a.Size, a.Align = be.Uint64(e[8:]), be.Uint64(e[16:]), be.Uint32(e[24:])
		} else {
			a.Offset, a.Size, a.Align = uint64(be.Uint32(e[8:])), uint64(be.Uint32(e[12:])), be.Uint32(e[16:])
		}

		switch {
		case a.Size < minMachOHeader:
			return nil, fmt.Errorf("%w: architecture %d has size %d", ErrMalformedFatArchive, i, a.Size)
		case a.Offset < uint64(tableEnd):
			return nil, fmt.Errorf("%w: architecture %d overlaps the table", ErrMalformedFatArchive, i)
		case a.Offset > uint64(size) || a.Size > uint64(size)-a.Offset:
			return nil, fmt.Errorf("%w: architecture %d runs past end of file", ErrMalformedFatArchive, i)
		}
		arches[i] = a
	}

	return NewFat(r, arches, nil), nil
}
