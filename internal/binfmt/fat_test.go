package binfmt

import (
	"debug/macho"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/ief/internal/testutil/fixtures"
)

func TestParseFat(t *testing.T) {
	amd := fixtures.MachO(fixtures.MachOSpec{Exports: []string{"_x86_only"}})
	arm := fixtures.MachO(fixtures.MachOSpec{Cpu: macho.CpuArm64, Exports: []string{"_arm_only"}})

	c, err := ClassifyBytes(fixtures.Fat(amd, arm))
	require.NoError(t, err)
	f, ok := c.(*Fat)
	require.True(t, ok, "got %T", c)
	require.Len(t, f.Arches, 2)
	assert.Equal(t, macho.CpuAmd64, f.Arches[0].Cpu)
	assert.Equal(t, macho.CpuArm64, f.Arches[1].Cpu)
	assert.Equal(t, uint64(len(amd)), f.Arches[0].Size)

	s0, err := f.Slice(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"_x86_only"}, s0.Exports)

	s1, err := f.Slice(1)
	require.NoError(t, err)
	assert.Equal(t, macho.CpuArm64, s1.Cpu)
	assert.Equal(t, []string{"_arm_only"}, s1.Exports)

	_, err = f.Slice(2)
	assert.ErrorIs(t, err, ErrMalformedFatArchive)
}

func TestParseFatMalformed(t *testing.T) {
	slice := fixtures.MachO(fixtures.MachOSpec{})

	tests := []struct {
		name string
		data []byte
	}{
		{name: "zero count", data: fixtures.FatWithCount(0, slice)},
		{name: "absurd count", data: fixtures.FatWithCount(0xffff, slice)},
		{name: "table past end", data: fixtures.FatWithCount(40, slice)},
		{name: "header only", data: fixtures.Fat(slice)[:6]},
		{
			name: "slice past end",
			data: func() []byte {
				b := fixtures.Fat(slice)
				return b[:len(b)-64]
			}(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ClassifyBytes(tt.data)
			assert.ErrorIs(t, err, ErrMalformedFatArchive)
		})
	}
}

func TestFatSliceLoaderIsLazy(t *testing.T) {
	data := fixtures.Fat(
		fixtures.MachO(fixtures.MachOSpec{}),
		fixtures.MachO(fixtures.MachOSpec{}),
	)
	c, err := ClassifyBytes(data)
	require.NoError(t, err)
	parsed := c.(*Fat)

	var loads []int
	f := NewFat(readerAt(data), parsed.Arches, func(arch FatArch, r io.ReaderAt) (*MachO, error) {
		loads = append(loads, int(arch.Offset))
		return nil, errors.New("not today")
	})
	assert.Empty(t, loads)

	_, err = f.Slice(1)
	require.Error(t, err)
	assert.Equal(t, []int{int(parsed.Arches[1].Offset)}, loads)
}
