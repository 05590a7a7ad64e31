package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/ief/internal/binfmt"
	"github.com/coral-mesh/ief/internal/resolve"
	"github.com/coral-mesh/ief/internal/testutil"
	"github.com/coral-mesh/ief/internal/testutil/fixtures"
)

func newScanner(t *testing.T, mutate func(*Config)) *Scanner {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Logger = testutil.NewTestLogger(t)
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func query(t *testing.T, kind resolve.Kind, name string) resolve.Query {
	t.Helper()
	q, err := resolve.NewQuery(kind, name)
	require.NoError(t, err)
	return q
}

// sampleTree holds one ELF exporting foo and one PE importing bar from
// user32.dll.
func sampleTree(t *testing.T) (elfPath, pePath string) {
	t.Helper()
	dir := t.TempDir()
	elfPath = testutil.WriteFile(t, dir, "lib/libfoo.so", fixtures.ELF(fixtures.ELFSpec{
		Symbols: []fixtures.ELFSymbol{fixtures.Export("foo"), fixtures.Import("malloc")},
		Needed:  []string{"libc.so.6"},
	}))
	pePath = testutil.WriteFile(t, dir, "win/app.exe", fixtures.PE(fixtures.PESpec{
		DLLOrder: []string{"user32.dll"},
		Imports:  map[string][]fixtures.PEImport{"user32.dll": {{Name: "bar"}}},
	}))
	return elfPath, pePath
}

func TestScanEndToEnd(t *testing.T) {
	elfPath, pePath := sampleTree(t)
	paths := slices.Values([]string{elfPath, pePath})

	for _, access := range []Access{AccessMmap, AccessRead} {
		t.Run(string(access), func(t *testing.T) {
			s := newScanner(t, func(c *Config) { c.Access = access })
			ctx := context.Background()

			assert.Equal(t, []string{elfPath}, slices.Collect(s.Scan(ctx, paths, query(t, resolve.KindExport, "foo"))))
			assert.Equal(t, []string{pePath}, slices.Collect(s.Scan(ctx, paths, query(t, resolve.KindImport, "bar"))))
			assert.Equal(t, []string{pePath}, slices.Collect(s.Scan(ctx, paths, query(t, resolve.KindLibrary, "user32"))))
			assert.Empty(t, slices.Collect(s.Scan(ctx, paths, query(t, resolve.KindExport, "bar"))))
		})
	}
}

func TestScanSkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	good := fixtures.ELF(fixtures.ELFSpec{Symbols: []fixtures.ELFSymbol{fixtures.Export("foo")}})

	paths := []string{
		testutil.WriteFile(t, dir, "empty", nil),
		testutil.WriteFile(t, dir, "a.so", good),
		testutil.WriteFile(t, dir, "truncated.so", good[:20]),
		testutil.WriteFile(t, dir, "bad.fat", fixtures.FatWithCount(0xffff, fixtures.MachO(fixtures.MachOSpec{}))),
		filepath.Join(dir, "missing"),
		testutil.WriteFile(t, dir, "b.so", good),
	}

	s := newScanner(t, nil)
	got := slices.Collect(s.Scan(context.Background(), slices.Values(paths), query(t, resolve.KindExport, "foo")))
	assert.Equal(t, []string{paths[1], paths[5]}, got)

	stats := s.Stats()
	assert.Equal(t, int64(6), stats.Scanned)
	assert.Equal(t, int64(2), stats.Matched)
	assert.Equal(t, int64(4), stats.Skipped)
}

func TestEvaluateClassifiesFailures(t *testing.T) {
	dir := t.TempDir()
	s := newScanner(t, func(c *Config) { c.MaxFileSize = 1024 })
	q := query(t, resolve.KindExport, "foo")

	tests := []struct {
		name string
		path string
		want error
	}{
		{"zero bytes", testutil.WriteFile(t, dir, "zero", nil), binfmt.ErrUnsupportedFormat},
		{"text", testutil.WriteFile(t, dir, "notes.txt", []byte("hello world")), binfmt.ErrUnsupportedFormat},
		{"truncated elf", testutil.WriteFile(t, dir, "short.so", fixtures.ELF(fixtures.ELFSpec{})[:20]), binfmt.ErrIO},
		{"bad fat count", testutil.WriteFile(t, dir, "bad.fat", fixtures.FatWithCount(0, fixtures.MachO(fixtures.MachOSpec{}))), binfmt.ErrMalformedFatArchive},
		{"too large", testutil.WriteFile(t, dir, "big.so", make([]byte, 2048)), binfmt.ErrIO},
		{"missing", filepath.Join(dir, "missing"), binfmt.ErrIO},
		{"directory", dir, binfmt.ErrIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := s.Evaluate(tt.path, q)
			assert.False(t, ok)
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, s.Check(tt.path, q))
		})
	}
}

func TestCheckLogsSkippedFiles(t *testing.T) {
	logger, buf := testutil.NewCaptureLogger()
	s := newScanner(t, func(c *Config) { c.Logger = logger })

	path := testutil.WriteFile(t, t.TempDir(), "junk", []byte("not a binary"))
	assert.False(t, s.Check(path, query(t, resolve.KindImport, "x")))
	assert.Contains(t, buf.String(), `"level":"debug"`)
	assert.Contains(t, buf.String(), path)
}

func TestScanSymlinkPolicy(t *testing.T) {
	elfPath, _ := sampleTree(t)
	link := filepath.Join(t.TempDir(), "link.so")
	require.NoError(t, os.Symlink(elfPath, link))
	q := query(t, resolve.KindExport, "foo")

	assert.False(t, newScanner(t, nil).Check(link, q))
	assert.True(t, newScanner(t, func(c *Config) { c.FollowSymlinks = true }).Check(link, q))
}

func TestScanParallelPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	var paths, want []string
	for i := range 40 {
		name := filepath.Join("d", string(rune('a'+i%26))+string(rune('0'+i/26))+".bin")
		var data []byte
		if i%3 == 0 {
			data = fixtures.ELF(fixtures.ELFSpec{Symbols: []fixtures.ELFSymbol{fixtures.Export("foo")}})
		} else {
			data = fixtures.PE(fixtures.PESpec{Exports: []fixtures.PEExport{{Name: "other"}}})
		}
		p := testutil.WriteFile(t, dir, name, data)
		paths = append(paths, p)
		if i%3 == 0 {
			want = append(want, p)
		}
	}

	s := newScanner(t, func(c *Config) { c.Workers = 8 })
	got := slices.Collect(s.Scan(context.Background(), slices.Values(paths), query(t, resolve.KindExport, "foo")))
	assert.Equal(t, want, got)
	assert.Equal(t, int64(len(paths)), s.Stats().Scanned)
}

func TestScanStopsPulling(t *testing.T) {
	elfPath, _ := sampleTree(t)
	q := query(t, resolve.KindExport, "foo")

	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("%d workers", workers), func(t *testing.T) {
			pulled := 0
			paths := func(yield func(string) bool) {
				for range 1000 {
					pulled++
					if !yield(elfPath) {
						return
					}
				}
			}

			s := newScanner(t, func(c *Config) { c.Workers = workers })
			for range s.Scan(context.Background(), paths, q) {
				break
			}
			assert.Less(t, pulled, 1000)
		})
	}
}

func TestScanHonorsCancellation(t *testing.T) {
	elfPath, _ := sampleTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newScanner(t, nil)
	got := slices.Collect(s.Scan(ctx, slices.Values([]string{elfPath, elfPath}), query(t, resolve.KindExport, "foo")))
	assert.Empty(t, got)
	assert.Zero(t, s.Stats().Scanned)
}

func TestScanParallelCancelledBeforeStart(t *testing.T) {
	elfPath, _ := sampleTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pulled := 0
	paths := func(yield func(string) bool) {
		for range 100 {
			pulled++
			if !yield(elfPath) {
				return
			}
		}
	}

	s := newScanner(t, func(c *Config) { c.Workers = 4 })
	got := slices.Collect(s.Scan(ctx, paths, query(t, resolve.KindExport, "foo")))
	assert.Empty(t, got)
	assert.LessOrEqual(t, pulled, 1, "producer stops at the first path once cancelled")
	assert.Zero(t, s.Stats().Scanned)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"zero size", func(c *Config) { c.MaxFileSize = 0 }},
		{"bad access", func(c *Config) { c.Access = "nfs" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}
