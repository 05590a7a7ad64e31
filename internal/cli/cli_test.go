package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/ief/internal/config"
	"github.com/coral-mesh/ief/internal/report"
	"github.com/coral-mesh/ief/internal/resolve"
	"github.com/coral-mesh/ief/internal/testutil"
	"github.com/coral-mesh/ief/internal/testutil/fixtures"
	"github.com/coral-mesh/ief/internal/walk"
)

// run executes the command tree with an isolated config directory.
func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("IEF_CONFIG", dir)
	t.Setenv("NO_COLOR", "1")
	return dir
}

type tree struct {
	root   string
	libfoo string
	app    string
	dylib  string
}

func sampleTree(t *testing.T) tree {
	t.Helper()
	root := t.TempDir()
	return tree{
		root: root,
		libfoo: testutil.WriteFile(t, root, "lib/libfoo.so", fixtures.ELF(fixtures.ELFSpec{
			Symbols: []fixtures.ELFSymbol{fixtures.Export("foo"), fixtures.Export("_ZN3foo3barEv"), fixtures.Import("malloc")},
			Needed:  []string{"libc.so.6"},
		})),
		app: testutil.WriteFile(t, root, "win/app.exe", fixtures.PE(fixtures.PESpec{
			DLLOrder: []string{"user32.dll"},
			Imports:  map[string][]fixtures.PEImport{"user32.dll": {{Name: "foo"}}},
		})),
		dylib: testutil.WriteFile(t, root, "mac/libbar.dylib", fixtures.MachO(fixtures.MachOSpec{
			Dylibs:  []string{"/usr/lib/libSystem.B.dylib"},
			Imports: []fixtures.MachOImport{{Name: "_malloc", Ordinal: 1}},
			Exports: []string{"_bar"},
		})),
	}
}

func TestSearchText(t *testing.T) {
	isolate(t)
	tr := sampleTree(t)
	testutil.WriteFile(t, tr.root, "README.md", []byte("# not a binary\n"))

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"export", []string{"-e", "foo"}, []string{tr.libfoo}},
		{"import", []string{"-i", "foo"}, []string{tr.app}},
		{"demangled export", []string{"-e", "foo::bar()"}, []string{tr.libfoo}},
		{"library substring", []string{"-l", "lib"}, []string{tr.libfoo, tr.dylib}},
		{"no match", []string{"-e", "missing"}, nil},
		{"parallel", []string{"-l", "l", "-j", "4"}, []string{tr.libfoo, tr.dylib, tr.app}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := run(t, append([]string{tr.root}, tt.args...)...)
			require.NoError(t, err)

			var want string
			for _, p := range tt.want {
				want += p + "\n"
			}
			assert.Equal(t, want, stdout)
		})
	}
}

func TestSearchBanner(t *testing.T) {
	isolate(t)
	tr := sampleTree(t)

	_, stderr, err := run(t, tr.root, "-e", "foo")
	require.NoError(t, err)
	assert.Contains(t, stderr, `searching for export "foo" in `+tr.root)

	_, stderr, err = run(t, tr.root, "-e", "foo", "-q")
	require.NoError(t, err)
	assert.NotContains(t, stderr, "searching for")
}

func TestSearchJSON(t *testing.T) {
	isolate(t)
	tr := sampleTree(t)

	stdout, _, err := run(t, tr.root, "-l", "lib", "-o", "json")
	require.NoError(t, err)

	var rows []report.Row
	require.NoError(t, json.Unmarshal([]byte(stdout), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, tr.libfoo, rows[0].Path)
	assert.Equal(t, "elf", rows[0].Format)
	assert.Equal(t, tr.dylib, rows[1].Path)
	assert.Equal(t, "macho", rows[1].Format)
	for _, r := range rows {
		assert.Len(t, r.Digest, 16)
		assert.Positive(t, r.Size)
	}
}

func TestSearchMarkdown(t *testing.T) {
	isolate(t)
	tr := sampleTree(t)

	stdout, _, err := run(t, tr.root, "-e", "foo", "-o", "markdown")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "# IEF Results\n"))
	assert.Contains(t, stdout, "with exported symbol `foo`")
	assert.Contains(t, stdout, "* "+tr.libfoo+"\n")
}

func TestSearchConfigFile(t *testing.T) {
	dir := isolate(t)
	tr := sampleTree(t)
	testutil.WriteFile(t, dir, "config.yaml", []byte("output:\n  format: csv\n"))

	stdout, _, err := run(t, tr.root, "-e", "foo")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "PATH,FORMAT,SIZE,XXH3", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], tr.libfoo+",elf,"))

	// Flags win over the file.
	stdout, _, err = run(t, tr.root, "-e", "foo", "-o", "text")
	require.NoError(t, err)
	assert.Equal(t, tr.libfoo+"\n", stdout)
}

func TestSearchHonorsIgnoreFiles(t *testing.T) {
	isolate(t)
	tr := sampleTree(t)
	testutil.WriteFile(t, tr.root, ".gitignore", []byte("lib/\n"))

	stdout, _, err := run(t, tr.root, "-e", "foo")
	require.NoError(t, err)
	assert.Empty(t, stdout)

	stdout, _, err = run(t, tr.root, "-e", "foo", "--no-ignore")
	require.NoError(t, err)
	assert.Equal(t, tr.libfoo+"\n", stdout)
}

func TestSearchErrors(t *testing.T) {
	isolate(t)
	tr := sampleTree(t)

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"missing root", []string{filepath.Join(tr.root, "nope"), "-e", "foo"}, walk.ErrInvalidRoot},
		{"empty name", []string{tr.root, "-e", ""}, resolve.ErrEmptyName},
		{"bad format", []string{tr.root, "-e", "foo", "-o", "yaml"}, config.ErrInvalidConfig},
		{"bad workers", []string{tr.root, "-e", "foo", "-j", "0"}, config.ErrInvalidConfig},
		{"bad access", []string{tr.root, "-e", "foo", "--access", "stream"}, config.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := run(t, tt.args...)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, stdout)
		})
	}

	t.Run("no kind", func(t *testing.T) {
		_, _, err := run(t, tr.root)
		require.Error(t, err)
	})
	t.Run("two kinds", func(t *testing.T) {
		_, _, err := run(t, tr.root, "-e", "foo", "-i", "bar")
		require.Error(t, err)
	})
}

func TestInspect(t *testing.T) {
	isolate(t)
	tr := sampleTree(t)

	stdout, _, err := run(t, "inspect", tr.libfoo, "-o", "json")
	require.NoError(t, err)

	var entries []report.Entry
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	assert.Contains(t, entries, report.Entry{Arch: "EM_X86_64", Kind: "library", Name: "libc.so.6"})
	assert.Contains(t, entries, report.Entry{Arch: "EM_X86_64", Kind: "import", Name: "malloc"})
	assert.Contains(t, entries, report.Entry{Arch: "EM_X86_64", Kind: "export", Name: "_ZN3foo3barEv", Demangled: "foo::bar()"})

	stdout, _, err = run(t, "inspect", tr.app, "--kind", "import", "-o", "csv")
	require.NoError(t, err)
	assert.Contains(t, stdout, "import,foo,,user32.dll")
	assert.NotContains(t, stdout, "library,")
}

func TestInspectErrors(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	text := testutil.WriteFile(t, dir, "notes.txt", []byte("plain text file"))

	_, _, err := run(t, "inspect", text)
	require.Error(t, err)

	_, _, err = run(t, "inspect", filepath.Join(dir, "missing"))
	require.Error(t, err)

	_, _, err = run(t, "inspect", text, "-o", "markdown")
	require.Error(t, err)
}

func TestInspectKind(t *testing.T) {
	isolate(t)
	tr := sampleTree(t)

	stdout, _, err := run(t, "inspect", tr.libfoo, "--kind", "imports")
	require.ErrorIs(t, err, resolve.ErrInvalidKind)
	assert.Empty(t, stdout)

	stdout, _, err = run(t, "inspect", tr.libfoo, "--kind", "l", "-o", "csv")
	require.NoError(t, err)
	assert.Equal(t, "ARCH,KIND,NAME,DEMANGLED,LIBRARY\nEM_X86_64,library,libc.so.6,,\n", stdout)
}

func TestConfigCmd(t *testing.T) {
	dir := isolate(t)

	stdout, _, err := run(t, "config", "--path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yaml")+"\n", stdout)

	t.Setenv("IEF_WORKERS", "3")
	stdout, _, err = run(t, "config")
	require.NoError(t, err)
	assert.Contains(t, stdout, "workers: 3")
	assert.Contains(t, stdout, "format: text")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("scan: ["), 0o600))
	_, _, err = run(t, "config")
	require.Error(t, err)
}

func TestVersionCmd(t *testing.T) {
	isolate(t)
	stdout, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "ief version dev")
}
