package walk

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/ief/internal/testutil"
)

func tree(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		testutil.WriteFile(t, dir, f, []byte("x"))
	}
	return dir
}

func collect(t *testing.T, root string, opts Options) []string {
	t.Helper()
	seq, err := Walk(root, opts)
	require.NoError(t, err)
	var out []string
	for p := range seq {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestWalkOrderAndHidden(t *testing.T) {
	root := tree(t, "b/two", "a/one", "c", ".hidden/x", ".dotfile", ".git/config")

	assert.Equal(t, []string{"a/one", "b/two", "c"}, collect(t, root, DefaultOptions()))

	opts := DefaultOptions()
	opts.Hidden = true
	assert.Equal(t, []string{".dotfile", ".hidden/x", "a/one", "b/two", "c"}, collect(t, root, opts))
}

func TestWalkIgnoreFiles(t *testing.T) {
	root := tree(t,
		"keep.so", "drop.o", "build/out.so", "src/build/deep.so", "src/main.so",
		"src/gen/a.so", "src/gen/b.so", "docs/readme", "lib/important.o",
	)
	testutil.WriteFile(t, root, ".gitignore", []byte("# objects\n*.o\n!important.o\nbuild/\n/docs\n"))
	testutil.WriteFile(t, root, "src/.ignore", []byte("gen/a.so\n"))

	assert.Equal(t, []string{
		"keep.so",
		"lib/important.o",
		"src/gen/b.so",
		"src/main.so",
	}, collect(t, root, DefaultOptions()))

	opts := DefaultOptions()
	opts.UseIgnoreFiles = false
	assert.Len(t, collect(t, root, opts), 9)
}

func TestWalkAnchoredPatternStaysInItsDirectory(t *testing.T) {
	root := tree(t, "docs/a", "sub/docs/b")
	testutil.WriteFile(t, root, ".gitignore", []byte("/docs\n"))
	assert.Equal(t, []string{"sub/docs/b"}, collect(t, root, DefaultOptions()))
}

func TestWalkSymlinks(t *testing.T) {
	root := tree(t, "real/lib.so")
	require.NoError(t, os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "linked")))
	require.NoError(t, os.Symlink(filepath.Join(root, "real", "lib.so"), filepath.Join(root, "alias.so")))
	require.NoError(t, os.Symlink(root, filepath.Join(root, "real", "loop")))

	assert.Equal(t, []string{"real/lib.so"}, collect(t, root, DefaultOptions()))

	opts := DefaultOptions()
	opts.FollowSymlinks = true
	assert.Equal(t, []string{"alias.so", "linked/lib.so", "real/lib.so"}, collect(t, root, opts))
}

func TestWalkRoot(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := Walk(filepath.Join(t.TempDir(), "nope"), DefaultOptions())
		assert.ErrorIs(t, err, ErrInvalidRoot)
	})

	t.Run("single file", func(t *testing.T) {
		path := testutil.WriteFile(t, t.TempDir(), "bin", []byte("x"))
		seq, err := Walk(path, DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, []string{path}, slices.Collect(seq))
	})
}

func TestWalkIsLazy(t *testing.T) {
	root := tree(t, "a", "b", "c", "d")
	seq, err := Walk(root, DefaultOptions())
	require.NoError(t, err)

	var got []string
	for p := range seq {
		got = append(got, filepath.Base(p))
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		base, line string
		want       string
		ok         bool
	}{
		{"", "*.o", "**/*.o", true},
		{"", "/bin", "bin", true},
		{"", "build/", "**/build/**", true},
		{"", "!keep.o", "!**/keep.o", true},
		{"src", "gen/a.so", "src/gen/a.so", true},
		{"src", "tmp", "src/**/tmp", true},
		{"", `\#literal`, "**/#literal", true},
		{"", "# comment", "", false},
		{"", "   ", "", false},
		{"", "/", "", false},
	}
	for _, tt := range tests {
		got, ok := translate(tt.base, tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}
