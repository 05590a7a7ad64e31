// Package walk enumerates candidate files below a root directory, honoring
// gitignore-style ignore files.
package walk

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/ief/internal/constants"
	"github.com/coral-mesh/ief/internal/safe"
)

// ErrInvalidRoot is returned when the root is neither a directory nor a
// regular file.
var ErrInvalidRoot = errors.New("invalid search root")

// maxIgnoreFileSize bounds reads of ignore files.
const maxIgnoreFileSize = 1 << 20

// Options controls which entries are visited.
type Options struct {
	// Hidden visits entries whose name starts with a dot. .git is skipped
	// regardless.
	Hidden bool
	// FollowSymlinks descends into symlinked directories and yields
	// symlinked files. Cycles are broken.
	FollowSymlinks bool
	// IgnoreFiles are read in every directory when UseIgnoreFiles is set.
	IgnoreFiles    []string
	UseIgnoreFiles bool
	Logger         zerolog.Logger
}

// DefaultOptions skips hidden entries and symlinks and honors .gitignore and
// .ignore files.
func DefaultOptions() Options {
	return Options{
		IgnoreFiles:    constants.DefaultIgnoreFiles,
		UseIgnoreFiles: true,
		Logger:         zerolog.Nop(),
	}
}

// Walk validates root and returns a lazy depth-first sequence of the regular
// files below it, in lexical order per directory. A root that is itself a
// regular file yields only that path. Unreadable directories are logged and
// skipped. The sequence can be abandoned at any point.
func Walk(root string, opts Options) (iter.Seq[string], error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	switch {
	case info.Mode().IsRegular():
		return func(yield func(string) bool) { yield(root) }, nil
	case !info.IsDir():
		return nil, fmt.Errorf("%w: %q is not a directory", ErrInvalidRoot, root)
	}

	w := &walker{
		root:   root,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "walk").Logger(),
	}
	return func(yield func(string) bool) {
		w.dir("", nil, []os.FileInfo{info}, yield)
	}, nil
}

type walker struct {
	root   string
	opts   Options
	logger zerolog.Logger
}

// dir visits the directory rel. It returns false once yield asks to stop.
// ancestors holds the directories on the current path for cycle detection.
func (w *walker) dir(rel string, scopes []*scope, ancestors []os.FileInfo, yield func(string) bool) bool {
	abs := filepath.Join(w.root, filepath.FromSlash(rel))
	entries, err := os.ReadDir(abs)
	if err != nil {
		w.logger.Debug().Err(err).Str("path", abs).Msg("Skipping unreadable directory")
		return true
	}

	if w.opts.UseIgnoreFiles {
		if s := w.loadScope(rel, abs); s != nil {
			scopes = append(scopes[:len(scopes):len(scopes)], s)
		}
	}

	for _, e := range entries {
		name := e.Name()
		if name == constants.GitDir || (!w.opts.Hidden && strings.HasPrefix(name, ".")) {
			continue
		}
		childRel := path.Join(rel, name)
		if ignoredBy(scopes, childRel) {
			continue
		}
		childAbs := filepath.Join(abs, name)

		mode := e.Type()
		var info os.FileInfo
		if mode&fs.ModeSymlink != 0 {
			if !w.opts.FollowSymlinks {
				continue
			}
			if info, err = os.Stat(childAbs); err != nil {
				w.logger.Debug().Err(err).Str("path", childAbs).Msg("Skipping broken symlink")
				continue
			}
			mode = info.Mode().Type()
		}

		switch {
		case mode.IsDir():
			if info == nil {
				if info, err = e.Info(); err != nil {
					continue
				}
			}
			if visited(ancestors, info) {
				w.logger.Debug().Str("path", childAbs).Msg("Skipping directory cycle")
				continue
			}
			if !w.dir(childRel, scopes, append(ancestors, info), yield) {
				return false
			}
		case mode.IsRegular():
			if !yield(childAbs) {
				return false
			}
		}
	}
	return true
}

func (w *walker) loadScope(rel, abs string) *scope {
	var lines []string
	for _, name := range w.opts.IgnoreFiles {
		data, err := safe.ReadFile(filepath.Join(abs, name), &safe.Options{MaxSize: maxIgnoreFileSize})
		if err != nil {
			continue
		}
		lines = append(lines, strings.Split(string(data), "\n")...)
	}
	s, err := newScope(rel, lines)
	if err != nil {
		w.logger.Warn().Err(err).Str("path", abs).Msg("Ignoring malformed ignore file")
		return nil
	}
	return s
}

func ignoredBy(scopes []*scope, rel string) bool {
	for _, s := range scopes {
		if s.ignored(rel) {
			return true
		}
	}
	return false
}

func visited(ancestors []os.FileInfo, info os.FileInfo) bool {
	for _, a := range ancestors {
		if os.SameFile(a, info) {
			return true
		}
	}
	return false
}
