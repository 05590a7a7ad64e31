package walk

import (
	"fmt"
	"path"
	"strings"

	"github.com/moby/patternmatcher"
)

// scope holds the rules from the ignore files of one directory. base is the
// directory relative to the walk root, in slash form ("" for the root).
type scope struct {
	base    string
	matcher *patternmatcher.PatternMatcher
}

// newScope translates gitignore lines found in base into patternmatcher
// patterns rooted at the walk root. It returns nil when no rule remains.
func newScope(base string, lines []string) (*scope, error) {
	var patterns []string
	for _, line := range lines {
		if p, ok := translate(base, line); ok {
			patterns = append(patterns, p)
		}
	}
	if len(patterns) == 0 {
		return nil, nil
	}
	m, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("ignore rules in %q: %w", base, err)
	}
	return &scope{base: base, matcher: m}, nil
}

// translate converts one gitignore line. Patterns without an inner slash
// match at any depth below base; a trailing slash restricts the pattern to
// directories, which here means to the files below them.
func translate(base, line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	if !strings.HasSuffix(line, `\ `) {
		line = strings.TrimRight(line, " \t")
	}
	if line == "" || strings.HasPrefix(line, "#") {
		return "", false
	}

	negate := false
	switch {
	case strings.HasPrefix(line, "!"):
		negate = true
		line = line[1:]
	case strings.HasPrefix(line, `\!`), strings.HasPrefix(line, `\#`):
		line = line[1:]
	}

	dirOnly := strings.HasSuffix(line, "/")
	line = strings.TrimRight(line, "/")
	if line == "" {
		return "", false
	}

	var p string
	if strings.Contains(line, "/") {
		p = path.Join(base, strings.TrimLeft(line, "/"))
	} else {
		p = path.Join(base, "**", line)
	}
	if dirOnly {
		p += "/**"
	}
	if negate {
		p = "!" + p
	}
	return p, true
}

// ignored reports whether rel, relative to the walk root, is excluded by s
// or by a rule matching one of its parent directories.
func (s *scope) ignored(rel string) bool {
	if s.base != "" && !strings.HasPrefix(rel, s.base+"/") {
		return false
	}
	ok, err := s.matcher.MatchesOrParentMatches(rel)
	return err == nil && ok
}
