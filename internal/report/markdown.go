// Package report presents scan results to people: a banner line, a
// markdown report and per-file description rows.
package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/coral-mesh/ief/internal/constants"
	"github.com/coral-mesh/ief/internal/resolve"
)

// Summary is the outcome of one scan.
type Summary struct {
	Root    string
	Query   resolve.Query
	Matches []string
}

// Title is the window or document title for a report about q.
func Title(q resolve.Query) string {
	return "IEF - " + q.Name()
}

// Banner is the progress line printed when a scan starts.
func Banner(root string, q resolve.Query) string {
	if q.Kind() == resolve.KindLibrary {
		return fmt.Sprintf("searching for binaries that import library %q in %s", q.Name(), root)
	}
	return fmt.Sprintf("searching for %s %q in %s", q.Kind(), q.Name(), root)
}

func describeQuery(q resolve.Query) string {
	switch q.Kind() {
	case resolve.KindImport:
		return fmt.Sprintf("with imported symbol `%s`", q.Name())
	case resolve.KindExport:
		return fmt.Sprintf("with exported symbol `%s`", q.Name())
	default:
		return fmt.Sprintf("with imported library name containing `%s`", q.Name())
	}
}

// Markdown renders s as a markdown document: a title, a separator, the query
// and one bullet per matching path.
func Markdown(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", constants.ReportTitle)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "binaries in `%s` %s\n\n", s.Root, describeQuery(s.Query))
	if len(s.Matches) == 0 {
		b.WriteString("_no matching binaries_\n")
		return b.String()
	}
	for _, m := range s.Matches {
		fmt.Fprintf(&b, "* %s\n", m)
	}
	return b.String()
}

// RenderOptions controls terminal rendering.
type RenderOptions struct {
	// Width wraps text; zero uses 80 columns.
	Width int
	// NoColor selects the plain notty style. It is implied by NO_COLOR.
	NoColor bool
}

// Render draws markdown for a terminal with glamour.
func Render(markdown string, opts RenderOptions) (string, error) {
	width := opts.Width
	if width == 0 {
		width = 80
	}
	rendererOpts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if opts.NoColor || os.Getenv(constants.NoColorEnv) != "" {
		rendererOpts = append(rendererOpts, glamour.WithStylePath("notty"))
	} else {
		rendererOpts = append(rendererOpts, glamour.WithAutoStyle())
	}

	renderer, err := glamour.NewTermRenderer(rendererOpts...)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}
