package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/ief/internal/binfmt"
	"github.com/coral-mesh/ief/internal/cli/helpers"
	"github.com/coral-mesh/ief/internal/config"
	"github.com/coral-mesh/ief/internal/report"
	"github.com/coral-mesh/ief/internal/resolve"
	"github.com/coral-mesh/ief/internal/safe"
)

var inspectFormats = []helpers.OutputFormat{helpers.FormatTable, helpers.FormatJSON, helpers.FormatCSV}

func newInspectCmd() *cobra.Command {
	var (
		format string
		kind   string
	)

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "List the libraries, imports and exports of a binary",
		Long: `Show what a single binary links against, imports and exports, using the
same parser the search does. Mangled C++ names get a demangled column.
Universal Mach-O binaries are listed per architecture.

Examples:
  ief inspect /usr/lib/libssl.so.3
  ief inspect ./app.exe --kind import -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidateFormat(format, inspectFormats); err != nil {
				return err
			}
			var only resolve.Kind
			if kind != "" {
				k, err := resolve.ParseKind(kind)
				if err != nil {
					return fmt.Errorf("--kind: %w", err)
				}
				only = k
			}
			cfg, err := config.NewLoader().Load()
			if err != nil {
				return err
			}

			path := args[0]
			data, err := safe.ReadFile(path, &safe.Options{
				MaxSize:       int64(cfg.Scan.MaxFileSize),
				AllowSymlinks: true,
			})
			if err != nil {
				return fmt.Errorf("%w: %w", binfmt.ErrIO, err)
			}
			c, err := binfmt.ClassifyBytes(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			entries, err := report.Inspect(c)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if only != 0 {
				entries = filterEntries(entries, only.String())
			}

			formatter, err := helpers.NewFormatter(helpers.OutputFormat(format))
			if err != nil {
				return err
			}
			return formatter.Format(entries, cmd.OutOrStdout())
		},
	}

	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, inspectFormats)
	cmd.Flags().StringVar(&kind, "kind", "", "Only list entries of this kind (library, import, export)")

	return cmd
}

func filterEntries(entries []report.Entry, kind string) []report.Entry {
	out := entries[:0]
	for _, e := range entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
