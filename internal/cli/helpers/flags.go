package helpers

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/ief/internal/resolve"
)

// AddFormatFlag adds a standard --format/-o flag to a command.
// Validates that the format is in the supportedFormats list.
func AddFormatFlag(cmd *cobra.Command, formatVar *string, defaultFormat OutputFormat, supportedFormats []OutputFormat) {
	formatNames := make([]string, len(supportedFormats))
	for i, f := range supportedFormats {
		formatNames[i] = string(f)
	}

	description := fmt.Sprintf("Output format (%s)", strings.Join(formatNames, ", "))
	cmd.Flags().StringVarP(formatVar, "format", "o", string(defaultFormat), description)

	// Add shell completion for format flag.
	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return formatNames, cobra.ShellCompDirectiveNoFileComp
	})
}

// ValidateFormat checks if the format is in the supported list.
func ValidateFormat(format string, supported []OutputFormat) error {
	for _, s := range supported {
		if format == string(s) {
			return nil
		}
	}

	supportedNames := make([]string, len(supported))
	for i, s := range supported {
		supportedNames[i] = string(s)
	}

	return fmt.Errorf("unsupported format %q, must be one of: %s",
		format, strings.Join(supportedNames, ", "))
}

// QueryFlags holds the mutually exclusive -e/-i/-l query flags.
type QueryFlags struct {
	Export  string
	Import  string
	Library string
}

// AddQueryFlags registers -e/--export, -i/--import and -l/--library.
// Exactly one of them must be given.
func AddQueryFlags(cmd *cobra.Command, q *QueryFlags) {
	cmd.Flags().StringVarP(&q.Export, "export", "e", "", "Find binaries exporting this symbol")
	cmd.Flags().StringVarP(&q.Import, "import", "i", "", "Find binaries importing this symbol")
	cmd.Flags().StringVarP(&q.Library, "library", "l", "", "Find binaries linking a library whose name contains this string")
	cmd.MarkFlagsMutuallyExclusive("export", "import", "library")
	cmd.MarkFlagsOneRequired("export", "import", "library")
}

// Query builds the query selected by the flags.
func (q *QueryFlags) Query(cmd *cobra.Command) (resolve.Query, error) {
	switch {
	case cmd.Flags().Changed("export"):
		return resolve.NewQuery(resolve.KindExport, q.Export)
	case cmd.Flags().Changed("import"):
		return resolve.NewQuery(resolve.KindImport, q.Import)
	case cmd.Flags().Changed("library"):
		return resolve.NewQuery(resolve.KindLibrary, q.Library)
	}
	return resolve.Query{}, fmt.Errorf("%w: one of --export, --import or --library is required", resolve.ErrInvalidKind)
}
