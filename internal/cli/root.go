// Package cli implements the ief command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/ief/pkg/version"
)

// NewRootCmd builds the command tree. The root command itself runs a scan.
func NewRootCmd() *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "ief <path> (-e|-i|-l) <name>",
		Short: "ief - find binaries that import or export a symbol, or link a library",
		Long: `Recursively scan a directory for ELF, PE and Mach-O binaries (including
universal Mach-O) that import or export a symbol, or link against a library.

Symbol names are compared after Itanium C++ demangling, so a mangled name
and its demangled form find the same binaries. Library names match as
substrings: -l libssl finds binaries linking libssl.so.1.1.

Files that cannot be read or parsed are skipped. Ignore files (.gitignore,
.ignore) and hidden entries are honored unless configured otherwise.

Examples:
  ief /usr/lib -e SSL_new
  ief ./build -i 'foo::bar()' -o table
  ief C:/Windows/System32 -l user32 -j 8`,
		Args:          cobra.ExactArgs(1),
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args[0], opts)
		},
	}

	addSearchFlags(cmd, opts)
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")

	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "ief version %s\n", info.Version)
			_, _ = fmt.Fprintf(w, "Git commit: %s\n", info.GitCommit)
			_, _ = fmt.Fprintf(w, "Build date: %s\n", info.BuildDate)
			_, _ = fmt.Fprintf(w, "Go version: %s\n", info.GoVersion)
			_, _ = fmt.Fprintf(w, "Platform: %s\n", info.Platform)
		},
	}
}

// Execute runs the root command. An interrupt stops the scan after the file
// in progress.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
