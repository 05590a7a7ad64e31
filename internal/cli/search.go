package cli

import (
	"fmt"
	"io"
	"iter"
	"os"
	"slices"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/ief/internal/cli/helpers"
	"github.com/coral-mesh/ief/internal/config"
	"github.com/coral-mesh/ief/internal/constants"
	"github.com/coral-mesh/ief/internal/logging"
	"github.com/coral-mesh/ief/internal/report"
	"github.com/coral-mesh/ief/internal/resolve"
	"github.com/coral-mesh/ief/internal/safe"
	"github.com/coral-mesh/ief/internal/scan"
	"github.com/coral-mesh/ief/internal/walk"
)

var searchFormats = append(slices.Clone(helpers.RowFormats), helpers.FormatMarkdown)

type searchOptions struct {
	query helpers.QueryFlags

	format         string
	render         bool
	quiet          bool
	workers        int
	maxFileSize    config.ByteSize
	access         string
	hidden         bool
	followSymlinks bool
	noIgnore       bool
	logLevel       string
}

func addSearchFlags(cmd *cobra.Command, opts *searchOptions) {
	helpers.AddQueryFlags(cmd, &opts.query)
	helpers.AddFormatFlag(cmd, &opts.format, helpers.FormatText, searchFormats)

	f := cmd.Flags()
	f.BoolVar(&opts.render, "render", false, "Render markdown output for the terminal")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Do not print the search banner")
	f.IntVarP(&opts.workers, "workers", "j", constants.DefaultWorkers, "Number of files checked in parallel")
	opts.maxFileSize = config.ByteSize(constants.DefaultMaxFileSize)
	f.Var(&opts.maxFileSize, "max-file-size", "Skip files larger than this (e.g. 64MiB)")
	f.StringVar(&opts.access, "access", constants.DefaultAccess, "File access mode (mmap, read)")
	f.BoolVarP(&opts.hidden, "hidden", "H", false, "Include hidden files and directories")
	f.BoolVarP(&opts.followSymlinks, "follow-symlinks", "L", false, "Follow symbolic links")
	f.BoolVar(&opts.noIgnore, "no-ignore", false, "Do not honor .gitignore and .ignore files")
}

// loadConfig layers flags that were set explicitly over the loaded config.
func loadConfig(cmd *cobra.Command, opts *searchOptions) (*config.Config, error) {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("format") {
		cfg.Output.Format = opts.format
	}
	if f.Changed("workers") {
		cfg.Scan.Workers = opts.workers
	}
	if f.Changed("max-file-size") {
		cfg.Scan.MaxFileSize = opts.maxFileSize
	}
	if f.Changed("access") {
		cfg.Scan.Access = opts.access
	}
	if f.Changed("hidden") {
		cfg.Walk.Hidden = opts.hidden
	}
	if f.Changed("follow-symlinks") {
		cfg.Walk.FollowSymlinks = opts.followSymlinks
	}
	if f.Changed("no-ignore") {
		cfg.Walk.UseIgnoreFiles = !opts.noIgnore
	}
	if f.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) zerolog.Logger {
	return logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: cmd.ErrOrStderr(),
	})
}

func runSearch(cmd *cobra.Command, root string, opts *searchOptions) error {
	q, err := opts.query.Query(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	paths, err := walk.Walk(root, walk.Options{
		Hidden:         cfg.Walk.Hidden,
		FollowSymlinks: cfg.Walk.FollowSymlinks,
		IgnoreFiles:    cfg.Walk.IgnoreFiles,
		UseIgnoreFiles: cfg.Walk.UseIgnoreFiles,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	scanner, err := scan.New(scan.Config{
		Workers:        cfg.Scan.Workers,
		MaxFileSize:    int64(cfg.Scan.MaxFileSize),
		Access:         scan.Access(cfg.Scan.Access),
		FollowSymlinks: cfg.Walk.FollowSymlinks,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	if !opts.quiet {
		printBanner(cmd.ErrOrStderr(), report.Banner(root, q))
	}

	matches := scanner.Scan(cmd.Context(), paths, q)
	if err := writeResults(cmd.OutOrStdout(), cfg, opts, root, q, matches); err != nil {
		return err
	}

	stats := scanner.Stats()
	logger.Info().
		Int64("scanned", stats.Scanned).
		Int64("matched", stats.Matched).
		Int64("skipped", stats.Skipped).
		Msg("Scan complete")
	return cmd.Context().Err()
}

func writeResults(w io.Writer, cfg *config.Config, opts *searchOptions, root string, q resolve.Query, matches iter.Seq[string]) error {
	format := helpers.OutputFormat(cfg.Output.Format)

	// Text output streams, everything else needs the full result set.
	if format == helpers.FormatText {
		for p := range matches {
			if _, err := fmt.Fprintln(w, p); err != nil {
				return err
			}
		}
		return nil
	}

	var found []string
	for p := range matches {
		found = append(found, p)
	}

	if format == helpers.FormatMarkdown {
		md := report.Markdown(report.Summary{Root: root, Query: q, Matches: found})
		if opts.render {
			rendered, err := report.Render(md, report.RenderOptions{})
			if err != nil {
				return err
			}
			md = rendered
		}
		_, err := io.WriteString(w, md)
		return err
	}

	formatter, err := helpers.NewFormatter(format)
	if err != nil {
		return err
	}
	rows := report.Describe(found, &safe.Options{
		MaxSize:       int64(cfg.Scan.MaxFileSize),
		AllowSymlinks: cfg.Walk.FollowSymlinks,
	})
	return formatter.Format(rows, w)
}

// printBanner styles the banner for w. The renderer drops color when w is
// not a terminal.
func printBanner(w io.Writer, text string) {
	if os.Getenv(constants.NoColorEnv) != "" {
		_, _ = fmt.Fprintln(w, text)
		return
	}
	style := lipgloss.NewRenderer(w).NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	_, _ = fmt.Fprintln(w, style.Render(text))
}
