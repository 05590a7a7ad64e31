package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/ief/internal/config"
)

func newConfigCmd() *cobra.Command {
	var showPath bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration a search would use, after the config file and
IEF_* environment variables are applied, as YAML.

The file is read from $IEF_CONFIG/config.yaml, or ~/.ief/config.yaml.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader()
			if showPath {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), loader.Path())
				return err
			}
			cfg, err := loader.Load()
			if err != nil {
				return err
			}
			out, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().BoolVar(&showPath, "path", false, "Print the config file location only")
	return cmd
}
