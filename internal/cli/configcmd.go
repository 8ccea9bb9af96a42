package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/stylewatch/internal/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Config prints the configuration after merging defaults, the config
file, the environment and flags, as YAML.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cmd.Context())

			data, err := cfg.YAML()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()

			if cfg.ConfigFile != "" {
				fmt.Fprintf(w, "# config file: %s\n", cfg.ConfigFile)
			}

			_, err = w.Write(data)

			return err
		},
	}

	return cmd
}
