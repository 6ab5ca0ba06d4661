package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/dlog"
)

func NewConfigCmd(a *app) *cobra.Command {
	var (
		initFile bool
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration in effect, after defaults and flags are applied.
With --init the current values are written to the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if initFile {
				if _, err := os.Stat(a.configPath); err == nil && !force {
					return fmt.Errorf("%s already exists (use --force to overwrite)", a.configPath)
				} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
					return err
				}
				if err := dlog.SaveConfig(a.configPath, a.cfg); err != nil {
					return err
				}
				fmt.Fprintf(out, "✓ Wrote %s\n", a.configPath)
				return nil
			}

			fmt.Fprintf(out, "# %s\n", a.configPath)
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(a.cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	cmd.Flags().BoolVar(&initFile, "init", false, "Write the config file")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file with --init")
	return cmd
}
