package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/dlog"
)

func NewInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the log file and check logged directories",
		Long: `Create the log file (and its directory) if missing. Running it again is safe.

Afterwards, directories that have entries but no longer exist on disk are
listed. Their entries are kept: the log is append-only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(true)
			if err != nil {
				return fmt.Errorf("initialize store: %w", err)
			}
			defer svc.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Store initialized at %s\n", a.cfg.StorePath)

			gone, err := dlog.VanishedDirectories(cmd.Context(), svc)
			if err != nil {
				return fmt.Errorf("check directories: %w", err)
			}
			if len(gone) == 0 {
				fmt.Fprintln(out, "✓ All log directories are in sync with the filesystem.")
				return nil
			}

			fmt.Fprintln(out, "\nThe following directories with logs no longer exist:")
			for _, d := range gone {
				fmt.Fprintf(out, "- %s\n", d)
			}
			fmt.Fprintln(out, "Their entries are kept and can still be queried with 'dlog get <path>'.")
			return nil
		},
	}
}
