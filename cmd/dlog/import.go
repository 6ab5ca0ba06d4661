package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/dlog/pkg/adapters/sqlite"
)

func NewImportCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <dlog.db>",
		Short: "Import entries from a SQLite database of an older dlog",
		Long: `Append every entry of an older SQLite based dlog database to the log,
oldest first. Creation times and tags are kept; entries get new IDs.`,
		Example: `  dlog import ~/.config/dlog/dlog.db`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := sqlite.ReadLegacy(cmd.Context(), args[0], a.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintf(out, "%d entries would be imported from %s\n", len(entries), args[0])
				return nil
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "Nothing to import.")
				return nil
			}

			svc, err := a.service(true)
			if err != nil {
				return err
			}
			defer svc.Close()

			stored, err := svc.Import(cmd.Context(), entries)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			fmt.Fprintf(out, "✓ Imported %d entries (#%d to #%d).\n", len(stored), stored[0].ID, stored[len(stored)-1].ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only count the entries that would be imported")
	return cmd
}
