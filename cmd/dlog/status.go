package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/introspection"
	"github.com/spf13/cobra"

	"github.com/aretw0/dlog/pkg/adapters/fs"
	"github.com/aretw0/dlog/pkg/core"
)

func NewStatusCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show where the log lives and how big it is",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(false)
			if err != nil {
				return err
			}
			defer svc.Close()

			state, err := serviceState(svc)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(state)
			}

			store, ok := state.Repository.(fs.StoreState)
			if !ok {
				fmt.Fprintf(out, "Repository: %s\n", state.RepositoryType)
				return nil
			}
			fmt.Fprintf(out, "Store:    %s\n", store.Path)
			fmt.Fprintf(out, "Size:     %d bytes\n", store.SizeBytes)
			fmt.Fprintf(out, "Entries:  %d\n", store.Entries)
			fmt.Fprintf(out, "Next ID:  %d\n", store.NextID)
			fmt.Fprintf(out, "Paths:    %s\n", caseLabel(state.CaseInsensitive))
			fmt.Fprintf(out, "Config:   %s\n", a.configPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

func serviceState(c introspection.Introspectable) (core.ServiceState, error) {
	state, ok := c.State().(core.ServiceState)
	if !ok {
		return core.ServiceState{}, fmt.Errorf("unexpected service state %T", c.State())
	}
	return state, nil
}

func caseLabel(insensitive bool) string {
	if insensitive {
		return "case-insensitive"
	}
	return "case-sensitive"
}
