package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/dlog/pkg/core"
)

func NewLogCmd(a *app) *cobra.Command {
	var (
		message string
		tags    string
		editor  bool
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Record an entry for the current directory",
		Long: `Record an entry tagged with the current directory.

Without -m the message is read from stdin until EOF (Ctrl-D), or from your
editor with --editor ($VISUAL, $EDITOR or the editor config key).`,
		Example: `  dlog log -m "finished the auth module" -t feature,auth
  git log -1 --format=%B | dlog log -t release
  dlog log --editor -t bugfix,urgent`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}

			if !cmd.Flags().Changed("message") {
				if editor {
					message, err = captureEditor(cmd.Context(), a.editorCommand())
				} else {
					message, err = captureStdin(cmd.InOrStdin(), cmd.ErrOrStderr())
				}
				if err != nil {
					return err
				}
			}

			if strings.TrimSpace(message) == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "Empty log, skipped.")
				return nil
			}

			svc, err := a.service(true)
			if err != nil {
				return err
			}
			defer svc.Close()

			e, err := svc.Write(cmd.Context(), core.WriteRequest{
				Directory: cwd,
				Message:   message,
				Tags:      core.SplitTags(tags),
			})
			if err != nil {
				return fmt.Errorf("record entry: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Log #%d recorded.\n", e.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Entry text (like git commit -m)")
	cmd.Flags().StringVarP(&tags, "tags", "t", "", "Comma separated tags, e.g. feature,backend")
	cmd.Flags().BoolVarP(&editor, "editor", "e", false, "Write the entry in your editor")
	cmd.MarkFlagsMutuallyExclusive("message", "editor")
	return cmd
}

// editorCommand resolves the editor: config, then $VISUAL, then $EDITOR, then vi.
func (a *app) editorCommand() string {
	for _, e := range []string{a.cfg.Editor, os.Getenv("VISUAL"), os.Getenv("EDITOR")} {
		if strings.TrimSpace(e) != "" {
			return e
		}
	}
	return "vi"
}
