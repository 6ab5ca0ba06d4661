package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/dlog"
	"github.com/aretw0/dlog/pkg/core"
)

type getOptions struct {
	num       int
	recursive bool
	tagged    bool
	tag       string
	date      string
	search    string
	project   bool
	asJSON    bool
	follow    bool
}

func NewGetCmd(a *app) *cobra.Command {
	var o getOptions

	cmd := &cobra.Command{
		Use:   "get [path]",
		Short: "Show recent entries for a directory",
		Long: `Show the most recent entries written in a directory (the current one by
default). With -r entries from all subdirectories are included and each
entry shows where it was written.`,
		Example: `  dlog get                    # latest entries here
  dlog get -n 20              # twenty of them, -n 0 for all
  dlog get -r                 # include subdirectories
  dlog get --project          # everything in the enclosing git work tree
  dlog get -t bugfix          # tags containing "bugfix"; globs like 'fix-*' work too
  dlog get --date 2024-01-15  # entries from that day
  dlog get -s error           # search messages and tags
  dlog get ../api --follow    # keep printing new entries`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("num") {
				o.num = a.cfg.DefaultLimit
			}
			filter, err := o.filter(args)
			if err != nil {
				return err
			}

			svc, err := a.service(false)
			if err != nil {
				return err
			}
			defer svc.Close()

			p := newPrinter(cmd.OutOrStdout(), o.asJSON, filter.Scope == core.ScopeRecursive)

			if o.follow {
				return followEntries(cmd.Context(), svc, filter, p, func() {
					fmt.Fprintln(cmd.ErrOrStderr(), "No logs found. Waiting for new entries...")
				})
			}

			entries, err := svc.Query(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			if len(entries) == 0 && !o.asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), "No logs found.")
				return nil
			}
			for _, e := range entries {
				if err := p.print(e); err != nil {
					return err
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVarP(&o.num, "num", "n", 0, "Show the latest N entries, 0 for all (default from config, 10)")
	f.BoolVarP(&o.recursive, "recursive", "r", false, "Include subdirectories")
	f.BoolVar(&o.tagged, "tagged", false, "Only entries that have tags")
	f.StringVarP(&o.tag, "tag", "t", "", "Only entries with a tag containing the text or matching the glob")
	f.StringVar(&o.date, "date", "", "Only entries from this day (YYYY-MM-DD, local time)")
	f.StringVarP(&o.search, "search", "s", "", "Case-insensitive keyword in message or tags")
	f.BoolVarP(&o.project, "project", "p", false, "Scope to the enclosing git work tree (implies -r)")
	f.BoolVar(&o.asJSON, "json", false, "Output JSON, one entry per line")
	f.BoolVarP(&o.follow, "follow", "f", false, "Keep running and print new matching entries")
	cmd.MarkFlagsMutuallyExclusive("project", "recursive")
	return cmd
}

// filter turns flags and the optional path into a query filter.
func (o getOptions) filter(args []string) (core.Filter, error) {
	if o.num < 0 {
		return core.Filter{}, &core.ValidationError{Field: "num", Reason: "must not be negative"}
	}

	anchor, err := os.Getwd()
	if err != nil {
		return core.Filter{}, fmt.Errorf("get working directory: %w", err)
	}
	if len(args) == 1 {
		anchor, err = filepath.Abs(args[0])
		if err != nil {
			return core.Filter{}, err
		}
	}

	scope := core.ScopeExact
	if o.recursive {
		scope = core.ScopeRecursive
	}
	if o.project {
		root, err := dlog.FindProjectRoot(anchor)
		if err != nil {
			return core.Filter{}, err
		}
		anchor, scope = root, core.ScopeRecursive
	}

	f := core.Filter{
		Limit:       o.num,
		Scope:       scope,
		Anchor:      anchor,
		RequireTags: o.tagged,
		TagPattern:  o.tag,
		Search:      o.search,
	}
	if o.num == 0 {
		f.Limit = core.NoLimit
	}
	if o.date != "" {
		f.Day, err = core.ParseDay(o.date, time.Local)
		if err != nil {
			return core.Filter{}, err
		}
	}
	return f, f.Validate()
}

// followEntries prints the current matches oldest first, then new ones
// until ctx ends.
// The follower starts before the query so nothing written in between is lost.
func followEntries(ctx context.Context, svc *core.Service, f core.Filter, p *printer, onEmpty func()) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := svc.Follow(ctx, f)
	if err != nil {
		return fmt.Errorf("follow: %w", err)
	}

	entries, err := svc.Query(ctx, f)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if len(entries) == 0 && !p.asJSON {
		onEmpty()
	}

	var seen uint64
	for i := len(entries) - 1; i >= 0; i-- {
		if err := p.print(entries[i]); err != nil {
			return err
		}
		seen = max(seen, entries[i].ID)
	}

	for e := range stream {
		if e.ID <= seen {
			continue
		}
		if err := p.print(e); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
