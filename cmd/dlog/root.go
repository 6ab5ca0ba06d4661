package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/dlog"
	"github.com/aretw0/dlog/pkg/core"
)

// app carries state shared by all commands of one invocation.
type app struct {
	verbose    bool
	configPath string
	storePath  string

	logger *slog.Logger
	cfg    *dlog.Config

	// stderr receives logs; overridable in tests.
	stderr io.Writer
}

func newApp() *app {
	return &app{stderr: os.Stderr}
}

func NewRootCmd(version string, a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dlog",
		Short: "A work log that remembers where you were",
		Long: `dlog records short notes about your work. Every entry is tagged with the
directory you wrote it in, so "dlog get" shows what happened here.

  dlog log -m "fixed login redirect" -t bugfix,auth
  dlog get -r -n 20
  dlog get -t bugfix --date 2024-01-15`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}

			opts := &slog.HandlerOptions{
				Level: level,
			}
			a.logger = slog.New(slog.NewTextHandler(a.stderr, opts))
			slog.SetDefault(a.logger)

			return a.loadConfig()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/dlog/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.storePath, "db", "", "Log file (overrides store_path from the config)")

	rootCmd.AddCommand(
		NewInitCmd(a),
		NewLogCmd(a),
		NewGetCmd(a),
		NewStatusCmd(a),
		NewImportCmd(a),
		NewConfigCmd(a),
		NewVersionCmd(version),
	)
	return rootCmd
}

func (a *app) loadConfig() error {
	if a.configPath == "" {
		dir, err := dlog.DefaultConfigDir()
		if err != nil {
			return err
		}
		a.configPath = filepath.Join(dir, "config.yaml")
	}

	cfg, err := dlog.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.storePath != "" {
		abs, err := filepath.Abs(a.storePath)
		if err != nil {
			return err
		}
		cfg.StorePath = abs
	}
	a.cfg = cfg

	a.logger.Debug("config loaded", "config", a.configPath, "store", cfg.StorePath)
	return nil
}

// service opens the configured store. Without autoInit a missing store
// directory is reported with a hint to run init.
func (a *app) service(autoInit bool) (*core.Service, error) {
	opts := append(a.cfg.Options(),
		dlog.WithLogger(a.logger),
		dlog.WithAutoInit(autoInit),
	)

	svc, err := dlog.New(a.cfg.StorePath, opts...)
	if err != nil {
		if !autoInit && errors.Is(err, core.ErrUnwritable) {
			return nil, fmt.Errorf("%w (run 'dlog init' first)", err)
		}
		return nil, err
	}
	return svc, nil
}
