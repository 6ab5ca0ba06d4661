package dlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/dlog/internal/platform"
	"github.com/aretw0/dlog/pkg/core"
)

// Version of the library and CLI. Release builds set it with
// -ldflags "-X github.com/aretw0/dlog.Version=v1.2.3".
var Version = "dev"

// --- Types ---

// Entry is a public alias for a stored log entry.
type Entry = core.Entry

// Filter is a public alias for the query filter.
type Filter = core.Filter

// WriteRequest is a public alias for a new entry request.
type WriteRequest = core.WriteRequest

// Config is the user configuration read from config.yaml.
type Config = platform.Config

// --- Configuration ---

// Option defines a functional option for configuring dlog.
type Option = platform.Option

// WithAutoInit creates the log file and its directory when missing.
func WithAutoInit(auto bool) Option {
	return platform.WithAutoInit(auto)
}

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithRepository allows injecting a custom storage adapter.
func WithRepository(repo core.Repository) Option {
	return platform.WithRepository(repo)
}

// WithLockRetries sets how often a busy write lock is retried.
func WithLockRetries(n int) Option {
	return platform.WithLockRetries(n)
}

// WithLockBackoff sets the first wait between write lock attempts.
func WithLockBackoff(d time.Duration) Option {
	return platform.WithLockBackoff(d)
}

// WithCaseInsensitive overrides the host convention for directory matching.
func WithCaseInsensitive(enabled bool) Option {
	return platform.WithCaseInsensitive(enabled)
}

// WithClock sets the time source used to stamp new entries.
func WithClock(now func() time.Time) Option {
	return platform.WithClock(now)
}

// --- Factory ---

// New opens the work log at path and returns the service.
func New(path string, opts ...Option) (*core.Service, error) {
	return platform.New(path, opts...)
}

// Init opens the log file at path as a repository.
func Init(path string, opts ...Option) (core.Repository, error) {
	return platform.Init(path, opts...)
}

// --- Config ---

// DefaultConfigDir is $XDG_CONFIG_HOME/dlog, or ~/.config/dlog.
func DefaultConfigDir() (string, error) {
	return platform.DefaultConfigDir()
}

// LoadConfig reads config.yaml, falling back to defaults when missing.
func LoadConfig(path string) (*Config, error) {
	return platform.LoadConfig(path)
}

// SaveConfig writes the config file atomically.
func SaveConfig(path string, cfg *Config) error {
	return platform.SaveConfig(path, cfg)
}

// --- Utils ---

// FindProjectRoot returns the top of the git work tree enclosing dir.
func FindProjectRoot(dir string) (string, error) {
	return platform.ProjectRoot(dir)
}

// VanishedDirectories lists directories with entries that no longer exist on disk.
func VanishedDirectories(ctx context.Context, svc *core.Service) ([]string, error) {
	return platform.VanishedDirectories(ctx, svc)
}
