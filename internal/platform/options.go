package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/dlog/pkg/adapters/fs"
	"github.com/aretw0/dlog/pkg/core"
)

// options holds the internal configuration for the dlog service.
type options struct {
	repository      core.Repository
	logger          *slog.Logger
	autoInit        bool
	lockRetries     int
	lockBackoff     time.Duration
	caseInsensitive *bool
	now             func() time.Time
}

// Option defines a functional option for configuring dlog.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		lockRetries: fs.DefaultLockRetries,
		lockBackoff: fs.DefaultLockBackoff,
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithAutoInit creates the log file and its directory when missing.
func WithAutoInit(auto bool) Option {
	return func(o *options) {
		o.autoInit = auto
	}
}

// WithLogger sets the logger for the service and the store.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRepository injects a custom storage adapter (e.g. a mock).
// If provided, the log file adapter is skipped.
func WithRepository(repo core.Repository) Option {
	return func(o *options) {
		o.repository = repo
	}
}

// WithLockRetries sets how often a busy write lock is retried.
func WithLockRetries(n int) Option {
	return func(o *options) {
		o.lockRetries = n
	}
}

// WithLockBackoff sets the first wait between write lock attempts.
func WithLockBackoff(d time.Duration) Option {
	return func(o *options) {
		o.lockBackoff = d
	}
}

// WithCaseInsensitive overrides the host convention for directory matching.
func WithCaseInsensitive(enabled bool) Option {
	return func(o *options) {
		o.caseInsensitive = &enabled
	}
}

// WithClock sets the time source used to stamp new entries.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
