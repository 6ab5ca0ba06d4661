package platform

import (
	"context"
	"errors"
	"io/fs"
	"os"

	logfile "github.com/aretw0/dlog/pkg/adapters/fs"
	"github.com/aretw0/dlog/pkg/core"
)

// Init opens the log file at path and returns it as a core.Repository.
// With WithAutoInit the file and its parent directories are created first.
func Init(path string, opts ...Option) (core.Repository, error) {
	return initWith(path, applyOptions(opts))
}

func initWith(path string, o *options) (core.Repository, error) {
	if o.repository != nil {
		return o.repository, nil
	}

	path, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}

	if o.autoInit {
		if err := logfile.EnsureInitialized(path); err != nil {
			return nil, err
		}
	}

	store, err := logfile.Open(logfile.Config{
		Path:        path,
		Logger:      o.logger,
		LockRetries: o.lockRetries,
		LockBackoff: o.lockBackoff,
		Now:         o.now,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// VanishedDirectories lists directories that have entries but no longer
// exist on disk. Their entries stay in the log.
func VanishedDirectories(ctx context.Context, svc *core.Service) ([]string, error) {
	dirs, err := svc.Directories(ctx)
	if err != nil {
		return nil, err
	}

	var gone []string
	for _, d := range dirs {
		if _, err := os.Stat(d); errors.Is(err, fs.ErrNotExist) {
			gone = append(gone, d)
		}
	}
	return gone, nil
}
