package fs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/dlog/pkg/core"
)

// EnsureInitialized creates the log file and its parent directories when
// missing. Calling it on an existing store is a no-op.
func EnsureInitialized(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: %w", core.ErrUnwritable, err)
	}

	// O_APPEND without O_TRUNC leaves existing records untouched.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrUnwritable, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrUnwritable, err)
	}
	return nil
}
