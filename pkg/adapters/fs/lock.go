package fs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/dlog/pkg/core"
)

// maxLockBackoff caps the doubling wait between lock attempts.
const maxLockBackoff = time.Second

// errWouldBlock is returned by tryLockFile when another handle holds the lock.
var errWouldBlock = errors.New("lock held elsewhere")

// lock takes the exclusive OS lock on the log file. A busy lock is retried
// LockRetries times with doubling backoff, then reported as
// core.ErrLockContention. The returned func releases the lock.
func (s *Store) lock(ctx context.Context) (func(), error) {
	backoff := s.config.LockBackoff

	for attempt := 0; ; attempt++ {
		err := tryLockFile(s.file)
		if err == nil {
			return func() {
				if err := unlockFile(s.file); err != nil {
					s.config.Logger.Error("failed to release lock", "path", s.Path, "error", err)
				}
			}, nil
		}
		if !errors.Is(err, errWouldBlock) {
			return nil, fmt.Errorf("lock %s: %w", s.Path, err)
		}
		if attempt >= s.config.LockRetries {
			return nil, fmt.Errorf("%w: %s (gave up after %d attempts)", core.ErrLockContention, s.Path, attempt+1)
		}

		s.config.Logger.Debug("store locked, retrying", "path", s.Path, "attempt", attempt+1, "backoff", backoff)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		backoff = min(backoff*2, maxLockBackoff)
	}
}
