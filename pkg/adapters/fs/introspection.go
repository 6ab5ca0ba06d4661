package fs

import (
	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Path        string `json:"path"`
	SizeBytes   int64  `json:"size_bytes"`
	Entries     int    `json:"entries"`
	NextID      uint64 `json:"next_id"`
	LockRetries int    `json:"lock_retries"`
	LockBackoff string `json:"lock_backoff"`
	Closed      bool   `json:"closed"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StoreState{
		Path:        s.Path,
		SizeBytes:   s.tail,
		Entries:     s.count,
		NextID:      s.lastID + 1,
		LockRetries: s.config.LockRetries,
		LockBackoff: s.config.LockBackoff.String(),
		Closed:      s.closed,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "logfile"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
