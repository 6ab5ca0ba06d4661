package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrUnwritable means the store path cannot be created or opened.
	ErrUnwritable = errors.New("store is not writable")
	// ErrCorrupt means a fully written record failed to decode.
	ErrCorrupt = errors.New("store is corrupt")
	// ErrLockContention means another process kept the write lock.
	ErrLockContention = errors.New("store is locked by another process")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("invalid request")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")
)

// CorruptError reports where decoding stopped and how many entries were
// read successfully before that point.
type CorruptError struct {
	Offset    int64
	Recovered int
	Err       error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt record at byte %d (%d entries recovered): %v", e.Offset, e.Recovered, e.Err)
}

func (e *CorruptError) Unwrap() []error {
	return []error{ErrCorrupt, e.Err}
}

// ValidationError rejects a request before any I/O happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) hold for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
