// Package fs implements core.Repository as a single append-only log file.
//
// The file is a plain concatenation of self-delimiting records (see
// EncodeRecord). There is no index: every query scans the file, and the next
// ID is derived from the last record on disk.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/dlog/pkg/core"
)

// Config holds the configuration for the log file store.
type Config struct {
	Path   string
	Logger *slog.Logger

	// LockRetries is how many times a busy write lock is retried before
	// Append fails with core.ErrLockContention.
	LockRetries int
	// LockBackoff is the first wait between lock attempts; it doubles on
	// every retry.
	LockBackoff time.Duration

	// Now stamps new entries. Defaults to time.Now.
	Now func() time.Time
}

const (
	DefaultLockRetries = 5
	DefaultLockBackoff = 20 * time.Millisecond
)

// Store is an open log file.
type Store struct {
	Path   string
	config Config
	file   *os.File

	mu     sync.Mutex
	tail   int64 // end of the last complete record seen
	lastID uint64
	count  int
	closed bool
}

// Open opens the log file at config.Path, creating it if missing. The
// parent directory must exist; use EnsureInitialized to create it.
func Open(config Config) (*Store, error) {
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.LockRetries < 0 {
		config.LockRetries = 0
	}
	if config.LockBackoff <= 0 {
		config.LockBackoff = DefaultLockBackoff
	}

	dir := filepath.Dir(config.Path)
	if info, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrUnwritable, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", core.ErrUnwritable, dir)
	}

	f, err := os.OpenFile(config.Path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrUnwritable, err)
	}

	s := &Store{Path: config.Path, config: config, file: f}
	if _, err := s.refresh(); err != nil {
		f.Close()
		return nil, err
	}

	config.Logger.Debug("store opened", "path", s.Path, "entries", s.count, "next_id", s.lastID+1)
	return s, nil
}

// Close releases the file handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

// Append stores a new entry under the exclusive write lock and returns it
// once the record has been synced to disk.
func (s *Store) Append(ctx context.Context, directory, message string, tags []string) (core.Entry, error) {
	req := core.WriteRequest{Directory: directory, Message: message, Tags: tags}
	if err := req.Validate(); err != nil {
		return core.Entry{}, err
	}
	req = req.Normalize()

	stored, err := s.write(ctx, []core.Entry{{
		Directory: req.Directory,
		Message:   req.Message,
		Tags:      req.Tags,
	}})
	if err != nil {
		return core.Entry{}, err
	}
	return stored[0], nil
}

// Import appends entries keeping their CreatedAt. IDs are assigned as for
// Append. The whole batch lands in a single write.
func (s *Store) Import(ctx context.Context, entries []core.Entry) ([]core.Entry, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	for _, e := range entries {
		if err := (core.WriteRequest{Directory: e.Directory, Message: e.Message}).Validate(); err != nil {
			return nil, err
		}
		if e.CreatedAt.IsZero() {
			return nil, &core.ValidationError{Field: "created_at", Reason: "must be set on import"}
		}
	}
	return s.write(ctx, entries)
}

// write assigns IDs (and CreatedAt when unset) and appends the batch.
//
// Workflow:
//  1. Acquire the OS write lock.
//  2. Catch up with records appended by other processes since the last look.
//  3. Cut a trailing partial record left behind by a crashed writer.
//  4. Encode, write in one call, fsync.
//  5. On failure, truncate back so no half record stays visible.
func (s *Store) write(ctx context.Context, batch []core.Entry) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, core.ErrClosed
	}

	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	partial, err := s.refresh()
	if err != nil {
		return nil, err
	}
	if partial > 0 {
		s.config.Logger.Warn("discarding partial record from an interrupted write",
			"path", s.Path, "offset", s.tail, "bytes", partial)
		if err := s.file.Truncate(s.tail); err != nil {
			return nil, fmt.Errorf("truncate partial record: %w", err)
		}
	}

	now := s.config.Now().UTC()
	stored := make([]core.Entry, 0, len(batch))
	var buf []byte
	for i, e := range batch {
		e.ID = s.lastID + uint64(i) + 1
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		} else {
			e.CreatedAt = e.CreatedAt.UTC()
		}
		e.Tags = core.NormalizeTags(e.Tags)

		rec, err := EncodeRecord(e)
		if err != nil {
			return nil, err
		}
		buf = append(buf, rec...)
		stored = append(stored, e)
	}

	if _, err := s.file.Write(buf); err != nil {
		s.rollback()
		return nil, fmt.Errorf("write record: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		s.rollback()
		return nil, fmt.Errorf("sync record: %w", err)
	}

	s.tail += int64(len(buf))
	s.lastID = stored[len(stored)-1].ID
	s.count += len(stored)

	for _, e := range stored {
		s.config.Logger.Debug("entry appended", "id", e.ID, "directory", e.Directory)
	}
	return stored, nil
}

func (s *Store) rollback() {
	if err := s.file.Truncate(s.tail); err != nil {
		s.config.Logger.Error("failed to roll back partial write", "path", s.Path, "error", err)
	}
}

// refresh decodes records written after s.tail and advances it. It returns
// the size of a trailing partial record, if any.
func (s *Store) refresh() (partial int64, err error) {
	info, err := s.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", s.Path, err)
	}
	size := info.Size()
	if size < s.tail {
		return 0, &core.CorruptError{
			Offset:    size,
			Recovered: s.count,
			Err:       fmt.Errorf("file shrank from %d to %d bytes", s.tail, size),
		}
	}

	rr := NewRecordReader(io.NewSectionReader(s.file, s.tail, size-s.tail))
	lastID := s.lastID
	for {
		e, err := rr.Next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, ErrTruncated) {
			if err := s.checkTail(s.tail+rr.Offset(), size, s.count+rr.Count()); err != nil {
				return 0, err
			}
			partial = size - s.tail - rr.Offset()
			break
		}
		if err == nil && e.ID <= lastID {
			err = fmt.Errorf("%w: id %d after id %d", core.ErrCorrupt, e.ID, lastID)
		}
		if err != nil && !errors.Is(err, core.ErrCorrupt) {
			return 0, fmt.Errorf("read %s: %w", s.Path, err)
		}
		if err != nil {
			return 0, &core.CorruptError{Offset: s.tail + rr.Offset(), Recovered: s.count + rr.Count(), Err: err}
		}
		lastID = e.ID
	}

	s.tail += rr.Offset()
	s.count += rr.Count()
	s.lastID = lastID
	return partial, nil
}

// checkTail inspects the bytes from start to size, which begin with a
// record cut short. They are a torn final write only if no complete record
// follows; otherwise the cut record is damage inside the log.
func (s *Store) checkTail(start, size int64, recovered int) error {
	buf := make([]byte, size-start)
	if _, err := s.file.ReadAt(buf, start); err != nil && err != io.EOF {
		return fmt.Errorf("read %s: %w", s.Path, err)
	}
	if i := findRecord(buf, 1); i >= 0 {
		return &core.CorruptError{
			Offset:    start,
			Recovered: recovered,
			Err:       fmt.Errorf("%w: cut record followed by a complete record at offset %d", core.ErrCorrupt, start+int64(i)),
		}
	}
	return nil
}

// Scan yields every stored entry, oldest first. Each call starts a new pass
// over the file as it is at that moment. A partial record at the very end
// is skipped; any other undecodable record, including a cut record with
// complete ones after it, stops the scan with a *core.CorruptError.
func (s *Store) Scan(ctx context.Context) iter.Seq2[core.Entry, error] {
	return func(yield func(core.Entry, error) bool) {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			yield(core.Entry{}, core.ErrClosed)
			return
		}

		info, err := s.file.Stat()
		if err != nil {
			yield(core.Entry{}, fmt.Errorf("stat %s: %w", s.Path, err))
			return
		}

		rr := NewRecordReader(io.NewSectionReader(s.file, 0, info.Size()))
		var lastID uint64
		for {
			if err := ctx.Err(); err != nil {
				yield(core.Entry{}, err)
				return
			}

			e, err := rr.Next()
			if err == io.EOF {
				return
			}
			if errors.Is(err, ErrTruncated) {
				if err := s.checkTail(rr.Offset(), info.Size(), rr.Count()); err != nil {
					yield(core.Entry{}, err)
					return
				}
				s.config.Logger.Debug("skipping partial trailing record", "path", s.Path, "offset", rr.Offset())
				return
			}
			if err == nil && e.ID <= lastID {
				err = fmt.Errorf("%w: id %d after id %d", core.ErrCorrupt, e.ID, lastID)
			}
			if err != nil && !errors.Is(err, core.ErrCorrupt) {
				yield(core.Entry{}, fmt.Errorf("read %s: %w", s.Path, err))
				return
			}
			if err != nil {
				yield(core.Entry{}, &core.CorruptError{Offset: rr.Offset(), Recovered: rr.Count(), Err: err})
				return
			}
			lastID = e.ID

			if !yield(e, nil) {
				return
			}
		}
	}
}

// NextID is the ID the next Append would assign, as of the last look at
// the file.
func (s *Store) NextID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID + 1
}

var _ core.Repository = (*Store)(nil)
var _ core.Importer = (*Store)(nil)
var _ core.Followable = (*Store)(nil)
