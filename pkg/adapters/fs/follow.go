package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/dlog/pkg/core"
)

// Follow streams entries appended to the log file after the call, by this
// or any other process. The channel is closed when ctx is done or the
// follower fails; failures are logged.
func (s *Store) Follow(ctx context.Context) (<-chan core.Entry, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, core.ErrClosed
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: some platforms drop file watches on truncate.
	if err := watcher.Add(filepath.Dir(s.Path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", s.Path, err)
	}

	f := &follower{store: s, out: make(chan core.Entry)}
	if err := f.catchUp(nil); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(f.out)
		defer watcher.Close()
		return f.run(ctx, watcher)
	}, lifecycle.WithErrorHandler(func(err error) {
		s.config.Logger.Error("follow stopped", "path", s.Path, "error", err)
	}))

	return f.out, nil
}

type follower struct {
	store  *Store
	out    chan core.Entry
	offset int64
	lastID uint64
}

func (f *follower) run(ctx context.Context, watcher *fsnotify.Watcher) error {
	target := filepath.Clean(f.store.Path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			f.store.config.Logger.Debug("log file changed", "op", event.Op.String())

			if err := f.catchUp(func(e core.Entry) bool {
				select {
				case f.out <- e:
					return true
				case <-ctx.Done():
					return false
				}
			}); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("watcher errors channel closed")
			}
			f.store.config.Logger.Error("fsnotify error", "error", err)
		}
	}
}

// catchUp decodes complete records past f.offset and hands them to emit.
// A nil emit only advances the offset. A record still being written is
// left for the next change notification.
func (f *follower) catchUp(emit func(core.Entry) bool) error {
	info, err := f.store.file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", f.store.Path, err)
	}
	size := info.Size()
	if size < f.offset {
		return &core.CorruptError{Offset: size, Err: fmt.Errorf("file shrank from %d to %d bytes", f.offset, size)}
	}

	rr := NewRecordReader(io.NewSectionReader(f.store.file, f.offset, size-f.offset))
	defer func() { f.offset += rr.Offset() }()

	for {
		e, err := rr.Next()
		if err == io.EOF {
			return nil
		}
		if errors.Is(err, ErrTruncated) {
			return f.store.checkTail(f.offset+rr.Offset(), size, rr.Count())
		}
		if err == nil && e.ID <= f.lastID {
			err = fmt.Errorf("%w: id %d after id %d", core.ErrCorrupt, e.ID, f.lastID)
		}
		if err != nil {
			return &core.CorruptError{Offset: f.offset + rr.Offset(), Recovered: rr.Count(), Err: err}
		}
		f.lastID = e.ID

		if emit != nil && !emit(e) {
			return nil
		}
	}
}
