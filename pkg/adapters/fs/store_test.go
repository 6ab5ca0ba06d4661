package fs_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/dlog/pkg/adapters/fs"
	"github.com/aretw0/dlog/pkg/core"
)

// setupStore opens a store in a fresh temp dir.
// Options tweak the config before opening.
func setupStore(t *testing.T, opts ...func(*fs.Config)) (*fs.Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "dlog.log")
	return openStore(t, path, opts...), path
}

func openStore(t *testing.T, path string, opts ...func(*fs.Config)) *fs.Store {
	t.Helper()

	cfg := fs.Config{Path: path}
	for _, opt := range opts {
		opt(&cfg)
	}

	s, err := fs.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func scanAll(t *testing.T, s *fs.Store) []core.Entry {
	t.Helper()

	var out []core.Entry
	for e, err := range s.Scan(context.Background()) {
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func TestStore_AppendAndScan(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 1, 15, 10, 0, 0, 0, time.FixedZone("BRT", -3*3600))
	s, _ := setupStore(t, func(c *fs.Config) {
		c.Now = func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}
	})

	assert.Equal(t, uint64(1), s.NextID())

	first, err := s.Append(ctx, "/home/a/proj/", "fixed login", []string{" auth ", "feature", "auth", ""})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.ID)
	assert.Equal(t, "/home/a/proj", first.Directory, "directory is stored cleaned")
	assert.Equal(t, []string{"auth", "feature"}, first.Tags)
	assert.Equal(t, time.UTC, first.CreatedAt.Location())
	assert.True(t, first.CreatedAt.Equal(time.Date(2024, 1, 15, 13, 1, 0, 0, time.UTC)))

	for i := 2; i <= 5; i++ {
		e, err := s.Append(ctx, "/home/a", "entry", nil)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), e.ID)
		assert.Nil(t, e.Tags)
	}

	got := scanAll(t, s)
	require.Len(t, got, 5)
	assert.Equal(t, first, got[0])
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].ID, got[i-1].ID)
	}
	assert.Equal(t, uint64(6), s.NextID())
}

func TestStore_MessagePreservedVerbatim(t *testing.T) {
	s, _ := setupStore(t)
	msg := "  line one\n\n\tline \"two\" \\ ✓\n"

	_, err := s.Append(context.Background(), "/w", msg, nil)
	require.NoError(t, err)

	got := scanAll(t, s)
	require.Len(t, got, 1)
	assert.Equal(t, msg, got[0].Message)
}

func TestStore_AppendValidation(t *testing.T) {
	s, path := setupStore(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		directory string
		message   string
	}{
		{"Empty Directory", "", "msg"},
		{"Relative Directory", "home/a", "msg"},
		{"Empty Message", "/home/a", ""},
		{"Blank Message", "/home/a", " \n\t "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Append(ctx, tt.directory, tt.message, nil)
			require.ErrorIs(t, err, core.ErrValidation)

			var verr *core.ValidationError
			assert.True(t, errors.As(err, &verr))
		})
	}

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size(), "rejected writes must not touch the file")
}

func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	s, path := setupStore(t)

	for range 3 {
		_, err := s.Append(ctx, "/a", "m", nil)
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	reopened := openStore(t, path)
	assert.Equal(t, uint64(4), reopened.NextID())

	e, err := reopened.Append(ctx, "/a", "after reopen", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), e.ID)
	assert.Len(t, scanAll(t, reopened), 4)
}

func TestStore_Open(t *testing.T) {
	t.Run("Missing Parent Directory", func(t *testing.T) {
		_, err := fs.Open(fs.Config{Path: filepath.Join(t.TempDir(), "nope", "dlog.log")})
		require.ErrorIs(t, err, core.ErrUnwritable)
	})

	t.Run("Parent Is A File", func(t *testing.T) {
		parent := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(parent, []byte("x"), 0o600))

		_, err := fs.Open(fs.Config{Path: filepath.Join(parent, "dlog.log")})
		require.ErrorIs(t, err, core.ErrUnwritable)
	})

	t.Run("Empty Store", func(t *testing.T) {
		s, _ := setupStore(t)
		assert.Empty(t, scanAll(t, s))
	})
}

func TestEnsureInitialized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "er", "dlog.log")

	require.NoError(t, fs.EnsureInitialized(path))
	s := openStore(t, path)
	_, err := s.Append(context.Background(), "/a", "kept", nil)
	require.NoError(t, err)

	// Second call must not clobber existing entries.
	require.NoError(t, fs.EnsureInitialized(path))
	assert.Len(t, scanAll(t, s), 1)

	t.Run("Unwritable", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "blocker")
		require.NoError(t, os.WriteFile(blocker, nil, 0o600))

		err := fs.EnsureInitialized(filepath.Join(blocker, "sub", "dlog.log"))
		require.ErrorIs(t, err, core.ErrUnwritable)
	})
}

func TestStore_TrailingPartialRecord(t *testing.T) {
	ctx := context.Background()
	s, path := setupStore(t)

	for range 3 {
		_, err := s.Append(ctx, "/a", "complete", nil)
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	// Simulate a writer that crashed mid-record.
	rec, err := fs.EncodeRecord(core.Entry{ID: 4, CreatedAt: time.Now(), Directory: "/a", Message: "lost"})
	require.NoError(t, err)
	healthy := fileSize(t, path)
	appendBytes(t, path, rec[:len(rec)/2])

	reopened := openStore(t, path)
	assert.Len(t, scanAll(t, reopened), 3, "partial record is invisible")
	assert.Equal(t, uint64(4), reopened.NextID())

	e, err := reopened.Append(ctx, "/a", "next", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), e.ID)

	got := scanAll(t, reopened)
	require.Len(t, got, 4)
	assert.Equal(t, "next", got[3].Message)

	next, err := fs.EncodeRecord(e)
	require.NoError(t, err)
	assert.Equal(t, healthy+int64(len(next)), fileSize(t, path), "partial bytes were cut before appending")
}

func TestStore_TrailingPartialWrittenByOtherHandle(t *testing.T) {
	ctx := context.Background()
	s, path := setupStore(t)

	_, err := s.Append(ctx, "/a", "one", nil)
	require.NoError(t, err)

	rec, err := fs.EncodeRecord(core.Entry{ID: 2, CreatedAt: time.Now(), Directory: "/a", Message: "half"})
	require.NoError(t, err)
	appendBytes(t, path, rec[:3])

	assert.Len(t, scanAll(t, s), 1)

	e, err := s.Append(ctx, "/a", "two", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e.ID)
	assert.Len(t, scanAll(t, s), 2)
}

func TestStore_CorruptMiddleRecord(t *testing.T) {
	ctx := context.Background()
	s, path := setupStore(t)

	for _, msg := range []string{"first", "second", "third"} {
		_, err := s.Append(ctx, "/a", msg, nil)
		require.NoError(t, err)
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	_, firstLen, err := fs.DecodeRecord(data)
	require.NoError(t, err)

	// Flip a payload byte of the second record.
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{data[firstLen+12] ^ 0xFF}, int64(firstLen+12))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	t.Run("Scan", func(t *testing.T) {
		var got []core.Entry
		var scanErr error
		for e, err := range s.Scan(ctx) {
			if err != nil {
				scanErr = err
				break
			}
			got = append(got, e)
		}

		require.Len(t, got, 1)
		assert.Equal(t, "first", got[0].Message)
		require.ErrorIs(t, scanErr, core.ErrCorrupt)

		var cerr *core.CorruptError
		require.True(t, errors.As(scanErr, &cerr))
		assert.Equal(t, int64(firstLen), cerr.Offset)
		assert.Equal(t, 1, cerr.Recovered)
	})

	t.Run("Open", func(t *testing.T) {
		_, err := fs.Open(fs.Config{Path: path})
		require.ErrorIs(t, err, core.ErrCorrupt)
		assert.False(t, errors.Is(err, fs.ErrTruncated))
	})

	t.Run("Query", func(t *testing.T) {
		_, err := core.Query(ctx, s, core.HostMatcher(), core.Filter{Limit: core.NoLimit, Anchor: "/a"})
		require.ErrorIs(t, err, core.ErrCorrupt)
	})
}

func TestStore_CutMiddleRecord(t *testing.T) {
	ctx := context.Background()
	src, srcPath := setupStore(t)
	for _, msg := range []string{strings.Repeat("long entry ", 100), "second", "third"} {
		_, err := src.Append(ctx, "/a", msg, nil)
		require.NoError(t, err)
	}

	// s is open on an empty file, so it reads the damage from the start.
	s, path := setupStore(t)

	data, err := os.ReadFile(srcPath)
	require.NoError(t, err)
	_, firstLen, err := fs.DecodeRecord(data)
	require.NoError(t, err)

	// Drop the second half of the first record; the other two stay intact
	// but now sit inside the length the first header announces.
	damaged := append(bytes.Clone(data[:firstLen/2]), data[firstLen:]...)
	require.Less(t, len(damaged), firstLen, "cut record must claim more bytes than the file holds")
	require.NoError(t, os.WriteFile(path, damaged, 0o600))

	t.Run("Scan", func(t *testing.T) {
		var got []core.Entry
		var scanErr error
		for e, err := range s.Scan(ctx) {
			if err != nil {
				scanErr = err
				break
			}
			got = append(got, e)
		}

		assert.Empty(t, got)
		require.ErrorIs(t, scanErr, core.ErrCorrupt)

		var cerr *core.CorruptError
		require.True(t, errors.As(scanErr, &cerr))
		assert.Equal(t, int64(0), cerr.Offset)
		assert.Equal(t, 0, cerr.Recovered)
	})

	t.Run("Open", func(t *testing.T) {
		_, err := fs.Open(fs.Config{Path: path})
		require.ErrorIs(t, err, core.ErrCorrupt)
	})

	t.Run("Append Leaves File Untouched", func(t *testing.T) {
		_, err := s.Append(ctx, "/a", "fourth", nil)
		require.ErrorIs(t, err, core.ErrCorrupt)

		after, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, damaged, after)
	})
}

func TestStore_NonIncreasingIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlog.log")
	now := time.Now().UTC()

	for _, id := range []uint64{1, 3, 2} {
		rec, err := fs.EncodeRecord(core.Entry{ID: id, CreatedAt: now, Directory: "/a", Message: "m"})
		require.NoError(t, err)
		appendBytes(t, path, rec)
	}

	_, err := fs.Open(fs.Config{Path: path})
	var cerr *core.CorruptError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 2, cerr.Recovered)
}

func TestStore_Import(t *testing.T) {
	ctx := context.Background()
	s, _ := setupStore(t)

	_, err := s.Append(ctx, "/a", "existing", nil)
	require.NoError(t, err)

	old := time.Date(2020, 5, 1, 8, 0, 0, 0, time.FixedZone("X", 3600))
	stored, err := s.Import(ctx, []core.Entry{
		{ID: 99, CreatedAt: old, Directory: "/b", Message: "legacy one", Tags: []string{"z", "a"}},
		{CreatedAt: old.Add(time.Hour), Directory: "/b/c", Message: "legacy two"},
	})
	require.NoError(t, err)
	require.Len(t, stored, 2)

	assert.Equal(t, uint64(2), stored[0].ID, "ids are reassigned")
	assert.Equal(t, uint64(3), stored[1].ID)
	assert.True(t, stored[0].CreatedAt.Equal(old))
	assert.Equal(t, []string{"a", "z"}, stored[0].Tags)

	got := scanAll(t, s)
	require.Len(t, got, 3)
	assert.Equal(t, stored, got[1:])

	t.Run("Requires Timestamp", func(t *testing.T) {
		_, err := s.Import(ctx, []core.Entry{{Directory: "/b", Message: "m"}})
		require.ErrorIs(t, err, core.ErrValidation)
		assert.Len(t, scanAll(t, s), 3)
	})

	t.Run("Empty Batch", func(t *testing.T) {
		stored, err := s.Import(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, stored)
	})
}

func TestStore_Closed(t *testing.T) {
	s, _ := setupStore(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	_, err := s.Append(context.Background(), "/a", "m", nil)
	require.ErrorIs(t, err, core.ErrClosed)

	for _, err := range s.Scan(context.Background()) {
		require.ErrorIs(t, err, core.ErrClosed)
	}
}

func TestStore_ScanHonorsContext(t *testing.T) {
	s, _ := setupStore(t)
	for range 3 {
		_, err := s.Append(context.Background(), "/a", "m", nil)
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var seen int
	var scanErr error
	for _, err := range s.Scan(ctx) {
		if err != nil {
			scanErr = err
			break
		}
		seen++
	}
	assert.Zero(t, seen)
	assert.ErrorIs(t, scanErr, context.Canceled)
}

func TestStore_ConcurrentHandles(t *testing.T) {
	const (
		writers   = 4
		perWriter = 25
	)
	path := filepath.Join(t.TempDir(), "dlog.log")

	stores := make([]*fs.Store, writers)
	for i := range stores {
		stores[i] = openStore(t, path, func(c *fs.Config) {
			c.LockRetries = 50
			c.LockBackoff = time.Millisecond
		})
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uint64]bool)
	)
	for _, s := range stores {
		wg.Add(1)
		go func(s *fs.Store) {
			defer wg.Done()
			for range perWriter {
				e, err := s.Append(context.Background(), "/a", "parallel", nil)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				assert.False(t, seen[e.ID], "id %d assigned twice", e.ID)
				seen[e.ID] = true
				mu.Unlock()
			}
		}(s)
	}
	wg.Wait()

	got := scanAll(t, stores[0])
	require.Len(t, got, writers*perWriter)
	for i, e := range got {
		assert.Equal(t, uint64(i+1), e.ID)
	}
}

func TestStore_ConcurrentAppendsSameHandle(t *testing.T) {
	s, _ := setupStore(t)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Append(context.Background(), "/a", "m", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, scanAll(t, s), 20)
	assert.Equal(t, uint64(21), s.NextID())
}

func TestStore_State(t *testing.T) {
	s, path := setupStore(t)
	for range 2 {
		_, err := s.Append(context.Background(), "/a", "m", nil)
		require.NoError(t, err)
	}

	state, ok := s.State().(fs.StoreState)
	require.True(t, ok)
	assert.Equal(t, path, state.Path)
	assert.Equal(t, 2, state.Entries)
	assert.Equal(t, uint64(3), state.NextID)
	assert.Equal(t, fileSize(t, path), state.SizeBytes)
	assert.False(t, state.Closed)
	assert.Equal(t, "logfile", s.ComponentType())
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.Size()
}

func appendBytes(t *testing.T, path string, b []byte) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	require.NoError(t, err)
	_, err = f.Write(b)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}
