package platform_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/dlog/internal/platform"
	"github.com/aretw0/dlog/pkg/adapters/fs"
	"github.com/aretw0/dlog/pkg/core"
)

func setupService(t *testing.T, opts ...platform.Option) (*core.Service, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config", "dlog", "dlog.log")
	baseOpts := []platform.Option{platform.WithAutoInit(true)}

	svc, err := platform.New(path, append(baseOpts, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc, path
}

func TestNew_WriteAndQuery(t *testing.T) {
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, path := setupService(t, platform.WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	ctx := context.Background()

	_, err := os.Stat(path)
	require.NoError(t, err, "auto init creates the log file")

	project := t.TempDir()
	for _, msg := range []string{"first", "second", "third"} {
		_, err := svc.Write(ctx, core.WriteRequest{Directory: project, Message: msg})
		require.NoError(t, err)
	}
	_, err = svc.Write(ctx, core.WriteRequest{Directory: filepath.Join(project, "sub"), Message: "nested", Tags: []string{"x"}})
	require.NoError(t, err)

	got, err := svc.Query(ctx, core.Filter{Anchor: project})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "third", got[0].Message)

	got, err = svc.Query(ctx, core.Filter{Anchor: project, Scope: core.ScopeRecursive, Limit: core.NoLimit})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "nested", got[0].Message)

	got, err = svc.Query(ctx, core.Filter{Anchor: project, Scope: core.ScopeRecursive, RequireTags: true, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"x"}, got[0].Tags)
}

func TestNew_WithoutAutoInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dlog.log")

	_, err := platform.New(path)
	require.ErrorIs(t, err, core.ErrUnwritable)

	_, err = os.Stat(filepath.Dir(path))
	assert.True(t, os.IsNotExist(err), "nothing is created without auto init")
}

func TestNew_CaseInsensitive(t *testing.T) {
	ctx := context.Background()

	for _, insensitive := range []bool{true, false} {
		svc, _ := setupService(t, platform.WithCaseInsensitive(insensitive))
		assert.Equal(t, insensitive, svc.Matcher().CaseInsensitive)

		_, err := svc.Write(ctx, core.WriteRequest{Directory: "/Work/Proj", Message: "m"})
		require.NoError(t, err)

		got, err := svc.Query(ctx, core.Filter{Anchor: "/work/proj"})
		require.NoError(t, err)
		assert.Equal(t, insensitive, len(got) == 1)
	}
}

func TestNew_WithRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlog.log")
	store, err := fs.Open(fs.Config{Path: path})
	require.NoError(t, err)

	svc, err := platform.New("/ignored/when/injected", platform.WithRepository(store))
	require.NoError(t, err)
	defer svc.Close()

	state, ok := svc.State().(core.ServiceState)
	require.True(t, ok)
	assert.Equal(t, "logfile", state.RepositoryType)
}

func TestNew_ConfigOptions(t *testing.T) {
	dir := t.TempDir()
	cfg := platform.DefaultConfig(dir)
	cfg.LockRetries = 9
	cfg.LockBackoff = 3 * time.Millisecond

	svc, err := platform.New(cfg.StorePath, append(cfg.Options(), platform.WithAutoInit(true))...)
	require.NoError(t, err)
	defer svc.Close()

	state := svc.State().(core.ServiceState)
	storeState, ok := state.Repository.(fs.StoreState)
	require.True(t, ok)
	assert.Equal(t, 9, storeState.LockRetries)
	assert.Equal(t, "3ms", storeState.LockBackoff)
	assert.Equal(t, cfg.StorePath, storeState.Path)
}

func TestVanishedDirectories(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	kept := t.TempDir()
	removed := filepath.Join(t.TempDir(), "gone")
	require.NoError(t, os.Mkdir(removed, 0o755))

	for _, dir := range []string{kept, removed, removed} {
		_, err := svc.Write(ctx, core.WriteRequest{Directory: dir, Message: "m"})
		require.NoError(t, err)
	}
	require.NoError(t, os.Remove(removed))

	gone, err := platform.VanishedDirectories(ctx, svc)
	require.NoError(t, err)
	assert.Equal(t, []string{removed}, gone)

	// Entries of vanished directories are still there.
	got, err := svc.Query(ctx, core.Filter{Anchor: removed, Limit: core.NoLimit})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
