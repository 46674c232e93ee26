package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/featureflow/internal/workflow"
)

func newContext(id string) *workflow.WorkflowContext {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return &workflow.WorkflowContext{
		ID:                 id,
		CreatedAt:          now,
		UpdatedAt:          now,
		Description:        "Add dark mode",
		ProjectPath:        "/tmp/project",
		Phase:              workflow.PhaseInitialized,
		ActiveReviewers:    []string{},
		PendingReviewers:   []string{},
		CompletedReviewers: []string{},
		Reviews:            map[string]workflow.ReviewResult{},
	}
}

func newFileStore(t *testing.T, opts ...FileOption) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), opts...)
	require.NoError(t, err)
	return s
}

// stores runs the shared contract against both implementations.
func stores(t *testing.T) map[string]workflow.Store {
	return map[string]workflow.Store{
		"file":   newFileStore(t),
		"memory": NewMemoryStore(),
	}
}

func TestStore_SaveLoad(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			wc := newContext("dark-mode-0000000a")

			require.NoError(t, s.Save(ctx, wc))
			assert.Equal(t, int64(1), wc.Version)

			got, err := s.Load(ctx, wc.ID)
			require.NoError(t, err)
			assert.Equal(t, wc, got)

			got.Description = "mutated"
			again, err := s.Load(ctx, wc.ID)
			require.NoError(t, err)
			assert.Equal(t, "Add dark mode", again.Description)
		})
	}
}

func TestStore_OptimisticVersioning(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			wc := newContext("dark-mode-0000000b")
			require.NoError(t, s.Save(ctx, wc))

			a, err := s.Load(ctx, wc.ID)
			require.NoError(t, err)
			b, err := s.Load(ctx, wc.ID)
			require.NoError(t, err)

			a.Phase = workflow.PhaseSpecCreated
			require.NoError(t, s.Save(ctx, a))
			assert.Equal(t, int64(2), a.Version)

			b.Phase = workflow.PhaseAborted
			err = s.Save(ctx, b)
			assert.ErrorIs(t, err, workflow.ErrConflict)
			assert.Equal(t, int64(1), b.Version, "failed save must not bump the caller's version")

			got, err := s.Load(ctx, wc.ID)
			require.NoError(t, err)
			assert.Equal(t, workflow.PhaseSpecCreated, got.Phase)

			// Re-creating an existing id is a conflict too.
			assert.ErrorIs(t, s.Save(ctx, newContext(wc.ID)), workflow.ErrConflict)
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Load(ctx, "missing-00000000")
			assert.ErrorIs(t, err, workflow.ErrNotFound)
			assert.ErrorIs(t, s.Archive(ctx, "missing-00000000"), workflow.ErrNotFound)
			assert.ErrorIs(t, s.Delete(ctx, "missing-00000000"), workflow.ErrNotFound)
		})
	}
}

func TestStore_ListArchiveDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{"b-00000002", "a-00000001", "c-00000003"} {
				require.NoError(t, s.Save(ctx, newContext(id)))
			}

			ids, err := s.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a-00000001", "b-00000002", "c-00000003"}, ids)

			require.NoError(t, s.Archive(ctx, "b-00000002"))
			require.NoError(t, s.Delete(ctx, "c-00000003"))

			ids, err = s.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a-00000001"}, ids)

			_, err = s.Load(ctx, "b-00000002")
			assert.ErrorIs(t, err, workflow.ErrNotFound)
		})
	}
}

func TestStore_ConcurrentSavesOneWins(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Save(ctx, newContext("race-00000001")))

			const n = 8
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
			)
			for i := 0; i < n; i++ {
				wc, err := s.Load(ctx, "race-00000001")
				require.NoError(t, err)
				wg.Add(1)
				go func() {
					defer wg.Done()
					if s.Save(ctx, wc) == nil {
						mu.Lock()
						successes++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 1, successes)
		})
	}
}

func TestFileStore_Layout(t *testing.T) {
	stamp := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	s := newFileStore(t, WithFileClock(func() time.Time { return stamp }))
	ctx := context.Background()

	wc := newContext("layout-00000001")
	require.NoError(t, s.Save(ctx, wc))

	active := filepath.Join(s.Root(), "active", "layout-00000001.json")
	info, err := os.Stat(active)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, s.Archive(ctx, wc.ID))
	_, err = os.Stat(active)
	assert.True(t, os.IsNotExist(err))

	archived := filepath.Join(s.Root(), "archive", "20260314T103000Z_layout-00000001.json")
	_, err = os.Stat(archived)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(s.Root(), "active"))
	require.NoError(t, err)
	assert.Empty(t, entries, "no temp files left behind")
}

func TestFileStore_ListArchivedChronological(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newFileStore(t, WithFileClock(func() time.Time { return clock }))
	ctx := context.Background()

	for _, id := range []string{"zeta-00000001", "alpha-00000002"} {
		require.NoError(t, s.Save(ctx, newContext(id)))
		require.NoError(t, s.Archive(ctx, id))
		clock = clock.Add(time.Hour)
	}
	// Noise in the archive directory is ignored.
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "archive", "notes.txt"), []byte("x"), 0o600))

	entries, err := s.ListArchived(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "zeta-00000001", entries[0].ID)
	assert.Equal(t, "alpha-00000002", entries[1].ID)
	assert.True(t, entries[0].ArchivedAt.Before(entries[1].ArchivedAt))

	wc, err := s.LoadArchived(ctx, "alpha-00000002")
	require.NoError(t, err)
	assert.Equal(t, "alpha-00000002", wc.ID)

	_, err = s.LoadArchived(ctx, "gone-00000009")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestFileStore_CorruptDocument(t *testing.T) {
	s := newFileStore(t)
	path := filepath.Join(s.Root(), "active", "broken-00000001.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := s.Load(context.Background(), "broken-00000001")
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestFileStore_SharedRoot(t *testing.T) {
	root := t.TempDir()
	a, err := NewFileStore(root)
	require.NoError(t, err)
	b, err := NewFileStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	wc := newContext("shared-00000001")
	require.NoError(t, a.Save(ctx, wc))

	stale, err := b.Load(ctx, wc.ID)
	require.NoError(t, err)
	require.NoError(t, a.Save(ctx, wc))
	assert.ErrorIs(t, b.Save(ctx, stale), workflow.ErrConflict)
}

func TestFileStore_RejectsInvalidIDs(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	wc := newContext("../escape")
	assert.Error(t, s.Save(ctx, wc))

	_, err := s.Load(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestFileStore_CancelledContext(t *testing.T) {
	s := newFileStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Save(ctx, newContext("ctx-00000001")), context.Canceled)
	_, err := s.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewFileStore_RequiresRoot(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}

func TestMemoryStore_LoadArchived(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, newContext("mem-00000001")))
	require.NoError(t, s.Archive(ctx, "mem-00000001"))

	wc, err := s.LoadArchived(ctx, "mem-00000001")
	require.NoError(t, err)
	assert.Equal(t, int64(1), wc.Version)

	_, err = s.LoadArchived(ctx, "mem-00000002")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}
