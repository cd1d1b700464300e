package cachestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskcache/domain"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache", "tasks.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestLoadEmptyCollection(t *testing.T) {
	store, _ := openTestStore(t)

	tasks, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)

	raw, err := store.Raw(context.Background())
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestReplaceKeepsOrderAndSurvivesReopen(t *testing.T) {
	store, path := openTestStore(t)
	ctx := context.Background()
	due := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	in := []domain.Task{
		{ID: domain.AuthoritativeID("r2"), Title: "Replace filters", Status: domain.StatusPending, DueAt: due},
		{ID: domain.AuthoritativeID("r1"), Title: "Check boiler", Status: domain.StatusCompleted, DueAt: due},
		{ID: domain.PendingID("tok"), Title: "Inspect roof", Status: domain.StatusPending, DueAt: due},
	}
	require.NoError(t, store.Replace(ctx, in))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	out, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i := range in {
		assert.Equal(t, in[i].ID, out[i].ID)
		assert.Equal(t, in[i].Title, out[i].Title)
		assert.True(t, in[i].DueAt.Equal(out[i].DueAt))
	}

	info, err := reopened.Info()
	require.NoError(t, err)
	assert.Equal(t, 3, info.Tasks)
	assert.Equal(t, 1, info.Pending)
	assert.False(t, info.LastWrite.IsZero())
	assert.True(t, info.LastSync.IsZero())
}

func TestReplaceWithNilWritesEmptyCollection(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, []domain.Task{{ID: domain.AuthoritativeID("r1"), Title: "x"}}))
	require.NoError(t, store.Replace(ctx, nil))

	raw, err := store.Raw(ctx)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestMarkSynced(t *testing.T) {
	store, _ := openTestStore(t)
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.MarkSynced(context.Background(), at))

	info, err := store.Info()
	require.NoError(t, err)
	assert.True(t, at.Equal(info.LastSync))
}

func TestCancelledContextDoesNotWrite(t *testing.T) {
	store, _ := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Replace(ctx, []domain.Task{{ID: domain.AuthoritativeID("r1"), Title: "x"}})
	assert.ErrorIs(t, err, context.Canceled)

	raw, err := store.Raw(context.Background())
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestClosedStoreReportsNotOpen(t *testing.T) {
	var store *Store
	_, err := store.Load(context.Background())
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}
