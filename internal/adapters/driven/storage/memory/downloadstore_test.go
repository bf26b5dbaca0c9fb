package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
)

func TestDownloadStore_TasksOrderedByPriority(t *testing.T) {
	store := NewDownloadStore()
	ctx := context.Background()

	require.NoError(t, store.SaveTasks(ctx,
		domain.DownloadTask{ChapterID: 3, BookID: 1, Priority: 1},
		domain.DownloadTask{ChapterID: 2, BookID: 1, Priority: 0, SourceID: 7, ChapterKey: "/c/2"},
		domain.DownloadTask{ChapterID: 1, BookID: 1, Priority: 1},
	))

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, []int64{2, 1, 3}, []int64{tasks[0].ChapterID, tasks[1].ChapterID, tasks[2].ChapterID})
	assert.Equal(t, "/c/2", tasks[0].ChapterKey)
	assert.Equal(t, int64(7), tasks[0].SourceID)
}

func TestDownloadStore_DeleteKeepsChapterRecord(t *testing.T) {
	store := NewDownloadStore()
	ctx := context.Background()

	require.NoError(t, store.SaveTasks(ctx, domain.DownloadTask{ChapterID: 1, BookID: 1, ChapterKey: "/c/1"}))
	require.NoError(t, store.DeleteTasks(ctx, 1, 2))

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	require.NoError(t, store.SaveTasks(ctx, domain.DownloadTask{ChapterID: 1, BookID: 1}))
	tasks, err = store.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "/c/1", tasks[0].ChapterKey)
}

func TestDownloadStore_CacheEntries(t *testing.T) {
	store := NewDownloadStore()
	ctx := context.Background()

	entry, err := store.GetCacheEntry(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, entry)

	require.NoError(t, store.SaveCacheEntry(ctx, domain.DownloadCacheEntry{ChapterID: 2, Path: "b", Valid: true}))
	require.NoError(t, store.SaveCacheEntry(ctx, domain.DownloadCacheEntry{ChapterID: 1, Path: "a", Valid: true, CachedAt: time.Unix(10, 0)}))

	entry, err = store.GetCacheEntry(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.False(t, entry.CachedAt.IsZero())

	require.NoError(t, store.InvalidateCacheEntry(ctx, 2))
	assert.ErrorIs(t, store.InvalidateCacheEntry(ctx, 9), domain.ErrNotFound)

	entries, err := store.ListCacheEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].ChapterID)
	assert.False(t, entries[1].Valid)

	n, err := store.DeleteInvalidCacheEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.DeleteCacheEntry(ctx, 1))
	entries, err = store.ListCacheEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
