package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
)

func newSchedulerStore(t *testing.T) driven.SchedulerStore {
	t.Helper()
	store, cleanup := setupTestStore(t)
	t.Cleanup(cleanup)
	return store.SchedulerStore()
}

// recordRuns stores n sweep results one minute apart, the i-th having
// swept i+1 paths.
func recordRuns(t *testing.T, s driven.SchedulerStore, taskID string, n int) {
	t.Helper()
	base := time.Now().UTC().Truncate(time.Second)
	for i := range n {
		started := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.RecordResult(context.Background(), &domain.TaskResult{
			TaskID:         taskID,
			StartedAt:      started,
			EndedAt:        started.Add(2 * time.Second),
			Success:        true,
			ItemsProcessed: i + 1,
		}))
	}
}

func TestSchedulerStore_TaskRoundTrip(t *testing.T) {
	s := newSchedulerStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	sweep := &domain.ScheduledTask{
		ID:          domain.TaskIDPendingSweep,
		Name:        "Sweep pending deletions",
		Interval:    10 * time.Minute,
		LastRun:     now.Add(-10 * time.Minute),
		NextRun:     now,
		LastSuccess: now.Add(-10 * time.Minute),
		Enabled:     true,
	}
	require.NoError(t, s.SaveTask(ctx, sweep))

	got, err := s.GetTask(ctx, domain.TaskIDPendingSweep)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sweep.Name, got.Name)
	assert.Equal(t, sweep.Interval, got.Interval)
	assert.True(t, got.Enabled)
	assert.WithinDuration(t, sweep.LastRun, got.LastRun, time.Second)
	assert.WithinDuration(t, sweep.NextRun, got.NextRun, time.Second)
	assert.True(t, got.IsDue(now))

	sweep.LastError = "remove /pkgs/foo: permission denied"
	sweep.Enabled = false
	require.NoError(t, s.SaveTask(ctx, sweep))
	got, err = s.GetTask(ctx, domain.TaskIDPendingSweep)
	require.NoError(t, err)
	assert.Equal(t, sweep.LastError, got.LastError)
	assert.False(t, got.Enabled)
}

func TestSchedulerStore_NewTaskKeepsZeroTimes(t *testing.T) {
	s := newSchedulerStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTask(ctx, &domain.ScheduledTask{
		ID: domain.TaskIDCacheCleanup, Name: "Clean download cache", Interval: 6 * time.Hour, Enabled: true,
	}))

	got, err := s.GetTask(ctx, domain.TaskIDCacheCleanup)
	require.NoError(t, err)
	assert.True(t, got.LastRun.IsZero())
	assert.True(t, got.NextRun.IsZero())
	assert.True(t, got.LastSuccess.IsZero())
}

func TestSchedulerStore_MissingTask(t *testing.T) {
	s := newSchedulerStore(t)

	got, err := s.GetTask(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSchedulerStore_NilArguments(t *testing.T) {
	s := newSchedulerStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.SaveTask(ctx, nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, s.RecordResult(ctx, nil), domain.ErrInvalidInput)
}

func TestSchedulerStore_ListTasksOrderedByID(t *testing.T) {
	s := newSchedulerStore(t)
	ctx := context.Background()

	tasks, err := s.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	for _, id := range []string{domain.TaskIDPendingSweep, domain.TaskIDCacheCleanup} {
		require.NoError(t, s.SaveTask(ctx, &domain.ScheduledTask{ID: id, Name: id, Interval: time.Hour}))
	}
	tasks, err = s.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, domain.TaskIDCacheCleanup, tasks[0].ID)
	assert.Equal(t, domain.TaskIDPendingSweep, tasks[1].ID)
}

func TestSchedulerStore_HistoryNewestFirst(t *testing.T) {
	s := newSchedulerStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveTask(ctx, &domain.ScheduledTask{ID: domain.TaskIDPendingSweep, Interval: time.Hour}))

	history, err := s.GetTaskHistory(ctx, domain.TaskIDPendingSweep, 10)
	require.NoError(t, err)
	assert.Empty(t, history)

	recordRuns(t, s, domain.TaskIDPendingSweep, 2)
	require.NoError(t, s.RecordResult(ctx, &domain.TaskResult{
		TaskID:    domain.TaskIDPendingSweep,
		StartedAt: time.Now().UTC().Add(time.Hour),
		EndedAt:   time.Now().UTC().Add(time.Hour),
		Error:     "permission denied",
	}))

	history, err = s.GetTaskHistory(ctx, domain.TaskIDPendingSweep, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.False(t, history[0].Success)
	assert.Equal(t, "permission denied", history[0].Error)
	assert.Equal(t, 2, history[1].ItemsProcessed)
	assert.Equal(t, 1, history[2].ItemsProcessed)

	history, err = s.GetTaskHistory(ctx, domain.TaskIDPendingSweep, 2)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSchedulerStore_PruneKeepsNewestPerTask(t *testing.T) {
	s := newSchedulerStore(t)
	ctx := context.Background()
	recordRuns(t, s, domain.TaskIDPendingSweep, 10)
	recordRuns(t, s, domain.TaskIDCacheCleanup, 2)

	require.NoError(t, s.PruneHistory(ctx, 3))

	sweeps, err := s.GetTaskHistory(ctx, domain.TaskIDPendingSweep, 100)
	require.NoError(t, err)
	require.Len(t, sweeps, 3)
	assert.Equal(t, []int{10, 9, 8},
		[]int{sweeps[0].ItemsProcessed, sweeps[1].ItemsProcessed, sweeps[2].ItemsProcessed})

	cleanups, err := s.GetTaskHistory(ctx, domain.TaskIDCacheCleanup, 100)
	require.NoError(t, err)
	assert.Len(t, cleanups, 2)
}

func TestSchedulerStore_DeleteTaskDropsHistory(t *testing.T) {
	s := newSchedulerStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveTask(ctx, &domain.ScheduledTask{ID: domain.TaskIDCacheCleanup, Interval: time.Hour}))
	recordRuns(t, s, domain.TaskIDCacheCleanup, 1)

	require.NoError(t, s.DeleteTask(ctx, domain.TaskIDCacheCleanup))

	got, err := s.GetTask(ctx, domain.TaskIDCacheCleanup)
	require.NoError(t, err)
	assert.Nil(t, got)
	history, err := s.GetTaskHistory(ctx, domain.TaskIDCacheCleanup, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}
