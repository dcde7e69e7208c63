package taskstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/anthropic-go/agentruntime/taskstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]taskstore.Store {
	t.Helper()
	fs, err := taskstore.NewFileStore(t.TempDir(), "ns")
	require.NoError(t, err)
	return map[string]taskstore.Store{
		"memory": taskstore.NewMemoryStore("ns"),
		"file":   fs,
	}
}

func newTestTask(id string) *taskstore.Task {
	return &taskstore.Task{
		ID:           id,
		SubagentType: "researcher",
		Description:  "look into it",
		Status:       taskstore.StatusPending,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			task := newTestTask("task_1")
			require.NoError(t, store.Save(ctx, task))

			loaded, err := store.Load(ctx, "task_1")
			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, "task_1", loaded.ID)
			assert.Equal(t, "researcher", loaded.SubagentType)
			assert.Equal(t, taskstore.StatusPending, loaded.Status)
			assert.False(t, loaded.CreatedAt.IsZero())
			assert.False(t, loaded.UpdatedAt.IsZero())
		})
	}
}

func TestLoadMissingIsNotError(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			loaded, err := store.Load(context.Background(), "nope")
			require.NoError(t, err)
			assert.Nil(t, loaded)
		})
	}
}

func TestDeleteReportsExistence(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Save(ctx, newTestTask("task_del")))

			existed, err := store.Delete(ctx, "task_del")
			require.NoError(t, err)
			assert.True(t, existed)

			existed, err = store.Delete(ctx, "task_del")
			require.NoError(t, err)
			assert.False(t, existed)
		})
	}
}

func TestListWithStatusFilter(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			pending := newTestTask("task_p")
			running := newTestTask("task_r")
			running.Status = taskstore.StatusRunning
			require.NoError(t, store.Save(ctx, pending))
			require.NoError(t, store.Save(ctx, running))

			status := taskstore.StatusRunning
			results, err := store.List(ctx, taskstore.Filter{Status: &status})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "task_r", results[0].ID)
		})
	}
}

func TestListWithSubagentTypeFilter(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := newTestTask("task_a")
			a.SubagentType = "coder"
			b := newTestTask("task_b")
			b.SubagentType = "reviewer"
			require.NoError(t, store.Save(ctx, a))
			require.NoError(t, store.Save(ctx, b))

			kind := "reviewer"
			results, err := store.List(ctx, taskstore.Filter{SubagentType: &kind})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "task_b", results[0].ID)
		})
	}
}

func TestCleanupOnlyRemovesExpiredTerminalTasks(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			longAgo := time.Now().Add(-time.Hour)
			done := newTestTask("task_done")
			done.Status = taskstore.StatusCompleted
			done.CompletedAt = &longAgo
			require.NoError(t, store.Save(ctx, done))

			stillPending := newTestTask("task_pending")
			require.NoError(t, store.Save(ctx, stillPending))

			recent := time.Now()
			recentlyDone := newTestTask("task_recent")
			recentlyDone.Status = taskstore.StatusFailed
			recentlyDone.CompletedAt = &recent
			require.NoError(t, store.Save(ctx, recentlyDone))

			removed, err := store.Cleanup(ctx, time.Minute)
			require.NoError(t, err)
			assert.Equal(t, 1, removed)

			loaded, err := store.Load(ctx, "task_done")
			require.NoError(t, err)
			assert.Nil(t, loaded)

			loaded, err = store.Load(ctx, "task_pending")
			require.NoError(t, err)
			assert.NotNil(t, loaded, "pending tasks never expire")

			loaded, err = store.Load(ctx, "task_recent")
			require.NoError(t, err)
			assert.NotNil(t, loaded, "recently completed task is within ttl")
		})
	}
}

func TestCleanupZeroTTLIsNoOp(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			longAgo := time.Now().Add(-time.Hour)
			done := newTestTask("task_done")
			done.Status = taskstore.StatusCompleted
			done.CompletedAt = &longAgo
			require.NoError(t, store.Save(ctx, done))

			removed, err := store.Cleanup(ctx, 0)
			require.NoError(t, err)
			assert.Equal(t, 0, removed)

			loaded, err := store.Load(ctx, "task_done")
			require.NoError(t, err)
			assert.NotNil(t, loaded)
		})
	}
}

func TestValidateTransition(t *testing.T) {
	cases := []struct {
		name string
		from taskstore.Status
		to   taskstore.Status
		ok   bool
	}{
		{"same state is always ok", taskstore.StatusRunning, taskstore.StatusRunning, true},
		{"pending to running", taskstore.StatusPending, taskstore.StatusRunning, true},
		{"pending to cancelled", taskstore.StatusPending, taskstore.StatusCancelled, true},
		{"pending to completed is invalid", taskstore.StatusPending, taskstore.StatusCompleted, false},
		{"running to completed", taskstore.StatusRunning, taskstore.StatusCompleted, true},
		{"running to failed", taskstore.StatusRunning, taskstore.StatusFailed, true},
		{"running to cancelled", taskstore.StatusRunning, taskstore.StatusCancelled, true},
		{"completed is terminal", taskstore.StatusCompleted, taskstore.StatusRunning, false},
		{"failed is terminal", taskstore.StatusFailed, taskstore.StatusPending, false},
		{"cancelled is terminal", taskstore.StatusCancelled, taskstore.StatusRunning, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.ok, taskstore.ValidateTransition(c.from, c.to))
		})
	}
}

func TestSaveRejectsUnkeyedTask(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Save(context.Background(), &taskstore.Task{})
			assert.Error(t, err)
		})
	}
}

func TestNamespaceIsolatesKeys(t *testing.T) {
	ctx := context.Background()
	a := taskstore.NewMemoryStore("tenant-a")
	b := taskstore.NewMemoryStore("tenant-b")

	require.NoError(t, a.Save(ctx, newTestTask("task_1")))

	loaded, err := b.Load(ctx, "task_1")
	require.NoError(t, err)
	assert.Nil(t, loaded, "separate namespaced stores must not see each other's tasks")
}
