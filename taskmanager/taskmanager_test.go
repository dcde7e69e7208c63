package taskmanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthropic-go/agentruntime/taskstore"
)

func successSpawner(result any) Spawner {
	return func(ctx context.Context, subagentType, description string) (any, error) {
		return result, nil
	}
}

func errorSpawner(errMsg string) Spawner {
	return func(ctx context.Context, subagentType, description string) (any, error) {
		return nil, errors.New(errMsg)
	}
}

func blockingSpawner() Spawner {
	return func(ctx context.Context, subagentType, description string) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

func waitForEvent(t *testing.T, m *Manager) Event {
	t.Helper()
	select {
	case evt := <-m.Events():
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for task event")
		return Event{}
	}
}

func TestSpawn_CompletesAndEmitsEvent(t *testing.T) {
	store := taskstore.NewMemoryStore("test")
	m := New(store, successSpawner("ok"))

	id, err := m.Spawn(context.Background(), "researcher", "find things")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	evt := waitForEvent(t, m)
	assert.Equal(t, id, evt.TaskID)
	assert.Equal(t, taskstore.StatusCompleted, evt.Status)
	assert.Equal(t, "ok", evt.Result)
	assert.Empty(t, evt.Err)

	saved, err := store.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, taskstore.StatusCompleted, saved.Status)
	assert.NotNil(t, saved.CompletedAt)
}

func TestSpawn_FailureEmitsFailedEvent(t *testing.T) {
	store := taskstore.NewMemoryStore("test")
	m := New(store, errorSpawner("boom"))

	id, err := m.Spawn(context.Background(), "researcher", "find things")
	require.NoError(t, err)

	evt := waitForEvent(t, m)
	assert.Equal(t, taskstore.StatusFailed, evt.Status)
	assert.Equal(t, "boom", evt.Err)

	saved, err := store.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, taskstore.StatusFailed, saved.Status)
}

func TestRegisteredAndRemove(t *testing.T) {
	store := taskstore.NewMemoryStore("test")
	m := New(store, successSpawner("ok"))

	id, err := m.Spawn(context.Background(), "researcher", "find things")
	require.NoError(t, err)

	waitForEvent(t, m)
	assert.True(t, m.Registered(id))

	m.Remove(id)
	assert.False(t, m.Registered(id))

	_, ok := m.Get(id)
	assert.False(t, ok)
}

func TestCancel_StopsRunningTask(t *testing.T) {
	store := taskstore.NewMemoryStore("test")
	m := New(store, blockingSpawner())

	id, err := m.Spawn(context.Background(), "researcher", "find things")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		task, loadErr := store.Load(context.Background(), id)
		return loadErr == nil && task.Status == taskstore.StatusRunning
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, m.Cancel(context.Background(), id))
	assert.False(t, m.Registered(id))

	saved, err := store.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, taskstore.StatusCancelled, saved.Status)
}

func TestList_FiltersByStatusAndSubagentType(t *testing.T) {
	store := taskstore.NewMemoryStore("test")
	m := New(store, blockingSpawner())

	id1, err := m.Spawn(context.Background(), "researcher", "a")
	require.NoError(t, err)
	_, err = m.Spawn(context.Background(), "coder", "b")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(m.List(taskstore.Filter{})) == 2
	}, time.Second, 10*time.Millisecond)

	researcher := "researcher"
	filtered := m.List(taskstore.Filter{SubagentType: &researcher})
	require.Len(t, filtered, 1)
	assert.Equal(t, id1, filtered[0].ID)
}

func TestCancel_UnknownTask(t *testing.T) {
	store := taskstore.NewMemoryStore("test")
	m := New(store, successSpawner("ok"))

	err := m.Cancel(context.Background(), "task_nope")
	assert.Error(t, err)
}
