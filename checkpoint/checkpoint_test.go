package checkpoint

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agent "github.com/anthropic-go/agentruntime"
)

func newTestCheckpoint(threadID string) *Checkpoint {
	return &Checkpoint{
		ThreadID: threadID,
		Messages: []agent.Message{agent.NewTextMessage(agent.RoleUser, "hi")},
		State:    agent.NewConversationState(),
	}
}

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	fileStore, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fileStore,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			cp := newTestCheckpoint("t1")
			require.NoError(t, store.Save(ctx, cp))

			loaded, err := store.Load(ctx, "t1")
			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, "t1", loaded.ThreadID)
			assert.Equal(t, 0, loaded.Step)
			assert.Len(t, loaded.Messages, 1)
		})
	}
}

func TestLoadMissingIsNotError(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			loaded, err := store.Load(ctx, "missing")
			require.NoError(t, err)
			assert.Nil(t, loaded)
		})
	}
}

func TestStepIsMonotonicPerThread(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save(ctx, newTestCheckpoint("t1")))
			require.NoError(t, store.Save(ctx, newTestCheckpoint("t1")))
			require.NoError(t, store.Save(ctx, newTestCheckpoint("t1")))

			loaded, err := store.Load(ctx, "t1")
			require.NoError(t, err)
			assert.Equal(t, 2, loaded.Step)
		})
	}
}

func TestDeleteReportsExistence(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			existed, err := store.Delete(ctx, "nope")
			require.NoError(t, err)
			assert.False(t, existed)

			require.NoError(t, store.Save(ctx, newTestCheckpoint("t1")))
			existed, err = store.Delete(ctx, "t1")
			require.NoError(t, err)
			assert.True(t, existed)

			loaded, err := store.Load(ctx, "t1")
			require.NoError(t, err)
			assert.Nil(t, loaded)
		})
	}
}

func TestLoadReturnsIndependentCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	cp := newTestCheckpoint("t1")
	require.NoError(t, store.Save(ctx, cp))

	loaded, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	loaded.Messages[0] = agent.NewTextMessage(agent.RoleUser, "mutated")

	reloaded, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "hi", reloaded.Messages[0].Text)
}

func TestForkFromExistingThread(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, newTestCheckpoint("source")))

	forked, err := Fork(ctx, store, "source", "fork1")
	require.NoError(t, err)
	assert.Equal(t, "fork1", forked.ThreadID)
	assert.Len(t, forked.Messages, 1)

	loaded, err := store.Load(ctx, "fork1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
}

func TestForkFromMissingSourceSucceedsAsFreshThread(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	forked, err := Fork(ctx, store, "missing-source", "fork1")
	require.NoError(t, err)
	assert.Equal(t, "fork1", forked.ThreadID)
	assert.Empty(t, forked.Messages)
}

func TestFileStorePathLayout(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), newTestCheckpoint("t1")))
	assert.FileExists(t, filepath.Join(dir, "t1.json"))
}

func TestThreadLocksRejectsConcurrentAcquire(t *testing.T) {
	locks := NewThreadLocks()
	require.True(t, locks.TryAcquire("t1"))
	assert.False(t, locks.TryAcquire("t1"))

	locks.Release("t1")
	assert.True(t, locks.TryAcquire("t1"))
}

func TestThreadLocksAreIndependentPerThread(t *testing.T) {
	locks := NewThreadLocks()
	require.True(t, locks.TryAcquire("t1"))
	assert.True(t, locks.TryAcquire("t2"))
}
