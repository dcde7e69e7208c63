package checkpoint

import (
	"context"
	"sync"
	"time"

	agent "github.com/anthropic-go/agentruntime"
)

// MemoryStore is an in-memory Store backed by a sync.RWMutex-protected map,
// following the teacher's session.MemoryStore pattern: checkpoints are
// deep-copied on save and load so external mutation cannot corrupt store
// state or race with concurrent readers.
type MemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{checkpoints: make(map[string]*Checkpoint)}
}

// Save writes cp at the thread's next step: 0 when the thread has no
// checkpoint yet, otherwise the current latest step + 1.
func (m *MemoryStore) Save(_ context.Context, cp *Checkpoint) error {
	if cp == nil || cp.ThreadID == "" {
		return wrapStoreError("save", errNilOrUnkeyed)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.checkpoints[cp.ThreadID]
	step := 0
	if prev != nil {
		step = prev.Step + 1
	}

	now := time.Now()
	clone := deepCopyCheckpoint(cp)
	clone.Step = step
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now
	}
	clone.UpdatedAt = now

	m.checkpoints[cp.ThreadID] = clone
	return nil
}

// Load returns the latest checkpoint for threadID, or (nil, nil) if none
// exists.
func (m *MemoryStore) Load(_ context.Context, threadID string) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp, ok := m.checkpoints[threadID]
	if !ok {
		return nil, nil
	}
	return deepCopyCheckpoint(cp), nil
}

// Delete removes all checkpoint state for threadID.
func (m *MemoryStore) Delete(_ context.Context, threadID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, existed := m.checkpoints[threadID]
	delete(m.checkpoints, threadID)
	return existed, nil
}

func deepCopyCheckpoint(cp *Checkpoint) *Checkpoint {
	clone := &Checkpoint{
		ThreadID:  cp.ThreadID,
		Step:      cp.Step,
		CreatedAt: cp.CreatedAt,
		UpdatedAt: cp.UpdatedAt,
	}
	clone.Messages = append([]agent.Message(nil), cp.Messages...)
	clone.State = cp.State.Clone()
	if cp.PendingInterrupt != nil {
		interrupt := *cp.PendingInterrupt
		clone.PendingInterrupt = &interrupt
	}
	return clone
}
