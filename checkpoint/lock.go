package checkpoint

import "sync"

// ThreadLocks provides non-blocking per-thread mutual exclusion so the Agent
// Turn Executor can reject a second concurrent generate call against the
// same threadId (§5 Open Question: decided to enforce this one layer down,
// in the checkpoint store, since that is the only component that actually
// observes both calls). It is a striped lock map keyed by threadID, grown
// lazily and never shrunk — thread counts are expected to be small and
// long-lived relative to process lifetime.
type ThreadLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewThreadLocks returns an empty ThreadLocks.
func NewThreadLocks() *ThreadLocks {
	return &ThreadLocks{locks: make(map[string]*sync.Mutex)}
}

// TryAcquire attempts to lock threadID without blocking. It reports false if
// another generate call already holds the lock.
func (t *ThreadLocks) TryAcquire(threadID string) bool {
	t.mu.Lock()
	lock, ok := t.locks[threadID]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[threadID] = lock
	}
	t.mu.Unlock()

	return lock.TryLock()
}

// Release unlocks threadID. It is a no-op if the thread was never acquired.
func (t *ThreadLocks) Release(threadID string) {
	t.mu.Lock()
	lock, ok := t.locks[threadID]
	t.mu.Unlock()
	if ok {
		lock.Unlock()
	}
}
