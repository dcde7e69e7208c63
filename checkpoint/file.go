package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	agent "github.com/anthropic-go/agentruntime"
)

// FileStore persists checkpoints as individual JSON files in a directory,
// one file per thread, named {threadID}.json — mirroring the teacher's
// session.FileStore layout. A per-store mutex serialises save/load/delete
// so the "latest step" read-modify-write in Save is atomic w.r.t. readers,
// satisfying the Store contract's linearisability requirement.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore rooted at dir, creating it if absent.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

type checkpointJSON struct {
	ThreadID         string                    `json:"thread_id"`
	Step             int                       `json:"step"`
	Messages         []agent.Message           `json:"messages"`
	Files            map[string]agent.FileRecord `json:"files"`
	Todos            []agent.TodoItem          `json:"todos"`
	PendingInterrupt *Interrupt                `json:"pending_interrupt,omitempty"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

// Save writes cp to disk at the thread's next step (0 for the first save,
// then the latest step + 1).
func (f *FileStore) Save(ctx context.Context, cp *Checkpoint) error {
	if cp == nil || cp.ThreadID == "" {
		return wrapStoreError("save", errNilOrUnkeyed)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	prev, err := f.loadLocked(cp.ThreadID)
	if err != nil {
		return wrapStoreError("save", err)
	}

	step := 0
	if prev != nil {
		step = prev.Step + 1
	}

	now := time.Now()
	createdAt := cp.CreatedAt
	if createdAt.IsZero() {
		if prev != nil {
			createdAt = prev.CreatedAt
		} else {
			createdAt = now
		}
	}

	data := checkpointJSON{
		ThreadID:         cp.ThreadID,
		Step:             step,
		Messages:         cp.Messages,
		PendingInterrupt: cp.PendingInterrupt,
		CreatedAt:        createdAt,
		UpdatedAt:        now,
	}
	if cp.State != nil {
		data.Files = cp.State.Files
		data.Todos = cp.State.Todos
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return wrapStoreError("save", err)
	}
	if err := os.WriteFile(f.path(cp.ThreadID), b, 0o644); err != nil {
		return wrapStoreError("save", err)
	}
	return nil
}

// Load returns the latest checkpoint for threadID, or (nil, nil) if absent.
func (f *FileStore) Load(_ context.Context, threadID string) (*Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp, err := f.loadLocked(threadID)
	if err != nil {
		return nil, wrapStoreError("load", err)
	}
	return cp, nil
}

func (f *FileStore) loadLocked(threadID string) (*Checkpoint, error) {
	b, err := os.ReadFile(f.path(threadID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var data checkpointJSON
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, err
	}

	state := &agent.ConversationState{Files: data.Files, Todos: data.Todos}
	if state.Files == nil {
		state.Files = make(map[string]agent.FileRecord)
	}

	return &Checkpoint{
		ThreadID:         data.ThreadID,
		Step:             data.Step,
		Messages:         data.Messages,
		State:            state,
		PendingInterrupt: data.PendingInterrupt,
		CreatedAt:        data.CreatedAt,
		UpdatedAt:        data.UpdatedAt,
	}, nil
}

// Delete removes the checkpoint file for threadID.
func (f *FileStore) Delete(_ context.Context, threadID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(threadID))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, wrapStoreError("delete", err)
	}
	return true, nil
}

func (f *FileStore) path(threadID string) string {
	return filepath.Join(f.dir, threadID+".json")
}
