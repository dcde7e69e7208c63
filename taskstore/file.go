package taskstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// FileStore persists tasks as individual JSON files in a directory, one
// file per task, named {taskID}.json — the teacher's session.FileStore
// layout generalised from sessions to background tasks. Alongside the
// JSON record, a human-readable {taskID}.debug.yaml snapshot is written on
// every Save, used for local inspection without a JSON-aware tool.
type FileStore struct {
	mu        sync.Mutex
	dir       string
	namespace string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore rooted at dir, creating it if absent.
func NewFileStore(dir, namespace string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("taskstore: create dir: %w", err)
	}
	return &FileStore{dir: dir, namespace: namespace}, nil
}

type taskJSON struct {
	ID           string     `json:"id"`
	SubagentType string     `json:"subagent_type"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	Result       any        `json:"result,omitempty"`
	Err          string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

type taskYAML struct {
	ID          string `yaml:"id"`
	Status      string `yaml:"status"`
	Description string `yaml:"description"`
	UpdatedAt   string `yaml:"updated_at"`
}

func (f *FileStore) key(id string) string {
	if f.namespace == "" {
		return id
	}
	return f.namespace + "_" + id
}

func (f *FileStore) Save(_ context.Context, task *Task) error {
	if task == nil || task.ID == "" {
		return wrapStoreError("save", errNilOrUnkeyed)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	existing, err := f.loadLocked(task.ID)
	if err != nil {
		return wrapStoreError("save", err)
	}

	now := time.Now()
	createdAt := task.CreatedAt
	if createdAt.IsZero() {
		if existing != nil {
			createdAt = existing.CreatedAt
		} else {
			createdAt = now
		}
	}

	data := taskJSON{
		ID:           task.ID,
		SubagentType: task.SubagentType,
		Description:  task.Description,
		Status:       string(task.Status),
		Result:       task.Result,
		Err:          task.Err,
		CreatedAt:    createdAt,
		UpdatedAt:    now,
		CompletedAt:  task.CompletedAt,
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return wrapStoreError("save", err)
	}
	if err := os.WriteFile(f.jsonPath(task.ID), b, 0o644); err != nil {
		return wrapStoreError("save", err)
	}

	yb, err := yaml.Marshal(taskYAML{
		ID:          task.ID,
		Status:      string(task.Status),
		Description: task.Description,
		UpdatedAt:   now.Format(time.RFC3339),
	})
	if err == nil {
		_ = os.WriteFile(f.debugPath(task.ID), yb, 0o644)
	}

	return nil
}

func (f *FileStore) Load(_ context.Context, id string) (*Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, err := f.loadLocked(id)
	if err != nil {
		return nil, wrapStoreError("load", err)
	}
	return t, nil
}

func (f *FileStore) loadLocked(id string) (*Task, error) {
	b, err := os.ReadFile(f.jsonPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var data taskJSON
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, err
	}

	return &Task{
		ID:           data.ID,
		SubagentType: data.SubagentType,
		Description:  data.Description,
		Status:       Status(data.Status),
		Result:       data.Result,
		Err:          data.Err,
		CreatedAt:    data.CreatedAt,
		UpdatedAt:    data.UpdatedAt,
		CompletedAt:  data.CompletedAt,
	}, nil
}

func (f *FileStore) Delete(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.jsonPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, wrapStoreError("delete", err)
	}
	_ = os.Remove(f.debugPath(id))
	return true, nil
}

func (f *FileStore) List(_ context.Context, filter Filter) ([]*Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, wrapStoreError("list", err)
	}

	var out []*Task
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id, ok := strings.CutPrefix(strings.TrimSuffix(name, ".json"), f.key(""))
		if !ok {
			continue
		}
		t, err := f.loadLocked(id)
		if err != nil || t == nil {
			continue
		}
		if filter.matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *FileStore) Cleanup(_ context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return 0, wrapStoreError("cleanup", err)
	}

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id, ok := strings.CutPrefix(strings.TrimSuffix(name, ".json"), f.key(""))
		if !ok {
			continue
		}
		t, err := f.loadLocked(id)
		if err != nil || t == nil || !t.Status.IsTerminal() {
			continue
		}
		if t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			_ = os.Remove(f.jsonPath(id))
			_ = os.Remove(f.debugPath(id))
			removed++
		}
	}
	return removed, nil
}

func (f *FileStore) jsonPath(id string) string {
	return filepath.Join(f.dir, f.key(id)+".json")
}

func (f *FileStore) debugPath(id string) string {
	return filepath.Join(f.dir, f.key(id)+".debug.yaml")
}
