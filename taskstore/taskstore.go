// Package taskstore implements the Task Store (§4.D): the same
// thread-keyed contract shape as checkpoint.Store, but keyed by task id,
// with list-by-filter and TTL-based cleanup.
package taskstore

import (
	"context"
	"time"

	agent "github.com/anthropic-go/agentruntime"
)

// Status is a BackgroundTask's lifecycle state (§3).
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether s is one of the terminal states.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Task is the persisted BackgroundTask record (§3).
type Task struct {
	ID           string
	SubagentType string
	Description  string
	Status       Status
	Result       any
	Err          string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// allowedTransitions enumerates the monotonic forward status transitions
// §3 requires; terminal states have no outgoing transitions.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {StatusRunning: true, StatusCancelled: true},
	StatusRunning: {StatusCompleted: true, StatusFailed: true, StatusCancelled: true},
}

// ValidateTransition reports whether moving from `from` to `to` is a legal
// forward transition.
func ValidateTransition(from, to Status) bool {
	if from == to {
		return true
	}
	if from.IsTerminal() {
		return false
	}
	return allowedTransitions[from][to]
}

// Filter selects tasks for List.
type Filter struct {
	Status       *Status
	SubagentType *string
}

func (f Filter) matches(t *Task) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.SubagentType != nil && t.SubagentType != *f.SubagentType {
		return false
	}
	return true
}

// Store is the Task Store contract (§4.D). Implementations must persist
// the full task record so any instance sharing the backing store can
// recover it.
type Store interface {
	Save(ctx context.Context, task *Task) error
	Load(ctx context.Context, id string) (*Task, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, filter Filter) ([]*Task, error)
	// Cleanup deletes tasks whose terminal state is older than ttl.
	// pending/running tasks never expire regardless of ttl. ttl<=0 means
	// infinite retention (a no-op).
	Cleanup(ctx context.Context, ttl time.Duration) (int, error)
}

func wrapStoreError(operation string, cause error) *agent.AgentError {
	err := agent.NewAgentError(agent.SubagentError, "task store "+operation+" failed", cause)
	return err.WithMetadata("operation", operation)
}
