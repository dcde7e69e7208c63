// Package checkpoint implements the Checkpoint Store (§4.C): a thread-keyed,
// linearisable record of a conversation's messages and state, with fork and
// pending-interrupt support.
package checkpoint

import (
	"context"
	"time"

	agent "github.com/anthropic-go/agentruntime"
)

// Interrupt mirrors the pending-interrupt shape a Checkpoint may carry. The
// full Interrupt type lives in package interrupt; this is the minimal view
// the checkpoint store needs to avoid an import cycle (the same
// adapter-interface trick the teacher uses to keep session.go free of
// engine internals).
type Interrupt struct {
	ID         string
	ThreadID   string
	Type       string
	ToolCallID string
	ToolName   string
	Request    any
	CreatedAt  time.Time
}

// Checkpoint is one saved state of a thread. (ThreadID, Step) is
// monotonically increasing per thread.
type Checkpoint struct {
	ThreadID         string
	Step             int
	Messages         []agent.Message
	State            *agent.ConversationState
	PendingInterrupt *Interrupt
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsResumable reports whether c carries a pending interrupt (the resumable
// state) as opposed to a settled post-turn state.
func (c *Checkpoint) IsResumable() bool {
	return c != nil && c.PendingInterrupt != nil
}

// Store is the Checkpoint Store contract. Implementations must be
// linearisable per thread: Save, Load, and Delete for the same threadID
// must not interleave torn state.
type Store interface {
	// Save writes the checkpoint at the thread's next step (0 for the
	// first save, then the latest step + 1). Must be atomic w.r.t. readers.
	Save(ctx context.Context, cp *Checkpoint) error
	// Load returns the latest checkpoint for threadID. A missing record is
	// not an error: it returns (nil, nil).
	Load(ctx context.Context, threadID string) (*Checkpoint, error)
	// Delete removes all checkpoints for threadID, reporting whether a
	// record existed.
	Delete(ctx context.Context, threadID string) (bool, error)
}

// wrapStoreError normalises a raw store error into a CHECKPOINT_ERROR per
// §4.C, tagging the failing operation. save errors are retryable; load
// errors are not, since they may indicate a corrupt or missing record that
// must bubble rather than be retried transparently.
func wrapStoreError(operation string, cause error) *agent.AgentError {
	err := agent.NewAgentError(agent.CheckpointError, "checkpoint "+operation+" failed", cause)
	err = err.WithMetadata("operation", operation)
	err.Retryable = operation == "save"
	return err
}

// Fork copies the source thread's latest checkpoint (messages and state)
// into a new checkpoint keyed by newThreadID, then saves and returns it
// without touching the source. If the source has no checkpoint, the fork
// still succeeds as a fresh thread (§4.C Fork semantics).
func Fork(ctx context.Context, store Store, sourceThreadID, newThreadID string) (*Checkpoint, error) {
	now := time.Now()

	source, err := store.Load(ctx, sourceThreadID)
	if err != nil {
		return nil, err
	}

	forked := &Checkpoint{
		ThreadID:  newThreadID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if source != nil {
		forked.Messages = append([]agent.Message(nil), source.Messages...)
		forked.State = source.State.Clone()
	} else {
		forked.State = agent.NewConversationState()
	}

	if err := store.Save(ctx, forked); err != nil {
		return nil, err
	}
	return forked, nil
}
