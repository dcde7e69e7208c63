// Package convstate maintains the per-file bookkeeping side of a
// ConversationState (§3): a path → FileRecord map updated as tools touch
// files during a turn. Adapted from the teacher's checkpoint.Tracker, which
// tracked original file bytes for rewind; here the concern is forward-only
// versioning (line counts and timestamps) since the core never rewinds
// file content, only conversation state.
package convstate

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	agent "github.com/anthropic-go/agentruntime"
)

// Tracker records FileRecord updates for files touched during a turn and
// applies them onto a ConversationState. It is safe for concurrent use by
// multiple tool executions within the same turn.
type Tracker struct {
	mu    sync.Mutex
	state *agent.ConversationState
}

// NewTracker returns a Tracker writing into state. If state is nil, a fresh
// empty ConversationState is created and owned by the Tracker.
func NewTracker(state *agent.ConversationState) *Tracker {
	if state == nil {
		state = agent.NewConversationState()
	}
	return &Tracker{state: state}
}

// RecordWrite records that path was written with the given content,
// updating its FileRecord's line count and ModifiedAt (and CreatedAt, on
// first write) in the underlying ConversationState.
func (t *Tracker) RecordWrite(path string, content []byte, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.RecordFileWrite(path, countLines(content), now)
}

// RecordReadFromDisk records path's current on-disk line count, used when a
// read tool first observes a file the state hasn't seen yet. An untracked
// path is recorded the same way RecordFileWrite records a new path (its
// CreatedAt is set to now); a path already tracked is left unchanged.
func (t *Tracker) RecordReadFromDisk(path string, now time.Time) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("convstate: cannot read %s: %w", path, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.state.Files[path]; exists {
		return nil
	}
	t.state.RecordFileWrite(path, countLines(data), now)
	return nil
}

// Changes returns the number of files tracked in the underlying state.
func (t *Tracker) Changes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.state.Files)
}

// Paths returns the paths of all tracked files.
func (t *Tracker) Paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	paths := make([]string, 0, len(t.state.Files))
	for p := range t.state.Files {
		paths = append(paths, p)
	}
	return paths
}

// State returns the underlying ConversationState.
func (t *Tracker) State() *agent.ConversationState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	return strings.Count(string(content), "\n") + 1
}
