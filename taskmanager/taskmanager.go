// Package taskmanager implements the Task Manager (§4.K): an in-memory
// table of BackgroundTask records, each backed by a goroutine spawned the
// way the teacher's subagent.Runner spawns a child agent run, persisted
// through the Task Store on every state transition, and surfaced as
// taskCompleted/taskFailed events to whatever is subscribed (the Session
// Loop, in the common case).
package taskmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	agent "github.com/anthropic-go/agentruntime"
	"github.com/anthropic-go/agentruntime/taskstore"
)

// Spawner runs one background task to completion. Implementations typically
// wrap subagent.Runner or a direct Agent.Generate call; the default
// production wiring is left to callers, mirroring how subagent.RunFunc is
// injected rather than hard-coded.
type Spawner func(ctx context.Context, subagentType, description string) (result any, err error)

// Event is emitted on a task's terminal transition (§4.K: taskCompleted,
// taskFailed). Cancelled tasks do not emit an Event — §4.K only names the
// two completion-flavoured events, and a cancellation is always caller-
// initiated, so the caller already knows.
type Event struct {
	TaskID string
	Status taskstore.Status // StatusCompleted or StatusFailed
	Result any
	Err    string
}

type taskHandle struct {
	cancel context.CancelFunc
}

// Manager owns the in-memory task table (§5: "protected by a mutex;
// iteration + mutation must be safe") and persists every state change
// through a taskstore.Store.
type Manager struct {
	mu      sync.Mutex
	tasks   map[string]*taskstore.Task
	handles map[string]*taskHandle

	store  taskstore.Store
	spawn  Spawner
	events chan Event
}

// New returns a Manager backed by store, running tasks via spawn. events is
// buffered (size 32) so a slow subscriber does not block task completion;
// callers that need lossless delivery should drain it promptly.
func New(store taskstore.Store, spawn Spawner) *Manager {
	return &Manager{
		tasks:   make(map[string]*taskstore.Task),
		handles: make(map[string]*taskHandle),
		store:   store,
		spawn:   spawn,
		events:  make(chan Event, 32),
	}
}

// Events returns the channel taskCompleted/taskFailed events are delivered
// on.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Spawn registers a new BackgroundTask and runs it in a background
// goroutine, persisting pending → running → terminal through the Task
// Store at each transition.
func (m *Manager) Spawn(ctx context.Context, subagentType, description string) (string, error) {
	id := agent.GenerateID(agent.PrefixTask)
	now := time.Now()
	task := &taskstore.Task{
		ID:           id,
		SubagentType: subagentType,
		Description:  description,
		Status:       taskstore.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := m.save(ctx, task); err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.tasks[id] = task
	m.handles[id] = &taskHandle{cancel: cancel}
	m.mu.Unlock()

	go m.run(runCtx, id)

	return id, nil
}

func (m *Manager) run(ctx context.Context, id string) {
	m.transition(ctx, id, taskstore.StatusRunning, nil, "")

	m.mu.Lock()
	task := m.tasks[id]
	m.mu.Unlock()
	if task == nil {
		return
	}

	result, err := m.spawn(ctx, task.SubagentType, task.Description)
	if ctx.Err() != nil {
		// Cancelled via Cancel, which already marked the task; no event.
		return
	}

	if err != nil {
		m.transition(ctx, id, taskstore.StatusFailed, nil, err.Error())
		m.emit(id, taskstore.StatusFailed, nil, err.Error())
		return
	}
	m.transition(ctx, id, taskstore.StatusCompleted, result, "")
	m.emit(id, taskstore.StatusCompleted, result, "")
}

func (m *Manager) transition(ctx context.Context, id string, to taskstore.Status, result any, errText string) {
	m.mu.Lock()
	task, ok := m.tasks[id]
	if !ok || !taskstore.ValidateTransition(task.Status, to) {
		m.mu.Unlock()
		return
	}
	task.Status = to
	task.Result = result
	task.Err = errText
	task.UpdatedAt = time.Now()
	if to.IsTerminal() {
		completedAt := task.UpdatedAt
		task.CompletedAt = &completedAt
	}
	snapshot := *task
	m.mu.Unlock()

	_ = m.save(ctx, &snapshot)
}

func (m *Manager) emit(id string, status taskstore.Status, result any, errText string) {
	select {
	case m.events <- Event{TaskID: id, Status: status, Result: result, Err: errText}:
	default:
		// A full event buffer means nobody is listening; the task's terminal
		// state is already durable via the Task Store, so the event itself
		// is best-effort.
	}
}

func (m *Manager) save(ctx context.Context, task *taskstore.Task) error {
	if m.store == nil {
		return nil
	}
	return m.store.Save(ctx, task)
}

// Get returns the in-memory record for id, and whether it is still
// registered. Per §4.K's deduplication rule, a task consumed via the
// task_output tool is removed from this table even though its terminal
// record remains in the Task Store.
func (m *Manager) Get(id string) (*taskstore.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	return t, ok
}

// Registered reports whether id is still tracked in the in-memory table —
// the check the Session Loop's deduplication rule performs on every task
// event.
func (m *Manager) Registered(id string) bool {
	_, ok := m.Get(id)
	return ok
}

// Remove unregisters id from the in-memory table without touching the Task
// Store record, used both by the task_output tool (consuming a task from
// inside a generation) and by the Session Loop after it synthesises a
// follow-up generate call for a task event.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.tasks, id)
	delete(m.handles, id)
	m.mu.Unlock()
}

// Cancel stops a running task and marks it cancelled, both in the
// in-memory table and the Task Store.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	handle, ok := m.handles[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("taskmanager: task not found: %s", id)
	}
	handle.cancel()
	m.transition(ctx, id, taskstore.StatusCancelled, nil, "")
	m.Remove(id)
	return nil
}

// List returns every currently registered task matching filter.
func (m *Manager) List(filter taskstore.Filter) []*taskstore.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*taskstore.Task
	for _, t := range m.tasks {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.SubagentType != nil && t.SubagentType != *filter.SubagentType {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out
}
