package contextmgr

import (
	"context"
	"sync"
	"time"

	agent "github.com/anthropic-go/agentruntime"
	"github.com/google/uuid"
)

// SchedulerConfig configures the async compaction scheduler.
type SchedulerConfig struct {
	Enabled          bool
	DebounceDelayMs  int
	MaxPendingTasks  int
}

type taskStatus int

const (
	taskPending taskStatus = iota
	taskRunning
	taskCompleted
	taskFailed
	taskCancelled
)

type schedulerTask struct {
	id       string
	messages []agent.Message
	status   taskStatus
	result   *CompactionResult
	err      error
	timer    *time.Timer
	cancel   context.CancelFunc
}

// Scheduler runs compaction asynchronously in the background, following the
// teacher's subagent.Runner idiom: goroutine + context.CancelFunc +
// result delivery, guarded by a mutex over an in-memory task map. Per
// §4.G, process() returns the original messages while a task is pending or
// running; the latest completed result is applied on the next call.
type Scheduler struct {
	mu        sync.Mutex
	cfg       SchedulerConfig
	queue     []*schedulerTask
	latest    *CompactionResult
	shutDown  bool
	manager   *Manager
	summarize Summarizer
}

// NewScheduler returns a Scheduler driving manager's Compact algorithm.
func NewScheduler(manager *Manager, summarizer Summarizer, cfg SchedulerConfig) *Scheduler {
	return &Scheduler{cfg: cfg, manager: manager, summarize: summarizer}
}

// Process schedules compaction asynchronously and returns the messages the
// caller should use right now: the original messages while a task is
// in flight, or the rolled-up result of the most recently completed task.
func (s *Scheduler) Process(ctx context.Context, messages []agent.Message) []agent.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutDown {
		return messages
	}

	if s.latest != nil {
		applied := s.latest.NewMessages
		s.latest = nil
		return applied
	}

	if s.hasActiveLocked() {
		return messages
	}

	s.enqueueLocked(ctx, messages)
	return messages
}

func (s *Scheduler) hasActiveLocked() bool {
	for _, t := range s.queue {
		if t.status == taskPending || t.status == taskRunning {
			return true
		}
	}
	return false
}

func (s *Scheduler) enqueueLocked(ctx context.Context, messages []agent.Message) {
	if len(s.queue) >= s.cfg.MaxPendingTasks && s.cfg.MaxPendingTasks > 0 {
		s.queue = s.queue[1:] // drop oldest on overflow (FIFO)
	}

	taskCtx, cancel := context.WithCancel(ctx)
	t := &schedulerTask{
		id:       uuid.NewString(),
		messages: messages,
		status:   taskPending,
		cancel:   cancel,
	}
	s.queue = append(s.queue, t)

	delay := time.Duration(s.cfg.DebounceDelayMs) * time.Millisecond
	t.timer = time.AfterFunc(delay, func() { s.run(taskCtx, t) })
}

func (s *Scheduler) run(ctx context.Context, t *schedulerTask) {
	s.mu.Lock()
	if t.status != taskPending {
		s.mu.Unlock()
		return
	}
	t.status = taskRunning
	s.mu.Unlock()

	result, err := s.manager.Compact(ctx, t.messages, s.summarize)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		t.status = taskFailed
		t.err = err
		return
	}
	t.status = taskCompleted
	t.result = result
	s.latest = result
}

// Cancel cancels a pending task by id. Cancelling a running or completed
// task fails.
func (s *Scheduler) Cancel(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.queue {
		if t.id == taskID {
			if t.status != taskPending {
				return false
			}
			t.timer.Stop()
			t.cancel()
			t.status = taskCancelled
			return true
		}
	}
	return false
}

// Shutdown marks all pending tasks as failed with a fixed message and
// rejects future scheduling.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.queue {
		if t.status == taskPending {
			t.timer.Stop()
			t.cancel()
			t.status = taskFailed
			t.err = agent.NewAgentError(agent.ContextError, "Scheduler shut down", nil)
		}
	}
	s.shutDown = true
}
