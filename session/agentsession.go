package session

import (
	"context"
	"fmt"
	"sync"

	agent "github.com/anthropic-go/agentruntime"
	"github.com/anthropic-go/agentruntime/taskmanager"
)

// OutputType identifies the kind of event an AgentSession's Run loop yields
// (§4.K).
type OutputType string

const (
	OutputWaitingForInput    OutputType = "waiting_for_input"
	OutputTextDelta          OutputType = "text_delta"
	OutputToolCall           OutputType = "tool_call"
	OutputToolResult         OutputType = "tool_result"
	OutputGenerationComplete OutputType = "generation_complete"
	OutputTaskUpdate         OutputType = "task_update"
)

// Output is one item of the Session Loop's output stream.
type Output struct {
	Type OutputType

	Text string // OutputTextDelta, or the final text on OutputGenerationComplete

	ToolCallID string // OutputToolCall / OutputToolResult
	ToolName   string
	ToolInput  string
	ToolOutput string

	Result *agent.TurnResult // OutputGenerationComplete
	Err    error

	TaskID     string // OutputTaskUpdate
	TaskStatus string
}

// ToolEvent is pushed by the caller's hook wiring (a PreToolUse/PostToolUse
// hook.Func forwarding onto a channel, the same idiom as the teacher's
// channelSink forwarding engine events) to surface tool_call/tool_result
// SessionOutput events during a generation the Session Loop drives. Without
// a ToolEvents channel configured, OutputToolCall/OutputToolResult are never
// emitted — the loop still reports OutputTextDelta and
// OutputGenerationComplete from the TurnResult alone, since the Generator
// interface below is turn-based, not chunk-streamed.
type ToolEvent struct {
	Type       OutputType // OutputToolCall or OutputToolResult
	ToolCallID string
	ToolName   string
	Input      string
	Output     string
}

// Generator is the narrow view of the Agent Turn Executor the Session Loop
// drives, satisfied by agent.Agent once SetTurnRunner has been called.
type Generator interface {
	Generate(ctx context.Context, req agent.TurnRequest) (*agent.TurnResult, error)
}

// AgentSessionConfig configures an AgentSession.
type AgentSessionConfig struct {
	ThreadID  string
	Generator Generator

	// Tasks, if set, subscribes the session to taskCompleted/taskFailed
	// events (§4.K). Nil disables the subscription outright, equivalent to
	// autoProcessTaskCompletions:false.
	Tasks                      *taskmanager.Manager
	AutoProcessTaskCompletions bool

	// ToolEvents, if set, is merged into the Output stream as
	// OutputToolCall/OutputToolResult events alongside whichever generation
	// produced them.
	ToolEvents <-chan ToolEvent
}

type stimulus struct {
	prompt string
}

// AgentSession implements the Session Loop (§4.K): a single goroutine that
// serialises every `generate` call for one thread, woken by either a user
// message (sendMessage) or a task completion/failure event, emitting a
// stream of SessionOutput events the caller drains via Outputs().
type AgentSession struct {
	cfg AgentSessionConfig

	stimuli chan stimulus
	out     chan Output
	stop    chan struct{}
	stopped sync.Once
}

// NewAgentSession returns an AgentSession ready to Run.
func NewAgentSession(cfg AgentSessionConfig) *AgentSession {
	return &AgentSession{
		cfg:     cfg,
		stimuli: make(chan stimulus, 16),
		out:     make(chan Output, 16),
		stop:    make(chan struct{}),
	}
}

// Outputs returns the channel SessionOutput events are delivered on. It is
// closed when Run returns.
func (s *AgentSession) Outputs() <-chan Output {
	return s.out
}

// SendMessage enqueues a user message stimulus (§4.K). It does not block
// indefinitely: if the session has already stopped, the message is
// silently dropped, matching "stop() cleanly terminates the loop".
func (s *AgentSession) SendMessage(prompt string) {
	select {
	case s.stimuli <- stimulus{prompt: prompt}:
	case <-s.stop:
	}
}

// Stop cleanly terminates the loop; Run returns once it next reaches an
// idle wait point.
func (s *AgentSession) Stop() {
	s.stopped.Do(func() { close(s.stop) })
}

// Run drives the Session Loop until ctx is cancelled or Stop is called,
// closing Outputs() on return. Callers typically run this in its own
// goroutine, analogous to the teacher's engine.RunLoop being driven from a
// goroutine in Agent.RunWithSession.
func (s *AgentSession) Run(ctx context.Context) {
	defer close(s.out)

	var taskEvents <-chan taskmanager.Event
	if s.cfg.Tasks != nil && s.cfg.AutoProcessTaskCompletions {
		taskEvents = s.cfg.Tasks.Events()
	}

	for {
		s.emit(Output{Type: OutputWaitingForInput})

		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case evt, ok := <-s.cfg.ToolEvents:
			if ok {
				s.emit(Output{Type: evt.Type, ToolCallID: evt.ToolCallID, ToolName: evt.ToolName, ToolInput: evt.Input, ToolOutput: evt.Output})
			}
		case stim := <-s.stimuli:
			s.generate(ctx, stim.prompt)
		case evt := <-taskEvents:
			s.handleTaskEvent(ctx, evt)
		}
	}
}

// handleTaskEvent implements §4.K's deduplication rule: a task event for an
// id no longer registered with the Task Manager was already consumed via
// the task_output tool inside an earlier generation and is discarded;
// otherwise it synthesises a follow-up generate call and unregisters the
// task.
func (s *AgentSession) handleTaskEvent(ctx context.Context, evt taskmanager.Event) {
	if s.cfg.Tasks == nil || !s.cfg.Tasks.Registered(evt.TaskID) {
		return
	}
	s.cfg.Tasks.Remove(evt.TaskID)

	s.emit(Output{Type: OutputTaskUpdate, TaskID: evt.TaskID, TaskStatus: string(evt.Status)})

	var prompt string
	if evt.Err != "" {
		prompt = fmt.Sprintf("Background task %s failed: %s", evt.TaskID, evt.Err)
	} else {
		prompt = fmt.Sprintf("Background task %s completed with result: %v", evt.TaskID, evt.Result)
	}
	s.generate(ctx, prompt)
}

func (s *AgentSession) generate(ctx context.Context, prompt string) {
	if s.cfg.Generator == nil {
		s.emit(Output{Type: OutputGenerationComplete, Err: agent.NewAgentError(agent.ConfigurationError, "no Generator configured for session", nil)})
		return
	}

	result, err := s.cfg.Generator.Generate(ctx, agent.TurnRequest{ThreadID: s.cfg.ThreadID, Prompt: prompt})
	if err != nil {
		s.emit(Output{Type: OutputGenerationComplete, Err: err})
		return
	}

	if result.Text != "" {
		s.emit(Output{Type: OutputTextDelta, Text: result.Text})
	}
	s.emit(Output{Type: OutputGenerationComplete, Result: result})
}

func (s *AgentSession) emit(o Output) {
	select {
	case s.out <- o:
	case <-s.stop:
	}
}
