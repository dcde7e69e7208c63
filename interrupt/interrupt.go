// Package interrupt implements the Interrupt / Resume Controller (§4.F):
// suspending a turn mid-tool-call, persisting the pause, and delivering an
// out-of-band response later to re-enter it.
package interrupt

import (
	"context"
	"sync"
	"time"

	agent "github.com/anthropic-go/agentruntime"
	"github.com/anthropic-go/agentruntime/checkpoint"
)

// Type discriminates the two interrupt shapes.
type Type string

const (
	TypeApproval Type = "approval"
	TypeCustom   Type = "custom"
)

// Signal is raised by a tool execution (or synthesised by the permission
// pipeline on an "ask" decision) to suspend the current turn. It is a
// control-flow sentinel, not a normal error: callers must check for it with
// errors.As rather than treating it as a tool failure.
type Signal struct {
	ToolCallID string
	ToolName   string
	Request    any
	Type       Type
}

func (s *Signal) Error() string {
	return "agent: interrupt raised for tool call " + s.ToolCallID
}

// Interrupt is the persisted record of a suspended tool call (§3).
type Interrupt struct {
	ID         string
	ThreadID   string
	Type       Type
	ToolCallID string
	ToolName   string
	Request    any
	CreatedAt  time.Time
}

// NewInterrupt synthesises an Interrupt from a raised Signal. Per the
// invariant in §3, ID is always "int_" + toolCallId.
func NewInterrupt(threadID string, sig *Signal) *Interrupt {
	return &Interrupt{
		ID:         "int_" + sig.ToolCallID,
		ThreadID:   threadID,
		Type:       sig.Type,
		ToolCallID: sig.ToolCallID,
		ToolName:   sig.ToolName,
		Request:    sig.Request,
		CreatedAt:  time.Now(),
	}
}

// ToCheckpointInterrupt converts an Interrupt into the minimal view the
// checkpoint package persists, avoiding an import cycle back into engine.
func (i *Interrupt) ToCheckpointInterrupt() *checkpoint.Interrupt {
	return &checkpoint.Interrupt{
		ID:         i.ID,
		ThreadID:   i.ThreadID,
		Type:       string(i.Type),
		ToolCallID: i.ToolCallID,
		ToolName:   i.ToolName,
		Request:    i.Request,
		CreatedAt:  i.CreatedAt,
	}
}

// FromCheckpointInterrupt reconstructs an Interrupt from its checkpoint
// view.
func FromCheckpointInterrupt(c *checkpoint.Interrupt) *Interrupt {
	if c == nil {
		return nil
	}
	return &Interrupt{
		ID:         c.ID,
		ThreadID:   c.ThreadID,
		Type:       Type(c.Type),
		ToolCallID: c.ToolCallID,
		ToolName:   c.ToolName,
		Request:    c.Request,
		CreatedAt:  c.CreatedAt,
	}
}

// ApprovalResponse is the payload delivered to resume an approval
// interrupt.
type ApprovalResponse struct {
	Approved bool
}

// Controller tracks one-shot custom-interrupt responses, keyed by the raw
// toolCallId on both the produce and consume side per §4.F's keying
// requirement. It does not itself own checkpoints — callers (the Agent Turn
// Executor) persist/load those through the checkpoint package and drive
// Controller only for the in-process handoff of a custom response to a
// re-entered tool execution.
//
// A resume delivers the response before the tool is re-run, so delivery and
// consumption happen on the same goroutine within one Resume call; no
// blocking/channel handoff is needed. DeliverCustomResponse stages the
// response and the func returned by Interrupt consumes it exactly once.
type Controller struct {
	mu        sync.Mutex
	delivered map[string]any // toolCallID -> staged response, consumed on first Interrupt() call
}

// NewController returns an empty Controller.
func NewController() *Controller {
	return &Controller{delivered: make(map[string]any)}
}

// DeliverCustomResponse stages response for toolCallID so the next call to
// the func returned by Interrupt for that toolCallID consumes it instead of
// raising a fresh Signal. Reports false if a response was already staged and
// not yet consumed.
func (c *Controller) DeliverCustomResponse(toolCallID string, response any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.delivered[toolCallID]; exists {
		return false
	}
	c.delivered[toolCallID] = response
	return true
}

// Interrupt returns the function wired into a tool call's ToolOptions.
// Calling it raises a custom Signal carrying request unless a response was
// already staged for toolCallID via DeliverCustomResponse, in which case it
// consumes and returns that response instead. Consumption is one-shot: a
// second call with nothing newly staged raises again, satisfying §4.F.5.
func (c *Controller) Interrupt(toolCallID, toolName string) func(request any) (any, error) {
	return func(request any) (any, error) {
		c.mu.Lock()
		response, ok := c.delivered[toolCallID]
		if ok {
			delete(c.delivered, toolCallID)
		}
		c.mu.Unlock()
		if ok {
			return response, nil
		}
		return nil, &Signal{ToolCallID: toolCallID, ToolName: toolName, Request: request, Type: TypeCustom}
	}
}

// ErrKind enumerates why Resume failed validation (§4.F.4).
type ErrKind string

const (
	ErrNoCheckpointer     ErrKind = "no checkpointer configured"
	ErrNoCheckpoint       ErrKind = "checkpoint does not exist"
	ErrNoPendingInterrupt ErrKind = "no pending interrupt for thread"
	ErrInterruptIDMismatch ErrKind = "interrupt id does not match pending interrupt"
)

// ValidateResume implements the checks in §4.F.4, returning a
// VALIDATION_ERROR AgentError carrying the specific reason when resume
// preconditions are not met.
func ValidateResume(hasCheckpointer bool, cp *checkpoint.Checkpoint, interruptID string) error {
	if !hasCheckpointer {
		return validationErr(ErrNoCheckpointer)
	}
	if cp == nil {
		return validationErr(ErrNoCheckpoint)
	}
	if cp.PendingInterrupt == nil {
		return validationErr(ErrNoPendingInterrupt)
	}
	if cp.PendingInterrupt.ID != interruptID {
		return validationErr(ErrInterruptIDMismatch)
	}
	return nil
}

func validationErr(kind ErrKind) error {
	return agent.NewAgentError(agent.ValidationError, string(kind), nil)
}

// DenialResult builds the tool-result message part for a denied approval
// interrupt (§4.F.5): {type:"text", value} whose text contains "denied".
func DenialResult(toolCallID, toolName string) agent.Part {
	return agent.ToolResultPart(toolCallID, toolName, agent.TextResultValue("request denied by user"))
}

// ErrorResult builds the tool-result message part for an error encountered
// during resume.
func ErrorResult(toolCallID, toolName string, err error) agent.Part {
	return agent.ToolResultPart(toolCallID, toolName, agent.TextResultValue(err.Error()))
}

// ToolRunner is the narrow view of a tool the controller needs to re-drive
// a tool call during resume, without depending on the root package's full
// Tool[T] generic interface.
type ToolRunner interface {
	Rerun(ctx context.Context, toolCallID string, args map[string]any) (agent.ResultValue, error)
}
