package agent

import "context"

// TurnRequest is one call to the Agent Turn Executor (§4.J / §6 generate).
type TurnRequest struct {
	ThreadID    string
	ForkSession bool
	Prompt      string
	Messages    []Message
	ResumeWith  any    // set when resuming a pending interrupt (interrupt.ApprovalResponse or a custom payload)
	InterruptID string
}

// TurnStatus is the terminal state of a turn.
type TurnStatus string

const (
	TurnComplete    TurnStatus = "complete"
	TurnInterrupted TurnStatus = "interrupted"
)

// FinishReason mirrors the model's reason for ending generation (§6).
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolUse   FinishReason = "tool_use"
	FinishMaxTokens FinishReason = "max_tokens"
)

// TurnInterrupt is the caller-facing view of a suspended tool call, mirroring
// package interrupt's Interrupt without requiring root to import it (that
// package already imports root, so the dependency runs one way).
type TurnInterrupt struct {
	ID         string
	ThreadID   string
	Type       string
	ToolCallID string
	ToolName   string
	Request    any
}

// TurnResult is what the Agent Turn Executor returns (§4.J step 7).
type TurnResult struct {
	Status          TurnStatus
	Text            string
	Usage           Usage
	FinishReason    FinishReason
	Steps           int
	Interrupt       *TurnInterrupt
	ForkedSessionID string
}

// TurnRunner is the narrow interface Agent.Generate/Stream/Resume drive. It
// is satisfied structurally by internal/turnengine.TurnExecutor: that
// package imports this one for Message/TurnRequest/TurnResult, so this
// interface — rather than a concrete type — is what lets Agent reference a
// turn executor without importing back into it and creating a cycle.
type TurnRunner interface {
	Run(ctx context.Context, req TurnRequest) (*TurnResult, error)
	Resume(ctx context.Context, threadID, interruptID string, response any) (*TurnResult, error)
	GetInterrupt(ctx context.Context, threadID string) (*TurnInterrupt, error)
}
