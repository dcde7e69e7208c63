// Package turnengine implements the Agent Turn Executor (§4.J): the
// coordination layer wiring the Checkpoint Store, Interrupt Controller,
// Context Manager, Retry/Fallback Controller and Guardrail Pipeline around
// one call to a model-driving TurnGenerator. It lives outside package
// engine (which still holds the teacher's original RunLoop) because it
// imports the root agent package for Message/TurnRequest/TurnResult, and
// root in turn depends on a TurnRunner interface it satisfies structurally
// — putting both in one package would close an import cycle the wrong way.
package turnengine

import (
	"context"
	"errors"
	"time"

	agent "github.com/anthropic-go/agentruntime"
	"github.com/anthropic-go/agentruntime/checkpoint"
	"github.com/anthropic-go/agentruntime/contextmgr"
	"github.com/anthropic-go/agentruntime/guardrail"
	"github.com/anthropic-go/agentruntime/interrupt"
	"github.com/anthropic-go/agentruntime/retry"
)

// TurnGenerator is the narrow view of "call the model and run tools for one
// step" the executor needs; rundriver.Driver (production) and fakeGenerator
// (tests) satisfy it.
type TurnGenerator interface {
	GenerateStep(ctx context.Context, messages []agent.Message) (agent.Message, *interrupt.Signal, error)
}

// StreamingGenerator is implemented by TurnGenerators (rundriver.Driver,
// not the fakeGenerator test double) able to forward incremental
// StreamChunks as a step is driven, rather than only returning once the
// whole step is done. GenerateStepStream must not itself emit a "finish"
// chunk — that belongs to the whole turn, not one generator step, and is
// added by TurnExecutor.Stream once runGenerateLoop returns.
type StreamingGenerator interface {
	GenerateStepStream(ctx context.Context, messages []agent.Message, emit func(agent.StreamChunk)) (agent.Message, *interrupt.Signal, error)
}

// PreGenerateHooks is the narrow hook view for turn start/end.
type PreGenerateHooks interface {
	RunPreGenerate(ctx context.Context, threadID string, step int) (respondWith *agent.TurnResult, updatedPrompt string, err error)
	RunPostGenerate(ctx context.Context, threadID string, step int) error
	RunPostGenerateFailure(ctx context.Context, err *agent.AgentError) (retry.HookDecision, error)
}

// TurnExecutor wires the Checkpoint Store (§4.C), Interrupt Controller
// (§4.F), Context Manager (§4.G), Retry/Fallback Controller (§4.H), and
// Guardrail Pipeline (§4.I) around one call to a TurnGenerator, implementing
// the generate()/resume() flow of §4.J. It does not itself know how to call
// the model API — that is the job of rundriver.Driver, reached through
// TurnGenerator.
type TurnExecutor struct {
	Generator      TurnGenerator
	Checkpointer   checkpoint.Store
	Locks          *checkpoint.ThreadLocks
	Interrupts     *interrupt.Controller
	ContextManager *contextmgr.Manager
	Scheduler      *contextmgr.Scheduler
	Retry          *retry.Controller
	Hooks          PreGenerateHooks
	InputGuards    []guardrail.Func
	ToolRunner     interrupt.ToolRunner

	// Summarizer backs the synchronous compaction fallback run() takes when
	// ContextManager is set without a Scheduler. Production wiring
	// (turnrunner.Build) always pairs ContextManager with a Scheduler, so
	// this is normally nil and the fallback path below is a no-op.
	Summarizer contextmgr.Summarizer
}

// Run executes one full turn per §4.J. It satisfies agent.TurnRunner.
func (e *TurnExecutor) Run(ctx context.Context, req agent.TurnRequest) (*agent.TurnResult, error) {
	return e.run(ctx, req, nil)
}

// Stream executes one full turn exactly like Run, but forwards every
// StreamChunk the underlying Generator produces to onChunk as it's
// produced, finishing with exactly one ChunkFinish chunk carrying the same
// TurnResult/error Run would have returned. It satisfies
// agent.StreamingTurnRunner.
func (e *TurnExecutor) Stream(ctx context.Context, req agent.TurnRequest, onChunk func(agent.StreamChunk)) (*agent.TurnResult, error) {
	result, err := e.run(ctx, req, onChunk)
	onChunk(agent.StreamChunk{Type: agent.ChunkFinish, Result: result, Err: err})
	return result, err
}

func (e *TurnExecutor) run(ctx context.Context, req agent.TurnRequest, emit func(agent.StreamChunk)) (*agent.TurnResult, error) {
	threadID := req.ThreadID
	if threadID == "" {
		threadID = agent.GenerateID(agent.PrefixThread)
	}

	step := 0

	// 1. Pre-hooks.
	if e.Hooks != nil {
		cached, updatedPrompt, err := e.Hooks.RunPreGenerate(ctx, threadID, step)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			return cached, nil
		}
		if updatedPrompt != "" {
			req.Prompt = updatedPrompt
		}
	}

	// Reject concurrent generate calls against the same thread (§5).
	if e.Locks != nil {
		if !e.Locks.TryAcquire(threadID) {
			return nil, agent.ErrThreadBusy
		}
		defer e.Locks.Release(threadID)
	}

	// 2. Thread load (+ fork).
	var cp *checkpoint.Checkpoint
	forkedID := ""
	if e.Checkpointer != nil {
		var err error
		if req.ForkSession {
			forkedID = agent.GenerateID(agent.PrefixThread)
			cp, err = checkpoint.Fork(ctx, e.Checkpointer, threadID, forkedID)
			threadID = forkedID
		} else {
			cp, err = e.Checkpointer.Load(ctx, threadID)
		}
		if err != nil {
			return nil, err
		}
	}

	// Resuming a pending interrupt through Run (callers should prefer
	// Resume, but a req.InterruptID is still honoured here for parity with
	// the original §4.J draft).
	if req.InterruptID != "" {
		hasCheckpointer := e.Checkpointer != nil
		if err := interrupt.ValidateResume(hasCheckpointer, cp, req.InterruptID); err != nil {
			return nil, err
		}
	}

	// 3. Message assembly.
	messages := req.Messages
	if cp != nil {
		messages = append(append([]agent.Message(nil), cp.Messages...), messages...)
	}
	if req.Prompt != "" {
		messages = append(messages, agent.NewTextMessage(agent.RoleUser, req.Prompt))
	}
	if err := agent.ValidateMessages(messages); err != nil {
		return nil, err
	}

	// Input guardrail race (§4.I) against the newly-added user turn.
	if len(e.InputGuards) > 0 && req.Prompt != "" {
		if err := guardrail.RaceGuardrails(ctx, req.Prompt, e.InputGuards); err != nil {
			return nil, err
		}
	}

	// 4. Context compaction.
	if e.Scheduler != nil {
		messages = e.Scheduler.Process(ctx, messages)
	} else if e.ContextManager != nil && e.Summarizer != nil {
		if decision := e.ContextManager.ShouldCompact(messages); decision.Trigger {
			if result, err := e.ContextManager.Compact(ctx, messages, e.Summarizer); err == nil {
				messages = result.NewMessages
			}
			// A compaction failure here is not fatal to the turn: the
			// oversized history is left as-is and the next turn's trigger
			// check gets another chance at it.
		}
	}

	return e.runGenerateLoop(ctx, threadID, messages, cp, forkedID, emit)
}

// runGenerateLoop drives steps 5-8 of §4.J: the retried generation call,
// checkpoint finalisation, and post-hooks. Shared by Run/Stream and Resume
// so all entry points persist and report identically. emit is nil unless
// called from Stream, in which case it receives every chunk the Generator
// produces along the way.
func (e *TurnExecutor) runGenerateLoop(ctx context.Context, threadID string, messages []agent.Message, cp *checkpoint.Checkpoint, forkedID string, emit func(agent.StreamChunk)) (*agent.TurnResult, error) {
	gen := &stepGenerator{generator: e.Generator, messages: messages, emit: emit}
	raw, err := e.Retry.Run(ctx, threadID, gen, retryHooksAdapter{e.Hooks})

	var pendingInterrupt *interrupt.Interrupt
	var sig *interrupt.Signal
	if errors.As(err, &sig) {
		pendingInterrupt = interrupt.NewInterrupt(threadID, sig)
		err = nil
	}

	result := &agent.TurnResult{ForkedSessionID: forkedID}

	// Append the turn's own contribution to the thread history before saving,
	// so a later Resume (or the next Run) sees the assistant reply — or, on
	// an interrupt, the tool-call part the eventual tool-result part must
	// reference to satisfy the Message invariant (§3).
	switch {
	case pendingInterrupt != nil:
		callArgs, _ := pendingInterrupt.Request.(map[string]any)
		messages = append(messages, agent.NewPartsMessage(agent.RoleAssistant,
			agent.ToolCallPart(pendingInterrupt.ToolCallID, pendingInterrupt.ToolName, callArgs)))
	default:
		if msg, ok := raw.(agent.Message); ok && err == nil {
			messages = append(messages, msg)
		}
	}

	// 7. Finalisation.
	if e.Checkpointer != nil {
		toSave := &checkpoint.Checkpoint{
			ThreadID:  threadID,
			Messages:  messages,
			State:     agent.NewConversationState(),
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if cp != nil && cp.State != nil {
			toSave.State = cp.State.Clone()
		}
		if pendingInterrupt != nil {
			toSave.PendingInterrupt = pendingInterrupt.ToCheckpointInterrupt()
		}
		if saveErr := e.Checkpointer.Save(ctx, toSave); saveErr != nil {
			return nil, saveErr
		}
	}

	// 8. Post-hooks.
	if err != nil {
		if e.Hooks != nil {
			var ae *agent.AgentError
			if errors.As(err, &ae) {
				_, _ = e.Hooks.RunPostGenerateFailure(ctx, ae)
			}
		}
		return nil, err
	}

	if pendingInterrupt != nil {
		result.Status = agent.TurnInterrupted
		result.Interrupt = &agent.TurnInterrupt{
			ID:         pendingInterrupt.ID,
			ThreadID:   pendingInterrupt.ThreadID,
			Type:       string(pendingInterrupt.Type),
			ToolCallID: pendingInterrupt.ToolCallID,
			ToolName:   pendingInterrupt.ToolName,
			Request:    pendingInterrupt.Request,
		}
		return result, nil
	}

	if msg, ok := raw.(agent.Message); ok {
		result.Text = msg.Text
	}
	result.Status = agent.TurnComplete
	result.FinishReason = agent.FinishStop
	result.Steps = 1

	if e.Hooks != nil {
		_ = e.Hooks.RunPostGenerate(ctx, threadID, 0)
	}

	return result, nil
}

// Resume implements §4.F.5: it validates the pending interrupt, synthesises
// or re-executes the suspended tool call's result, appends it to the
// thread, and continues the turn through the generator exactly as a fresh
// Run would. It satisfies agent.TurnRunner.
func (e *TurnExecutor) Resume(ctx context.Context, threadID, interruptID string, response any) (*agent.TurnResult, error) {
	if e.Locks != nil {
		if !e.Locks.TryAcquire(threadID) {
			return nil, agent.ErrThreadBusy
		}
		defer e.Locks.Release(threadID)
	}

	if e.Checkpointer == nil {
		return nil, interrupt.ValidateResume(false, nil, interruptID)
	}
	cp, err := e.Checkpointer.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if err := interrupt.ValidateResume(true, cp, interruptID); err != nil {
		return nil, err
	}

	pending := cp.PendingInterrupt
	messages := append([]agent.Message(nil), cp.Messages...)

	resultPart, err := e.resolvePendingInterrupt(ctx, pending, response)
	if err != nil {
		var sig *interrupt.Signal
		if errors.As(err, &sig) {
			// The re-entered tool raised a fresh interrupt (a custom
			// interrupt with no delivered response, or a second
			// interrupt() call): persist it as the new pending interrupt
			// rather than a failure.
			newInterrupt := interrupt.NewInterrupt(threadID, sig)
			toSave := &checkpoint.Checkpoint{
				ThreadID:         threadID,
				Messages:         messages,
				State:            cp.State,
				PendingInterrupt: newInterrupt.ToCheckpointInterrupt(),
				CreatedAt:        cp.CreatedAt,
				UpdatedAt:        time.Now(),
			}
			if saveErr := e.Checkpointer.Save(ctx, toSave); saveErr != nil {
				return nil, saveErr
			}
			return &agent.TurnResult{
				Status: agent.TurnInterrupted,
				Interrupt: &agent.TurnInterrupt{
					ID:         newInterrupt.ID,
					ThreadID:   newInterrupt.ThreadID,
					Type:       string(newInterrupt.Type),
					ToolCallID: newInterrupt.ToolCallID,
					ToolName:   newInterrupt.ToolName,
					Request:    newInterrupt.Request,
				},
			}, nil
		}
		return nil, err
	}

	messages = append(messages, agent.NewPartsMessage(agent.RoleTool, resultPart))

	return e.runGenerateLoop(ctx, threadID, messages, cp, "", nil)
}

// GetInterrupt returns the pending interrupt for threadID, or nil if the
// thread has no checkpoint or is not currently suspended. It satisfies
// agent.TurnRunner.
func (e *TurnExecutor) GetInterrupt(ctx context.Context, threadID string) (*agent.TurnInterrupt, error) {
	if e.Checkpointer == nil {
		return nil, nil
	}
	cp, err := e.Checkpointer.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if cp == nil || cp.PendingInterrupt == nil {
		return nil, nil
	}
	pending := interrupt.FromCheckpointInterrupt(cp.PendingInterrupt)
	return &agent.TurnInterrupt{
		ID:         pending.ID,
		ThreadID:   pending.ThreadID,
		Type:       string(pending.Type),
		ToolCallID: pending.ToolCallID,
		ToolName:   pending.ToolName,
		Request:    pending.Request,
	}, nil
}

// resolvePendingInterrupt builds the tool-result part that continues the
// turn after a resume, per §4.F.5: re-running the tool on approval,
// synthesising a denial without calling execute, or redelivering a custom
// response to the suspended tool call.
func (e *TurnExecutor) resolvePendingInterrupt(ctx context.Context, pending *checkpoint.Interrupt, response any) (agent.Part, error) {
	switch interrupt.Type(pending.Type) {
	case interrupt.TypeApproval:
		approved := approvalFromResponse(response)
		if !approved {
			return interrupt.DenialResult(pending.ToolCallID, pending.ToolName), nil
		}
		return e.rerunTool(ctx, pending)

	case interrupt.TypeCustom:
		if e.Interrupts != nil {
			e.Interrupts.DeliverCustomResponse(pending.ToolCallID, response)
		}
		return e.rerunTool(ctx, pending)

	default:
		return agent.Part{}, agent.NewAgentError(agent.ValidationError, "unknown interrupt type "+pending.Type, nil)
	}
}

func (e *TurnExecutor) rerunTool(ctx context.Context, pending *checkpoint.Interrupt) (agent.Part, error) {
	if e.ToolRunner == nil {
		return agent.Part{}, agent.NewAgentError(agent.ConfigurationError, "no tool runner configured for resume", nil)
	}
	args, _ := pending.Request.(map[string]any)
	out, err := e.ToolRunner.Rerun(ctx, pending.ToolCallID, args)
	if err != nil {
		var sig *interrupt.Signal
		if errors.As(err, &sig) {
			return agent.Part{}, err
		}
		return interrupt.ErrorResult(pending.ToolCallID, pending.ToolName, err), nil
	}
	return agent.ToolResultPart(pending.ToolCallID, pending.ToolName, out), nil
}

func approvalFromResponse(response any) bool {
	switch r := response.(type) {
	case interrupt.ApprovalResponse:
		return r.Approved
	case *interrupt.ApprovalResponse:
		return r != nil && r.Approved
	case map[string]any:
		v, _ := r["approved"].(bool)
		return v
	case bool:
		return r
	default:
		return false
	}
}

// stepGenerator adapts one call to TurnGenerator.GenerateStep into the
// retry.Generator shape the Retry/Fallback Controller drives. An
// interrupt.Signal returned by GenerateStep is surfaced as Generate's error
// and re-detected by the caller via errors.As once Retry.Run returns —
// ModelDriver retry/fallback policy never special-cases it, since §4.H's
// taxonomy has no INTERRUPT code; Run simply returns it un-retried because
// DefaultShouldUseFallback only matches transient backend codes.
type stepGenerator struct {
	generator TurnGenerator
	messages  []agent.Message
	emit      func(agent.StreamChunk) // non-nil only when driven by TurnExecutor.Stream
}

func (g *stepGenerator) Generate(ctx context.Context) (any, error) {
	if g.generator == nil {
		return nil, agent.NewAgentError(agent.ModelError, "no TurnGenerator configured", nil)
	}

	var msg agent.Message
	var sig *interrupt.Signal
	var err error
	if sg, ok := g.generator.(StreamingGenerator); ok && g.emit != nil {
		msg, sig, err = sg.GenerateStepStream(ctx, g.messages, g.emit)
	} else {
		msg, sig, err = g.generator.GenerateStep(ctx, g.messages)
	}

	if sig != nil {
		return nil, sig
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// retryHooksAdapter bridges PreGenerateHooks.RunPostGenerateFailure to the
// narrow retry.HookRunner interface.
type retryHooksAdapter struct {
	hooks PreGenerateHooks
}

func (a retryHooksAdapter) RunPostGenerateFailure(ctx context.Context, err *agent.AgentError) (retry.HookDecision, error) {
	if a.hooks == nil {
		return retry.HookDecision{}, nil
	}
	return a.hooks.RunPostGenerateFailure(ctx, err)
}
