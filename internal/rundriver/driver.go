// Package rundriver implements the production model-and-tool driver behind
// the Agent Turn Executor (§4.J). One GenerateStep call drives the
// Anthropic Messages API and the Tool Permission Pipeline (§4.E) in a loop
// until the model stops talking or a tool raises (or earns) an interrupt,
// adapting the teacher's internal/engine.RunLoop tool-use handling —
// processToolUse's hook/permission/execute ordering — from streamed wire
// events to the turn-based agent.Message/interrupt.Signal shape
// TurnGenerator needs.
package rundriver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	agent "github.com/anthropic-go/agentruntime"
	"github.com/anthropic-go/agentruntime/internal/budget"
	"github.com/anthropic-go/agentruntime/interrupt"
	"github.com/anthropic-go/agentruntime/permission"
)

// MessageStreamer is the narrow view of the Anthropic Messages API the
// driver needs, mirroring internal/engine.MessageStreamer.
type MessageStreamer interface {
	NewStreaming(ctx context.Context, params anthropic.MessageNewParams) *ssestream.Stream[anthropic.MessageStreamEventUnion]
}

// ToolExecutor is the narrow view of a tool registry the driver needs.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, input json.RawMessage, opts agent.ToolOptions) (*agent.ToolResult, error)
	ListForAPI() []anthropic.ToolUnionParam
}

// HookRunner is the narrow hook view for tool-use events the driver fires
// around stage 5 of the permission pipeline (§4.E).
type HookRunner interface {
	RunPreToolUse(ctx context.Context, sessionID, toolName string, input json.RawMessage) (block bool, reason string, updatedInput json.RawMessage, err error)
	RunPostToolUse(ctx context.Context, sessionID, toolName string, input json.RawMessage, output string) error
	RunPostToolFailure(ctx context.Context, sessionID, toolName string, input json.RawMessage, toolErr error) error
}

// DefaultMaxToolSteps bounds the model<->tool round trips a single
// GenerateStep call will drive before giving up (distinct from the
// checkpointed turn count — this is internal looping within one step).
const DefaultMaxToolSteps = 50

// Config configures a Driver.
type Config struct {
	Streamer          MessageStreamer
	Tools             ToolExecutor
	Model             anthropic.Model
	FallbackModel     anthropic.Model
	MaxOutputTokens   int
	MaxToolSteps      int
	MaxThinkingTokens int64
	SystemPrompt      string
	SessionID         string

	// StaticFilter implements pipeline stage 1 (§4.E.1). A zero value
	// (no Allowed/Disallowed) passes every tool through.
	StaticFilter permission.StaticFilter

	// PermissionGate evaluates stages 2-3 (mode gate, canUseTool callback).
	// Nil means every non-denied tool is allowed (bypass).
	PermissionGate *permission.Checker

	// Hooks runs PreToolUse/PostToolUse/PostToolUseFailure (stage 4 and
	// post-execution). Nil disables tool hooks.
	Hooks HookRunner

	// Budget tracks cumulative spend across every model call this Driver
	// makes (§4.H). Nil disables enforcement.
	Budget *budget.BudgetTracker

	// Interrupts backs the custom-interrupt half of §4.F: its Interrupt
	// method is wired into each tool call's ToolOptions so a tool can
	// suspend the turn with an arbitrary request and, once resumed, receive
	// the user's response. Nil disables custom interrupts; a tool that
	// calls ToolOptions.Interrupt with it unset gets a nil func.
	Interrupts *interrupt.Controller
}

// Driver drives one agentic step: call the model, run any requested tools
// through the Tool Permission Pipeline, and repeat until the model stops or
// a tool call is suspended. It implements internal/turnengine.TurnGenerator
// structurally (TurnGenerator lives in a package that imports root, and
// this package needs package interrupt, which also imports root — putting
// Driver in turnengine or in root would each close a cycle, so it lives
// here instead and is wired in by the turnrunner package).
type Driver struct {
	cfg Config

	mu           sync.Mutex
	pendingCalls map[string]pendingCall // toolCallID -> name/input, consulted by Rerun on resume
}

type pendingCall struct {
	name  string
	input json.RawMessage
}

// New returns a Driver ready to drive GenerateStep calls.
func New(cfg Config) *Driver {
	if cfg.MaxToolSteps == 0 {
		cfg.MaxToolSteps = DefaultMaxToolSteps
	}
	return &Driver{cfg: cfg, pendingCalls: make(map[string]pendingCall)}
}

// GenerateStep implements turnengine.TurnGenerator.
func (d *Driver) GenerateStep(ctx context.Context, messages []agent.Message) (agent.Message, *interrupt.Signal, error) {
	history, err := toAnthropicParams(messages)
	if err != nil {
		return agent.Message{}, nil, agent.NewAgentError(agent.ValidationError, "invalid message history", err)
	}

	for step := 0; step < d.cfg.MaxToolSteps; step++ {
		if err := ctx.Err(); err != nil {
			return agent.Message{}, nil, agent.NewAgentError(agent.AbortError, "generation cancelled", err)
		}
		if d.cfg.Budget != nil && d.cfg.Budget.Exhausted() {
			return agent.Message{}, nil, agent.NewAgentError(agent.ModelError, "budget exhausted", nil)
		}

		msg, err := d.callModel(ctx, history)
		if err != nil {
			return agent.Message{}, nil, err
		}
		history = append(history, msg.ToParam())

		if msg.StopReason != anthropic.StopReasonToolUse {
			return agent.NewTextMessage(agent.RoleAssistant, extractText(msg.Content)), nil, nil
		}

		resultBlocks, sig, toolErr := d.runToolUse(ctx, msg.Content)
		if sig != nil {
			return agent.Message{}, sig, nil
		}
		if toolErr != nil {
			return agent.Message{}, nil, toolErr
		}
		history = append(history, anthropic.NewUserMessage(resultBlocks...))
	}

	return agent.Message{}, nil, agent.NewAgentError(agent.ModelError, "exceeded max tool steps without reaching a final response", nil)
}

// GenerateStepStream implements internal/turnengine.StreamingGenerator: it
// drives the same model<->tool loop as GenerateStep but forwards incremental
// StreamChunks to emit as they're produced — text/reasoning deltas as the
// model streams, then a tool-call chunk per tool_use block once a response
// is fully accumulated, then a tool-result chunk per call once it actually
// executes. Because tool execution only ever starts after the triggering
// message has finished accumulating, a tool-result chunk for call C can
// never be emitted before C's tool-call chunk.
func (d *Driver) GenerateStepStream(ctx context.Context, messages []agent.Message, emit func(agent.StreamChunk)) (agent.Message, *interrupt.Signal, error) {
	history, err := toAnthropicParams(messages)
	if err != nil {
		return agent.Message{}, nil, agent.NewAgentError(agent.ValidationError, "invalid message history", err)
	}

	for step := 0; step < d.cfg.MaxToolSteps; step++ {
		if err := ctx.Err(); err != nil {
			return agent.Message{}, nil, agent.NewAgentError(agent.AbortError, "generation cancelled", err)
		}
		if d.cfg.Budget != nil && d.cfg.Budget.Exhausted() {
			return agent.Message{}, nil, agent.NewAgentError(agent.ModelError, "budget exhausted", nil)
		}

		msg, err := d.callModelStream(ctx, history, emit)
		if err != nil {
			return agent.Message{}, nil, err
		}
		history = append(history, msg.ToParam())

		if msg.StopReason != anthropic.StopReasonToolUse {
			return agent.NewTextMessage(agent.RoleAssistant, extractText(msg.Content)), nil, nil
		}

		resultBlocks, sig, toolErr := d.runToolUseStream(ctx, msg.Content, emit)
		if sig != nil {
			return agent.Message{}, sig, nil
		}
		if toolErr != nil {
			return agent.Message{}, nil, toolErr
		}
		history = append(history, anthropic.NewUserMessage(resultBlocks...))
	}

	return agent.Message{}, nil, agent.NewAgentError(agent.ModelError, "exceeded max tool steps without reaching a final response", nil)
}

// Rerun re-executes the tool call suspended by a prior interrupt, for
// §4.F.5's approval round trip. It implements interrupt.ToolRunner.
func (d *Driver) Rerun(ctx context.Context, toolCallID string, args map[string]any) (agent.ResultValue, error) {
	d.mu.Lock()
	call, ok := d.pendingCalls[toolCallID]
	d.mu.Unlock()
	if !ok {
		return agent.ResultValue{}, agent.NewAgentError(agent.ValidationError, "no suspended tool call for id "+toolCallID, nil)
	}

	raw := call.input
	if args != nil {
		if encoded, err := json.Marshal(args); err == nil {
			raw = encoded
		}
	}

	decision, reason, askErr := d.evaluatePermission(ctx, call.name, raw)
	if askErr != nil {
		return agent.ResultValue{}, askErr
	}
	if decision.viaAsk && !decision.viaPolicy {
		var args map[string]any
		_ = json.Unmarshal(raw, &args)
		return agent.ResultValue{}, &interrupt.Signal{
			ToolCallID: toolCallID,
			ToolName:   call.name,
			Request:    args,
			Type:       interrupt.TypeApproval,
		}
	}
	if !decision.allow {
		return agent.TextResultValue(fmt.Sprintf("permission denied: %s", reason)), nil
	}

	result, err := d.executeTool(ctx, toolCallID, call.name, raw)
	if err != nil {
		return agent.ResultValue{}, err
	}
	d.mu.Lock()
	delete(d.pendingCalls, toolCallID)
	d.mu.Unlock()
	return agent.TextResultValue(extractTextFromContent(result.Content)), nil
}

func (d *Driver) callModel(ctx context.Context, history []anthropic.MessageParam) (anthropic.Message, error) {
	params := d.buildParams(history)

	msg, err := accumulate(d.cfg.Streamer, ctx, params)
	if err == nil {
		d.recordUsage(params.Model, msg)
		return msg, nil
	}
	if d.cfg.FallbackModel == "" || d.cfg.FallbackModel == params.Model {
		return anthropic.Message{}, agent.NewAgentError(agent.ModelError, "generation failed", err)
	}
	params.Model = d.cfg.FallbackModel
	msg, fallbackErr := accumulate(d.cfg.Streamer, ctx, params)
	if fallbackErr != nil {
		return anthropic.Message{}, agent.NewAgentError(agent.ModelError, "generation failed on fallback model", fallbackErr)
	}
	d.recordUsage(d.cfg.FallbackModel, msg)
	return msg, nil
}

// callModelStream is callModel's streaming twin: it forwards text and
// reasoning deltas to emit as they arrive off the wire instead of only
// returning the fully accumulated message, mirroring the teacher's
// RunLoop streaming handling in internal/engine/loop.go.
func (d *Driver) callModelStream(ctx context.Context, history []anthropic.MessageParam, emit func(agent.StreamChunk)) (anthropic.Message, error) {
	params := d.buildParams(history)

	msg, err := accumulateStream(d.cfg.Streamer, ctx, params, emit)
	if err == nil {
		d.recordUsage(params.Model, msg)
		return msg, nil
	}
	if d.cfg.FallbackModel == "" || d.cfg.FallbackModel == params.Model {
		return anthropic.Message{}, agent.NewAgentError(agent.ModelError, "generation failed", err)
	}
	params.Model = d.cfg.FallbackModel
	msg, fallbackErr := accumulateStream(d.cfg.Streamer, ctx, params, emit)
	if fallbackErr != nil {
		return anthropic.Message{}, agent.NewAgentError(agent.ModelError, "generation failed on fallback model", fallbackErr)
	}
	d.recordUsage(d.cfg.FallbackModel, msg)
	return msg, nil
}

func (d *Driver) buildParams(history []anthropic.MessageParam) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     d.cfg.Model,
		MaxTokens: int64(d.cfg.MaxOutputTokens),
		Messages:  history,
	}
	if d.cfg.MaxThinkingTokens > 0 {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(d.cfg.MaxThinkingTokens)
		minRequired := d.cfg.MaxThinkingTokens + 16384
		if params.MaxTokens < minRequired {
			params.MaxTokens = minRequired
		}
	}
	if d.cfg.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: d.cfg.SystemPrompt}}
	}
	if d.cfg.Tools != nil {
		if tools := d.cfg.Tools.ListForAPI(); len(tools) > 0 {
			params.Tools = tools
		}
	}
	return params
}

func (d *Driver) recordUsage(model anthropic.Model, msg anthropic.Message) {
	if d.cfg.Budget == nil {
		return
	}
	d.cfg.Budget.RecordUsage(model, budget.Usage{
		InputTokens:              int(msg.Usage.InputTokens),
		OutputTokens:             int(msg.Usage.OutputTokens),
		CacheReadInputTokens:     int(msg.Usage.CacheReadInputTokens),
		CacheCreationInputTokens: int(msg.Usage.CacheCreationInputTokens),
	})
}

func accumulate(streamer MessageStreamer, ctx context.Context, params anthropic.MessageNewParams) (anthropic.Message, error) {
	stream := streamer.NewStreaming(ctx, params)
	defer stream.Close()
	msg := anthropic.Message{}
	for stream.Next() {
		if err := msg.Accumulate(stream.Current()); err != nil {
			return anthropic.Message{}, err
		}
	}
	if err := stream.Err(); err != nil {
		return anthropic.Message{}, err
	}
	return msg, nil
}

// accumulateStream is accumulate plus per-event chunk forwarding (§4.J step
// 6 / §6): text and thinking deltas are emitted as they arrive off the SSE
// stream, the same event shape the teacher's RunLoop already switches on
// (event.Type == "content_block_delta" && event.Delta.Type == "text_delta").
// Tool-call/tool-result chunks are not emitted here — those only exist once
// the full message has been accumulated and are handled by the caller.
func accumulateStream(streamer MessageStreamer, ctx context.Context, params anthropic.MessageNewParams, emit func(agent.StreamChunk)) (anthropic.Message, error) {
	stream := streamer.NewStreaming(ctx, params)
	defer stream.Close()
	msg := anthropic.Message{}
	reasoningOpen := false
	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return anthropic.Message{}, err
		}

		switch {
		case event.Type == "content_block_start" && event.ContentBlock.Type == "thinking":
			reasoningOpen = true
			emit(agent.StreamChunk{Type: agent.ChunkReasoningStart})

		case event.Type == "content_block_delta" && event.Delta.Type == "text_delta" && event.Delta.Text != "":
			emit(agent.StreamChunk{Type: agent.ChunkTextDelta, Text: event.Delta.Text})

		case event.Type == "content_block_delta" && event.Delta.Type == "thinking_delta" && event.Delta.Thinking != "":
			// §9: the legacy reasoning-delta.delta field normalizes into the
			// same Text field a text-delta chunk uses.
			emit(agent.StreamChunk{Type: agent.ChunkReasoningDelta, Text: event.Delta.Thinking})

		case event.Type == "content_block_stop" && reasoningOpen:
			reasoningOpen = false
			emit(agent.StreamChunk{Type: agent.ChunkReasoningEnd})
		}
	}
	if err := stream.Err(); err != nil {
		return anthropic.Message{}, err
	}
	return msg, nil
}

// permissionDecision is the outcome of evaluatePermission, tracking whether
// an Ask decision came from an explicit canUseTool callback (synchronous
// TOOL_ERROR, §4.E.3 / testable property 5) or from the mode-gate default
// fallback (an approval interrupt, §4.F).
type permissionDecision struct {
	allow     bool
	viaAsk    bool // decision was Ask
	viaPolicy bool // the Ask came from an explicit canUseTool callback, not the bare default fallback
}

func (d *Driver) evaluatePermission(ctx context.Context, toolName string, input json.RawMessage) (permissionDecision, string, error) {
	if !d.cfg.StaticFilter.Allows(toolName) {
		return permissionDecision{allow: false}, "tool not in allowed set", nil
	}

	if d.cfg.PermissionGate == nil {
		return permissionDecision{allow: true}, "", nil
	}

	if gate := d.cfg.PermissionGate.Gate(toolName); gate.Decided {
		reason := gate.Reason
		return permissionDecision{allow: gate.Decision == permission.Allow}, reason, nil
	}

	decision, viaCallback, err := d.cfg.PermissionGate.CheckWithOrigin(ctx, toolName, input)
	if err != nil {
		return permissionDecision{}, "", agent.NewAgentError(agent.ToolError, "permission check failed", err)
	}

	switch decision {
	case permission.Deny:
		return permissionDecision{allow: false}, "denied by permission policy", nil
	case permission.Ask:
		if viaCallback {
			// §4.E.3 + testable property 5: an explicit canUseTool Ask is a
			// synchronous failure, not a suspension.
			return permissionDecision{allow: false, viaAsk: true, viaPolicy: true}, "requires user approval", nil
		}
		return permissionDecision{viaAsk: true}, "", nil
	default:
		return permissionDecision{allow: true}, "", nil
	}
}

// runToolUse runs the whole §4.E pipeline (stages 1-6: permission checks
// via evaluatePermission, PreToolUse hooks, execution, post hooks) for every
// tool_use block in content, in order. PreToolUse hooks run for every
// allowed call, including one the mode gate allowed by itself. The first
// tool call that lands on the default
// approval-ask path (no canUseTool callback, mode gate falls through)
// suspends the whole step and returns its Signal; tool calls before it in
// the same batch have already executed and their results are discarded,
// since the model turn they belonged to never completes.
func (d *Driver) runToolUse(ctx context.Context, content []anthropic.ContentBlockUnion) ([]anthropic.ContentBlockParamUnion, *interrupt.Signal, error) {
	var results []anthropic.ContentBlockParamUnion

	for _, block := range content {
		if block.Type != "tool_use" {
			continue
		}
		toolUse := block.AsToolUse()
		toolInput := json.RawMessage(toolUse.Input)

		d.mu.Lock()
		d.pendingCalls[toolUse.ID] = pendingCall{name: toolUse.Name, input: toolInput}
		d.mu.Unlock()

		decision, reason, err := d.evaluatePermission(ctx, toolUse.Name, toolInput)
		if err != nil {
			return nil, nil, err
		}

		if decision.viaAsk && !decision.viaPolicy {
			var args map[string]any
			_ = json.Unmarshal(toolInput, &args)
			return nil, &interrupt.Signal{
				ToolCallID: toolUse.ID,
				ToolName:   toolUse.Name,
				Request:    args,
				Type:       interrupt.TypeApproval,
			}, nil
		}

		if !decision.allow {
			msg := "permission denied: " + reason
			if decision.viaPolicy {
				msg = "requires user approval"
			}
			results = append(results, anthropic.NewToolResultBlock(toolUse.ID, msg, true))
			continue
		}

		if d.cfg.Hooks != nil {
			block, reason, updated, hookErr := d.cfg.Hooks.RunPreToolUse(ctx, d.cfg.SessionID, toolUse.Name, toolInput)
			if hookErr != nil {
				results = append(results, anthropic.NewToolResultBlock(toolUse.ID, "hook error: "+hookErr.Error(), true))
				continue
			}
			if block {
				if reason == "" {
					reason = "blocked by hook"
				}
				results = append(results, anthropic.NewToolResultBlock(toolUse.ID, "tool blocked: "+reason, true))
				continue
			}
			if updated != nil {
				toolInput = updated
			}
		}

		toolResult, execErr := d.executeTool(ctx, toolUse.ID, toolUse.Name, toolInput)
		var sig *interrupt.Signal
		if execErr != nil {
			if asSignal(execErr, &sig) {
				return nil, sig, nil
			}
			if d.cfg.Hooks != nil {
				_ = d.cfg.Hooks.RunPostToolFailure(ctx, d.cfg.SessionID, toolUse.Name, toolInput, execErr)
			}
			results = append(results, anthropic.NewToolResultBlock(toolUse.ID, "error: "+execErr.Error(), true))
			continue
		}

		text := extractTextFromContent(toolResult.Content)
		if d.cfg.Hooks != nil {
			if toolResult.IsError {
				_ = d.cfg.Hooks.RunPostToolFailure(ctx, d.cfg.SessionID, toolUse.Name, toolInput, fmt.Errorf("%s", text))
			} else {
				_ = d.cfg.Hooks.RunPostToolUse(ctx, d.cfg.SessionID, toolUse.Name, toolInput, text)
			}
		}
		results = append(results, anthropic.NewToolResultBlock(toolUse.ID, text, toolResult.IsError))

		d.mu.Lock()
		delete(d.pendingCalls, toolUse.ID)
		d.mu.Unlock()
	}

	return results, nil, nil
}

// runToolUseStream is runToolUse plus tool-call/tool-result chunk emission,
// interleaved in the exact order a caller needs to preserve the ordering
// guarantee: a tool-call chunk is emitted the moment a block is recognized,
// and its tool-result chunk only once that call's outcome (permission
// denial, hook block, execution error, or success) is known.
func (d *Driver) runToolUseStream(ctx context.Context, content []anthropic.ContentBlockUnion, emit func(agent.StreamChunk)) ([]anthropic.ContentBlockParamUnion, *interrupt.Signal, error) {
	var results []anthropic.ContentBlockParamUnion

	for _, block := range content {
		if block.Type != "tool_use" {
			continue
		}
		toolUse := block.AsToolUse()
		toolInput := json.RawMessage(toolUse.Input)

		emit(agent.StreamChunk{
			Type:       agent.ChunkToolCall,
			ToolCallID: toolUse.ID,
			ToolName:   toolUse.Name,
			ToolArgs:   toolInput,
		})

		d.mu.Lock()
		d.pendingCalls[toolUse.ID] = pendingCall{name: toolUse.Name, input: toolInput}
		d.mu.Unlock()

		decision, reason, err := d.evaluatePermission(ctx, toolUse.Name, toolInput)
		if err != nil {
			return nil, nil, err
		}

		if decision.viaAsk && !decision.viaPolicy {
			var args map[string]any
			_ = json.Unmarshal(toolInput, &args)
			return nil, &interrupt.Signal{
				ToolCallID: toolUse.ID,
				ToolName:   toolUse.Name,
				Request:    args,
				Type:       interrupt.TypeApproval,
			}, nil
		}

		if !decision.allow {
			msg := "permission denied: " + reason
			if decision.viaPolicy {
				msg = "requires user approval"
			}
			results = append(results, anthropic.NewToolResultBlock(toolUse.ID, msg, true))
			emit(agent.StreamChunk{Type: agent.ChunkToolResult, ToolCallID: toolUse.ID, ToolName: toolUse.Name, ToolOutput: msg, ToolIsError: true})
			continue
		}

		if d.cfg.Hooks != nil {
			block, reason, updated, hookErr := d.cfg.Hooks.RunPreToolUse(ctx, d.cfg.SessionID, toolUse.Name, toolInput)
			if hookErr != nil {
				msg := "hook error: " + hookErr.Error()
				results = append(results, anthropic.NewToolResultBlock(toolUse.ID, msg, true))
				emit(agent.StreamChunk{Type: agent.ChunkToolResult, ToolCallID: toolUse.ID, ToolName: toolUse.Name, ToolOutput: msg, ToolIsError: true})
				continue
			}
			if block {
				if reason == "" {
					reason = "blocked by hook"
				}
				msg := "tool blocked: " + reason
				results = append(results, anthropic.NewToolResultBlock(toolUse.ID, msg, true))
				emit(agent.StreamChunk{Type: agent.ChunkToolResult, ToolCallID: toolUse.ID, ToolName: toolUse.Name, ToolOutput: msg, ToolIsError: true})
				continue
			}
			if updated != nil {
				toolInput = updated
			}
		}

		toolResult, execErr := d.executeTool(ctx, toolUse.ID, toolUse.Name, toolInput)
		var sig *interrupt.Signal
		if execErr != nil {
			if asSignal(execErr, &sig) {
				return nil, sig, nil
			}
			if d.cfg.Hooks != nil {
				_ = d.cfg.Hooks.RunPostToolFailure(ctx, d.cfg.SessionID, toolUse.Name, toolInput, execErr)
			}
			msg := "error: " + execErr.Error()
			results = append(results, anthropic.NewToolResultBlock(toolUse.ID, msg, true))
			emit(agent.StreamChunk{Type: agent.ChunkToolResult, ToolCallID: toolUse.ID, ToolName: toolUse.Name, ToolOutput: msg, ToolIsError: true})
			continue
		}

		text := extractTextFromContent(toolResult.Content)
		if d.cfg.Hooks != nil {
			if toolResult.IsError {
				_ = d.cfg.Hooks.RunPostToolFailure(ctx, d.cfg.SessionID, toolUse.Name, toolInput, fmt.Errorf("%s", text))
			} else {
				_ = d.cfg.Hooks.RunPostToolUse(ctx, d.cfg.SessionID, toolUse.Name, toolInput, text)
			}
		}
		results = append(results, anthropic.NewToolResultBlock(toolUse.ID, text, toolResult.IsError))
		emit(agent.StreamChunk{Type: agent.ChunkToolResult, ToolCallID: toolUse.ID, ToolName: toolUse.Name, ToolOutput: text, ToolIsError: toolResult.IsError})

		d.mu.Lock()
		delete(d.pendingCalls, toolUse.ID)
		d.mu.Unlock()
	}

	return results, nil, nil
}

func (d *Driver) executeTool(ctx context.Context, toolCallID, name string, input json.RawMessage) (*agent.ToolResult, error) {
	if d.cfg.Tools == nil {
		return nil, agent.NewAgentError(agent.ConfigurationError, "no tools configured", nil)
	}
	opts := agent.ToolOptions{ToolCallID: toolCallID}
	if d.cfg.Interrupts != nil {
		opts.Interrupt = d.cfg.Interrupts.Interrupt(toolCallID, name)
	}
	return d.cfg.Tools.Execute(ctx, name, input, opts)
}

func asSignal(err error, target **interrupt.Signal) bool {
	sig, ok := err.(*interrupt.Signal)
	if ok {
		*target = sig
	}
	return ok
}

func extractText(blocks []anthropic.ContentBlockUnion) string {
	var out string
	for _, b := range blocks {
		if b.Type == "text" && b.OfText != nil {
			out += b.OfText.Text
		}
	}
	return out
}

func extractTextFromContent(blocks []anthropic.ContentBlockParamUnion) string {
	for _, b := range blocks {
		if b.OfText != nil {
			return b.OfText.Text
		}
	}
	return ""
}

// toAnthropicParams converts checkpointed agent.Message history into the
// wire format, mirroring agent.Message's three shapes: opaque text, a
// tool-call part (rendered as an assistant tool_use block so a later
// tool-result part has something to reference), and a tool-result part.
func toAnthropicParams(messages []agent.Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		isAssistant := m.Role == agent.RoleAssistant

		if !m.IsStructured() {
			if isAssistant {
				out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Text)))
			} else {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
			}
			continue
		}

		var blocks []anthropic.ContentBlockParamUnion
		for _, p := range m.Parts {
			switch p.Type {
			case agent.PartText:
				blocks = append(blocks, anthropic.NewTextBlock(p.Text))
			case agent.PartToolCall:
				blocks = append(blocks, anthropic.NewToolUseBlock(p.ID, p.Args, p.Name))
			case agent.PartToolResult:
				text := resultValueText(p.Output)
				blocks = append(blocks, anthropic.NewToolResultBlock(p.ID, text, false))
				isAssistant = false // a tool-result part always belongs to a user-role turn
			}
		}
		if isAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out, nil
}

func resultValueText(v agent.ResultValue) string {
	switch v.Kind {
	case agent.ResultJSON:
		encoded, err := json.Marshal(v.Value)
		if err != nil {
			return fmt.Sprintf("%v", v.Value)
		}
		return string(encoded)
	default:
		s, _ := v.Value.(string)
		return s
	}
}
