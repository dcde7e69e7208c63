// Package turnrunner assembles a production agent.TurnRunner: the
// Checkpoint Store, Interrupt Controller, Context Manager, Retry/Fallback
// Controller, Guardrail Pipeline and Tool Permission Pipeline wired around
// internal/rundriver's model-and-tool driver. It exists outside both
// package agent and internal/turnengine because it must import every leaf
// package (checkpoint, interrupt, contextmgr, guardrail, retry, permission,
// hook) plus internal/turnengine and internal/rundriver at once; putting
// this wiring in any of those packages would close an import cycle back
// into root.
package turnrunner

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/shopspring/decimal"

	agent "github.com/anthropic-go/agentruntime"
	"github.com/anthropic-go/agentruntime/checkpoint"
	"github.com/anthropic-go/agentruntime/contextmgr"
	"github.com/anthropic-go/agentruntime/guardrail"
	"github.com/anthropic-go/agentruntime/hook"
	"github.com/anthropic-go/agentruntime/interrupt"
	"github.com/anthropic-go/agentruntime/internal/budget"
	"github.com/anthropic-go/agentruntime/internal/engine"
	"github.com/anthropic-go/agentruntime/internal/hookrunner"
	"github.com/anthropic-go/agentruntime/internal/rundriver"
	"github.com/anthropic-go/agentruntime/internal/turnengine"
	"github.com/anthropic-go/agentruntime/permission"
	"github.com/anthropic-go/agentruntime/retry"
	"github.com/anthropic-go/agentruntime/tokencount"
)

// Config configures Build. Only Streamer and Tools are required;
// everything else falls back to a default: in-memory checkpoints, no
// compaction, no hooks, and a ModeDefault permission gate after the static
// filter.
type Config struct {
	Streamer rundriver.MessageStreamer
	Tools    rundriver.ToolExecutor

	Model             anthropic.Model
	FallbackModel     anthropic.Model
	MaxOutputTokens   int
	MaxToolSteps      int
	MaxThinkingTokens int64
	SystemPrompt      string
	SessionID         string

	// CheckpointDir, if set, persists threads to disk via a FileStore;
	// otherwise threads live only in memory for the process lifetime.
	CheckpointDir string

	// PermissionMode, PermissionRules and PermissionFunc configure the Tool
	// Permission Pipeline's stages 1-3 (§4.E).
	PermissionMode  permission.Mode
	PermissionRules []permission.Rule
	PermissionFunc  permission.Func
	AllowedTools    []string
	DisallowedTools []string

	// HookMatchers wires the shared hook.Matcher definitions into every
	// pipeline stage that fires hooks (PreToolUse/PostToolUse/
	// PreGenerate/PostGenerate/PostGenerateFailure/...).
	HookMatchers []hook.Matcher

	// MaxContextTokens enables the Context Manager's rollup compaction
	// (§4.G) once the thread's token estimate crosses the policy
	// threshold. Zero disables compaction.
	MaxContextTokens int
	KeepMessageCount int

	// OnCompact, if set, is invoked with the result of every compaction the
	// Context Manager actually runs (§4.G step 5, S4). Ignored unless
	// MaxContextTokens is also set.
	OnCompact func(*contextmgr.CompactionResult)

	// MaxBudgetUSD caps cumulative spend across every GenerateStep call
	// this Runner drives (§4.H's budget exhaustion path, surfaced as an
	// AgentError with code ModelError, "budget exhausted", before the next
	// model call). Zero means unlimited.
	MaxBudgetUSD decimal.Decimal

	// InputGuards race against every new user prompt (§4.I).
	InputGuards []guardrail.Func
}

// Runner is a fully wired agent.TurnRunner, suitable for agent.SetTurnRunner.
type Runner struct {
	exec    *turnengine.TurnExecutor
	checker *permission.Checker
}

// Build assembles a Runner from cfg. It never fails: a misconfigured or
// absent optional component degrades to the corresponding pipeline stage
// being skipped, matching how NewAgent treats zero-value options.
func Build(cfg Config) *Runner {
	store, locks := buildCheckpointer(cfg.CheckpointDir)

	var hooks *hookrunner.Runner
	if len(cfg.HookMatchers) > 0 {
		if r, err := hookrunner.New(cfg.HookMatchers); err == nil {
			hooks = r
		}
	}

	var checker *permission.Checker
	if cfg.PermissionMode != permission.ModeDefault || cfg.PermissionFunc != nil || len(cfg.PermissionRules) > 0 {
		checker = permission.NewCheckerWithRules(cfg.PermissionMode, cfg.PermissionRules, cfg.PermissionFunc)
	} else {
		checker = permission.NewChecker(permission.ModeDefault, nil)
	}

	var tracker *budget.BudgetTracker
	if !cfg.MaxBudgetUSD.IsZero() {
		tracker = budget.NewBudgetTracker(cfg.MaxBudgetUSD, budget.DefaultPricing)
	}

	ctrl := interrupt.NewController()

	driver := rundriver.New(rundriver.Config{
		Streamer:          cfg.Streamer,
		Tools:             cfg.Tools,
		Model:             cfg.Model,
		FallbackModel:     cfg.FallbackModel,
		MaxOutputTokens:   cfg.MaxOutputTokens,
		MaxToolSteps:      cfg.MaxToolSteps,
		MaxThinkingTokens: cfg.MaxThinkingTokens,
		SystemPrompt:      cfg.SystemPrompt,
		SessionID:         cfg.SessionID,
		StaticFilter:      permission.StaticFilter{Allowed: cfg.AllowedTools, Disallowed: cfg.DisallowedTools},
		PermissionGate:    checker,
		Hooks:             hookToolAdapter{hooks},
		Budget:            tracker,
		Interrupts:        ctrl,
	})

	var scheduler *contextmgr.Scheduler
	var ctxManager *contextmgr.Manager
	if cfg.MaxContextTokens > 0 {
		keep := cfg.KeepMessageCount
		if keep == 0 {
			keep = 4
		}
		policy := contextmgr.Policy{Enabled: true, TokenThreshold: 0.8, HardCapThreshold: 0.95}
		summary := contextmgr.SummaryPolicy{KeepMessageCount: keep, Strategy: "rollup"}
		ctxManager = contextmgr.NewManager(cfg.MaxContextTokens, policy, summary, tokencount.New())
		ctxManager.SessionID = cfg.SessionID
		ctxManager.Hooks = hookCompactAdapter{hooks}
		ctxManager.OnCompact = cfg.OnCompact
		scheduler = contextmgr.NewScheduler(ctxManager, summarizerAdapter{driver}, contextmgr.SchedulerConfig{
			Enabled:         true,
			DebounceDelayMs: 500,
			MaxPendingTasks: 4,
		})
	}

	exec := &turnengine.TurnExecutor{
		Generator:      driver,
		Checkpointer:   store,
		Locks:          locks,
		Interrupts:     ctrl,
		ContextManager: ctxManager,
		Scheduler:      scheduler,
		// Summarizer backs the executor's synchronous-compaction fallback
		// for the (here, unused) case ContextManager is set without a
		// Scheduler; kept wired so that path works if Scheduler is ever
		// disabled without also dropping ContextManager.
		Summarizer:  summarizerAdapter{driver},
		Retry:       retry.NewController(nil),
		Hooks:       hookTurnAdapter{hooks},
		InputGuards: cfg.InputGuards,
		ToolRunner:  driver,
	}

	return &Runner{exec: exec, checker: checker}
}

// Attach builds a Runner from cfg, filling in Streamer and Tools from a when
// left unset, and wires it into a via agent.SetTurnRunner. It is the
// one-call convenience path for §6's createAgent(opts).generate(): without
// it, a caller must build the streamer/tool adapters and invoke Build and
// SetTurnRunner by hand before Generate works at all.
func Attach(a *agent.Agent, cfg Config) *Runner {
	if cfg.Streamer == nil {
		client := a.Client()
		cfg.Streamer = engine.NewMessageStreamer(&client.Messages)
	}
	if cfg.Tools == nil {
		cfg.Tools = a.Tools()
	}
	r := Build(cfg)
	a.SetTurnRunner(r)
	return r
}

// SetPermissionMode updates the permission mode the gate consults for every
// subsequent tool call. It satisfies the optional permission-mode-setter
// interface Agent.SetPermissionMode looks for.
func (r *Runner) SetPermissionMode(mode permission.Mode) {
	r.checker.SetMode(mode)
}

// buildCheckpointer returns a FileStore rooted at dir, or a MemoryStore if
// dir is empty or the FileStore cannot be created.
func buildCheckpointer(dir string) (checkpoint.Store, *checkpoint.ThreadLocks) {
	locks := checkpoint.NewThreadLocks()
	if dir == "" {
		return checkpoint.NewMemoryStore(), locks
	}
	store, err := checkpoint.NewFileStore(dir)
	if err != nil {
		return checkpoint.NewMemoryStore(), locks
	}
	return store, locks
}

// Run satisfies agent.TurnRunner.
func (r *Runner) Run(ctx context.Context, req agent.TurnRequest) (*agent.TurnResult, error) {
	return r.exec.Run(ctx, req)
}

// Resume satisfies agent.TurnRunner.
func (r *Runner) Resume(ctx context.Context, threadID, interruptID string, response any) (*agent.TurnResult, error) {
	return r.exec.Resume(ctx, threadID, interruptID, response)
}

// GetInterrupt satisfies agent.TurnRunner.
func (r *Runner) GetInterrupt(ctx context.Context, threadID string) (*agent.TurnInterrupt, error) {
	return r.exec.GetInterrupt(ctx, threadID)
}

// summarizerAdapter lets the Context Manager's Scheduler drive the same
// driver a Runner uses for normal turns to produce compaction summaries,
// per §4.G's requirement that summarization go through the model.
type summarizerAdapter struct {
	driver *rundriver.Driver
}

func (s summarizerAdapter) Summarize(ctx context.Context, compactionSet []agent.Message) (string, error) {
	prompt := agent.NewTextMessage(agent.RoleUser, "Summarize the preceding conversation concisely, preserving any decisions, facts, and open items.")
	msg, sig, err := s.driver.GenerateStep(ctx, append(append([]agent.Message(nil), compactionSet...), prompt))
	if err != nil {
		return "", err
	}
	if sig != nil {
		return "", agent.NewAgentError(agent.ContextError, "compaction summary requires tool approval, which cannot be resolved during background compaction", nil)
	}
	return msg.Text, nil
}

// hookToolAdapter bridges hookrunner.Runner to rundriver.HookRunner. A nil
// Runner means every hook call is a no-op, matching how Agent.RunWithSession
// treats an absent hookMatchers list.
type hookToolAdapter struct {
	runner *hookrunner.Runner
}

func (h hookToolAdapter) RunPreToolUse(ctx context.Context, sessionID, toolName string, input json.RawMessage) (bool, string, json.RawMessage, error) {
	if h.runner == nil {
		return false, "", nil, nil
	}
	result, err := h.runner.RunPreToolUse(ctx, sessionID, toolName, input)
	if err != nil || result == nil {
		return false, "", nil, err
	}
	return result.Block, result.Reason, result.UpdatedInput, nil
}

func (h hookToolAdapter) RunPostToolUse(ctx context.Context, sessionID, toolName string, input json.RawMessage, output string) error {
	if h.runner == nil {
		return nil
	}
	return h.runner.RunPostToolUse(ctx, sessionID, toolName, input, output)
}

func (h hookToolAdapter) RunPostToolFailure(ctx context.Context, sessionID, toolName string, input json.RawMessage, toolErr error) error {
	if h.runner == nil {
		return nil
	}
	return h.runner.RunPostToolFailure(ctx, sessionID, toolName, input, toolErr)
}

// hookCompactAdapter bridges hookrunner.Runner to contextmgr.CompactHooks. A
// nil Runner means every hook call is a no-op, matching hookToolAdapter.
type hookCompactAdapter struct {
	runner *hookrunner.Runner
}

func (h hookCompactAdapter) RunPreCompact(ctx context.Context, sessionID, strategy string) error {
	if h.runner == nil {
		return nil
	}
	return h.runner.RunPreCompact(ctx, sessionID, strategy)
}

func (h hookCompactAdapter) RunPostCompact(ctx context.Context, sessionID, strategy string) error {
	if h.runner == nil {
		return nil
	}
	return h.runner.RunPostCompact(ctx, sessionID, strategy)
}

// hookTurnAdapter bridges hookrunner.Runner to internal/turnengine's
// PreGenerateHooks, which additionally covers retry decisions.
type hookTurnAdapter struct {
	runner *hookrunner.Runner
}

func (h hookTurnAdapter) RunPreGenerate(ctx context.Context, threadID string, step int) (*agent.TurnResult, string, error) {
	if h.runner == nil {
		return nil, "", nil
	}
	if _, err := h.runner.RunPreGenerate(ctx, threadID, threadID, step); err != nil {
		return nil, "", err
	}
	return nil, "", nil
}

func (h hookTurnAdapter) RunPostGenerate(ctx context.Context, threadID string, step int) error {
	if h.runner == nil {
		return nil
	}
	return h.runner.RunPostGenerate(ctx, threadID, threadID, step)
}

func (h hookTurnAdapter) RunPostGenerateFailure(ctx context.Context, err *agent.AgentError) (retry.HookDecision, error) {
	if h.runner == nil {
		return retry.HookDecision{}, nil
	}
	result, hookErr := h.runner.RunPostGenerateFailure(ctx, "", "", 0, 0, err)
	if hookErr != nil || result == nil {
		return retry.HookDecision{}, hookErr
	}
	return retry.HookDecision{Retry: result.Retry, RetryDelayMs: result.RetryDelayMs}, nil
}
