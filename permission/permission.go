package permission

import (
	"context"
	"encoding/json"
)

// Decision represents the outcome of a permission check.
type Decision int

const (
	Allow Decision = iota // Tool execution is permitted
	Deny                  // Tool execution is blocked
	Ask                   // User should be prompted for confirmation
)

// Mode controls the default permission behavior.
type Mode int

const (
	ModeDefault           Mode = iota // read=allow, write/bash=ask
	ModeAcceptEdits                   // read+edit-family=allow, rest falls through
	ModeBypassPermissions             // all=allow
	ModePlan                          // every tool call is rejected
)

// Func is a user-provided permission callback.
// It receives the tool name and input, returns a Decision.
type Func func(ctx context.Context, toolName string, input json.RawMessage) (Decision, error)

// ReadOnlyTools lists tools classified as read-only.
// These are always allowed in Default mode.
var ReadOnlyTools = map[string]bool{
	"Read":      true,
	"Glob":      true,
	"Grep":      true,
	"WebFetch":  true,
	"WebSearch": true,
}

// DefaultEditFamily is the minimum edit-family set per §4.E.2: tools
// auto-allowed under acceptEdits mode without consulting the canUseTool
// callback (stage 3).
var DefaultEditFamily = map[string]bool{
	"Write": true,
	"Edit":  true,
}

// Checker evaluates whether a tool can be used via the mode gate (pipeline
// stage 2), optionally layered with declarative Rules and a canUseTool
// callback for a single combined evaluation (Check). The engine uses Gate
// directly when it needs to interpose PreToolUse hooks between stages;
// Check is the convenience entry point for callers that only need a final
// decision.
type Checker struct {
	mode       Mode
	editFamily map[string]bool
	rules      []Rule
	canUseTool Func
}

// NewChecker creates a permission checker with the given mode and
// edit-family set. A nil editFamily falls back to DefaultEditFamily.
func NewChecker(mode Mode, editFamily map[string]bool) *Checker {
	if editFamily == nil {
		editFamily = DefaultEditFamily
	}
	return &Checker{mode: mode, editFamily: editFamily}
}

// NewCheckerWithRules creates a permission checker that additionally
// consults declarative rules (evaluated before the mode gate) and a
// canUseTool callback (evaluated after it), for callers that want a single
// combined Check call rather than orchestrating stages individually.
func NewCheckerWithRules(mode Mode, rules []Rule, canUseTool Func) *Checker {
	return &Checker{mode: mode, editFamily: DefaultEditFamily, rules: rules, canUseTool: canUseTool}
}

// Check evaluates rules, then the mode gate, then the canUseTool callback,
// then a read-only-tools fallback, returning the first decision reached.
func (c *Checker) Check(ctx context.Context, toolName string, input json.RawMessage) (Decision, error) {
	if d, matched := MatchRules(c.rules, toolName); matched {
		return d, nil
	}
	if gate := c.Gate(toolName); gate.Decided {
		return gate.Decision, nil
	}
	if c.canUseTool != nil {
		return c.canUseTool(ctx, toolName, input)
	}
	if ReadOnlyTools[toolName] {
		return Allow, nil
	}
	return Ask, nil
}

// CheckWithOrigin evaluates the same stages as Check, but additionally
// reports whether an Ask decision came from an explicit canUseTool callback
// as opposed to the bare read-only-tools fallback. Callers that must
// distinguish a synchronous "requires approval" failure (§4.E.3) from an
// implicit approval interrupt (§4.F) use this instead of Check.
func (c *Checker) CheckWithOrigin(ctx context.Context, toolName string, input json.RawMessage) (decision Decision, viaCallback bool, err error) {
	if d, matched := MatchRules(c.rules, toolName); matched {
		return d, false, nil
	}
	if gate := c.Gate(toolName); gate.Decided {
		return gate.Decision, false, nil
	}
	if c.canUseTool != nil {
		d, err := c.canUseTool(ctx, toolName, input)
		return d, true, err
	}
	if ReadOnlyTools[toolName] {
		return Allow, false, nil
	}
	return Ask, false, nil
}

// GateResult is the outcome of the mode gate (stage 2).
type GateResult struct {
	// Decided is true when the mode gate makes a final decision by itself,
	// in which case Decision/Reason apply and the canUseTool callback
	// (stage 3) is not consulted. internal/rundriver still runs PreToolUse
	// hooks (stage 4) for a call the gate allowed. If Decided is false, the
	// call falls through to stage 3 unchanged.
	Decided  bool
	Decision Decision
	Reason   string
}

// Gate evaluates the permission-mode gate (§4.E.2) for toolName.
func (c *Checker) Gate(toolName string) GateResult {
	switch c.mode {
	case ModeBypassPermissions:
		return GateResult{Decided: true, Decision: Allow}
	case ModePlan:
		return GateResult{Decided: true, Decision: Deny, Reason: "blocked in plan mode"}
	case ModeAcceptEdits:
		if c.editFamily[toolName] {
			return GateResult{Decided: true, Decision: Allow}
		}
		return GateResult{Decided: false}
	default: // ModeDefault
		return GateResult{Decided: false}
	}
}

// Mode returns the current permission mode.
func (c *Checker) Mode() Mode {
	return c.mode
}

// SetMode updates the permission mode.
func (c *Checker) SetMode(mode Mode) {
	c.mode = mode
}
