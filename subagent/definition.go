// Package subagent provides parent-to-child agent delegation.
// A parent Agent can spawn child Agents via the Task tool.
// Each child runs in an independent goroutine with its own session.
package subagent

import (
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/shopspring/decimal"

	agent "github.com/anthropic-go/agentruntime"
)

// Definition describes a named sub-agent that can be spawned by the parent.
type Definition struct {
	// Name is the unique identifier used to reference this sub-agent in the Task tool.
	Name string

	// Model overrides the parent's model. Empty means inherit parent.
	Model anthropic.Model

	// Instructions, when set, is the sub-agent's system prompt. The parent's
	// system prompt is not carried over.
	Instructions string

	// Tools lists tool names for this sub-agent. buildChildOptions does not
	// read it, and the parent's tools are not carried over to the child.
	Tools []string

	// Options are additional AgentOption functions applied to the child Agent.
	Options []agent.AgentOption

	// MaxTurns limits the sub-agent's loop iterations. 0 means inherit parent.
	MaxTurns int

	// MaxBudget limits the sub-agent's spend. Zero leaves the child without a
	// budget limit; the parent's budget is not carried over.
	MaxBudget decimal.Decimal
}
