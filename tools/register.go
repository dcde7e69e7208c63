package tools

import (
	agent "github.com/anthropic-go/agentruntime"
	"github.com/anthropic-go/agentruntime/internal/builtin"
)

// The Edit and Bash tools are implemented in internal/builtin.
type (
	EditTool  = builtin.EditTool
	EditInput = builtin.EditInput
	BashTool  = builtin.BashTool
	BashInput = builtin.BashInput
)

// RegisterAll registers all built-in tools into the provided registry.
func RegisterAll(registry *agent.ToolRegistry) {
	agent.RegisterTool(registry, &ReadTool{})
	agent.RegisterTool(registry, &WriteTool{})
	agent.RegisterTool(registry, &EditTool{})
	agent.RegisterTool(registry, &BashTool{})
	agent.RegisterTool(registry, &GlobTool{})
	agent.RegisterTool(registry, &GrepTool{})
}
