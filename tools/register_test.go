package tools

import (
	"context"
	"testing"

	agent "github.com/anthropic-go/agentruntime"
	"github.com/stretchr/testify/assert"
)

func TestRegisterAll_RegistersBuiltins(t *testing.T) {
	registry := agent.NewToolRegistry()
	RegisterAll(registry)

	names := registry.Names()
	for _, want := range []string{"Read", "Write", "Edit", "Bash", "Glob", "Grep"} {
		assert.Contains(t, names, want)
	}
}

func TestRegisterConfigurable_SkipsCallbacksWhenNil(t *testing.T) {
	registry := agent.NewToolRegistry()
	RegisterConfigurable(registry, BuiltinOptions{})

	names := registry.Names()
	assert.NotContains(t, names, "AskUserQuestion")
	assert.NotContains(t, names, "ExitPlanMode")
	assert.Contains(t, names, "TodoWrite")
}

func TestRegisterConfigurable_RegistersWhenCallbacksPresent(t *testing.T) {
	registry := agent.NewToolRegistry()
	RegisterConfigurable(registry, BuiltinOptions{
		AskCallback: func(ctx context.Context, question string, options []AskOption) (string, error) {
			return "", nil
		},
		PlanCallback: func(ctx context.Context, plan string) error {
			return nil
		},
	})

	names := registry.Names()
	assert.Contains(t, names, "AskUserQuestion")
	assert.Contains(t, names, "ExitPlanMode")
	assert.Contains(t, names, "TodoWrite")
}
