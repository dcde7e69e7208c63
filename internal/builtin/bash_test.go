package builtin

import (
	agent "github.com/anthropic-go/agentruntime"

	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// extractText gets the text content from a ToolResult's first content block.
func extractText(r *agent.ToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	b, err := json.Marshal(r.Content[0])
	if err != nil {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return ""
	}
	text, _ := m["text"].(string)
	return text
}

func TestBashTool_Name(t *testing.T) {
	tool := &BashTool{}
	assert.Equal(t, "Bash", tool.Name())
}

func TestBashTool_Execute_SimpleCommand(t *testing.T) {
	tool := &BashTool{}
	result, err := tool.Execute(context.Background(), BashInput{
		Command: "echo hello",
	}, agent.ToolOptions{})
	require.NoError(t, err)
	text := extractText(result)
	assert.Contains(t, text, "hello")
	assert.Equal(t, 0, result.Metadata["exit_code"])
}

func TestBashTool_Execute_ExitCode(t *testing.T) {
	tool := &BashTool{}
	result, err := tool.Execute(context.Background(), BashInput{
		Command: "exit 42",
	}, agent.ToolOptions{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, 42, result.Metadata["exit_code"])
}

func TestBashTool_Execute_EmptyCommand(t *testing.T) {
	tool := &BashTool{}
	result, err := tool.Execute(context.Background(), BashInput{
		Command: "",
	}, agent.ToolOptions{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(result), "command is required")
}

func TestBashTool_Execute_Stderr(t *testing.T) {
	tool := &BashTool{}
	result, err := tool.Execute(context.Background(), BashInput{
		Command: "echo error_msg >&2",
	}, agent.ToolOptions{})
	require.NoError(t, err)
	text := extractText(result)
	assert.Contains(t, text, "error_msg")
}

func TestBashTool_Execute_Timeout(t *testing.T) {
	tool := &BashTool{}
	timeoutMs := 500
	result, err := tool.Execute(context.Background(), BashInput{
		Command: "sleep 10",
		Timeout: &timeoutMs,
	}, agent.ToolOptions{})
	require.NoError(t, err)
	// Should either time out or have non-zero exit code
	assert.True(t, result.IsError)
}

func TestBashTool_Execute_MultilineOutput(t *testing.T) {
	tool := &BashTool{}
	result, err := tool.Execute(context.Background(), BashInput{
		Command: "echo line1; echo line2; echo line3",
	}, agent.ToolOptions{})
	require.NoError(t, err)
	text := extractText(result)
	assert.Contains(t, text, "line1")
	assert.Contains(t, text, "line2")
	assert.Contains(t, text, "line3")
}

func TestBashTool_Execute_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	tool := &BashTool{}
	result, err := tool.Execute(context.Background(), BashInput{
		Command: "cd " + dir + " && pwd",
	}, agent.ToolOptions{})
	require.NoError(t, err)
	text := extractText(result)
	assert.Contains(t, text, dir)
}
