package tools

import (
	agent "github.com/anthropic-go/agentruntime"

	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobTool_Name(t *testing.T) {
	tool := &GlobTool{}
	assert.Equal(t, "Glob", tool.Name())
}

func TestGlobTool_Execute_EmptyPattern(t *testing.T) {
	tool := &GlobTool{}
	result, err := tool.Execute(context.Background(), GlobInput{Pattern: ""}, agent.ToolOptions{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestGlobTool_Execute_MatchesFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.go"), []byte("package b"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), []byte("not go"), 0644))

	tool := &GlobTool{}
	result, err := tool.Execute(context.Background(), GlobInput{
		Pattern: "*.go",
		Path:    dir,
	}, agent.ToolOptions{})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := extractText(result)
	assert.Contains(t, text, "a.go")
	assert.Contains(t, text, "b.go")
	assert.NotContains(t, text, "c.txt")
}

func TestGlobTool_Execute_NoMatches(t *testing.T) {
	dir := t.TempDir()

	tool := &GlobTool{}
	result, err := tool.Execute(context.Background(), GlobInput{
		Pattern: "*.nonexistent",
		Path:    dir,
	}, agent.ToolOptions{})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, extractText(result), "No files matched")
}

func TestGlobTool_Execute_RecursivePattern(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "sub", "deeper")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "z.go"), []byte("package z"), 0644))

	tool := &GlobTool{}
	result, err := tool.Execute(context.Background(), GlobInput{
		Pattern: "**/*.go",
		Path:    dir,
	}, agent.ToolOptions{})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, extractText(result), "z.go")
}
