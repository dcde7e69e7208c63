package tools

import (
	"context"
	"fmt"

	agent "github.com/anthropic-go/agentruntime"
	"github.com/anthropic-go/agentruntime/taskmanager"
)

// SpawnTaskInput defines the input for the SpawnTask tool.
type SpawnTaskInput struct {
	SubagentType string `json:"subagent_type" jsonschema:"required,description=Type of sub-agent to run the task"`
	Description  string `json:"description" jsonschema:"required,description=What the background task should do"`
}

// SpawnTaskTool registers a BackgroundTask with a taskmanager.Manager and
// returns immediately with its id, unlike Task which blocks until the
// sub-agent finishes. The task's eventual completion is delivered out of
// band, to whatever session loop is subscribed to the Manager's events.
type SpawnTaskTool struct {
	manager *taskmanager.Manager
}

// NewSpawnTaskTool creates a SpawnTaskTool backed by manager.
func NewSpawnTaskTool(manager *taskmanager.Manager) *SpawnTaskTool {
	return &SpawnTaskTool{manager: manager}
}

var _ agent.Tool[SpawnTaskInput] = (*SpawnTaskTool)(nil)

func (t *SpawnTaskTool) Name() string { return "SpawnTask" }
func (t *SpawnTaskTool) Description() string {
	return "Start a background task without waiting for it to finish; its completion is reported back into the conversation later"
}

func (t *SpawnTaskTool) Execute(ctx context.Context, input SpawnTaskInput, _ agent.ToolOptions) (*agent.ToolResult, error) {
	if input.SubagentType == "" {
		return agent.ErrorResult("subagent_type is required"), nil
	}
	if input.Description == "" {
		return agent.ErrorResult("description is required"), nil
	}

	id, err := t.manager.Spawn(ctx, input.SubagentType, input.Description)
	if err != nil {
		return agent.ErrorResult(fmt.Sprintf("failed to spawn background task: %s", err.Error())), nil
	}

	return agent.TextResult(fmt.Sprintf("started background task %s", id)), nil
}

// TaskOutputInput defines the input for the TaskOutput tool.
type TaskOutputInput struct {
	TaskID string `json:"task_id" jsonschema:"required,description=Id of a previously spawned background task"`
}

// TaskOutputTool reads a background task's current state and, if it has
// reached a terminal status, consumes it: the task is unregistered from
// the Manager so a later taskCompleted/taskFailed event for the same id is
// discarded by the session loop's deduplication rule rather than
// triggering a redundant follow-up generation.
type TaskOutputTool struct {
	manager *taskmanager.Manager
}

// NewTaskOutputTool creates a TaskOutputTool backed by manager.
func NewTaskOutputTool(manager *taskmanager.Manager) *TaskOutputTool {
	return &TaskOutputTool{manager: manager}
}

var _ agent.Tool[TaskOutputInput] = (*TaskOutputTool)(nil)

func (t *TaskOutputTool) Name() string { return "TaskOutput" }
func (t *TaskOutputTool) Description() string {
	return "Check on a background task's status, retrieving its result once it has finished"
}

func (t *TaskOutputTool) Execute(ctx context.Context, input TaskOutputInput, _ agent.ToolOptions) (*agent.ToolResult, error) {
	if input.TaskID == "" {
		return agent.ErrorResult("task_id is required"), nil
	}

	task, ok := t.manager.Get(input.TaskID)
	if !ok {
		return agent.ErrorResult(fmt.Sprintf("no such background task: %s", input.TaskID)), nil
	}

	if !task.Status.IsTerminal() {
		return agent.TextResult(fmt.Sprintf("task %s is still %s", task.ID, task.Status)), nil
	}

	t.manager.Remove(task.ID)

	if task.Err != "" {
		return agent.TextResult(fmt.Sprintf("task %s failed: %s", task.ID, task.Err)), nil
	}
	return agent.TextResult(fmt.Sprintf("task %s completed: %v", task.ID, task.Result)), nil
}
