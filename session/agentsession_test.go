package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agent "github.com/anthropic-go/agentruntime"
	"github.com/anthropic-go/agentruntime/taskmanager"
	"github.com/anthropic-go/agentruntime/taskstore"
)

type fakeGenerator struct {
	fn func(ctx context.Context, req agent.TurnRequest) (*agent.TurnResult, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, req agent.TurnRequest) (*agent.TurnResult, error) {
	return f.fn(ctx, req)
}

func echoGenerator() *fakeGenerator {
	return &fakeGenerator{fn: func(ctx context.Context, req agent.TurnRequest) (*agent.TurnResult, error) {
		return &agent.TurnResult{Status: agent.TurnComplete, Text: "echo: " + req.Prompt}, nil
	}}
}

func drainUntil(t *testing.T, out <-chan Output, typ OutputType) Output {
	t.Helper()
	for {
		select {
		case o, ok := <-out:
			if !ok {
				t.Fatalf("output channel closed before seeing %s", typ)
			}
			if o.Type == typ {
				return o
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func TestAgentSession_SendMessageYieldsGenerationComplete(t *testing.T) {
	gen := echoGenerator()
	s := NewAgentSession(AgentSessionConfig{ThreadID: "thread_1", Generator: gen})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.SendMessage("hello")

	out := drainUntil(t, s.Outputs(), OutputGenerationComplete)
	require.NotNil(t, out.Result)
	assert.Equal(t, "echo: hello", out.Result.Text)

	s.Stop()
}

func TestAgentSession_GenerateErrorSurfacesOnOutput(t *testing.T) {
	gen := &fakeGenerator{fn: func(ctx context.Context, req agent.TurnRequest) (*agent.TurnResult, error) {
		return nil, agent.NewAgentError(agent.ModelError, "boom", nil)
	}}
	s := NewAgentSession(AgentSessionConfig{ThreadID: "thread_1", Generator: gen})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.SendMessage("hello")

	out := drainUntil(t, s.Outputs(), OutputGenerationComplete)
	assert.Error(t, out.Err)

	s.Stop()
}

func TestAgentSession_TaskEventTriggersFollowUpGenerate(t *testing.T) {
	var receivedPrompts []string
	gen := &fakeGenerator{fn: func(ctx context.Context, req agent.TurnRequest) (*agent.TurnResult, error) {
		receivedPrompts = append(receivedPrompts, req.Prompt)
		return &agent.TurnResult{Status: agent.TurnComplete, Text: "ok"}, nil
	}}

	store := taskstore.NewMemoryStore("test")
	tasks := taskmanager.New(store, func(ctx context.Context, subagentType, description string) (any, error) {
		return "task result", nil
	})

	s := NewAgentSession(AgentSessionConfig{
		ThreadID:                   "thread_1",
		Generator:                  gen,
		Tasks:                      tasks,
		AutoProcessTaskCompletions: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	id, err := tasks.Spawn(context.Background(), "researcher", "look into it")
	require.NoError(t, err)

	out := drainUntil(t, s.Outputs(), OutputTaskUpdate)
	assert.Equal(t, id, out.TaskID)
	assert.Equal(t, string(taskstore.StatusCompleted), out.TaskStatus)

	drainUntil(t, s.Outputs(), OutputGenerationComplete)

	require.Len(t, receivedPrompts, 1)
	assert.Contains(t, receivedPrompts[0], id)
	assert.False(t, tasks.Registered(id))

	s.Stop()
}

func TestAgentSession_DedupDiscardsEventForConsumedTask(t *testing.T) {
	gen := echoGenerator()
	store := taskstore.NewMemoryStore("test")
	tasks := taskmanager.New(store, func(ctx context.Context, subagentType, description string) (any, error) {
		return "task result", nil
	})

	s := NewAgentSession(AgentSessionConfig{
		ThreadID:                   "thread_1",
		Generator:                  gen,
		Tasks:                      tasks,
		AutoProcessTaskCompletions: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	id, err := tasks.Spawn(context.Background(), "researcher", "look into it")
	require.NoError(t, err)

	// Simulate the task_output tool having already consumed the task inside
	// an earlier generation, before the completion event is processed.
	require.Eventually(t, func() bool {
		return tasks.Registered(id)
	}, time.Second, 10*time.Millisecond)
	tasks.Remove(id)

	// No task_update or generation_complete should ever arrive for this
	// event; only waiting_for_input events should cycle.
	deadline := time.After(300 * time.Millisecond)
	for {
		select {
		case o := <-s.Outputs():
			assert.NotEqual(t, OutputTaskUpdate, o.Type)
		case <-deadline:
			s.Stop()
			return
		}
	}
}

func TestAgentSession_AutoProcessDisabled_IgnoresTaskEvents(t *testing.T) {
	gen := echoGenerator()
	store := taskstore.NewMemoryStore("test")
	tasks := taskmanager.New(store, func(ctx context.Context, subagentType, description string) (any, error) {
		return "task result", nil
	})

	s := NewAgentSession(AgentSessionConfig{
		ThreadID:                   "thread_1",
		Generator:                  gen,
		Tasks:                      tasks,
		AutoProcessTaskCompletions: false,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	_, err := tasks.Spawn(context.Background(), "researcher", "look into it")
	require.NoError(t, err)

	deadline := time.After(300 * time.Millisecond)
	for {
		select {
		case o := <-s.Outputs():
			assert.NotEqual(t, OutputTaskUpdate, o.Type)
		case <-deadline:
			s.Stop()
			return
		}
	}
}

func TestAgentSession_StopTerminatesRunLoop(t *testing.T) {
	gen := echoGenerator()
	s := NewAgentSession(AgentSessionConfig{ThreadID: "thread_1", Generator: gen})

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	// Drain the initial waiting_for_input so Run doesn't block forever on a
	// full buffer before it notices Stop.
	<-s.Outputs()

	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}

	_, ok := <-s.Outputs()
	assert.False(t, ok, "Outputs channel should be closed after Run returns")
}
