package guardrail_test

import (
	"context"
	"testing"
	"time"

	"github.com/anthropic-go/agentruntime/guardrail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaceGuardrailsNoneBlock(t *testing.T) {
	pass := func(_ context.Context, _ string) guardrail.Result { return guardrail.Result{Blocked: false} }
	err := guardrail.RaceGuardrails(context.Background(), "hello", []guardrail.Func{pass, pass})
	require.NoError(t, err)
}

func TestRaceGuardrailsFirstBlockWins(t *testing.T) {
	blockA := func(_ context.Context, _ string) guardrail.Result {
		return guardrail.Result{Blocked: true, Reason: "contains secret"}
	}
	pass := func(_ context.Context, _ string) guardrail.Result { return guardrail.Result{Blocked: false} }

	err := guardrail.RaceGuardrails(context.Background(), "hello", []guardrail.Func{blockA, pass})
	require.Error(t, err)
	var pde *guardrail.PermissionDeniedError
	require.ErrorAs(t, err, &pde)
	assert.Equal(t, "contains secret", pde.Reason)
}

func TestRaceGuardrailsEmptyList(t *testing.T) {
	err := guardrail.RaceGuardrails(context.Background(), "hello", nil)
	require.NoError(t, err)
}

func TestBufferedOutputGuardrailPassesThrough(t *testing.T) {
	allow := func(_ context.Context, _ string) guardrail.Result { return guardrail.Result{Blocked: false} }
	b := guardrail.NewBufferedOutputGuardrail(allow)

	require.NoError(t, b.AddContent("chunk1"))
	require.NoError(t, b.AddContent("chunk2"))

	flushed, err := b.Finalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"chunk1", "chunk2"}, flushed)
	assert.Equal(t, guardrail.OutputPassed, b.State())
}

func TestBufferedOutputGuardrailBlocks(t *testing.T) {
	deny := func(_ context.Context, _ string) guardrail.Result {
		return guardrail.Result{Blocked: true, Reason: "bad output"}
	}
	b := guardrail.NewBufferedOutputGuardrail(deny)

	require.NoError(t, b.AddContent("chunk1"))
	flushed, err := b.Finalize(context.Background())
	require.Error(t, err)
	assert.Nil(t, flushed)
	assert.Equal(t, guardrail.OutputBlocked, b.State())

	err = b.AddContent("chunk2")
	assert.Error(t, err, "AddContent must be rejected once blocked")
}

func TestWithTimeoutFailOpenByDefault(t *testing.T) {
	slow := func(ctx context.Context, _ string) guardrail.Result {
		<-ctx.Done()
		return guardrail.Result{Blocked: true, Reason: "too slow to tell"}
	}
	wrapped := guardrail.WithTimeout(slow, 10*time.Millisecond, false)

	result := wrapped(context.Background(), "text")
	assert.False(t, result.Blocked)
}

func TestWithTimeoutFailClosed(t *testing.T) {
	slow := func(ctx context.Context, _ string) guardrail.Result {
		<-ctx.Done()
		return guardrail.Result{Blocked: false}
	}
	wrapped := guardrail.WithTimeout(slow, 10*time.Millisecond, true)

	result := wrapped(context.Background(), "text")
	assert.True(t, result.Blocked)
	assert.Equal(t, "Guardrail check timed out", result.Reason)
}

func TestWithTimeoutFastGuardrailIsUnaffected(t *testing.T) {
	fast := func(_ context.Context, _ string) guardrail.Result { return guardrail.Result{Blocked: false} }
	wrapped := guardrail.WithTimeout(fast, 50*time.Millisecond, true)

	result := wrapped(context.Background(), "text")
	assert.False(t, result.Blocked)
}
