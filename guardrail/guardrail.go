// Package guardrail implements the Guardrail Pipeline (§4.I): parallel
// input racing and a buffered output-stream wrapper, generalising the
// teacher's internal/hookrunner.Runner context.WithTimeout + cancel-on-
// first-result idiom to a goroutine-per-guardrail race.
package guardrail

import (
	"context"
	"sync"
	"time"

	agent "github.com/anthropic-go/agentruntime"
)

// Result is what a single guardrail check returns.
type Result struct {
	Blocked           bool
	Reason            string
	BlockedMessageIDs []string
}

// Func is a guardrail: (text, signal) -> Result. signal is cancelled by
// RaceGuardrails as soon as any guardrail blocks, so the remaining
// guardrails can observe ctx.Done() and abandon their work early.
type Func func(ctx context.Context, text string) Result

// PermissionDeniedError is returned when a guardrail blocks the turn.
type PermissionDeniedError struct {
	Reason            string
	BlockedMessageIDs []string
}

func (e *PermissionDeniedError) Error() string {
	return "agent: generation blocked by guardrail: " + e.Reason
}

// RaceGuardrails runs all guardrails concurrently against text. The shared
// context is cancelled as soon as any guardrail returns Blocked; the first
// blocking result wins and is returned as a *PermissionDeniedError. If no
// guardrail blocks, RaceGuardrails returns nil.
func RaceGuardrails(ctx context.Context, text string, guardrails []Func) error {
	if len(guardrails) == 0 {
		return nil
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		result Result
		order  int
	}
	results := make(chan outcome, len(guardrails))

	var wg sync.WaitGroup
	for i, g := range guardrails {
		wg.Add(1)
		go func(i int, g Func) {
			defer wg.Done()
			r := g(raceCtx, text)
			results <- outcome{result: r, order: i}
		}(i, g)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var firstBlock *outcome
	for o := range results {
		if o.result.Blocked && firstBlock == nil {
			cancel()
			local := o
			firstBlock = &local
		}
	}

	if firstBlock != nil {
		return &PermissionDeniedError{
			Reason:            firstBlock.result.Reason,
			BlockedMessageIDs: firstBlock.result.BlockedMessageIDs,
		}
	}
	return nil
}

// OutputState is the lifecycle of a BufferedOutputGuardrail.
type OutputState string

const (
	OutputBuffering OutputState = "buffering"
	OutputPassed    OutputState = "passed"
	OutputBlocked   OutputState = "blocked"
	OutputError     OutputState = "error"
)

// BufferedOutputGuardrail buffers streamed output chunks while a guardrail
// check is pending, flushing them only once the check passes (§4.I).
type BufferedOutputGuardrail struct {
	mu      sync.Mutex
	state   OutputState
	buffer  []string
	check   Func
	content string
}

// NewBufferedOutputGuardrail returns a guardrail wrapper in the buffering
// state.
func NewBufferedOutputGuardrail(check Func) *BufferedOutputGuardrail {
	return &BufferedOutputGuardrail{state: OutputBuffering, check: check}
}

// AddContent buffers a chunk of streamed text. It is rejected once the
// guardrail has blocked.
func (b *BufferedOutputGuardrail) AddContent(chunk string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == OutputBlocked {
		return agent.NewAgentError(agent.ValidationError, "guardrail already blocked this stream", nil)
	}
	b.buffer = append(b.buffer, chunk)
	b.content += chunk
	return nil
}

// Finalize runs the guardrail check against the accumulated content. On
// success, the state becomes passed and the buffered chunks are returned
// for the caller to flush downstream. On block, the state becomes blocked,
// nothing is flushed, and a *PermissionDeniedError is returned.
func (b *BufferedOutputGuardrail) Finalize(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == OutputBlocked {
		return nil, &PermissionDeniedError{Reason: "stream already blocked"}
	}

	result := b.check(ctx, b.content)
	if result.Blocked {
		b.state = OutputBlocked
		return nil, &PermissionDeniedError{Reason: result.Reason, BlockedMessageIDs: result.BlockedMessageIDs}
	}

	b.state = OutputPassed
	flushed := b.buffer
	b.buffer = nil
	return flushed, nil
}

// State returns the current lifecycle state.
func (b *BufferedOutputGuardrail) State() OutputState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// WithTimeout wraps a guardrail so that if it exceeds timeout, it resolves
// to {blocked:false} (fail-open) unless failClosed is set, in which case
// it resolves to {blocked:true, reason:"Guardrail check timed out"}.
func WithTimeout(g Func, timeout time.Duration, failClosed bool) Func {
	return func(ctx context.Context, text string) Result {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		done := make(chan Result, 1)
		go func() { done <- g(ctx, text) }()

		select {
		case r := <-done:
			return r
		case <-ctx.Done():
			if failClosed {
				return Result{Blocked: true, Reason: "Guardrail check timed out"}
			}
			return Result{Blocked: false}
		}
	}
}
