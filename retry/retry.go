// Package retry implements the Retry / Fallback Controller (§4.H): the
// per-attempt state machine wrapped around a single generation call,
// generalising the teacher's inline isRetryableError + fallback switch in
// internal/engine/loop.go into a full hook-driven retry policy over the
// closed AgentError taxonomy.
package retry

import (
	"context"
	"errors"
	"time"

	agent "github.com/anthropic-go/agentruntime"
	"github.com/anthropic-go/agentruntime/interrupt"
)

// DefaultMaxRetries is the ceiling on retry attempts per turn (§4.H).
const DefaultMaxRetries = 10

// Generator is the narrow ModelDriver view the controller needs.
type Generator interface {
	Generate(ctx context.Context) (any, error)
}

// HookDecision is what a PostGenerateFailure hook returns.
type HookDecision struct {
	Retry        bool
	RetryDelayMs int64
}

// HookRunner is the narrow hook view the controller needs.
type HookRunner interface {
	RunPostGenerateFailure(ctx context.Context, err *agent.AgentError) (HookDecision, error)
}

// Controller drives the retry/fallback state machine for one turn.
type Controller struct {
	MaxRetries     int
	FallbackModel  Generator
	ShouldFallback func(err *agent.AgentError) bool

	retryAttempt int
	usedFallback bool
}

// NewController returns a Controller with DefaultMaxRetries and the
// default "retryable and transient" fallback policy.
func NewController(fallback Generator) *Controller {
	return &Controller{
		MaxRetries:     DefaultMaxRetries,
		FallbackModel:  fallback,
		ShouldFallback: DefaultShouldUseFallback,
	}
}

// DefaultShouldUseFallback implements §4.H's default policy: retryable and
// transient errors trigger fallback; auth/validation errors never do.
func DefaultShouldUseFallback(err *agent.AgentError) bool {
	switch err.Code {
	case agent.RateLimitError, agent.TimeoutError, agent.NetworkError, agent.BackendError:
		return true
	default:
		return false
	}
}

// Run executes the retry/fallback state machine around primary, retrying
// via hooks.RunPostGenerateFailure and falling back to c.FallbackModel at
// most once per turn.
func (c *Controller) Run(ctx context.Context, threadID string, primary Generator, hooks HookRunner) (any, error) {
	current := primary

	for {
		result, err := current.Generate(ctx)
		if err == nil {
			return result, nil
		}

		// An interrupt is control flow, not a generation failure (§9): it
		// must not be normalised via wrapError, must not trigger
		// PostGenerateFailure, and must never itself be retried or trigger
		// a fallback-model switch.
		var sig *interrupt.Signal
		if errors.As(err, &sig) {
			return nil, err
		}

		normalised := normalise(err, threadID)

		if hooks != nil {
			decision, hookErr := hooks.RunPostGenerateFailure(ctx, normalised)
			if hookErr == nil && decision.Retry && c.retryAttempt < c.MaxRetries {
				c.retryAttempt++
				if decision.RetryDelayMs > 0 {
					sleep(ctx, decision.RetryDelayMs)
				}
				continue
			}
		}

		if c.FallbackModel != nil && !c.usedFallback && c.ShouldFallback(normalised) {
			current = c.FallbackModel
			c.usedFallback = true
			continue
		}

		return nil, normalised
	}
}

func normalise(err error, threadID string) *agent.AgentError {
	var ae *agent.AgentError
	if !errors.As(err, &ae) {
		ae = agent.NewAgentError(agent.ModelError, "generation failed", err)
	}
	if threadID != "" {
		ae = ae.WithMetadata("threadId", threadID)
	}
	return ae
}

func sleep(ctx context.Context, delayMs int64) {
	select {
	case <-time.After(time.Duration(delayMs) * time.Millisecond):
	case <-ctx.Done():
	}
}

// UsedFallback reports whether the fallback model has been engaged this
// turn.
func (c *Controller) UsedFallback() bool { return c.usedFallback }

// RetryAttempt returns the number of retries performed so far this turn.
func (c *Controller) RetryAttempt() int { return c.retryAttempt }
