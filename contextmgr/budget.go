// Package contextmgr implements the Context Manager and background
// Compaction Scheduler (§4.G): token-budget tracking and the rollup
// summarisation algorithm that sheds older turns under pressure.
package contextmgr

import (
	"context"
	"sync"
	"time"

	agent "github.com/anthropic-go/agentruntime"
	"github.com/anthropic-go/agentruntime/tokencount"
)

// TokenBudget mirrors §3's TokenBudget entity.
type TokenBudget struct {
	MaxTokens     int
	CurrentTokens int
	Usage         float64
	Remaining     int
	IsActual      bool
}

func newBudget(maxTokens, currentTokens int, isActual bool) TokenBudget {
	usage := 0.0
	if maxTokens > 0 {
		usage = float64(currentTokens) / float64(maxTokens)
	}
	remaining := maxTokens - currentTokens
	if remaining < 0 {
		remaining = 0
	}
	return TokenBudget{
		MaxTokens:     maxTokens,
		CurrentTokens: currentTokens,
		Usage:         usage,
		Remaining:     remaining,
		IsActual:      isActual,
	}
}

// actualUsage is the latest model-reported token usage observed, guarded by
// a single-slot mutex the way the teacher's budget.BudgetTracker guards its
// cumulative totals.
type actualUsage struct {
	mu          sync.Mutex
	tokens      int
	recordedAt  time.Time
	messageHash string
}

// CompactHooks is the narrow hook view Compact fires around an actual
// compaction, mirroring internal/hookrunner.Runner's PreCompact/PostCompact
// methods structurally so this package doesn't need to import it.
type CompactHooks interface {
	RunPreCompact(ctx context.Context, sessionID, strategy string) error
	RunPostCompact(ctx context.Context, sessionID, strategy string) error
}

// Manager is the Context Manager (§4.G): tracks the token budget for a
// thread and decides when compaction should trigger.
type Manager struct {
	maxTokens int
	policy    Policy
	summary   SummaryPolicy
	counter   *tokencount.Counter

	usage actualUsage

	// SessionID identifies the thread to Hooks' PreCompact/PostCompact
	// calls. OnCompact, if set, is invoked with the result of every
	// non-empty Compact call (§4.G step 5); Hooks, if set, additionally
	// wraps that same compaction in PreCompact/PostCompact.
	SessionID string
	OnCompact func(*CompactionResult)
	Hooks     CompactHooks
}

// Policy configures compaction triggering.
type Policy struct {
	Enabled          bool
	TokenThreshold   float64 // in [0,1]
	HardCapThreshold float64 // in [0,1]
}

// SummaryPolicy configures the rollup compaction algorithm.
type SummaryPolicy struct {
	KeepMessageCount    int
	KeepToolResultCount int
	Strategy            string // "rollup" is the only implemented strategy
}

// NewManager constructs a Manager. A nil counter falls back to
// tokencount.New().
func NewManager(maxTokens int, policy Policy, summary SummaryPolicy, counter *tokencount.Counter) *Manager {
	if counter == nil {
		counter = tokencount.New()
	}
	return &Manager{maxTokens: maxTokens, policy: policy, summary: summary, counter: counter}
}

// RecordActualUsage records a model-reported token count for the given
// message-sequence hash, making it the "freshest" usage source for
// GetBudget until the messages change again.
func (m *Manager) RecordActualUsage(tokens int, messageHash string) {
	m.usage.mu.Lock()
	defer m.usage.mu.Unlock()
	m.usage.tokens = tokens
	m.usage.recordedAt = time.Now()
	m.usage.messageHash = messageHash
}

// GetBudget returns the current TokenBudget for messages. If the last
// observed model usage record is for the same message sequence (same
// hash), it is returned with IsActual=true; otherwise the estimate from
// the token counter is used.
func (m *Manager) GetBudget(messages []agent.Message) TokenBudget {
	hash := hashMessages(messages)

	m.usage.mu.Lock()
	actual, actualHash := m.usage.tokens, m.usage.messageHash
	m.usage.mu.Unlock()

	if actualHash == hash && actualHash != "" {
		return newBudget(m.maxTokens, actual, true)
	}

	estimated := m.counter.CountMessages(toCountMessages(messages))
	return newBudget(m.maxTokens, estimated, false)
}

// CompactDecision is the result of shouldCompact.
type CompactDecision struct {
	Trigger bool
	Reason  string
}

// ShouldCompact implements §4.G's trigger logic.
func (m *Manager) ShouldCompact(messages []agent.Message) CompactDecision {
	if !m.policy.Enabled {
		return CompactDecision{Trigger: false}
	}

	budget := m.GetBudget(messages)
	switch {
	case budget.Usage >= m.policy.HardCapThreshold:
		return CompactDecision{Trigger: true, Reason: "hard_cap"}
	case budget.Usage >= m.policy.TokenThreshold:
		return CompactDecision{Trigger: true, Reason: "token_threshold"}
	default:
		return CompactDecision{Trigger: false}
	}
}

func toCountMessages(messages []agent.Message) []tokencount.Message {
	out := make([]tokencount.Message, len(messages))
	for i, m := range messages {
		out[i] = tokencount.Message{Content: flattenMessageText(m)}
	}
	return out
}

func flattenMessageText(m agent.Message) string {
	if !m.IsStructured() {
		return m.Text
	}
	var sb []byte
	for _, p := range m.Parts {
		switch p.Type {
		case agent.PartText:
			sb = append(sb, p.Text...)
		case agent.PartReasoning:
			sb = append(sb, p.ReasoningText...)
		case agent.PartToolCall:
			sb = append(sb, p.Name...)
		case agent.PartToolResult:
			if s, ok := p.Output.Value.(string); ok {
				sb = append(sb, s...)
			}
		}
	}
	return string(sb)
}
