package contextmgr

import (
	"context"

	agent "github.com/anthropic-go/agentruntime"
)

// Summarizer is the narrow view of the Agent Turn Executor the compaction
// algorithm needs: a single generate call producing summary text. This
// breaks the contextmgr → engine import cycle the same way the teacher
// keeps session.go free of engine internals via adapter interfaces.
type Summarizer interface {
	Summarize(ctx context.Context, compactionSet []agent.Message) (string, error)
}

// CompactionResult is the outcome of a Compact call. When compaction
// actually ran (a non-empty compaction set), it is also emitted via
// Manager.OnCompact and wrapped in Manager.Hooks' PreCompact/PostCompact
// calls (§4.G step 5); the no-op path (nothing to compact) returns a result
// but fires neither.
type CompactionResult struct {
	Summary           string
	CompactedMessages []agent.Message
	NewMessages       []agent.Message
	MessagesBefore    int
	MessagesAfter     int
	TokensBefore      int
	TokensAfter       int
	TokensSaved       int
}

const summaryPrefix = "## Conversation Summary\n\n"

// Compact runs the "rollup" compaction algorithm (§4.G): the leading
// system message and the trailing KeepMessageCount non-system messages are
// preserved; everything else is summarised into one synthetic user
// message. If the compaction set is empty, messages are returned
// unchanged.
func (m *Manager) Compact(ctx context.Context, messages []agent.Message, summarizer Summarizer) (*CompactionResult, error) {
	var system *agent.Message
	rest := messages
	if len(messages) > 0 && messages[0].Role == agent.RoleSystem {
		system = &messages[0]
		rest = messages[1:]
	}

	keep := m.summary.KeepMessageCount
	if keep < 0 {
		keep = 0
	}
	if keep > len(rest) {
		keep = len(rest)
	}

	compactionSet := rest[:len(rest)-keep]
	tail := rest[len(rest)-keep:]

	tokensBefore := m.counter.CountMessages(toCountMessages(messages))

	if len(compactionSet) == 0 {
		return &CompactionResult{
			NewMessages:    messages,
			MessagesBefore: len(messages),
			MessagesAfter:  len(messages),
			TokensBefore:   tokensBefore,
			TokensAfter:    tokensBefore,
		}, nil
	}

	if m.Hooks != nil {
		if err := m.Hooks.RunPreCompact(ctx, m.SessionID, m.summary.Strategy); err != nil {
			return nil, agent.NewAgentError(agent.ContextError, "PreCompact hook failed", err)
		}
	}

	summaryText, err := summarizer.Summarize(ctx, compactionSet)
	if err != nil {
		return nil, agent.NewAgentError(agent.ContextError, "compaction summarisation failed", err)
	}

	summaryMsg := agent.NewTextMessage(agent.RoleUser, summaryPrefix+summaryText)

	newMessages := make([]agent.Message, 0, len(tail)+2)
	if system != nil {
		newMessages = append(newMessages, *system)
	}
	newMessages = append(newMessages, summaryMsg)
	newMessages = append(newMessages, tail...)

	tokensAfter := m.counter.CountMessages(toCountMessages(newMessages))

	result := &CompactionResult{
		Summary:           summaryText,
		CompactedMessages: compactionSet,
		NewMessages:       newMessages,
		MessagesBefore:    len(messages),
		MessagesAfter:     len(newMessages),
		TokensBefore:      tokensBefore,
		TokensAfter:       tokensAfter,
		TokensSaved:       tokensBefore - tokensAfter,
	}

	if m.Hooks != nil {
		if err := m.Hooks.RunPostCompact(ctx, m.SessionID, m.summary.Strategy); err != nil {
			return nil, agent.NewAgentError(agent.ContextError, "PostCompact hook failed", err)
		}
	}
	if m.OnCompact != nil {
		m.OnCompact(result)
	}

	return result, nil
}
