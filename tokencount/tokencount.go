// Package tokencount implements the Token Counter (§4.B): a pure, cacheable
// estimator used by the Context Manager when no model-reported usage record
// is available yet.
package tokencount

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// perMessageOverhead is the fixed token cost attributed to each message
// beyond its content, accounting for role/formatting framing.
const perMessageOverhead = 4

// charsPerToken is the divisor used by the default estimator: ceil(len/4).
const charsPerToken = 4

// Message is the minimal shape the counter needs from a conversation
// message: its textual content, already flattened from parts if structured.
type Message struct {
	Content string
}

// Counter estimates token counts for text and message sequences. The
// default implementation is pure and deterministic; a custom tokenizer may
// be substituted via NewWithEstimator as long as it is equally pure.
type Counter struct {
	mu        sync.RWMutex
	cache     map[string]int
	estimator func(string) int
}

// New returns a Counter using the default ceil(len/4) heuristic.
func New() *Counter {
	return &Counter{
		cache:     make(map[string]int),
		estimator: defaultEstimate,
	}
}

// NewWithEstimator returns a Counter using a custom per-text estimator. The
// estimator MUST be pure and deterministic (§4.B).
func NewWithEstimator(estimator func(string) int) *Counter {
	return &Counter{
		cache:     make(map[string]int),
		estimator: estimator,
	}
}

func defaultEstimate(text string) int {
	if text == "" {
		return 0
	}
	n := len(text)
	return (n + charsPerToken - 1) / charsPerToken
}

// Count returns the estimated token count of text, using the content-hash
// cache when available.
func (c *Counter) Count(text string) int {
	key := hashContent(text)

	c.mu.RLock()
	if n, ok := c.cache[key]; ok {
		c.mu.RUnlock()
		return n
	}
	c.mu.RUnlock()

	n := c.estimator(text)

	c.mu.Lock()
	c.cache[key] = n
	c.mu.Unlock()

	return n
}

// CountMessages returns the estimated token count across messages, adding
// perMessageOverhead per message.
func (c *Counter) CountMessages(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += c.Count(m.Content) + perMessageOverhead
	}
	return total
}

// InvalidateCache drops all cached content-hash → count entries.
func (c *Counter) InvalidateCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]int)
}

func hashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
