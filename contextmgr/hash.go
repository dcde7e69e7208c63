package contextmgr

import (
	"crypto/sha256"
	"encoding/hex"

	agent "github.com/anthropic-go/agentruntime"
)

// hashMessages fingerprints a message sequence so GetBudget can detect
// whether the last model-reported usage record still applies.
func hashMessages(messages []agent.Message) string {
	h := sha256.New()
	for _, m := range messages {
		h.Write([]byte{byte(len(m.Role))})
		h.Write([]byte(m.Role))
		h.Write([]byte(flattenMessageText(m)))
	}
	return hex.EncodeToString(h.Sum(nil))
}
