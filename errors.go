package agent

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode identifies the category of an AgentError. The set is closed —
// callers should switch on known codes and treat unknown ones as UnknownError.
type ErrorCode string

// The closed set of error codes surfaced by the core.
const (
	ConfigurationError  ErrorCode = "CONFIGURATION_ERROR"
	ValidationError     ErrorCode = "VALIDATION_ERROR"
	ToolError           ErrorCode = "TOOL_ERROR"
	ModelError          ErrorCode = "MODEL_ERROR"
	RateLimitError      ErrorCode = "RATE_LIMIT_ERROR"
	TimeoutError        ErrorCode = "TIMEOUT_ERROR"
	NetworkError        ErrorCode = "NETWORK_ERROR"
	AuthenticationError ErrorCode = "AUTHENTICATION_ERROR"
	AuthorizationError  ErrorCode = "AUTHORIZATION_ERROR"
	CheckpointError     ErrorCode = "CHECKPOINT_ERROR"
	BackendError        ErrorCode = "BACKEND_ERROR"
	ContextError        ErrorCode = "CONTEXT_ERROR"
	SubagentError       ErrorCode = "SUBAGENT_ERROR"
	MemoryError         ErrorCode = "MEMORY_ERROR"
	AbortError          ErrorCode = "ABORT_ERROR"
	AgentGenericError   ErrorCode = "AGENT_ERROR"
	UnknownError        ErrorCode = "UNKNOWN_ERROR"
)

// Severity classifies how serious an AgentError is.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityFatal   Severity = "fatal"
)

// codeDefaults holds the fixed severity/retryable/message/retryAfter
// defaults for each error code.
type codeDefaults struct {
	severity     Severity
	retryable    bool
	retryAfterMs int64
	userMessage  string
}

var defaultsByCode = map[ErrorCode]codeDefaults{
	ConfigurationError:  {SeverityFatal, false, 0, "The agent is misconfigured. Check your setup and try again."},
	ValidationError:     {SeverityError, false, 0, "The request was invalid."},
	ToolError:           {SeverityError, false, 0, "A tool failed to execute."},
	ModelError:          {SeverityError, true, 0, "The model failed to respond. Please try again."},
	RateLimitError:      {SeverityWarning, true, 30_000, "The service is rate-limited. Please wait and try again."},
	TimeoutError:        {SeverityWarning, true, 1_000, "The request timed out. Please try again."},
	NetworkError:        {SeverityWarning, true, 1_000, "A network error occurred. Please try again."},
	AuthenticationError: {SeverityFatal, false, 0, "Authentication failed. Check your credentials."},
	AuthorizationError:  {SeverityFatal, false, 0, "You are not authorized to perform this action."},
	CheckpointError:     {SeverityError, false, 0, "Failed to persist or load conversation state."},
	BackendError:        {SeverityError, true, 2_000, "A backend service error occurred."},
	ContextError:        {SeverityError, false, 0, "The conversation context could not be processed."},
	SubagentError:       {SeverityError, false, 0, "A sub-agent task failed."},
	MemoryError:         {SeverityWarning, false, 0, "A memory operation failed."},
	AbortError:          {SeverityWarning, false, 0, "The operation was cancelled."},
	AgentGenericError:   {SeverityError, false, 0, "An unexpected error occurred."},
	UnknownError:        {SeverityError, false, 0, "An unknown error occurred."},
}

// AgentError is the single error type surfaced across the public boundary of
// the core (§4.A, §7). Severity and Retryable default from Code unless
// explicitly overridden after construction.
type AgentError struct {
	Code         ErrorCode
	Severity     Severity
	Retryable    bool
	RetryAfterMs int64
	UserMessage  string
	Metadata     map[string]any
	Cause        error
	message      string
}

func (e *AgentError) Error() string {
	switch {
	case e.message != "" && e.Cause != nil:
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.message, e.Cause)
	case e.message != "":
		return fmt.Sprintf("[%s] %s", e.Code, e.message)
	case e.Cause != nil:
		return fmt.Sprintf("[%s] %v", e.Code, e.Cause)
	default:
		return fmt.Sprintf("[%s]", e.Code)
	}
}

// Unwrap exposes the cause chain to errors.Is/errors.As.
func (e *AgentError) Unwrap() error { return e.Cause }

// WithMetadata returns a shallow copy of e with the given metadata key set.
func (e *AgentError) WithMetadata(key string, value any) *AgentError {
	clone := *e
	clone.Metadata = make(map[string]any, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		clone.Metadata[k] = v
	}
	clone.Metadata[key] = value
	return &clone
}

// NewAgentError constructs an AgentError with the fixed defaults for code.
func NewAgentError(code ErrorCode, message string, cause error) *AgentError {
	d, ok := defaultsByCode[code]
	if !ok {
		d = defaultsByCode[UnknownError]
	}
	return &AgentError{
		Code:         code,
		Severity:     d.severity,
		Retryable:    d.retryable,
		RetryAfterMs: d.retryAfterMs,
		UserMessage:  d.userMessage,
		Cause:        cause,
		message:      message,
	}
}

// wrapError normalises an arbitrary error into an *AgentError. If cause is
// already an *AgentError it is returned unchanged (idempotent wrapping).
// Otherwise the code is inferred from the cause's message, mirroring the
// substring-classification idiom the corpus uses for tool-error
// classification (haasonsaas-nexus's classifyToolError).
func wrapError(cause error, message string) *AgentError {
	if cause == nil {
		return NewAgentError(UnknownError, message, nil)
	}
	var existing *AgentError
	if errors.As(cause, &existing) {
		return existing
	}
	return NewAgentError(classifyError(cause), message, cause)
}

// classifyError infers an ErrorCode from an error's text using substring
// matching.
func classifyError(err error) ErrorCode {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "too many requests") || strings.Contains(msg, "429"):
		return RateLimitError
	case strings.Contains(msg, "timed out") || strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded"):
		return TimeoutError
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "authentication"):
		return AuthenticationError
	case strings.Contains(msg, "403") || strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "access denied"):
		return AuthorizationError
	case strings.Contains(msg, "connection") || strings.Contains(msg, "network") ||
		strings.Contains(msg, "dns") || strings.Contains(msg, "refused") ||
		strings.Contains(msg, "unreachable"):
		return NetworkError
	case strings.Contains(msg, "503") || strings.Contains(msg, "529") ||
		strings.Contains(msg, "overloaded") || strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "internal server error") || strings.Contains(msg, "500"):
		return BackendError
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "validation") ||
		strings.Contains(msg, "required") || strings.Contains(msg, "missing"):
		return ValidationError
	case strings.Contains(msg, "checkpoint"):
		return CheckpointError
	case strings.Contains(msg, "context") && strings.Contains(msg, "token"):
		return ContextError
	case strings.Contains(msg, "cancel") || strings.Contains(msg, "aborted"):
		return AbortError
	default:
		return UnknownError
	}
}

// GetUserMessage returns the user-facing message for err, falling back to
// the supplied fallback string if err is not an *AgentError.
func GetUserMessage(err error, fallback string) string {
	var ae *AgentError
	if errors.As(err, &ae) && ae.UserMessage != "" {
		return ae.UserMessage
	}
	return fallback
}

// IsRetryable reports whether err (or a wrapped *AgentError within it) is
// marked retryable.
func IsRetryable(err error) bool {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// Sentinel errors retained for simple control-flow checks that do not need
// the full AgentError envelope.
var (
	ErrNoSessionStore     = errors.New("agent: no session store configured")
	ErrThreadBusy         = errors.New("agent: thread is already processing a turn")
	ErrNoPendingInterrupt = errors.New("agent: no pending interrupt for thread")
)
