package agent

import "time"

// Role identifies the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType discriminates the members of the Part union.
type PartType string

const (
	PartText       PartType = "text"
	PartToolCall   PartType = "tool-call"
	PartToolResult PartType = "tool-result"
	PartReasoning  PartType = "reasoning"
)

// Part is one element of a Message's ordered content when the message is not
// carried as an opaque text string. Exactly one of the typed fields is set,
// selected by Type.
type Part struct {
	Type PartType

	// PartText
	Text string

	// PartToolCall
	ID   string
	Name string
	Args map[string]any

	// PartToolResult (ID and Name mirror the originating tool-call)
	Output ResultValue

	// PartReasoning
	ReasoningID   string
	ReasoningText string
}

// TextPart builds a PartText.
func TextPart(text string) Part { return Part{Type: PartText, Text: text} }

// ToolCallPart builds a PartToolCall.
func ToolCallPart(id, name string, args map[string]any) Part {
	return Part{Type: PartToolCall, ID: id, Name: name, Args: args}
}

// ToolResultPart builds a PartToolResult. id/name must match an earlier
// tool-call part with the same id per the Message invariant (§3).
func ToolResultPart(id, name string, output ResultValue) Part {
	return Part{Type: PartToolResult, ID: id, Name: name, Output: output}
}

// ReasoningPart builds a PartReasoning.
func ReasoningPart(id, text string) Part {
	return Part{Type: PartReasoning, ReasoningID: id, ReasoningText: text}
}

// ResultKind discriminates ResultValue, the wire shape every tool-result
// output MUST use (§4.F.6) — never a raw, untagged value.
type ResultKind string

const (
	ResultText ResultKind = "text"
	ResultJSON ResultKind = "json"
)

// ResultValue is the tagged union carried by a tool-result part.
type ResultValue struct {
	Kind  ResultKind
	Value any
}

// TextResultValue builds a {type:"text", value} result.
func TextResultValue(value string) ResultValue {
	return ResultValue{Kind: ResultText, Value: value}
}

// JSONResultValue builds a {type:"json", value} result.
func JSONResultValue(value any) ResultValue {
	return ResultValue{Kind: ResultJSON, Value: value}
}

// Message is one turn in a conversation. Content is either an opaque string
// (Text, when Parts is nil) or an ordered list of Parts — never both.
type Message struct {
	Role  Role
	Text  string
	Parts []Part
}

// NewTextMessage builds a Message carrying opaque text content.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Text: text}
}

// NewPartsMessage builds a Message carrying ordered parts.
func NewPartsMessage(role Role, parts ...Part) Message {
	return Message{Role: role, Parts: parts}
}

// IsStructured reports whether the message carries Parts rather than opaque
// Text.
func (m Message) IsStructured() bool { return m.Parts != nil }

// ValidateMessages checks the Message invariant (§3): every tool-result part
// references a tool-call part with the same id appearing earlier in the
// sequence, and at most one system message is present, which if present must
// be first.
func ValidateMessages(messages []Message) error {
	seenCalls := make(map[string]bool)
	systemSeen := false

	for i, msg := range messages {
		if msg.Role == RoleSystem {
			if systemSeen {
				return NewAgentError(ValidationError, "more than one system message present", nil)
			}
			if i != 0 {
				return NewAgentError(ValidationError, "system message must be first", nil)
			}
			systemSeen = true
		}
		for _, p := range msg.Parts {
			switch p.Type {
			case PartToolCall:
				seenCalls[p.ID] = true
			case PartToolResult:
				if !seenCalls[p.ID] {
					return NewAgentError(ValidationError, "tool-result references unknown tool-call id "+p.ID, nil)
				}
			}
		}
	}
	return nil
}

// TodoStatus is the lifecycle state of a TodoItem.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
	TodoCancelled  TodoStatus = "cancelled"
)

// TodoItem is one entry in a ConversationState's ordered todo list.
type TodoItem struct {
	ID          string
	Content     string
	Status      TodoStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// FileRecord is the versioned record ConversationState keeps per file path,
// maintained by tool executions that read or write files (adapted from the
// teacher's checkpoint.Tracker, which tracked original file content for
// rewind; here it tracks current line count and timestamps instead).
type FileRecord struct {
	Lines      int
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// ConversationState is the mutable, per-thread scratch space tools operate
// on: a map of touched file paths to their current FileRecord, plus an
// ordered todo list. It is created empty per thread and destroyed with it;
// only tool executions (§4.E stage 5) may mutate it.
type ConversationState struct {
	Files map[string]FileRecord
	Todos []TodoItem
}

// NewConversationState returns an empty ConversationState.
func NewConversationState() *ConversationState {
	return &ConversationState{Files: make(map[string]FileRecord)}
}

// Clone returns a deep copy of s, following the teacher's deep-copy-on-save
// idiom (session.MemoryStore.deepCopy) so stored checkpoints cannot be
// mutated through an aliased state.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return NewConversationState()
	}
	clone := &ConversationState{
		Files: make(map[string]FileRecord, len(s.Files)),
		Todos: make([]TodoItem, len(s.Todos)),
	}
	for k, v := range s.Files {
		clone.Files[k] = v
	}
	copy(clone.Todos, s.Todos)
	return clone
}

// RecordFileWrite updates or creates the FileRecord for path, touching
// ModifiedAt and setting CreatedAt only on first write.
func (s *ConversationState) RecordFileWrite(path string, lines int, now time.Time) {
	rec, exists := s.Files[path]
	if !exists {
		rec.CreatedAt = now
	}
	rec.Lines = lines
	rec.ModifiedAt = now
	s.Files[path] = rec
}

// UpsertTodo replaces the todo with the same ID, or appends it if none
// matches.
func (s *ConversationState) UpsertTodo(item TodoItem) {
	for i, existing := range s.Todos {
		if existing.ID == item.ID {
			s.Todos[i] = item
			return
		}
	}
	s.Todos = append(s.Todos, item)
}
