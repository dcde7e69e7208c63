package tools

import (
	"context"
	"encoding/json"
	"fmt"

	agent "github.com/anthropic-go/agentruntime"
)

// AskCallback is called when the LLM wants to ask the user a question.
type AskCallback func(ctx context.Context, question string, options []AskOption) (string, error)

// AskOption represents a selectable option for the user.
type AskOption struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// AskInput defines the input for the AskUserQuestion tool.
type AskInput struct {
	Question string          `json:"question" jsonschema:"required,description=The question to ask the user"`
	Options  json.RawMessage `json:"options,omitempty" jsonschema:"description=JSON array of option objects with label and description"`
}

// AskTool asks the user a question and returns their response.
type AskTool struct {
	Callback AskCallback
}

var _ agent.Tool[AskInput] = (*AskTool)(nil)

func (t *AskTool) Name() string        { return "AskUserQuestion" }
func (t *AskTool) Description() string  { return "Ask the user a question and wait for their response" }

// AskInterruptRequest is the request payload carried by the custom
// interrupt AskTool raises when no Callback is configured: the turn
// suspends, and a resume delivers the user's answer back to opts.Interrupt.
type AskInterruptRequest struct {
	Question string      `json:"question"`
	Options  []AskOption `json:"options,omitempty"`
}

func (t *AskTool) Execute(ctx context.Context, input AskInput, opts agent.ToolOptions) (*agent.ToolResult, error) {
	if input.Question == "" {
		return agent.ErrorResult("question is required"), nil
	}

	var options []AskOption
	if len(input.Options) > 0 {
		if err := json.Unmarshal(input.Options, &options); err != nil {
			options = nil
		}
	}

	if t.Callback != nil {
		answer, err := t.Callback(ctx, input.Question, options)
		if err != nil {
			return agent.ErrorResult(fmt.Sprintf("ask failed: %s", err.Error())), nil
		}
		return agent.TextResult(answer), nil
	}

	if opts.Interrupt == nil {
		return agent.ErrorResult("ask callback not configured"), nil
	}

	response, err := opts.Interrupt(AskInterruptRequest{Question: input.Question, Options: options})
	if err != nil {
		// A freshly raised *interrupt.Signal: propagate so the turn
		// suspends instead of being reported as a tool failure.
		return nil, err
	}
	return agent.TextResult(answerText(response)), nil
}

func answerText(response any) string {
	switch v := response.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
