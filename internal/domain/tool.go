package domain

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// RawArgKey is the sentinel key used when tool-call arguments arrive as text
// that cannot be parsed as JSON. The raw text is preserved under this key
// instead of failing the step.
const RawArgKey = "raw"

// QuestionSentinel is the outcome content emitted when a question has been
// relayed to the user. When the first outcome of a step carries it, the run
// stops to wait for human input.
const QuestionSentinel = "question sent to user"

// Tool is one agent capability (file ops, search, shell, etc). Execute
// returns a Response on success; errors are converted by the registry into
// failed outcomes and never reach the agent loop.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (Response, error)
}

// Response is what a tool hands back to the registry: human-readable content
// plus an optional structured payload.
type Response struct {
	Content string
	Data    map[string]any
}

// ToolCall is a single tool invocation requested by the provider. Immutable
// once received; RawArguments keeps the serialized argument text exactly as
// it arrived so it can be echoed back to the provider byte-identical.
type ToolCall struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Arguments    map[string]any `json:"arguments,omitempty"`
	RawArguments string         `json:"-"`
}

// ToolDefinition describes a tool to the provider in function-calling shape.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Outcome is the uniform envelope for one tool dispatch. Exactly one outcome
// is produced per invocation, success or failure, and duration is always
// measured.
type Outcome struct {
	Tool      string         `json:"tool"`
	Success   bool           `json:"success"`
	Content   string         `json:"content"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
	Duration  time.Duration  `json:"duration"`
	Timestamp time.Time      `json:"timestamp"`
}

// Text joins content, structured payload, and error into the string that is
// folded back into the conversation as a tool message.
func (o Outcome) Text() string {
	parts := make([]string, 0, 3)
	if o.Content != "" {
		parts = append(parts, o.Content)
	}
	if len(o.Data) > 0 {
		if b, err := json.Marshal(o.Data); err == nil {
			parts = append(parts, string(b))
		}
	}
	if o.Error != "" {
		parts = append(parts, o.Error)
	}
	if len(parts) == 0 {
		return "operation finished with no output"
	}
	return strings.Join(parts, "\n")
}
