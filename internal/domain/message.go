package domain

import "time"

// Role identifies who produced a conversation entry.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the conversation sent to the reasoning provider.
// The conversation is append-only; a tool message always follows the
// assistant message that carried the matching tool calls.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
	Thinking   string     `json:"thinking,omitempty"`
	Timestamp  time.Time  `json:"timestamp,omitzero"`
}
