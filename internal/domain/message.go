package domain

import "time"

// Role constants for conversation messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleSystem    = "system"
)

// ToolCall is a model-issued request to invoke a named tool.
// Arguments is the raw JSON string exactly as the model produced it;
// it must be decoded defensively by the tool that receives it.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is a single persisted turn in a conversation.
//
// A message with Reasoning and/or ToolCalls but no Content is an
// intermediate agent thought; Content marks a deliverable turn.
// Tool messages always carry the ToolCallID of the call they answer.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversationId"`
	Role           string         `json:"role"`
	Content        string         `json:"content,omitempty"`
	Reasoning      string         `json:"reasoning,omitempty"`
	ToolCalls      []ToolCall     `json:"toolCalls,omitempty"`
	ToolCallID     string         `json:"toolCallId,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// IsAgentThought reports whether the message is an intermediate agent
// thought rather than a deliverable turn.
func (m Message) IsAgentThought() bool {
	return m.Content == "" && (m.Reasoning != "" || len(m.ToolCalls) > 0)
}
