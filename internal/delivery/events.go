// Package delivery defines the event surface the orchestrator publishes
// to, plus an in-process hub with per-conversation subscriber groups.
package delivery

import "github.com/lorekeep/lorekeep/internal/domain"

// EventType names for the delivery channel.
type EventType string

const (
	EventHistoryReplay EventType = "history-replay"
	EventNewMessage    EventType = "new-message"
	EventStatusUpdate  EventType = "status-update"
	EventAgentThought  EventType = "agent-thought"
	EventToolProgress  EventType = "tool-progress"
	EventMessageChunk  EventType = "message-chunk"
	EventMessageEnd    EventType = "message-end"
	EventStreamError   EventType = "stream-error"
)

// Event is one delivery-channel frame, scoped to a conversation group.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversationId"`
	Payload        any       `json:"payload,omitempty"`
}

// ChunkPayload is the message-chunk body. Delivery is at-least-once;
// subscribers must be idempotent on (StreamID, ChunkIndex).
type ChunkPayload struct {
	Content    string `json:"content"`
	ChunkIndex int    `json:"chunkIndex"`
	StreamID   string `json:"streamId"`
}

// MessageEndPayload closes a stream.
type MessageEndPayload struct {
	StreamID  string `json:"streamId"`
	MessageID string `json:"messageId"`
}

// StreamErrorPayload terminates a stream abnormally. Chunks already
// delivered are not retracted.
type StreamErrorPayload struct {
	StreamID string `json:"streamId,omitempty"`
	Message  string `json:"message"`
}

// ToolProgressPayload reports one tool call's lifecycle.
type ToolProgressPayload struct {
	Tool   string `json:"tool"`
	CallID string `json:"callId,omitempty"`
	Status string `json:"status"` // "started", "completed", "failed"
	Detail string `json:"detail,omitempty"`
}

// ThoughtPayload carries an intermediate agent thought.
type ThoughtPayload struct {
	Reasoning string            `json:"reasoning,omitempty"`
	ToolCalls []domain.ToolCall `json:"toolCalls,omitempty"`
}

// StatusPayload is a coarse progress signal for clients.
type StatusPayload struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Publisher delivers events to a conversation's subscriber group.
// Publishing is fire-and-forget per event.
type Publisher interface {
	Publish(conversationID string, evt Event)
}

// NopPublisher discards all events. Useful in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(string, Event) {}
