// Package history converts stored conversation messages into the bounded
// wire sequence handed to the model, and prunes a growing in-loop
// sequence without losing the conversation's anchor.
package history

import (
	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/llm"
)

// Build maps persisted messages to the wire shape and bounds the result
// to maxMessages. Empty placeholders (no content, no tool calls, and not
// a tool message) are dropped. When the mapped sequence is over budget,
// the first message is kept unconditionally as the anchor of the
// original intent, plus the maxMessages-1 most recent messages; interior
// history is dropped, not summarized.
func Build(messages []domain.Message, maxMessages int) []llm.ChatMessage {
	mapped := make([]llm.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Content == "" && len(m.ToolCalls) == 0 && m.Role != domain.RoleTool {
			continue
		}
		mapped = append(mapped, ToWire(m))
	}

	if maxMessages <= 0 || len(mapped) <= maxMessages {
		return mapped
	}

	bounded := make([]llm.ChatMessage, 0, maxMessages)
	bounded = append(bounded, mapped[0])
	bounded = append(bounded, mapped[len(mapped)-(maxMessages-1):]...)
	return bounded
}

// Prune bounds a mid-loop sequence to maxMessages. All system messages
// survive, then the first user message, then the most recent non-system
// messages fill the remaining budget. The anchor is not duplicated when
// it already falls inside the recent window. Relative order is preserved.
func Prune(messages []llm.ChatMessage, maxMessages int) []llm.ChatMessage {
	if maxMessages <= 0 || len(messages) <= maxMessages {
		return messages
	}

	keep := make([]bool, len(messages))
	kept := 0

	for i, m := range messages {
		if m.Role == domain.RoleSystem {
			keep[i] = true
			kept++
		}
	}

	anchor := -1
	for i, m := range messages {
		if m.Role == domain.RoleUser {
			anchor = i
			break
		}
	}
	if anchor >= 0 && kept < maxMessages {
		keep[anchor] = true
		kept++
	}

	for i := len(messages) - 1; i >= 0 && kept < maxMessages; i-- {
		if keep[i] || messages[i].Role == domain.RoleSystem {
			continue
		}
		keep[i] = true
		kept++
	}

	pruned := make([]llm.ChatMessage, 0, kept)
	for i, m := range messages {
		if keep[i] {
			pruned = append(pruned, m)
		}
	}
	return pruned
}

// ToWire converts one stored message to the wire shape.
func ToWire(m domain.Message) llm.ChatMessage {
	wire := llm.ChatMessage{
		Role:       m.Role,
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		wire.ToolCalls = append(wire.ToolCalls, llm.ToolCallPayload{
			ID:   tc.ID,
			Type: "function",
			Function: llm.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return wire
}
