// Package stream turns the model's terminal generation into ordered
// chunks on the delivery channel and one persisted assistant message.
package stream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lorekeep/lorekeep/internal/delivery"
	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/llm"
	"github.com/lorekeep/lorekeep/internal/logging"
)

// apologyText substitutes for an empty generation so the turn always
// persists a deliverable message.
const apologyText = "I'm sorry, I wasn't able to produce an answer this time. Please try rephrasing your question."

// MessageCreator persists the final assistant message.
type MessageCreator interface {
	CreateMessage(ctx context.Context, m domain.Message) error
}

// Result reports what a synthesis run produced.
type Result struct {
	MessageID string
	StreamID  string
	Content   string
	Chunks    int
}

// Synthesizer streams a model generation to subscribers and persists
// the final assistant message.
type Synthesizer struct {
	store MessageCreator
	pub   delivery.Publisher
	log   *logging.Logger
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(store MessageCreator, pub delivery.Publisher, log *logging.Logger) *Synthesizer {
	return &Synthesizer{store: store, pub: pub, log: log.Sub("stream")}
}

// Run consumes the event channel until exhaustion. Each delta is
// sanitized, numbered with a monotonically increasing chunk index under
// one stream id, and published. On success the accumulated text (or the
// apology fallback when empty) is persisted and a message-end event is
// emitted. On a mid-stream failure a stream-error event is emitted and
// the error is returned; chunks already delivered are not retracted.
func (s *Synthesizer) Run(ctx context.Context, conversationID string, events <-chan llm.StreamEvent, citations []domain.Citation) (*Result, error) {
	streamID := uuid.New().String()
	chunkIndex := 0
	var full strings.Builder

	for evt := range events {
		switch evt.Type {
		case "delta":
			content := Sanitize(evt.Content)
			if content == "" {
				continue
			}
			full.WriteString(content)
			s.pub.Publish(conversationID, delivery.Event{
				Type: delivery.EventMessageChunk,
				Payload: delivery.ChunkPayload{
					Content:    content,
					ChunkIndex: chunkIndex,
					StreamID:   streamID,
				},
			})
			chunkIndex++

		case "error":
			err := fmt.Errorf("stream failed: %s", evt.Error)
			s.pub.Publish(conversationID, delivery.Event{
				Type:    delivery.EventStreamError,
				Payload: delivery.StreamErrorPayload{StreamID: streamID, Message: evt.Error},
			})
			return nil, err

		case "done":
			// Accumulated deltas are authoritative; the done frame only
			// signals completion.
		}
	}

	content := full.String()
	if strings.TrimSpace(content) == "" {
		content = apologyText
	}

	msg := domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           domain.RoleAssistant,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	if len(citations) > 0 {
		msg.Metadata = map[string]any{"citations": citations}
	}

	if err := s.store.CreateMessage(ctx, msg); err != nil {
		s.pub.Publish(conversationID, delivery.Event{
			Type:    delivery.EventStreamError,
			Payload: delivery.StreamErrorPayload{StreamID: streamID, Message: "failed to persist answer"},
		})
		return nil, fmt.Errorf("persisting final message: %w", err)
	}

	s.pub.Publish(conversationID, delivery.Event{
		Type:    delivery.EventMessageEnd,
		Payload: delivery.MessageEndPayload{StreamID: streamID, MessageID: msg.ID},
	})

	s.log.Info().
		Str("conversation", conversationID).
		Str("stream", streamID).
		Int("chunks", chunkIndex).
		Int("chars", len(content)).
		Msg("synthesis complete")

	return &Result{
		MessageID: msg.ID,
		StreamID:  streamID,
		Content:   content,
		Chunks:    chunkIndex,
	}, nil
}
