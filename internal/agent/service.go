package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lorekeep/lorekeep/internal/delivery"
	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/logging"
)

// Service is the turn entry point: it persists the inbound message,
// announces it, and runs the selected strategy under the turn timeout.
type Service struct {
	deps        Deps
	factory     *Factory
	turnTimeout time.Duration // 0 disables the deadline
	log         *logging.Logger
}

// NewService creates a Service.
func NewService(deps Deps, factory *Factory, turnTimeout time.Duration) *Service {
	return &Service{
		deps:        deps,
		factory:     factory,
		turnTimeout: turnTimeout,
		log:         deps.Log.Sub("agent"),
	}
}

// HandleMessage runs one turn end to end. The user message is persisted
// before the strategy starts, so a failed turn never loses the question.
func (s *Service) HandleMessage(ctx context.Context, turn Turn) error {
	userMsg := domain.Message{
		ID:             uuid.New().String(),
		ConversationID: turn.ConversationID,
		Role:           domain.RoleUser,
		Content:        turn.Query,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.deps.Store.CreateMessage(ctx, userMsg); err != nil {
		return fmt.Errorf("persisting user message: %w", err)
	}
	s.deps.Pub.Publish(turn.ConversationID, delivery.Event{
		Type:    delivery.EventNewMessage,
		Payload: userMsg,
	})

	if s.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.turnTimeout)
		defer cancel()
	}

	strategy, err := s.factory.For(ctx, turn.UserID, turn.Mode)
	if err != nil {
		s.deps.Pub.Publish(turn.ConversationID, delivery.Event{
			Type:    delivery.EventStreamError,
			Payload: delivery.StreamErrorPayload{Message: "the requested mode is not available"},
		})
		return err
	}
	s.log.Info().
		Str("conversation", turn.ConversationID).
		Str("strategy", strategy.Name()).
		Int("sources", len(turn.SourceIDs)).
		Bool("web", turn.WebEnabled).
		Msg("turn started")

	if err := strategy.Run(ctx, turn); err != nil {
		s.log.Error().Err(err).Str("conversation", turn.ConversationID).Msg("turn failed")
		return err
	}
	return nil
}
