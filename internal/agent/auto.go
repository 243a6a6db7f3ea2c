package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/lorekeep/lorekeep/internal/delivery"
	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/llm"
	"github.com/lorekeep/lorekeep/internal/logging"
)

const classifyPrompt = `Classify the effort the user's request needs. Reply with exactly one word:
FAST - a lookup or simple question answerable with at most one retrieval
NORMAL - a typical question needing a few tool calls
THOROUGH - a multi-part research task needing extensive gathering

Request: `

// AutoStrategy classifies the request with one cheap model call and
// delegates to the matching strategy. Classification failures fall back
// to normal.
type AutoStrategy struct {
	deps     Deps
	fast     Strategy
	normal   Strategy
	thorough Strategy
	log      *logging.Logger
}

// NewAutoStrategy creates the auto strategy over its three delegates.
func NewAutoStrategy(deps Deps, fast, normal, thorough Strategy) *AutoStrategy {
	return &AutoStrategy{
		deps:     deps,
		fast:     fast,
		normal:   normal,
		thorough: thorough,
		log:      deps.Log.Sub("agent.auto"),
	}
}

func (s *AutoStrategy) Name() string { return string(ModeAuto) }

// Run classifies and delegates.
func (s *AutoStrategy) Run(ctx context.Context, turn Turn) error {
	delegate := s.classify(ctx, turn.Query)
	s.deps.Pub.Publish(turn.ConversationID, delivery.Event{
		Type:    delivery.EventAgentThought,
		Payload: delivery.ThoughtPayload{Reasoning: fmt.Sprintf("selected %s strategy", delegate.Name())},
	})
	return delegate.Run(ctx, turn)
}

func (s *AutoStrategy) classify(ctx context.Context, query string) Strategy {
	resp, err := s.deps.Client.Complete(ctx, llm.CompletionRequest{
		Model: s.deps.Model,
		Messages: []llm.ChatMessage{
			{Role: domain.RoleUser, Content: classifyPrompt + query},
		},
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("classification failed, defaulting to normal")
		return s.normal
	}

	switch strings.ToUpper(strings.TrimSpace(resp.Content)) {
	case "FAST":
		return s.fast
	case "THOROUGH":
		return s.thorough
	case "NORMAL":
		return s.normal
	default:
		s.log.Warn().Str("answer", resp.Content).Msg("unrecognized classification, defaulting to normal")
		return s.normal
	}
}
