// Package agent orchestrates one conversational turn: it selects a
// strategy, drives the model's tool-calling loop, and hands the terminal
// generation to the stream synthesizer.
package agent

import (
	"context"

	"github.com/lorekeep/lorekeep/internal/delivery"
	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/llm"
	"github.com/lorekeep/lorekeep/internal/logging"
	"github.com/lorekeep/lorekeep/internal/retrieval"
	"github.com/lorekeep/lorekeep/internal/stream"
	"github.com/lorekeep/lorekeep/internal/tool"
)

// Mode selects the reasoning strategy for a turn.
type Mode string

const (
	ModeFast     Mode = "fast"
	ModeNormal   Mode = "normal"
	ModeThorough Mode = "thorough"
	ModeAuto     Mode = "auto"
)

// Iteration budgets per mode. Fast does not loop.
const (
	normalIterations   = 5
	thoroughIterations = 15
)

// Turn is one inbound user request plus the per-turn permissions the
// strategies must honor.
type Turn struct {
	ConversationID string
	UserID         string
	Query          string
	SourceIDs      []string
	WebEnabled     bool
	Mode           Mode
}

// Caps derives the turn's tool capabilities.
func (t Turn) Caps() tool.Caps {
	return tool.Caps{
		HasSources: len(t.SourceIDs) > 0,
		WebEnabled: t.WebEnabled,
	}
}

// ExecutionContext derives the per-invocation context handed to tools.
func (t Turn) ExecutionContext() tool.ExecutionContext {
	return tool.ExecutionContext{
		ConversationID: t.ConversationID,
		UserID:         t.UserID,
		SourceIDs:      t.SourceIDs,
	}
}

// Strategy runs one complete turn, ending in a persisted assistant
// message (or a stream-error event).
type Strategy interface {
	Name() string
	Run(ctx context.Context, turn Turn) error
}

// MessageStore is the persistence surface the strategies need.
type MessageStore interface {
	CreateMessage(ctx context.Context, m domain.Message) error
	GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
}

// Synthesizer streams a terminal generation and persists the result.
type Synthesizer interface {
	Run(ctx context.Context, conversationID string, events <-chan llm.StreamEvent, citations []domain.Citation) (*stream.Result, error)
}

// Retriever assembles grounding for the fast strategy.
type Retriever interface {
	Assemble(ctx context.Context, query string, sourceIDs []string) (*retrieval.GroundingContext, error)
}

// Deps bundles the collaborators shared by every strategy.
type Deps struct {
	Client    llm.Client
	Model     string
	Registry  *tool.Registry
	Store     MessageStore
	Pub       delivery.Publisher
	Synth     Synthesizer
	Retriever Retriever
	Log       *logging.Logger

	// MaxContextMessages bounds the model-visible history; 0 disables
	// the bound.
	MaxContextMessages int

	// DisableHyDE turns off query expansion in the fast strategy.
	DisableHyDE bool
}
