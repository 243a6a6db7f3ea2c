package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lorekeep/lorekeep/internal/delivery"
	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/history"
	"github.com/lorekeep/lorekeep/internal/llm"
	"github.com/lorekeep/lorekeep/internal/logging"
	"github.com/lorekeep/lorekeep/internal/tool"
	"github.com/lorekeep/lorekeep/internal/tools"
)

// LoopStrategy runs the bounded tool-calling loop: ask the model,
// execute the tool calls it issues, feed the results back, repeat until
// the model answers, calls the final-answer tool, or the iteration
// budget runs out.
type LoopStrategy struct {
	deps          Deps
	maxIterations int
	name          string
	log           *logging.Logger
}

// NewLoopStrategy creates a loop strategy with the given iteration budget.
func NewLoopStrategy(deps Deps, name string, maxIterations int) *LoopStrategy {
	return &LoopStrategy{
		deps:          deps,
		maxIterations: maxIterations,
		name:          name,
		log:           deps.Log.Sub("agent." + name),
	}
}

func (s *LoopStrategy) Name() string { return s.name }

// Run drives the loop for one turn.
func (s *LoopStrategy) Run(ctx context.Context, turn Turn) error {
	stored, err := s.deps.Store.GetMessages(ctx, turn.ConversationID)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	wire := []llm.ChatMessage{{Role: domain.RoleSystem, Content: systemPrompt(turn)}}
	wire = append(wire, history.Build(stored, s.deps.MaxContextMessages)...)

	defs := s.deps.Registry.Definitions(turn.Caps())

	for i := 1; i <= s.maxIterations; i++ {
		s.publishStatus(turn, "thinking", fmt.Sprintf("iteration %d", i))

		resp, err := s.deps.Client.Complete(ctx, llm.CompletionRequest{
			Model:    s.deps.Model,
			Messages: wire,
			Tools:    defs,
		})
		if err != nil {
			s.publishError(turn, "the model is unavailable")
			return fmt.Errorf("completion (iteration %d): %w", i, err)
		}

		if len(resp.ToolCalls) == 0 {
			// The model answered directly; its content is the final
			// generation and is replayed through the synthesizer so
			// delivery keeps its ordering guarantees.
			s.log.Debug().Int("iteration", i).Msg("model answered without tools")
			return s.synthesizeContent(ctx, turn, resp.Content)
		}

		calls := toDomainCalls(resp.ToolCalls)
		if err := s.recordThought(ctx, turn, resp.Content, calls); err != nil {
			return err
		}
		wire = append(wire, llm.ChatMessage{
			Role:      domain.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		if hasFinalAnswer(calls) {
			// Marker call: skip execution entirely and synthesize with
			// what was gathered. Sibling calls in the same response are
			// also skipped. The wire still needs tool results for every
			// issued call id.
			s.log.Debug().Int("iteration", i).Msg("final answer requested")
			for _, c := range calls {
				wire = append(wire, llm.ChatMessage{
					Role:       domain.RoleTool,
					Content:    "ready to answer",
					ToolCallID: c.ID,
				})
			}
			return s.synthesizeStream(ctx, turn, wire, "")
		}

		results := s.executeAll(ctx, turn, calls)
		for j, c := range calls {
			msg := domain.Message{
				ID:             uuid.New().String(),
				ConversationID: turn.ConversationID,
				Role:           domain.RoleTool,
				Content:        results[j],
				ToolCallID:     c.ID,
				CreatedAt:      time.Now().UTC(),
			}
			if err := s.deps.Store.CreateMessage(ctx, msg); err != nil {
				return fmt.Errorf("persisting tool result: %w", err)
			}
			wire = append(wire, llm.ChatMessage{
				Role:       domain.RoleTool,
				Content:    results[j],
				ToolCallID: c.ID,
			})
		}

		wire = history.Prune(wire, s.deps.MaxContextMessages)
	}

	// Budget exhausted: force a terminal answer from what was gathered.
	s.log.Info().Int("budget", s.maxIterations).Msg("iteration budget exhausted, forcing synthesis")
	return s.synthesizeStream(ctx, turn, wire, budgetExhaustedPrompt)
}

// executeAll runs every tool call concurrently and returns the results
// in call order. Failures become structured-error JSON payloads, never
// batch aborts.
func (s *LoopStrategy) executeAll(ctx context.Context, turn Turn, calls []domain.ToolCall) []string {
	results := make([]string, len(calls))
	ec := turn.ExecutionContext()

	var wg sync.WaitGroup
	for i, c := range calls {
		wg.Add(1)
		go func(i int, c domain.ToolCall) {
			defer wg.Done()
			s.publishProgress(turn, c, "started", "")

			out, err := s.deps.Registry.Execute(ctx, ec, c.Name, c.Arguments)
			if err != nil {
				var structured *tool.StructuredError
				if !errors.As(err, &structured) {
					// Unknown tool name from the model.
					structured = tool.Classify(c.Name, tool.Failure{
						Message: fmt.Sprintf("no such tool: %s", c.Name),
					})
				}
				results[i] = structured.JSON()
				s.publishProgress(turn, c, "failed", string(structured.Type))
				return
			}
			results[i] = out
			s.publishProgress(turn, c, "completed", "")
		}(i, c)
	}
	wg.Wait()
	return results
}

// recordThought persists the model's intermediate step and publishes it
// as an agent-thought event.
func (s *LoopStrategy) recordThought(ctx context.Context, turn Turn, reasoning string, calls []domain.ToolCall) error {
	msg := domain.Message{
		ID:             uuid.New().String(),
		ConversationID: turn.ConversationID,
		Role:           domain.RoleAssistant,
		Reasoning:      reasoning,
		ToolCalls:      calls,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.deps.Store.CreateMessage(ctx, msg); err != nil {
		return fmt.Errorf("persisting agent thought: %w", err)
	}
	s.deps.Pub.Publish(turn.ConversationID, delivery.Event{
		Type:    delivery.EventAgentThought,
		Payload: delivery.ThoughtPayload{Reasoning: reasoning, ToolCalls: calls},
	})
	return nil
}

// synthesizeStream makes the terminal streaming call with tools
// disabled and pipes it through the synthesizer. A non-empty framing is
// appended as a closing system instruction.
func (s *LoopStrategy) synthesizeStream(ctx context.Context, turn Turn, wire []llm.ChatMessage, framing string) error {
	if framing != "" {
		wire = append(wire, llm.ChatMessage{Role: domain.RoleSystem, Content: framing})
	}
	s.publishStatus(turn, "answering", "")

	events, err := s.deps.Client.Stream(ctx, llm.CompletionRequest{
		Model:    s.deps.Model,
		Messages: wire,
		Stream:   true,
	})
	if err != nil {
		s.publishError(turn, "the model is unavailable")
		return fmt.Errorf("starting synthesis stream: %w", err)
	}

	_, err = s.deps.Synth.Run(ctx, turn.ConversationID, events, nil)
	return err
}

// synthesizeContent replays already-complete content through the
// synthesizer as a single-delta stream.
func (s *LoopStrategy) synthesizeContent(ctx context.Context, turn Turn, content string) error {
	s.publishStatus(turn, "answering", "")
	_, err := s.deps.Synth.Run(ctx, turn.ConversationID, llm.StreamOf(content), nil)
	return err
}

func (s *LoopStrategy) publishStatus(turn Turn, status, detail string) {
	s.deps.Pub.Publish(turn.ConversationID, delivery.Event{
		Type:    delivery.EventStatusUpdate,
		Payload: delivery.StatusPayload{Status: status, Detail: detail},
	})
}

func (s *LoopStrategy) publishProgress(turn Turn, c domain.ToolCall, status, detail string) {
	s.deps.Pub.Publish(turn.ConversationID, delivery.Event{
		Type:    delivery.EventToolProgress,
		Payload: delivery.ToolProgressPayload{Tool: c.Name, CallID: c.ID, Status: status, Detail: detail},
	})
}

func (s *LoopStrategy) publishError(turn Turn, msg string) {
	s.deps.Pub.Publish(turn.ConversationID, delivery.Event{
		Type:    delivery.EventStreamError,
		Payload: delivery.StreamErrorPayload{Message: msg},
	})
}

func toDomainCalls(payloads []llm.ToolCallPayload) []domain.ToolCall {
	calls := make([]domain.ToolCall, len(payloads))
	for i, p := range payloads {
		calls[i] = domain.ToolCall{ID: p.ID, Name: p.Function.Name, Arguments: p.Function.Arguments}
	}
	return calls
}

func hasFinalAnswer(calls []domain.ToolCall) bool {
	for _, c := range calls {
		if c.Name == tools.FinalAnswerName {
			return true
		}
	}
	return false
}
