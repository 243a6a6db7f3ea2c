package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lorekeep/lorekeep/internal/delivery"
	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/history"
	"github.com/lorekeep/lorekeep/internal/llm"
	"github.com/lorekeep/lorekeep/internal/logging"
	"github.com/lorekeep/lorekeep/internal/retrieval"
	"github.com/lorekeep/lorekeep/internal/tool"
)

// FastStrategy answers in at most two model calls: retrieve grounding
// up front (with HyDE query expansion), ask the model for a one-shot
// JSON action plan, execute it, then stream the answer. It trades the
// loop's adaptivity for latency.
type FastStrategy struct {
	deps Deps
	log  *logging.Logger
}

// NewFastStrategy creates the fast strategy.
func NewFastStrategy(deps Deps) *FastStrategy {
	return &FastStrategy{deps: deps, log: deps.Log.Sub("agent.fast")}
}

func (s *FastStrategy) Name() string { return string(ModeFast) }

type plannedAction struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

type actionPlan struct {
	Actions []plannedAction `json:"actions"`
}

// Run executes one fast turn. Retrieval and history loading are
// independent, so they run concurrently.
func (s *FastStrategy) Run(ctx context.Context, turn Turn) error {
	var (
		grounding *retrieval.GroundingContext
		past      []llm.ChatMessage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		grounding = s.retrieve(gctx, turn)
		return nil
	})
	g.Go(func() error {
		stored, err := s.deps.Store.GetMessages(gctx, turn.ConversationID)
		if err != nil {
			return fmt.Errorf("loading history: %w", err)
		}
		past = history.Build(stored, s.deps.MaxContextMessages)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	plan := s.plan(ctx, turn, past, grounding)
	actionResults := s.execute(ctx, turn, plan)

	return s.synthesize(ctx, turn, past, grounding, actionResults)
}

// retrieve assembles grounding before any planning. Retrieval failures
// degrade to an empty grounding context rather than failing the turn.
func (s *FastStrategy) retrieve(ctx context.Context, turn Turn) *retrieval.GroundingContext {
	if len(turn.SourceIDs) == 0 || s.deps.Retriever == nil {
		return &retrieval.GroundingContext{}
	}
	s.publishStatus(turn, "retrieving")

	query := turn.Query
	if !s.deps.DisableHyDE {
		query = retrieval.ExpandHyDE(ctx, s.deps.Client, s.deps.Model, turn.Query)
	}
	g, err := s.deps.Retriever.Assemble(ctx, query, turn.SourceIDs)
	if err != nil {
		s.log.Warn().Err(err).Msg("retrieval failed, answering without grounding")
		return &retrieval.GroundingContext{}
	}
	return g
}

// plan asks the model for a JSON action plan in a single call. Any
// parse failure degrades to an empty plan.
func (s *FastStrategy) plan(ctx context.Context, turn Turn, past []llm.ChatMessage, grounding *retrieval.GroundingContext) actionPlan {
	defs := s.deps.Registry.Definitions(turn.Caps())
	if len(defs) == 0 {
		return actionPlan{}
	}

	resp, err := s.deps.Client.Complete(ctx, llm.CompletionRequest{
		Model: s.deps.Model,
		Messages: []llm.ChatMessage{
			{Role: domain.RoleSystem, Content: planPrompt(defs, past, grounding)},
			{Role: domain.RoleUser, Content: turn.Query},
		},
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("planning failed, answering from grounding only")
		return actionPlan{}
	}

	plan, err := parsePlan(resp.Content)
	if err != nil {
		s.log.Warn().Err(err).Msg("unparseable plan, answering from grounding only")
		return actionPlan{}
	}
	return plan
}

// execute runs planned actions sequentially. Failures become structured
// error payloads in the results like in the loop strategy.
func (s *FastStrategy) execute(ctx context.Context, turn Turn, plan actionPlan) []string {
	if len(plan.Actions) == 0 {
		return nil
	}
	ec := turn.ExecutionContext()
	caps := turn.Caps()

	var results []string
	for _, a := range plan.Actions {
		t, ok := s.deps.Registry.Get(a.Tool)
		if !ok {
			se := tool.Classify(a.Tool, tool.Failure{Message: fmt.Sprintf("no such tool: %s", a.Tool)})
			results = append(results, fmt.Sprintf("%s: %s", a.Tool, se.JSON()))
			continue
		}
		if !caps.Satisfies(t.Capability()) {
			continue
		}
		s.deps.Pub.Publish(turn.ConversationID, delivery.Event{
			Type:    delivery.EventToolProgress,
			Payload: delivery.ToolProgressPayload{Tool: a.Tool, Status: "started"},
		})

		out, err := s.deps.Registry.Execute(ctx, ec, a.Tool, string(a.Arguments))
		if err != nil {
			se := tool.ClassifyErr(a.Tool, err)
			results = append(results, fmt.Sprintf("%s: %s", a.Tool, se.JSON()))
			s.deps.Pub.Publish(turn.ConversationID, delivery.Event{
				Type:    delivery.EventToolProgress,
				Payload: delivery.ToolProgressPayload{Tool: a.Tool, Status: "failed", Detail: string(se.Type)},
			})
			continue
		}
		results = append(results, fmt.Sprintf("%s: %s", a.Tool, out))
		s.deps.Pub.Publish(turn.ConversationID, delivery.Event{
			Type:    delivery.EventToolProgress,
			Payload: delivery.ToolProgressPayload{Tool: a.Tool, Status: "completed"},
		})
	}
	return results
}

// synthesize streams the final answer with grounding and action results
// in context. Citations flow to the synthesizer because the grounding
// was retrieved by this strategy directly.
func (s *FastStrategy) synthesize(ctx context.Context, turn Turn, past []llm.ChatMessage, grounding *retrieval.GroundingContext, actionResults []string) error {
	wire := []llm.ChatMessage{{Role: domain.RoleSystem, Content: systemPrompt(turn)}}
	wire = append(wire, past...)

	if !grounding.Empty() {
		wire = append(wire, llm.ChatMessage{Role: domain.RoleSystem, Content: grounding.PromptBlock()})
	}
	if len(actionResults) > 0 {
		wire = append(wire, llm.ChatMessage{
			Role:    domain.RoleSystem,
			Content: "Tool results:\n" + strings.Join(actionResults, "\n"),
		})
	}
	wire = append(wire, llm.ChatMessage{Role: domain.RoleUser, Content: turn.Query})

	s.publishStatus(turn, "answering")
	events, err := s.deps.Client.Stream(ctx, llm.CompletionRequest{
		Model:    s.deps.Model,
		Messages: wire,
		Stream:   true,
	})
	if err != nil {
		s.deps.Pub.Publish(turn.ConversationID, delivery.Event{
			Type:    delivery.EventStreamError,
			Payload: delivery.StreamErrorPayload{Message: "the model is unavailable"},
		})
		return fmt.Errorf("starting synthesis stream: %w", err)
	}

	_, err = s.deps.Synth.Run(ctx, turn.ConversationID, events, grounding.Citations)
	return err
}

func (s *FastStrategy) publishStatus(turn Turn, status string) {
	s.deps.Pub.Publish(turn.ConversationID, delivery.Event{
		Type:    delivery.EventStatusUpdate,
		Payload: delivery.StatusPayload{Status: status},
	})
}

// planPrompt describes the available tools in plain text and asks for a
// strict JSON plan.
func planPrompt(defs []llm.ToolDefinition, past []llm.ChatMessage, grounding *retrieval.GroundingContext) string {
	var b strings.Builder
	b.WriteString("Decide which tools, if any, to run before answering the user. Available tools:\n")
	for _, d := range defs {
		fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
	}
	if !grounding.Empty() {
		b.WriteString("\nAlready retrieved:\n")
		b.WriteString(grounding.PromptBlock())
		b.WriteString("\n")
	}
	if n := len(past); n > 0 {
		fmt.Fprintf(&b, "\nThe conversation has %d prior messages.\n", n)
	}
	b.WriteString("\nRespond with JSON only, no prose: {\"actions\":[{\"tool\":\"name\",\"arguments\":{...}}]}. Use an empty actions array when the retrieved material already suffices.")
	return b.String()
}

// parsePlan decodes the model's plan, tolerating markdown code fences.
func parsePlan(content string) (actionPlan, error) {
	text := strings.TrimSpace(content)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}

	var plan actionPlan
	if err := json.Unmarshal([]byte(text), &plan); err != nil {
		return actionPlan{}, fmt.Errorf("decoding action plan: %w", err)
	}
	return plan, nil
}
