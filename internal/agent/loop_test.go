package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/internal/delivery"
	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/llm"
	"github.com/lorekeep/lorekeep/internal/logging"
	"github.com/lorekeep/lorekeep/internal/stream"
	"github.com/lorekeep/lorekeep/internal/tool"
	"github.com/lorekeep/lorekeep/internal/tools"
)

type memStore struct {
	mu       sync.Mutex
	messages []domain.Message
}

func (s *memStore) CreateMessage(ctx context.Context, m domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return nil
}

func (s *memStore) GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

func (s *memStore) byRole(role string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for _, m := range s.messages {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

// fakeSynth records the terminal stream instead of publishing it.
type fakeSynth struct {
	mu        sync.Mutex
	runs      int
	content   string
	citations []domain.Citation
}

func (f *fakeSynth) Run(ctx context.Context, conversationID string, events <-chan llm.StreamEvent, citations []domain.Citation) (*stream.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	f.citations = citations
	var b strings.Builder
	for evt := range events {
		if evt.Type == "delta" {
			b.WriteString(evt.Content)
		}
	}
	f.content = b.String()
	return &stream.Result{Content: f.content}, nil
}

// stubTool is a configurable test tool.
type stubTool struct {
	name string
	cap  tool.Capability
	fn   func(args string) (string, error)
}

func (t *stubTool) Name() string                 { return t.name }
func (t *stubTool) Description() string          { return "stub" }
func (t *stubTool) Parameters() json.RawMessage  { return json.RawMessage(`{"type":"object"}`) }
func (t *stubTool) Capability() tool.Capability  { return t.cap }
func (t *stubTool) Execute(ctx context.Context, ec tool.ExecutionContext, args string) (string, error) {
	if t.fn != nil {
		return t.fn(args)
	}
	return "ok", nil
}

func callPayload(id, name, args string) llm.ToolCallPayload {
	return llm.ToolCallPayload{
		ID:   id,
		Type: "function",
		Function: llm.FunctionCall{Name: name, Arguments: args},
	}
}

func newTestDeps(t *testing.T, client llm.Client, toolset ...tool.Tool) (Deps, *memStore, *fakeSynth) {
	t.Helper()
	reg := tool.NewRegistry(logging.Nop())
	for _, tl := range toolset {
		reg.Register(tl)
	}
	st := &memStore{}
	syn := &fakeSynth{}
	return Deps{
		Client:             client,
		Model:              "test-model",
		Registry:           reg,
		Store:              st,
		Pub:                delivery.NopPublisher{},
		Synth:              syn,
		Log:                logging.Nop(),
		MaxContextMessages: 50,
	}, st, syn
}

func TestLoop_BudgetOneForcesSynthesisAfterSingleIteration(t *testing.T) {
	completions := 0
	client := &llm.MockClient{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			completions++
			// Always wants another tool call; the budget must cut it off.
			return &llm.CompletionResponse{
				ToolCalls: []llm.ToolCallPayload{callPayload("c1", "probe", "{}")},
			}, nil
		},
		StreamFunc: func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
			last := req.Messages[len(req.Messages)-1]
			assert.Equal(t, domain.RoleSystem, last.Role)
			assert.Contains(t, last.Content, "run out of tool-call budget")
			return llm.StreamOf("best effort answer"), nil
		},
	}
	deps, st, syn := newTestDeps(t, client, &stubTool{name: "probe"})

	s := NewLoopStrategy(deps, "normal", 1)
	require.NoError(t, s.Run(context.Background(), Turn{ConversationID: "c", Query: "q"}))

	assert.Equal(t, 1, completions, "exactly one tool iteration")
	assert.Equal(t, 1, syn.runs)
	assert.Equal(t, "best effort answer", syn.content)
	assert.Len(t, st.byRole(domain.RoleTool), 1)
}

func TestLoop_FinalAnswerShortCircuitsRemainingBudget(t *testing.T) {
	completions := 0
	executed := 0
	client := &llm.MockClient{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			completions++
			if completions == 1 {
				return &llm.CompletionResponse{
					ToolCalls: []llm.ToolCallPayload{callPayload("c1", "probe", "{}")},
				}, nil
			}
			return &llm.CompletionResponse{
				ToolCalls: []llm.ToolCallPayload{callPayload("c2", tools.FinalAnswerName, "{}")},
			}, nil
		},
		StreamFunc: func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
			return llm.StreamOf("gathered answer"), nil
		},
	}
	probe := &stubTool{name: "probe", fn: func(string) (string, error) {
		executed++
		return "data", nil
	}}
	deps, _, syn := newTestDeps(t, client, probe, tools.NewFinalAnswer())

	s := NewLoopStrategy(deps, "normal", 5)
	require.NoError(t, s.Run(context.Background(), Turn{ConversationID: "c", Query: "q"}))

	assert.Equal(t, 2, completions, "iterations 3..5 skipped")
	assert.Equal(t, 1, executed, "final-answer marker itself is not executed")
	assert.Equal(t, 1, syn.runs)
	assert.Equal(t, "gathered answer", syn.content)
}

func TestLoop_DirectAnswerSkipsTools(t *testing.T) {
	client := &llm.MockClient{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "42"}, nil
		},
	}
	deps, st, syn := newTestDeps(t, client, &stubTool{name: "probe"})

	s := NewLoopStrategy(deps, "normal", 5)
	require.NoError(t, s.Run(context.Background(), Turn{ConversationID: "c", Query: "q"}))

	assert.Equal(t, "42", syn.content)
	assert.Empty(t, st.byRole(domain.RoleTool))
}

func TestLoop_OneFailureAmongBatchYieldsStructuredError(t *testing.T) {
	completions := 0
	client := &llm.MockClient{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			completions++
			if completions == 1 {
				return &llm.CompletionResponse{
					ToolCalls: []llm.ToolCallPayload{
						callPayload("c1", "good", "{}"),
						callPayload("c2", "bad", "{}"),
						callPayload("c3", "good", "{}"),
					},
				}, nil
			}
			return &llm.CompletionResponse{Content: "done"}, nil
		},
	}
	good := &stubTool{name: "good"}
	bad := &stubTool{name: "bad", fn: func(string) (string, error) {
		return "", fmt.Errorf("connection refused")
	}}
	deps, st, _ := newTestDeps(t, client, good, bad)

	s := NewLoopStrategy(deps, "normal", 5)
	require.NoError(t, s.Run(context.Background(), Turn{ConversationID: "c", Query: "q"}))

	toolMsgs := st.byRole(domain.RoleTool)
	require.Len(t, toolMsgs, 3, "every call gets a result message")

	var failures int
	for _, m := range toolMsgs {
		if strings.Contains(m.Content, `"errorType":"network"`) {
			failures++
		}
	}
	assert.Equal(t, 1, failures)
}

func TestLoop_UnknownToolNameBecomesStructuredError(t *testing.T) {
	completions := 0
	client := &llm.MockClient{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			completions++
			if completions == 1 {
				return &llm.CompletionResponse{
					ToolCalls: []llm.ToolCallPayload{callPayload("c1", "hallucinated", "{}")},
				}, nil
			}
			return &llm.CompletionResponse{Content: "recovered"}, nil
		},
	}
	deps, st, syn := newTestDeps(t, client)

	s := NewLoopStrategy(deps, "normal", 5)
	require.NoError(t, s.Run(context.Background(), Turn{ConversationID: "c", Query: "q"}))

	toolMsgs := st.byRole(domain.RoleTool)
	require.Len(t, toolMsgs, 1)
	assert.Contains(t, toolMsgs[0].Content, `"errorType":"not_found"`)
	assert.Equal(t, "recovered", syn.content)
}

func TestLoop_ThoughtsPersistedAsAgentThoughts(t *testing.T) {
	completions := 0
	client := &llm.MockClient{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			completions++
			if completions == 1 {
				return &llm.CompletionResponse{
					ToolCalls: []llm.ToolCallPayload{callPayload("c1", "probe", "{}")},
				}, nil
			}
			return &llm.CompletionResponse{Content: "final"}, nil
		},
	}
	deps, st, _ := newTestDeps(t, client, &stubTool{name: "probe"})

	s := NewLoopStrategy(deps, "normal", 5)
	require.NoError(t, s.Run(context.Background(), Turn{ConversationID: "c", Query: "q"}))

	thoughts := 0
	for _, m := range st.byRole(domain.RoleAssistant) {
		if m.IsAgentThought() {
			thoughts++
		}
	}
	assert.Equal(t, 1, thoughts)
}
