package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/internal/delivery"
	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/llm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []delivery.Event
}

func (p *recordingPublisher) Publish(conversationID string, evt delivery.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	evt.ConversationID = conversationID
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) count(t delivery.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func TestService_PersistsUserMessageBeforeStrategy(t *testing.T) {
	client := &llm.MockClient{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "hi"}, nil
		},
	}
	deps, st, _ := newTestDeps(t, client)
	pub := &recordingPublisher{}
	deps.Pub = pub

	svc := NewService(deps, NewFactory(deps, nil), 0)
	turn := Turn{ConversationID: "c", UserID: "u", Query: "hello", Mode: ModeNormal}
	require.NoError(t, svc.HandleMessage(context.Background(), turn))

	users := st.byRole(domain.RoleUser)
	require.Len(t, users, 1)
	assert.Equal(t, "hello", users[0].Content)
	assert.Equal(t, 1, pub.count(delivery.EventNewMessage))
}

func TestService_TurnTimeoutBoundsStrategy(t *testing.T) {
	client := &llm.MockClient{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return &llm.CompletionResponse{Content: "too late"}, nil
			}
		},
	}
	deps, _, _ := newTestDeps(t, client)
	svc := NewService(deps, NewFactory(deps, nil), 20*time.Millisecond)

	err := svc.HandleMessage(context.Background(), Turn{ConversationID: "c", Query: "q", Mode: ModeNormal})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
