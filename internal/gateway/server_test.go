package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/internal/agent"
	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/delivery"
	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/logging"
)

type fakeRunner struct {
	mu    sync.Mutex
	turns []agent.Turn
	done  chan struct{}
}

func (f *fakeRunner) HandleMessage(ctx context.Context, turn agent.Turn) error {
	f.mu.Lock()
	f.turns = append(f.turns, turn)
	f.mu.Unlock()
	if f.done != nil {
		close(f.done)
	}
	return nil
}

type fakeHistory struct {
	messages []domain.Message
}

func (f *fakeHistory) GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	return f.messages, nil
}

type fakeSources struct{}

func (fakeSources) ListSources(ctx context.Context, userID string) ([]domain.Source, error) {
	return []domain.Source{{ID: "s1", Name: "notes"}}, nil
}

func newTestServer(t *testing.T, runner *fakeRunner, hub *delivery.Hub, hist *fakeHistory) *httptest.Server {
	t.Helper()
	srv := New(config.ServerConfig{}, runner, hub, hist, fakeSources{}, logging.Nop())
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{}, delivery.NewHub(logging.Nop()), &fakeHistory{})
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPostMessage_AcceptsAndRunsTurn(t *testing.T) {
	runner := &fakeRunner{done: make(chan struct{})}
	ts := newTestServer(t, runner, delivery.NewHub(logging.Nop()), &fakeHistory{})

	body := `{"query":"what is up","userId":"u1","sourceIds":["s1"],"webEnabled":true,"mode":"fast"}`
	resp, err := http.Post(ts.URL+"/api/conversations/c9/messages", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	select {
	case <-runner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("turn never started")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Len(t, runner.turns, 1)
	turn := runner.turns[0]
	assert.Equal(t, "c9", turn.ConversationID)
	assert.Equal(t, "u1", turn.UserID)
	assert.Equal(t, agent.ModeFast, turn.Mode)
	assert.True(t, turn.WebEnabled)
}

func TestPostMessage_RejectsEmptyQuery(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{}, delivery.NewHub(logging.Nop()), &fakeHistory{})

	resp, err := http.Post(ts.URL+"/api/conversations/c/messages", "application/json", strings.NewReader(`{"query":"  "}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocket_ReplaysHistoryThenStreams(t *testing.T) {
	hub := delivery.NewHub(logging.Nop())
	hist := &fakeHistory{messages: []domain.Message{
		{ID: "m1", Role: domain.RoleUser, Content: "earlier question"},
	}}
	ts := newTestServer(t, &fakeRunner{}, hub, hist)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?conversationId=c1"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	var replay delivery.Event
	require.NoError(t, conn.ReadJSON(&replay))
	assert.Equal(t, delivery.EventHistoryReplay, replay.Type)

	// Wait for the subscription before publishing.
	require.Eventually(t, func() bool {
		return hub.SubscriberCount("c1") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish("c1", delivery.Event{
		Type:    delivery.EventMessageChunk,
		Payload: delivery.ChunkPayload{Content: "hi", ChunkIndex: 0, StreamID: "s"},
	})

	var chunk delivery.Event
	require.NoError(t, conn.ReadJSON(&chunk))
	assert.Equal(t, delivery.EventMessageChunk, chunk.Type)
	assert.Equal(t, "c1", chunk.ConversationID)
}

func TestWebSocket_RequiresConversationID(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{}, delivery.NewHub(logging.Nop()), &fakeHistory{})
	resp, err := http.Get(ts.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
