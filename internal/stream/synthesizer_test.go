package stream

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/internal/delivery"
	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/llm"
	"github.com/lorekeep/lorekeep/internal/logging"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []delivery.Event
}

func (p *capturingPublisher) Publish(conversationID string, evt delivery.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	evt.ConversationID = conversationID
	p.events = append(p.events, evt)
}

func (p *capturingPublisher) ofType(t delivery.EventType) []delivery.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []delivery.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type capturingStore struct {
	mu       sync.Mutex
	messages []domain.Message
	err      error
}

func (s *capturingStore) CreateMessage(ctx context.Context, m domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, m)
	return nil
}

func TestSynthesizer_OrderedChunksAndPersistence(t *testing.T) {
	pub := &capturingPublisher{}
	st := &capturingStore{}
	syn := NewSynthesizer(st, pub, logging.Nop())

	res, err := syn.Run(context.Background(), "c1", llm.StreamOf("Hel", "lo"), nil)
	require.NoError(t, err)

	chunks := pub.ofType(delivery.EventMessageChunk)
	require.Len(t, chunks, 2)
	first := chunks[0].Payload.(delivery.ChunkPayload)
	second := chunks[1].Payload.(delivery.ChunkPayload)
	assert.Equal(t, 0, first.ChunkIndex)
	assert.Equal(t, 1, second.ChunkIndex)
	assert.Equal(t, first.StreamID, second.StreamID)
	assert.Equal(t, "Hel", first.Content)
	assert.Equal(t, "lo", second.Content)

	require.Len(t, st.messages, 1)
	assert.Equal(t, "Hello", st.messages[0].Content)
	assert.Equal(t, domain.RoleAssistant, st.messages[0].Role)

	ends := pub.ofType(delivery.EventMessageEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, st.messages[0].ID, ends[0].Payload.(delivery.MessageEndPayload).MessageID)

	assert.Equal(t, "Hello", res.Content)
	assert.Equal(t, 2, res.Chunks)
}

func TestSynthesizer_EmptyStreamPersistsApology(t *testing.T) {
	pub := &capturingPublisher{}
	st := &capturingStore{}
	syn := NewSynthesizer(st, pub, logging.Nop())

	_, err := syn.Run(context.Background(), "c1", llm.StreamOf(), nil)
	require.NoError(t, err)

	require.Len(t, st.messages, 1)
	assert.Equal(t, apologyText, st.messages[0].Content)
	assert.Len(t, pub.ofType(delivery.EventMessageEnd), 1)
}

func TestSynthesizer_MidStreamErrorEmitsTerminalEvent(t *testing.T) {
	pub := &capturingPublisher{}
	st := &capturingStore{}
	syn := NewSynthesizer(st, pub, logging.Nop())

	events := make(chan llm.StreamEvent, 3)
	events <- llm.StreamEvent{Type: "delta", Content: "partial "}
	events <- llm.StreamEvent{Type: "error", Error: "provider hung up"}
	close(events)

	_, err := syn.Run(context.Background(), "c1", events, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider hung up")

	// Partial output was delivered and is not retracted.
	assert.Len(t, pub.ofType(delivery.EventMessageChunk), 1)
	assert.Len(t, pub.ofType(delivery.EventStreamError), 1)
	assert.Empty(t, st.messages, "no message persisted on stream failure")
}

func TestSynthesizer_PersistFailureSurfaces(t *testing.T) {
	pub := &capturingPublisher{}
	st := &capturingStore{err: fmt.Errorf("disk full")}
	syn := NewSynthesizer(st, pub, logging.Nop())

	_, err := syn.Run(context.Background(), "c1", llm.StreamOf("hi"), nil)
	require.Error(t, err)
	assert.Len(t, pub.ofType(delivery.EventStreamError), 1)
}

func TestSynthesizer_CitationsAttachedToMessage(t *testing.T) {
	pub := &capturingPublisher{}
	st := &capturingStore{}
	syn := NewSynthesizer(st, pub, logging.Nop())

	cits := []domain.Citation{{Number: 1, SourceName: "report", ChunkIndex: 3}}
	_, err := syn.Run(context.Background(), "c1", llm.StreamOf("answer [1]"), cits)
	require.NoError(t, err)

	require.Len(t, st.messages, 1)
	assert.Contains(t, st.messages[0].Metadata, "citations")
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"clean", "hello world", "hello world"},
		{"keeps newline and tab", "a\n\tb", "a\n\tb"},
		{"strips control chars", "a\x00b\x1bc", "abc"},
		{"strips del", "a\x7fb", "ab"},
		{"strips invalid utf8", "a\xffb", "ab"},
		{"unicode preserved", "héllo → 世界", "héllo → 世界"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitize_UnpairedSurrogate(t *testing.T) {
	// A lone high surrogate encoded as WTF-8 style bytes.
	in := "ok" + string([]byte{0xed, 0xa0, 0x80}) + "done"
	assert.Equal(t, "okdone", Sanitize(in))
}
