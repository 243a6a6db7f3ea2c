package delivery

import (
	"sync"

	"github.com/lorekeep/lorekeep/internal/logging"
)

// subscriberBuffer bounds each subscriber's event queue. A slow
// subscriber drops events rather than stalling the publisher.
const subscriberBuffer = 64

// Subscription receives a conversation group's events.
type Subscription struct {
	C              <-chan Event
	ch             chan Event
	conversationID string
}

// Hub is the in-process delivery channel: per-conversation subscriber
// groups with non-blocking, best-effort fan-out.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Subscription]struct{}
	log    *logging.Logger
}

// NewHub creates an empty hub.
func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		groups: make(map[string]map[*Subscription]struct{}),
		log:    log.Sub("delivery"),
	}
}

// Subscribe joins a conversation's event group.
func (h *Hub) Subscribe(conversationID string) *Subscription {
	ch := make(chan Event, subscriberBuffer)
	sub := &Subscription{C: ch, ch: ch, conversationID: conversationID}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.groups[conversationID] == nil {
		h.groups[conversationID] = make(map[*Subscription]struct{})
	}
	h.groups[conversationID][sub] = struct{}{}
	return sub
}

// Unsubscribe leaves the group and closes the subscription channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group := h.groups[sub.conversationID]
	if group == nil {
		return
	}
	if _, ok := group[sub]; !ok {
		return
	}
	delete(group, sub)
	close(sub.ch)
	if len(group) == 0 {
		delete(h.groups, sub.conversationID)
	}
}

// Publish fans the event out to the conversation's subscribers.
// Full subscriber queues drop the event; ordering within a stream is
// recovered client-side via chunk indexes.
func (h *Hub) Publish(conversationID string, evt Event) {
	evt.ConversationID = conversationID

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.groups[conversationID] {
		select {
		case sub.ch <- evt:
		default:
			h.log.Warn().
				Str("conversation", conversationID).
				Str("event", string(evt.Type)).
				Msg("subscriber queue full, dropping event")
		}
	}
}

// SubscriberCount returns the current group size.
func (h *Hub) SubscriberCount(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[conversationID])
}
