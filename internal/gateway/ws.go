package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lorekeep/lorekeep/internal/delivery"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// handleWebSocket upgrades the connection and attaches it to the
// conversation's event group. The persisted history is replayed first so
// a reconnecting client recovers anything it missed; chunk indexes let
// it deduplicate the overlap.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversationId")
	if conversationID == "" {
		writeError(w, http.StatusBadRequest, "conversationId is required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := s.hub.Subscribe(conversationID)
	s.log.Debug().Str("conversation", conversationID).Msg("websocket connected")

	if err := s.replayHistory(r, conn, conversationID); err != nil {
		s.log.Warn().Err(err).Msg("history replay failed")
		s.hub.Unsubscribe(sub)
		_ = conn.Close()
		return
	}

	// Reader only detects disconnect; clients do not send frames.
	go func() {
		defer s.hub.Unsubscribe(sub)
		conn.SetReadLimit(1024)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go s.writePump(conn, sub)
}

// writePump forwards hub events to the connection until either side
// goes away. Delivery is best effort; a write failure just drops the
// client.
func (s *Server) writePump(conn *websocket.Conn, sub *delivery.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.hub.Unsubscribe(sub)
		_ = conn.Close()
	}()

	for {
		select {
		case evt, ok := <-sub.C:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) replayHistory(r *http.Request, conn *websocket.Conn, conversationID string) error {
	messages, err := s.history.GetMessages(r.Context(), conversationID)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(delivery.Event{
		Type:           delivery.EventHistoryReplay,
		ConversationID: conversationID,
		Payload:        map[string]any{"messages": messages},
	})
}
