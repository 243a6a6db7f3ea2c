package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lorekeep/lorekeep/internal/agent"
)

// postMessageRequest is the message submission body.
type postMessageRequest struct {
	Query      string   `json:"query"`
	UserID     string   `json:"userId"`
	SourceIDs  []string `json:"sourceIds"`
	WebEnabled bool     `json:"webEnabled"`
	Mode       string   `json:"mode"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePostMessage accepts a user message and starts the turn in the
// background. Results arrive on the WebSocket feed; the HTTP response
// only acknowledges acceptance.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}

	turn := agent.Turn{
		ConversationID: conversationID,
		UserID:         req.UserID,
		Query:          req.Query,
		SourceIDs:      req.SourceIDs,
		WebEnabled:     req.WebEnabled,
		Mode:           agent.Mode(req.Mode),
	}
	if turn.Mode == "" {
		turn.Mode = agent.ModeNormal
	}

	// The turn outlives the HTTP request; the service applies its own
	// deadline.
	go func() {
		if err := s.runner.HandleMessage(context.Background(), turn); err != nil {
			s.log.Error().Err(err).Str("conversation", conversationID).Msg("turn failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"conversationId": conversationID})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	messages, err := s.history.GetMessages(r.Context(), conversationID)
	if err != nil {
		s.log.Error().Err(err).Msg("loading messages")
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) handleGetSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.sources.ListSources(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		s.log.Error().Err(err).Msg("listing sources")
		writeError(w, http.StatusInternalServerError, "failed to list sources")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
