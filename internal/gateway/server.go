// Package gateway exposes the orchestrator over HTTP and WebSocket:
// message submission, history reads, and the live event feed.
package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/lorekeep/lorekeep/internal/agent"
	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/delivery"
	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/logging"
)

// TurnRunner runs one agent turn to completion.
type TurnRunner interface {
	HandleMessage(ctx context.Context, turn agent.Turn) error
}

// HistoryReader loads a conversation's persisted messages.
type HistoryReader interface {
	GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
}

// SourceReader lists a user's document sources.
type SourceReader interface {
	ListSources(ctx context.Context, userID string) ([]domain.Source, error)
}

// Server is the HTTP/WebSocket gateway.
type Server struct {
	cfg        config.ServerConfig
	runner     TurnRunner
	hub        *delivery.Hub
	history    HistoryReader
	sources    SourceReader
	log        *logging.Logger
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// New creates a gateway server.
func New(cfg config.ServerConfig, runner TurnRunner, hub *delivery.Hub, history HistoryReader, sources SourceReader, log *logging.Logger) *Server {
	return &Server{
		cfg:     cfg,
		runner:  runner,
		hub:     hub,
		history: history,
		sources: sources,
		log:     log.Sub("gateway"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Same-origin and non-browser clients only.
			CheckOrigin: checkSameOrigin,
		},
	}
}

func checkSameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Post("/conversations/{conversationID}/messages", s.handlePostMessage)
		r.Get("/conversations/{conversationID}/messages", s.handleGetMessages)
		r.Get("/sources", s.handleGetSources)
	})
	return r
}

// Start listens until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.Routes(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.log.Info().Str("addr", addr).Msg("gateway listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
