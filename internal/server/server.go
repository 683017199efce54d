// Package server implements the comment event server: a small HTTP API
// for posting and deleting comments plus a server-sent event stream that
// pushes every change to connected walls.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/danmaku/internal/wire"
)

// ServiceName is reported by GET /.
const ServiceName = "danmaku-backend"

// Persister is the durable copy of the message list. *store.Store
// implements it.
type Persister interface {
	PutMessage(ctx context.Context, m wire.Message) error
	MarkDeleted(ctx context.Context, id string) error
	Recover(ctx context.Context, limit int) ([]wire.Message, error)
}

// Server holds the live message list and the subscriber hub.
//
// The in-memory list is authoritative while the process runs. Store
// writes are best effort: a failure is logged and counted, never
// reported to the client.
type Server struct {
	cfg     Config
	store   Persister
	now     func() time.Time
	tokens  *tokenStore
	msgs    *messageList
	hub     *hub
	limits  *limiterPool
	metrics *metrics
	router  *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables persistence.
func WithStore(p Persister) Option {
	return func(s *Server) { s.store = p }
}

// WithNow sets the time source. Default: time.Now.
func WithNow(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a server. Call Recover before serving to reload persisted
// messages.
func New(cfg Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	s := &Server{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newMetrics()
	s.tokens = newTokenStore(cfg.TokenTTL, s.now)
	s.msgs = newMessageList(cfg.MaxInMemory)
	s.hub = newHub(cfg.SubscriberBuffer, s.metrics)
	s.limits = newLimiterPool(cfg.PostRPS, cfg.PostBurst)
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Recover reloads the last RecoverLimit live messages from the store.
// Without a store it does nothing.
func (s *Server) Recover(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	msgs, err := s.store.Recover(ctx, s.cfg.RecoverLimit)
	if err != nil {
		return 0, fmt.Errorf("recover messages: %w", err)
	}
	s.msgs.Reset(msgs)
	s.metrics.messages.Set(float64(s.msgs.Len()))
	return s.msgs.Len(), nil
}

// ListenAndServe serves on cfg.Addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("event server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	slog.Info("event server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// post appends a new message, persists it and broadcasts it.
func (s *Server) post(ctx context.Context, content string) (wire.Message, error) {
	m, evicted, err := s.msgs.Post(content, s.now().UnixMilli())
	if err != nil {
		return wire.Message{}, err
	}
	if len(evicted) > 0 {
		slog.Debug("evicted oldest messages", "count", len(evicted))
	}
	s.metrics.messages.Set(float64(s.msgs.Len()))

	if s.store != nil {
		if err := s.store.PutMessage(ctx, m); err != nil {
			s.persistFailed("put", m.ID, err)
		}
	}
	s.broadcast(wire.EventMessage, m)
	return m, nil
}

// remove deletes id. The tombstone and the delete event are emitted even
// when the id is not live, so every wall converges.
func (s *Server) remove(ctx context.Context, id string) bool {
	existed := s.msgs.Remove(id)
	s.metrics.messages.Set(float64(s.msgs.Len()))

	if s.store != nil {
		if err := s.store.MarkDeleted(ctx, id); err != nil {
			s.persistFailed("delete", id, err)
		}
	}
	s.broadcast(wire.EventDelete, wire.DeletePayload{ID: id})
	return existed
}

func (s *Server) broadcast(event string, data any) {
	f, err := wire.NewFrame(event, data)
	if err != nil {
		slog.Error("broadcast skipped", "event", event, "error", err)
		return
	}
	s.hub.Broadcast(f)
}

func (s *Server) persistFailed(op, id string, err error) {
	s.metrics.persistFailures.WithLabelValues(op).Inc()
	slog.Warn("store write failed", "op", op, "message", id, "error", err)
}
