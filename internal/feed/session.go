package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/danmaku/internal/engine"
	"github.com/roach88/danmaku/internal/wire"
)

// DefaultSubscribeDelay is the pause between the initial fetch and
// opening the event stream.
const DefaultSubscribeDelay = 500 * time.Millisecond

const deleteCommand = "!delete "

// Stream is an open event stream.
type Stream interface {
	Next() (wire.Frame, error)
	Close() error
}

// Transport is the server side of a session. *Client implements it.
type Transport interface {
	FetchInitial(ctx context.Context) ([]wire.Message, error)
	Subscribe(ctx context.Context) (Stream, error)
	Post(ctx context.Context, content string) (wire.PostResponse, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Sink receives pool mutations. *engine.Engine implements it.
type Sink interface {
	Load(msgs []engine.Message) bool
	Upsert(m engine.Message) bool
	Remove(id string) bool
}

// State is the connection state shown to the user.
type State int

const (
	StateConnecting State = iota
	StateLive
	StateDegraded
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	case StateDegraded:
		return "degraded"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the session state. Err is the failure that
// caused a degraded state.
type Status struct {
	State State
	Err   error
}

// Session feeds one wall from one server.
//
// Transport failures never reach the engine: they are reported through
// Status and the wall keeps whatever it already holds. Nothing retries
// automatically.
type Session struct {
	transport      Transport
	sink           Sink
	subscribeDelay time.Duration

	mu       sync.RWMutex
	status   Status
	onStatus func(Status)
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSubscribeDelay sets the pause before subscribing.
func WithSubscribeDelay(d time.Duration) SessionOption {
	return func(s *Session) { s.subscribeDelay = d }
}

// WithStatusHook calls fn on every status change.
func WithStatusHook(fn func(Status)) SessionOption {
	return func(s *Session) { s.onStatus = fn }
}

// NewSession creates a session. Call Run to start it.
func NewSession(t Transport, sink Sink, opts ...SessionOption) *Session {
	s := &Session{
		transport:      t,
		sink:           sink,
		subscribeDelay: DefaultSubscribeDelay,
		status:         Status{State: StateConnecting},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	hook := s.onStatus
	s.mu.Unlock()
	if st.Err != nil {
		slog.Warn("feed degraded", "state", st.State.String(), "error", st.Err)
	} else {
		slog.Info("feed status", "state", st.State.String())
	}
	if hook != nil {
		hook(st)
	}
}

func (s *Session) degrade(err error) {
	s.setStatus(Status{State: StateDegraded, Err: err})
}

// Run loads the initial set, waits SubscribeDelay, then applies pushed
// events until ctx is cancelled or the stream fails.
//
// A failed initial fetch degrades the session and leaves the pool empty,
// but the stream is still opened. Run returns ctx.Err() on cancellation
// and the stream error otherwise.
func (s *Session) Run(ctx context.Context) error {
	s.setStatus(Status{State: StateConnecting})

	msgs, err := s.transport.FetchInitial(ctx)
	switch {
	case ctx.Err() != nil:
		return s.closed(ctx)
	case err != nil:
		s.degrade(err)
	default:
		s.sink.Load(toEngine(msgs))
		slog.Debug("initial messages loaded", "count", len(msgs))
	}

	timer := time.NewTimer(s.subscribeDelay)
	select {
	case <-ctx.Done():
		timer.Stop()
		return s.closed(ctx)
	case <-timer.C:
	}

	stream, err := s.transport.Subscribe(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return s.closed(ctx)
		}
		s.degrade(err)
		return err
	}
	defer stream.Close()

	// Closing the stream unblocks a pending Next on cancellation.
	stop := context.AfterFunc(ctx, func() { stream.Close() })
	defer stop()

	if s.Status().State != StateDegraded {
		s.setStatus(Status{State: StateLive})
	}

	for {
		f, err := stream.Next()
		if err != nil {
			if ctx.Err() != nil {
				return s.closed(ctx)
			}
			if errors.Is(err, io.EOF) {
				err = errors.New("event stream closed by server")
			}
			err = fmt.Errorf("event stream: %w", err)
			s.degrade(err)
			return err
		}
		s.apply(f)
	}
}

func (s *Session) closed(ctx context.Context) error {
	s.setStatus(Status{State: StateClosed})
	return ctx.Err()
}

// apply routes one frame to the sink. Malformed frames are dropped.
func (s *Session) apply(f wire.Frame) {
	ev, err := wire.DecodeEvent(f)
	if err != nil {
		slog.Debug("dropping event", "event", f.Event, "error", err)
		return
	}
	switch ev.Type {
	case wire.EventMessage:
		s.sink.Upsert(toEngineMessage(ev.Message))
	case wire.EventDelete:
		s.sink.Remove(ev.ID)
	}
}

// Post sends content and, on success, applies the result to the pool
// right away. The pushed event that follows is an idempotent repeat.
func (s *Session) Post(ctx context.Context, content string) (wire.PostResponse, error) {
	resp, err := s.transport.Post(ctx, content)
	if err != nil {
		return wire.PostResponse{}, err
	}
	switch {
	case resp.Item != nil:
		s.sink.Upsert(toEngineMessage(*resp.Item))
	case resp.Deleted != nil:
		if target, ok := strings.CutPrefix(strings.TrimSpace(content), deleteCommand); ok {
			s.sink.Remove(strings.TrimSpace(target))
		}
	}
	return resp, nil
}

// Delete removes id on the server and, on success, from the pool.
func (s *Session) Delete(ctx context.Context, id string) (bool, error) {
	existed, err := s.transport.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	s.sink.Remove(id)
	return existed, nil
}

func toEngineMessage(m wire.Message) engine.Message {
	return engine.Message{ID: m.ID, Content: m.Content, CreatedAt: m.Time()}
}

func toEngine(msgs []wire.Message) []engine.Message {
	out := make([]engine.Message, len(msgs))
	for i, m := range msgs {
		out[i] = toEngineMessage(m)
	}
	return out
}
