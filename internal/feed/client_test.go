package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/danmaku/internal/server"
	"github.com/roach88/danmaku/internal/testutil"
	"github.com/roach88/danmaku/internal/wire"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.DBPath = ""
	s, err := server.New(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newClient(t *testing.T, url string, opts ...ClientOption) *Client {
	t.Helper()
	c, err := NewClient(url, opts...)
	require.NoError(t, err)
	return c
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	_, err := NewClient("ftp://example.com")
	assert.Error(t, err)
}

func TestClient_AgainstServer(t *testing.T) {
	ts := newServer(t)
	c := newClient(t, ts.URL+"/")
	ctx := context.Background()

	resp, err := c.Post(ctx, "hello")
	require.NoError(t, err)
	require.NotNil(t, resp.Item)
	assert.Equal(t, "hello", resp.Item.Content)

	items, err := c.FetchInitial(ctx)
	require.NoError(t, err)
	assert.Equal(t, []wire.Message{*resp.Item}, items)

	existed, err := c.Delete(ctx, resp.Item.ID)
	require.NoError(t, err)
	assert.True(t, existed)

	items, err = c.FetchInitial(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestClient_PostEmptyReturnsHTTPError(t *testing.T) {
	ts := newServer(t)
	c := newClient(t, ts.URL)

	_, err := c.Post(context.Background(), "   ")

	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Status)
	assert.Equal(t, "Empty content", he.Detail)
}

func TestClient_SubscribeReceivesFrames(t *testing.T) {
	ts := newServer(t)
	c := newClient(t, ts.URL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := c.Subscribe(ctx)
	require.NoError(t, err)
	defer stream.Close()

	f, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, wire.EventHello, f.Event)

	_, err = c.Post(ctx, "live")
	require.NoError(t, err)

	f, err = stream.Next()
	require.NoError(t, err)
	ev, err := wire.DecodeEvent(f)
	require.NoError(t, err)
	assert.Equal(t, "live", ev.Message.Content)
}

// tokenServer issues tokens and counts requests; POST accepts only the
// most recent token.
type tokenServer struct {
	issued atomic.Int32
	posts  atomic.Int32
}

func (s *tokenServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		n := s.issued.Add(1)
		json.NewEncoder(w).Encode(wire.TokenResponse{OK: true, Token: tokenName(n), ExpiresIn: 60})
	})
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		s.posts.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+tokenName(s.issued.Load()) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(wire.ErrorResponse{Detail: "Token expired"})
			return
		}
		json.NewEncoder(w).Encode(wire.PostResponse{OK: true, Item: &wire.Message{ID: "x", Content: "c"}})
	})
	return mux
}

func tokenName(n int32) string {
	return "tok-" + string(rune('a'+n))
}

func TestClient_TokenCachedUntilNearExpiry(t *testing.T) {
	srv := &tokenServer{}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()
	clk := testutil.NewManualClock(testutil.Epoch)
	c := newClient(t, ts.URL, WithClock(clk.Now))
	ctx := context.Background()

	first, err := c.Token(ctx)
	require.NoError(t, err)
	again, err := c.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, int32(1), srv.issued.Load())

	clk.Advance(55 * time.Second) // inside the renewal skew
	renewed, err := c.Token(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, renewed)
	assert.Equal(t, int32(2), srv.issued.Load())
}

func TestClient_RetriesOnceOnUnauthorized(t *testing.T) {
	srv := &tokenServer{}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()
	c := newClient(t, ts.URL)
	ctx := context.Background()

	_, err := c.Token(ctx)
	require.NoError(t, err)
	// Another client rotates the token server-side.
	srv.issued.Add(1)

	resp, err := c.Post(ctx, "c")

	require.NoError(t, err)
	assert.Equal(t, "x", resp.Item.ID)
	assert.Equal(t, int32(2), srv.posts.Load())
}

func TestIsUnauthorized(t *testing.T) {
	assert.True(t, IsUnauthorized(&HTTPError{Status: 401}))
	assert.False(t, IsUnauthorized(&HTTPError{Status: 500}))
	assert.False(t, IsUnauthorized(context.Canceled))
}
