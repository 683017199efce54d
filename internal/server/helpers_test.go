package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/roach88/danmaku/internal/testutil"
	"github.com/roach88/danmaku/internal/wire"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memStore is an in-memory Persister.
type memStore struct {
	mu        sync.Mutex
	puts      []wire.Message
	tombs     []string
	recovered []wire.Message
	fail      bool
}

var errStoreDown = errors.New("store down")

func (m *memStore) PutMessage(_ context.Context, msg wire.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStoreDown
	}
	m.puts = append(m.puts, msg)
	return nil
}

func (m *memStore) MarkDeleted(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStoreDown
	}
	m.tombs = append(m.tombs, id)
	return nil
}

func (m *memStore) Recover(_ context.Context, limit int) ([]wire.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errStoreDown
	}
	out := m.recovered
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memStore) Puts() []wire.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]wire.Message(nil), m.puts...)
}

func (m *memStore) Tombs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tombs...)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.DBPath = ""
	return cfg
}

type testServer struct {
	*Server
	clock *testutil.ManualClock
	http  *httptest.Server
}

func newTestServer(t *testing.T, cfg Config, opts ...Option) *testServer {
	t.Helper()
	clk := testutil.NewManualClock(testutil.Epoch)
	s, err := New(cfg, append([]Option{WithNow(clk.Now)}, opts...)...)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: s, clock: clk, http: ts}
}

// do sends a request with an optional JSON body and bearer token and
// decodes the JSON response into out (if non-nil).
func (ts *testServer) do(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.http.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (ts *testServer) token(t *testing.T) string {
	t.Helper()
	var tr wire.TokenResponse
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/token", "", nil, &tr))
	return tr.Token
}

func (ts *testServer) postContent(t *testing.T, token, content string) wire.Message {
	t.Helper()
	var pr wire.PostResponse
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/messages", token, wire.PostRequest{Content: content}, &pr))
	require.NotNil(t, pr.Item)
	return *pr.Item
}

func (ts *testServer) list(t *testing.T) []wire.Message {
	t.Helper()
	var lr wire.ListResponse
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/messages", "", nil, &lr))
	return lr.Items
}
