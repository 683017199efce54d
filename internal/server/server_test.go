package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/danmaku/internal/wire"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9]{8}$`)

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.MaxInMemory = 0

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestRoot(t *testing.T) {
	ts := newTestServer(t, testConfig())

	var sr wire.StatusResponse
	status := ts.do(t, http.MethodGet, "/", "", nil, &sr)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, wire.StatusResponse{OK: true, Service: "danmaku-backend"}, sr)
}

func TestToken_Issue(t *testing.T) {
	ts := newTestServer(t, testConfig())

	var tr wire.TokenResponse
	status := ts.do(t, http.MethodGet, "/token", "", nil, &tr)

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, tr.OK)
	assert.Equal(t, 300, tr.ExpiresIn)
	assert.Len(t, tr.Token, 32, "24 random bytes, url-safe base64")
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t, testConfig())
	token := ts.token(t)

	tests := []struct {
		name   string
		token  string
		detail string
	}{
		{"missing", "", "Missing token"},
		{"unknown", "not-a-token", "Token expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var er wire.ErrorResponse
			status := ts.do(t, http.MethodPost, "/messages", tt.token, wire.PostRequest{Content: "x"}, &er)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.False(t, er.OK)
			assert.Equal(t, tt.detail, er.Detail)
		})
	}

	t.Run("expired", func(t *testing.T) {
		ts.clock.Advance(5*time.Minute + time.Second)
		var er wire.ErrorResponse
		status := ts.do(t, http.MethodDelete, "/messages/abc", token, nil, &er)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "Token expired", er.Detail)
	})
}

func TestPost_CreatesMessage(t *testing.T) {
	st := &memStore{}
	ts := newTestServer(t, testConfig(), WithStore(st))
	token := ts.token(t)

	m := ts.postContent(t, token, "  hello wall \n")

	assert.Regexp(t, idPattern, m.ID)
	assert.Equal(t, "hello wall", m.Content)
	assert.Equal(t, ts.clock.Now().UnixMilli(), m.TS)
	assert.Equal(t, []wire.Message{m}, ts.list(t))
	assert.Equal(t, []wire.Message{m}, st.Puts())
}

func TestPost_EmptyContent(t *testing.T) {
	ts := newTestServer(t, testConfig())
	token := ts.token(t)

	for _, content := range []string{"", "   "} {
		var er wire.ErrorResponse
		status := ts.do(t, http.MethodPost, "/messages", token, wire.PostRequest{Content: content}, &er)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Empty content", er.Detail)
	}
	assert.Empty(t, ts.list(t))
}

func TestPost_ContentTooLong(t *testing.T) {
	cfg := testConfig()
	cfg.MaxContentBytes = 16
	ts := newTestServer(t, cfg)
	token := ts.token(t)

	ts.postContent(t, token, strings.Repeat("x", 16))

	for _, content := range []string{strings.Repeat("x", 17), strings.Repeat("y", 64<<10)} {
		var er wire.ErrorResponse
		status := ts.do(t, http.MethodPost, "/messages", token, wire.PostRequest{Content: content}, &er)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Content too long", er.Detail)
	}
	assert.Len(t, ts.list(t), 1)
}

func TestPost_DeleteCommand(t *testing.T) {
	st := &memStore{}
	ts := newTestServer(t, testConfig(), WithStore(st))
	token := ts.token(t)
	m := ts.postContent(t, token, "doomed")

	var dr wire.DeleteResponse
	status := ts.do(t, http.MethodPost, "/messages", token, wire.PostRequest{Content: "!delete  " + m.ID + " "}, &dr)

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, dr.Deleted)
	assert.Empty(t, ts.list(t))
	assert.Equal(t, []string{m.ID}, st.Tombs())
}

func TestPost_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.PostRPS = 0.01
	cfg.PostBurst = 2
	ts := newTestServer(t, cfg)
	token := ts.token(t)

	ts.postContent(t, token, "one")
	ts.postContent(t, token, "two")

	var er wire.ErrorResponse
	status := ts.do(t, http.MethodPost, "/messages", token, wire.PostRequest{Content: "three"}, &er)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "Too many requests", er.Detail)

	ts.clock.Advance(100 * time.Second)
	ts.postContent(t, token, "refilled")
}

func TestPost_RateLimitSurvivesFreshTokens(t *testing.T) {
	cfg := testConfig()
	cfg.PostRPS = 0.01
	cfg.PostBurst = 10
	ts := newTestServer(t, cfg)

	statuses := map[int]int{}
	for i := 0; i < 20; i++ {
		status := ts.do(t, http.MethodPost, "/messages", ts.token(t), wire.PostRequest{Content: fmt.Sprintf("m%d", i)}, nil)
		statuses[status]++
	}

	assert.Equal(t, 10, statuses[http.StatusOK])
	assert.Equal(t, 10, statuses[http.StatusTooManyRequests])
	assert.Len(t, ts.list(t), 10)
	assert.Equal(t, 1, ts.limits.Len())
}

func TestPost_EvictsOldest(t *testing.T) {
	cfg := testConfig()
	cfg.MaxInMemory = 3
	cfg.PostBurst = 100
	ts := newTestServer(t, cfg)
	token := ts.token(t)

	var posted []wire.Message
	for i := 0; i < 5; i++ {
		posted = append(posted, ts.postContent(t, token, fmt.Sprintf("m%d", i)))
	}

	assert.Equal(t, posted[2:], ts.list(t))
}

func TestDelete(t *testing.T) {
	st := &memStore{}
	ts := newTestServer(t, testConfig(), WithStore(st))
	token := ts.token(t)
	m := ts.postContent(t, token, "x")

	var first, second wire.DeleteResponse
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/messages/"+m.ID, token, nil, &first))
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/messages/"+m.ID, token, nil, &second))

	assert.True(t, first.Deleted)
	assert.False(t, second.Deleted)
	assert.Equal(t, []string{m.ID, m.ID}, st.Tombs(), "tombstone written even when absent")
}

func TestPersistFailureDoesNotFailRequests(t *testing.T) {
	ts := newTestServer(t, testConfig(), WithStore(&memStore{fail: true}))
	token := ts.token(t)

	m := ts.postContent(t, token, "still works")

	var dr wire.DeleteResponse
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/messages/"+m.ID, token, nil, &dr))
	assert.True(t, dr.Deleted)
}

func TestRecover(t *testing.T) {
	st := &memStore{recovered: []wire.Message{
		{ID: "a", Content: "1", TS: 1},
		{ID: "b", Content: "2", TS: 2},
		{ID: "c", Content: "3", TS: 3},
	}}
	cfg := testConfig()
	cfg.RecoverLimit = 2
	ts := newTestServer(t, cfg, WithStore(st))

	n, err := ts.Recover(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, st.recovered[1:], ts.list(t))
}

func TestRecover_FailureLeavesListEmpty(t *testing.T) {
	ts := newTestServer(t, testConfig(), WithStore(&memStore{fail: true}))

	_, err := ts.Recover(context.Background())

	assert.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, ts.list(t))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, testConfig())
	ts.postContent(t, ts.token(t), "counted")

	resp, err := ts.http.Client().Get(ts.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "danmaku_messages 1")
	assert.Contains(t, string(body), `danmaku_posts_total{outcome="created"} 1`)
	assert.Contains(t, string(body), `danmaku_broadcasts_total{event="message"} 1`)
}
