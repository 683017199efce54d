// Package feed connects a wall to the comment event server: an HTTP
// client for the server API and a Session that turns fetched and pushed
// comments into engine triggers.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/roach88/danmaku/internal/wire"
)

// tokenSkew renews a cached token this long before it expires.
const tokenSkew = 10 * time.Second

// HTTPError is a non-2xx answer from the server.
type HTTPError struct {
	Status int
	Detail string
}

func (e *HTTPError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Detail)
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == http.StatusUnauthorized
}

// Client talks to one event server.
//
// The bearer token is fetched lazily and cached until shortly before it
// expires. A request rejected with 401 is retried once with a fresh token.
type Client struct {
	baseURL string
	http    *http.Client
	now     func() time.Time

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client. Default: a client without timeout,
// since the event stream is long-lived.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithClock sets the time source used for token expiry.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https, got %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Token returns a valid bearer token, requesting a new one if needed.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExp.Add(-tokenSkew)) {
		return c.token, nil
	}

	var tr wire.TokenResponse
	if err := c.doJSON(ctx, http.MethodGet, "/token", "", nil, &tr); err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}
	if err := wire.Validate(tr); err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}
	c.token = tr.Token
	c.tokenExp = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
}

// FetchInitial returns the server's current message list.
func (c *Client) FetchInitial(ctx context.Context) ([]wire.Message, error) {
	var lr wire.ListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/messages", "", nil, &lr); err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	if err := wire.Validate(lr); err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	return lr.Items, nil
}

// Post submits content. A "!delete <id>" post comes back with Deleted set
// instead of Item.
func (c *Client) Post(ctx context.Context, content string) (wire.PostResponse, error) {
	var pr wire.PostResponse
	err := c.authed(ctx, func(token string) error {
		return c.doJSON(ctx, http.MethodPost, "/messages", token, wire.PostRequest{Content: content}, &pr)
	})
	if err != nil {
		return wire.PostResponse{}, fmt.Errorf("post message: %w", err)
	}
	return pr, nil
}

// Delete removes id and reports whether the server still held it.
func (c *Client) Delete(ctx context.Context, id string) (bool, error) {
	var dr wire.DeleteResponse
	err := c.authed(ctx, func(token string) error {
		return c.doJSON(ctx, http.MethodDelete, "/messages/"+url.PathEscape(id), token, nil, &dr)
	})
	if err != nil {
		return false, fmt.Errorf("delete message %s: %w", id, err)
	}
	return dr.Deleted, nil
}

// Subscribe opens the event stream. The stream ends when ctx is
// cancelled or the server closes it.
func (c *Client) Subscribe(ctx context.Context) (Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, fmt.Errorf("subscribe: %w", readHTTPError(resp))
	}
	return &sseStream{body: resp.Body, parser: wire.NewParser(resp.Body)}, nil
}

func (c *Client) authed(ctx context.Context, call func(token string) error) error {
	token, err := c.Token(ctx)
	if err != nil {
		return err
	}
	err = call(token)
	if !IsUnauthorized(err) {
		return err
	}
	c.invalidateToken()
	if token, err = c.Token(ctx); err != nil {
		return err
	}
	return call(token)
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readHTTPError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readHTTPError(resp *http.Response) error {
	var er wire.ErrorResponse
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(b, &er)
	return &HTTPError{Status: resp.StatusCode, Detail: er.Detail}
}

// sseStream reads frames from an open /events response.
type sseStream struct {
	body   io.ReadCloser
	parser *wire.Parser
}

func (s *sseStream) Next() (wire.Frame, error) {
	return s.parser.Next()
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
