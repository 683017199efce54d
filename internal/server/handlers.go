package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/danmaku/internal/wire"
)

const (
	deleteCommand = "!delete "
	tokenKey      = "danmaku.token"
)

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(s.cfg.TrustedProxies); err != nil {
		slog.Warn("ignoring trusted proxies", "error", err)
	}
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/", s.handleRoot)
	r.GET("/token", s.handleToken)
	r.GET("/messages", s.handleList)
	r.GET("/events", s.handleEvents)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	authed := r.Group("/", s.requireAuth)
	authed.POST("/messages", s.handlePost)
	authed.DELETE("/messages/:id", s.handleDelete)

	return r
}

// requestLogger tags each request with an id and logs it at debug.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		start := time.Now()
		c.Next()
		slog.Debug("request",
			"id", id,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func abortWithDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, wire.ErrorResponse{OK: false, Detail: detail})
}

func (s *Server) requireAuth(c *gin.Context) {
	token := parseBearer(c.GetHeader("Authorization"))
	if reason := s.tokens.Check(token); reason != "" {
		abortWithDetail(c, http.StatusUnauthorized, reason)
		return
	}
	c.Set(tokenKey, token)
	c.Next()
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, wire.StatusResponse{OK: true, Service: ServiceName})
}

func (s *Server) handleToken(c *gin.Context) {
	token, err := s.tokens.Issue()
	if err != nil {
		slog.Error("token issue failed", "error", err)
		abortWithDetail(c, http.StatusInternalServerError, "Token unavailable")
		return
	}
	c.JSON(http.StatusOK, wire.TokenResponse{
		OK:        true,
		Token:     token,
		ExpiresIn: int(s.cfg.TokenTTL / time.Second),
	})
}

func (s *Server) handleList(c *gin.Context) {
	c.JSON(http.StatusOK, wire.ListResponse{OK: true, Items: s.msgs.List()})
}

func (s *Server) handlePost(c *gin.Context) {
	// Tokens are free to mint, so the bucket follows the client address.
	if !s.limits.Allow(c.ClientIP(), s.now()) {
		s.metrics.posts.WithLabelValues("rate_limited").Inc()
		abortWithDetail(c, http.StatusTooManyRequests, "Too many requests")
		return
	}

	// JSON escaping can grow each content byte to six.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(6*s.cfg.MaxContentBytes+1024))

	var req wire.PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.metrics.posts.WithLabelValues("invalid").Inc()
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			abortWithDetail(c, http.StatusBadRequest, "Content too long")
			return
		}
		abortWithDetail(c, http.StatusBadRequest, "Invalid body")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		s.metrics.posts.WithLabelValues("invalid").Inc()
		abortWithDetail(c, http.StatusBadRequest, "Empty content")
		return
	}
	if len(content) > s.cfg.MaxContentBytes {
		s.metrics.posts.WithLabelValues("invalid").Inc()
		abortWithDetail(c, http.StatusBadRequest, "Content too long")
		return
	}

	if target, ok := strings.CutPrefix(content, deleteCommand); ok {
		target = strings.TrimSpace(target)
		if target == "" {
			s.metrics.posts.WithLabelValues("invalid").Inc()
			abortWithDetail(c, http.StatusBadRequest, "Empty id")
			return
		}
		existed := s.remove(c.Request.Context(), target)
		s.metrics.posts.WithLabelValues("delete").Inc()
		c.JSON(http.StatusOK, wire.DeleteResponse{OK: true, Deleted: existed})
		return
	}

	m, err := s.post(c.Request.Context(), content)
	if err != nil {
		slog.Error("post failed", "error", err)
		s.metrics.posts.WithLabelValues("error").Inc()
		abortWithDetail(c, http.StatusInternalServerError, "Post failed")
		return
	}
	s.metrics.posts.WithLabelValues("created").Inc()
	c.JSON(http.StatusOK, wire.PostResponse{OK: true, Item: &m})
}

func (s *Server) handleDelete(c *gin.Context) {
	existed := s.remove(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, wire.DeleteResponse{OK: true, Deleted: existed})
}

// handleEvents streams hello, then every broadcast frame, with a ping after
// each PingInterval of silence. The stream ends when the client leaves or
// the subscriber is dropped for falling behind.
func (s *Server) handleEvents(c *gin.Context) {
	id, frames := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	w := c.Writer
	send := func(f wire.Frame) bool {
		if err := f.Encode(w); err != nil {
			slog.Debug("event stream write failed", "subscriber", id, "error", err)
			return false
		}
		w.Flush()
		return true
	}
	tick := func(event string) bool {
		f, err := wire.NewFrame(event, wire.TickPayload{TS: s.now().UnixMilli()})
		return err == nil && send(f)
	}

	if !tick(wire.EventHello) {
		return
	}

	ping := time.NewTimer(s.cfg.PingInterval)
	defer ping.Stop()
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				slog.Debug("event stream closed by hub", "subscriber", id)
				return
			}
			if !send(f) {
				return
			}
		case <-ping.C:
			if !tick(wire.EventPing) {
				return
			}
		}
		ping.Reset(s.cfg.PingInterval)
	}
}
