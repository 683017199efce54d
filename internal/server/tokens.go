package server

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"
)

// tokenStore issues short-lived bearer tokens.
type tokenStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	expiry map[string]time.Time
}

func newTokenStore(ttl time.Duration, now func() time.Time) *tokenStore {
	return &tokenStore{ttl: ttl, now: now, expiry: make(map[string]time.Time)}
}

// Issue creates a token valid for the store's TTL. Expired tokens are
// pruned on the way.
func (s *tokenStore) Issue() (string, error) {
	var b [24]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(b[:])

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for t, exp := range s.expiry {
		if exp.Before(now) {
			delete(s.expiry, t)
		}
	}
	s.expiry[token] = now.Add(s.ttl)
	return token, nil
}

// Check returns "" for a valid token, or the reason it was rejected.
func (s *tokenStore) Check(token string) string {
	if token == "" {
		return "Missing token"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.expiry[token]
	if !ok || exp.Before(s.now()) {
		return "Token expired"
	}
	return ""
}

// parseBearer extracts the token from an Authorization header value.
func parseBearer(header string) string {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}
