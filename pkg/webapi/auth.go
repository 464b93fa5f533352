package webapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type staticTokenSource string

// StaticTokenSource returns a TokenSource that always yields the given
// token. An empty token disables the Authorization header (useful against
// local emulators).
func StaticTokenSource(token string) TokenSource {
	return staticTokenSource(token)
}

func (s staticTokenSource) Token(context.Context) (string, error) {
	return string(s), nil
}

// refreshSkew is how long before expiry a cached token is considered stale.
const refreshSkew = 2 * time.Minute

type refreshingTokenSource struct {
	fetch func(ctx context.Context) (string, error)
	now   func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewRefreshingTokenSource wraps a token-fetching callback with caching.
// The cached token's expiry is read from its exp claim without signature
// verification — this source consumes tokens, it does not trust them. A
// token with no parseable expiry is re-fetched on every call.
func NewRefreshingTokenSource(fetch func(ctx context.Context) (string, error)) TokenSource {
	return &refreshingTokenSource{fetch: fetch, now: time.Now}
}

func (s *refreshingTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && !s.expires.IsZero() && s.now().Add(refreshSkew).Before(s.expires) {
		return s.token, nil
	}

	token, err := s.fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}

	s.token = token
	s.expires = tokenExpiry(token)
	return token, nil
}

func tokenExpiry(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
