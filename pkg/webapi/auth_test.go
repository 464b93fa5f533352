package webapi

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "engine-test",
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func TestStaticTokenSource(t *testing.T) {
	src := StaticTokenSource("abc")
	token, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestRefreshingTokenSource_CachesUntilNearExpiry(t *testing.T) {
	fresh := signedToken(t, time.Now().Add(time.Hour))

	fetches := 0
	src := NewRefreshingTokenSource(func(context.Context) (string, error) {
		fetches++
		return fresh, nil
	})

	for i := 0; i < 3; i++ {
		token, err := src.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, fresh, token)
	}
	assert.Equal(t, 1, fetches)
}

func TestRefreshingTokenSource_RefreshesExpiredToken(t *testing.T) {
	// Token already inside the refresh window: every call re-fetches.
	stale := signedToken(t, time.Now().Add(30*time.Second))

	fetches := 0
	src := NewRefreshingTokenSource(func(context.Context) (string, error) {
		fetches++
		return stale, nil
	})

	_, err := src.Token(context.Background())
	require.NoError(t, err)
	_, err = src.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, fetches)
}

func TestRefreshingTokenSource_OpaqueTokenAlwaysRefetches(t *testing.T) {
	fetches := 0
	src := NewRefreshingTokenSource(func(context.Context) (string, error) {
		fetches++
		return "opaque-not-a-jwt", nil
	})

	_, err := src.Token(context.Background())
	require.NoError(t, err)
	_, err = src.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, fetches)
}
