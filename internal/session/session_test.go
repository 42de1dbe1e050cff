package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  "u1",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func newTestSession(t *testing.T, token string) (*Session, *MemoryStore) {
	t.Helper()
	logger := zerolog.Nop()
	store := NewMemoryStore(token)
	s := New(store, &logger)
	require.NoError(t, s.Sync(context.Background()))
	return s, store
}

func TestSession_NoToken(t *testing.T) {
	s, _ := newTestSession(t, "")

	assert.False(t, s.IsLoggedIn())
	_, err := s.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSession_OpaqueToken(t *testing.T) {
	s, _ := newTestSession(t, "opaque-token")

	token, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", token)
	assert.True(t, s.IsLoggedIn())
}

func TestSession_JWTExpiry(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid", func(t *testing.T) {
		raw := signedToken(t, time.Now().Add(time.Hour))
		s, _ := newTestSession(t, raw)
		token, err := s.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, raw, token)
	})

	t.Run("Expired", func(t *testing.T) {
		s, store := newTestSession(t, signedToken(t, time.Now().Add(-time.Minute)))
		var fired int32
		s.OnExpired(func() { atomic.AddInt32(&fired, 1) })

		_, err := s.Token(ctx)
		assert.ErrorIs(t, err, ErrTokenExpired)
		assert.False(t, s.IsLoggedIn())
		assert.Equal(t, int32(1), atomic.LoadInt32(&fired))

		stored, _ := store.Token(ctx)
		assert.Empty(t, stored, "expiry clears the shared store")
	})
}

func TestSession_ExpireFiresOnce(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t, "token-1")
	var fired int32
	s.OnExpired(func() { atomic.AddInt32(&fired, 1) })

	s.Expire(ctx)
	s.Expire(ctx)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))

	require.NoError(t, s.Login(ctx, "token-2"))
	assert.True(t, s.IsLoggedIn())

	s.Expire(ctx)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fired), "login re-arms the hook")
}

func TestSession_LoginRejectsEmpty(t *testing.T) {
	s, _ := newTestSession(t, "")
	assert.ErrorIs(t, s.Login(context.Background(), ""), ErrNoSession)
}

func TestSession_WatchMemoryStore(t *testing.T) {
	s, store := newTestSession(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	// another writer logs in through the shared store
	assert.Eventually(t, func() bool {
		_ = store.ClearToken(context.Background())
		_ = store.SetToken(context.Background(), "from-other-tab")
		return s.IsLoggedIn()
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, store.ClearToken(context.Background()))
	assert.False(t, s.IsLoggedIn())

	cancel()
	assert.NoError(t, <-done)
}
