package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"yoketrip/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

var (
	ErrNoSession    = errors.New("no session token")
	ErrTokenExpired = errors.New("session token expired")
)

// Session is the explicit auth context handed to every component that calls
// the backend. It mirrors the token held in a TokenStore.
type Session struct {
	store  domain.TokenStore
	logger *zerolog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	token     string
	expired   bool
	onExpired []func()
}

func New(store domain.TokenStore, logger *zerolog.Logger) *Session {
	return &Session{store: store, logger: logger, now: time.Now}
}

// Sync re-reads the token from the store.
func (s *Session) Sync(ctx context.Context) error {
	token, err := s.store.Token(ctx)
	if err != nil {
		return fmt.Errorf("read session token: %w", err)
	}
	s.apply(token)
	return nil
}

// Login stores a fresh token and re-arms the expiry hooks.
func (s *Session) Login(ctx context.Context, token string) error {
	if token == "" {
		return ErrNoSession
	}
	if err := s.store.SetToken(ctx, token); err != nil {
		return fmt.Errorf("store session token: %w", err)
	}
	s.apply(token)
	return nil
}

// Token returns the bearer token for the next request. A JWT whose exp has
// passed expires the session before any request is made.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	if token == "" {
		return "", ErrNoSession
	}
	if exp, ok := tokenExpiry(token); ok && !exp.After(s.now()) {
		s.Expire(ctx)
		return "", ErrTokenExpired
	}
	return token, nil
}

func (s *Session) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// OnExpired registers a redirect/re-auth hook. Hooks run once per expiry.
func (s *Session) OnExpired(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpired = append(s.onExpired, fn)
}

// Expire drops the token everywhere and fires the expiry hooks.
func (s *Session) Expire(ctx context.Context) {
	s.mu.Lock()
	if s.expired {
		s.mu.Unlock()
		return
	}
	s.expired = true
	s.token = ""
	hooks := append([]func(){}, s.onExpired...)
	s.mu.Unlock()

	if err := s.store.ClearToken(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("clear session token")
	}
	s.logger.Info().Msg("session expired")

	for _, fn := range hooks {
		fn()
	}
}

// Watch keeps the session in step with token changes made elsewhere
// (another process sharing the store) until ctx is done.
func (s *Session) Watch(ctx context.Context) error {
	return s.store.Watch(ctx, func(token string) {
		s.logger.Debug().Bool("logged_in", token != "").Msg("session token changed")
		s.apply(token)
	})
}

func (s *Session) apply(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.token && token != "" {
		s.expired = false
	}
	s.token = token
}

// tokenExpiry reads exp from a JWT without verifying it; the backend owns
// verification. Opaque tokens report ok=false.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
