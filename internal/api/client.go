package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"yoketrip/internal/config"
	"yoketrip/internal/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Authenticator supplies bearer tokens and is told when the backend rejects one.
type Authenticator interface {
	Token(ctx context.Context) (string, error)
	Expire(ctx context.Context)
}

// Client calls the YokeTrip backend. Every call goes through do, which owns
// auth headers, 401 handling, error mapping and metrics.
type Client struct {
	baseURL    string
	auth       Authenticator
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
}

func NewClient(cfg config.APIConfig, auth Authenticator, logger *zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		auth:       auth,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	if cfg.RateLimit.RPS > 0 {
		burst := cfg.RateLimit.Burst
		if burst <= 0 {
			burst = 5
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), burst)
	}
	return c
}

// UseRedisCache configures optional Redis caching for the host's trip list.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// NewIdempotencyKey returns a fresh key for one user action.
func NewIdempotencyKey() string {
	return uuid.NewString()
}

// SocketURL derives the websocket endpoint for the realtime channel.
func (c *Client) SocketURL(path, token string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	u.Path = "/" + strings.Trim(path, "/") + "/"
	q := url.Values{}
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Token exposes the current bearer token to the realtime dialer.
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.auth.Token(ctx)
}

type request struct {
	method         string
	path           string
	endpoint       string
	body           any
	idempotencyKey string
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	token, err := c.auth.Token(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", r.endpoint, err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limit: %w", r.endpoint, err)
		}
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", r.endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", r.endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", r.idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IncAPI(r.endpoint, 0)
		return fmt.Errorf("%s: %w", r.endpoint, err)
	}
	defer resp.Body.Close()
	metrics.IncAPI(r.endpoint, resp.StatusCode)

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Warn().Str("endpoint", r.endpoint).Msg("backend rejected session token")
		c.auth.Expire(ctx)
		return &APIError{Endpoint: r.endpoint, StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}
	}
	if resp.StatusCode >= 300 {
		return &APIError{Endpoint: r.endpoint, StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("%s: decode response: %w", r.endpoint, err)
	}
	return nil
}

// readMessage pulls a human message out of an error body.
func readMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(data))
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.cacheTTL).Err(); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// userCacheKey scopes a cache entry to the bearer token without storing it.
func userCacheKey(prefix, token string) string {
	sum := sha256.Sum256([]byte(token))
	return prefix + ":" + hex.EncodeToString(sum[:8])
}
