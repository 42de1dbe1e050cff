package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"yoketrip/internal/config"
	"yoketrip/internal/models"
	"yoketrip/internal/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	mu      sync.Mutex
	token   string
	expired int
}

func (f *fakeAuth) Token(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token == "" {
		return "", session.ErrNoSession
	}
	return f.token, nil
}

func (f *fakeAuth) Expire(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired++
	f.token = ""
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *fakeAuth) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	logger := zerolog.Nop()
	auth := &fakeAuth{token: "tok-123"}
	cfg := config.APIConfig{BaseURL: ts.URL, Timeout: 2 * time.Second}
	return NewClient(cfg, auth, &logger), auth
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestMyBookings(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/trips/bookings/all", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"bookings":[
			{"_id":"b1","status":"pending","trip":{"_id":"t1","start":{"dateTime":"2099-01-01"},"end":{"dateTime":"2099-01-02"}}},
			{"_id":"b2","status":"confirmed","trip":"t2"}]}`))
	}))

	bookings, err := client.MyBookings(context.Background())
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, "b1", bookings[0].ID)
	assert.Equal(t, "t1", bookings[0].TripID())
	assert.Nil(t, bookings[1].Trip)
}

func TestTripBookings_BackfillsTrip(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/trips/t%2F1", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{
			"trip":{"_id":"t/1","start":{"dateTime":"2099-02-01"},"end":{"dateTime":"2099-02-03"}},
			"bookings":[{"_id":"b1","status":"pending","trip":"t/1"},
			            {"_id":"b2","status":"pending","trip":{"_id":"other","start":{"dateTime":"2099-03-01"},"end":{"dateTime":"2099-03-02"}}}]}`))
	}))

	bookings, err := client.TripBookings(context.Background(), "t/1")
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, "t/1", bookings[0].TripID())
	assert.Equal(t, "other", bookings[1].TripID())
}

func TestBookingActions(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]string{}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.Method+" "+r.URL.Path] = r.Header.Get("Idempotency-Key")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	ctx := context.Background()

	require.NoError(t, client.AcceptBooking(ctx, "b1", "key-a"))
	require.NoError(t, client.RejectBooking(ctx, "b2", "key-r"))
	require.NoError(t, client.CancelBooking(ctx, "b3", "key-c"))

	assert.Equal(t, map[string]string{
		"POST /api/trips/bookings/accept/b1": "key-a",
		"POST /api/trips/bookings/reject/b2": "key-r",
		"DELETE /api/trips/cancel/b3":        "key-c",
	}, seen)
}

func TestErrorMapping(t *testing.T) {
	t.Run("Unauthorized", func(t *testing.T) {
		client, auth := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "jwt expired"})
		}))

		_, err := client.MyBookings(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.True(t, IsAuthError(err))
		assert.Equal(t, 1, auth.expired)

		_, err = client.MyBookings(context.Background())
		assert.ErrorIs(t, err, session.ErrNoSession, "no request without a token")
		assert.True(t, IsAuthError(err))
	})

	t.Run("NotFound", func(t *testing.T) {
		client, auth := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))

		_, err := client.TripBookings(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.False(t, IsAuthError(err))
		assert.Equal(t, 0, auth.expired)
	})

	t.Run("ServerError", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "db down"})
		}))

		err := client.AcceptBooking(context.Background(), "b1", "k")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
		assert.Equal(t, "db down", apiErr.Message)
		assert.Contains(t, err.Error(), "bookings.accept")
	})

	t.Run("Transport", func(t *testing.T) {
		logger := zerolog.Nop()
		client := NewClient(config.APIConfig{BaseURL: "http://127.0.0.1:1"}, &fakeAuth{token: "t"}, &logger)
		_, err := client.MyBookings(context.Background())
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrNotFound))
	})
}

func TestReviewLookup(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantErr  error
		wantRate int
	}{
		{name: "Envelope", status: 200, body: `{"review":{"_id":"r1","trip":"t1","reviewee":"u1","rating":4,"comment":"nice"}}`, wantRate: 4},
		{name: "Bare", status: 200, body: `{"_id":"r1","trip":"t1","reviewee":"u1","rating":5}`, wantRate: 5},
		{name: "NullReview", status: 200, body: `{"review":null}`, wantErr: ErrNotFound},
		{name: "Status404", status: 404, body: `{"message":"Review not found"}`, wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/reviews/t1/u1", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			review, err := client.Review(context.Background(), "t1", "u1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, review)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRate, review.Rating)
		})
	}
}

func TestCreateReview(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/reviews", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))

		var in models.ReviewInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, models.ReviewInput{Trip: "t1", Reviewee: "u1", Rating: 5, Comment: "great host"}, in)

		writeJSON(w, http.StatusCreated, map[string]any{"review": map[string]any{"_id": "r9", "trip": "t1", "reviewee": "u1", "rating": 5}})
	}))

	review, err := client.CreateReview(context.Background(), models.ReviewInput{Trip: "t1", Reviewee: "u1", Rating: 5, Comment: "great host"})
	require.NoError(t, err)
	require.NotNil(t, review)
	assert.Equal(t, "r9", review.ID)
}

func TestOwnTrips_RedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/api/trips/getowntrips/", r.URL.Path)
		_, _ = w.Write([]byte(`[{"_id":"t1","description":"Spiti loop","start":{"dateTime":"2099-01-01"},"end":{"dateTime":"2099-01-09"}}]`))
	}))
	client.UseRedisCache(rdb, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		trips, err := client.OwnTrips(ctx)
		require.NoError(t, err)
		require.Len(t, trips, 1)
		assert.Equal(t, "Spiti loop", trips[0].Description)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Len(t, mr.Keys(), 1)
	assert.NotContains(t, mr.Keys()[0], "tok-123", "cache key must not leak the token")

	mr.FastForward(2 * time.Minute)
	_, err = client.OwnTrips(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRateLimiter(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"bookings":[]}`))
	}))
	logger := zerolog.Nop()
	limited := NewClient(config.APIConfig{BaseURL: client.baseURL, RateLimit: config.APIRateLimitConfig{RPS: 1000}}, &fakeAuth{token: "t"}, &logger)
	require.NotNil(t, limited.limiter)
	assert.Nil(t, client.limiter)

	_, err := limited.MyBookings(context.Background())
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = limited.MyBookings(ctx)
	assert.Error(t, err)
}

func TestSocketURL(t *testing.T) {
	logger := zerolog.Nop()
	client := NewClient(config.APIConfig{BaseURL: "https://yoketrip.in/"}, &fakeAuth{}, &logger)

	got, err := client.SocketURL("/socket.io", "a b")
	require.NoError(t, err)
	assert.Equal(t, "wss://yoketrip.in/socket.io/?EIO=4&token=a+b&transport=websocket", got)

	plain := NewClient(config.APIConfig{BaseURL: "http://localhost:5000"}, &fakeAuth{}, &logger)
	got, err = plain.SocketURL("socket.io", "t")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:5000/socket.io/?EIO=4&token=t&transport=websocket", got)
}
