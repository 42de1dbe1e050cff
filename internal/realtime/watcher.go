package realtime

import (
	"context"
	"errors"
	"fmt"

	"yoketrip/internal/events"
	"yoketrip/internal/worker"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// URLFunc builds the socket URL with the current session token.
type URLFunc func(ctx context.Context) (string, error)

// Watcher keeps one realtime channel alive for a mounted board. It publishes
// EventReconnected after every reconnect so the board can refetch whatever
// it missed while offline.
type Watcher struct {
	urlFor        URLFunc
	dialer        *websocket.Dialer
	bus           Publisher
	retry         worker.RetryPolicy
	onAuthFailure func(ctx context.Context)
	logger        *zerolog.Logger
}

func NewWatcher(urlFor URLFunc, bus Publisher, retry worker.RetryPolicy, logger *zerolog.Logger) *Watcher {
	return &Watcher{urlFor: urlFor, bus: bus, retry: retry, logger: logger}
}

// WithDialer overrides the websocket dialer.
func (w *Watcher) WithDialer(d *websocket.Dialer) *Watcher {
	w.dialer = d
	return w
}

// OnAuthFailure is called when the server rejects the token.
func (w *Watcher) OnAuthFailure(fn func(ctx context.Context)) *Watcher {
	w.onAuthFailure = fn
	return w
}

// Run blocks until ctx is done (returns nil), the server rejects the
// session, or the retry budget runs out.
func (w *Watcher) Run(ctx context.Context) error {
	everConnected := false
	attempt := 0

	for {
		url, err := w.urlFor(ctx)
		if err != nil {
			return fmt.Errorf("realtime: build socket url: %w", err)
		}

		connected := false
		client := NewClient(url, w.dialer, w.bus, w.logger)
		err = client.Run(ctx, func() {
			connected = true
			attempt = 0
			if everConnected {
				w.logger.Info().Msg("socket reconnected")
				w.bus.Publish(&events.Event{Type: events.EventReconnected})
			} else {
				w.logger.Info().Msg("socket connected")
				w.bus.Publish(&events.Event{Type: events.EventConnected})
			}
			everConnected = true
		})

		if ctx.Err() != nil {
			return nil
		}
		if connected {
			w.bus.Publish(&events.Event{Type: events.EventDisconnected})
		}
		if errors.Is(err, ErrConnectRejected) {
			w.logger.Warn().Err(err).Msg("socket rejected session")
			if w.onAuthFailure != nil {
				w.onAuthFailure(ctx)
			}
			return err
		}

		attempt++
		if w.retry.Exhausted(attempt) {
			return fmt.Errorf("realtime: giving up after %d retries: %w", attempt-1, err)
		}
		delay := w.retry.NextDelay(attempt)
		w.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("socket disconnected")
		if err := w.retry.Wait(ctx, attempt); err != nil {
			return nil
		}
	}
}
