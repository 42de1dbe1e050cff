package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"yoketrip/internal/api"
	"yoketrip/internal/booking"
	"yoketrip/internal/domain"
	"yoketrip/internal/events"
	"yoketrip/internal/metrics"
	"yoketrip/internal/models"

	"github.com/rs/zerolog"
)

var (
	ErrActionInFlight   = errors.New("action already in progress")
	ErrCancelNotAllowed = errors.New("booking can no longer be cancelled")
	ErrUnknownBooking   = errors.New("booking is not on the board")
)

const (
	actionAccept = "accept"
	actionReject = "reject"
	actionCancel = "cancel"
)

// Refresh reasons that do not come from the event bus.
const (
	ReasonMount  = "mount"
	ReasonRetry  = "retry"
	reasonAction = "action"
)

// Expirer ends the session when the backend no longer accepts the token.
type Expirer interface {
	Expire(ctx context.Context)
}

// Scope selects which booking list a board shows.
type Scope struct {
	TripID string
}

// TripScope is the host's view of the requests for one trip.
func TripScope(tripID string) Scope { return Scope{TripID: tripID} }

// AllScope is the traveller's own bookings across trips.
func AllScope() Scope { return Scope{} }

func (s Scope) String() string {
	if s.TripID == "" {
		return "all"
	}
	return "trip:" + s.TripID
}

// Snapshot is what the screen renders. Err is set when the last load failed;
// Buckets then still hold the last good list.
type Snapshot struct {
	Buckets   booking.Buckets
	FetchedAt time.Time
	Err       error
}

type BoardOptions struct {
	Scope        Scope
	Policy       booking.Policy
	CancelWindow time.Duration
}

// Board is one mounted booking screen: it loads and partitions the list,
// dispatches accept/reject/cancel and refetches on invalidation.
type Board struct {
	api      domain.BookingAPI
	opts     BoardOptions
	notifier domain.Notifier
	auth     Expirer
	logger   *zerolog.Logger
	now      func() time.Time
	newKey   func() string

	mu          sync.Mutex
	snapshot    Snapshot
	seq         uint64
	applied     uint64
	inFlight    map[string]bool
	subscribers []func(Snapshot)

	queueMu sync.Mutex
	queue   []string
	wake    chan struct{}
}

func NewBoard(bookingAPI domain.BookingAPI, opts BoardOptions, notifier domain.Notifier, auth Expirer, logger *zerolog.Logger) *Board {
	if opts.CancelWindow <= 0 {
		opts.CancelWindow = models.DefaultCancelWindow
	}
	return &Board{
		api:      bookingAPI,
		opts:     opts,
		notifier: notifier,
		auth:     auth,
		logger:   logger,
		now:      time.Now,
		newKey:   api.NewIdempotencyKey,
		inFlight: make(map[string]bool),
		wake:     make(chan struct{}, 1),
	}
}

func (b *Board) Scope() Scope {
	return b.opts.Scope
}

func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot
}

// Subscribe registers fn to run after every applied refresh.
func (b *Board) Subscribe(fn func(Snapshot)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, fn)
}

// Listen routes invalidation and reconnect events from bus to the board.
func (b *Board) Listen(bus *events.EventBus) {
	bus.SubscribeAll(models.InvalidationEvents, b.Invalidate)
	bus.Subscribe(events.EventReconnected, b.Invalidate)
}

// Invalidate queues one refresh for Run. It never blocks the publisher.
func (b *Board) Invalidate(event *events.Event) error {
	b.queueMu.Lock()
	b.queue = append(b.queue, event.Type)
	b.queueMu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
	return nil
}

func (b *Board) dequeue() (string, bool) {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	if len(b.queue) == 0 {
		return "", false
	}
	reason := b.queue[0]
	b.queue = b.queue[1:]
	return reason, true
}

// Run loads the board and then performs one refresh per queued
// invalidation until ctx is done.
func (b *Board) Run(ctx context.Context) error {
	b.logger.Info().Str("scope", b.opts.Scope.String()).Msg("booking board mounted")
	_ = b.Refresh(ctx, ReasonMount)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Str("scope", b.opts.Scope.String()).Msg("booking board unmounted")
			return nil
		case <-b.wake:
		}

		for {
			reason, ok := b.dequeue()
			if !ok {
				break
			}
			if ctx.Err() != nil {
				return nil
			}
			_ = b.Refresh(ctx, reason)
		}
	}
}

// Refresh fetches the list for the board's scope and applies it unless a
// newer refresh has already been applied.
func (b *Board) Refresh(ctx context.Context, reason string) error {
	b.mu.Lock()
	b.seq++
	seq := b.seq
	b.mu.Unlock()

	metrics.IncRefresh(reason)
	list, err := b.fetch(ctx)
	now := b.now()

	b.mu.Lock()
	if seq < b.applied {
		b.mu.Unlock()
		b.logger.Debug().Uint64("seq", seq).Str("reason", reason).Msg("drop stale booking list")
		return nil
	}
	b.applied = seq
	if err != nil {
		b.snapshot.Err = err
	} else {
		b.snapshot = Snapshot{
			Buckets:   booking.Partition(list, now, b.opts.Policy),
			FetchedAt: now,
		}
	}
	snap := b.snapshot
	subscribers := append([]func(Snapshot){}, b.subscribers...)
	b.mu.Unlock()

	if err != nil {
		if ctx.Err() == nil {
			b.logger.Error().Err(err).Str("reason", reason).Str("scope", b.opts.Scope.String()).Msg("failed to load bookings")
		}
		b.handleAuth(ctx, err)
	} else {
		b.logger.Debug().Str("reason", reason).Int("bookings", snap.Buckets.Len()).Msg("booking list refreshed")
	}

	for _, fn := range subscribers {
		fn(snap)
	}
	if err != nil {
		return fmt.Errorf("load bookings: %w", err)
	}
	return nil
}

func (b *Board) fetch(ctx context.Context) ([]models.Booking, error) {
	if b.opts.Scope.TripID != "" {
		return b.api.TripBookings(ctx, b.opts.Scope.TripID)
	}
	return b.api.MyBookings(ctx)
}

// Accept approves a pending request.
func (b *Board) Accept(ctx context.Context, bookingID string) error {
	return b.dispatch(ctx, actionAccept, bookingID, b.api.AcceptBooking,
		"Booking accepted", "Failed to accept booking")
}

// Reject declines a pending request.
func (b *Board) Reject(ctx context.Context, bookingID string) error {
	return b.dispatch(ctx, actionReject, bookingID, b.api.RejectBooking,
		"Booking rejected", "Failed to reject booking")
}

// Cancel cancels a confirmed booking that starts later than the cancel window.
func (b *Board) Cancel(ctx context.Context, bookingID string) error {
	return b.dispatch(ctx, actionCancel, bookingID, b.api.CancelBooking,
		"Booking cancelled", "Failed to cancel booking")
}

// CanCancel reports whether the cancel control should be offered.
func (b *Board) CanCancel(bookingID string) bool {
	b.mu.Lock()
	bk, ok := b.snapshot.Buckets.Find(bookingID)
	b.mu.Unlock()
	return ok && booking.CanCancel(bk, b.now(), b.opts.CancelWindow)
}

// InFlight reports whether an action on the booking is pending; the control
// stays disabled meanwhile.
func (b *Board) InFlight(bookingID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inFlight[bookingID]
}

type actionFunc func(ctx context.Context, bookingID, idempotencyKey string) error

func (b *Board) dispatch(ctx context.Context, action, bookingID string, call actionFunc, okMsg, failMsg string) error {
	if err := b.begin(action, bookingID); err != nil {
		metrics.IncAction(action, "refused")
		return err
	}
	defer b.finish(bookingID)

	log := b.logger.With().Str("action", action).Str("booking_id", bookingID).Logger()

	if err := call(ctx, bookingID, b.newKey()); err != nil {
		metrics.IncAction(action, "error")
		if b.handleAuth(ctx, err) {
			return err
		}
		log.Error().Err(err).Msg("booking action failed")
		b.notifier.Error(failMsg)
		return fmt.Errorf("%s booking %s: %w", action, bookingID, err)
	}

	metrics.IncAction(action, "ok")
	log.Info().Msg("booking action done")
	_ = b.Refresh(ctx, reasonAction+"_"+action)
	b.notifier.Success(okMsg)
	return nil
}

func (b *Board) begin(action, bookingID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.inFlight[bookingID] {
		return ErrActionInFlight
	}
	if action == actionCancel {
		bk, ok := b.snapshot.Buckets.Find(bookingID)
		if !ok {
			return ErrUnknownBooking
		}
		if !booking.CanCancel(bk, b.now(), b.opts.CancelWindow) {
			return ErrCancelNotAllowed
		}
	}
	b.inFlight[bookingID] = true
	return nil
}

func (b *Board) finish(bookingID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.inFlight, bookingID)
}

// handleAuth expires the session on auth failures and reports whether it did.
func (b *Board) handleAuth(ctx context.Context, err error) bool {
	if !api.IsAuthError(err) {
		return false
	}
	if b.auth != nil {
		b.auth.Expire(ctx)
	} else {
		b.notifier.SessionExpired()
	}
	return true
}
