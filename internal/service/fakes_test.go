package service

import (
	"context"
	"sync"
	"time"

	"yoketrip/internal/models"

	"github.com/rs/zerolog"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func trip(id string, start, end time.Time) *models.Trip {
	return &models.Trip{
		ID:    id,
		Start: models.TripPoint{DateTime: start.Format(time.RFC3339)},
		End:   models.TripPoint{DateTime: end.Format(time.RFC3339)},
	}
}

func bookingOf(id, status string, tr *models.Trip, userID string) models.Booking {
	return models.Booking{ID: id, Status: status, Trip: tr, User: models.UserSnapshot{ID: userID}}
}

type actionCall struct {
	Action    string
	BookingID string
	Key       string
}

type fakeBookingAPI struct {
	mu         sync.Mutex
	list       []models.Booking
	listErr    error
	fetches    int
	tripFetch  []string
	actionErr  error
	actions    []actionCall
	onFetch    func(n int) ([]models.Booking, error)
	actionGate chan struct{}
}

func (f *fakeBookingAPI) load(ctx context.Context) ([]models.Booking, error) {
	f.mu.Lock()
	f.fetches++
	n := f.fetches
	hook := f.onFetch
	list := append([]models.Booking(nil), f.list...)
	err := f.listErr
	f.mu.Unlock()

	if hook != nil {
		return hook(n)
	}
	return list, err
}

func (f *fakeBookingAPI) TripBookings(ctx context.Context, tripID string) ([]models.Booking, error) {
	f.mu.Lock()
	f.tripFetch = append(f.tripFetch, tripID)
	f.mu.Unlock()
	return f.load(ctx)
}

func (f *fakeBookingAPI) MyBookings(ctx context.Context) ([]models.Booking, error) {
	return f.load(ctx)
}

func (f *fakeBookingAPI) act(action, id, key string) error {
	f.mu.Lock()
	f.actions = append(f.actions, actionCall{Action: action, BookingID: id, Key: key})
	gate := f.actionGate
	err := f.actionErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeBookingAPI) AcceptBooking(ctx context.Context, id, key string) error {
	return f.act("accept", id, key)
}

func (f *fakeBookingAPI) RejectBooking(ctx context.Context, id, key string) error {
	return f.act("reject", id, key)
}

func (f *fakeBookingAPI) CancelBooking(ctx context.Context, id, key string) error {
	return f.act("cancel", id, key)
}

func (f *fakeBookingAPI) setList(list []models.Booking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = list
}

func (f *fakeBookingAPI) setListErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

func (f *fakeBookingAPI) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeBookingAPI) actionCalls() []actionCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]actionCall(nil), f.actions...)
}

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
	expired   int
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *recordingNotifier) SessionExpired() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired++
}

func (n *recordingNotifier) counts() (successes, errs, expired int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.successes), len(n.errors), n.expired
}

type fakeExpirer struct {
	mu    sync.Mutex
	calls int
}

func (e *fakeExpirer) Expire(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
}

func (e *fakeExpirer) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
