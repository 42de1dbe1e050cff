package domain

import (
	"context"
	"time"

	"yoketrip/internal/models"
)

// BookingAPI is the slice of the backend the booking board talks to.
type BookingAPI interface {
	TripBookings(ctx context.Context, tripID string) ([]models.Booking, error)
	MyBookings(ctx context.Context) ([]models.Booking, error)
	AcceptBooking(ctx context.Context, bookingID, idempotencyKey string) error
	RejectBooking(ctx context.Context, bookingID, idempotencyKey string) error
	CancelBooking(ctx context.Context, bookingID, idempotencyKey string) error
}

type TripAPI interface {
	OwnTrips(ctx context.Context) ([]models.Trip, error)
}

type ReviewAPI interface {
	Review(ctx context.Context, tripID, userID string) (*models.Review, error)
	CreateReview(ctx context.Context, input models.ReviewInput) (*models.Review, error)
}

// CachedReview is one cached lookup result. A nil Review means "no review yet".
type CachedReview struct {
	Review    *models.Review `json:"review,omitempty"`
	CheckedAt time.Time      `json:"checked_at"`
}

// ReviewCache keeps lookup results per (trip, user). Get returns nil, nil on a miss.
type ReviewCache interface {
	Get(ctx context.Context, key models.ReviewKey) (*CachedReview, error)
	Set(ctx context.Context, key models.ReviewKey, entry *CachedReview) error
	Delete(ctx context.Context, key models.ReviewKey) error
}

// TokenStore is the process-wide home of the auth token.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
	// Watch calls fn with the new token on every change until ctx is done.
	Watch(ctx context.Context, fn func(token string)) error
}

// Notifier renders user-facing feedback: toasts and the login redirect.
type Notifier interface {
	Success(msg string)
	Error(msg string)
	SessionExpired()
}
