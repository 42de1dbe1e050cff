package models

import "time"

const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// Realtime invalidation events pushed by the backend socket.
const (
	EventBookingAccepted       = "booking_accepted"
	EventBookingRejected       = "booking_rejected"
	EventBookingCancelled      = "booking_cancelled"
	EventBookingCancelledAdmin = "booking_cancelled_admin"
)

// InvalidationEvents lists every socket event that forces a booking refetch.
var InvalidationEvents = []string{
	EventBookingAccepted,
	EventBookingRejected,
	EventBookingCancelled,
	EventBookingCancelledAdmin,
}

const (
	// DefaultBaseURL is the YokeTrip backend.
	DefaultBaseURL = "https://yoketrip.in"

	// DefaultSocketPath is the Socket.IO mount path on the backend.
	DefaultSocketPath = "/socket.io"

	// AuthTokenKey is the store key holding the session token.
	AuthTokenKey = "auth_token"

	// DefaultCancelWindow is the minimum lead time before trip start for a cancel.
	DefaultCancelWindow = 12 * time.Hour

	// DefaultRequestTimeout bounds every backend HTTP call.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultReviewCacheTTL keeps review lookups for roughly one session.
	DefaultReviewCacheTTL = 12 * time.Hour

	MinRating = 1
	MaxRating = 5
)
