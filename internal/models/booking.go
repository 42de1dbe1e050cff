package models

import (
	"bytes"
	"encoding/json"
)

type Booking struct {
	ID          string       `json:"_id"`
	Status      string       `json:"status"` // pending, accepted, confirmed, rejected, cancelled
	Trip        *Trip        `json:"trip"`
	User        UserSnapshot `json:"user"`
	NumPeople   int          `json:"numPeople"`
	TotalAmount float64      `json:"totalAmount"`
	BookingDate string       `json:"bookingDate"`
}

// IsConfirmed reports whether the host accepted the booking. The backend
// uses "accepted" and "confirmed" interchangeably.
func (b *Booking) IsConfirmed() bool {
	return b.Status == StatusConfirmed || b.Status == StatusAccepted
}

func (b *Booking) IsPending() bool {
	return b.Status == StatusPending
}

// TripID returns the id of the booked trip, or "" when the trip did not resolve.
func (b *Booking) TripID() string {
	if b.Trip == nil {
		return ""
	}
	return b.Trip.ID
}

// UnmarshalJSON accepts "trip" as an embedded object, a bare id or null.
// Anything but an object leaves Trip nil: the booking has no resolvable trip.
func (b *Booking) UnmarshalJSON(data []byte) error {
	type plain Booking
	var raw struct {
		plain
		Trip json.RawMessage `json:"trip"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = Booking(raw.plain)
	b.Trip = nil

	trimmed := bytes.TrimSpace(raw.Trip)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var trip Trip
	if err := json.Unmarshal(trimmed, &trip); err != nil {
		return err
	}
	b.Trip = &trip
	return nil
}

// BookingList is the envelope returned by the booking list endpoints.
type BookingList struct {
	Bookings []Booking `json:"bookings"`
}
