package api

import (
	"context"
	"net/http"
	"net/url"

	"yoketrip/internal/models"
)

// TripBookings lists the bookings of one trip (host view). The envelope may
// carry the trip itself; bookings that reference it by bare id get it back.
func (c *Client) TripBookings(ctx context.Context, tripID string) ([]models.Booking, error) {
	var resp struct {
		Bookings []models.Booking `json:"bookings"`
		Trip     *models.Trip     `json:"trip"`
	}
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/trips/" + url.PathEscape(tripID),
		endpoint: "trips.get",
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Trip != nil {
		for i := range resp.Bookings {
			if resp.Bookings[i].Trip == nil {
				resp.Bookings[i].Trip = resp.Trip
			}
		}
	}
	return resp.Bookings, nil
}

// MyBookings lists the traveller's bookings across all trips.
func (c *Client) MyBookings(ctx context.Context) ([]models.Booking, error) {
	var resp models.BookingList
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/trips/bookings/all",
		endpoint: "trips.bookings.all",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Bookings, nil
}

func (c *Client) AcceptBooking(ctx context.Context, bookingID, idempotencyKey string) error {
	return c.do(ctx, request{
		method:         http.MethodPost,
		path:           "/api/trips/bookings/accept/" + url.PathEscape(bookingID),
		endpoint:       "bookings.accept",
		idempotencyKey: idempotencyKey,
	}, nil)
}

func (c *Client) RejectBooking(ctx context.Context, bookingID, idempotencyKey string) error {
	return c.do(ctx, request{
		method:         http.MethodPost,
		path:           "/api/trips/bookings/reject/" + url.PathEscape(bookingID),
		endpoint:       "bookings.reject",
		idempotencyKey: idempotencyKey,
	}, nil)
}

func (c *Client) CancelBooking(ctx context.Context, bookingID, idempotencyKey string) error {
	return c.do(ctx, request{
		method:         http.MethodDelete,
		path:           "/api/trips/cancel/" + url.PathEscape(bookingID),
		endpoint:       "bookings.cancel",
		idempotencyKey: idempotencyKey,
	}, nil)
}
