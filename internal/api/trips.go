package api

import (
	"context"
	"fmt"
	"net/http"

	"yoketrip/internal/models"
)

// OwnTrips lists the host's trips, served from Redis when caching is on.
func (c *Client) OwnTrips(ctx context.Context) ([]models.Trip, error) {
	token, err := c.auth.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("trips.own: %w", err)
	}
	cacheKey := userCacheKey("own_trips", token)

	var trips []models.Trip
	if c.readCache(ctx, cacheKey, &trips) {
		return trips, nil
	}

	err = c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/trips/getowntrips/",
		endpoint: "trips.own",
	}, &trips)
	if err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, trips)
	return trips, nil
}
