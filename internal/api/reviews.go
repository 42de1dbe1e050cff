package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"yoketrip/internal/models"
)

// Review fetches the review for (trip, user). A missing review is ErrNotFound,
// whether the backend says 404 or answers {"review": null}.
func (c *Client) Review(ctx context.Context, tripID, userID string) (*models.Review, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     fmt.Sprintf("/api/reviews/%s/%s", url.PathEscape(tripID), url.PathEscape(userID)),
		endpoint: "reviews.get",
	}, &raw)
	if err != nil {
		return nil, err
	}

	review, err := decodeReview(raw)
	if err != nil {
		return nil, fmt.Errorf("reviews.get: %w", err)
	}
	if review == nil {
		return nil, &APIError{Endpoint: "reviews.get", StatusCode: http.StatusNotFound}
	}
	return review, nil
}

// CreateReview posts a review. The backend may answer with the stored review
// or with an empty body; the latter yields nil.
func (c *Client) CreateReview(ctx context.Context, input models.ReviewInput) (*models.Review, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method:         http.MethodPost,
		path:           "/api/reviews",
		endpoint:       "reviews.create",
		body:           input,
		idempotencyKey: NewIdempotencyKey(),
	}, &raw)
	if err != nil {
		return nil, err
	}
	review, err := decodeReview(raw)
	if err != nil {
		return nil, fmt.Errorf("reviews.create: %w", err)
	}
	return review, nil
}

// decodeReview accepts {"review": {...}} or a bare review object.
func decodeReview(raw json.RawMessage) (*models.Review, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	if inner, ok := envelope["review"]; ok {
		return decodeReview(inner)
	}
	if _, ok := envelope["rating"]; !ok {
		return nil, nil
	}

	var review models.Review
	if err := json.Unmarshal(raw, &review); err != nil {
		return nil, err
	}
	return &review, nil
}
