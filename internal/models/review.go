package models

import "fmt"

// Review is a traveller review. CreatedAt stays raw; it is only displayed.
type Review struct {
	ID        string `json:"_id"`
	Trip      string `json:"trip"`
	Reviewee  string `json:"reviewee"`
	Reviewer  string `json:"reviewer,omitempty"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// ReviewInput is the body of POST /api/reviews.
type ReviewInput struct {
	Trip     string `json:"trip"`
	Reviewee string `json:"reviewee"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment,omitempty"`
}

// ReviewKey identifies at most one review from the client's point of view.
type ReviewKey struct {
	TripID string `json:"trip_id"`
	UserID string `json:"user_id"`
}

func (k ReviewKey) String() string {
	return fmt.Sprintf("%s:%s", k.TripID, k.UserID)
}

func ValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}
