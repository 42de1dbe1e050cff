package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBooking_UnmarshalTrip(t *testing.T) {
	t.Run("EmbeddedTrip", func(t *testing.T) {
		raw := `{"_id":"b1","status":"pending","numPeople":2,"totalAmount":1500.5,
			"trip":{"_id":"t1","start":{"location":"Pune","dateTime":"2099-01-01T10:00:00.000Z"},"end":{"location":"Goa","dateTime":"2099-01-03T10:00:00.000Z"}},
			"user":{"_id":"u1","name":"Asha","email":"asha@example.com"}}`
		var b Booking
		require.NoError(t, json.Unmarshal([]byte(raw), &b))
		assert.Equal(t, "b1", b.ID)
		assert.Equal(t, 2, b.NumPeople)
		assert.Equal(t, 1500.5, b.TotalAmount)
		require.NotNil(t, b.Trip)
		assert.Equal(t, "t1", b.TripID())
		assert.Equal(t, "Goa", b.Trip.End.Location)
		assert.Equal(t, "u1", b.User.ID)
	})

	t.Run("BareTripID", func(t *testing.T) {
		var b Booking
		require.NoError(t, json.Unmarshal([]byte(`{"_id":"b2","status":"confirmed","trip":"t9"}`), &b))
		assert.Nil(t, b.Trip)
		assert.Equal(t, "", b.TripID())
		assert.True(t, b.IsConfirmed())
	})

	t.Run("NullTrip", func(t *testing.T) {
		var b Booking
		require.NoError(t, json.Unmarshal([]byte(`{"_id":"b3","status":"accepted","trip":null}`), &b))
		assert.Nil(t, b.Trip)
		assert.True(t, b.IsConfirmed())
	})

	t.Run("MalformedTrip", func(t *testing.T) {
		var b Booking
		err := json.Unmarshal([]byte(`{"_id":"b4","trip":{"start":42}}`), &b)
		assert.Error(t, err)
	})
}

func TestBooking_StatusHelpers(t *testing.T) {
	assert.True(t, (&Booking{Status: StatusPending}).IsPending())
	assert.False(t, (&Booking{Status: StatusCancelled}).IsConfirmed())
	assert.False(t, (&Booking{Status: StatusRejected}).IsConfirmed())
}

func TestReviewKeyAndRating(t *testing.T) {
	assert.Equal(t, "t1:u1", ReviewKey{TripID: "t1", UserID: "u1"}.String())
	assert.False(t, ValidRating(0))
	assert.True(t, ValidRating(1))
	assert.True(t, ValidRating(5))
	assert.False(t, ValidRating(6))
}

func TestReview_UnmarshalCreatedAt(t *testing.T) {
	for _, createdAt := range []string{`""`, `"yesterday"`, `"2026-03-01T09:30:00.000Z"`} {
		var r Review
		raw := `{"_id":"r1","trip":"t1","reviewee":"u1","rating":4,"createdAt":` + createdAt + `}`
		require.NoError(t, json.Unmarshal([]byte(raw), &r), createdAt)
		assert.Equal(t, 4, r.Rating)
	}
}
