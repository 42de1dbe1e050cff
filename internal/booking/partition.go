package booking

import (
	"fmt"
	"strings"
	"time"

	"yoketrip/internal/models"
)

// ExpiredPendingPolicy decides what happens to pending requests whose trip already ended.
type ExpiredPendingPolicy string

const (
	// ExpiredPendingDrop hides expired pending requests from every bucket.
	ExpiredPendingDrop ExpiredPendingPolicy = "drop"
	// ExpiredPendingExpose routes them to Buckets.Expired.
	ExpiredPendingExpose ExpiredPendingPolicy = "expose"
)

func ParseExpiredPendingPolicy(s string) (ExpiredPendingPolicy, error) {
	switch p := ExpiredPendingPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ExpiredPendingDrop, nil
	case ExpiredPendingDrop, ExpiredPendingExpose:
		return p, nil
	default:
		return "", fmt.Errorf("unknown expired pending policy %q", s)
	}
}

type Policy struct {
	ExpiredPending ExpiredPendingPolicy
}

// Buckets is the display partition of a booking list. Each bucket keeps API order.
type Buckets struct {
	Pending  []models.Booking
	Upcoming []models.Booking
	Ongoing  []models.Booking
	Past     []models.Booking
	// Expired holds pending requests for finished trips, only under ExpiredPendingExpose.
	Expired []models.Booking
	// Unknown holds live bookings whose trip is missing or has unparseable dates.
	Unknown []models.Booking
}

// Partition buckets bookings by status and by now against each trip window.
// Cancelled, rejected and unrecognised statuses land nowhere.
func Partition(bookings []models.Booking, now time.Time, policy Policy) Buckets {
	var b Buckets
	for _, bk := range bookings {
		if !bk.IsPending() && !bk.IsConfirmed() {
			continue
		}

		w := WindowOf(bk.Trip)
		if !w.Valid {
			b.Unknown = append(b.Unknown, bk)
			continue
		}

		if bk.IsPending() {
			if !w.End.Before(now) {
				b.Pending = append(b.Pending, bk)
			} else if policy.ExpiredPending == ExpiredPendingExpose {
				b.Expired = append(b.Expired, bk)
			}
			continue
		}

		switch w.PhaseAt(now) {
		case PhaseUpcoming:
			b.Upcoming = append(b.Upcoming, bk)
		case PhaseOngoing:
			b.Ongoing = append(b.Ongoing, bk)
		case PhasePast:
			b.Past = append(b.Past, bk)
		}
	}
	return b
}

// BucketIDs lists booking ids per bucket name.
type BucketIDs struct {
	Pending  []string `json:"pending"`
	Upcoming []string `json:"upcoming"`
	Ongoing  []string `json:"ongoing"`
	Past     []string `json:"past"`
	Expired  []string `json:"expired,omitempty"`
	Unknown  []string `json:"unknown,omitempty"`
}

func (b Buckets) IDs() BucketIDs {
	return BucketIDs{
		Pending:  ids(b.Pending),
		Upcoming: ids(b.Upcoming),
		Ongoing:  ids(b.Ongoing),
		Past:     ids(b.Past),
		Expired:  ids(b.Expired),
		Unknown:  ids(b.Unknown),
	}
}

func (b Buckets) Len() int {
	return len(b.Pending) + len(b.Upcoming) + len(b.Ongoing) + len(b.Past) + len(b.Expired) + len(b.Unknown)
}

// Find returns the booking with id from any bucket.
func (b Buckets) Find(id string) (models.Booking, bool) {
	for _, group := range [][]models.Booking{b.Pending, b.Upcoming, b.Ongoing, b.Past, b.Expired, b.Unknown} {
		for _, bk := range group {
			if bk.ID == id {
				return bk, true
			}
		}
	}
	return models.Booking{}, false
}

func ids(bookings []models.Booking) []string {
	out := make([]string, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, b.ID)
	}
	return out
}
