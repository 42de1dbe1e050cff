package booking

import (
	"time"

	"yoketrip/internal/models"
)

// CanCancel gates the cancel affordance: confirmed, valid window and strictly
// more than window left before the trip starts. The backend enforces the rule
// on its own; this is only a UI gate.
func CanCancel(b models.Booking, now time.Time, window time.Duration) bool {
	if !b.IsConfirmed() {
		return false
	}
	w := WindowOf(b.Trip)
	if w.PhaseAt(now) != PhaseUpcoming {
		return false
	}
	return w.Start.Sub(now) > window
}
