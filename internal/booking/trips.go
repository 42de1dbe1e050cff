package booking

import (
	"time"

	"yoketrip/internal/models"
)

// ActiveTrips keeps trips that have not ended yet. Trips with unparseable
// dates are excluded, same as bookings.
func ActiveTrips(trips []models.Trip, now time.Time) []models.Trip {
	out := make([]models.Trip, 0, len(trips))
	for i := range trips {
		w := WindowOf(&trips[i])
		if !w.Valid || w.End.Before(now) {
			continue
		}
		out = append(out, trips[i])
	}
	return out
}
