package booking

import (
	"strings"
	"time"

	"yoketrip/internal/models"
)

// TripTime is the tagged result of parsing a trip timestamp.
type TripTime struct {
	Time  time.Time
	Valid bool
}

var tripTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTripTime is the only place trip timestamps are parsed. Values without
// a zone are read as UTC.
func ParseTripTime(raw string) TripTime {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TripTime{}
	}
	for _, layout := range tripTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return TripTime{Time: t, Valid: true}
		}
	}
	return TripTime{}
}

// Window is a trip's temporal extent. Start and End are meaningful only when Valid.
type Window struct {
	Start time.Time
	End   time.Time
	Valid bool
}

// WindowOf returns an invalid window for a nil trip or any unparseable bound.
func WindowOf(trip *models.Trip) Window {
	if trip == nil {
		return Window{}
	}
	start := ParseTripTime(trip.Start.DateTime)
	end := ParseTripTime(trip.End.DateTime)
	if !start.Valid || !end.Valid {
		return Window{}
	}
	return Window{Start: start.Time, End: end.Time, Valid: true}
}

// Phase is where now sits relative to a valid window.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseUpcoming
	PhaseOngoing
	PhasePast
)

func (p Phase) String() string {
	switch p {
	case PhaseUpcoming:
		return "upcoming"
	case PhaseOngoing:
		return "ongoing"
	case PhasePast:
		return "past"
	default:
		return "unknown"
	}
}

func (w Window) PhaseAt(now time.Time) Phase {
	switch {
	case !w.Valid:
		return PhaseUnknown
	case w.Start.After(now):
		return PhaseUpcoming
	case w.End.Before(now):
		return PhasePast
	default:
		return PhaseOngoing
	}
}
