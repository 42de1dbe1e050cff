package models

type TripPoint struct {
	Location string `json:"location"`
	DateTime string `json:"dateTime"`
}

// Trip is a host-authored itinerary. DateTime values stay raw; they are parsed
// only at the booking window boundary.
type Trip struct {
	ID          string      `json:"_id"`
	Start       TripPoint   `json:"start"`
	End         TripPoint   `json:"end"`
	Stops       []TripPoint `json:"stops,omitempty"`
	Budget      float64     `json:"budget"`
	Images      []string    `json:"images,omitempty"`
	Description string      `json:"description"`
	Host        string      `json:"host,omitempty"`
}
