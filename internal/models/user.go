package models

// UserSnapshot is the traveller data embedded in a booking at request time.
type UserSnapshot struct {
	ID             string `json:"_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}
