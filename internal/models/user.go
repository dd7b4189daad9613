package models

// AdminMarker is the user record value that grants permission to register
// new users. Ordinary users have an empty record.
const AdminMarker = "admin"

// LoginChallenge is the pending login kept in a session until the emailed
// link is opened.
type LoginChallenge struct {
	Email     string `json:"email"`
	Challenge string `json:"challenge"`
}
