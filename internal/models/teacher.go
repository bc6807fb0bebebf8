package models

import "time"

// Teacher is the identity scope for an app instance. The ID is the
// 6-character teacher code shared with students.
type Teacher struct {
	ID              string     `db:"id" json:"id"`
	FirstName       string     `db:"first_name" json:"first_name"`
	LastName        string     `db:"last_name" json:"last_name"`
	School          string     `db:"school" json:"school"`
	Email           string     `db:"email" json:"email"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	FCMToken        *string    `db:"fcm_token" json:"fcm_token,omitempty"`
	LastTokenUpdate *time.Time `db:"last_token_update" json:"last_token_update,omitempty"`
}

// FullName joins first and last name for display.
func (t *Teacher) FullName() string {
	return t.FirstName + " " + t.LastName
}
