package models

import "time"

// User represents an application account stored in the users table. The
// session core treats it as read-mostly; the only write paths are
// registration and the opportunistic password-hash upgrade on login.
type User struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
