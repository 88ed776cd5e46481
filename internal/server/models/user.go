// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account created on first Google login.
type User struct {
	ID        int64
	GoogleID  string
	Email     string
	UserName  string
	CreatedAt time.Time
}
