// Package model defines the data structures shared across the application.
package model

import "time"

// Role values stored in the users table.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account.
//
// Username and email are unique case-insensitively. The canonical casing the
// user typed is kept in Username/Email; lowercase shadow columns
// (username_lower, email_lower) carry the UNIQUE constraints in the database
// and are always derivable, so the struct doesn't hold them.
//
// PasswordHash is the bcrypt hash of the password. The `json:"-"` tag makes
// it impossible to leak through any JSON response, no matter which handler
// serializes a User.
type User struct {
	ID           string    `json:"id"         db:"id"`
	Username     string    `json:"username"   db:"username"`
	Email        string    `json:"email"      db:"email"`
	PasswordHash string    `json:"-"          db:"password_hash"`
	Role         string    `json:"role"       db:"role"`
	IsVerified   bool      `json:"isVerified" db:"is_verified"`
	CreatedAt    time.Time `json:"createdAt"  db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt"  db:"updated_at"`
}
