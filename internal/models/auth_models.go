package models

import "time"

// AdminUser is a staff account allowed to sign in to the review panel.
// Signing in does not by itself grant access; the email must also be on the admin allowlist.
type AdminUser struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FullName     *string   `json:"full_name,omitempty" db:"full_name"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
