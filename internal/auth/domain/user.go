package domain

import "time"

type User struct {
	ID              string
	Name            string
	Email           string
	Phone           string
	IsActive        bool
	TOTPSeed        *string // base32 encoded (nullable)
	TOTPFails       int
	TOTPLockedUntil *time.Time // nullable; progressive lockout deadline
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TOTPLocked reports whether the user's second factor is locked at now.
func (u User) TOTPLocked(now time.Time) bool {
	return u.TOTPLockedUntil != nil && now.Before(*u.TOTPLockedUntil)
}
