package domain

import "time"

// PreLoginSession tracks a user who has passed the first authentication
// factor and still owes a TOTP code.
type PreLoginSession struct {
	Token     string // opaque, carried in a cookie
	UserEmail string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is no longer usable at now.
func (s PreLoginSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
