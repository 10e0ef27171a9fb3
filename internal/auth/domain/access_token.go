package domain

import "time"

// AccessToken models a stored opaque access token record.
type AccessToken struct {
	ID            string
	UserID        string
	ApplicationID string
	TokenHash     string // deterministic fingerprint (base64url SHA-256)
	LastUsed      *time.Time
	CreatedAt     time.Time
}
