package domain

import "time"

// AuthorizeTransaction is a pending consent screen: the validated request
// parameters parked between the authorize call and the user's decision.
type AuthorizeTransaction struct {
	ID            string // short user-facing identifier
	UserID        string
	ApplicationID string
	RedirectURI   string
	OpenID        bool
	Scope         []string
	Nonce         string
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// Expired reports whether the transaction can no longer be decided at now.
func (t AuthorizeTransaction) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
