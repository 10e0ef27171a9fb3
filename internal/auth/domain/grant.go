package domain

import "time"

// Grant represents an issued authorization code waiting to be redeemed at
// the token endpoint. OAuth2 grants are flagged Used on redemption and kept
// for auditing; OIDC grants are deleted instead.
type Grant struct {
	ID            string
	UserID        string
	ApplicationID string
	CodeHash      string // deterministic fingerprint (base64url SHA-256)
	RedirectURI   string // the redirect URI the code was issued for
	OpenID        bool   // issued through the OIDC flow
	Scope         []string
	Nonce         string
	ExpiresIn     time.Duration
	Used          bool
	CreatedAt     time.Time
}

// ExpiresAt returns the instant the grant stops being redeemable.
func (g Grant) ExpiresAt() time.Time {
	return g.CreatedAt.Add(g.ExpiresIn)
}

// Expired reports whether the grant can no longer be redeemed at now.
func (g Grant) Expired(now time.Time) bool {
	return now.After(g.ExpiresAt())
}

// HasScope reports whether the grant's scope contains s.
func (g Grant) HasScope(s string) bool {
	for _, got := range g.Scope {
		if got == s {
			return true
		}
	}
	return false
}
