package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CompanyClaim is one entry of the "companies" ID-token claim: a company
// membership the user currently holds.
type CompanyClaim struct {
	Role      string `json:"role"`
	Siret     string `json:"siret"`
	VATNumber string `json:"vat_number"`
	Name      string `json:"name"`
	Verified  bool   `json:"verified"`
}

// IDTokenClaims are the claims carried by an OpenID Connect ID token.
// Profile, email and company fields are only populated when the grant's
// scope asked for them.
type IDTokenClaims struct {
	jwt.RegisteredClaims

	// Nonce echoes the value the client sent on the authorization request,
	// so relying parties can match the token to their request. The jti
	// registered claim carries the per-token random value instead.
	Nonce string `json:"nonce,omitempty"`

	/* "profile" scope */
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`

	/* "email" scope */
	Email         string `json:"email,omitempty"`
	EmailVerified *bool  `json:"email_verified,omitempty"`

	/* "companies" scope */
	Companies []CompanyClaim `json:"companies,omitempty"`
}

// NewIDTokenClaims builds the registered portion of an ID token, with a
// fresh random jti per token. The nonce and the scope-gated fields are
// filled in by the caller afterwards.
func NewIDTokenClaims(issuer, subject, audience string, ttl time.Duration, now time.Time) IDTokenClaims {
	return IDTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewNonce(),
		},
	}
}

// SessionClaims are the claims of a logged-in user's session token. The
// subject identifies the user.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// NewNonce returns a URL-safe random value for the "nonce" claim.
func NewNonce() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
