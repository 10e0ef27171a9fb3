package jwtx

import "errors"

// Verifier validates a session JWT and gives you back the claims if it's legit.
type Verifier interface {
	Verify(token string) (*SessionClaims, error)
}

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrInvalidSig = errors.New("jwtx: invalid signature")
	ErrIssuer     = errors.New("jwtx: issuer mismatch")
	ErrExpired    = errors.New("jwtx: token expired")
)
