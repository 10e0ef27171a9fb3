package jwtx

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RS256Verifier validates session JWTs signed using RS256 under a single
// public key.
type RS256Verifier struct {
	pub    *rsa.PublicKey
	issuer string
}

// NewVerifierRS256 creates a verifier for the given RSA public key. An empty
// issuer means "don't care".
func NewVerifierRS256(pub *rsa.PublicKey, issuer string) *RS256Verifier {
	return &RS256Verifier{pub: pub, issuer: issuer}
}

// VerifierForSigner builds a verifier from the signer's own public key, for
// deployments where one keypair covers both signing and session checks.
func VerifierForSigner(s Signer, issuer string) (Verifier, error) {
	holder, ok := s.(interface{ PublicKey() *rsa.PublicKey })
	if !ok {
		return nil, errors.New("jwtx: signer does not expose an RSA public key")
	}
	return NewVerifierRS256(holder.PublicKey(), issuer), nil
}

// Verify validates the JWT string and returns its parsed SessionClaims.
func (v *RS256Verifier) Verify(tokenStr string) (*SessionClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))

	token, err := parser.ParseWithClaims(tokenStr, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		return v.pub, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSig
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformed
		}
		return nil, fmt.Errorf("jwtx: parse or verify: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, errors.New("jwtx: invalid token claims")
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, ErrIssuer
	}
	if claims.ExpiresAt != nil && time.Now().UTC().After(claims.ExpiresAt.Time) {
		return nil, ErrExpired
	}

	return claims, nil
}
