package jwtx_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/wastetrail/wastetrail/pkg/jwtx"
)

func newTestSigner(t *testing.T) (jwtx.Signer, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	signer, err := jwtx.NewSignerRS256("test-key", pemKey)
	require.NoError(t, err)
	require.NoError(t, signer.Validate())
	return signer, key
}

func TestSignerRejectsBadPEM(t *testing.T) {
	t.Parallel()

	_, err := jwtx.NewSignerRS256("k", []byte("not a pem"))
	require.Error(t, err)
}

func TestSessionTokenRoundTrip(t *testing.T) {
	t.Parallel()

	signer, key := newTestSigner(t)

	now := time.Now().UTC()
	claims := jwtx.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://auth.example.com",
			Subject:   "u123",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}

	tokenStr, err := signer.Sign(claims)
	require.NoError(t, err)

	verifier := jwtx.NewVerifierRS256(&key.PublicKey, "https://auth.example.com")
	got, err := verifier.Verify(tokenStr)
	require.NoError(t, err)
	require.Equal(t, "u123", got.Subject)
}

func TestVerifyRejectsIssuerMismatch(t *testing.T) {
	t.Parallel()

	signer, key := newTestSigner(t)

	now := time.Now().UTC()
	tokenStr, err := signer.Sign(jwtx.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://other.example.com",
			Subject:   "u123",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	require.NoError(t, err)

	verifier := jwtx.NewVerifierRS256(&key.PublicKey, "https://auth.example.com")
	_, err = verifier.Verify(tokenStr)
	require.ErrorIs(t, err, jwtx.ErrIssuer)
}

func TestVerifyRejectsExpired(t *testing.T) {
	t.Parallel()

	signer, key := newTestSigner(t)

	tokenStr, err := signer.Sign(jwtx.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u123",
			ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(-time.Minute)),
		},
	})
	require.NoError(t, err)

	verifier := jwtx.NewVerifierRS256(&key.PublicKey, "")
	_, err = verifier.Verify(tokenStr)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	t.Parallel()

	signer, _ := newTestSigner(t)
	_, otherKey := newTestSigner(t)

	tokenStr, err := signer.Sign(jwtx.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u123",
			ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(time.Hour)),
		},
	})
	require.NoError(t, err)

	verifier := jwtx.NewVerifierRS256(&otherKey.PublicKey, "")
	_, err = verifier.Verify(tokenStr)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)
}

func TestIDTokenClaims(t *testing.T) {
	t.Parallel()

	signer, key := newTestSigner(t)

	now := time.Now().UTC()
	claims := jwtx.NewIDTokenClaims("https://auth.example.com", "u123", "app1", time.Hour, now)
	require.NotEmpty(t, claims.ID)
	require.Empty(t, claims.Nonce)
	require.Equal(t, jwt.ClaimStrings{"app1"}, claims.Audience)

	verified := true
	claims.Email = "user@example.com"
	claims.EmailVerified = &verified
	claims.Companies = []jwtx.CompanyClaim{
		{Role: "admin", Siret: "12345678900011", Name: "Acme", Verified: true},
	}

	tokenStr, err := signer.Sign(claims)
	require.NoError(t, err)

	// Decode back with the raw library to inspect the custom fields.
	parsed := jwtx.IDTokenClaims{}
	_, err = jwt.ParseWithClaims(tokenStr, &parsed, func(t *jwt.Token) (any, error) {
		return &key.PublicKey, nil
	})
	require.NoError(t, err)
	require.Equal(t, "u123", parsed.Subject)
	require.Equal(t, "user@example.com", parsed.Email)
	require.NotNil(t, parsed.EmailVerified)
	require.True(t, *parsed.EmailVerified)
	require.Len(t, parsed.Companies, 1)
	require.Equal(t, "admin", parsed.Companies[0].Role)
}

func TestPublicJWK(t *testing.T) {
	t.Parallel()

	signer, _ := newTestSigner(t)

	jwk := signer.PublicJWK()
	require.Equal(t, "RSA", jwk.Kty)
	require.Equal(t, "RS256", jwk.Alg)
	require.Equal(t, "test-key", jwk.Kid)
	require.NotEmpty(t, jwk.N)
	require.NotEmpty(t, jwk.E)
}

func TestNonceUniqueness(t *testing.T) {
	t.Parallel()

	require.NotEqual(t, jwtx.NewNonce(), jwtx.NewNonce())
}
