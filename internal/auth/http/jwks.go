package http

import (
	"net/http"

	"github.com/wastetrail/wastetrail/pkg/httpx"
	"github.com/wastetrail/wastetrail/pkg/jwtx"
)

// JWKSHandler exposes the JSON Web Key Set for public key discovery, so
// relying parties can verify ID tokens offline.
func JWKSHandler(signer jwtx.Signer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, jwtx.JWKS{
			Keys: []jwtx.JWK{signer.PublicJWK()},
		})
	}
}
