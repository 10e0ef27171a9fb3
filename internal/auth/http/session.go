package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/wastetrail/wastetrail/pkg/jwtx"
)

const (
	// sessionCookieName carries the platform session JWT for browser flows.
	sessionCookieName = "wastetrail_session"

	// preLoginCookieName carries the opaque pre-login token between the
	// password step and the TOTP step.
	preLoginCookieName = "prelogin_session"
)

// resolveSession extracts and verifies the session JWT from the Authorization
// header or the session cookie. It returns the authenticated user ID, or ""
// when no valid session is present.
func resolveSession(r *http.Request, verifier jwtx.Verifier, logger *slog.Logger) string {
	token := extractBearerToken(r)
	if token == "" {
		if cookie, err := r.Cookie(sessionCookieName); err == nil {
			token = cookie.Value
		}
	}

	if token == "" {
		return ""
	}

	claims, err := verifier.Verify(token)
	if err != nil {
		logger.Debug("failed to verify session token", "error", err)
		return ""
	}

	if claims.Subject == "" {
		logger.Warn("session token has no subject (user ID)")
		return ""
	}

	return claims.Subject
}

// extractBearerToken extracts the bearer token from the Authorization header.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
		return parts[1]
	}
	return ""
}
