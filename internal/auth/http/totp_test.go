package http_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wastetrail/wastetrail/pkg/totpx"
)

func openPreLoginSession(t *testing.T, env *testEnv, email string) string {
	t.Helper()

	token, err := env.totpService().OpenPreLoginSession(context.Background(), email, 5*time.Minute)
	require.NoError(t, err)
	return token
}

func withPreLoginCookie(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "prelogin_session", Value: token})
	}
}

func TestTOTPEndpointSuccess(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	u := seedUser(t, env.store)
	token := openPreLoginSession(t, env, u.Email)

	codes, err := totpx.WindowCodes(testTOTPSeed, env.now)
	require.NoError(t, err)

	rec := doRequest(t, env.router, http.MethodPost, "/login/totp",
		url.Values{"totp": {codes.Current}}, withPreLoginCookie(token))

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	user, ok := payload["user"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "jean@example.com", user["email"])

	// The pre-login cookie is dropped along with the session.
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "prelogin_session" && c.MaxAge < 0 {
			cleared = true
		}
	}
	require.True(t, cleared)

	// The session is single-use.
	rec = doRequest(t, env.router, http.MethodPost, "/login/totp",
		url.Values{"totp": {codes.Current}}, withPreLoginCookie(token))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "TOTP_TIMEOUT_OR_MISSING_SESSION", decodeBody(t, rec)["error"])
}

func TestTOTPEndpointMissingSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	seedUser(t, env.store)

	rec := doRequest(t, env.router, http.MethodPost, "/login/totp",
		url.Values{"totp": {"123456"}}, nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	payload := decodeBody(t, rec)
	require.Equal(t, "TOTP_TIMEOUT_OR_MISSING_SESSION", payload["error"])
	require.NotContains(t, payload, "lockout")
}

func TestTOTPEndpointMissingCode(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	u := seedUser(t, env.store)
	token := openPreLoginSession(t, env, u.Email)

	rec := doRequest(t, env.router, http.MethodPost, "/login/totp",
		url.Values{}, withPreLoginCookie(token))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "MISSING_TOTP", decodeBody(t, rec)["error"])
}

func TestTOTPEndpointInvalidCodeReturnsLockout(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	u := seedUser(t, env.store)
	token := openPreLoginSession(t, env, u.Email)

	rec := doRequest(t, env.router, http.MethodPost, "/login/totp",
		url.Values{"totp": {"000000"}}, withPreLoginCookie(token))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	payload := decodeBody(t, rec)
	require.Equal(t, "INVALID_TOTP", payload["error"])

	lockout, ok := payload["lockout"].(string)
	require.True(t, ok)
	deadline, err := time.Parse(time.RFC3339, lockout)
	require.NoError(t, err)
	require.Equal(t, env.now.Add(5*time.Second), deadline)

	// A second attempt inside the lockout window is refused outright.
	rec = doRequest(t, env.router, http.MethodPost, "/login/totp",
		url.Values{"totp": {"000000"}}, withPreLoginCookie(token))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "TOTP_LOCKOUT", decodeBody(t, rec)["error"])
}
