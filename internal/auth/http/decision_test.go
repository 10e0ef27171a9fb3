package http_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wastetrail/wastetrail/internal/auth/domain"
	"github.com/wastetrail/wastetrail/internal/auth/service"
)

func openTransaction(t *testing.T, env *testEnv, req service.OpenRequest) string {
	t.Helper()

	prompt, err := env.router.AuthorizeService.OpenTransaction(context.Background(), req)
	require.NoError(t, err)
	return prompt.TransactionID
}

func TestDecisionAllowRedirectsWithCode(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	u := seedUser(t, env.store)
	seedApplication(t, env.store, true)
	session := env.mintSession(t, u.ID)

	txID := openTransaction(t, env, service.OpenRequest{
		UserID:      u.ID,
		ClientID:    "app1",
		RedirectURI: testRedirect,
		OpenID:      true,
		Scope:       []string{"openid", "email"},
		Nonce:       "n-1",
	})

	rec := doRequest(t, env.router, http.MethodPost, "/oidc/authorize/decision",
		url.Values{"transaction_id": {txID}, "allow": {"1"}},
		func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+session)
		})

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "c.example", loc.Host)
	require.NotEmpty(t, loc.Query().Get("code"))
	require.Empty(t, loc.Query().Get("error"))
}

func TestDecisionCancelRedirectsWithAccessDenied(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	u := seedUser(t, env.store)
	seedApplication(t, env.store, false)
	session := env.mintSession(t, u.ID)

	txID := openTransaction(t, env, service.OpenRequest{
		UserID:      u.ID,
		ClientID:    "app1",
		RedirectURI: testRedirect,
	})

	rec := doRequest(t, env.router, http.MethodPost, "/oauth2/authorize/decision",
		url.Values{"transaction_id": {txID}, "cancel": {"1"}},
		func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+session)
		})

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "access_denied", loc.Query().Get("error"))
	require.Empty(t, loc.Query().Get("code"))

	// The transaction is burned either way.
	rec = doRequest(t, env.router, http.MethodPost, "/oauth2/authorize/decision",
		url.Values{"transaction_id": {txID}, "allow": {"1"}},
		func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+session)
		})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecisionScopeViolation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	u := seedUser(t, env.store)
	seedApplication(t, env.store, true)
	session := env.mintSession(t, u.ID)

	txID := openTransaction(t, env, service.OpenRequest{
		UserID:      u.ID,
		ClientID:    "app1",
		RedirectURI: testRedirect,
		OpenID:      true,
		Scope:       []string{"email", "profile"}, // no openid
	})

	rec := doRequest(t, env.router, http.MethodPost, "/oidc/authorize/decision",
		url.Values{"transaction_id": {txID}, "allow": {"1"}},
		func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+session)
		})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeBody(t, rec)
	require.Equal(t, "invalid_scope", payload["error"])
	require.Equal(t, "scope must include openid", payload["error_description"])
}

func TestDecisionOpenIDDisabled(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	u := seedUser(t, env.store)
	seedApplication(t, env.store, false)
	session := env.mintSession(t, u.ID)

	// A pending OIDC transaction whose application lost its OpenID flag
	// after consent opened; the decision step re-checks and refuses.
	now := time.Now().UTC()
	tr := domain.AuthorizeTransaction{
		ID:            "stale-tx",
		UserID:        u.ID,
		ApplicationID: "app1",
		RedirectURI:   testRedirect,
		OpenID:        true,
		Scope:         []string{"openid"},
		ExpiresAt:     now.Add(5 * time.Minute),
		CreatedAt:     now,
	}
	require.NoError(t, env.store.Transactions().CreateTransaction(context.Background(), tr))

	rec := doRequest(t, env.router, http.MethodPost, "/oidc/authorize/decision",
		url.Values{"transaction_id": {tr.ID}, "allow": {"1"}},
		func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+session)
		})

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "unauthorized_client", decodeBody(t, rec)["error"])
}

func TestDecisionRequiresSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := doRequest(t, env.router, http.MethodPost, "/oauth2/authorize/decision",
		url.Values{"transaction_id": {"whatever"}, "allow": {"1"}}, nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "login_required", decodeBody(t, rec)["error"])
}

func TestDecisionUnknownTransaction(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	u := seedUser(t, env.store)
	session := env.mintSession(t, u.ID)

	rec := doRequest(t, env.router, http.MethodPost, "/oauth2/authorize/decision",
		url.Values{"transaction_id": {"deadbeef"}, "allow": {"1"}},
		func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+session)
		})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_request", decodeBody(t, rec)["error"])
}
