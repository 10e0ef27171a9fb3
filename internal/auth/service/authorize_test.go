package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wastetrail/wastetrail/internal/auth/domain"
	"github.com/wastetrail/wastetrail/internal/auth/service"
	"github.com/wastetrail/wastetrail/internal/auth/store"
	"github.com/wastetrail/wastetrail/internal/auth/store/drivers/sqlite"
	"github.com/wastetrail/wastetrail/pkg/cryptox"
	"github.com/wastetrail/wastetrail/pkg/idx"
)

const (
	testSecret   = "s3cret-app-password"
	testTOTPSeed = "JBSWY3DPEHPK3PXP"
	testRedirect = "https://c.example/cb"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedUser(t *testing.T, s store.Store) domain.User {
	t.Helper()

	now := time.Now().UTC()
	seed := testTOTPSeed
	u := domain.User{
		ID:        "u123",
		Name:      "Jean Dupont",
		Email:     "jean@example.com",
		Phone:     "+33600000000",
		IsActive:  true,
		TOTPSeed:  &seed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func seedApplication(t *testing.T, s store.Store, openID bool) domain.Application {
	t.Helper()

	hash, err := cryptox.HashSecret(testSecret)
	require.NoError(t, err)

	now := time.Now().UTC()
	a := domain.Application{
		ID:            "app1",
		Name:          "Example App",
		LogoURL:       "https://example.com/logo.png",
		SecretHash:    hash,
		RedirectURIs:  []string{testRedirect, "https://c.example/alt"},
		OpenIDEnabled: openID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, s.Applications().CreateApplication(context.Background(), a))
	return a
}

func newAuthorizeService(s store.Store) *service.AuthorizeService {
	return &service.AuthorizeService{
		Store:          s,
		OAuthCodeTTL:   600 * time.Second,
		OIDCCodeTTL:    60 * time.Second,
		TransactionTTL: 5 * time.Minute,
	}
}

func TestOpenTransaction(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	u := seedUser(t, s)
	seedApplication(t, s, true)
	svc := newAuthorizeService(s)
	ctx := context.Background()

	prompt, err := svc.OpenTransaction(ctx, service.OpenRequest{
		UserID:      u.ID,
		ClientID:    "app1",
		RedirectURI: testRedirect,
		OpenID:      true,
		Scope:       []string{"openid", "email"},
		Nonce:       "abc",
	})
	require.NoError(t, err)
	require.Len(t, prompt.TransactionID, 8)
	require.Equal(t, "Jean Dupont", prompt.User.Name)
	require.Equal(t, "Example App", prompt.Client.Name)
	require.Equal(t, "https://example.com/logo.png", prompt.Client.LogoURL)
	require.Equal(t, testRedirect, prompt.RedirectURI)

	tr, err := s.Transactions().GetTransaction(ctx, prompt.TransactionID)
	require.NoError(t, err)
	require.Equal(t, u.ID, tr.UserID)
	require.True(t, tr.OpenID)
	require.Equal(t, "abc", tr.Nonce)
}

func TestOpenTransactionRejections(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	u := seedUser(t, s)
	seedApplication(t, s, false)
	svc := newAuthorizeService(s)
	ctx := context.Background()

	tests := []struct {
		name string
		req  service.OpenRequest
		want error
	}{
		{
			name: "missing client id",
			req:  service.OpenRequest{UserID: u.ID, RedirectURI: testRedirect},
			want: service.ErrInvalidRequest,
		},
		{
			name: "missing redirect uri",
			req:  service.OpenRequest{UserID: u.ID, ClientID: "app1"},
			want: service.ErrInvalidRequest,
		},
		{
			name: "unknown client",
			req:  service.OpenRequest{UserID: u.ID, ClientID: "nope", RedirectURI: testRedirect},
			want: service.ErrInvalidClient,
		},
		{
			name: "unregistered redirect uri",
			req:  service.OpenRequest{UserID: u.ID, ClientID: "app1", RedirectURI: "https://evil.example/cb"},
			want: service.ErrInvalidRedirectURI,
		},
		{
			name: "unknown user",
			req:  service.OpenRequest{UserID: "ghost", ClientID: "app1", RedirectURI: testRedirect},
			want: service.ErrLoginRequired,
		},
		{
			name: "openid not enabled",
			req:  service.OpenRequest{UserID: u.ID, ClientID: "app1", RedirectURI: testRedirect, OpenID: true, Scope: []string{"openid"}},
			want: service.ErrOpenIDDisabled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.OpenTransaction(ctx, tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestApproveIssuesGrant(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	u := seedUser(t, s)
	seedApplication(t, s, true)
	svc := newAuthorizeService(s)
	ctx := context.Background()

	prompt, err := svc.OpenTransaction(ctx, service.OpenRequest{
		UserID:      u.ID,
		ClientID:    "app1",
		RedirectURI: testRedirect,
		OpenID:      true,
		Scope:       []string{"openid", "email"},
		Nonce:       "abc",
	})
	require.NoError(t, err)

	resp, err := svc.Approve(ctx, prompt.TransactionID, u.ID)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Code)
	require.Equal(t, testRedirect, resp.RedirectURI)

	grant, err := s.Grants().GetGrantByCodeHash(ctx, cryptox.FingerprintToken(resp.Code))
	require.NoError(t, err)
	require.True(t, grant.OpenID)
	require.Equal(t, 60*time.Second, grant.ExpiresIn)
	require.Equal(t, []string{"openid", "email"}, grant.Scope)
	require.Equal(t, "abc", grant.Nonce)
	require.False(t, grant.Used)

	// Transaction is single-use.
	_, err = svc.Approve(ctx, prompt.TransactionID, u.ID)
	require.ErrorIs(t, err, service.ErrInvalidTransaction)
}

func TestApproveOAuth2TTL(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	u := seedUser(t, s)
	seedApplication(t, s, false)
	svc := newAuthorizeService(s)
	ctx := context.Background()

	prompt, err := svc.OpenTransaction(ctx, service.OpenRequest{
		UserID:      u.ID,
		ClientID:    "app1",
		RedirectURI: testRedirect,
	})
	require.NoError(t, err)

	resp, err := svc.Approve(ctx, prompt.TransactionID, u.ID)
	require.NoError(t, err)

	grant, err := s.Grants().GetGrantByCodeHash(ctx, cryptox.FingerprintToken(resp.Code))
	require.NoError(t, err)
	require.False(t, grant.OpenID)
	require.Equal(t, 600*time.Second, grant.ExpiresIn)
}

func TestApproveScopeValidation(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	u := seedUser(t, s)
	seedApplication(t, s, true)
	svc := newAuthorizeService(s)
	ctx := context.Background()

	tests := []struct {
		name   string
		scope  []string
		reason string
	}{
		{"missing scope", nil, "scope is required"},
		{"no openid", []string{"email"}, "scope must include openid"},
		{"unknown entry", []string{"openid", "admin"}, `unknown scope "admin"`},
		{"duplicate entry", []string{"openid", "email", "email"}, `duplicate scope "email"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt, err := svc.OpenTransaction(ctx, service.OpenRequest{
				UserID:      u.ID,
				ClientID:    "app1",
				RedirectURI: testRedirect,
				OpenID:      true,
				Scope:       tt.scope,
			})
			require.NoError(t, err)

			_, err = svc.Approve(ctx, prompt.TransactionID, u.ID)
			var scopeErr *service.ScopeError
			require.ErrorAs(t, err, &scopeErr)
			require.Equal(t, tt.reason, scopeErr.Reason)
		})
	}
}

func TestApproveOpenIDDisabled(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	u := seedUser(t, s)
	seedApplication(t, s, false)
	svc := newAuthorizeService(s)
	ctx := context.Background()

	// A pending OIDC transaction for an application whose OpenID flag was
	// switched off after consent opened: the decision-time re-check must
	// still refuse it. Written directly since Authorize would reject it.
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
	require.NoError(t, s.Transactions().CreateTransaction(ctx, tr))

	_, err := svc.Approve(ctx, tr.ID, u.ID)
	require.ErrorIs(t, err, service.ErrOpenIDDisabled)
}

func TestApproveWrongUser(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	u := seedUser(t, s)
	seedApplication(t, s, false)
	svc := newAuthorizeService(s)
	ctx := context.Background()

	prompt, err := svc.OpenTransaction(ctx, service.OpenRequest{
		UserID:      u.ID,
		ClientID:    "app1",
		RedirectURI: testRedirect,
	})
	require.NoError(t, err)

	_, err = svc.Approve(ctx, prompt.TransactionID, idx.New().String())
	require.ErrorIs(t, err, service.ErrInvalidTransaction)
}

func TestDeny(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	u := seedUser(t, s)
	seedApplication(t, s, false)
	svc := newAuthorizeService(s)
	ctx := context.Background()

	prompt, err := svc.OpenTransaction(ctx, service.OpenRequest{
		UserID:      u.ID,
		ClientID:    "app1",
		RedirectURI: testRedirect,
	})
	require.NoError(t, err)

	redirect, err := svc.Deny(ctx, prompt.TransactionID, u.ID)
	require.NoError(t, err)
	require.Equal(t, testRedirect, redirect)

	// No grant was written, and the transaction is gone.
	_, err = svc.Deny(ctx, prompt.TransactionID, u.ID)
	require.ErrorIs(t, err, service.ErrInvalidTransaction)
}
