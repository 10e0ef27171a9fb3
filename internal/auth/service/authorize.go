package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wastetrail/wastetrail/internal/auth/domain"
	"github.com/wastetrail/wastetrail/internal/auth/store"
	"github.com/wastetrail/wastetrail/pkg/cryptox"
	"github.com/wastetrail/wastetrail/pkg/idx"
	"github.com/wastetrail/wastetrail/pkg/slogx"
)

var (
	ErrLoginRequired      = errors.New("login_required")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrInvalidRedirectURI = errors.New("invalid_redirect_uri")
	ErrInvalidTransaction = errors.New("invalid_transaction")
	ErrOpenIDDisabled     = errors.New("openid_disabled")
	ErrAccessDenied       = errors.New("access_denied")
)

// oidcScopes is the closed set of scopes an OIDC request may ask for.
var oidcScopes = map[string]struct{}{
	"openid":    {},
	"email":     {},
	"profile":   {},
	"companies": {},
}

// ScopeError describes exactly which scope rule a request broke, so the
// consent screen can tell the user something actionable.
type ScopeError struct {
	Reason string
}

func (e *ScopeError) Error() string { return "invalid_scope: " + e.Reason }

// AuthorizeService drives the consent flow: it validates an incoming
// authorization request into a pending transaction, then turns the user's
// decision into a redeemable grant.
type AuthorizeService struct {
	Store store.Store

	// OAuthCodeTTL is how long plain OAuth2 codes stay redeemable.
	OAuthCodeTTL time.Duration
	// OIDCCodeTTL is how long OIDC codes stay redeemable. Much shorter,
	// since OIDC clients redeem immediately.
	OIDCCodeTTL time.Duration
	// TransactionTTL is how long a consent screen may sit undecided.
	TransactionTTL time.Duration
}

// OpenRequest captures the validated inputs of an authorization request.
type OpenRequest struct {
	UserID      string
	ClientID    string
	RedirectURI string
	OpenID      bool
	Scope       []string
	Nonce       string
}

// ConsentPrompt is what the consent screen renders: who is asking, on
// behalf of which user, and where the browser goes afterwards.
type ConsentPrompt struct {
	TransactionID string        `json:"transactionID"`
	User          ConsentUser   `json:"user"`
	Client        ConsentClient `json:"client"`
	RedirectURI   string        `json:"redirectURI"`
}

type ConsentUser struct {
	Name string `json:"name"`
}

type ConsentClient struct {
	Name    string `json:"name"`
	LogoURL string `json:"logoUrl"`
}

// AuthorizeCodeResponse carries the issued code and where to send it.
type AuthorizeCodeResponse struct {
	Code        string
	RedirectURI string
}

// OpenTransaction validates an authorization request and parks it as a
// pending transaction for the consent screen.
//
// Returns:
//   - (nil, ErrInvalidRequest) when client_id or redirect_uri is missing
//   - (nil, ErrInvalidClient) when the application is unknown
//   - (nil, ErrInvalidRedirectURI) when the redirect URI is not registered
//   - (nil, ErrOpenIDDisabled) when an OIDC request targets an application
//     without OpenID enabled
func (s *AuthorizeService) OpenTransaction(ctx context.Context, req OpenRequest) (*ConsentPrompt, error) {
	log := slogx.FromContext(ctx)

	clientID := strings.TrimSpace(req.ClientID)
	redirectURI := strings.TrimSpace(req.RedirectURI)
	if clientID == "" || redirectURI == "" {
		return nil, ErrInvalidRequest
	}

	app, err := s.Store.Applications().GetApplicationByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("authorize: unknown client", "client_id", clientID)
			return nil, ErrInvalidClient
		}
		return nil, err
	}

	if !app.AllowsRedirectURI(redirectURI) {
		log.Warn("authorize: redirect uri not registered", "client_id", clientID, "redirect_uri", redirectURI)
		return nil, ErrInvalidRedirectURI
	}

	if req.OpenID && !app.OpenIDEnabled {
		log.Warn("authorize: openid not enabled", "client_id", clientID)
		return nil, ErrOpenIDDisabled
	}

	user, err := s.Store.Users().GetUserByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLoginRequired
		}
		return nil, err
	}

	now := time.Now().UTC()
	ttl := s.TransactionTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	tr := domain.AuthorizeTransaction{
		ID:            cryptox.MustGenerateToken(cryptox.TokenSize48),
		UserID:        user.ID,
		ApplicationID: app.ID,
		RedirectURI:   redirectURI,
		OpenID:        req.OpenID,
		Scope:         req.Scope,
		Nonce:         req.Nonce,
		ExpiresAt:     now.Add(ttl),
		CreatedAt:     now,
	}

	if err := s.Store.Transactions().CreateTransaction(ctx, tr); err != nil {
		return nil, err
	}

	return &ConsentPrompt{
		TransactionID: tr.ID,
		User:          ConsentUser{Name: user.Name},
		Client:        ConsentClient{Name: app.Name, LogoURL: app.LogoURL},
		RedirectURI:   redirectURI,
	}, nil
}

// Approve redeems a pending transaction into an authorization code grant.
//
// OIDC transactions additionally require the application to have OpenID
// enabled and a well-formed scope; both are checked here, at decision time,
// so a bad request never writes a grant.
//
// Returns:
//   - (nil, ErrInvalidTransaction) when the transaction is unknown, expired,
//     or belongs to another user
//   - (nil, ErrOpenIDDisabled) when an OIDC transaction targets an
//     application without OpenID enabled
//   - (nil, *ScopeError) when the OIDC scope breaks a validation rule
func (s *AuthorizeService) Approve(ctx context.Context, transactionID, userID string) (*AuthorizeCodeResponse, error) {
	now := time.Now().UTC()

	tr, err := s.Store.Transactions().GetTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidTransaction
		}
		return nil, err
	}
	if tr.Expired(now) || tr.UserID != userID {
		return nil, ErrInvalidTransaction
	}

	if tr.OpenID {
		app, err := s.Store.Applications().GetApplicationByID(ctx, tr.ApplicationID)
		if err != nil {
			return nil, err
		}
		if !app.OpenIDEnabled {
			return nil, ErrOpenIDDisabled
		}
		if err := validateOIDCScope(tr.Scope); err != nil {
			return nil, err
		}
	}

	code, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, err
	}

	ttl := s.OAuthCodeTTL
	if tr.OpenID {
		ttl = s.OIDCCodeTTL
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	grant := domain.Grant{
		ID:            idx.New().String(),
		UserID:        tr.UserID,
		ApplicationID: tr.ApplicationID,
		CodeHash:      cryptox.FingerprintToken(code),
		RedirectURI:   tr.RedirectURI,
		OpenID:        tr.OpenID,
		Scope:         tr.Scope,
		Nonce:         tr.Nonce,
		ExpiresIn:     ttl,
		CreatedAt:     now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Grants().CreateGrant(ctx, grant); err != nil {
			return err
		}
		return tx.Transactions().DeleteTransaction(ctx, tr.ID)
	})
	if err != nil {
		return nil, err
	}

	return &AuthorizeCodeResponse{
		Code:        code,
		RedirectURI: tr.RedirectURI,
	}, nil
}

// Deny discards a pending transaction and reports where to redirect the
// browser with the access_denied error.
func (s *AuthorizeService) Deny(ctx context.Context, transactionID, userID string) (string, error) {
	tr, err := s.Store.Transactions().GetTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidTransaction
		}
		return "", err
	}
	if tr.Expired(time.Now().UTC()) || tr.UserID != userID {
		return "", ErrInvalidTransaction
	}

	if err := s.Store.Transactions().DeleteTransaction(ctx, tr.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", err
	}
	return tr.RedirectURI, nil
}

// validateOIDCScope applies the scope rules in order and stops at the first
// violation.
func validateOIDCScope(scope []string) error {
	if len(scope) == 0 {
		return &ScopeError{Reason: "scope is required"}
	}

	hasOpenID := false
	for _, sc := range scope {
		if sc == "openid" {
			hasOpenID = true
			break
		}
	}
	if !hasOpenID {
		return &ScopeError{Reason: "scope must include openid"}
	}

	for _, sc := range scope {
		if _, ok := oidcScopes[sc]; !ok {
			return &ScopeError{Reason: fmt.Sprintf("unknown scope %q", sc)}
		}
	}

	seen := make(map[string]struct{}, len(scope))
	for _, sc := range scope {
		if _, ok := seen[sc]; ok {
			return &ScopeError{Reason: fmt.Sprintf("duplicate scope %q", sc)}
		}
		seen[sc] = struct{}{}
	}

	return nil
}
