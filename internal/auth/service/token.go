package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/wastetrail/wastetrail/internal/auth/domain"
	"github.com/wastetrail/wastetrail/internal/auth/store"
	"github.com/wastetrail/wastetrail/pkg/cryptox"
	"github.com/wastetrail/wastetrail/pkg/idx"
	"github.com/wastetrail/wastetrail/pkg/jwtx"
	"github.com/wastetrail/wastetrail/pkg/slogx"
)

var (
	ErrInvalidClient        = errors.New("invalid_client")
	ErrInvalidCode          = errors.New("invalid_code")
	ErrRedirectMismatch     = errors.New("redirect_mismatch")
	ErrGrantClientMismatch  = errors.New("grant_client_mismatch")
	ErrGrantExpired         = errors.New("grant_expired")
	ErrUnsupportedGrantType = errors.New("unsupported_grant_type")
)

// TokenService redeems authorization codes. OAuth2 redemptions mint an
// opaque access token; OIDC redemptions mint a signed ID token and burn
// the grant.
type TokenService struct {
	Store  store.Store
	Signer jwtx.Signer
	Issuer string

	// IDTokenTTL is the lifetime of issued ID tokens.
	IDTokenTTL time.Duration
}

// ExchangeRequest captures a token endpoint call after client parsing.
type ExchangeRequest struct {
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	GrantType    string
	OpenID       bool
}

// TokenUser is the user summary returned with plain OAuth2 tokens.
type TokenUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ExchangeResponse is the token endpoint's success payload. OAuth2
// redemptions fill AccessToken/TokenType/User; OIDC fills IDToken and
// leaves AccessToken empty.
type ExchangeResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type,omitempty"`
	IDToken     string     `json:"id_token,omitempty"`
	User        *TokenUser `json:"user,omitempty"`
}

// Exchange validates and redeems an authorization code.
//
// Validation is ordered and first-failure-wins: unknown code, then redirect
// mismatch, then client mismatch, then expiry, then reuse. OIDC requests
// additionally reject any explicit grant_type other than authorization_code.
//
// Returns:
//   - (nil, ErrInvalidClient) when client authentication fails
//   - (nil, ErrInvalidCode) when no grant matches the code (or an OIDC
//     grant was already redeemed, since those rows are deleted)
//   - (nil, ErrRedirectMismatch) when redirect_uri differs from issuance
//   - (nil, ErrGrantClientMismatch) when the grant belongs to another client
//   - (nil, ErrGrantExpired) when the grant is past its TTL or, for OAuth2,
//     already consumed
//   - (nil, ErrUnsupportedGrantType) for OIDC calls with a foreign grant_type
func (s *TokenService) Exchange(ctx context.Context, req ExchangeRequest) (*ExchangeResponse, error) {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)

	app, err := s.Store.Applications().GetApplicationByID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidClient
		}
		return nil, err
	}

	if req.ClientSecret == "" || cryptox.VerifySecret(req.ClientSecret, app.SecretHash) != nil {
		l.Info("token: client authentication failed", slog.String("client_id", req.ClientID))
		return nil, ErrInvalidClient
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, ErrInvalidCode
	}
	codeHash := cryptox.FingerprintToken(code)

	var result *ExchangeResponse

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		grant, err := tx.Grants().GetGrantByCodeHash(ctx, codeHash)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidCode
			}
			return err
		}

		// A grant issued through one flow cannot be redeemed through the
		// other; the code simply does not exist there.
		if grant.OpenID != req.OpenID {
			return ErrInvalidCode
		}

		if grant.RedirectURI != req.RedirectURI {
			return ErrRedirectMismatch
		}
		if grant.ApplicationID != app.ID {
			return ErrGrantClientMismatch
		}
		if grant.Expired(now) {
			return ErrGrantExpired
		}
		if grant.Used {
			return ErrGrantExpired
		}
		if req.OpenID && req.GrantType != "" && req.GrantType != "authorization_code" {
			return ErrUnsupportedGrantType
		}

		user, err := tx.Users().GetUserByID(ctx, grant.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidCode
			}
			return err
		}

		if req.OpenID {
			idToken, err := s.buildIDToken(ctx, tx, grant, user, app, now)
			if err != nil {
				return err
			}

			// OIDC grants are burned by deletion; losing the race here
			// means someone else redeemed the code first.
			if err := tx.Grants().DeleteGrant(ctx, grant.ID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return ErrInvalidCode
				}
				return err
			}

			result = &ExchangeResponse{IDToken: idToken, AccessToken: ""}
			return nil
		}

		// Conditional update resolves concurrent redemptions to one winner.
		if err := tx.Grants().ConsumeGrant(ctx, grant.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrGrantExpired
			}
			return err
		}

		opaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return err
		}

		record := domain.AccessToken{
			ID:            idx.New().String(),
			UserID:        user.ID,
			ApplicationID: app.ID,
			TokenHash:     cryptox.FingerprintToken(opaque),
			CreatedAt:     now,
		}
		if err := tx.AccessTokens().CreateAccessToken(ctx, record); err != nil {
			return err
		}

		result = &ExchangeResponse{
			AccessToken: opaque,
			TokenType:   "Bearer",
			User:        &TokenUser{Name: user.Name, Email: user.Email},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// buildIDToken assembles the scope-gated claims and signs them.
func (s *TokenService) buildIDToken(
	ctx context.Context,
	tx store.Tx,
	grant domain.Grant,
	user domain.User,
	app domain.Application,
	now time.Time,
) (string, error) {
	ttl := s.IDTokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	claims := jwtx.NewIDTokenClaims(s.Issuer, user.ID, app.ID, ttl, now)

	// Echo the nonce the client bound to its authorization request; clients
	// that sent one verify it against the token. A random value fills in
	// when the request carried none.
	claims.Nonce = grant.Nonce
	if claims.Nonce == "" {
		claims.Nonce = jwtx.NewNonce()
	}

	if grant.HasScope("email") {
		verified := user.IsActive
		claims.Email = user.Email
		claims.EmailVerified = &verified
	}
	if grant.HasScope("profile") {
		claims.Name = user.Name
		claims.Phone = user.Phone
	}
	if grant.HasScope("companies") {
		memberships, err := tx.Companies().ListActiveMemberships(ctx, user.ID)
		if err != nil {
			return "", err
		}
		claims.Companies = make([]jwtx.CompanyClaim, 0, len(memberships))
		for _, m := range memberships {
			claims.Companies = append(claims.Companies, jwtx.CompanyClaim{
				Role:      m.Role,
				Siret:     m.Siret,
				VATNumber: m.VATNumber,
				Name:      m.Name,
				Verified:  m.Verified,
			})
		}
	}

	return s.Signer.Sign(claims)
}

// ResolveAccessToken resolves an opaque access token to its record and
// bumps last_used. Unknown tokens return store.ErrNotFound.
func (s *TokenService) ResolveAccessToken(ctx context.Context, opaque string) (domain.AccessToken, error) {
	hash := cryptox.FingerprintToken(opaque)
	tok, err := s.Store.AccessTokens().GetAccessTokenByHash(ctx, hash)
	if err != nil {
		return domain.AccessToken{}, err
	}
	if err := s.Store.AccessTokens().TouchAccessToken(ctx, tok.ID, time.Now().UTC()); err != nil {
		return domain.AccessToken{}, err
	}
	return tok, nil
}
