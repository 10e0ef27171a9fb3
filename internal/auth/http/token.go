package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/wastetrail/wastetrail/internal/auth/service"
	"github.com/wastetrail/wastetrail/pkg/httpx"
	"github.com/wastetrail/wastetrail/pkg/oauthx"
	"github.com/wastetrail/wastetrail/pkg/slogx"
)

// TokenHandler serves the token endpoint: it authenticates the client and
// redeems an authorization code. Accepts application/x-www-form-urlencoded
// per RFC 6749; client credentials arrive via HTTP Basic or the form body.
// The same handler backs both the plain OAuth2 and the OIDC route; OpenID
// selects which.
type TokenHandler struct {
	TokenService *service.TokenService
	OpenID       bool
}

func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.TokenService == nil {
		oauthx.ErrServerError.WriteError(w)
		return
	}

	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		oauthx.ErrInvalidContentType.WriteError(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		oauthx.ErrInvalidFormBody.WriteError(w)
		return
	}

	ctx := r.Context()
	log := slogx.FromContext(ctx)

	clientID, clientSecret := clientCredentials(r)
	code := strings.TrimSpace(r.Form.Get("code"))
	redirectURI := strings.TrimSpace(r.Form.Get("redirect_uri"))

	if clientID == "" || code == "" || redirectURI == "" {
		oauthx.ErrInvalidRequest.WriteError(w)
		return
	}

	resp, err := h.TokenService.Exchange(ctx, service.ExchangeRequest{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Code:         code,
		RedirectURI:  redirectURI,
		GrantType:    strings.TrimSpace(r.Form.Get("grant_type")),
		OpenID:       h.OpenID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidClient):
			oauthx.ErrInvalidClient.WriteError(w)
		case errors.Is(err, service.ErrInvalidCode):
			oauthx.New(http.StatusForbidden, oauthx.ErrorCodeInvalidGrant, "Invalid code").WriteError(w)
		case errors.Is(err, service.ErrRedirectMismatch):
			oauthx.New(http.StatusForbidden, oauthx.ErrorCodeInvalidGrant, "Invalid redirect uri").WriteError(w)
		case errors.Is(err, service.ErrGrantClientMismatch):
			oauthx.New(http.StatusForbidden, oauthx.ErrorCodeInvalidGrant, "Invalid client id").WriteError(w)
		case errors.Is(err, service.ErrGrantExpired):
			oauthx.New(http.StatusForbidden, oauthx.ErrorCodeInvalidGrant, "Grant expired").WriteError(w)
		case errors.Is(err, service.ErrUnsupportedGrantType):
			oauthx.ErrUnsupportedGrantType.WriteError(w)
		default:
			log.Error("token exchange failed", "err", err)
			oauthx.ErrServerError.WriteError(w)
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// clientCredentials pulls client_id/client_secret from HTTP Basic auth,
// falling back to the form body. Basic auth wins when both are present.
func clientCredentials(r *http.Request) (string, string) {
	if id, secret, ok := r.BasicAuth(); ok && id != "" {
		return id, secret
	}
	return strings.TrimSpace(r.Form.Get("client_id")), r.Form.Get("client_secret")
}
