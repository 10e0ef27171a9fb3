package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/wastetrail/wastetrail/internal/auth/service"
	"github.com/wastetrail/wastetrail/pkg/httpx"
	"github.com/wastetrail/wastetrail/pkg/jwtx"
	"github.com/wastetrail/wastetrail/pkg/oauthx"
	"github.com/wastetrail/wastetrail/pkg/slogx"
)

// AuthorizeHandler serves the authorization endpoint: it validates the
// request, opens a consent transaction, and returns the payload the consent
// screen renders. The same handler backs both the plain OAuth2 and the OIDC
// route; OpenID selects which.
type AuthorizeHandler struct {
	AuthorizeService *service.AuthorizeService
	Verifier         jwtx.Verifier
	Logger           *slog.Logger
	OpenID           bool
}

// Handle processes GET requests to the authorization endpoint. The browser
// arrives here after the client redirects the user to start the flow.
func (h *AuthorizeHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.AuthorizeService == nil {
		oauthx.ErrServerError.WriteError(w)
		return
	}

	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := resolveSession(r, h.Verifier, h.logger())
	if userID == "" {
		oauthx.ErrLoginRequired.WriteError(w)
		return
	}

	query := r.URL.Query()
	req := service.OpenRequest{
		UserID:      userID,
		ClientID:    strings.TrimSpace(query.Get("client_id")),
		RedirectURI: strings.TrimSpace(query.Get("redirect_uri")),
		OpenID:      h.OpenID,
		Scope:       httpx.ParseSpaceDelimitedFields(query.Get("scope")),
		Nonce:       strings.TrimSpace(query.Get("nonce")),
	}

	prompt, err := h.AuthorizeService.OpenTransaction(ctx, req)
	if err != nil {
		// An unknown client or an unregistered redirect URI must never
		// bounce the browser to the supplied redirect target (RFC 6749,
		// Section 3.1.2.3), so these come back as direct JSON errors.
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			oauthx.ErrInvalidRequest.WriteError(w)
		case errors.Is(err, service.ErrInvalidClient):
			oauthx.New(http.StatusForbidden, oauthx.ErrorCodeUnauthorizedClient, "Invalid client id").WriteError(w)
		case errors.Is(err, service.ErrInvalidRedirectURI):
			oauthx.New(http.StatusForbidden, oauthx.ErrorCodeUnauthorizedClient, "Invalid redirect uri").WriteError(w)
		case errors.Is(err, service.ErrOpenIDDisabled):
			oauthx.New(http.StatusForbidden, oauthx.ErrorCodeUnauthorizedClient, "OpenId Connect is not enabled on this application").WriteError(w)
		case errors.Is(err, service.ErrLoginRequired):
			oauthx.ErrLoginRequired.WriteError(w)
		default:
			log.Error("authorize request failed", "error", err)
			oauthx.ErrServerError.WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, prompt)
}

func (h *AuthorizeHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slogx.Discard()
}
