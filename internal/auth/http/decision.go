package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/wastetrail/wastetrail/internal/auth/service"
	"github.com/wastetrail/wastetrail/pkg/jwtx"
	"github.com/wastetrail/wastetrail/pkg/oauthx"
	"github.com/wastetrail/wastetrail/pkg/slogx"
)

// DecisionHandler serves the consent screen's verdict: the user either
// allows the pending authorization transaction, minting a code, or cancels
// it. Both outcomes redirect back to the client.
type DecisionHandler struct {
	AuthorizeService *service.AuthorizeService
	Verifier         jwtx.Verifier
	Logger           *slog.Logger
}

func (h *DecisionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	if err := r.ParseForm(); err != nil {
		oauthx.ErrInvalidFormBody.WriteError(w)
		return
	}

	transactionID := strings.TrimSpace(r.Form.Get("transaction_id"))
	if transactionID == "" {
		oauthx.ErrInvalidRequest.WriteError(w)
		return
	}

	switch {
	case r.Form.Has("cancel"):
		redirectURI, err := h.AuthorizeService.Deny(ctx, transactionID, userID)
		if err != nil {
			h.writeDecisionError(w, log, err)
			return
		}
		http.Redirect(w, r, appendQuery(redirectURI, "error", oauthx.ErrorCodeAccessDenied), http.StatusFound)

	case r.Form.Has("allow"):
		resp, err := h.AuthorizeService.Approve(ctx, transactionID, userID)
		if err != nil {
			h.writeDecisionError(w, log, err)
			return
		}
		http.Redirect(w, r, appendQuery(resp.RedirectURI, "code", resp.Code), http.StatusFound)

	default:
		oauthx.ErrInvalidRequest.WriteError(w)
	}
}

func (h *DecisionHandler) writeDecisionError(w http.ResponseWriter, log *slog.Logger, err error) {
	var scopeErr *service.ScopeError
	switch {
	case errors.As(err, &scopeErr):
		oauthx.New(http.StatusBadRequest, oauthx.ErrorCodeInvalidScope, scopeErr.Reason).WriteError(w)
	case errors.Is(err, service.ErrOpenIDDisabled):
		oauthx.New(http.StatusForbidden, oauthx.ErrorCodeUnauthorizedClient, "OpenID is not enabled for this client").WriteError(w)
	case errors.Is(err, service.ErrInvalidTransaction):
		oauthx.New(http.StatusBadRequest, oauthx.ErrorCodeInvalidRequest, "Unknown or expired transaction").WriteError(w)
	default:
		log.Error("authorize decision failed", "error", err)
		oauthx.ErrServerError.WriteError(w)
	}
}

func (h *DecisionHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slogx.Discard()
}

// appendQuery adds one query parameter to a redirect URI, preserving any
// parameters the client registered with.
func appendQuery(baseURI, key, value string) string {
	u, err := url.Parse(baseURI)
	if err != nil {
		return baseURI
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
