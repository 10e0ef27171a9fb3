package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/wastetrail/wastetrail/internal/auth/service"
	"github.com/wastetrail/wastetrail/pkg/httpx"
	"github.com/wastetrail/wastetrail/pkg/oauthx"
	"github.com/wastetrail/wastetrail/pkg/slogx"
)

// TOTPHandler serves the second-factor check. The pre-login token arrives in
// a cookie set by the password step; the one-time code arrives as the form
// field "totp".
type TOTPHandler struct {
	TOTPService *service.TOTPService
	Logger      *slog.Logger
}

type totpUser struct {
	Email string `json:"email"`
}

type totpSuccessResponse struct {
	User totpUser `json:"user"`
}

type totpErrorResponse struct {
	Error   string `json:"error"`
	Lockout string `json:"lockout,omitempty"`
}

func (h *TOTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.TOTPService == nil {
		oauthx.ErrServerError.WriteError(w)
		return
	}

	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		oauthx.ErrInvalidFormBody.WriteError(w)
		return
	}

	var sessionToken string
	if cookie, err := r.Cookie(preLoginCookieName); err == nil {
		sessionToken = cookie.Value
	}
	code := strings.TrimSpace(r.Form.Get("totp"))

	user, err := h.TOTPService.Verify(ctx, sessionToken, code)
	if err != nil {
		var totpErr *service.TOTPError
		if errors.As(err, &totpErr) {
			resp := totpErrorResponse{Error: totpErr.Code}
			if totpErr.Lockout != nil {
				resp.Lockout = totpErr.Lockout.UTC().Format(time.RFC3339)
			}
			httpx.WriteJSON(w, http.StatusUnauthorized, resp)
			return
		}
		log.Error("totp verification failed", "err", err)
		oauthx.ErrServerError.WriteError(w)
		return
	}

	// The pre-login session is single-use; drop the cookie with it.
	http.SetCookie(w, &http.Cookie{
		Name:     preLoginCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	httpx.WriteJSON(w, http.StatusOK, totpSuccessResponse{
		User: totpUser{Email: user.Email},
	})
}
