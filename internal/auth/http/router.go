package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/wastetrail/wastetrail/internal/auth/service"
	"github.com/wastetrail/wastetrail/internal/auth/store"
	"github.com/wastetrail/wastetrail/pkg/httpx"
	"github.com/wastetrail/wastetrail/pkg/jwtx"
	"github.com/wastetrail/wastetrail/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	signer       jwtx.Signer
	verifier     jwtx.Verifier
	issuer       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store            store.Store
	AuthorizeService *service.AuthorizeService
	TokenService     *service.TokenService
	TOTPService      *service.TOTPService
}

func NewRouter(
	signer jwtx.Signer,
	verifier jwtx.Verifier,
	issuer, buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		signer:       signer,
		verifier:     verifier,
		issuer:       issuer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOAuth2()
	r.registerOIDC()
	r.registerLogin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOAuth2() {
	authorizeHandler := &AuthorizeHandler{
		AuthorizeService: r.AuthorizeService,
		Verifier:         r.verifier,
		Logger:           r.logger,
	}
	decisionHandler := &DecisionHandler{
		AuthorizeService: r.AuthorizeService,
		Verifier:         r.verifier,
		Logger:           r.logger,
	}
	tokenHandler := &TokenHandler{TokenService: r.TokenService}

	// GET /authorize - lenient rate limit (just opens a consent transaction)
	r.Mux.Handle("GET /oauth2/authorize",
		httpx.Chain(http.HandlerFunc(authorizeHandler.Handle),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// POST /authorize/decision - strict rate limit (burns transactions)
	r.Mux.Handle("POST /oauth2/authorize/decision",
		httpx.Chain(decisionHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /token - strict rate limit keyed by IP + client_id so one noisy
	// client cannot starve other apps behind the same NAT
	r.Mux.Handle("POST /oauth2/token",
		httpx.Chain(tokenHandler,
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "client_id"),
		),
	)
}

func (r *Router) registerOIDC() {
	authorizeHandler := &AuthorizeHandler{
		AuthorizeService: r.AuthorizeService,
		Verifier:         r.verifier,
		Logger:           r.logger,
		OpenID:           true,
	}
	decisionHandler := &DecisionHandler{
		AuthorizeService: r.AuthorizeService,
		Verifier:         r.verifier,
		Logger:           r.logger,
	}
	tokenHandler := &TokenHandler{TokenService: r.TokenService, OpenID: true}

	r.Mux.Handle("GET /oidc/authorize",
		httpx.Chain(http.HandlerFunc(authorizeHandler.Handle),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /oidc/authorize/decision",
		httpx.Chain(decisionHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /oidc/token",
		httpx.Chain(tokenHandler,
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "client_id"),
		),
	)
}

func (r *Router) registerLogin() {
	h := &TOTPHandler{
		TOTPService: r.TOTPService,
		Logger:      r.logger,
	}

	// POST /login/totp - strict rate limit by IP (second-factor brute force)
	r.Mux.Handle("POST /login/totp",
		httpx.Chain(h,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// GET /jwks.json - public endpoint with high limit
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.signer),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.signer),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
