package domain

import (
	"slices"
	"time"
)

// Application is a registered OAuth2 client application.
type Application struct {
	ID            string
	Name          string
	LogoURL       string
	SecretHash    string   // argon2 encoded
	RedirectURIs  []string // registered redirect URIs, exact match only
	OpenIDEnabled bool     // whether the application may use the OIDC flow
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AllowsRedirectURI reports whether uri is one of the registered redirect
// URIs. Comparison is an exact string match.
func (a Application) AllowsRedirectURI(uri string) bool {
	return slices.Contains(a.RedirectURIs, uri)
}
