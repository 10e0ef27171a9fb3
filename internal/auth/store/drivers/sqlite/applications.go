package sqlite

import (
	"context"

	"github.com/wastetrail/wastetrail/internal/auth/domain"
)

type applicationsRepo struct {
	db dbtx
}

func (r *applicationsRepo) GetApplicationByID(ctx context.Context, id string) (domain.Application, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, logo_url, secret_hash, redirect_uris, openid_enabled, created_at, updated_at
		FROM applications
		WHERE id = ?`, id)

	var a domain.Application
	var redirectURIs string
	err := row.Scan(&a.ID, &a.Name, &a.LogoURL, &a.SecretHash, &redirectURIs, &a.OpenIDEnabled, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return domain.Application{}, mapNotFound(err)
	}
	a.RedirectURIs = splitScope(redirectURIs)
	return a, nil
}

func (r *applicationsRepo) CreateApplication(ctx context.Context, a domain.Application) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO applications (id, name, logo_url, secret_hash, redirect_uris, openid_enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.LogoURL, a.SecretHash, joinScope(a.RedirectURIs), a.OpenIDEnabled,
		a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	return err
}
