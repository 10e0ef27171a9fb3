package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/wastetrail/wastetrail/internal/auth/domain"
)

type grantsRepo struct {
	db dbtx
}

func (r *grantsRepo) CreateGrant(ctx context.Context, g domain.Grant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO grants (id, user_id, application_id, code_hash, redirect_uri, openid, scope, nonce, expires_in, expires_at, used, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.ApplicationID, g.CodeHash, g.RedirectURI, g.OpenID,
		joinScope(g.Scope), g.Nonce, int64(g.ExpiresIn/time.Second),
		g.ExpiresAt().UTC(), g.Used, g.CreatedAt.UTC())
	return err
}

func (r *grantsRepo) GetGrantByCodeHash(ctx context.Context, hash string) (domain.Grant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, application_id, code_hash, redirect_uri, openid, scope, nonce, expires_in, used, created_at
		FROM grants
		WHERE code_hash = ?`, hash)

	var g domain.Grant
	var scope string
	var expiresIn int64
	err := row.Scan(&g.ID, &g.UserID, &g.ApplicationID, &g.CodeHash, &g.RedirectURI,
		&g.OpenID, &scope, &g.Nonce, &expiresIn, &g.Used, &g.CreatedAt)
	if err != nil {
		return domain.Grant{}, mapNotFound(err)
	}
	g.Scope = splitScope(scope)
	g.ExpiresIn = time.Duration(expiresIn) * time.Second
	g.CreatedAt = g.CreatedAt.UTC()
	return g, nil
}

// ConsumeGrant only succeeds for grants not yet consumed, so a code redeemed
// twice concurrently produces exactly one winner.
func (r *grantsRepo) ConsumeGrant(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE grants SET used = 1 WHERE id = ? AND used = 0`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func (r *grantsRepo) DeleteGrant(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM grants WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

// DeleteExpiredGrants removes grants that expired without being redeemed.
// Redeemed grants keep their used flag and are never pruned.
func (r *grantsRepo) DeleteExpiredGrants(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM grants WHERE expires_at < ? AND used = 0`, now.UTC())
	return err
}
