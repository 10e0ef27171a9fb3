package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/wastetrail/wastetrail/internal/auth/domain"
)

type accessTokensRepo struct {
	db dbtx
}

func (r *accessTokensRepo) CreateAccessToken(ctx context.Context, t domain.AccessToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_tokens (id, user_id, application_id, token_hash, last_used, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.ApplicationID, t.TokenHash,
		mapOptionalTime(t.LastUsed), t.CreatedAt.UTC())
	return err
}

func (r *accessTokensRepo) GetAccessTokenByHash(ctx context.Context, hash string) (domain.AccessToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, application_id, token_hash, last_used, created_at
		FROM access_tokens
		WHERE token_hash = ?`, hash)

	var t domain.AccessToken
	var lastUsed sql.NullTime
	err := row.Scan(&t.ID, &t.UserID, &t.ApplicationID, &t.TokenHash, &lastUsed, &t.CreatedAt)
	if err != nil {
		return domain.AccessToken{}, mapNotFound(err)
	}
	t.LastUsed = mapNullTimePtr(lastUsed)
	return t, nil
}

func (r *accessTokensRepo) TouchAccessToken(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE access_tokens SET last_used = ? WHERE id = ?`, now.UTC(), id)
	return err
}
