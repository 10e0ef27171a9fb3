package sqlite

import (
	"context"
	"time"

	"github.com/wastetrail/wastetrail/internal/auth/domain"
)

type preLoginSessionsRepo struct {
	db dbtx
}

func (r *preLoginSessionsRepo) CreatePreLoginSession(ctx context.Context, s domain.PreLoginSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO prelogin_sessions (token, user_email, expires_at, created_at)
		VALUES (?, ?, ?, ?)`,
		s.Token, s.UserEmail, s.ExpiresAt.UTC(), s.CreatedAt.UTC())
	return err
}

func (r *preLoginSessionsRepo) GetPreLoginSession(ctx context.Context, token string) (domain.PreLoginSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT token, user_email, expires_at, created_at
		FROM prelogin_sessions
		WHERE token = ?`, token)

	var s domain.PreLoginSession
	err := row.Scan(&s.Token, &s.UserEmail, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return domain.PreLoginSession{}, mapNotFound(err)
	}
	s.ExpiresAt = s.ExpiresAt.UTC()
	return s, nil
}

func (r *preLoginSessionsRepo) DeletePreLoginSession(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM prelogin_sessions WHERE token = ?`, token)
	return err
}

func (r *preLoginSessionsRepo) DeleteExpiredPreLoginSessions(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM prelogin_sessions WHERE expires_at < ?`, now.UTC())
	return err
}
