package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/wastetrail/wastetrail/internal/auth/domain"
)

type transactionsRepo struct {
	db dbtx
}

func (r *transactionsRepo) CreateTransaction(ctx context.Context, t domain.AuthorizeTransaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO authorize_transactions (id, user_id, application_id, redirect_uri, openid, scope, nonce, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.ApplicationID, t.RedirectURI, t.OpenID,
		joinScope(t.Scope), t.Nonce, t.ExpiresAt.UTC(), t.CreatedAt.UTC())
	return err
}

func (r *transactionsRepo) GetTransaction(ctx context.Context, id string) (domain.AuthorizeTransaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, application_id, redirect_uri, openid, scope, nonce, expires_at, created_at
		FROM authorize_transactions
		WHERE id = ?`, id)

	var t domain.AuthorizeTransaction
	var scope string
	err := row.Scan(&t.ID, &t.UserID, &t.ApplicationID, &t.RedirectURI,
		&t.OpenID, &scope, &t.Nonce, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return domain.AuthorizeTransaction{}, mapNotFound(err)
	}
	t.Scope = splitScope(scope)
	t.ExpiresAt = t.ExpiresAt.UTC()
	return t, nil
}

func (r *transactionsRepo) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM authorize_transactions WHERE id = ?`, id)
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

func (r *transactionsRepo) DeleteExpiredTransactions(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM authorize_transactions WHERE expires_at < ?`, now.UTC())
	return err
}
