package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/wastetrail/wastetrail/internal/auth/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, name, email, phone, is_active, totp_seed, totp_fails, totp_locked_until, created_at, updated_at`

func (r *usersRepo) scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	var seed sql.NullString
	var lockedUntil sql.NullInt64
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.IsActive,
		&seed, &u.TOTPFails, &lockedUntil, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.TOTPSeed = mapNullStringPtr(seed)
	if lockedUntil.Valid {
		t := time.Unix(lockedUntil.Int64, 0).UTC()
		u.TOTPLockedUntil = &t
	}
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	var lockedUntil sql.NullInt64
	if u.TOTPLockedUntil != nil {
		lockedUntil = sql.NullInt64{Int64: u.TOTPLockedUntil.Unix(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, phone, is_active, totp_seed, totp_fails, totp_locked_until, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.Phone, u.IsActive,
		mapOptionalString(u.TOTPSeed), u.TOTPFails, lockedUntil,
		u.CreatedAt.UTC(), u.UpdatedAt.UTC())
	return err
}

// RegisterTOTPFailure increments the counter and extends the lockout in a
// single statement so concurrent failed attempts cannot lose an increment.
func (r *usersRepo) RegisterTOTPFailure(ctx context.Context, userID string, now time.Time, step time.Duration) (int, time.Time, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET totp_fails = totp_fails + 1,
		    totp_locked_until = ?1 + (totp_fails + 1) * ?2,
		    updated_at = ?3
		WHERE id = ?4
		RETURNING totp_fails, totp_locked_until`,
		now.Unix(), int64(step/time.Second), now.UTC(), userID)

	var fails int
	var lockedUntil int64
	if err := row.Scan(&fails, &lockedUntil); err != nil {
		return 0, time.Time{}, mapNotFound(err)
	}
	return fails, time.Unix(lockedUntil, 0).UTC(), nil
}

func (r *usersRepo) ResetTOTPState(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET totp_fails = 0, totp_locked_until = NULL, updated_at = ?
		WHERE id = ?`, time.Now().UTC(), userID)
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
