package sqlite

import (
	"context"

	"github.com/wastetrail/wastetrail/internal/auth/domain"
)

type companiesRepo struct {
	db dbtx
}

func (r *companiesRepo) ListActiveMemberships(ctx context.Context, userID string) ([]domain.CompanyMembership, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, company_id, role, siret, vat_number, name, verified, active, created_at
		FROM company_memberships
		WHERE user_id = ? AND active = 1
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CompanyMembership
	for rows.Next() {
		var m domain.CompanyMembership
		if err := rows.Scan(&m.ID, &m.UserID, &m.CompanyID, &m.Role, &m.Siret,
			&m.VATNumber, &m.Name, &m.Verified, &m.Active, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *companiesRepo) CreateMembership(ctx context.Context, m domain.CompanyMembership) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO company_memberships (id, user_id, company_id, role, siret, vat_number, name, verified, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.CompanyID, m.Role, m.Siret, m.VATNumber,
		m.Name, m.Verified, m.Active, m.CreatedAt.UTC())
	return err
}
