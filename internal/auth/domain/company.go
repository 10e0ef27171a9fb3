package domain

import "time"

// CompanyMembership links a user to a company they act for. Only active
// memberships surface in ID-token company claims.
type CompanyMembership struct {
	ID        string
	UserID    string
	CompanyID string
	Role      string
	Siret     string
	VATNumber string
	Name      string
	Verified  bool
	Active    bool
	CreatedAt time.Time
}
