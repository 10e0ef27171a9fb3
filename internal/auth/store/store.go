package store

import (
	"context"
	"errors"
	"time"

	"github.com/wastetrail/wastetrail/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable. We can change having the sub-repos as methods later but we do it
// now so we can have more control and actively stop people from accidently
// doing transactions within transactions.
type Store interface {
	Applications() Applications
	Users() Users
	Grants() Grants
	AccessTokens() AccessTokens
	Transactions() Transactions
	PreLoginSessions() PreLoginSessions
	Companies() Companies

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., code redemption).
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// This is the recommended way to handle transactions as it automatically
	// handles commit/rollback logic.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Applications interface {
	// GetApplicationByID fetches an application by its public client id.
	GetApplicationByID(ctx context.Context, id string) (domain.Application, error)

	// CreateApplication inserts a new application.
	CreateApplication(ctx context.Context, a domain.Application) error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail returns a user by email address.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// RegisterTOTPFailure atomically increments the failure counter and
	// extends the lockout to now + fails*step. It returns the new counter
	// and deadline so callers can report them without re-reading.
	RegisterTOTPFailure(ctx context.Context, userID string, now time.Time, step time.Duration) (fails int, lockedUntil time.Time, err error)

	// ResetTOTPState clears the failure counter and lockout after a
	// successful verification.
	ResetTOTPState(ctx context.Context, userID string) error
}

type Grants interface {
	// CreateGrant stores a freshly minted authorization code grant.
	CreateGrant(ctx context.Context, g domain.Grant) error

	// GetGrantByCodeHash fetches a grant by its hashed code when redeeming.
	GetGrantByCodeHash(ctx context.Context, hash string) (domain.Grant, error)

	// ConsumeGrant flips used=1 only if the grant is still unused.
	// Returns ErrNotFound when the grant was already consumed, so redemption
	// races resolve to a single winner.
	ConsumeGrant(ctx context.Context, id string) error

	// DeleteGrant removes a grant. Returns ErrNotFound when the row is
	// already gone, so redemption races resolve to a single winner.
	DeleteGrant(ctx context.Context, id string) error

	// DeleteExpiredGrants removes expired grants that were never redeemed
	// (housekeeping). Redeemed grants are retained.
	DeleteExpiredGrants(ctx context.Context, now time.Time) error
}

type AccessTokens interface {
	// CreateAccessToken stores a new opaque access token record.
	CreateAccessToken(ctx context.Context, t domain.AccessToken) error

	// GetAccessTokenByHash returns the token by its hashed value.
	GetAccessTokenByHash(ctx context.Context, hash string) (domain.AccessToken, error)

	// TouchAccessToken bumps last_used.
	TouchAccessToken(ctx context.Context, id string, now time.Time) error
}

type Transactions interface {
	// CreateTransaction parks a validated authorize request until the user
	// decides on the consent screen.
	CreateTransaction(ctx context.Context, t domain.AuthorizeTransaction) error

	// GetTransaction fetches a pending transaction by id.
	GetTransaction(ctx context.Context, id string) (domain.AuthorizeTransaction, error)

	// DeleteTransaction removes a transaction once decided.
	DeleteTransaction(ctx context.Context, id string) error

	// DeleteExpiredTransactions removes stale transactions (housekeeping).
	DeleteExpiredTransactions(ctx context.Context, now time.Time) error
}

type PreLoginSessions interface {
	// CreatePreLoginSession records a user who still owes a TOTP code.
	CreatePreLoginSession(ctx context.Context, s domain.PreLoginSession) error

	// GetPreLoginSession fetches a session by its opaque token.
	GetPreLoginSession(ctx context.Context, token string) (domain.PreLoginSession, error)

	// DeletePreLoginSession removes a session once fully authenticated.
	DeletePreLoginSession(ctx context.Context, token string) error

	// DeleteExpiredPreLoginSessions removes stale sessions (housekeeping).
	DeleteExpiredPreLoginSessions(ctx context.Context, now time.Time) error
}

type Companies interface {
	// ListActiveMemberships returns the user's active company memberships
	// ordered by creation date.
	ListActiveMemberships(ctx context.Context, userID string) ([]domain.CompanyMembership, error)

	// CreateMembership inserts a new company membership.
	CreateMembership(ctx context.Context, m domain.CompanyMembership) error
}
