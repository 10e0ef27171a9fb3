package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wastetrail/wastetrail/internal/auth/domain"
	"github.com/wastetrail/wastetrail/internal/auth/store"
	"github.com/wastetrail/wastetrail/pkg/cryptox"
	"github.com/wastetrail/wastetrail/pkg/slogx"
	"github.com/wastetrail/wastetrail/pkg/totpx"
)

// TOTP failure codes surfaced to the login page.
const (
	TOTPCodeTimeout = "TOTP_TIMEOUT_OR_MISSING_SESSION"
	TOTPCodeMissing = "MISSING_TOTP"
	TOTPCodeLockout = "TOTP_LOCKOUT"
	TOTPCodeInvalid = "INVALID_TOTP"
)

// TOTPError tells the caller which rule failed and, when a lockout is in
// force, until when.
type TOTPError struct {
	Code    string
	Lockout *time.Time
}

func (e *TOTPError) Error() string {
	if e.Lockout != nil {
		return fmt.Sprintf("totp: %s until %s", e.Code, e.Lockout.Format(time.RFC3339))
	}
	return "totp: " + e.Code
}

// TOTPService verifies the second authentication factor against a pre-login
// session, with a progressive lockout on failures.
type TOTPService struct {
	Store store.Store

	// LockStep is the lockout unit: after n failures the user is locked
	// for n*LockStep.
	LockStep time.Duration

	// Now is the clock, swappable in tests. Defaults to time.Now.
	Now func() time.Time
}

func (s *TOTPService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *TOTPService) lockStep() time.Duration {
	if s.LockStep > 0 {
		return s.LockStep
	}
	return 5 * time.Second
}

// Verify checks the submitted TOTP code for the pre-login session.
//
// Failure modes, all typed *TOTPError:
//   - TOTP_TIMEOUT_OR_MISSING_SESSION: the session is unknown or expired
//   - MISSING_TOTP: no code submitted; the failure counter is untouched
//   - TOTP_LOCKOUT: a lockout is in force; the counter is untouched
//   - INVALID_TOTP: wrong code; the counter grows and a new lockout starts
//
// Success resets the failure state and burns the pre-login session.
func (s *TOTPService) Verify(ctx context.Context, sessionToken, code string) (domain.User, error) {
	log := slogx.FromContext(ctx)
	now := s.now()

	session, err := s.Store.PreLoginSessions().GetPreLoginSession(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, &TOTPError{Code: TOTPCodeTimeout}
		}
		return domain.User{}, err
	}
	if session.Expired(now) {
		_ = s.Store.PreLoginSessions().DeletePreLoginSession(ctx, session.Token)
		return domain.User{}, &TOTPError{Code: TOTPCodeTimeout}
	}

	if strings.TrimSpace(code) == "" {
		return domain.User{}, &TOTPError{Code: TOTPCodeMissing}
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, session.UserEmail)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The account vanished between factors. No counter to grow.
			return domain.User{}, &TOTPError{Code: TOTPCodeInvalid}
		}
		return domain.User{}, err
	}

	// Attempts during an active lockout never reach code comparison and
	// never extend the lockout.
	if user.TOTPLocked(now) {
		return domain.User{}, &TOTPError{Code: TOTPCodeLockout, Lockout: user.TOTPLockedUntil}
	}

	if user.TOTPSeed == nil || *user.TOTPSeed == "" {
		return domain.User{}, s.registerFailure(ctx, log, user.ID, now)
	}

	codes, err := totpx.WindowCodes(*user.TOTPSeed, now)
	if err != nil {
		return domain.User{}, err
	}
	if !codes.Matches(strings.TrimSpace(code)) {
		return domain.User{}, s.registerFailure(ctx, log, user.ID, now)
	}

	if err := s.Store.Users().ResetTOTPState(ctx, user.ID); err != nil {
		return domain.User{}, err
	}
	if err := s.Store.PreLoginSessions().DeletePreLoginSession(ctx, session.Token); err != nil {
		return domain.User{}, err
	}

	return user, nil
}

func (s *TOTPService) registerFailure(ctx context.Context, log *slog.Logger, userID string, now time.Time) error {
	fails, lockedUntil, err := s.Store.Users().RegisterTOTPFailure(ctx, userID, now, s.lockStep())
	if err != nil {
		return err
	}
	log.Warn("totp: verification failed", "user_id", userID, "fails", fails, "locked_until", lockedUntil)
	return &TOTPError{Code: TOTPCodeInvalid, Lockout: &lockedUntil}
}

// OpenPreLoginSession records a first-factor success so the TOTP endpoint
// can identify the user. Returns the opaque session token for the cookie.
func (s *TOTPService) OpenPreLoginSession(ctx context.Context, userEmail string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	now := s.now()

	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", err
	}

	err = s.Store.PreLoginSessions().CreatePreLoginSession(ctx, domain.PreLoginSession{
		Token:     token,
		UserEmail: userEmail,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	if err != nil {
		return "", err
	}
	return token, nil
}
