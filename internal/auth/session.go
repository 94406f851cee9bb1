package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoSession means no active session row exists for the user.
	ErrNoSession = errors.New("no active session")
	// ErrSessionExpired means the session existed but ran past its idle
	// timeout or absolute expiry and has been deactivated.
	ErrSessionExpired = errors.New("session expired")
)

const defaultSessionTTL = 24 * time.Hour

// SessionStore is the persistence contract the tracker needs. The
// Repository implements it against user_sessions.
type SessionStore interface {
	ActiveSessionByUser(ctx context.Context, userID int64) (Session, error)
	CreateSession(ctx context.Context, session Session) error
	RefreshSessionActivity(ctx context.Context, userID int64, at time.Time) error
	DeactivateSessions(ctx context.Context, userID int64) error
}

// Tracker owns the per-user session state machine: NoSession -> Active on
// login, Active -> Active on touch within the idle timeout, Active ->
// Expired lazily on the first touch past the timeout, Active -> NoSession
// on logout. Expiry is checked only on touch; there is no background
// sweep, so stale rows persist until the next check.
type Tracker struct {
	store       SessionStore
	idleTimeout time.Duration
	ttl         time.Duration
}

func NewTracker(store SessionStore, idleTimeout, ttl time.Duration) *Tracker {
	if idleTimeout <= 0 {
		idleTimeout = defaultSessionTTL
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Tracker{store: store, idleTimeout: idleTimeout, ttl: ttl}
}

// Start records a login. If the user already has a live session the
// existing row is renewed in place rather than duplicated, keeping at most
// one active session per user. A row that idled out or passed its absolute
// expiry cannot be renewed; it is deactivated and replaced, so a fresh
// login always leaves a usable session behind.
func (t *Tracker) Start(ctx context.Context, userID int64, ipAddress, userAgent string) error {
	now := time.Now().UTC()

	existing, err := t.store.ActiveSessionByUser(ctx, userID)
	switch {
	case err == nil:
		if t.expired(existing, now) {
			if err := t.store.DeactivateSessions(ctx, userID); err != nil {
				return fmt.Errorf("deactivate expired session: %w", err)
			}
			// fall through to create
			break
		}
		if err := t.store.RefreshSessionActivity(ctx, userID, now); err != nil {
			return fmt.Errorf("renew session: %w", err)
		}
		return nil
	case errors.Is(err, ErrNoSession):
		// fall through to create
	default:
		return fmt.Errorf("look up session: %w", err)
	}

	token, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate session token: %w", err)
	}

	session := Session{
		UserID:       userID,
		Token:        token.String(),
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
		Active:       true,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(t.ttl),
	}
	if err := t.store.CreateSession(ctx, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	return nil
}

// Touch refreshes last-activity for the user's active session. It returns
// ErrNoSession when none exists and ErrSessionExpired after deactivating a
// session that idled out or passed its absolute expiry.
func (t *Tracker) Touch(ctx context.Context, userID int64) error {
	now := time.Now().UTC()

	session, err := t.store.ActiveSessionByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return ErrNoSession
		}
		return fmt.Errorf("look up session: %w", err)
	}

	if t.expired(session, now) {
		if err := t.store.DeactivateSessions(ctx, userID); err != nil {
			return fmt.Errorf("deactivate expired session: %w", err)
		}
		return ErrSessionExpired
	}

	// Concurrent touches for the same user race on last-activity; last
	// write wins, which is fine for a coarse liveness signal.
	if err := t.store.RefreshSessionActivity(ctx, userID, now); err != nil {
		return fmt.Errorf("refresh session activity: %w", err)
	}

	return nil
}

// expired reports whether the session idled out or passed its absolute
// expiry. Start and Touch must agree on this or a renewed login could
// hand back a session the next touch immediately kills.
func (t *Tracker) expired(session Session, now time.Time) bool {
	return now.Sub(session.LastActivity) > t.idleTimeout || now.After(session.ExpiresAt)
}

// EndAll deactivates every session for the user. Safe to call when none
// is active, so logout is idempotent.
func (t *Tracker) EndAll(ctx context.Context, userID int64) error {
	if err := t.store.DeactivateSessions(ctx, userID); err != nil {
		return fmt.Errorf("end sessions: %w", err)
	}
	return nil
}
