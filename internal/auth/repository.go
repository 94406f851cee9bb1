package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrUserNotFound covers both a missing row and a deactivated account;
// callers must not be able to tell the two apart.
var ErrUserNotFound = errors.New("user not found or inactive")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CredentialStore is the read contract the guard and the auth service
// consume; the rest of Repository is login-flow plumbing.
type CredentialStore interface {
	FindActiveByID(ctx context.Context, id int64) (User, error)
	FindActiveByEmail(ctx context.Context, email string) (User, error)
	ContactPhone(ctx context.Context, userID int64, role string) (string, error)
}

func (r *Repository) FindActiveByID(ctx context.Context, id int64) (User, error) {
	return r.findActiveUser(ctx, `
		SELECT id, name, email, password, role, status, created_at
		FROM users
		WHERE id = $1 AND status = TRUE
	`, id)
}

func (r *Repository) FindActiveByEmail(ctx context.Context, email string) (User, error) {
	return r.findActiveUser(ctx, `
		SELECT id, name, email, password, role, status, created_at
		FROM users
		WHERE email = $1 AND status = TRUE
	`, email)
}

func (r *Repository) findActiveUser(ctx context.Context, query string, arg any) (User, error) {
	var user User
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query user: %w", err)
	}

	return user, nil
}

func (r *Repository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

func (r *Repository) AdminExists(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE role = $1)`, RoleAdmin).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return exists, nil
}

// CreateUser inserts the account row plus the role-specific profile row
// in one transaction.
func (r *Repository) CreateUser(ctx context.Context, name, email, passwordHash, role string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create user tx: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password, role, status)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id
	`, name, email, passwordHash, role).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}

	switch role {
	case RolePatient:
		_, err = tx.ExecContext(ctx, `INSERT INTO patients (user_id) VALUES ($1)`, id)
	case RoleDoctor:
		_, err = tx.ExecContext(ctx, `INSERT INTO doctors (user_id) VALUES ($1)`, id)
	case RoleStaff:
		_, err = tx.ExecContext(ctx, `INSERT INTO staff (user_id) VALUES ($1)`, id)
	}
	if err != nil {
		return 0, fmt.Errorf("insert %s profile: %w", role, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create user tx: %w", err)
	}

	return id, nil
}

// ContactPhone looks up the profile phone for roles that carry one;
// other roles get an empty string.
func (r *Repository) ContactPhone(ctx context.Context, userID int64, role string) (string, error) {
	var query string
	switch role {
	case RolePatient:
		query = `SELECT COALESCE(phone, '') FROM patients WHERE user_id = $1`
	case RoleStaff:
		query = `SELECT COALESCE(phone, '') FROM staff WHERE user_id = $1`
	default:
		return "", nil
	}

	var phone string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("query contact phone: %w", err)
	}

	return phone, nil
}

func (r *Repository) ActiveSessionByUser(ctx context.Context, userID int64) (Session, error) {
	var s Session
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, session_token, ip_address, user_agent, is_active, created_at, last_activity, expires_at
		FROM user_sessions
		WHERE user_id = $1 AND is_active = TRUE
		ORDER BY created_at DESC
		LIMIT 1
	`, userID).Scan(&s.ID, &s.UserID, &s.Token, &s.IPAddress, &s.UserAgent, &s.Active, &s.CreatedAt, &s.LastActivity, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("query active session: %w", err)
	}

	return s, nil
}

func (r *Repository) CreateSession(ctx context.Context, session Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_sessions (user_id, session_token, ip_address, user_agent, is_active, created_at, last_activity, expires_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6, $7)
	`, session.UserID, session.Token, session.IPAddress, session.UserAgent, session.CreatedAt, session.LastActivity, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

func (r *Repository) RefreshSessionActivity(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE user_sessions
		SET last_activity = $2
		WHERE user_id = $1 AND is_active = TRUE
	`, userID, at.UTC())
	if err != nil {
		return fmt.Errorf("update session activity: %w", err)
	}

	return nil
}

func (r *Repository) DeactivateSessions(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE user_sessions
		SET is_active = FALSE
		WHERE user_id = $1 AND is_active = TRUE
	`, userID)
	if err != nil {
		return fmt.Errorf("deactivate sessions: %w", err)
	}

	return nil
}

// CleanupStaleSessions removes rows that can no longer become active
// again: deactivated sessions and sessions past their absolute expiry,
// both older than the retention cutoff. Active, in-date rows are never
// touched, so lazy-expiry semantics are unchanged.
func (r *Repository) CleanupStaleSessions(ctx context.Context, retention time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	if retention <= 0 {
		retention = 14 * 24 * time.Hour
	}

	cutoff := time.Now().UTC().Add(-retention)

	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM user_sessions
			WHERE (is_active = FALSE OR expires_at < NOW())
			  AND last_activity < $1
			ORDER BY last_activity ASC
			LIMIT $2
		)
		DELETE FROM user_sessions s
		USING stale
		WHERE s.id = stale.id
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale sessions rows affected: %w", err)
	}

	return affected, nil
}
