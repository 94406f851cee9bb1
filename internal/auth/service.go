package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAccountUnavailable: no active account for the email. Deliberately
	// covers both "unknown" and "deactivated" so the response cannot be
	// used to probe which accounts exist.
	ErrAccountUnavailable = errors.New("invalid credentials or inactive account")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("user already exists")
	ErrAdminExists        = errors.New("admin user already exists")
)

// UserStore is everything the auth service needs from persistence beyond
// what the guard consumes.
type UserStore interface {
	CredentialStore
	EmailTaken(ctx context.Context, email string) (bool, error)
	AdminExists(ctx context.Context) (bool, error)
	CreateUser(ctx context.Context, name, email, passwordHash, role string) (int64, error)
}

type Service struct {
	users    UserStore
	sessions *Tracker
	tokens   *TokenService
}

func NewService(users UserStore, sessions *Tracker, tokens *TokenService) *Service {
	return &Service{users: users, sessions: sessions, tokens: tokens}
}

// AccountSummary is the user payload returned by login and /me.
type AccountSummary struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Role               string `json:"role"`
	Mobile             string `json:"mobile"`
	RegistrationNumber string `json:"registrationNumber"`
}

type LoginResult struct {
	Token string         `json:"token"`
	User  AccountSummary `json:"user"`
}

// Login verifies credentials against the active account, issues a token
// and starts (or renews) the server-side session. A session-write failure
// fails the login: a successful login must leave exactly one active
// session behind.
func (s *Service) Login(ctx context.Context, email, password, ipAddress, userAgent string) (LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return LoginResult{}, ErrAccountUnavailable
	}

	user, err := s.users.FindActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrAccountUnavailable
		}
		return LoginResult{}, err
	}

	if !CheckPassword(password, user.PasswordHash) {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return LoginResult{}, err
	}

	if err := s.sessions.Start(ctx, user.ID, ipAddress, userAgent); err != nil {
		return LoginResult{}, err
	}

	summary, err := s.summarize(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{Token: token, User: summary}, nil
}

// Register creates an account plus its role profile row.
func (s *Service) Register(ctx context.Context, name, email, password, role string) (int64, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	taken, err := s.users.EmailTaken(ctx, email)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, ErrEmailTaken
	}

	hash, err := HashPassword(password)
	if err != nil {
		return 0, err
	}

	return s.users.CreateUser(ctx, name, email, hash, role)
}

// CreateAdmin provisions the one admin account; it refuses once an admin
// exists.
func (s *Service) CreateAdmin(ctx context.Context, name, email, password string) (int64, error) {
	exists, err := s.users.AdminExists(ctx)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrAdminExists
	}

	hash, err := HashPassword(password)
	if err != nil {
		return 0, err
	}

	return s.users.CreateUser(ctx, name, strings.TrimSpace(strings.ToLower(email)), hash, RoleAdmin)
}

// Profile reloads the caller's account for /me.
func (s *Service) Profile(ctx context.Context, userID int64) (AccountSummary, error) {
	user, err := s.users.FindActiveByID(ctx, userID)
	if err != nil {
		return AccountSummary{}, err
	}
	return s.summarize(ctx, user)
}

// Refresh re-issues a token for an already-authenticated caller.
func (s *Service) Refresh(identity Identity) (string, error) {
	return s.tokens.Issue(identity.ID, identity.Email, identity.Role)
}

// Logout deactivates every session for the user. Calling it twice is a
// no-op the second time.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	return s.sessions.EndAll(ctx, userID)
}

func (s *Service) summarize(ctx context.Context, user User) (AccountSummary, error) {
	mobile, err := s.users.ContactPhone(ctx, user.ID, user.Role)
	if err != nil {
		return AccountSummary{}, fmt.Errorf("look up contact phone: %w", err)
	}

	return AccountSummary{
		ID:                 user.ID,
		Name:               user.Name,
		Email:              user.Email,
		Role:               user.Role,
		Mobile:             mobile,
		RegistrationNumber: RegistrationNumber(user.ID),
	}, nil
}
