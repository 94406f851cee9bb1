package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, store *fakeStore) *Service {
	t.Helper()
	tokens := NewTokenService("test-secret", time.Hour)
	sessions := NewTracker(store, time.Hour, 24*time.Hour)
	return NewService(store, sessions, tokens)
}

func seedUser(t *testing.T, store *fakeStore, id int64, email, password, role string, active bool) {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	store.addUser(User{
		ID:           id,
		Name:         "Test User",
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       active,
	}, "0771234567")
}

func TestLoginSuccess(t *testing.T) {
	store := newFakeStore()
	seedUser(t, store, 12, "jane@clinic.test", "s3cret-pass", RolePatient, true)
	svc := newTestService(t, store)

	result, err := svc.Login(context.Background(), "Jane@Clinic.Test", "s3cret-pass", "10.0.0.1", "agent")
	require.NoError(t, err)

	assert.Equal(t, int64(12), result.User.ID)
	assert.Equal(t, RolePatient, result.User.Role)
	assert.Equal(t, "0771234567", result.User.Mobile)
	assert.Equal(t, "REG000012", result.User.RegistrationNumber)

	claims, err := NewTokenService("test-secret", time.Hour).Verify(result.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(12), claims.UserID)
	assert.Equal(t, RolePatient, claims.Role)

	require.Contains(t, store.sessions, int64(12))
	assert.True(t, store.sessions[12].Active)
	assert.Equal(t, 1, store.createCalls)
}

func TestLoginWrongPassword(t *testing.T) {
	store := newFakeStore()
	seedUser(t, store, 12, "jane@clinic.test", "s3cret-pass", RolePatient, true)
	svc := newTestService(t, store)

	_, err := svc.Login(context.Background(), "jane@clinic.test", "wrong", "10.0.0.1", "agent")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Empty(t, store.sessions)
}

func TestLoginUnknownOrInactiveAccount(t *testing.T) {
	store := newFakeStore()
	seedUser(t, store, 12, "off@clinic.test", "s3cret-pass", RolePatient, false)
	svc := newTestService(t, store)

	_, err := svc.Login(context.Background(), "nobody@clinic.test", "s3cret-pass", "10.0.0.1", "agent")
	assert.ErrorIs(t, err, ErrAccountUnavailable)

	// A deactivated account gets the same answer as an unknown one.
	_, err = svc.Login(context.Background(), "off@clinic.test", "s3cret-pass", "10.0.0.1", "agent")
	assert.ErrorIs(t, err, ErrAccountUnavailable)
}

func TestLoginFailsWhenSessionWriteFails(t *testing.T) {
	store := newFakeStore()
	seedUser(t, store, 12, "jane@clinic.test", "s3cret-pass", RolePatient, true)
	store.sessionErr = errors.New("db down")
	svc := newTestService(t, store)

	_, err := svc.Login(context.Background(), "jane@clinic.test", "s3cret-pass", "10.0.0.1", "agent")
	assert.Error(t, err)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	store := newFakeStore()
	seedUser(t, store, 1, "jane@clinic.test", "s3cret-pass", RolePatient, true)
	svc := newTestService(t, store)

	_, err := svc.Register(context.Background(), "Jane", "jane@clinic.test", "another-pass", RolePatient)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterNormalizesEmail(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)

	id, err := svc.Register(context.Background(), "Jane", "  Jane@Clinic.Test ", "s3cret-pass", RolePatient)
	require.NoError(t, err)
	assert.Equal(t, "jane@clinic.test", store.users[id].Email)
	assert.NotEqual(t, "s3cret-pass", store.users[id].PasswordHash)
}

func TestCreateAdminOnlyOnce(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)

	id, err := svc.CreateAdmin(context.Background(), "Root", "admin@clinic.test", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, store.users[id].Role)

	_, err = svc.CreateAdmin(context.Background(), "Root2", "admin2@clinic.test", "s3cret-pass")
	assert.ErrorIs(t, err, ErrAdminExists)
}

func TestLogoutEndsSession(t *testing.T) {
	store := newFakeStore()
	seedUser(t, store, 12, "jane@clinic.test", "s3cret-pass", RolePatient, true)
	svc := newTestService(t, store)

	_, err := svc.Login(context.Background(), "jane@clinic.test", "s3cret-pass", "10.0.0.1", "agent")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), 12))
	assert.False(t, store.sessions[12].Active)
	require.NoError(t, svc.Logout(context.Background(), 12))
}

func TestRefreshIssuesTokenForIdentity(t *testing.T) {
	svc := newTestService(t, newFakeStore())

	token, err := svc.Refresh(Identity{ID: 5, Email: "doc@clinic.test", Role: RoleDoctor})
	require.NoError(t, err)

	claims, err := NewTokenService("test-secret", time.Hour).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(5), claims.UserID)
	assert.Equal(t, RoleDoctor, claims.Role)
}

func TestRegistrationNumberFormat(t *testing.T) {
	assert.Equal(t, "REG000042", RegistrationNumber(42))
	assert.Equal(t, "REG1234567", RegistrationNumber(1234567))
}
