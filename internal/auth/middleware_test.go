package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(store *fakeStore) (*Guard, *TokenService) {
	tokens := NewTokenService("test-secret", time.Hour)
	sessions := NewTracker(store, time.Hour, 24*time.Hour)
	return NewGuard(tokens, store, sessions), tokens
}

func identityProbe(captured *Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity, ok := IdentityFromContext(r.Context()); ok {
			*captured = identity
		}
		w.WriteHeader(http.StatusOK)
	})
}

func errCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	code, _ := body["code"].(string)
	return code
}

func TestGuardNoToken(t *testing.T) {
	guard, _ := newTestGuard(newFakeStore())
	handler := guard.Require(AnyAuthenticated(), identityProbe(&Identity{}))

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer  "} {
		r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, CodeNoToken, errCode(t, rec))
	}
}

func TestGuardExpiredToken(t *testing.T) {
	guard, _ := newTestGuard(newFakeStore())
	expired := &TokenService{secret: []byte("test-secret"), ttl: -time.Minute}
	token, err := expired.Issue(1, "u@clinic.test", RolePatient)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	guard.Require(AnyAuthenticated(), identityProbe(&Identity{})).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeTokenExpired, errCode(t, rec))
}

func TestGuardInvalidToken(t *testing.T) {
	guard, _ := newTestGuard(newFakeStore())

	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	guard.Require(AnyAuthenticated(), identityProbe(&Identity{})).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeInvalidToken, errCode(t, rec))
}

func TestGuardDeactivatedUser(t *testing.T) {
	store := newFakeStore()
	store.addUser(User{ID: 3, Email: "off@clinic.test", Role: RoleStaff, Active: false}, "")
	guard, tokens := newTestGuard(store)

	token, err := tokens.Issue(3, "off@clinic.test", RoleStaff)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	guard.Require(AnyAuthenticated(), identityProbe(&Identity{})).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeUserNotFound, errCode(t, rec))
}

func TestGuardRoleMismatch(t *testing.T) {
	store := newFakeStore()
	store.addUser(User{ID: 3, Email: "u@clinic.test", Role: RolePatient, Active: true}, "")
	guard, tokens := newTestGuard(store)

	// Token minted before the stored role changed.
	token, err := tokens.Issue(3, "u@clinic.test", RoleDoctor)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	guard.Require(AnyAuthenticated(), identityProbe(&Identity{})).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeRoleMismatch, errCode(t, rec))
}

func TestGuardInsufficientPermissions(t *testing.T) {
	store := newFakeStore()
	store.addUser(User{ID: 3, Email: "u@clinic.test", Role: RolePatient, Active: true}, "")
	guard, tokens := newTestGuard(store)

	token, err := tokens.Issue(3, "u@clinic.test", RolePatient)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	guard.Require(AnyOf(RoleAdmin), identityProbe(&Identity{})).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body struct {
		Code          string   `json:"code"`
		RequiredRoles []string `json:"requiredRoles"`
		UserRole      string   `json:"userRole"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeInsufficientPermissions, body.Code)
	assert.Equal(t, []string{RoleAdmin}, body.RequiredRoles)
	assert.Equal(t, RolePatient, body.UserRole)
}

func TestGuardBindsIdentity(t *testing.T) {
	store := newFakeStore()
	store.addUser(User{ID: 3, Email: "u@clinic.test", Role: RoleDoctor, Active: true}, "")
	guard, tokens := newTestGuard(store)

	token, err := tokens.Issue(3, "u@clinic.test", RoleDoctor)
	require.NoError(t, err)

	var captured Identity
	r := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	guard.Require(AnyOf(RoleDoctor, RoleAdmin), identityProbe(&captured)).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Identity{ID: 3, Email: "u@clinic.test", Role: RoleDoctor}, captured)
}

func TestValidateSessionHappyPath(t *testing.T) {
	store := newFakeStore()
	store.addUser(User{ID: 3, Email: "u@clinic.test", Role: RolePatient, Active: true}, "")
	store.sessions[3] = Session{
		UserID:       3,
		Active:       true,
		LastActivity: time.Now().UTC(),
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}
	guard, tokens := newTestGuard(store)

	token, err := tokens.Issue(3, "u@clinic.test", RolePatient)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/api/patients/1", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	guard.Require(AnyAuthenticated(), guard.ValidateSession(identityProbe(&Identity{}))).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.refreshCalls)
}

func TestValidateSessionRejectsMissingSession(t *testing.T) {
	store := newFakeStore()
	store.addUser(User{ID: 3, Email: "u@clinic.test", Role: RolePatient, Active: true}, "")
	guard, tokens := newTestGuard(store)

	token, err := tokens.Issue(3, "u@clinic.test", RolePatient)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/api/patients/1", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	guard.Require(AnyAuthenticated(), guard.ValidateSession(identityProbe(&Identity{}))).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeSessionExpired, errCode(t, rec))
}

func TestValidateSessionRejectsIdleSession(t *testing.T) {
	store := newFakeStore()
	store.addUser(User{ID: 3, Email: "u@clinic.test", Role: RolePatient, Active: true}, "")
	store.sessions[3] = Session{
		UserID:       3,
		Active:       true,
		LastActivity: time.Now().UTC().Add(-2 * time.Hour),
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}
	guard, tokens := newTestGuard(store)

	token, err := tokens.Issue(3, "u@clinic.test", RolePatient)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/api/patients/1", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	guard.Require(AnyAuthenticated(), guard.ValidateSession(identityProbe(&Identity{}))).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeSessionExpired, errCode(t, rec))
	assert.False(t, store.sessions[3].Active)
}

func TestValidateSessionFailsClosedOnStoreError(t *testing.T) {
	store := newFakeStore()
	store.addUser(User{ID: 3, Email: "u@clinic.test", Role: RolePatient, Active: true}, "")
	guard, tokens := newTestGuard(store)

	token, err := tokens.Issue(3, "u@clinic.test", RolePatient)
	require.NoError(t, err)

	store.sessionErr = assert.AnError

	r := httptest.NewRequest(http.MethodGet, "/api/patients/1", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	guard.Require(AnyAuthenticated(), guard.ValidateSession(identityProbe(&Identity{}))).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, CodeAuthError, errCode(t, rec))
}
