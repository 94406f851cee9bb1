package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type contextKey struct{}

var identityKey contextKey

// IdentityFromContext returns the identity the guard bound to the request.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// RolePolicy is the required-role set for a route. The zero value (via
// AnyAuthenticated) admits any authenticated user.
type RolePolicy struct {
	roles []string
}

func AnyAuthenticated() RolePolicy {
	return RolePolicy{}
}

func AnyOf(roles ...string) RolePolicy {
	return RolePolicy{roles: roles}
}

func (p RolePolicy) allows(role string) bool {
	if len(p.roles) == 0 {
		return true
	}
	for _, r := range p.roles {
		if r == role {
			return true
		}
	}
	return false
}

type Guard struct {
	tokens   *TokenService
	users    CredentialStore
	sessions *Tracker
}

func NewGuard(tokens *TokenService, users CredentialStore, sessions *Tracker) *Guard {
	return &Guard{tokens: tokens, users: users, sessions: sessions}
}

// Require authenticates the request and enforces the role policy:
// bearer extraction, stateless token verification, reload of the current
// account, token-vs-stored role cross-check, then the policy check. On
// success the identity is bound to the request context.
func (g *Guard) Require(policy RolePolicy, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr, ok := bearerToken(r)
		if !ok {
			writeCode(w, http.StatusUnauthorized, CodeNoToken, "Access denied. No token provided.")
			return
		}

		claims, err := g.tokens.Verify(tokenStr)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				writeCode(w, http.StatusUnauthorized, CodeTokenExpired, "Token expired. Please login again.")
				return
			}
			writeCode(w, http.StatusUnauthorized, CodeInvalidToken, "Invalid token.")
			return
		}

		user, err := g.users.FindActiveByID(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				writeCode(w, http.StatusUnauthorized, CodeUserNotFound, "User not found or account deactivated.")
				return
			}
			writeCode(w, http.StatusInternalServerError, CodeAuthError, "Authentication error.")
			return
		}

		// A role change after issuance invalidates the token; the new
		// role is never adopted silently.
		if user.Role != claims.Role {
			writeCode(w, http.StatusUnauthorized, CodeRoleMismatch, "Token invalid - role mismatch.")
			return
		}

		if !policy.allows(user.Role) {
			writeJSON(w, http.StatusForbidden, map[string]any{
				"message":       "Access denied. Insufficient permissions.",
				"code":          CodeInsufficientPermissions,
				"requiredRoles": policy.roles,
				"userRole":      user.Role,
			})
			return
		}

		identity := Identity{ID: user.ID, Email: user.Email, Role: user.Role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	})
}

// ValidateSession is the stateful revocation stage for session-sensitive
// routes; it runs after Require. A cryptographically valid token is
// rejected here once the session is gone or idled out. Fails closed:
// store errors do not let the request through.
func (g *Guard) ValidateSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			writeCode(w, http.StatusInternalServerError, CodeAuthError, "Authentication error.")
			return
		}

		err := g.sessions.Touch(r.Context(), identity.ID)
		switch {
		case err == nil:
			next.ServeHTTP(w, r)
		case errors.Is(err, ErrNoSession), errors.Is(err, ErrSessionExpired):
			writeCode(w, http.StatusUnauthorized, CodeSessionExpired, "Session expired. Please login again.")
		default:
			writeCode(w, http.StatusInternalServerError, CodeAuthError, "Authentication error.")
		}
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}
