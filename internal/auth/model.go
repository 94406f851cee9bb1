package auth

import (
	"fmt"
	"time"
)

const (
	RoleAdmin   = "admin"
	RoleDoctor  = "doctor"
	RoleStaff   = "staff"
	RolePatient = "patient"
)

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleDoctor, RoleStaff, RolePatient:
		return true
	}
	return false
}

type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Active       bool
	CreatedAt    time.Time
}

// Session is one server-side login record. At most one active session
// exists per user; re-login renews the existing row in place.
type Session struct {
	ID           int64
	UserID       int64
	Token        string
	IPAddress    string
	UserAgent    string
	Active       bool
	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
}

// Identity is what the access guard binds to the request context; it is
// the only channel through which resource handlers learn who is asking.
type Identity struct {
	ID    int64
	Email string
	Role  string
}

// RegistrationNumber derives the public patient-facing registration code
// from a user id, e.g. 42 -> "REG000042".
func RegistrationNumber(userID int64) string {
	return fmt.Sprintf("REG%06d", userID)
}
