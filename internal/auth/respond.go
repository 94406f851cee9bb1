package auth

import (
	"encoding/json"
	"net/http"
)

// Machine-readable error codes surfaced in JSON error bodies. Clients
// branch on these, so they are part of the API contract.
const (
	CodeNoToken                 = "NO_TOKEN"
	CodeTokenExpired            = "TOKEN_EXPIRED"
	CodeInvalidToken            = "INVALID_TOKEN"
	CodeUserNotFound            = "USER_NOT_FOUND"
	CodeRoleMismatch            = "ROLE_MISMATCH"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeSessionExpired          = "SESSION_EXPIRED"
	CodeRateLimited             = "RATE_LIMITED"
	CodeInvalidInput            = "INVALID_INPUT"
	CodeAuthError               = "AUTH_ERROR"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"message": message, "code": code})
}
