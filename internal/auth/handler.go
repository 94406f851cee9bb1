package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/getsentry/sentry-go"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type createAdminRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !decodeBody(w, r, &body) {
		return
	}

	body.Name = strings.TrimSpace(body.Name)
	body.Email = strings.TrimSpace(body.Email)
	if body.Name == "" || body.Email == "" || body.Password == "" || body.Role == "" {
		writeMessage(w, http.StatusBadRequest, "All fields are required")
		return
	}
	if !emailRegex.MatchString(body.Email) {
		writeMessage(w, http.StatusBadRequest, "Email format is invalid")
		return
	}
	if len(body.Password) < 8 || len(body.Password) > 200 {
		writeMessage(w, http.StatusBadRequest, "Password must be between 8 and 200 characters")
		return
	}
	if !ValidRole(body.Role) {
		writeMessage(w, http.StatusBadRequest, "Invalid role")
		return
	}

	userID, err := h.service.Register(r.Context(), body.Name, body.Email, body.Password, body.Role)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			writeMessage(w, http.StatusBadRequest, "User already exists")
			return
		}
		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"userId":  userID,
	})
}

func (h *Handler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var body createAdminRequest
	if !decodeBody(w, r, &body) {
		return
	}

	body.Name = strings.TrimSpace(body.Name)
	body.Email = strings.TrimSpace(body.Email)
	if body.Name == "" || body.Email == "" || body.Password == "" {
		writeMessage(w, http.StatusBadRequest, "All fields are required")
		return
	}

	userID, err := h.service.CreateAdmin(r.Context(), body.Name, body.Email, body.Password)
	if err != nil {
		if errors.Is(err, ErrAdminExists) {
			writeMessage(w, http.StatusBadRequest, "Admin user already exists")
			return
		}
		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Admin user created successfully",
		"userId":  userID,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := h.service.Login(r.Context(), body.Email, body.Password, clientIP(r), r.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountUnavailable):
			writeMessage(w, http.StatusBadRequest, "Invalid credentials or inactive account")
		case errors.Is(err, ErrInvalidCredentials):
			writeMessage(w, http.StatusBadRequest, "Invalid credentials")
		default:
			sentry.CaptureException(err)
			writeMessage(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeCode(w, http.StatusInternalServerError, CodeAuthError, "Authentication error.")
		return
	}

	summary, err := h.service.Profile(r.Context(), identity.ID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeMessage(w, http.StatusNotFound, "User not found")
			return
		}
		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeCode(w, http.StatusInternalServerError, CodeAuthError, "Authentication error.")
		return
	}

	token, err := h.service.Refresh(identity)
	if err != nil {
		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "Failed to refresh token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user": map[string]any{
			"id":    identity.ID,
			"email": identity.Email,
			"role":  identity.Role,
		},
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeCode(w, http.StatusInternalServerError, CodeAuthError, "Authentication error.")
		return
	}

	if err := h.service.Logout(r.Context(), identity.ID); err != nil {
		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json body")
		return false
	}

	return true
}
