package appointment

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"github.com/getsentry/sentry-go"

	"clinic-api/internal/auth"
)

const maxJSONBodyBytes = 1 << 20

var (
	dateFormat = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeFormat = regexp.MustCompile(`^\d{2}:\d{2}(:\d{2})?$`)

	validStatuses = map[string]bool{"pending": true, "approved": true, "completed": true, "cancelled": true}
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	appointments, err := h.repo.List(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, appointments)
}

func (h *Handler) ListByPatient(w http.ResponseWriter, r *http.Request) {
	patientID, ok := pathID(w, r, "patientId")
	if !ok {
		return
	}

	identity, _ := auth.IdentityFromContext(r.Context())
	if identity.Role == auth.RolePatient {
		ownerID, err := h.repo.PatientUserID(r.Context(), patientID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}
		if ownerID != identity.ID {
			writeError(w, http.StatusForbidden, "Access denied")
			return
		}
	}

	appointments, err := h.repo.ListByPatient(r.Context(), patientID)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, appointments)
}

func (h *Handler) ListByDoctor(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := pathID(w, r, "doctorId")
	if !ok {
		return
	}

	identity, _ := auth.IdentityFromContext(r.Context())
	if identity.Role == auth.RoleDoctor {
		ownerID, err := h.repo.DoctorUserID(r.Context(), doctorID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}
		if ownerID != identity.ID {
			writeError(w, http.StatusForbidden, "Access denied")
			return
		}
	}

	appointments, err := h.repo.ListByDoctor(r.Context(), doctorID)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, appointments)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	a, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Appointment not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input AppointmentInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if input.PatientID <= 0 || input.DoctorID <= 0 || input.DepartmentID <= 0 {
		writeError(w, http.StatusBadRequest, "patientId, doctorId and departmentId are required")
		return
	}
	if !dateFormat.MatchString(input.Date) || !timeFormat.MatchString(input.Time) {
		writeError(w, http.StatusBadRequest, "date or time format is invalid")
		return
	}

	taken, err := h.repo.SlotTaken(r.Context(), input.DoctorID, input.Date, input.Time)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "Error booking appointment")
		return
	}
	if taken {
		writeError(w, http.StatusBadRequest, "Time slot not available")
		return
	}

	id, err := h.repo.Create(r.Context(), input)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "Error booking appointment")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Appointment booked successfully",
		"id":      id,
	})
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body struct {
		Status string `json:"status"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if !validStatuses[body.Status] {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	if err := h.repo.UpdateStatus(r.Context(), id, body.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Appointment not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "Error updating appointment status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Appointment status updated successfully"})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.repo.Cancel(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Appointment not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "Error cancelling appointment")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Appointment cancelled successfully"})
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
