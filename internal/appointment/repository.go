package appointment

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Appointment struct {
	ID             int64     `json:"id"`
	PatientID      int64     `json:"patientId"`
	DoctorID       int64     `json:"doctorId"`
	DepartmentID   int64     `json:"departmentId"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	Status         string    `json:"status"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"createdAt"`
	PatientName    string    `json:"patientName"`
	DoctorName     string    `json:"doctorName"`
	DepartmentName string    `json:"departmentName"`
}

type AppointmentInput struct {
	PatientID    int64  `json:"patientId"`
	DoctorID     int64  `json:"doctorId"`
	DepartmentID int64  `json:"departmentId"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Description  string `json:"description"`
}

const appointmentColumns = `
	a.id, a.patient_id, a.doctor_id, a.department_id, a.date::text, a.time::text,
	a.status, COALESCE(a.description, ''), a.created_at,
	up.name, ud.name, dept.name`

const appointmentJoins = `
	FROM appointments a
	JOIN patients p ON a.patient_id = p.id
	JOIN users up ON p.user_id = up.id
	JOIN doctors doc ON a.doctor_id = doc.id
	JOIN users ud ON doc.user_id = ud.id
	JOIN departments dept ON a.department_id = dept.id`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]Appointment, error) {
	return r.queryAppointments(ctx, `SELECT`+appointmentColumns+appointmentJoins+` ORDER BY a.date DESC, a.time DESC`)
}

func (r *Repository) ListByPatient(ctx context.Context, patientID int64) ([]Appointment, error) {
	return r.queryAppointments(ctx, `SELECT`+appointmentColumns+appointmentJoins+` WHERE a.patient_id = $1 ORDER BY a.date DESC, a.time DESC`, patientID)
}

func (r *Repository) ListByDoctor(ctx context.Context, doctorID int64) ([]Appointment, error) {
	return r.queryAppointments(ctx, `SELECT`+appointmentColumns+appointmentJoins+` WHERE a.doctor_id = $1 ORDER BY a.date DESC, a.time DESC`, doctorID)
}

func (r *Repository) queryAppointments(ctx context.Context, query string, args ...any) ([]Appointment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	appointments := make([]Appointment, 0)
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.DepartmentID, &a.Date, &a.Time,
			&a.Status, &a.Description, &a.CreatedAt, &a.PatientName, &a.DoctorName, &a.DepartmentName); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appointments = append(appointments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointments: %w", err)
	}

	return appointments, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (Appointment, error) {
	var a Appointment
	err := r.db.QueryRowContext(ctx, `SELECT`+appointmentColumns+appointmentJoins+` WHERE a.id = $1`, id).
		Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.DepartmentID, &a.Date, &a.Time,
			&a.Status, &a.Description, &a.CreatedAt, &a.PatientName, &a.DoctorName, &a.DepartmentName)
	if err != nil {
		if err == sql.ErrNoRows {
			return Appointment{}, err
		}
		return Appointment{}, fmt.Errorf("query appointment: %w", err)
	}

	return a, nil
}

// SlotTaken reports whether the doctor already has an uncancelled
// appointment at the given date and time.
func (r *Repository) SlotTaken(ctx context.Context, doctorID int64, date, timeOfDay string) (bool, error) {
	var taken bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND date = $2::date AND time = $3::time AND status <> 'cancelled'
		)
	`, doctorID, date, timeOfDay).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check slot: %w", err)
	}

	return taken, nil
}

func (r *Repository) Create(ctx context.Context, input AppointmentInput) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO appointments (patient_id, doctor_id, department_id, date, time, description)
		VALUES ($1, $2, $3, $4::date, $5::time, $6)
		RETURNING id
	`, input.PatientID, input.DoctorID, input.DepartmentID, input.Date, input.Time, input.Description).
		Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert appointment: %w", err)
	}

	return id, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id int64, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE appointments SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// Cancel soft-deletes by flipping the status; the row survives for
// history and prescriptions.
func (r *Repository) Cancel(ctx context.Context, id int64) error {
	return r.UpdateStatus(ctx, id, "cancelled")
}

// PatientUserID resolves the owning account of a patient row for
// ownership checks.
func (r *Repository) PatientUserID(ctx context.Context, patientID int64) (int64, error) {
	var userID int64
	err := r.db.QueryRowContext(ctx, `SELECT user_id FROM patients WHERE id = $1`, patientID).Scan(&userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("query patient owner: %w", err)
	}
	return userID, nil
}

// DoctorUserID resolves the owning account of a doctor row.
func (r *Repository) DoctorUserID(ctx context.Context, doctorID int64) (int64, error) {
	var userID int64
	err := r.db.QueryRowContext(ctx, `SELECT user_id FROM doctors WHERE id = $1`, doctorID).Scan(&userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("query doctor owner: %w", err)
	}
	return userID, nil
}
