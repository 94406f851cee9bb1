package prescription

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Prescription struct {
	ID            int64     `json:"id"`
	AppointmentID int64     `json:"appointmentId"`
	DoctorID      int64     `json:"doctorId"`
	PatientID     int64     `json:"patientId"`
	Diagnosis     string    `json:"diagnosis"`
	Medicines     string    `json:"medicines"`
	Instructions  string    `json:"instructions"`
	CreatedAt     time.Time `json:"createdAt"`
	PatientName   string    `json:"patientName"`
	DoctorName    string    `json:"doctorName"`
}

type PrescriptionInput struct {
	AppointmentID int64  `json:"appointmentId"`
	DoctorID      int64  `json:"doctorId"`
	PatientID     int64  `json:"patientId"`
	Diagnosis     string `json:"diagnosis"`
	Medicines     string `json:"medicines"`
	Instructions  string `json:"instructions"`
}

const prescriptionColumns = `
	pr.id, pr.appointment_id, pr.doctor_id, pr.patient_id,
	COALESCE(pr.diagnosis, ''), COALESCE(pr.medicines, ''), COALESCE(pr.instructions, ''),
	pr.created_at, up.name, ud.name`

const prescriptionJoins = `
	FROM prescriptions pr
	JOIN patients p ON pr.patient_id = p.id
	JOIN users up ON p.user_id = up.id
	JOIN doctors doc ON pr.doctor_id = doc.id
	JOIN users ud ON doc.user_id = ud.id`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]Prescription, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT`+prescriptionColumns+prescriptionJoins+` ORDER BY pr.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query prescriptions: %w", err)
	}
	defer rows.Close()

	prescriptions := make([]Prescription, 0)
	for rows.Next() {
		var p Prescription
		if err := rows.Scan(&p.ID, &p.AppointmentID, &p.DoctorID, &p.PatientID,
			&p.Diagnosis, &p.Medicines, &p.Instructions, &p.CreatedAt, &p.PatientName, &p.DoctorName); err != nil {
			return nil, fmt.Errorf("scan prescription: %w", err)
		}
		prescriptions = append(prescriptions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prescriptions: %w", err)
	}

	return prescriptions, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (Prescription, error) {
	var p Prescription
	err := r.db.QueryRowContext(ctx, `SELECT`+prescriptionColumns+prescriptionJoins+` WHERE pr.id = $1`, id).
		Scan(&p.ID, &p.AppointmentID, &p.DoctorID, &p.PatientID,
			&p.Diagnosis, &p.Medicines, &p.Instructions, &p.CreatedAt, &p.PatientName, &p.DoctorName)
	if err != nil {
		if err == sql.ErrNoRows {
			return Prescription{}, err
		}
		return Prescription{}, fmt.Errorf("query prescription: %w", err)
	}

	return p, nil
}

func (r *Repository) Create(ctx context.Context, input PrescriptionInput) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO prescriptions (appointment_id, doctor_id, patient_id, diagnosis, medicines, instructions)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, input.AppointmentID, input.DoctorID, input.PatientID, input.Diagnosis, input.Medicines, input.Instructions).
		Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert prescription: %w", err)
	}

	return id, nil
}

func (r *Repository) Update(ctx context.Context, id int64, input PrescriptionInput) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE prescriptions
		SET diagnosis = $2, medicines = $3, instructions = $4
		WHERE id = $1
	`, id, input.Diagnosis, input.Medicines, input.Instructions)
	if err != nil {
		return fmt.Errorf("update prescription: %w", err)
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

func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM prescriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete prescription: %w", err)
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
