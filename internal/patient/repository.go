package patient

import (
	"context"
	"database/sql"
	"fmt"
)

type Patient struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"userId"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Age        int64  `json:"age"`
	Gender     string `json:"gender"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	BloodGroup string `json:"bloodGroup"`
}

type PatientInput struct {
	Age        int64  `json:"age"`
	Gender     string `json:"gender"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	BloodGroup string `json:"bloodGroup"`
}

const patientColumns = `
	p.id, p.user_id, u.name, u.email, COALESCE(p.age, 0), COALESCE(p.gender, ''),
	COALESCE(p.phone, ''), COALESCE(p.address, ''), COALESCE(p.blood_group, '')`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]Patient, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+patientColumns+`
		FROM patients p
		JOIN users u ON p.user_id = u.id
		ORDER BY u.name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()

	patients := make([]Patient, 0)
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Email, &p.Age, &p.Gender, &p.Phone, &p.Address, &p.BloodGroup); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		patients = append(patients, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patients: %w", err)
	}

	return patients, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (Patient, error) {
	return r.getOne(ctx, `
		SELECT`+patientColumns+`
		FROM patients p
		JOIN users u ON p.user_id = u.id
		WHERE p.id = $1
	`, id)
}

func (r *Repository) GetByUserID(ctx context.Context, userID int64) (Patient, error) {
	return r.getOne(ctx, `
		SELECT`+patientColumns+`
		FROM patients p
		JOIN users u ON p.user_id = u.id
		WHERE p.user_id = $1
	`, userID)
}

func (r *Repository) getOne(ctx context.Context, query string, arg any) (Patient, error) {
	var p Patient
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&p.ID, &p.UserID, &p.Name, &p.Email, &p.Age, &p.Gender, &p.Phone, &p.Address, &p.BloodGroup)
	if err != nil {
		if err == sql.ErrNoRows {
			return Patient{}, err
		}
		return Patient{}, fmt.Errorf("query patient: %w", err)
	}

	return p, nil
}

func (r *Repository) Update(ctx context.Context, id int64, input PatientInput) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE patients
		SET age = $2, gender = $3, phone = $4, address = $5, blood_group = $6
		WHERE id = $1
	`, id, input.Age, input.Gender, input.Phone, input.Address, input.BloodGroup)
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
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
