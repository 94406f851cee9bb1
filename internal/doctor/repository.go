package doctor

import (
	"context"
	"database/sql"
	"fmt"
)

type Doctor struct {
	ID             int64  `json:"id"`
	UserID         int64  `json:"userId"`
	DepartmentID   int64  `json:"departmentId"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	DepartmentName string `json:"departmentName"`
	Qualification  string `json:"qualification"`
	Experience     string `json:"experience"`
	Availability   string `json:"availability"`
	Photo          string `json:"photo"`
	Bio            string `json:"bio"`
}

type DoctorInput struct {
	UserID        int64  `json:"userId"`
	DepartmentID  int64  `json:"departmentId"`
	Qualification string `json:"qualification"`
	Experience    string `json:"experience"`
	Availability  string `json:"availability"`
	Photo         string `json:"photo"`
	Bio           string `json:"bio"`
}

const doctorColumns = `
	d.id, d.user_id, COALESCE(d.department_id, 0), u.name, u.email, COALESCE(dept.name, ''),
	COALESCE(d.qualification, ''), COALESCE(d.experience, ''), COALESCE(d.availability, ''),
	COALESCE(d.photo, ''), COALESCE(d.bio, '')`

const doctorJoins = `
	FROM doctors d
	JOIN users u ON d.user_id = u.id
	LEFT JOIN departments dept ON d.department_id = dept.id`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]Doctor, error) {
	return r.queryDoctors(ctx, `SELECT`+doctorColumns+doctorJoins+` ORDER BY u.name ASC`)
}

func (r *Repository) ListByDepartment(ctx context.Context, departmentID int64) ([]Doctor, error) {
	return r.queryDoctors(ctx, `SELECT`+doctorColumns+doctorJoins+` WHERE d.department_id = $1 ORDER BY u.name ASC`, departmentID)
}

func (r *Repository) queryDoctors(ctx context.Context, query string, args ...any) ([]Doctor, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query doctors: %w", err)
	}
	defer rows.Close()

	doctors := make([]Doctor, 0)
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.UserID, &d.DepartmentID, &d.Name, &d.Email, &d.DepartmentName,
			&d.Qualification, &d.Experience, &d.Availability, &d.Photo, &d.Bio); err != nil {
			return nil, fmt.Errorf("scan doctor: %w", err)
		}
		doctors = append(doctors, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate doctors: %w", err)
	}

	return doctors, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (Doctor, error) {
	var d Doctor
	err := r.db.QueryRowContext(ctx, `SELECT`+doctorColumns+doctorJoins+` WHERE d.id = $1`, id).
		Scan(&d.ID, &d.UserID, &d.DepartmentID, &d.Name, &d.Email, &d.DepartmentName,
			&d.Qualification, &d.Experience, &d.Availability, &d.Photo, &d.Bio)
	if err != nil {
		if err == sql.ErrNoRows {
			return Doctor{}, err
		}
		return Doctor{}, fmt.Errorf("query doctor: %w", err)
	}

	return d, nil
}

func (r *Repository) Create(ctx context.Context, input DoctorInput) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO doctors (user_id, department_id, qualification, experience, availability, photo, bio)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, input.UserID, input.DepartmentID, input.Qualification, input.Experience, input.Availability, input.Photo, input.Bio).
		Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert doctor: %w", err)
	}

	return id, nil
}

func (r *Repository) Update(ctx context.Context, id int64, input DoctorInput) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE doctors
		SET department_id = $2, qualification = $3, experience = $4, availability = $5, photo = $6, bio = $7
		WHERE id = $1
	`, id, input.DepartmentID, input.Qualification, input.Experience, input.Availability, input.Photo, input.Bio)
	if err != nil {
		return fmt.Errorf("update doctor: %w", err)
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete doctor: %w", err)
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
