package department

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Department struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	CreatedAt   time.Time `json:"createdAt"`
}

type DepartmentInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]Department, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(description, ''), COALESCE(image, ''), created_at
		FROM departments
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query departments: %w", err)
	}
	defer rows.Close()

	departments := make([]Department, 0)
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.Image, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		departments = append(departments, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate departments: %w", err)
	}

	return departments, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (Department, error) {
	var d Department
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(description, ''), COALESCE(image, ''), created_at
		FROM departments
		WHERE id = $1
	`, id).Scan(&d.ID, &d.Name, &d.Description, &d.Image, &d.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Department{}, err
		}
		return Department{}, fmt.Errorf("query department: %w", err)
	}

	return d, nil
}

func (r *Repository) Create(ctx context.Context, input DepartmentInput) (Department, error) {
	var d Department
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO departments (name, description, image)
		VALUES ($1, $2, $3)
		RETURNING id, name, COALESCE(description, ''), COALESCE(image, ''), created_at
	`, input.Name, input.Description, input.Image).
		Scan(&d.ID, &d.Name, &d.Description, &d.Image, &d.CreatedAt)
	if err != nil {
		return Department{}, fmt.Errorf("insert department: %w", err)
	}

	return d, nil
}

func (r *Repository) Update(ctx context.Context, id int64, input DepartmentInput) (Department, error) {
	var d Department
	err := r.db.QueryRowContext(ctx, `
		UPDATE departments
		SET name = $2, description = $3, image = $4
		WHERE id = $1
		RETURNING id, name, COALESCE(description, ''), COALESCE(image, ''), created_at
	`, id, input.Name, input.Description, input.Image).
		Scan(&d.ID, &d.Name, &d.Description, &d.Image, &d.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Department{}, err
		}
		return Department{}, fmt.Errorf("update department: %w", err)
	}

	return d, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete department: %w", err)
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
