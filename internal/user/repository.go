package user

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    bool      `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type UserUpdate struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Status bool   `json:"status"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]User, error) {
	return r.queryUsers(ctx, `
		SELECT id, name, email, role, status, created_at
		FROM users
		ORDER BY created_at DESC
	`)
}

func (r *Repository) Recent(ctx context.Context, limit int) ([]User, error) {
	if limit <= 0 {
		limit = 10
	}
	return r.queryUsers(ctx, `
		SELECT id, name, email, role, status, created_at
		FROM users
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
}

func (r *Repository) queryUsers(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Status, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, status, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Status, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return User{}, err
		}
		return User{}, fmt.Errorf("query user: %w", err)
	}

	return u, nil
}

func (r *Repository) Update(ctx context.Context, id int64, update UserUpdate) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET name = $2, email = $3, role = $4, status = $5 WHERE id = $1
	`, id, update.Name, update.Email, update.Role, update.Status)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	return requireAffected(res)
}

// SetStatus soft-activates or soft-deactivates an account. Deactivation
// is the preferred removal path while sessions or clinical rows still
// reference the user.
func (r *Repository) SetStatus(ctx context.Context, id int64, status bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}

	return requireAffected(res)
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
