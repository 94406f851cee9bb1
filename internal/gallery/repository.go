package gallery

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Item struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	ImagePath  string    `json:"imagePath"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type ItemInput struct {
	Title     string `json:"title"`
	ImagePath string `json:"imagePath"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, COALESCE(title, ''), COALESCE(image_path, ''), uploaded_at
		FROM gallery
		ORDER BY uploaded_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query gallery: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.Title, &item.ImagePath, &item.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan gallery item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gallery: %w", err)
	}

	return items, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (Item, error) {
	var item Item
	err := r.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(title, ''), COALESCE(image_path, ''), uploaded_at
		FROM gallery
		WHERE id = $1
	`, id).Scan(&item.ID, &item.Title, &item.ImagePath, &item.UploadedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Item{}, err
		}
		return Item{}, fmt.Errorf("query gallery item: %w", err)
	}

	return item, nil
}

func (r *Repository) Create(ctx context.Context, input ItemInput) (Item, error) {
	var item Item
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO gallery (title, image_path)
		VALUES ($1, $2)
		RETURNING id, COALESCE(title, ''), COALESCE(image_path, ''), uploaded_at
	`, input.Title, input.ImagePath).Scan(&item.ID, &item.Title, &item.ImagePath, &item.UploadedAt)
	if err != nil {
		return Item{}, fmt.Errorf("insert gallery item: %w", err)
	}

	return item, nil
}

func (r *Repository) Update(ctx context.Context, id int64, input ItemInput) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE gallery SET title = $2, image_path = $3 WHERE id = $1
	`, id, input.Title, input.ImagePath)
	if err != nil {
		return fmt.Errorf("update gallery item: %w", err)
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM gallery WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete gallery item: %w", err)
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
