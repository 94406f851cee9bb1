package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Feedback struct {
	ID          int64     `json:"id"`
	PatientID   int64     `json:"patientId"`
	Message     string    `json:"message"`
	Rating      int       `json:"rating"`
	CreatedAt   time.Time `json:"createdAt"`
	PatientName string    `json:"patientName"`
}

type FeedbackInput struct {
	PatientID int64  `json:"patientId"`
	Message   string `json:"message"`
	Rating    int    `json:"rating"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]Feedback, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT f.id, f.patient_id, COALESCE(f.message, ''), COALESCE(f.rating, 0), f.created_at, u.name
		FROM feedbacks f
		JOIN patients p ON f.patient_id = p.id
		JOIN users u ON p.user_id = u.id
		ORDER BY f.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query feedbacks: %w", err)
	}
	defer rows.Close()

	feedbacks := make([]Feedback, 0)
	for rows.Next() {
		var f Feedback
		if err := rows.Scan(&f.ID, &f.PatientID, &f.Message, &f.Rating, &f.CreatedAt, &f.PatientName); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		feedbacks = append(feedbacks, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedbacks: %w", err)
	}

	return feedbacks, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (Feedback, error) {
	var f Feedback
	err := r.db.QueryRowContext(ctx, `
		SELECT f.id, f.patient_id, COALESCE(f.message, ''), COALESCE(f.rating, 0), f.created_at, u.name
		FROM feedbacks f
		JOIN patients p ON f.patient_id = p.id
		JOIN users u ON p.user_id = u.id
		WHERE f.id = $1
	`, id).Scan(&f.ID, &f.PatientID, &f.Message, &f.Rating, &f.CreatedAt, &f.PatientName)
	if err != nil {
		if err == sql.ErrNoRows {
			return Feedback{}, err
		}
		return Feedback{}, fmt.Errorf("query feedback: %w", err)
	}

	return f, nil
}

func (r *Repository) Create(ctx context.Context, input FeedbackInput) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO feedbacks (patient_id, message, rating)
		VALUES ($1, $2, $3)
		RETURNING id
	`, input.PatientID, input.Message, input.Rating).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert feedback: %w", err)
	}

	return id, nil
}

func (r *Repository) Update(ctx context.Context, id int64, message string, rating int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE feedbacks SET message = $2, rating = $3 WHERE id = $1
	`, id, message, rating)
	if err != nil {
		return fmt.Errorf("update feedback: %w", err)
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM feedbacks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete feedback: %w", err)
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

// PatientUserID resolves the owning account for ownership checks.
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
