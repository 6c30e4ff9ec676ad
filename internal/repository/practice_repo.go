package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"palace-backend/internal/models"
)

type PracticeRepo struct {
	pool *pgxpool.Pool
}

func NewPracticeRepo(pool *pgxpool.Pool) *PracticeRepo {
	return &PracticeRepo{pool: pool}
}

func (r *PracticeRepo) CreateVerse(ctx context.Context, v *models.MemoryVerse) error {
	v.ID = uuid.New()
	query := `INSERT INTO memory_verses (id, user_id, reference, text)
		VALUES ($1, $2, $3, $4) RETURNING created_at`
	return r.pool.QueryRow(ctx, query, v.ID, v.UserID, v.Reference, v.Text).Scan(&v.CreatedAt)
}

func (r *PracticeRepo) GetVerse(ctx context.Context, id uuid.UUID) (*models.MemoryVerse, error) {
	v := &models.MemoryVerse{}
	query := `SELECT id, user_id, reference, text, created_at FROM memory_verses WHERE id = $1`
	err := r.pool.QueryRow(ctx, query, id).Scan(&v.ID, &v.UserID, &v.Reference, &v.Text, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *PracticeRepo) ListVerses(ctx context.Context, userID uuid.UUID) ([]*models.MemoryVerse, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, reference, text, created_at FROM memory_verses
		 WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var verses []*models.MemoryVerse
	for rows.Next() {
		v := &models.MemoryVerse{}
		if err := rows.Scan(&v.ID, &v.UserID, &v.Reference, &v.Text, &v.CreatedAt); err != nil {
			return nil, err
		}
		verses = append(verses, v)
	}
	return verses, rows.Err()
}

func (r *PracticeRepo) DeleteVerse(ctx context.Context, id, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM memory_verses WHERE id = $1 AND user_id = $2", id, userID)
	return err
}

func (r *PracticeRepo) CreateAttempt(ctx context.Context, a *models.PracticeAttempt) error {
	a.ID = uuid.New()
	query := `INSERT INTO practice_attempts (id, user_id, verse_id, submission)
		VALUES ($1, $2, $3, $4) RETURNING created_at`
	return r.pool.QueryRow(ctx, query, a.ID, a.UserID, a.VerseID, a.Submission).Scan(&a.CreatedAt)
}

func (r *PracticeRepo) GetAttempt(ctx context.Context, id uuid.UUID) (*models.PracticeAttempt, error) {
	a := &models.PracticeAttempt{}
	query := `SELECT id, user_id, verse_id, submission, feedback, created_at, completed_at
		FROM practice_attempts WHERE id = $1`
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.UserID, &a.VerseID, &a.Submission, &a.Feedback, &a.CreatedAt, &a.CompletedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *PracticeRepo) SetFeedback(ctx context.Context, id uuid.UUID, feedback string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE practice_attempts SET feedback = $1, completed_at = NOW() WHERE id = $2",
		feedback, id)
	return err
}

func (r *PracticeRepo) ListAttempts(ctx context.Context, verseID, userID uuid.UUID) ([]*models.PracticeAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, verse_id, submission, feedback, created_at, completed_at
		 FROM practice_attempts WHERE verse_id = $1 AND user_id = $2 ORDER BY created_at DESC`,
		verseID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*models.PracticeAttempt
	for rows.Next() {
		a := &models.PracticeAttempt{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.VerseID, &a.Submission, &a.Feedback, &a.CreatedAt, &a.CompletedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
