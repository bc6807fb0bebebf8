package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/koclink/coachsync/internal/models"
)

// TeacherRepository persists the local copy of the teacher scope record.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// FindByID fetches a teacher by code.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	const query = `SELECT id, first_name, last_name, school, email, created_at, fcm_token, last_token_update
        FROM teachers WHERE id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// Upsert writes the teacher record.
func (r *TeacherRepository) Upsert(ctx context.Context, teacher *models.Teacher) error {
	const query = `INSERT INTO teachers (id, first_name, last_name, school, email, created_at, fcm_token, last_token_update)
        VALUES (:id, :first_name, :last_name, :school, :email, :created_at, :fcm_token, :last_token_update)
        ON CONFLICT (id) DO UPDATE SET
            first_name = EXCLUDED.first_name,
            last_name = EXCLUDED.last_name,
            school = EXCLUDED.school,
            email = EXCLUDED.email,
            fcm_token = EXCLUDED.fcm_token,
            last_token_update = EXCLUDED.last_token_update`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("upsert teacher %s: %w", teacher.ID, err)
	}
	return nil
}

// UpdateFCMToken stores the push token for the scope.
func (r *TeacherRepository) UpdateFCMToken(ctx context.Context, id, token string) error {
	const query = `UPDATE teachers SET fcm_token = $2, last_token_update = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, token); err != nil {
		return fmt.Errorf("update fcm token: %w", err)
	}
	return nil
}
