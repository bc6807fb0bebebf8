package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/koclink/coachsync/internal/models"
)

const performanceColumns = `id, student_id, subject, topic, correct_count, wrong_count, empty_count,
        time_in_minutes, notes, date`

// PerformanceRepository manages persistence for question performance records.
type PerformanceRepository struct {
	db *sqlx.DB
}

// NewPerformanceRepository constructs a PerformanceRepository.
func NewPerformanceRepository(db *sqlx.DB) *PerformanceRepository {
	return &PerformanceRepository{db: db}
}

// FindByID fetches a performance record by identifier.
func (r *PerformanceRepository) FindByID(ctx context.Context, id string) (*models.QuestionPerformance, error) {
	query := fmt.Sprintf("SELECT %s FROM question_performances WHERE id = $1", performanceColumns)
	var perf models.QuestionPerformance
	if err := r.db.GetContext(ctx, &perf, query, id); err != nil {
		return nil, err
	}
	return &perf, nil
}

// FindByIDTx is FindByID inside an open transaction.
func (r *PerformanceRepository) FindByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.QuestionPerformance, error) {
	query := fmt.Sprintf("SELECT %s FROM question_performances WHERE id = $1", performanceColumns)
	var perf models.QuestionPerformance
	if err := tx.GetContext(ctx, &perf, query, id); err != nil {
		return nil, err
	}
	return &perf, nil
}

// ListByStudent returns a student's performance logs, newest first.
func (r *PerformanceRepository) ListByStudent(ctx context.Context, studentID string) ([]models.QuestionPerformance, error) {
	query := fmt.Sprintf("SELECT %s FROM question_performances WHERE student_id = $1 ORDER BY date DESC", performanceColumns)
	var perfs []models.QuestionPerformance
	if err := r.db.SelectContext(ctx, &perfs, query, studentID); err != nil {
		return nil, fmt.Errorf("list performances: %w", err)
	}
	return perfs, nil
}

// Upsert writes the performance wholesale inside an open transaction.
func (r *PerformanceRepository) Upsert(ctx context.Context, tx *sqlx.Tx, perf *models.QuestionPerformance) error {
	const query = `INSERT INTO question_performances (id, student_id, subject, topic, correct_count,
            wrong_count, empty_count, time_in_minutes, notes, date)
        VALUES (:id, :student_id, :subject, :topic, :correct_count,
            :wrong_count, :empty_count, :time_in_minutes, :notes, :date)
        ON CONFLICT (id) DO UPDATE SET
            student_id = EXCLUDED.student_id,
            subject = EXCLUDED.subject,
            topic = EXCLUDED.topic,
            correct_count = EXCLUDED.correct_count,
            wrong_count = EXCLUDED.wrong_count,
            empty_count = EXCLUDED.empty_count,
            time_in_minutes = EXCLUDED.time_in_minutes,
            notes = EXCLUDED.notes,
            date = EXCLUDED.date`
	if _, err := tx.NamedExecContext(ctx, query, perf); err != nil {
		return fmt.Errorf("upsert performance %s: %w", perf.ID, err)
	}
	return nil
}

// Delete removes a performance record.
func (r *PerformanceRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM question_performances WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete performance: %w", err)
	}
	return nil
}

// DB exposes the handle for transactional callers.
func (r *PerformanceRepository) DB() *sqlx.DB { return r.db }
