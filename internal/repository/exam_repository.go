package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/koclink/coachsync/internal/models"
)

const examColumns = `id, student_id, name, date, total_score, notes,
        turkce_net, matematik_net, fen_net, sosyal_net, din_net, ingilizce_net`

// ExamRepository manages persistence for practice exam records.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs an ExamRepository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// FindByID fetches an exam by identifier.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.PracticeExam, error) {
	query := fmt.Sprintf("SELECT %s FROM practice_exams WHERE id = $1", examColumns)
	var exam models.PracticeExam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// FindByIDTx is FindByID inside an open transaction.
func (r *ExamRepository) FindByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.PracticeExam, error) {
	query := fmt.Sprintf("SELECT %s FROM practice_exams WHERE id = $1", examColumns)
	var exam models.PracticeExam
	if err := tx.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// ListByStudent returns a student's exams, newest first.
func (r *ExamRepository) ListByStudent(ctx context.Context, studentID string) ([]models.PracticeExam, error) {
	query := fmt.Sprintf("SELECT %s FROM practice_exams WHERE student_id = $1 ORDER BY date DESC", examColumns)
	var exams []models.PracticeExam
	if err := r.db.SelectContext(ctx, &exams, query, studentID); err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	return exams, nil
}

// Upsert writes the exam wholesale inside an open transaction.
func (r *ExamRepository) Upsert(ctx context.Context, tx *sqlx.Tx, exam *models.PracticeExam) error {
	const query = `INSERT INTO practice_exams (id, student_id, name, date, total_score, notes,
            turkce_net, matematik_net, fen_net, sosyal_net, din_net, ingilizce_net)
        VALUES (:id, :student_id, :name, :date, :total_score, :notes,
            :turkce_net, :matematik_net, :fen_net, :sosyal_net, :din_net, :ingilizce_net)
        ON CONFLICT (id) DO UPDATE SET
            student_id = EXCLUDED.student_id,
            name = EXCLUDED.name,
            date = EXCLUDED.date,
            total_score = EXCLUDED.total_score,
            notes = EXCLUDED.notes,
            turkce_net = EXCLUDED.turkce_net,
            matematik_net = EXCLUDED.matematik_net,
            fen_net = EXCLUDED.fen_net,
            sosyal_net = EXCLUDED.sosyal_net,
            din_net = EXCLUDED.din_net,
            ingilizce_net = EXCLUDED.ingilizce_net`
	if _, err := tx.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("upsert exam %s: %w", exam.ID, err)
	}
	return nil
}

// Delete removes an exam.
func (r *ExamRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM practice_exams WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	return nil
}

// DB exposes the handle for transactional callers.
func (r *ExamRepository) DB() *sqlx.DB { return r.db }
