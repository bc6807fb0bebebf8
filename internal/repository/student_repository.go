package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/koclink/coachsync/internal/models"
)

const studentColumns = `id, first_name, last_name, school, grade, branch, student_number, notes,
        teacher_id, status, connection_type, profile_image, created_at, approved_at, last_sync_date,
        target_total_score, target_turkce_net, target_matematik_net, target_fen_net,
        target_sosyal_net, target_din_net, target_ingilizce_net`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID fetches a student by its stable identifier.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByIDTx is FindByID inside an open transaction.
func (r *StudentRepository) FindByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var student models.Student
	if err := tx.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// List returns students for a teacher scope matching the filter.
func (r *StudentRepository) List(ctx context.Context, teacherID string, filter models.StudentFilter) ([]models.Student, int, error) {
	conditions := []string{"teacher_id = $1"}
	args := []interface{}{teacherID}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(first_name) LIKE $%d OR LOWER(last_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	where := strings.Join(conditions, " AND ")

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"first_name": "first_name",
		"last_name":  "last_name",
		"created_at": "created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM students WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d",
		studentColumns, where, column, order, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM students WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// ListByTeacher returns every student in the scope, used by export and the
// full resync push.
func (r *StudentRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE teacher_id = $1 ORDER BY created_at", studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, teacherID); err != nil {
		return nil, fmt.Errorf("list students by teacher: %w", err)
	}
	return students, nil
}

// Upsert writes the student record wholesale, creating it when absent. The
// remote record always wins at full-record granularity.
func (r *StudentRepository) Upsert(ctx context.Context, tx *sqlx.Tx, student *models.Student) error {
	const query = `INSERT INTO students (id, first_name, last_name, school, grade, branch, student_number, notes,
            teacher_id, status, connection_type, profile_image, created_at, approved_at, last_sync_date,
            target_total_score, target_turkce_net, target_matematik_net, target_fen_net,
            target_sosyal_net, target_din_net, target_ingilizce_net)
        VALUES (:id, :first_name, :last_name, :school, :grade, :branch, :student_number, :notes,
            :teacher_id, :status, :connection_type, :profile_image, :created_at, :approved_at, :last_sync_date,
            :target_total_score, :target_turkce_net, :target_matematik_net, :target_fen_net,
            :target_sosyal_net, :target_din_net, :target_ingilizce_net)
        ON CONFLICT (id) DO UPDATE SET
            first_name = EXCLUDED.first_name,
            last_name = EXCLUDED.last_name,
            school = EXCLUDED.school,
            grade = EXCLUDED.grade,
            branch = EXCLUDED.branch,
            student_number = EXCLUDED.student_number,
            notes = EXCLUDED.notes,
            teacher_id = EXCLUDED.teacher_id,
            status = EXCLUDED.status,
            connection_type = EXCLUDED.connection_type,
            approved_at = EXCLUDED.approved_at,
            last_sync_date = EXCLUDED.last_sync_date,
            target_total_score = EXCLUDED.target_total_score,
            target_turkce_net = EXCLUDED.target_turkce_net,
            target_matematik_net = EXCLUDED.target_matematik_net,
            target_fen_net = EXCLUDED.target_fen_net,
            target_sosyal_net = EXCLUDED.target_sosyal_net,
            target_din_net = EXCLUDED.target_din_net,
            target_ingilizce_net = EXCLUDED.target_ingilizce_net`
	if _, err := tx.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("upsert student %s: %w", student.ID, err)
	}
	return nil
}

// UpdateStatus transitions a student's approval status.
func (r *StudentRepository) UpdateStatus(ctx context.Context, id, status string) error {
	const query = `UPDATE students SET status = $2, approved_at = CASE WHEN $2 = 'approved' THEN NOW() ELSE approved_at END WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update student status: %w", err)
	}
	return nil
}

// Delete removes the student and cascades to its exams and performances in
// one transaction. Cascade is explicit: children are keyed by student_id.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	return RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM practice_exams WHERE student_id = $1", id); err != nil {
			return fmt.Errorf("delete student exams: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM question_performances WHERE student_id = $1", id); err != nil {
			return fmt.Errorf("delete student performances: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id); err != nil {
			return fmt.Errorf("delete student: %w", err)
		}
		return nil
	})
}

// SyncAllowed reports whether the student exists in the scope with a status
// that accepts incoming exam/performance changes.
func (r *StudentRepository) SyncAllowed(ctx context.Context, studentID, teacherID string) (bool, error) {
	const query = `SELECT 1 FROM students WHERE id = $1 AND teacher_id = $2 AND status IN ($3, $4) LIMIT 1`
	var one int
	err := r.db.GetContext(ctx, &one, query, studentID, teacherID, models.StatusApproved, models.StatusSolo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check sync allowed: %w", err)
	}
	return true, nil
}

// Exists reports presence by identifier.
func (r *StudentRepository) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.GetContext(ctx, &one, "SELECT 1 FROM students WHERE id = $1 LIMIT 1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check student exists: %w", err)
	}
	return true, nil
}

// DB exposes the handle for transactional callers.
func (r *StudentRepository) DB() *sqlx.DB { return r.db }
