package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/koclink/coachsync/internal/models"
	"github.com/koclink/coachsync/internal/sync"
	appErrors "github.com/koclink/coachsync/pkg/errors"
)

type bulkImporter interface {
	ImportParsed(ctx context.Context, students []models.Student,
		exams []models.PracticeExam, perfs []models.QuestionPerformance) (sync.Stats, error)
}

// ImportRequest carries already-parsed rows for bulk insertion. Row parsing
// (CSV/XLSX handling) happens in the client; this endpoint only validates and
// stores.
type ImportRequest struct {
	Students     []StudentImportRow     `json:"students" validate:"dive"`
	Exams        []ExamImportRow        `json:"exams" validate:"dive"`
	Performances []PerformanceImportRow `json:"performances" validate:"dive"`
}

// StudentImportRow is a parsed student record.
type StudentImportRow struct {
	ID        string `json:"id" validate:"omitempty,uuid4"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	School    string `json:"school"`
	Grade     int    `json:"grade" validate:"omitempty,gte=1,lte=12"`
	Branch    string `json:"branch"`
}

// ExamImportRow is a parsed exam record.
type ExamImportRow struct {
	ID         string  `json:"id" validate:"omitempty,uuid4"`
	StudentID  string  `json:"student_id" validate:"required,uuid4"`
	Name       string  `json:"name" validate:"required"`
	Date       string  `json:"date"`
	TotalScore float64 `json:"total_score" validate:"gte=0,lte=500"`
}

// PerformanceImportRow is a parsed performance record.
type PerformanceImportRow struct {
	ID           string `json:"id" validate:"omitempty,uuid4"`
	StudentID    string `json:"student_id" validate:"required,uuid4"`
	Subject      string `json:"subject" validate:"required"`
	Topic        string `json:"topic" validate:"required"`
	CorrectCount int    `json:"correct_count" validate:"gte=0"`
	WrongCount   int    `json:"wrong_count" validate:"gte=0"`
	EmptyCount   int    `json:"empty_count" validate:"gte=0"`
}

// ImportSummary reports what a bulk import did.
type ImportSummary struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
}

// ImportService feeds bulk rows through the reconciler's upsert path so
// imported data behaves exactly like synced data.
type ImportService struct {
	reconciler bulkImporter
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewImportService constructs the import service.
func NewImportService(reconciler bulkImporter, validate *validator.Validate, logger *zap.Logger) *ImportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{reconciler: reconciler, validator: validate, logger: logger}
}

// Import validates and stores the rows for the scope.
func (s *ImportService) Import(ctx context.Context, teacherID string, req ImportRequest) (*ImportSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import payload")
	}

	students := make([]models.Student, 0, len(req.Students))
	for _, row := range req.Students {
		student := models.Student{
			ID:        row.ID,
			FirstName: row.FirstName,
			LastName:  row.LastName,
			School:    row.School,
			Grade:     row.Grade,
			Branch:    row.Branch,
			TeacherID: teacherID,
		}
		if student.Grade == 0 {
			student.Grade = models.DefaultGrade
		}
		student.ApplyDefaultTargets()
		students = append(students, student)
	}

	exams := make([]models.PracticeExam, 0, len(req.Exams))
	for _, row := range req.Exams {
		exam := models.PracticeExam{
			ID:         row.ID,
			StudentID:  row.StudentID,
			Name:       row.Name,
			TotalScore: row.TotalScore,
		}
		if date, ok := parseDay(row.Date); ok {
			exam.Date = date
		}
		exams = append(exams, exam)
	}

	perfs := make([]models.QuestionPerformance, 0, len(req.Performances))
	for _, row := range req.Performances {
		perfs = append(perfs, models.QuestionPerformance{
			ID:           row.ID,
			StudentID:    row.StudentID,
			Subject:      row.Subject,
			Topic:        row.Topic,
			CorrectCount: row.CorrectCount,
			WrongCount:   row.WrongCount,
			EmptyCount:   row.EmptyCount,
		})
	}

	stats, err := s.reconciler.ImportParsed(ctx, students, exams, perfs)
	if err != nil {
		return nil, err
	}
	s.logger.Info("bulk import completed",
		zap.String("teacher_id", teacherID), zap.Int("applied", stats.Applied))
	return &ImportSummary{Applied: stats.Applied, Skipped: stats.Skipped}, nil
}

func parseDay(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
