package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/koclink/coachsync/internal/models"
	"github.com/koclink/coachsync/internal/repository"
	appErrors "github.com/koclink/coachsync/pkg/errors"
)

type examRepository interface {
	FindByID(ctx context.Context, id string) (*models.PracticeExam, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.PracticeExam, error)
	Upsert(ctx context.Context, tx *sqlx.Tx, exam *models.PracticeExam) error
	Delete(ctx context.Context, id string) error
}

type examGateway interface {
	SyncExam(ctx context.Context, exam *models.PracticeExam, teacherID string) error
	DeleteExam(ctx context.Context, examID string) error
}

type studentLoader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// ExamRequest is the payload for creating or updating a practice exam.
// TotalScore outside [0,500] is rejected, never clamped.
type ExamRequest struct {
	StudentID    string    `json:"student_id" validate:"required,uuid4"`
	Name         string    `json:"name" validate:"required,min=1,max=200"`
	Date         time.Time `json:"date"`
	TotalScore   float64   `json:"total_score" validate:"gte=0,lte=500"`
	Notes        string    `json:"notes"`
	TurkceNet    float64   `json:"turkce_net" validate:"gte=0"`
	MatematikNet float64   `json:"matematik_net" validate:"gte=0"`
	FenNet       float64   `json:"fen_net" validate:"gte=0"`
	SosyalNet    float64   `json:"sosyal_net" validate:"gte=0"`
	DinNet       float64   `json:"din_net" validate:"gte=0"`
	IngilizceNet float64   `json:"ingilizce_net" validate:"gte=0"`
}

// ExamService handles practice exam use-cases.
type ExamService struct {
	db        *sqlx.DB
	repo      examRepository
	students  studentLoader
	gateway   examGateway
	cache     summaryCache
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExamService constructs the exam service.
func NewExamService(db *sqlx.DB, repo examRepository, students studentLoader,
	gateway examGateway, cache summaryCache, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{db: db, repo: repo, students: students, gateway: gateway,
		cache: cache, validator: validate, logger: logger}
}

// ListByStudent returns a student's exams, newest first.
func (s *ExamService) ListByStudent(ctx context.Context, teacherID, studentID string) ([]models.PracticeExam, error) {
	if _, err := s.loadStudent(ctx, teacherID, studentID); err != nil {
		return nil, err
	}
	exams, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	return exams, nil
}

// Create records a new exam result and mirrors it remotely.
func (s *ExamService) Create(ctx context.Context, teacherID string, req ExamRequest) (*models.PracticeExam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	if _, err := s.loadStudent(ctx, teacherID, req.StudentID); err != nil {
		return nil, err
	}

	exam := &models.PracticeExam{ID: uuid.NewString()}
	applyExamRequest(exam, req)

	if err := s.save(ctx, exam); err != nil {
		return nil, err
	}
	s.afterWrite(ctx, exam, teacherID)
	return exam, nil
}

// Update edits an existing exam result.
func (s *ExamService) Update(ctx context.Context, teacherID, id string, req ExamRequest) (*models.PracticeExam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}

	exam, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadStudent(ctx, teacherID, exam.StudentID); err != nil {
		return nil, err
	}

	applyExamRequest(exam, req)
	if err := s.save(ctx, exam); err != nil {
		return nil, err
	}
	s.afterWrite(ctx, exam, teacherID)
	return exam, nil
}

// Delete removes an exam locally and remotely.
func (s *ExamService) Delete(ctx context.Context, teacherID, id string) error {
	exam, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.loadStudent(ctx, teacherID, exam.StudentID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete exam")
	}
	s.invalidateSummary(ctx, exam.StudentID)
	if err := s.gateway.DeleteExam(ctx, id); err != nil {
		s.logger.Warn("remote exam delete failed", zap.String("exam_id", id), zap.Error(err))
	}
	return nil
}

func (s *ExamService) load(ctx context.Context, id string) (*models.PracticeExam, error) {
	exam, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	return exam, nil
}

func (s *ExamService) loadStudent(ctx context.Context, teacherID, studentID string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student belongs to another scope")
	}
	return student, nil
}

func (s *ExamService) save(ctx context.Context, exam *models.PracticeExam) error {
	err := repository.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return s.repo.Upsert(ctx, tx, exam)
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store exam")
	}
	return nil
}

func (s *ExamService) afterWrite(ctx context.Context, exam *models.PracticeExam, teacherID string) {
	s.invalidateSummary(ctx, exam.StudentID)
	if err := s.gateway.SyncExam(ctx, exam, teacherID); err != nil {
		s.logger.Warn("remote exam sync failed", zap.String("exam_id", exam.ID), zap.Error(err))
	}
}

func (s *ExamService) invalidateSummary(ctx context.Context, studentID string) {
	if err := s.cache.DeleteByPattern(ctx, repository.SummaryCacheKey(studentID)); err != nil {
		s.logger.Warn("summary cache invalidation failed", zap.Error(err))
	}
}

func applyExamRequest(exam *models.PracticeExam, req ExamRequest) {
	exam.StudentID = req.StudentID
	exam.Name = req.Name
	exam.Date = req.Date
	if exam.Date.IsZero() {
		exam.Date = time.Now().UTC()
	}
	exam.TotalScore = req.TotalScore
	exam.Notes = req.Notes
	exam.TurkceNet = req.TurkceNet
	exam.MatematikNet = req.MatematikNet
	exam.FenNet = req.FenNet
	exam.SosyalNet = req.SosyalNet
	exam.DinNet = req.DinNet
	exam.IngilizceNet = req.IngilizceNet
}
