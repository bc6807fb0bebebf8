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

type performanceRepository interface {
	FindByID(ctx context.Context, id string) (*models.QuestionPerformance, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.QuestionPerformance, error)
	Upsert(ctx context.Context, tx *sqlx.Tx, perf *models.QuestionPerformance) error
	Delete(ctx context.Context, id string) error
}

type performanceGateway interface {
	SyncPerformance(ctx context.Context, perf *models.QuestionPerformance, teacherID string) error
	DeletePerformance(ctx context.Context, perfID string) error
}

// PerformanceRequest is the payload for logging question practice.
type PerformanceRequest struct {
	StudentID     string    `json:"student_id" validate:"required,uuid4"`
	Subject       string    `json:"subject" validate:"required,min=1,max=50"`
	Topic         string    `json:"topic" validate:"required,min=1,max=200"`
	CorrectCount  int       `json:"correct_count" validate:"gte=0"`
	WrongCount    int       `json:"wrong_count" validate:"gte=0"`
	EmptyCount    int       `json:"empty_count" validate:"gte=0"`
	TimeInMinutes int       `json:"time_in_minutes" validate:"gte=0"`
	Notes         string    `json:"notes"`
	Date          time.Time `json:"date"`
}

// PerformanceService handles question performance use-cases.
type PerformanceService struct {
	db        *sqlx.DB
	repo      performanceRepository
	students  studentLoader
	gateway   performanceGateway
	cache     summaryCache
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPerformanceService constructs the performance service.
func NewPerformanceService(db *sqlx.DB, repo performanceRepository, students studentLoader,
	gateway performanceGateway, cache summaryCache, validate *validator.Validate, logger *zap.Logger) *PerformanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PerformanceService{db: db, repo: repo, students: students, gateway: gateway,
		cache: cache, validator: validate, logger: logger}
}

// ListByStudent returns a student's performance logs, newest first.
func (s *PerformanceService) ListByStudent(ctx context.Context, teacherID, studentID string) ([]models.QuestionPerformance, error) {
	if _, err := s.loadStudent(ctx, teacherID, studentID); err != nil {
		return nil, err
	}
	perfs, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list performances")
	}
	return perfs, nil
}

// Create records a new performance log and mirrors it remotely.
func (s *PerformanceService) Create(ctx context.Context, teacherID string, req PerformanceRequest) (*models.QuestionPerformance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid performance payload")
	}
	if _, err := s.loadStudent(ctx, teacherID, req.StudentID); err != nil {
		return nil, err
	}

	perf := &models.QuestionPerformance{ID: uuid.NewString()}
	applyPerformanceRequest(perf, req)

	if err := s.save(ctx, perf); err != nil {
		return nil, err
	}
	s.afterWrite(ctx, perf, teacherID)
	return perf, nil
}

// Update edits an existing performance log.
func (s *PerformanceService) Update(ctx context.Context, teacherID, id string, req PerformanceRequest) (*models.QuestionPerformance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid performance payload")
	}

	perf, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadStudent(ctx, teacherID, perf.StudentID); err != nil {
		return nil, err
	}

	applyPerformanceRequest(perf, req)
	if err := s.save(ctx, perf); err != nil {
		return nil, err
	}
	s.afterWrite(ctx, perf, teacherID)
	return perf, nil
}

// Delete removes a performance log locally and remotely.
func (s *PerformanceService) Delete(ctx context.Context, teacherID, id string) error {
	perf, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.loadStudent(ctx, teacherID, perf.StudentID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete performance")
	}
	if err := s.gateway.DeletePerformance(ctx, id); err != nil {
		s.logger.Warn("remote performance delete failed", zap.String("performance_id", id), zap.Error(err))
	}
	return nil
}

func (s *PerformanceService) load(ctx context.Context, id string) (*models.QuestionPerformance, error) {
	perf, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "performance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load performance")
	}
	return perf, nil
}

func (s *PerformanceService) loadStudent(ctx context.Context, teacherID, studentID string) (*models.Student, error) {
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

func (s *PerformanceService) save(ctx context.Context, perf *models.QuestionPerformance) error {
	err := repository.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return s.repo.Upsert(ctx, tx, perf)
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store performance")
	}
	return nil
}

func (s *PerformanceService) afterWrite(ctx context.Context, perf *models.QuestionPerformance, teacherID string) {
	if err := s.cache.DeleteByPattern(ctx, repository.SummaryCacheKey(perf.StudentID)); err != nil {
		s.logger.Warn("summary cache invalidation failed", zap.Error(err))
	}
	if err := s.gateway.SyncPerformance(ctx, perf, teacherID); err != nil {
		s.logger.Warn("remote performance sync failed", zap.String("performance_id", perf.ID), zap.Error(err))
	}
}

func applyPerformanceRequest(perf *models.QuestionPerformance, req PerformanceRequest) {
	perf.StudentID = req.StudentID
	perf.Subject = req.Subject
	perf.Topic = req.Topic
	perf.CorrectCount = req.CorrectCount
	perf.WrongCount = req.WrongCount
	perf.EmptyCount = req.EmptyCount
	perf.TimeInMinutes = req.TimeInMinutes
	perf.Notes = req.Notes
	perf.Date = req.Date
	if perf.Date.IsZero() {
		perf.Date = time.Now().UTC()
	}
}
