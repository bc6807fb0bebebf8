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

type studentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	List(ctx context.Context, teacherID string, filter models.StudentFilter) ([]models.Student, int, error)
	Upsert(ctx context.Context, tx *sqlx.Tx, student *models.Student) error
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
}

type studentExamLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.PracticeExam, error)
}

type studentPerformanceLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.QuestionPerformance, error)
}

type studentGateway interface {
	SyncStudent(ctx context.Context, student *models.Student, teacherID string) error
	DeleteStudentCascade(ctx context.Context, studentID string, examIDs, perfIDs []string) error
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateStudentRequest holds the payload for registering a student locally.
type CreateStudentRequest struct {
	FirstName     string   `json:"first_name" validate:"required,min=1,max=100"`
	LastName      string   `json:"last_name" validate:"required,min=1,max=100"`
	School        string   `json:"school" validate:"max=200"`
	Grade         int      `json:"grade" validate:"omitempty,gte=1,lte=12"`
	Branch        string   `json:"branch" validate:"max=20"`
	StudentNumber string   `json:"student_number" validate:"max=20"`
	Notes         string   `json:"notes"`
	Targets       *Targets `json:"targets"`
}

// UpdateStudentRequest holds the payload for editing a student.
type UpdateStudentRequest struct {
	FirstName     string   `json:"first_name" validate:"required,min=1,max=100"`
	LastName      string   `json:"last_name" validate:"required,min=1,max=100"`
	School        string   `json:"school" validate:"max=200"`
	Grade         int      `json:"grade" validate:"omitempty,gte=1,lte=12"`
	Branch        string   `json:"branch" validate:"max=20"`
	StudentNumber string   `json:"student_number" validate:"max=20"`
	Notes         string   `json:"notes"`
	Targets       *Targets `json:"targets"`
}

// Targets carries goal values; nil leaves the stored targets untouched.
type Targets struct {
	TotalScore   float64 `json:"total_score" validate:"gte=0,lte=500"`
	TurkceNet    float64 `json:"turkce_net" validate:"gte=0"`
	MatematikNet float64 `json:"matematik_net" validate:"gte=0"`
	FenNet       float64 `json:"fen_net" validate:"gte=0"`
	SosyalNet    float64 `json:"sosyal_net" validate:"gte=0"`
	DinNet       float64 `json:"din_net" validate:"gte=0"`
	IngilizceNet float64 `json:"ingilizce_net" validate:"gte=0"`
}

// StudentService handles student use-cases for the active teacher scope.
// Local writes push mirror documents to the remote store best effort; a
// remote failure is logged, never blocks the local write.
type StudentService struct {
	db        *sqlx.DB
	repo      studentRepository
	exams     studentExamLister
	perfs     studentPerformanceLister
	gateway   studentGateway
	cache     summaryCache
	validator *validator.Validate
	logger    *zap.Logger

	summaryTTL time.Duration
}

// NewStudentService constructs the student service.
func NewStudentService(db *sqlx.DB, repo studentRepository, exams studentExamLister,
	perfs studentPerformanceLister, gateway studentGateway, cache summaryCache,
	validate *validator.Validate, logger *zap.Logger, summaryTTL time.Duration) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if summaryTTL <= 0 {
		summaryTTL = 5 * time.Minute
	}
	return &StudentService{
		db:         db,
		repo:       repo,
		exams:      exams,
		perfs:      perfs,
		gateway:    gateway,
		cache:      cache,
		validator:  validate,
		logger:     logger,
		summaryTTL: summaryTTL,
	}
}

// List returns students in the scope with pagination metadata.
func (s *StudentService) List(ctx context.Context, teacherID string, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, teacherID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one student, scope checked.
func (s *StudentService) Get(ctx context.Context, teacherID, id string) (*models.Student, error) {
	return s.load(ctx, teacherID, id)
}

// Create registers a locally managed student and mirrors it remotely. New
// students start solo and offline; they flip online when the companion app
// connects.
func (s *StudentService) Create(ctx context.Context, teacherID string, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student := &models.Student{
		ID:             uuid.NewString(),
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		School:         req.School,
		Grade:          req.Grade,
		Branch:         req.Branch,
		StudentNumber:  req.StudentNumber,
		Notes:          req.Notes,
		TeacherID:      teacherID,
		Status:         models.StatusSolo,
		ConnectionType: models.ConnectionOffline,
		CreatedAt:      time.Now().UTC(),
	}
	if student.Grade == 0 {
		student.Grade = models.DefaultGrade
	}
	student.ApplyDefaultTargets()
	applyTargets(student, req.Targets)

	if err := s.save(ctx, student); err != nil {
		return nil, err
	}
	s.push(ctx, student, teacherID)
	return student, nil
}

// Update edits a student's profile fields and targets.
func (s *StudentService) Update(ctx context.Context, teacherID, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := s.load(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}

	student.FirstName = req.FirstName
	student.LastName = req.LastName
	student.School = req.School
	if req.Grade != 0 {
		student.Grade = req.Grade
	}
	student.Branch = req.Branch
	student.StudentNumber = req.StudentNumber
	student.Notes = req.Notes
	applyTargets(student, req.Targets)

	if err := s.save(ctx, student); err != nil {
		return nil, err
	}
	s.invalidateSummary(ctx, id)
	s.push(ctx, student, teacherID)
	return student, nil
}

// Delete removes the student with its exams and performances on both sides.
func (s *StudentService) Delete(ctx context.Context, teacherID, id string) error {
	if _, err := s.load(ctx, teacherID, id); err != nil {
		return err
	}

	exams, err := s.exams.ListByStudent(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student exams")
	}
	perfs, err := s.perfs.ListByStudent(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student performances")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.invalidateSummary(ctx, id)

	examIDs := make([]string, len(exams))
	for i := range exams {
		examIDs[i] = exams[i].ID
	}
	perfIDs := make([]string, len(perfs))
	for i := range perfs {
		perfIDs[i] = perfs[i].ID
	}
	if err := s.gateway.DeleteStudentCascade(ctx, id, examIDs, perfIDs); err != nil {
		s.logger.Warn("remote cascade delete failed", zap.String("student_id", id), zap.Error(err))
	}
	return nil
}

// Summary returns the derived exam statistics for a student, cached.
func (s *StudentService) Summary(ctx context.Context, teacherID, id string) (*models.StudentSummary, error) {
	key := repository.SummaryCacheKey(id)
	var cached models.StudentSummary
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("summary cache read failed", zap.Error(err))
	}

	student, err := s.load(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}
	exams, err := s.exams.ListByStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student exams")
	}

	summary := student.Summarize(exams)
	if err := s.cache.Set(ctx, key, summary, s.summaryTTL); err != nil {
		s.logger.Warn("summary cache write failed", zap.Error(err))
	}
	return &summary, nil
}

func (s *StudentService) load(ctx context.Context, teacherID, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
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

func (s *StudentService) save(ctx context.Context, student *models.Student) error {
	err := repository.RunInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return s.repo.Upsert(ctx, tx, student)
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store student")
	}
	return nil
}

func (s *StudentService) push(ctx context.Context, student *models.Student, teacherID string) {
	if err := s.gateway.SyncStudent(ctx, student, teacherID); err != nil {
		s.logger.Warn("remote student sync failed", zap.String("student_id", student.ID), zap.Error(err))
	}
}

func (s *StudentService) invalidateSummary(ctx context.Context, studentID string) {
	if err := s.cache.DeleteByPattern(ctx, repository.SummaryCacheKey(studentID)); err != nil {
		s.logger.Warn("summary cache invalidation failed", zap.Error(err))
	}
}

func applyTargets(student *models.Student, t *Targets) {
	if t == nil {
		return
	}
	student.TargetTotalScore = t.TotalScore
	student.TargetTurkceNet = t.TurkceNet
	student.TargetMatematikNet = t.MatematikNet
	student.TargetFenNet = t.FenNet
	student.TargetSosyalNet = t.SosyalNet
	student.TargetDinNet = t.DinNet
	student.TargetIngilizceNet = t.IngilizceNet
}
