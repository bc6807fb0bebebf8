package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/koclink/coachsync/internal/models"
	"github.com/koclink/coachsync/internal/sync"
	appErrors "github.com/koclink/coachsync/pkg/errors"
)

type reconcilerFacade interface {
	FetchAndImportAll(ctx context.Context, teacherID string) error
	Status() sync.Status
}

type listenerFacade interface {
	StartListening(ctx context.Context, teacherID string) error
	StopListening()
	Running() bool
	PendingCount() int
}

type pushGateway interface {
	SyncAll(ctx context.Context, teacherID string, students []models.Student,
		examsByStudent map[string][]models.PracticeExam,
		perfsByStudent map[string][]models.QuestionPerformance) error
}

type scopeStudentLister interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Student, error)
}

// SyncStatus is the API view of the engine state.
type SyncStatus struct {
	IsSyncing    bool   `json:"is_syncing"`
	LastSyncDate string `json:"last_sync_date,omitempty"`
	SyncError    string `json:"sync_error,omitempty"`
	Listening    bool   `json:"listening"`
	PendingCount int    `json:"pending_count"`
}

// SyncService is the facade over the reconciler, the subscription manager and
// the outbound push path.
type SyncService struct {
	reconciler reconcilerFacade
	listeners  listenerFacade
	gateway    pushGateway
	students   scopeStudentLister
	exams      studentExamLister
	perfs      studentPerformanceLister
	logger     *zap.Logger
}

// NewSyncService constructs the facade.
func NewSyncService(reconciler reconcilerFacade, listeners listenerFacade, gateway pushGateway,
	students scopeStudentLister, exams studentExamLister, perfs studentPerformanceLister,
	logger *zap.Logger) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		reconciler: reconciler,
		listeners:  listeners,
		gateway:    gateway,
		students:   students,
		exams:      exams,
		perfs:      perfs,
		logger:     logger,
	}
}

// TriggerImport pulls the full remote state for the scope into the local
// store. Blocking; callers run it from a request handler or a job.
func (s *SyncService) TriggerImport(ctx context.Context, teacherID string) error {
	return s.reconciler.FetchAndImportAll(ctx, teacherID)
}

// PushAll mirrors every local entity of the scope to the remote store in
// batched commits.
func (s *SyncService) PushAll(ctx context.Context, teacherID string) error {
	students, err := s.students.ListByTeacher(ctx, teacherID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}

	examsByStudent := make(map[string][]models.PracticeExam, len(students))
	perfsByStudent := make(map[string][]models.QuestionPerformance, len(students))
	for i := range students {
		id := students[i].ID
		exams, err := s.exams.ListByStudent(ctx, id)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exams")
		}
		examsByStudent[id] = exams

		perfs, err := s.perfs.ListByStudent(ctx, id)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load performances")
		}
		perfsByStudent[id] = perfs
	}

	if err := s.gateway.SyncAll(ctx, teacherID, students, examsByStudent, perfsByStudent); err != nil {
		return err
	}
	s.logger.Info("full push completed", zap.String("teacher_id", teacherID), zap.Int("students", len(students)))
	return nil
}

// Status reports the current engine snapshot.
func (s *SyncService) Status(ctx context.Context) SyncStatus {
	snapshot := s.reconciler.Status()
	status := SyncStatus{
		IsSyncing:    snapshot.IsSyncing,
		SyncError:    snapshot.LastError,
		Listening:    s.listeners.Running(),
		PendingCount: s.listeners.PendingCount(),
	}
	if snapshot.LastSyncDate != nil {
		status.LastSyncDate = snapshot.LastSyncDate.Format("2006-01-02T15:04:05Z07:00")
	}
	return status
}

// StartListeners opens live subscriptions for the scope.
func (s *SyncService) StartListeners(ctx context.Context, teacherID string) error {
	return s.listeners.StartListening(ctx, teacherID)
}

// StopListeners closes live subscriptions.
func (s *SyncService) StopListeners() {
	s.listeners.StopListening()
}
