package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/koclink/coachsync/internal/models"
	appErrors "github.com/koclink/coachsync/pkg/errors"
)

type pendingRequestRepository interface {
	ListPending(ctx context.Context, teacherID string) ([]models.PendingRequest, error)
	FindByID(ctx context.Context, id string) (*models.PendingRequest, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

type pendingStudentStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

type pendingGateway interface {
	UpdatePendingRequestStatus(ctx context.Context, requestID, status string, respondedAt time.Time) error
	UpdateStudentStatus(ctx context.Context, studentID, status string, approvedAt time.Time) error
}

// PendingRequestService resolves student connection requests. The pending
// list itself is maintained by the subscription manager; this service only
// reads it and flips statuses.
type PendingRequestService struct {
	repo     pendingRequestRepository
	students pendingStudentStore
	gateway  pendingGateway
	logger   *zap.Logger
}

// NewPendingRequestService constructs the service.
func NewPendingRequestService(repo pendingRequestRepository, students pendingStudentStore,
	gateway pendingGateway, logger *zap.Logger) *PendingRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PendingRequestService{repo: repo, students: students, gateway: gateway, logger: logger}
}

// List returns unresolved requests for the scope, newest first. The count is
// always the length of the returned list.
func (s *PendingRequestService) List(ctx context.Context, teacherID string) ([]models.PendingRequest, error) {
	requests, err := s.repo.ListPending(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending requests")
	}
	return requests, nil
}

// Approve accepts a connection request. The remote request and student
// documents transition first; the local mirror follows. If the student is
// not mirrored locally yet, the listener import will bring it in with the
// approved status.
func (s *PendingRequestService) Approve(ctx context.Context, teacherID, requestID string) error {
	return s.resolve(ctx, teacherID, requestID, models.StatusApproved)
}

// Reject declines a connection request. The student document is untouched;
// only the request resolves.
func (s *PendingRequestService) Reject(ctx context.Context, teacherID, requestID string) error {
	return s.resolve(ctx, teacherID, requestID, models.StatusRejected)
}

func (s *PendingRequestService) resolve(ctx context.Context, teacherID, requestID, status string) error {
	request, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "pending request not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending request")
	}
	if request.TeacherID != teacherID {
		return appErrors.Clone(appErrors.ErrForbidden, "request belongs to another scope")
	}
	if request.Status != models.StatusPending {
		return appErrors.Clone(appErrors.ErrConflict, "request already resolved")
	}

	now := time.Now().UTC()
	if err := s.gateway.UpdatePendingRequestStatus(ctx, requestID, status, now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrRemote.Code, appErrors.ErrRemote.Status, "failed to resolve request remotely")
	}
	if status == models.StatusApproved {
		if err := s.gateway.UpdateStudentStatus(ctx, request.StudentID, models.StatusApproved, now); err != nil {
			return appErrors.Wrap(err, appErrors.ErrRemote.Code, appErrors.ErrRemote.Status, "failed to approve student remotely")
		}
	}

	if err := s.repo.UpdateStatus(ctx, requestID, status); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve request locally")
	}
	if status == models.StatusApproved {
		exists, err := s.students.Exists(ctx, request.StudentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student")
		}
		if exists {
			if err := s.students.UpdateStatus(ctx, request.StudentID, models.StatusApproved); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve student locally")
			}
		}
	}

	s.logger.Info("pending request resolved",
		zap.String("request_id", requestID), zap.String("status", status))
	return nil
}
