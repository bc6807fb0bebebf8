package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koclink/coachsync/internal/models"
	appErrors "github.com/koclink/coachsync/pkg/errors"
)

type mockPendingRepo struct {
	byID     map[string]models.PendingRequest
	resolved map[string]string
}

func (m *mockPendingRepo) ListPending(ctx context.Context, teacherID string) ([]models.PendingRequest, error) {
	var requests []models.PendingRequest
	for _, r := range m.byID {
		if r.TeacherID == teacherID && r.Status == models.StatusPending {
			requests = append(requests, r)
		}
	}
	return requests, nil
}

func (m *mockPendingRepo) FindByID(ctx context.Context, id string) (*models.PendingRequest, error) {
	if r, ok := m.byID[id]; ok {
		copied := r
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPendingRepo) UpdateStatus(ctx context.Context, id, status string) error {
	if m.resolved == nil {
		m.resolved = make(map[string]string)
	}
	m.resolved[id] = status
	return nil
}

type mockPendingStudents struct {
	existing map[string]bool
	statuses map[string]string
}

func (m *mockPendingStudents) Exists(ctx context.Context, id string) (bool, error) {
	return m.existing[id], nil
}

func (m *mockPendingStudents) UpdateStatus(ctx context.Context, id, status string) error {
	if m.statuses == nil {
		m.statuses = make(map[string]string)
	}
	m.statuses[id] = status
	return nil
}

type mockPendingRemote struct {
	requestStatuses map[string]string
	studentStatuses map[string]string
	requestErr      error
}

func (m *mockPendingRemote) UpdatePendingRequestStatus(ctx context.Context, requestID, status string, respondedAt time.Time) error {
	if m.requestErr != nil {
		return m.requestErr
	}
	if m.requestStatuses == nil {
		m.requestStatuses = make(map[string]string)
	}
	m.requestStatuses[requestID] = status
	return nil
}

func (m *mockPendingRemote) UpdateStudentStatus(ctx context.Context, studentID, status string, approvedAt time.Time) error {
	if m.studentStatuses == nil {
		m.studentStatuses = make(map[string]string)
	}
	m.studentStatuses[studentID] = status
	return nil
}

func pendingFixture(status string) *mockPendingRepo {
	return &mockPendingRepo{byID: map[string]models.PendingRequest{
		"r1": {ID: "r1", StudentID: "s1", TeacherID: "ABC123", StudentName: "Ali Kaya", Status: status},
	}}
}

func TestPendingRequestServiceApprove(t *testing.T) {
	repo := pendingFixture(models.StatusPending)
	students := &mockPendingStudents{existing: map[string]bool{"s1": true}}
	gateway := &mockPendingRemote{}
	svc := NewPendingRequestService(repo, students, gateway, nil)

	require.NoError(t, svc.Approve(context.Background(), "ABC123", "r1"))

	assert.Equal(t, models.StatusApproved, gateway.requestStatuses["r1"])
	assert.Equal(t, models.StatusApproved, gateway.studentStatuses["s1"])
	assert.Equal(t, models.StatusApproved, repo.resolved["r1"])
	assert.Equal(t, models.StatusApproved, students.statuses["s1"])
}

func TestPendingRequestServiceApproveUnmirroredStudent(t *testing.T) {
	repo := pendingFixture(models.StatusPending)
	students := &mockPendingStudents{existing: map[string]bool{}}
	gateway := &mockPendingRemote{}
	svc := NewPendingRequestService(repo, students, gateway, nil)

	require.NoError(t, svc.Approve(context.Background(), "ABC123", "r1"))

	assert.Equal(t, models.StatusApproved, gateway.studentStatuses["s1"])
	assert.Empty(t, students.statuses)
}

func TestPendingRequestServiceReject(t *testing.T) {
	repo := pendingFixture(models.StatusPending)
	students := &mockPendingStudents{existing: map[string]bool{"s1": true}}
	gateway := &mockPendingRemote{}
	svc := NewPendingRequestService(repo, students, gateway, nil)

	require.NoError(t, svc.Reject(context.Background(), "ABC123", "r1"))

	assert.Equal(t, models.StatusRejected, gateway.requestStatuses["r1"])
	assert.Empty(t, gateway.studentStatuses)
	assert.Equal(t, models.StatusRejected, repo.resolved["r1"])
	assert.Empty(t, students.statuses)
}

func TestPendingRequestServiceAlreadyResolved(t *testing.T) {
	repo := pendingFixture(models.StatusApproved)
	svc := NewPendingRequestService(repo, &mockPendingStudents{}, &mockPendingRemote{}, nil)

	err := svc.Approve(context.Background(), "ABC123", "r1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.resolved)
}

func TestPendingRequestServiceWrongScope(t *testing.T) {
	repo := pendingFixture(models.StatusPending)
	svc := NewPendingRequestService(repo, &mockPendingStudents{}, &mockPendingRemote{}, nil)

	err := svc.Approve(context.Background(), "XYZ789", "r1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestPendingRequestServiceRemoteFailureKeepsLocal(t *testing.T) {
	repo := pendingFixture(models.StatusPending)
	gateway := &mockPendingRemote{requestErr: errors.New("unreachable")}
	svc := NewPendingRequestService(repo, &mockPendingStudents{}, gateway, nil)

	err := svc.Approve(context.Background(), "ABC123", "r1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRemote.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.resolved)
}

func TestPendingRequestServiceNotFound(t *testing.T) {
	svc := NewPendingRequestService(&mockPendingRepo{}, &mockPendingStudents{}, &mockPendingRemote{}, nil)

	err := svc.Approve(context.Background(), "ABC123", "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
