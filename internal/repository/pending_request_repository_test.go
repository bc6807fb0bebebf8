package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koclink/coachsync/internal/models"
)

func TestPendingRequestRepositoryReplacePending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPendingRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM pending_requests WHERE teacher_id").
		WithArgs("ABC123", models.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO pending_requests").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO pending_requests").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	requests := []models.PendingRequest{
		{ID: "r1", StudentID: "s1", TeacherID: "ABC123", StudentName: "Ali Kaya", Status: models.StatusPending, CreatedAt: time.Now()},
		{ID: "r2", StudentID: "s2", TeacherID: "ABC123", StudentName: "Zeynep Demir", Status: models.StatusPending, CreatedAt: time.Now()},
	}
	require.NoError(t, repo.ReplacePending(context.Background(), "ABC123", requests))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingRequestRepositoryReplacePendingEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPendingRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM pending_requests WHERE teacher_id").
		WithArgs("ABC123", models.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplacePending(context.Background(), "ABC123", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingRequestRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPendingRequestRepository(db)

	mock.ExpectExec("UPDATE pending_requests SET status").
		WithArgs("r1", models.StatusApproved).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "r1", models.StatusApproved))
	assert.NoError(t, mock.ExpectationsWereMet())
}
