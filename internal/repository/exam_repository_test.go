package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koclink/coachsync/internal/models"
)

func TestExamRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "name", "date", "total_score"}).
		AddRow("e2", "s1", "Deneme 2", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), 390.0).
		AddRow("e1", "s1", "Deneme 1", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 350.0)
	mock.ExpectQuery("SELECT (.+) FROM practice_exams WHERE student_id (.+) ORDER BY date DESC").
		WithArgs("s1").
		WillReturnRows(rows)

	exams, err := repo.ListByStudent(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, exams, 2)
	assert.Equal(t, "Deneme 2", exams[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO practice_exams").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := RunInTx(context.Background(), db, func(tx *sqlx.Tx) error {
		return repo.Upsert(context.Background(), tx, &models.PracticeExam{
			ID: "e1", StudentID: "s1", Name: "Deneme 1", TotalScore: 350,
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectExec("DELETE FROM practice_exams WHERE id").
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "e1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
