package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koclink/coachsync/internal/models"
	"github.com/koclink/coachsync/internal/repository"
	appErrors "github.com/koclink/coachsync/pkg/errors"
)

func newServiceMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

type mockStudentRepo struct {
	byID    map[string]models.Student
	upserts []models.Student
	deleted []string
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.byID[id]; ok {
		copied := s
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) List(ctx context.Context, teacherID string, filter models.StudentFilter) ([]models.Student, int, error) {
	var students []models.Student
	for _, s := range m.byID {
		if s.TeacherID == teacherID {
			students = append(students, s)
		}
	}
	return students, len(students), nil
}

func (m *mockStudentRepo) Upsert(ctx context.Context, tx *sqlx.Tx, student *models.Student) error {
	if m.byID == nil {
		m.byID = make(map[string]models.Student)
	}
	m.byID[student.ID] = *student
	m.upserts = append(m.upserts, *student)
	return nil
}

func (m *mockStudentRepo) UpdateStatus(ctx context.Context, id, status string) error {
	if s, ok := m.byID[id]; ok {
		s.Status = status
		m.byID[id] = s
	}
	return nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string) error {
	delete(m.byID, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockExamLister struct {
	byStudent map[string][]models.PracticeExam
}

func (m *mockExamLister) ListByStudent(ctx context.Context, studentID string) ([]models.PracticeExam, error) {
	return m.byStudent[studentID], nil
}

type mockPerfLister struct {
	byStudent map[string][]models.QuestionPerformance
}

func (m *mockPerfLister) ListByStudent(ctx context.Context, studentID string) ([]models.QuestionPerformance, error) {
	return m.byStudent[studentID], nil
}

type mockStudentGateway struct {
	synced   []string
	cascades map[string][2][]string
}

func (m *mockStudentGateway) SyncStudent(ctx context.Context, student *models.Student, teacherID string) error {
	m.synced = append(m.synced, student.ID)
	return nil
}

func (m *mockStudentGateway) DeleteStudentCascade(ctx context.Context, studentID string, examIDs, perfIDs []string) error {
	if m.cascades == nil {
		m.cascades = make(map[string][2][]string)
	}
	m.cascades[studentID] = [2][]string{examIDs, perfIDs}
	return nil
}

type mockSummaryCache struct {
	summaries map[string]models.StudentSummary
	sets      []string
	deleted   []string
}

func (m *mockSummaryCache) Get(ctx context.Context, key string, dest interface{}) error {
	summary, ok := m.summaries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	if out, ok := dest.(*models.StudentSummary); ok {
		*out = summary
	}
	return nil
}

func (m *mockSummaryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.summaries == nil {
		m.summaries = make(map[string]models.StudentSummary)
	}
	if summary, ok := value.(models.StudentSummary); ok {
		m.summaries[key] = summary
	}
	m.sets = append(m.sets, key)
	return nil
}

func (m *mockSummaryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deleted = append(m.deleted, pattern)
	return nil
}

func newStudentService(t *testing.T, repo *mockStudentRepo, exams *mockExamLister,
	gateway *mockStudentGateway, cache *mockSummaryCache) (*StudentService, sqlmock.Sqlmock, func()) {
	db, mock, cleanup := newServiceMock(t)
	if exams == nil {
		exams = &mockExamLister{}
	}
	svc := NewStudentService(db, repo, exams, &mockPerfLister{}, gateway, cache, nil, nil, time.Minute)
	return svc, mock, cleanup
}

func TestStudentServiceCreateDefaults(t *testing.T) {
	repo := &mockStudentRepo{}
	gateway := &mockStudentGateway{}
	svc, mock, cleanup := newStudentService(t, repo, nil, gateway, &mockSummaryCache{})
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	student, err := svc.Create(context.Background(), "ABC123", CreateStudentRequest{
		FirstName: "Ali", LastName: "Kaya",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.Equal(t, "ABC123", student.TeacherID)
	assert.Equal(t, models.StatusSolo, student.Status)
	assert.Equal(t, models.ConnectionOffline, student.ConnectionType)
	assert.Equal(t, models.DefaultGrade, student.Grade)
	assert.Equal(t, float64(models.DefaultTargetTotalScore), student.TargetTotalScore)
	assert.Equal(t, []string{student.ID}, gateway.synced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentServiceCreateCustomTargets(t *testing.T) {
	repo := &mockStudentRepo{}
	svc, mock, cleanup := newStudentService(t, repo, nil, &mockStudentGateway{}, &mockSummaryCache{})
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	student, err := svc.Create(context.Background(), "ABC123", CreateStudentRequest{
		FirstName: "Ali", LastName: "Kaya", Grade: 7,
		Targets: &Targets{TotalScore: 450, TurkceNet: 17},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, student.Grade)
	assert.Equal(t, 450.0, student.TargetTotalScore)
	assert.Equal(t, 17.0, student.TargetTurkceNet)
}

func TestStudentServiceCreateInvalidPayload(t *testing.T) {
	repo := &mockStudentRepo{}
	svc, _, cleanup := newStudentService(t, repo, nil, &mockStudentGateway{}, &mockSummaryCache{})
	defer cleanup()

	_, err := svc.Create(context.Background(), "ABC123", CreateStudentRequest{FirstName: "Ali"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.upserts)
}

func TestStudentServiceUpdateWrongScope(t *testing.T) {
	repo := &mockStudentRepo{byID: map[string]models.Student{
		"s1": {ID: "s1", TeacherID: "XYZ789", FirstName: "Ali", LastName: "Kaya"},
	}}
	svc, _, cleanup := newStudentService(t, repo, nil, &mockStudentGateway{}, &mockSummaryCache{})
	defer cleanup()

	_, err := svc.Update(context.Background(), "ABC123", "s1", UpdateStudentRequest{
		FirstName: "Ali", LastName: "Kaya",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceGetNotFound(t *testing.T) {
	svc, _, cleanup := newStudentService(t, &mockStudentRepo{}, nil, &mockStudentGateway{}, &mockSummaryCache{})
	defer cleanup()

	_, err := svc.Get(context.Background(), "ABC123", "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceDeleteCascadesRemote(t *testing.T) {
	repo := &mockStudentRepo{byID: map[string]models.Student{
		"s1": {ID: "s1", TeacherID: "ABC123"},
	}}
	exams := &mockExamLister{byStudent: map[string][]models.PracticeExam{
		"s1": {{ID: "e1"}, {ID: "e2"}},
	}}
	gateway := &mockStudentGateway{}
	svc, _, cleanup := newStudentService(t, repo, exams, gateway, &mockSummaryCache{})
	defer cleanup()

	require.NoError(t, svc.Delete(context.Background(), "ABC123", "s1"))

	assert.Equal(t, []string{"s1"}, repo.deleted)
	cascade, ok := gateway.cascades["s1"]
	require.True(t, ok)
	assert.Equal(t, []string{"e1", "e2"}, cascade[0])
	assert.Empty(t, cascade[1])
}

func TestStudentServiceSummaryComputesAndCaches(t *testing.T) {
	repo := &mockStudentRepo{byID: map[string]models.Student{
		"s1": {ID: "s1", TeacherID: "ABC123", TargetTotalScore: 400},
	}}
	exams := &mockExamLister{byStudent: map[string][]models.PracticeExam{
		"s1": {{TotalScore: 300}, {TotalScore: 340}},
	}}
	cache := &mockSummaryCache{}
	svc, _, cleanup := newStudentService(t, repo, exams, &mockStudentGateway{}, cache)
	defer cleanup()

	summary, err := svc.Summary(context.Background(), "ABC123", "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ExamCount)
	assert.InDelta(t, 320, summary.CurrentAverageScore, 0.001)
	assert.Len(t, cache.sets, 1)
}

func TestStudentServiceSummaryServedFromCache(t *testing.T) {
	cache := &mockSummaryCache{}
	require.NoError(t, cache.Set(context.Background(), repository.SummaryCacheKey("s1"),
		models.StudentSummary{StudentID: "s1", ExamCount: 5}, time.Minute))

	// Empty repo: a load attempt would return not found.
	svc, _, cleanup := newStudentService(t, &mockStudentRepo{}, nil, &mockStudentGateway{}, cache)
	defer cleanup()

	summary, err := svc.Summary(context.Background(), "ABC123", "s1")
	require.NoError(t, err)
	assert.Equal(t, 5, summary.ExamCount)
}
