package service

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koclink/coachsync/internal/models"
	appErrors "github.com/koclink/coachsync/pkg/errors"
	"github.com/koclink/coachsync/pkg/storage"
)

type mockScopeLister struct {
	students []models.Student
}

func (m *mockScopeLister) ListByTeacher(ctx context.Context, teacherID string) ([]models.Student, error) {
	return m.students, nil
}

func exportFixture() *mockScopeLister {
	return &mockScopeLister{students: []models.Student{
		{ID: "s1", FirstName: "Ali", LastName: "Kaya", School: "Atatürk Ortaokulu", Grade: 8, Status: models.StatusSolo, TargetTotalScore: 400},
		{ID: "s2", FirstName: "Zeynep", LastName: "Demir", Grade: 8, Status: models.StatusApproved, TargetTotalScore: 450},
	}}
}

func TestExportServiceStudentsCSV(t *testing.T) {
	svc := NewExportService(exportFixture(), &mockExamLister{}, &mockPerfLister{}, nil, 0, nil)

	result, err := svc.Students(context.Background(), "ABC123", FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "students.csv", result.Filename)

	lines := strings.Split(strings.TrimSpace(string(result.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,first_name,last_name,school,grade,branch,status,target_total_score", lines[0])
	assert.Contains(t, lines[1], "Ali")
}

func TestExportServiceEmptyFormatDefaultsToCSV(t *testing.T) {
	svc := NewExportService(exportFixture(), &mockExamLister{}, &mockPerfLister{}, nil, 0, nil)

	result, err := svc.Students(context.Background(), "ABC123", "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
}

func TestExportServiceStudentsJSON(t *testing.T) {
	svc := NewExportService(exportFixture(), &mockExamLister{}, &mockPerfLister{}, nil, 0, nil)

	result, err := svc.Students(context.Background(), "ABC123", FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "application/json", result.ContentType)

	var rows []map[string]string
	require.NoError(t, json.Unmarshal(result.Data, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "Ali", rows[0]["first_name"])
	assert.Equal(t, "400.00", rows[0]["target_total_score"])
}

func TestExportServiceUnsupportedFormat(t *testing.T) {
	svc := NewExportService(exportFixture(), &mockExamLister{}, &mockPerfLister{}, nil, 0, nil)

	_, err := svc.Students(context.Background(), "ABC123", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceExamsIncludeOwner(t *testing.T) {
	exams := &mockExamLister{byStudent: map[string][]models.PracticeExam{
		"s1": {{ID: "e1", Name: "Deneme 1", Date: time.Now(), TotalScore: 380, TurkceNet: 14}},
	}}
	svc := NewExportService(exportFixture(), exams, &mockPerfLister{}, nil, 0, nil)

	result, err := svc.Exams(context.Background(), "ABC123", FormatCSV)
	require.NoError(t, err)
	assert.Contains(t, string(result.Data), "Ali Kaya")
	assert.Contains(t, string(result.Data), "Deneme 1")
}

func TestExportServiceProgress(t *testing.T) {
	student := &models.Student{ID: "s1", FirstName: "Ali", LastName: "Kaya", TargetTotalScore: 400}
	exams := []models.PracticeExam{
		{Name: "Deneme 1", Date: time.Now(), TotalScore: 300},
		{Name: "Deneme 2", Date: time.Now(), TotalScore: 340},
	}
	svc := NewExportService(exportFixture(), &mockExamLister{}, &mockPerfLister{}, nil, 0, nil)

	result, err := svc.Progress(context.Background(), student, exams, FormatCSV)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(result.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "400.00")
}

func TestExportServiceKeepsDiskCopy(t *testing.T) {
	dir := t.TempDir()
	files, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)

	svc := NewExportService(exportFixture(), &mockExamLister{}, &mockPerfLister{}, files, time.Hour, nil)

	_, err = svc.Students(context.Background(), "ABC123", FormatCSV)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "students.csv")
}
