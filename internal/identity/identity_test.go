package identity

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koclink/coachsync/internal/models"
	"github.com/koclink/coachsync/internal/remote"
	"github.com/koclink/coachsync/internal/repository"
	appErrors "github.com/koclink/coachsync/pkg/errors"
)

type mockDirectory struct {
	existing  map[string]remote.Document
	allExist  bool
	published []models.Teacher
}

func (m *mockDirectory) PutTeacher(ctx context.Context, teacher *models.Teacher) error {
	m.published = append(m.published, *teacher)
	return nil
}

func (m *mockDirectory) TeacherExists(ctx context.Context, teacherID string) (bool, error) {
	if m.allExist {
		return true, nil
	}
	_, ok := m.existing[teacherID]
	return ok, nil
}

func (m *mockDirectory) FetchTeacher(ctx context.Context, teacherID string) (remote.Document, error) {
	doc, ok := m.existing[teacherID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	return doc, nil
}

type mockTeachers struct {
	byID map[string]models.Teacher
}

func (m *mockTeachers) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if teacher, ok := m.byID[id]; ok {
		copied := teacher
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeachers) Upsert(ctx context.Context, teacher *models.Teacher) error {
	if m.byID == nil {
		m.byID = make(map[string]models.Teacher)
	}
	m.byID[teacher.ID] = *teacher
	return nil
}

type mockScopeState struct {
	values map[string]string
}

func (m *mockScopeState) Get(ctx context.Context, key string) (string, error) {
	return m.values[key], nil
}

func (m *mockScopeState) Set(ctx context.Context, key, value string) error {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}

func (m *mockScopeState) Clear(ctx context.Context, key string) error {
	delete(m.values, key)
	return nil
}

func newTestGate(directory *mockDirectory, teachers *mockTeachers, state *mockScopeState) *Gate {
	return NewGate(directory, teachers, state, nil, nil, Config{
		JWTSecret:     "test_secret",
		JWTExpiration: time.Hour,
		Issuer:        "coachsync",
	})
}

func TestGenerateCodeFormat(t *testing.T) {
	gate := newTestGate(&mockDirectory{}, &mockTeachers{}, &mockScopeState{})

	for i := 0; i < 50; i++ {
		code := gate.GenerateCode()
		require.Len(t, code, CodeLength)
		for _, r := range code[:3] {
			assert.Contains(t, codeLetters, string(r))
		}
		for _, r := range code[3:] {
			assert.Contains(t, codeDigits, string(r))
		}
		assert.NotContains(t, code[:3], "I")
		assert.NotContains(t, code[:3], "O")
	}
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "ABC123", NormalizeCode("  abc123 "))
	assert.Equal(t, "ABC123", NormalizeCode("ABC123"))
}

func TestRegisterActivatesScope(t *testing.T) {
	directory := &mockDirectory{existing: map[string]remote.Document{}}
	teachers := &mockTeachers{}
	state := &mockScopeState{}
	gate := newTestGate(directory, teachers, state)

	session, err := gate.Register(context.Background(), RegisterRequest{
		FirstName: "Mehmet", LastName: "Öztürk", School: "Cumhuriyet Ortaokulu",
	})
	require.NoError(t, err)
	require.Len(t, session.Code, CodeLength)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, session.Code, session.Teacher.ID)

	require.Len(t, directory.published, 1)
	assert.Equal(t, session.Code, directory.published[0].ID)
	assert.Equal(t, session.Code, state.values[repository.StateActiveScope])

	claims, err := gate.ValidateToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.Code, claims.TeacherID)
}

func TestRegisterRejectsInvalidPayload(t *testing.T) {
	gate := newTestGate(&mockDirectory{}, &mockTeachers{}, &mockScopeState{})

	_, err := gate.Register(context.Background(), RegisterRequest{FirstName: "Mehmet"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRegisterCodeExhaustion(t *testing.T) {
	gate := newTestGate(&mockDirectory{allExist: true}, &mockTeachers{}, &mockScopeState{})

	_, err := gate.Register(context.Background(), RegisterRequest{FirstName: "Mehmet", LastName: "Öztürk"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCodeExhausted.Code, appErrors.FromError(err).Code)
}

func TestLoginNormalizesCode(t *testing.T) {
	directory := &mockDirectory{existing: map[string]remote.Document{
		"ABC123": {"firstName": "Mehmet", "lastName": "Öztürk", "school": "Okul"},
	}}
	teachers := &mockTeachers{}
	state := &mockScopeState{}
	gate := newTestGate(directory, teachers, state)

	session, err := gate.Login(context.Background(), " abc123 ")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", session.Code)
	assert.Equal(t, "Mehmet", session.Teacher.FirstName)
	assert.Equal(t, "ABC123", state.values[repository.StateActiveScope])
	assert.Contains(t, teachers.byID, "ABC123")
}

func TestLoginKeepsLocalCreatedAt(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	directory := &mockDirectory{existing: map[string]remote.Document{
		"ABC123": {"firstName": "Mehmet", "lastName": "Öztürk", "createdAt": remote.Timestamp(time.Now())},
	}}
	teachers := &mockTeachers{byID: map[string]models.Teacher{
		"ABC123": {ID: "ABC123", CreatedAt: created},
	}}
	gate := newTestGate(directory, teachers, &mockScopeState{})

	session, err := gate.Login(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.True(t, session.Teacher.CreatedAt.Equal(created))
}

func TestLoginRejectsShortCode(t *testing.T) {
	gate := newTestGate(&mockDirectory{}, &mockTeachers{}, &mockScopeState{})

	_, err := gate.Login(context.Background(), "AB1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCode.Code, appErrors.FromError(err).Code)
}

func TestLoginUnknownCode(t *testing.T) {
	gate := newTestGate(&mockDirectory{existing: map[string]remote.Document{}}, &mockTeachers{}, &mockScopeState{})

	_, err := gate.Login(context.Background(), "ZZZ999")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCodeNotFound.Code, appErrors.FromError(err).Code)
}

func TestLogoutClearsScopeOnly(t *testing.T) {
	state := &mockScopeState{values: map[string]string{repository.StateActiveScope: "ABC123"}}
	teachers := &mockTeachers{byID: map[string]models.Teacher{"ABC123": {ID: "ABC123"}}}
	gate := newTestGate(&mockDirectory{}, teachers, state)

	require.NoError(t, gate.Logout(context.Background()))

	scope, err := gate.CurrentScope(context.Background())
	require.NoError(t, err)
	assert.Empty(t, scope)
	assert.Contains(t, teachers.byID, "ABC123")
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	gate := newTestGate(&mockDirectory{existing: map[string]remote.Document{}}, &mockTeachers{}, &mockScopeState{})

	session, err := gate.Register(context.Background(), RegisterRequest{FirstName: "Mehmet", LastName: "Öztürk"})
	require.NoError(t, err)

	last := session.Token[len(session.Token)-1]
	flipped := "A"
	if last == 'A' {
		flipped = "B"
	}
	tampered := session.Token[:len(session.Token)-1] + flipped
	_, err = gate.ValidateToken(tampered)
	require.Error(t, err)

	parts := strings.Split(session.Token, ".")
	require.Len(t, parts, 3)
}
