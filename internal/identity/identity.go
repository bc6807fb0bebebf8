package identity

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/koclink/coachsync/internal/models"
	"github.com/koclink/coachsync/internal/remote"
	"github.com/koclink/coachsync/internal/repository"
	appErrors "github.com/koclink/coachsync/pkg/errors"
)

// Teacher codes are 3 letters + 3 digits. I and O are excluded from the
// alphabet so codes survive being read aloud or written on a whiteboard.
const (
	codeLetters = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	codeDigits  = "0123456789"
	CodeLength  = 6

	maxGenerateAttempts = 10
)

type remoteDirectory interface {
	PutTeacher(ctx context.Context, teacher *models.Teacher) error
	TeacherExists(ctx context.Context, teacherID string) (bool, error)
	FetchTeacher(ctx context.Context, teacherID string) (remote.Document, error)
}

type teacherStore interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	Upsert(ctx context.Context, teacher *models.Teacher) error
}

type stateStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context, key string) error
}

// Config defines token issuance settings for the gate.
type Config struct {
	JWTSecret     string
	JWTExpiration time.Duration
	Issuer        string
}

// RegisterRequest carries the profile for a new teacher scope.
type RegisterRequest struct {
	FirstName string `json:"first_name" validate:"required,min=1,max=100"`
	LastName  string `json:"last_name" validate:"required,min=1,max=100"`
	School    string `json:"school" validate:"max=200"`
	Email     string `json:"email" validate:"omitempty,email"`
}

// Session is an established teacher scope with its API token.
type Session struct {
	Code      string          `json:"code"`
	Token     string          `json:"token"`
	ExpiresIn int64           `json:"expires_in"`
	Teacher   *models.Teacher `json:"teacher"`
}

// Gate owns teacher-code generation, registration, login and the active
// scope. A code is an identifier, not a secret: possession scopes which
// students' records sync, nothing more.
type Gate struct {
	directory remoteDirectory
	teachers  teacherStore
	state     stateStore
	validator *validator.Validate
	logger    *zap.Logger
	config    Config

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewGate constructs a Gate.
func NewGate(directory remoteDirectory, teachers teacherStore, state stateStore,
	validate *validator.Validate, logger *zap.Logger, config Config) *Gate {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		directory: directory,
		teachers:  teachers,
		state:     state,
		validator: validate,
		logger:    logger,
		config:    config,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GenerateCode produces a candidate teacher code. Uniqueness is checked
// against the remote directory by Register, not here.
func (g *Gate) GenerateCode() string {
	g.rngMu.Lock()
	defer g.rngMu.Unlock()

	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < 3; i++ {
		b.WriteByte(codeLetters[g.rng.Intn(len(codeLetters))])
	}
	for i := 0; i < 3; i++ {
		b.WriteByte(codeDigits[g.rng.Intn(len(codeDigits))])
	}
	return b.String()
}

// NormalizeCode uppercases and trims a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Register creates a new teacher scope: a collision-free code is allocated
// against the remote directory, the teacher record is written on both sides
// and the scope becomes active.
func (g *Gate) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	if err := g.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	code, err := g.allocateCode(ctx)
	if err != nil {
		return nil, err
	}

	teacher := &models.Teacher{
		ID:        code,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		School:    req.School,
		Email:     req.Email,
		CreatedAt: time.Now().UTC(),
	}

	if err := g.directory.PutTeacher(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRemote.Code, appErrors.ErrRemote.Status, "failed to publish teacher record")
	}
	if err := g.teachers.Upsert(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store teacher record")
	}
	if err := g.state.Set(ctx, repository.StateActiveScope, code); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate scope")
	}

	g.logger.Info("teacher registered", zap.String("teacher_id", code))
	return g.newSession(code, teacher)
}

// Login activates an existing teacher scope by code. The code must exist in
// the remote directory; its record is mirrored locally on success.
func (g *Gate) Login(ctx context.Context, code string) (*Session, error) {
	code = NormalizeCode(code)
	if len(code) != CodeLength {
		return nil, appErrors.Clone(appErrors.ErrInvalidCode, "teacher code must be 6 characters")
	}

	exists, err := g.directory.TeacherExists(ctx, code)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRemote.Code, appErrors.ErrRemote.Status, "failed to verify teacher code")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrCodeNotFound, "teacher code not found")
	}

	teacher, err := g.mirrorTeacher(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := g.state.Set(ctx, repository.StateActiveScope, code); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate scope")
	}

	g.logger.Info("teacher logged in", zap.String("teacher_id", code))
	return g.newSession(code, teacher)
}

// Logout clears the active scope. Local entities and the remote teacher
// record stay untouched; logging back in resumes where the scope left off.
func (g *Gate) Logout(ctx context.Context) error {
	if err := g.state.Clear(ctx, repository.StateActiveScope); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear scope")
	}
	g.logger.Info("scope cleared")
	return nil
}

// CurrentScope returns the active teacher code, or empty when logged out.
func (g *Gate) CurrentScope(ctx context.Context) (string, error) {
	return g.state.Get(ctx, repository.StateActiveScope)
}

// ValidateToken parses a session token and returns its claims.
func (g *Gate) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unexpected signing method")
		}
		return []byte(g.config.JWTSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (g *Gate) allocateCode(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		code := g.GenerateCode()
		exists, err := g.directory.TeacherExists(ctx, code)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrRemote.Code, appErrors.ErrRemote.Status, "failed to check code availability")
		}
		if !exists {
			return code, nil
		}
		g.logger.Warn("teacher code collision", zap.Int("attempt", attempt))
	}
	return "", appErrors.Clone(appErrors.ErrCodeExhausted, "could not generate unique teacher code")
}

func (g *Gate) mirrorTeacher(ctx context.Context, code string) (*models.Teacher, error) {
	doc, err := g.directory.FetchTeacher(ctx, code)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRemote.Code, appErrors.ErrRemote.Status, "failed to load teacher record")
	}

	teacher := &models.Teacher{
		ID:        code,
		FirstName: doc.StringOr("firstName", ""),
		LastName:  doc.StringOr("lastName", ""),
		School:    doc.StringOr("school", ""),
		Email:     doc.StringOr("email", ""),
		CreatedAt: time.Now().UTC(),
	}
	if createdAt, ok := doc.Time("createdAt"); ok {
		teacher.CreatedAt = createdAt
	}
	if token, ok := doc.String("fcmToken"); ok {
		teacher.FCMToken = &token
	}
	if updated, ok := doc.Time("lastTokenUpdate"); ok {
		teacher.LastTokenUpdate = &updated
	}

	if existing, err := g.teachers.FindByID(ctx, code); err == nil {
		teacher.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher record")
	}

	if err := g.teachers.Upsert(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mirror teacher record")
	}
	return teacher, nil
}

func (g *Gate) newSession(code string, teacher *models.Teacher) (*Session, error) {
	now := time.Now().UTC()
	claims := &models.JWTClaims{
		TeacherID: code,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.config.Issuer,
			Subject:   code,
			ExpiresAt: jwt.NewNumericDate(now.Add(g.config.JWTExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(g.config.JWTSecret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign session token")
	}
	return &Session{
		Code:      code,
		Token:     signed,
		ExpiresIn: int64(g.config.JWTExpiration.Seconds()),
		Teacher:   teacher,
	}, nil
}
