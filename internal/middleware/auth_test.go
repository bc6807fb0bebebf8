package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koclink/coachsync/internal/identity"
	"github.com/koclink/coachsync/internal/models"
)

const testSecret = "test_secret"

func newScopedRouter(t *testing.T) (*gin.Engine, *string) {
	gin.SetMode(gin.TestMode)
	gate := identity.NewGate(nil, nil, nil, nil, nil, identity.Config{
		JWTSecret:     testSecret,
		JWTExpiration: time.Hour,
		Issuer:        "coachsync",
	})

	var seen string
	router := gin.New()
	router.GET("/protected", Scope(gate), func(c *gin.Context) {
		seen = TeacherID(c)
		c.Status(http.StatusOK)
	})
	return router, &seen
}

func signToken(t *testing.T, teacherID string) string {
	claims := models.JWTClaims{
		TeacherID: teacherID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "coachsync",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestScopeRejectsMissingHeader(t *testing.T) {
	router, _ := newScopedRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestScopeRejectsMalformedHeader(t *testing.T) {
	router, _ := newScopedRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestScopeAcceptsValidToken(t *testing.T) {
	router, seen := newScopedRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "ABC123"))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ABC123", *seen)
}

func TestTeacherIDEmptyWithoutScope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "", TeacherID(c))
}
