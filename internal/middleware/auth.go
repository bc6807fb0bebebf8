package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/koclink/coachsync/internal/identity"
	appErrors "github.com/koclink/coachsync/pkg/errors"
	"github.com/koclink/coachsync/pkg/response"
)

// ContextScopeKey is the gin context key storing the active teacher scope.
const ContextScopeKey = "teacherScope"

// Scope protects routes by requiring a session token and stores the teacher
// code it carries on the request context.
func Scope(gate *identity.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := gate.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextScopeKey, claims.TeacherID)
		c.Next()
	}
}

// TeacherID returns the scope stored by Scope, or empty.
func TeacherID(c *gin.Context) string {
	value, ok := c.Get(ContextScopeKey)
	if !ok {
		return ""
	}
	scope, _ := value.(string)
	return scope
}
