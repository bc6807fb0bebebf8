package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/koclink/coachsync/internal/identity"
	"github.com/koclink/coachsync/internal/service"
	appErrors "github.com/koclink/coachsync/pkg/errors"
	"github.com/koclink/coachsync/pkg/response"
)

// AuthHandler exposes the identity gate endpoints.
type AuthHandler struct {
	gate    *identity.Gate
	syncSvc *service.SyncService
	logger  *zap.Logger
}

// NewAuthHandler constructs AuthHandler. syncSvc may be nil; when set, scope
// changes restart the live subscriptions.
func NewAuthHandler(gate *identity.Gate, syncSvc *service.SyncService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{gate: gate, syncSvc: syncSvc, logger: logger}
}

// Register creates a teacher scope with a freshly allocated code.
func (h *AuthHandler) Register(c *gin.Context) {
	var req identity.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	session, err := h.gate.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.restartListeners(c, session.Code)
	response.Created(c, session)
}

type loginRequest struct {
	Code string `json:"code"`
}

// Login activates an existing scope by teacher code.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	session, err := h.gate.Login(c.Request.Context(), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.restartListeners(c, session.Code)
	response.JSON(c, http.StatusOK, session, nil)
}

// Logout clears the active scope.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.gate.Logout(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	if h.syncSvc != nil {
		h.syncSvc.StopListeners()
	}
	response.NoContent(c)
}

// restartListeners re-opens the live subscriptions under the new scope. A
// startup failure does not fail the auth request; listeners can be started
// again through the sync endpoints.
func (h *AuthHandler) restartListeners(c *gin.Context, teacherID string) {
	if h.syncSvc == nil {
		return
	}
	if err := h.syncSvc.StartListeners(c.Request.Context(), teacherID); err != nil {
		h.logger.Warn("listener restart failed after scope change",
			zap.String("teacher_id", teacherID), zap.Error(err))
	}
}
