package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/koclink/coachsync/internal/middleware"
	"github.com/koclink/coachsync/internal/service"
	"github.com/koclink/coachsync/pkg/response"
)

// SyncHandler exposes sync engine controls.
type SyncHandler struct {
	syncSvc *service.SyncService
}

// NewSyncHandler constructs SyncHandler.
func NewSyncHandler(syncSvc *service.SyncService) *SyncHandler {
	return &SyncHandler{syncSvc: syncSvc}
}

// Import triggers a full pull of the scope's remote state.
func (h *SyncHandler) Import(c *gin.Context) {
	if err := h.syncSvc.TriggerImport(c.Request.Context(), middleware.TeacherID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.syncSvc.Status(c.Request.Context()), nil)
}

// Push mirrors the scope's local entities to the remote store.
func (h *SyncHandler) Push(c *gin.Context) {
	if err := h.syncSvc.PushAll(c.Request.Context(), middleware.TeacherID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.syncSvc.Status(c.Request.Context()), nil)
}

// Status reports the engine snapshot.
func (h *SyncHandler) Status(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.syncSvc.Status(c.Request.Context()), nil)
}

// StartListeners opens live subscriptions for the scope.
func (h *SyncHandler) StartListeners(c *gin.Context) {
	if err := h.syncSvc.StartListeners(c.Request.Context(), middleware.TeacherID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.syncSvc.Status(c.Request.Context()), nil)
}

// StopListeners closes live subscriptions.
func (h *SyncHandler) StopListeners(c *gin.Context) {
	h.syncSvc.StopListeners()
	response.JSON(c, http.StatusOK, h.syncSvc.Status(c.Request.Context()), nil)
}
