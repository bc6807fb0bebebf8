package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/koclink/coachsync/internal/middleware"
	"github.com/koclink/coachsync/internal/service"
	"github.com/koclink/coachsync/pkg/response"
)

// PendingRequestHandler exposes connection request endpoints.
type PendingRequestHandler struct {
	requests *service.PendingRequestService
}

// NewPendingRequestHandler constructs PendingRequestHandler.
func NewPendingRequestHandler(requests *service.PendingRequestService) *PendingRequestHandler {
	return &PendingRequestHandler{requests: requests}
}

// List returns unresolved requests. The count meta always equals the list
// length.
func (h *PendingRequestHandler) List(c *gin.Context) {
	requests, err := h.requests.List(c.Request.Context(), middleware.TeacherID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil, map[string]interface{}{"count": len(requests)})
}

// Approve accepts a connection request.
func (h *PendingRequestHandler) Approve(c *gin.Context) {
	if err := h.requests.Approve(c.Request.Context(), middleware.TeacherID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reject declines a connection request.
func (h *PendingRequestHandler) Reject(c *gin.Context) {
	if err := h.requests.Reject(c.Request.Context(), middleware.TeacherID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
