package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/koclink/coachsync/internal/middleware"
	"github.com/koclink/coachsync/internal/service"
	appErrors "github.com/koclink/coachsync/pkg/errors"
	"github.com/koclink/coachsync/pkg/response"
)

// PerformanceHandler exposes question performance endpoints.
type PerformanceHandler struct {
	perfs *service.PerformanceService
}

// NewPerformanceHandler constructs PerformanceHandler.
func NewPerformanceHandler(perfs *service.PerformanceService) *PerformanceHandler {
	return &PerformanceHandler{perfs: perfs}
}

// ListByStudent returns a student's performance logs.
func (h *PerformanceHandler) ListByStudent(c *gin.Context) {
	perfs, err := h.perfs.ListByStudent(c.Request.Context(), middleware.TeacherID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, perfs, nil)
}

// Create records a performance log.
func (h *PerformanceHandler) Create(c *gin.Context) {
	var req service.PerformanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	perf, err := h.perfs.Create(c.Request.Context(), middleware.TeacherID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, perf)
}

// Update edits a performance log.
func (h *PerformanceHandler) Update(c *gin.Context) {
	var req service.PerformanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	perf, err := h.perfs.Update(c.Request.Context(), middleware.TeacherID(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, perf, nil)
}

// Delete removes a performance log.
func (h *PerformanceHandler) Delete(c *gin.Context) {
	if err := h.perfs.Delete(c.Request.Context(), middleware.TeacherID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
