package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/koclink/coachsync/internal/middleware"
	"github.com/koclink/coachsync/internal/service"
	appErrors "github.com/koclink/coachsync/pkg/errors"
	"github.com/koclink/coachsync/pkg/response"
)

// ImportHandler exposes the bulk import endpoint.
type ImportHandler struct {
	imports *service.ImportService
}

// NewImportHandler constructs ImportHandler.
func NewImportHandler(imports *service.ImportService) *ImportHandler {
	return &ImportHandler{imports: imports}
}

// Import stores pre-parsed rows for the scope.
func (h *ImportHandler) Import(c *gin.Context) {
	var req service.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	summary, err := h.imports.Import(c.Request.Context(), middleware.TeacherID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
