package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/koclink/coachsync/internal/middleware"
	"github.com/koclink/coachsync/internal/service"
	"github.com/koclink/coachsync/pkg/response"
)

// ExportHandler exposes report download endpoints.
type ExportHandler struct {
	exports  *service.ExportService
	students *service.StudentService
	exams    *service.ExamService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService, students *service.StudentService, exams *service.ExamService) *ExportHandler {
	return &ExportHandler{exports: exports, students: students, exams: exams}
}

// Students downloads the scope roster.
func (h *ExportHandler) Students(c *gin.Context) {
	result, err := h.exports.Students(c.Request.Context(), middleware.TeacherID(c), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	serve(c, result)
}

// Exams downloads every exam in the scope.
func (h *ExportHandler) Exams(c *gin.Context) {
	result, err := h.exports.Exams(c.Request.Context(), middleware.TeacherID(c), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	serve(c, result)
}

// Performances downloads every performance log in the scope.
func (h *ExportHandler) Performances(c *gin.Context) {
	result, err := h.exports.Performances(c.Request.Context(), middleware.TeacherID(c), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	serve(c, result)
}

// Progress downloads one student's progress report.
func (h *ExportHandler) Progress(c *gin.Context) {
	teacherID := middleware.TeacherID(c)
	studentID := c.Param("id")

	student, err := h.students.Get(c.Request.Context(), teacherID, studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	exams, err := h.exams.ListByStudent(c.Request.Context(), teacherID, studentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.exports.Progress(c.Request.Context(), student, exams, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	serve(c, result)
}

func serve(c *gin.Context, result *service.ExportResult) {
	c.Header("Content-Disposition", "attachment; filename="+result.Filename)
	c.Data(200, result.ContentType, result.Data)
}
