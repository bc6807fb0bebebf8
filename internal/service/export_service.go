package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/koclink/coachsync/internal/models"
	appErrors "github.com/koclink/coachsync/pkg/errors"
	"github.com/koclink/coachsync/pkg/export"
	"github.com/koclink/coachsync/pkg/storage"
)

// Export formats supported by the report endpoints.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatPDF  = "pdf"
)

// ExportResult carries rendered bytes with their content type and filename.
type ExportResult struct {
	ContentType string
	Filename    string
	Data        []byte
}

// ExportService renders scope data into downloadable reports. Rendered
// files are also kept on disk until resultTTL expires, so a report can be
// re-downloaded without rebuilding it.
type ExportService struct {
	students  scopeStudentLister
	exams     studentExamLister
	perfs     studentPerformanceLister
	csv       *export.CSVExporter
	json      *export.JSONExporter
	pdf       *export.PDFExporter
	files     *storage.LocalStorage
	resultTTL time.Duration
	logger    *zap.Logger
}

// NewExportService constructs the export service. A nil files store disables
// on-disk copies.
func NewExportService(students scopeStudentLister, exams studentExamLister,
	perfs studentPerformanceLister, files *storage.LocalStorage, resultTTL time.Duration,
	logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		students:  students,
		exams:     exams,
		perfs:     perfs,
		csv:       export.NewCSVExporter(),
		json:      export.NewJSONExporter(),
		pdf:       export.NewPDFExporter(),
		files:     files,
		resultTTL: resultTTL,
		logger:    logger,
	}
}

// Students renders the scope's student roster.
func (s *ExportService) Students(ctx context.Context, teacherID, format string) (*ExportResult, error) {
	students, err := s.students.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}

	dataset := export.Dataset{
		Headers: []string{"id", "first_name", "last_name", "school", "grade", "branch", "status", "target_total_score"},
	}
	for i := range students {
		st := &students[i]
		dataset.Rows = append(dataset.Rows, map[string]string{
			"id":                 st.ID,
			"first_name":         st.FirstName,
			"last_name":          st.LastName,
			"school":             st.School,
			"grade":              strconv.Itoa(st.Grade),
			"branch":             st.Branch,
			"status":             st.Status,
			"target_total_score": formatFloat(st.TargetTotalScore),
		})
	}
	return s.render(dataset, format, "students", "Ogrenci Listesi")
}

// Exams renders every exam in the scope with its owner.
func (s *ExportService) Exams(ctx context.Context, teacherID, format string) (*ExportResult, error) {
	students, err := s.students.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}

	dataset := export.Dataset{
		Headers: []string{"student", "name", "date", "total_score", "total_net"},
	}
	for i := range students {
		st := &students[i]
		exams, err := s.exams.ListByStudent(ctx, st.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exams")
		}
		for j := range exams {
			exam := &exams[j]
			dataset.Rows = append(dataset.Rows, map[string]string{
				"student":     st.FullName(),
				"name":        exam.Name,
				"date":        exam.Date.Format("2006-01-02"),
				"total_score": formatFloat(exam.TotalScore),
				"total_net":   formatFloat(exam.TotalNet()),
			})
		}
	}
	return s.render(dataset, format, "exams", "Deneme Sonuclari")
}

// Performances renders every question performance log in the scope.
func (s *ExportService) Performances(ctx context.Context, teacherID, format string) (*ExportResult, error) {
	students, err := s.students.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}

	dataset := export.Dataset{
		Headers: []string{"student", "subject", "topic", "correct", "wrong", "empty", "success_rate", "date"},
	}
	for i := range students {
		st := &students[i]
		perfs, err := s.perfs.ListByStudent(ctx, st.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load performances")
		}
		for j := range perfs {
			perf := &perfs[j]
			dataset.Rows = append(dataset.Rows, map[string]string{
				"student":      st.FullName(),
				"subject":      perf.Subject,
				"topic":        perf.Topic,
				"correct":      strconv.Itoa(perf.CorrectCount),
				"wrong":        strconv.Itoa(perf.WrongCount),
				"empty":        strconv.Itoa(perf.EmptyCount),
				"success_rate": formatFloat(perf.SuccessRate()),
				"date":         perf.Date.Format("2006-01-02"),
			})
		}
	}
	return s.render(dataset, format, "performances", "Soru Performansi")
}

// Progress renders one student's exam progression against targets.
func (s *ExportService) Progress(ctx context.Context, student *models.Student, exams []models.PracticeExam, format string) (*ExportResult, error) {
	dataset := export.Dataset{
		Headers: []string{"name", "date", "total_score", "target", "total_net"},
	}
	for i := range exams {
		exam := &exams[i]
		dataset.Rows = append(dataset.Rows, map[string]string{
			"name":        exam.Name,
			"date":        exam.Date.Format("2006-01-02"),
			"total_score": formatFloat(exam.TotalScore),
			"target":      formatFloat(student.TargetTotalScore),
			"total_net":   formatFloat(exam.TotalNet()),
		})
	}
	return s.render(dataset, format, "progress", student.FullName()+" Gelisim Raporu")
}

func (s *ExportService) render(dataset export.Dataset, format, name, title string) (*ExportResult, error) {
	switch format {
	case FormatCSV, "":
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "csv export failed")
		}
		result := &ExportResult{ContentType: "text/csv", Filename: name + ".csv", Data: data}
		s.store(result)
		return result, nil
	case FormatJSON:
		data, err := s.json.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "json export failed")
		}
		result := &ExportResult{ContentType: "application/json", Filename: name + ".json", Data: data}
		s.store(result)
		return result, nil
	case FormatPDF:
		data, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "pdf export failed")
		}
		result := &ExportResult{ContentType: "application/pdf", Filename: name + ".pdf", Data: data}
		s.store(result)
		return result, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func (s *ExportService) store(result *ExportResult) {
	if s.files == nil {
		return
	}
	if s.resultTTL > 0 {
		if _, err := s.files.CleanupOlderThan(s.resultTTL); err != nil {
			s.logger.Warn("failed to prune expired exports", zap.Error(err))
		}
	}
	name := fmt.Sprintf("%d_%s", time.Now().UTC().Unix(), result.Filename)
	if _, err := s.files.Save(name, result.Data); err != nil {
		s.logger.Warn("failed to store export copy", zap.Error(err))
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
