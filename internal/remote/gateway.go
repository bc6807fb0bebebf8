package remote

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/koclink/coachsync/internal/models"
	appErrors "github.com/koclink/coachsync/pkg/errors"
)

// DefaultBatchLimit matches the remote store's per-commit operation cap.
const DefaultBatchLimit = 500

// Gateway maps local entities onto remote collections. It never mutates the
// local store; every write is an idempotent upsert keyed by entity ID.
type Gateway struct {
	store      Store
	batchLimit int
	logger     *zap.Logger
}

// NewGateway constructs a Gateway over a Store.
func NewGateway(store Store, batchLimit int, logger *zap.Logger) *Gateway {
	if batchLimit <= 0 || batchLimit > DefaultBatchLimit {
		batchLimit = DefaultBatchLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{store: store, batchLimit: batchLimit, logger: logger}
}

// SyncStudent upserts a student document scoped to the given teacher code.
func (g *Gateway) SyncStudent(ctx context.Context, student *models.Student, teacherID string) error {
	return g.store.Put(ctx, CollectionStudents, student.ID, studentDoc(student, teacherID), true)
}

// DeleteStudent removes the student document. Child exam/performance
// documents are deleted separately by the caller.
func (g *Gateway) DeleteStudent(ctx context.Context, studentID string) error {
	return g.store.Delete(ctx, CollectionStudents, studentID)
}

// FetchStudents returns every student document scoped to the teacher code.
func (g *Gateway) FetchStudents(ctx context.Context, teacherID string) ([]Document, error) {
	return g.store.QueryWhere(ctx, CollectionStudents, "teacherID", teacherID, nil)
}

// SyncExam upserts an exam document.
func (g *Gateway) SyncExam(ctx context.Context, exam *models.PracticeExam, teacherID string) error {
	return g.store.Put(ctx, CollectionExams, exam.ID, examDoc(exam, teacherID), true)
}

// DeleteExam removes an exam document.
func (g *Gateway) DeleteExam(ctx context.Context, examID string) error {
	return g.store.Delete(ctx, CollectionExams, examID)
}

// FetchExams returns all exam documents for a student, newest first.
func (g *Gateway) FetchExams(ctx context.Context, studentID string) ([]Document, error) {
	return g.store.QueryWhere(ctx, CollectionExams, "studentID", studentID,
		&QueryOptions{OrderBy: "date", Descending: true})
}

// SyncPerformance upserts a question performance document.
func (g *Gateway) SyncPerformance(ctx context.Context, perf *models.QuestionPerformance, teacherID string) error {
	return g.store.Put(ctx, CollectionPerformances, perf.ID, performanceDoc(perf, teacherID), true)
}

// DeletePerformance removes a performance document.
func (g *Gateway) DeletePerformance(ctx context.Context, perfID string) error {
	return g.store.Delete(ctx, CollectionPerformances, perfID)
}

// FetchPerformances returns all performance documents for a student, newest
// first.
func (g *Gateway) FetchPerformances(ctx context.Context, studentID string) ([]Document, error) {
	return g.store.QueryWhere(ctx, CollectionPerformances, "studentID", studentID,
		&QueryOptions{OrderBy: "date", Descending: true})
}

// PutTeacher writes the teacher scope record.
func (g *Gateway) PutTeacher(ctx context.Context, teacher *models.Teacher) error {
	doc := Document{
		"id":        teacher.ID,
		"firstName": teacher.FirstName,
		"lastName":  teacher.LastName,
		"school":    teacher.School,
		"email":     teacher.Email,
		"createdAt": Timestamp(teacher.CreatedAt),
	}
	if teacher.FCMToken != nil {
		doc["fcmToken"] = *teacher.FCMToken
	}
	if teacher.LastTokenUpdate != nil {
		doc["lastTokenUpdate"] = Timestamp(*teacher.LastTokenUpdate)
	}
	return g.store.Put(ctx, CollectionTeachers, teacher.ID, doc, false)
}

// TeacherExists checks whether a teacher code is registered remotely.
func (g *Gateway) TeacherExists(ctx context.Context, teacherID string) (bool, error) {
	_, err := g.store.Get(ctx, CollectionTeachers, teacherID)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Code == appErrors.ErrNotFound.Code {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FetchTeacher loads the teacher scope record.
func (g *Gateway) FetchTeacher(ctx context.Context, teacherID string) (Document, error) {
	return g.store.Get(ctx, CollectionTeachers, teacherID)
}

// DeleteStudentCascade removes a student document together with its exam and
// performance documents in batched commits.
func (g *Gateway) DeleteStudentCascade(ctx context.Context, studentID string, examIDs, perfIDs []string) error {
	batch := g.NewBatch()
	for _, id := range examIDs {
		if err := batch.Delete(ctx, CollectionExams, id); err != nil {
			return err
		}
	}
	for _, id := range perfIDs {
		if err := batch.Delete(ctx, CollectionPerformances, id); err != nil {
			return err
		}
	}
	if err := batch.Delete(ctx, CollectionStudents, studentID); err != nil {
		return err
	}
	return batch.Flush(ctx)
}

// UpdateStudentStatus flips a student's connection status remotely via a
// sparse merge write.
func (g *Gateway) UpdateStudentStatus(ctx context.Context, studentID, status string, approvedAt time.Time) error {
	doc := Document{"status": status}
	if !approvedAt.IsZero() {
		doc["approvedAt"] = Timestamp(approvedAt)
	}
	return g.store.Put(ctx, CollectionStudents, studentID, doc, true)
}

// FetchPendingRequests returns the scope's connection request documents.
func (g *Gateway) FetchPendingRequests(ctx context.Context, teacherID string) ([]Document, error) {
	return g.store.QueryWhere(ctx, CollectionPendingRequests, "teacherID", teacherID, nil)
}

// UpdatePendingRequestStatus resolves a connection request remotely. The
// document is kept, only its status transitions.
func (g *Gateway) UpdatePendingRequestStatus(ctx context.Context, requestID, status string, respondedAt time.Time) error {
	return g.store.Put(ctx, CollectionPendingRequests, requestID, Document{
		"status":      status,
		"respondedAt": Timestamp(respondedAt),
	}, true)
}

// SyncAll pushes every student with its exams and performances in batched
// commits, flushing whenever the operation cap is reached.
func (g *Gateway) SyncAll(ctx context.Context, teacherID string, students []models.Student,
	examsByStudent map[string][]models.PracticeExam, perfsByStudent map[string][]models.QuestionPerformance) error {

	batch := g.NewBatch()
	for i := range students {
		student := &students[i]
		if err := batch.Put(ctx, CollectionStudents, student.ID, studentDoc(student, teacherID)); err != nil {
			return err
		}
		for j := range examsByStudent[student.ID] {
			exam := &examsByStudent[student.ID][j]
			if err := batch.Put(ctx, CollectionExams, exam.ID, examDoc(exam, teacherID)); err != nil {
				return err
			}
		}
		for j := range perfsByStudent[student.ID] {
			perf := &perfsByStudent[student.ID][j]
			if err := batch.Put(ctx, CollectionPerformances, perf.ID, performanceDoc(perf, teacherID)); err != nil {
				return err
			}
		}
	}
	return batch.Flush(ctx)
}

// Batch buffers write operations and auto-flushes at the store's cap.
type Batch struct {
	gateway *Gateway
	ops     []Operation
}

// NewBatch starts an empty batch.
func (g *Gateway) NewBatch() *Batch {
	return &Batch{gateway: g, ops: make([]Operation, 0, g.batchLimit)}
}

// Put queues a merge upsert, flushing first if the batch is full.
func (b *Batch) Put(ctx context.Context, collection, id string, fields Document) error {
	b.ops = append(b.ops, Operation{Kind: OpPut, Collection: collection, ID: id, Fields: fields, Merge: true})
	return b.flushIfFull(ctx)
}

// Delete queues a delete, flushing first if the batch is full.
func (b *Batch) Delete(ctx context.Context, collection, id string) error {
	b.ops = append(b.ops, Operation{Kind: OpDelete, Collection: collection, ID: id})
	return b.flushIfFull(ctx)
}

// Flush commits any buffered operations.
func (b *Batch) Flush(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	if err := b.gateway.store.Commit(ctx, b.ops); err != nil {
		return appErrors.Wrap(err, appErrors.ErrRemote.Code, appErrors.ErrRemote.Status, "batch commit failed")
	}
	b.gateway.logger.Debug("batch committed", zap.Int("operations", len(b.ops)))
	b.ops = b.ops[:0]
	return nil
}

func (b *Batch) flushIfFull(ctx context.Context) error {
	if len(b.ops) >= b.gateway.batchLimit {
		return b.Flush(ctx)
	}
	return nil
}

func studentDoc(s *models.Student, teacherID string) Document {
	doc := Document{
		"id":             s.ID,
		"firstName":      s.FirstName,
		"lastName":       s.LastName,
		"school":         s.School,
		"grade":          s.Grade,
		"branch":         s.Branch,
		"studentNumber":  s.StudentNumber,
		"notes":          s.Notes,
		"teacherID":      teacherID,
		"status":         s.Status,
		"connectionType": s.ConnectionType,
		"createdAt":      Timestamp(s.CreatedAt),
		"targets": Document{
			"totalScore":   s.TargetTotalScore,
			"turkceNet":    s.TargetTurkceNet,
			"matematikNet": s.TargetMatematikNet,
			"fenNet":       s.TargetFenNet,
			"sosyalNet":    s.TargetSosyalNet,
			"dinNet":       s.TargetDinNet,
			"ingilizceNet": s.TargetIngilizceNet,
		},
	}
	if s.ApprovedAt != nil {
		doc["approvedAt"] = Timestamp(*s.ApprovedAt)
	}
	return doc
}

func examDoc(e *models.PracticeExam, teacherID string) Document {
	return Document{
		"id":         e.ID,
		"studentID":  e.StudentID,
		"teacherID":  teacherID,
		"name":       e.Name,
		"date":       Timestamp(e.Date),
		"totalScore": e.TotalScore,
		"notes":      e.Notes,
		"nets": Document{
			"turkce":    e.TurkceNet,
			"matematik": e.MatematikNet,
			"fen":       e.FenNet,
			"sosyal":    e.SosyalNet,
			"din":       e.DinNet,
			"ingilizce": e.IngilizceNet,
		},
	}
}

func performanceDoc(p *models.QuestionPerformance, teacherID string) Document {
	return Document{
		"id":            p.ID,
		"studentID":     p.StudentID,
		"teacherID":     teacherID,
		"subject":       p.Subject,
		"topic":         p.Topic,
		"correctCount":  p.CorrectCount,
		"wrongCount":    p.WrongCount,
		"emptyCount":    p.EmptyCount,
		"timeInMinutes": p.TimeInMinutes,
		"notes":         p.Notes,
		"date":          Timestamp(p.Date),
	}
}
