package sync

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/koclink/coachsync/internal/models"
	"github.com/koclink/coachsync/internal/remote"
	"github.com/koclink/coachsync/internal/repository"
	appErrors "github.com/koclink/coachsync/pkg/errors"
)

type studentStore interface {
	FindByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Student, error)
	Upsert(ctx context.Context, tx *sqlx.Tx, student *models.Student) error
	Exists(ctx context.Context, id string) (bool, error)
}

type examStore interface {
	FindByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.PracticeExam, error)
	Upsert(ctx context.Context, tx *sqlx.Tx, exam *models.PracticeExam) error
}

type performanceStore interface {
	FindByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.QuestionPerformance, error)
	Upsert(ctx context.Context, tx *sqlx.Tx, perf *models.QuestionPerformance) error
}

type remoteFetcher interface {
	FetchStudents(ctx context.Context, teacherID string) ([]remote.Document, error)
	FetchExams(ctx context.Context, studentID string) ([]remote.Document, error)
	FetchPerformances(ctx context.Context, studentID string) ([]remote.Document, error)
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

type stateStore interface {
	Set(ctx context.Context, key, value string) error
}

// Stats summarizes one reconciliation batch.
type Stats struct {
	Applied int
	Skipped int
}

// Status is a snapshot of the sync engine's health, surfaced to the UI.
type Status struct {
	IsSyncing    bool       `json:"is_syncing"`
	LastSyncDate *time.Time `json:"last_sync_date,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// Reconciler converges the local Entity Store with remote record batches. It
// is the only writer applying remote state locally; callers must not invoke
// import methods concurrently from multiple goroutines (the listener manager
// serializes them through a single-worker queue).
type Reconciler struct {
	db       *sqlx.DB
	students studentStore
	exams    examStore
	perfs    performanceStore
	gateway  remoteFetcher
	cache    cacheInvalidator
	state    stateStore
	bus      *EventBus
	metrics  Metrics
	logger   *zap.Logger

	syncing  atomic.Bool
	mu       sync.Mutex
	lastSync *time.Time
	lastErr  string
}

// NewReconciler constructs a Reconciler.
func NewReconciler(db *sqlx.DB, students studentStore, exams examStore, perfs performanceStore,
	gateway remoteFetcher, cache cacheInvalidator, state stateStore, bus *EventBus,
	metrics Metrics, logger *zap.Logger) *Reconciler {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if bus == nil {
		bus = NewEventBus()
	}
	return &Reconciler{
		db:       db,
		students: students,
		exams:    exams,
		perfs:    perfs,
		gateway:  gateway,
		cache:    cache,
		state:    state,
		bus:      bus,
		metrics:  metrics,
		logger:   logger,
	}
}

// Events exposes the store-change bus for collaborators.
func (r *Reconciler) Events() *EventBus { return r.bus }

// Status returns the current sync snapshot.
func (r *Reconciler) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{IsSyncing: r.syncing.Load(), LastSyncDate: r.lastSync, LastError: r.lastErr}
}

// ImportStudents reconciles a batch of remote student records. The whole
// batch commits in one transaction; individual malformed records are skipped
// and logged without failing their siblings.
func (r *Reconciler) ImportStudents(ctx context.Context, docs []remote.Document) (Stats, error) {
	var stats Stats
	var touched []string

	err := repository.RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, doc := range docs {
			id, ok := studentDocKey(doc)
			if !ok {
				stats.Skipped++
				r.logger.Warn("skipping malformed student record", zap.Any("id", doc["id"]))
				continue
			}

			student, err := r.students.FindByIDTx(ctx, tx, id)
			if err != nil {
				if !errors.Is(err, sql.ErrNoRows) {
					return err
				}
				// New local entity keeps the exact remote identifier; a fresh
				// one is never allocated here.
				student = &models.Student{
					ID:        id,
					Grade:     models.DefaultGrade,
					Status:    models.StatusSolo,
					CreatedAt: time.Now().UTC(),
				}
				student.ApplyDefaultTargets()
			}

			applyStudentDoc(student, doc)
			now := time.Now().UTC()
			student.LastSyncDate = &now

			if err := r.students.Upsert(ctx, tx, student); err != nil {
				return err
			}
			stats.Applied++
			touched = append(touched, id)
		}
		return nil
	})
	if err != nil {
		return stats, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "student reconciliation failed")
	}

	r.afterCommit(ctx, remote.CollectionStudents, touched, stats)
	return stats, nil
}

// ImportExamsForStudent reconciles a student's remote exams in one
// transaction. Used by the nested full-import path; the owning student is
// already known.
func (r *Reconciler) ImportExamsForStudent(ctx context.Context, studentID string, docs []remote.Document) (Stats, error) {
	var stats Stats
	var touched []string

	err := repository.RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, doc := range docs {
			id, ok := examDocKey(doc)
			if !ok {
				stats.Skipped++
				continue
			}
			exam, err := r.findOrNewExam(ctx, tx, id, studentID)
			if err != nil {
				return err
			}
			applyExamDoc(exam, doc)
			exam.StudentID = studentID
			if err := r.exams.Upsert(ctx, tx, exam); err != nil {
				return err
			}
			stats.Applied++
			touched = append(touched, id)
		}
		return nil
	})
	if err != nil {
		return stats, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "exam reconciliation failed")
	}

	r.invalidateSummary(ctx, studentID)
	r.afterCommit(ctx, remote.CollectionExams, touched, stats)
	return stats, nil
}

// ImportPerformancesForStudent reconciles a student's remote performances in
// one transaction.
func (r *Reconciler) ImportPerformancesForStudent(ctx context.Context, studentID string, docs []remote.Document) (Stats, error) {
	var stats Stats
	var touched []string

	err := repository.RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, doc := range docs {
			id, ok := performanceDocKey(doc)
			if !ok {
				stats.Skipped++
				continue
			}
			perf, err := r.findOrNewPerformance(ctx, tx, id, studentID)
			if err != nil {
				return err
			}
			applyPerformanceDoc(perf, doc)
			perf.StudentID = studentID
			if err := r.perfs.Upsert(ctx, tx, perf); err != nil {
				return err
			}
			stats.Applied++
			touched = append(touched, id)
		}
		return nil
	})
	if err != nil {
		return stats, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "performance reconciliation failed")
	}

	r.invalidateSummary(ctx, studentID)
	r.afterCommit(ctx, remote.CollectionPerformances, touched, stats)
	return stats, nil
}

// ImportStudentDeep reconciles one student record and then its nested exam
// and performance collections, mirroring the shape of the remote data. The
// student commit and the child commits are separate transactions; a failure
// between them leaves the student without fresh children until the next
// listener event.
func (r *Reconciler) ImportStudentDeep(ctx context.Context, doc remote.Document) error {
	id, ok := studentDocKey(doc)
	if !ok {
		r.logger.Warn("skipping malformed student record", zap.Any("id", doc["id"]))
		return nil
	}

	if _, err := r.ImportStudents(ctx, []remote.Document{doc}); err != nil {
		return err
	}

	examDocs, err := r.gateway.FetchExams(ctx, id)
	if err != nil {
		return err
	}
	if _, err := r.ImportExamsForStudent(ctx, id, examDocs); err != nil {
		return err
	}

	perfDocs, err := r.gateway.FetchPerformances(ctx, id)
	if err != nil {
		return err
	}
	if _, err := r.ImportPerformancesForStudent(ctx, id, perfDocs); err != nil {
		return err
	}
	return nil
}

// ImportExamDoc applies a single exam change from the live listener. An
// unknown owning student drops the change silently.
func (r *Reconciler) ImportExamDoc(ctx context.Context, doc remote.Document) error {
	studentID, sok := doc.String("studentID")
	if !sok || !validUUID(studentID) {
		return nil
	}
	id, ok := examDocKey(doc)
	if !ok {
		return nil
	}

	exists, err := r.students.Exists(ctx, studentID)
	if err != nil {
		return err
	}
	if !exists {
		r.logger.Warn("dropping exam for unknown student", zap.String("student_id", studentID))
		return nil
	}

	err = repository.RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		exam, err := r.findOrNewExam(ctx, tx, id, studentID)
		if err != nil {
			return err
		}
		applyExamDoc(exam, doc)
		exam.StudentID = studentID
		return r.exams.Upsert(ctx, tx, exam)
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "exam import failed")
	}

	r.invalidateSummary(ctx, studentID)
	r.afterCommit(ctx, remote.CollectionExams, []string{id}, Stats{Applied: 1})
	return nil
}

// ImportPerformanceDoc applies a single performance change from the live
// listener. An unknown owning student drops the change silently.
func (r *Reconciler) ImportPerformanceDoc(ctx context.Context, doc remote.Document) error {
	studentID, sok := doc.String("studentID")
	if !sok || !validUUID(studentID) {
		return nil
	}
	id, ok := performanceDocKey(doc)
	if !ok {
		return nil
	}

	exists, err := r.students.Exists(ctx, studentID)
	if err != nil {
		return err
	}
	if !exists {
		r.logger.Warn("dropping performance for unknown student", zap.String("student_id", studentID))
		return nil
	}

	err = repository.RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		perf, err := r.findOrNewPerformance(ctx, tx, id, studentID)
		if err != nil {
			return err
		}
		applyPerformanceDoc(perf, doc)
		perf.StudentID = studentID
		return r.perfs.Upsert(ctx, tx, perf)
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "performance import failed")
	}

	r.invalidateSummary(ctx, studentID)
	r.afterCommit(ctx, remote.CollectionPerformances, []string{id}, Stats{Applied: 1})
	return nil
}

// FetchAndImportAll pulls every student in the scope and reconciles each with
// its exams and performances. A remote fetch failure aborts the operation and
// surfaces the cause; batches committed by earlier iterations stay committed.
func (r *Reconciler) FetchAndImportAll(ctx context.Context, teacherID string) error {
	r.syncing.Store(true)
	defer r.syncing.Store(false)
	r.setError("")

	docs, err := r.gateway.FetchStudents(ctx, teacherID)
	if err != nil {
		wrapped := appErrors.Wrap(err, appErrors.ErrRemote.Code, appErrors.ErrRemote.Status, "failed to fetch students")
		r.setError(wrapped.Error())
		return wrapped
	}

	for _, doc := range docs {
		if err := r.ImportStudentDeep(ctx, doc); err != nil {
			r.setError(err.Error())
			return err
		}
	}

	now := time.Now().UTC()
	r.mu.Lock()
	r.lastSync = &now
	r.mu.Unlock()
	if r.state != nil {
		if err := r.state.Set(ctx, repository.StateLastSync, now.Format(time.RFC3339)); err != nil {
			r.logger.Warn("failed to persist last sync date", zap.Error(err))
		}
	}
	return nil
}

// ImportParsed inserts locally parsed records (file import collaborators)
// through the same create-or-update path used for remote batches. Entities
// without an identifier get a fresh one; existing identifiers upsert.
func (r *Reconciler) ImportParsed(ctx context.Context, students []models.Student,
	exams []models.PracticeExam, perfs []models.QuestionPerformance) (Stats, error) {
	var stats Stats

	err := repository.RunInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		for i := range students {
			s := &students[i]
			if s.ID == "" {
				s.ID = uuid.NewString()
			}
			if s.CreatedAt.IsZero() {
				s.CreatedAt = now
			}
			if s.Status == "" {
				s.Status = models.StatusSolo
			}
			if s.ConnectionType == "" {
				s.ConnectionType = models.ConnectionOffline
			}
			if err := r.students.Upsert(ctx, tx, s); err != nil {
				return err
			}
			stats.Applied++
		}
		for i := range exams {
			e := &exams[i]
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			if e.Date.IsZero() {
				e.Date = now
			}
			if err := r.exams.Upsert(ctx, tx, e); err != nil {
				return err
			}
			stats.Applied++
		}
		for i := range perfs {
			p := &perfs[i]
			if p.ID == "" {
				p.ID = uuid.NewString()
			}
			if p.Date.IsZero() {
				p.Date = now
			}
			if err := r.perfs.Upsert(ctx, tx, p); err != nil {
				return err
			}
			stats.Applied++
		}
		return nil
	})
	if err != nil {
		return stats, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "bulk import failed")
	}

	r.bus.Publish(StoreEvent{Entity: "bulk", Action: "imported"})
	return stats, nil
}

func (r *Reconciler) findOrNewExam(ctx context.Context, tx *sqlx.Tx, id, studentID string) (*models.PracticeExam, error) {
	exam, err := r.exams.FindByIDTx(ctx, tx, id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		exam = &models.PracticeExam{ID: id, StudentID: studentID, Date: time.Now().UTC()}
	}
	return exam, nil
}

func (r *Reconciler) findOrNewPerformance(ctx context.Context, tx *sqlx.Tx, id, studentID string) (*models.QuestionPerformance, error) {
	perf, err := r.perfs.FindByIDTx(ctx, tx, id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		perf = &models.QuestionPerformance{ID: id, StudentID: studentID, Date: time.Now().UTC()}
	}
	return perf, nil
}

func (r *Reconciler) invalidateSummary(ctx context.Context, studentID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.DeleteByPattern(ctx, repository.SummaryCacheKey(studentID)); err != nil {
		r.logger.Warn("failed to invalidate summary cache", zap.String("student_id", studentID), zap.Error(err))
	}
}

func (r *Reconciler) afterCommit(ctx context.Context, collection string, ids []string, stats Stats) {
	r.metrics.ObserveReconcile(collection, stats.Applied, stats.Skipped)
	for _, id := range ids {
		r.bus.Publish(StoreEvent{Entity: collection, Action: "upserted", ID: id})
	}
}

func (r *Reconciler) setError(message string) {
	r.mu.Lock()
	r.lastErr = message
	r.mu.Unlock()
}
