package sync

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/koclink/coachsync/internal/models"
	"github.com/koclink/coachsync/internal/remote"
	"github.com/koclink/coachsync/pkg/jobs"
)

const (
	outcomeApplied = "applied"
	outcomeDropped = "dropped"
	outcomeIgnored = "ignored"
	outcomeFailed  = "failed"
)

type scopeChecker interface {
	SyncAllowed(ctx context.Context, studentID, teacherID string) (bool, error)
}

type pendingStore interface {
	ReplacePending(ctx context.Context, teacherID string, requests []models.PendingRequest) error
	ListPending(ctx context.Context, teacherID string) ([]models.PendingRequest, error)
}

type pendingFetcher interface {
	FetchPendingRequests(ctx context.Context, teacherID string) ([]remote.Document, error)
}

type importer interface {
	ImportStudents(ctx context.Context, docs []remote.Document) (Stats, error)
	ImportExamDoc(ctx context.Context, doc remote.Document) error
	ImportPerformanceDoc(ctx context.Context, doc remote.Document) error
}

// ListenerManagerConfig tunes the subscription manager.
type ListenerManagerConfig struct {
	QueueBuffer int
}

// ListenerManager owns the live watch subscriptions for the active teacher
// scope. Every change event funnels into a single-worker queue, so remote
// changes apply locally in arrival order with no interleaving.
type ListenerManager struct {
	watcher    remote.Watcher
	reconciler importer
	students   scopeChecker
	pending    pendingStore
	gateway    pendingFetcher
	notifier   Notifier
	metrics    Metrics
	logger     *zap.Logger
	cfg        ListenerManagerConfig

	mu           sync.Mutex
	teacherID    string
	subs         []remote.Subscription
	queue        *jobs.Queue
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	pendingCount int
	running      bool
}

// NewListenerManager constructs a ListenerManager.
func NewListenerManager(watcher remote.Watcher, reconciler importer, students scopeChecker,
	pending pendingStore, gateway pendingFetcher, notifier Notifier, metrics Metrics,
	logger *zap.Logger, cfg ListenerManagerConfig) *ListenerManager {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueueBuffer <= 0 {
		cfg.QueueBuffer = 256
	}
	return &ListenerManager{
		watcher:    watcher,
		reconciler: reconciler,
		students:   students,
		pending:    pending,
		gateway:    gateway,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// StartListening opens the watch subscriptions for the scope. Any previous
// subscriptions are stopped first, so calling it again with a new scope
// performs a clean restart. An apply already picked up by the worker may
// still finish under the old scope.
func (m *ListenerManager) StartListening(ctx context.Context, teacherID string) error {
	m.StopListening()

	m.mu.Lock()
	defer m.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())

	queue := jobs.NewQueue("listener-apply", m.handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: m.cfg.QueueBuffer,
		MaxRetries: 1,
		Logger:     m.logger,
	})
	queue.Start(runCtx)

	watches := []struct {
		collection string
		filters    []remote.Filter
	}{
		{remote.CollectionStudents, []remote.Filter{{Field: "teacherID", Value: teacherID}}},
		{remote.CollectionPendingRequests, []remote.Filter{
			{Field: "teacherID", Value: teacherID},
			{Field: "status", Value: models.StatusPending},
		}},
		// Exams and performances cannot be server-filtered by teacher; the
		// handler checks the owning student's scope before applying.
		{remote.CollectionExams, nil},
		{remote.CollectionPerformances, nil},
	}

	subs := make([]remote.Subscription, 0, len(watches))
	for _, w := range watches {
		sub, err := m.watcher.Watch(ctx, w.collection, w.filters)
		if err != nil {
			for _, opened := range subs {
				opened.Close()
			}
			queue.Stop()
			cancel()
			return fmt.Errorf("watch %s: %w", w.collection, err)
		}
		subs = append(subs, sub)

		m.wg.Add(1)
		go m.pump(runCtx, w.collection, sub, queue)
	}

	m.teacherID = teacherID
	m.subs = subs
	m.queue = queue
	m.cancel = cancel
	m.pendingCount = 0
	m.running = true
	m.metrics.SetActiveListeners(len(subs))
	m.logger.Info("listeners started", zap.String("teacher_id", teacherID), zap.Int("subscriptions", len(subs)))
	return nil
}

// StopListening closes every subscription and drains the apply queue. Safe to
// call when nothing is running.
func (m *ListenerManager) StopListening() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	subs := m.subs
	queue := m.queue
	cancel := m.cancel
	m.subs = nil
	m.queue = nil
	m.cancel = nil
	m.running = false
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	cancel()
	m.wg.Wait()
	queue.Stop()
	m.metrics.SetActiveListeners(0)
	m.logger.Info("listeners stopped")
}

// Running reports whether subscriptions are active.
func (m *ListenerManager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// PendingCount returns the size of the last pending-request snapshot.
func (m *ListenerManager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingCount
}

func (m *ListenerManager) pump(ctx context.Context, collection string, sub remote.Subscription, queue *jobs.Queue) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-sub.Changes():
			if !ok {
				if err := sub.Err(); err != nil {
					m.logger.Error("subscription closed", zap.String("collection", collection), zap.Error(err))
				}
				return
			}
			job := jobs.Job{Type: collection, Payload: change}
			if err := queue.Enqueue(job); err != nil {
				return
			}
		}
	}
}

func (m *ListenerManager) handle(ctx context.Context, job jobs.Job) error {
	change, ok := job.Payload.(remote.Change)
	if !ok {
		return nil
	}

	// Removals are not propagated to the local store; deleting local history
	// because a remote document vanished loses offline work.
	if change.Type == remote.ChangeRemoved {
		m.metrics.ObserveListenerEvent(job.Type, outcomeIgnored)
		return nil
	}

	var err error
	switch job.Type {
	case remote.CollectionStudents:
		err = m.handleStudent(ctx, change.Doc)
	case remote.CollectionExams:
		err = m.handleChild(ctx, change.Doc, m.reconciler.ImportExamDoc)
	case remote.CollectionPerformances:
		err = m.handleChild(ctx, change.Doc, m.reconciler.ImportPerformanceDoc)
	case remote.CollectionPendingRequests:
		err = m.refreshPending(ctx)
	default:
		m.metrics.ObserveListenerEvent(job.Type, outcomeDropped)
		return nil
	}

	if err != nil {
		m.metrics.ObserveListenerEvent(job.Type, outcomeFailed)
		m.logger.Error("listener apply failed", zap.String("collection", job.Type), zap.Error(err))
		return err
	}
	m.metrics.ObserveListenerEvent(job.Type, outcomeApplied)
	return nil
}

func (m *ListenerManager) handleStudent(ctx context.Context, doc remote.Document) error {
	_, err := m.reconciler.ImportStudents(ctx, []remote.Document{doc})
	return err
}

func (m *ListenerManager) handleChild(ctx context.Context, doc remote.Document,
	apply func(context.Context, remote.Document) error) error {
	studentID, ok := doc.String("studentID")
	if !ok {
		return nil
	}

	m.mu.Lock()
	teacherID := m.teacherID
	m.mu.Unlock()

	allowed, err := m.students.SyncAllowed(ctx, studentID, teacherID)
	if err != nil {
		return err
	}
	if !allowed {
		return nil
	}
	return apply(ctx, doc)
}

// refreshPending replaces the local pending list with a fresh remote
// snapshot. The listener only signals that something changed; the snapshot
// itself comes from a query, so count and list can never diverge.
func (m *ListenerManager) refreshPending(ctx context.Context) error {
	m.mu.Lock()
	teacherID := m.teacherID
	previous := m.pendingCount
	m.mu.Unlock()

	docs, err := m.gateway.FetchPendingRequests(ctx, teacherID)
	if err != nil {
		return err
	}

	requests := make([]models.PendingRequest, 0, len(docs))
	for _, doc := range docs {
		request, ok := parsePendingRequestDoc(doc)
		if !ok {
			continue
		}
		if request.Status != models.StatusPending {
			continue
		}
		requests = append(requests, *request)
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})

	if err := m.pending.ReplacePending(ctx, teacherID, requests); err != nil {
		return err
	}

	m.mu.Lock()
	m.pendingCount = len(requests)
	m.mu.Unlock()

	if len(requests) > previous && m.notifier != nil {
		newest := requests[0]
		m.notifier.Notify(ctx, Notification{
			Title:   "Yeni Bağlantı İsteği",
			Message: fmt.Sprintf("%s sizinle bağlantı kurmak istiyor", newest.StudentName),
			Kind:    "pending_request",
		})
	}
	return nil
}
