package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koclink/coachsync/internal/models"
	"github.com/koclink/coachsync/internal/remote"
)

type fakeSub struct {
	ch     chan remote.Change
	once   sync.Once
	mu     sync.Mutex
	closed bool
}

func newFakeSub() *fakeSub {
	return &fakeSub{ch: make(chan remote.Change, 8)}
}

func (f *fakeSub) Changes() <-chan remote.Change { return f.ch }
func (f *fakeSub) Err() error                    { return nil }
func (f *fakeSub) Close() error {
	f.once.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.ch)
	})
	return nil
}

func (f *fakeSub) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeWatcher struct {
	mu      sync.Mutex
	subs    map[string]*fakeSub
	filters map[string][]remote.Filter
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{subs: make(map[string]*fakeSub), filters: make(map[string][]remote.Filter)}
}

func (f *fakeWatcher) Watch(ctx context.Context, collection string, filters []remote.Filter) (remote.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := newFakeSub()
	f.subs[collection] = sub
	f.filters[collection] = filters
	return sub, nil
}

type mockImporter struct {
	mu       sync.Mutex
	students int
	exams    int
	perfs    int
}

func (m *mockImporter) ImportStudents(ctx context.Context, docs []remote.Document) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students += len(docs)
	return Stats{Applied: len(docs)}, nil
}

func (m *mockImporter) ImportExamDoc(ctx context.Context, doc remote.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exams++
	return nil
}

func (m *mockImporter) ImportPerformanceDoc(ctx context.Context, doc remote.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perfs++
	return nil
}

func (m *mockImporter) counts() (int, int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.students, m.exams, m.perfs
}

type mockScope struct {
	allowed map[string]bool
}

func (m *mockScope) SyncAllowed(ctx context.Context, studentID, teacherID string) (bool, error) {
	return m.allowed[studentID], nil
}

type mockPendingRepo struct {
	mu       sync.Mutex
	replaced [][]models.PendingRequest
}

func (m *mockPendingRepo) ReplacePending(ctx context.Context, teacherID string, requests []models.PendingRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaced = append(m.replaced, requests)
	return nil
}

func (m *mockPendingRepo) ListPending(ctx context.Context, teacherID string) ([]models.PendingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.replaced) == 0 {
		return nil, nil
	}
	return m.replaced[len(m.replaced)-1], nil
}

type mockPendingGateway struct {
	docs []remote.Document
}

func (m *mockPendingGateway) FetchPendingRequests(ctx context.Context, teacherID string) ([]remote.Document, error) {
	return m.docs, nil
}

type mockNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (m *mockNotifier) Notify(ctx context.Context, n Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append(m.notes, n)
}

func (m *mockNotifier) all() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.notes...)
}

func newTestManager(watcher remote.Watcher, importer importer) *ListenerManager {
	return NewListenerManager(watcher, importer, &mockScope{allowed: map[string]bool{}},
		&mockPendingRepo{}, &mockPendingGateway{}, nil, nil, nil, ListenerManagerConfig{QueueBuffer: 16})
}

func TestListenerManagerStartOpensAllWatches(t *testing.T) {
	watcher := newFakeWatcher()
	importer := &mockImporter{}
	m := newTestManager(watcher, importer)

	require.NoError(t, m.StartListening(context.Background(), "ABC123"))
	defer m.StopListening()

	assert.True(t, m.Running())
	watcher.mu.Lock()
	assert.Len(t, watcher.subs, 4)
	assert.Equal(t, []remote.Filter{{Field: "teacherID", Value: "ABC123"}}, watcher.filters[remote.CollectionStudents])
	assert.Nil(t, watcher.filters[remote.CollectionExams])
	watcher.mu.Unlock()
}

func TestListenerManagerAppliesStudentChanges(t *testing.T) {
	watcher := newFakeWatcher()
	importer := &mockImporter{}
	m := newTestManager(watcher, importer)

	require.NoError(t, m.StartListening(context.Background(), "ABC123"))
	defer m.StopListening()

	watcher.subs[remote.CollectionStudents].ch <- remote.Change{
		Type: remote.ChangeModified,
		Doc:  remote.Document{"id": testStudentID, "firstName": "Ali", "lastName": "Kaya"},
	}

	require.Eventually(t, func() bool {
		students, _, _ := importer.counts()
		return students == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestListenerManagerIgnoresRemovals(t *testing.T) {
	watcher := newFakeWatcher()
	importer := &mockImporter{}
	m := newTestManager(watcher, importer)

	require.NoError(t, m.StartListening(context.Background(), "ABC123"))
	defer m.StopListening()

	watcher.subs[remote.CollectionStudents].ch <- remote.Change{
		Type: remote.ChangeRemoved,
		Doc:  remote.Document{"id": testStudentID},
	}
	time.Sleep(100 * time.Millisecond)

	students, _, _ := importer.counts()
	assert.Zero(t, students)
}

func TestListenerManagerScopeChecksChildChanges(t *testing.T) {
	watcher := newFakeWatcher()
	importer := &mockImporter{}
	scope := &mockScope{allowed: map[string]bool{testStudentID: true}}
	m := NewListenerManager(watcher, importer, scope, &mockPendingRepo{}, &mockPendingGateway{},
		nil, nil, nil, ListenerManagerConfig{QueueBuffer: 16})

	require.NoError(t, m.StartListening(context.Background(), "ABC123"))
	defer m.StopListening()

	watcher.subs[remote.CollectionExams].ch <- remote.Change{
		Type: remote.ChangeAdded,
		Doc:  remote.Document{"id": testExamID, "studentID": testStudentID, "name": "Deneme 1", "totalScore": 400.0},
	}
	watcher.subs[remote.CollectionExams].ch <- remote.Change{
		Type: remote.ChangeAdded,
		Doc:  remote.Document{"id": testExamID, "studentID": testPerfID, "name": "Deneme 2", "totalScore": 380.0},
	}

	require.Eventually(t, func() bool {
		_, exams, _ := importer.counts()
		return exams == 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	_, exams, _ := importer.counts()
	assert.Equal(t, 1, exams)
}

func TestListenerManagerRefreshPending(t *testing.T) {
	older := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	gateway := &mockPendingGateway{docs: []remote.Document{
		{
			"id": testExamID, "studentID": testStudentID, "teacherID": "ABC123",
			"studentName": "Ali Kaya", "studentSchool": "Okul", "status": models.StatusPending,
			"createdAt": remote.Timestamp(older),
		},
		{
			"id": testPerfID, "studentID": testStudentID, "teacherID": "ABC123",
			"studentName": "Zeynep Demir", "studentSchool": "Okul", "status": models.StatusPending,
			"createdAt": remote.Timestamp(newer),
		},
		{
			"id": testStudentID, "studentID": testStudentID, "teacherID": "ABC123",
			"studentName": "Eski", "studentSchool": "Okul", "status": models.StatusApproved,
			"createdAt": remote.Timestamp(older),
		},
	}}
	pending := &mockPendingRepo{}
	notifier := &mockNotifier{}
	m := NewListenerManager(newFakeWatcher(), &mockImporter{}, &mockScope{}, pending, gateway,
		notifier, nil, nil, ListenerManagerConfig{})
	m.teacherID = "ABC123"

	require.NoError(t, m.refreshPending(context.Background()))

	require.Len(t, pending.replaced, 1)
	snapshot := pending.replaced[0]
	require.Len(t, snapshot, 2)
	assert.Equal(t, "Zeynep Demir", snapshot[0].StudentName)
	assert.Equal(t, 2, m.PendingCount())

	notes := notifier.all()
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "Zeynep Demir")
	assert.Equal(t, "pending_request", notes[0].Kind)

	// Same snapshot again, the count did not grow so no new notification.
	require.NoError(t, m.refreshPending(context.Background()))
	assert.Len(t, notifier.all(), 1)
}

func TestListenerManagerRestartSwitchesScope(t *testing.T) {
	watcher := newFakeWatcher()
	importer := &mockImporter{}
	m := newTestManager(watcher, importer)

	require.NoError(t, m.StartListening(context.Background(), "ABC123"))
	watcher.mu.Lock()
	oldSub := watcher.subs[remote.CollectionStudents]
	watcher.mu.Unlock()

	oldSub.ch <- remote.Change{
		Type: remote.ChangeAdded,
		Doc:  remote.Document{"id": testStudentID, "firstName": "Ali", "lastName": "Kaya"},
	}
	require.Eventually(t, func() bool {
		students, _, _ := importer.counts()
		return students == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, m.StartListening(context.Background(), "XYZ789"))
	defer m.StopListening()

	assert.True(t, oldSub.isClosed())
	assert.True(t, m.Running())

	watcher.mu.Lock()
	newSub := watcher.subs[remote.CollectionStudents]
	assert.Equal(t, []remote.Filter{{Field: "teacherID", Value: "XYZ789"}}, watcher.filters[remote.CollectionStudents])
	watcher.mu.Unlock()
	require.NotSame(t, oldSub, newSub)

	// Nothing beyond the drained old-scope change was applied.
	students, _, _ := importer.counts()
	assert.Equal(t, 1, students)

	newSub.ch <- remote.Change{
		Type: remote.ChangeModified,
		Doc:  remote.Document{"id": testStudentID, "firstName": "Ali", "lastName": "Kaya"},
	}
	require.Eventually(t, func() bool {
		students, _, _ := importer.counts()
		return students == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestListenerManagerStopIsIdempotent(t *testing.T) {
	watcher := newFakeWatcher()
	m := newTestManager(watcher, &mockImporter{})

	m.StopListening()

	require.NoError(t, m.StartListening(context.Background(), "ABC123"))
	assert.True(t, m.Running())
	m.StopListening()
	assert.False(t, m.Running())
	m.StopListening()
}
