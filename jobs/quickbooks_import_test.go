package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/stockpilot/stockpilot/internal/catalog"
	"github.com/stockpilot/stockpilot/internal/quickbooks"
)

type memoryStore struct {
	jobs      map[string]quickbooks.ImportJob
	connected bool
}

func newMemoryStore(job quickbooks.ImportJob) *memoryStore {
	return &memoryStore{jobs: map[string]quickbooks.ImportJob{job.ID: job}, connected: true}
}

func (s *memoryStore) GetJob(_ context.Context, _, jobID string) (quickbooks.ImportJob, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return quickbooks.ImportJob{}, quickbooks.ErrJobNotFound
	}
	return job, nil
}

func (s *memoryStore) UpdateJobProgress(_ context.Context, job quickbooks.ImportJob, newItems []quickbooks.ItemLog) error {
	stored, ok := s.jobs[job.ID]
	if !ok {
		return quickbooks.ErrJobNotFound
	}
	if stored.Status.Terminal() {
		return quickbooks.ErrJobNotRunning
	}
	stored.Processed = job.Processed
	stored.TotalItems = job.TotalItems
	stored.Imported = job.Imported
	stored.Updated = job.Updated
	stored.Skipped = job.Skipped
	stored.Errors = job.Errors
	stored.Items = append(stored.Items, newItems...)
	s.jobs[job.ID] = stored
	return nil
}

func (s *memoryStore) FinishJob(_ context.Context, _, jobID string, status quickbooks.JobStatus, msg string) error {
	stored, ok := s.jobs[jobID]
	if !ok {
		return quickbooks.ErrJobNotFound
	}
	if stored.Status.Terminal() {
		return quickbooks.ErrJobNotRunning
	}
	stored.Status = status
	stored.ErrorMessage = msg
	now := time.Now()
	stored.FinishedAt = &now
	s.jobs[jobID] = stored
	return nil
}

func (s *memoryStore) GetConnection(_ context.Context, workspaceID string) (quickbooks.Connection, error) {
	if !s.connected {
		return quickbooks.Connection{}, quickbooks.ErrNotConnected
	}
	return quickbooks.Connection{WorkspaceID: workspaceID, RealmID: "realm-1"}, nil
}

type fakeItems struct {
	items []quickbooks.Item
	err   error
}

func (f *fakeItems) ListItems(context.Context, quickbooks.Connection) ([]quickbooks.Item, error) {
	return f.items, f.err
}

type fakeProducts struct {
	bySKU map[string]catalog.Product
}

func (f *fakeProducts) GetProductBySKU(_ context.Context, _, sku string) (catalog.Product, error) {
	p, ok := f.bySKU[sku]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeProducts) InsertProduct(_ context.Context, p catalog.Product) (catalog.Product, error) {
	f.bySKU[p.SKU] = p
	return p, nil
}

func (f *fakeProducts) UpdateProduct(_ context.Context, p catalog.Product) error {
	f.bySKU[p.SKU] = p
	return nil
}

type capturePublisher struct {
	snapshots []quickbooks.Snapshot
}

func (c *capturePublisher) Publish(_ context.Context, snap quickbooks.Snapshot) error {
	c.snapshots = append(c.snapshots, snap)
	return nil
}

func importTask(t *testing.T, payload ImportPayload) *asynq.Task {
	t.Helper()
	task, err := NewImportTask(payload)
	require.NoError(t, err)
	return task
}

func TestImportUpsertsAndPublishesProgress(t *testing.T) {
	job := quickbooks.ImportJob{ID: "job-1", WorkspaceID: "ws1", Status: quickbooks.JobRunning}
	store := newMemoryStore(job)
	items := &fakeItems{items: []quickbooks.Item{
		{SKU: "NEW-1", Name: "New Widget", QtyOnHand: 4, UnitPrice: 9.5, Active: true},
		{SKU: "OLD-1", Name: "Renamed", QtyOnHand: 7, UnitPrice: 3, Active: true},
		{Name: "No SKU", Active: true},
	}}
	products := &fakeProducts{bySKU: map[string]catalog.Product{
		"OLD-1": {ID: "p1", WorkspaceID: "ws1", SKU: "OLD-1", Name: "Old name", QuantityBox: 1},
	}}
	publisher := &capturePublisher{}

	runner := NewImportJob(store, items, products, publisher, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	err := runner.Handle(context.Background(), importTask(t, ImportPayload{WorkspaceID: "ws1", JobID: "job-1"}))
	require.NoError(t, err)

	final := store.jobs["job-1"]
	require.Equal(t, quickbooks.JobSuccess, final.Status)
	require.Equal(t, 3, final.Processed)
	require.Equal(t, 1, final.Imported)
	require.Equal(t, 1, final.Updated)
	require.Equal(t, 1, final.Skipped)
	require.Zero(t, final.Errors)
	require.Len(t, final.Items, 3)

	require.Equal(t, "Renamed", products.bySKU["OLD-1"].Name)
	require.Equal(t, 7, products.bySKU["OLD-1"].QuantityBox)
	require.Contains(t, products.bySKU, "NEW-1")

	// First snapshot carries the total, the last the terminal state, and
	// exactly one terminal snapshot is published.
	require.NotEmpty(t, publisher.snapshots)
	first := publisher.snapshots[0]
	require.NotNil(t, first.TotalItems)
	require.Equal(t, 3, *first.TotalItems)
	terminal := 0
	for _, snap := range publisher.snapshots {
		if snap.Terminal() {
			terminal++
		}
	}
	require.Equal(t, 1, terminal)
	require.True(t, publisher.snapshots[len(publisher.snapshots)-1].Terminal())
}

func TestImportSnapshotProgressPercentages(t *testing.T) {
	var snap quickbooks.Snapshot
	_, known := snap.Progress()
	require.False(t, known)

	total := 100
	snap = quickbooks.Snapshot{Processed: 50, TotalItems: &total}
	pct, known := snap.Progress()
	require.True(t, known)
	require.InDelta(t, 50, pct, 1e-9)
}

func TestImportHonoursAllowedSKUs(t *testing.T) {
	job := quickbooks.ImportJob{ID: "job-1", WorkspaceID: "ws1", Status: quickbooks.JobRunning}
	store := newMemoryStore(job)
	items := &fakeItems{items: []quickbooks.Item{
		{SKU: "KEEP", Name: "Keep", Active: true},
		{SKU: "DROP", Name: "Drop", Active: true},
	}}
	products := &fakeProducts{bySKU: map[string]catalog.Product{}}

	runner := NewImportJob(store, items, products, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	err := runner.Handle(context.Background(), importTask(t, ImportPayload{
		WorkspaceID: "ws1", JobID: "job-1", AllowedSKUs: []string{"KEEP"},
	}))
	require.NoError(t, err)

	final := store.jobs["job-1"]
	require.NotNil(t, final.TotalItems)
	require.Equal(t, 1, *final.TotalItems)
	require.Equal(t, 1, final.Imported)
	require.Contains(t, products.bySKU, "KEEP")
	require.NotContains(t, products.bySKU, "DROP")
}

func TestImportListFailureMarksJobFailed(t *testing.T) {
	job := quickbooks.ImportJob{ID: "job-1", WorkspaceID: "ws1", Status: quickbooks.JobRunning}
	store := newMemoryStore(job)
	items := &fakeItems{err: errors.New("rate limited")}
	publisher := &capturePublisher{}

	runner := NewImportJob(store, items, &fakeProducts{bySKU: map[string]catalog.Product{}}, publisher, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	err := runner.Handle(context.Background(), importTask(t, ImportPayload{WorkspaceID: "ws1", JobID: "job-1"}))
	require.Error(t, err)

	final := store.jobs["job-1"]
	require.Equal(t, quickbooks.JobFailed, final.Status)
	require.Contains(t, final.ErrorMessage, "rate limited")

	require.NotEmpty(t, publisher.snapshots)
	last := publisher.snapshots[len(publisher.snapshots)-1]
	require.Equal(t, quickbooks.JobFailed, last.Status)
	require.NotEmpty(t, last.ErrorMessage)
}

func TestImportTerminalJobIsNotRerun(t *testing.T) {
	job := quickbooks.ImportJob{ID: "job-1", WorkspaceID: "ws1", Status: quickbooks.JobSuccess}
	store := newMemoryStore(job)
	items := &fakeItems{items: []quickbooks.Item{{SKU: "X", Name: "X", Active: true}}}
	products := &fakeProducts{bySKU: map[string]catalog.Product{}}

	runner := NewImportJob(store, items, products, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	err := runner.Handle(context.Background(), importTask(t, ImportPayload{WorkspaceID: "ws1", JobID: "job-1"}))
	require.NoError(t, err)
	require.Empty(t, products.bySKU)
}

func TestImportMalformedPayloadSkipsRetry(t *testing.T) {
	runner := NewImportJob(newMemoryStore(quickbooks.ImportJob{ID: "j"}), &fakeItems{}, &fakeProducts{bySKU: map[string]catalog.Product{}}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	task := asynq.NewTask(TaskQuickBooksImport, []byte("{"))
	err := runner.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type fakeSchedules struct {
	configs []quickbooks.AutoSyncConfig
}

func (f *fakeSchedules) ListAutoSync(context.Context) ([]quickbooks.AutoSyncConfig, error) {
	return f.configs, nil
}

type recordingEnqueuer struct {
	pushes []string
	pulls  []string
}

func (r *recordingEnqueuer) EnqueueProductPush(_ context.Context, workspaceID string) error {
	r.pushes = append(r.pushes, workspaceID)
	return nil
}

func (r *recordingEnqueuer) EnqueueInventoryPull(_ context.Context, workspaceID string) error {
	r.pulls = append(r.pulls, workspaceID)
	return nil
}

func TestAutoSyncSweepEnqueuesOnlyDueWork(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-10 * time.Minute)
	stale := now.Add(-2 * time.Hour)

	store := &fakeSchedules{configs: []quickbooks.AutoSyncConfig{
		{WorkspaceID: "ws-due", ProductPush: quickbooks.Interval1h, InventoryPull: quickbooks.Interval30m, LastProductRun: &stale, LastInventoryRun: &stale},
		{WorkspaceID: "ws-fresh", ProductPush: quickbooks.Interval1h, InventoryPull: quickbooks.Interval1h, LastProductRun: &recent, LastInventoryRun: &recent},
		{WorkspaceID: "ws-off", ProductPush: quickbooks.IntervalOff, InventoryPull: quickbooks.IntervalOff},
		{WorkspaceID: "ws-never", ProductPush: quickbooks.Interval7d, InventoryPull: quickbooks.IntervalOff},
	}}
	enq := &recordingEnqueuer{}

	sweep := NewAutoSyncSweepJob(store, enq, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	sweep.clock = func() time.Time { return now }

	require.NoError(t, sweep.Handle(context.Background(), NewAutoSyncSweepTask()))

	// Never-run schedules are due immediately.
	require.ElementsMatch(t, []string{"ws-due", "ws-never"}, enq.pushes)
	require.Equal(t, []string{"ws-due"}, enq.pulls)
}

func TestImportPayloadRoundTrip(t *testing.T) {
	task, err := NewImportTask(ImportPayload{WorkspaceID: "ws1", JobID: "job-1", AllowedSKUs: []string{"A"}})
	require.NoError(t, err)

	var decoded ImportPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	require.Equal(t, "ws1", decoded.WorkspaceID)
	require.Equal(t, []string{"A"}, decoded.AllowedSKUs)
}
