package quickbooks

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	conns    map[string]Connection
	jobs     map[string]ImportJob
	autosync map[string]AutoSyncConfig
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		conns:    map[string]Connection{},
		jobs:     map[string]ImportJob{},
		autosync: map[string]AutoSyncConfig{},
	}
}

func (m *memoryRepo) SaveConnection(_ context.Context, conn Connection) error {
	m.conns[conn.WorkspaceID] = conn
	return nil
}

func (m *memoryRepo) GetConnection(_ context.Context, workspaceID string) (Connection, error) {
	conn, ok := m.conns[workspaceID]
	if !ok {
		return Connection{}, ErrNotConnected
	}
	return conn, nil
}

func (m *memoryRepo) DeleteConnection(_ context.Context, workspaceID string) error {
	delete(m.conns, workspaceID)
	return nil
}

func (m *memoryRepo) InsertJob(_ context.Context, job ImportJob) error {
	m.jobs[job.ID] = job
	return nil
}

func (m *memoryRepo) GetJob(_ context.Context, _, jobID string) (ImportJob, error) {
	job, ok := m.jobs[jobID]
	if !ok {
		return ImportJob{}, ErrJobNotFound
	}
	return job, nil
}

func (m *memoryRepo) ListJobs(_ context.Context, workspaceID string, _ int) ([]ImportJob, error) {
	var jobs []ImportJob
	for _, job := range m.jobs {
		if job.WorkspaceID == workspaceID {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (m *memoryRepo) GetAutoSync(_ context.Context, workspaceID string) (AutoSyncConfig, error) {
	cfg, ok := m.autosync[workspaceID]
	if !ok {
		return AutoSyncConfig{WorkspaceID: workspaceID, ProductPush: IntervalOff, InventoryPull: IntervalOff}, nil
	}
	return cfg, nil
}

func (m *memoryRepo) SaveAutoSync(_ context.Context, cfg AutoSyncConfig) error {
	m.autosync[cfg.WorkspaceID] = cfg
	return nil
}

type recordingEnqueuer struct {
	imports []string
	pushes  []string
	pulls   []string
}

func (r *recordingEnqueuer) EnqueueImport(_ context.Context, _, jobID string, _ []string) error {
	r.imports = append(r.imports, jobID)
	return nil
}

func (r *recordingEnqueuer) EnqueueProductPush(_ context.Context, workspaceID string) error {
	r.pushes = append(r.pushes, workspaceID)
	return nil
}

func (r *recordingEnqueuer) EnqueueInventoryPull(_ context.Context, workspaceID string) error {
	r.pulls = append(r.pulls, workspaceID)
	return nil
}

func TestStartImportCreatesRunningJobBeforeEnqueue(t *testing.T) {
	client := testRedis(t)
	repo := newMemoryRepo()
	repo.conns["ws1"] = Connection{WorkspaceID: "ws1", RealmID: "realm-1"}
	enq := &recordingEnqueuer{}
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), NewClient(ClientConfig{}), repo, client, nil, enq)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job, watcher, err := svc.StartImport(ctx, "ws1", []string{"A-1"})
	require.NoError(t, err)
	defer watcher.Stop()

	require.Equal(t, JobRunning, job.Status)
	require.Zero(t, job.Processed)
	require.Nil(t, job.TotalItems)
	require.Equal(t, []string{"A-1"}, job.AllowedSKUs)

	stored, ok := repo.jobs[job.ID]
	require.True(t, ok)
	require.Equal(t, JobRunning, stored.Status)
	require.Equal(t, []string{job.ID}, enq.imports)

	// The watcher was subscribed before the enqueue, so a snapshot published
	// now is guaranteed to arrive.
	require.NoError(t, NewPublisher(client).Publish(ctx, Snapshot{JobID: job.ID, Status: JobRunning, Processed: 1}))
	select {
	case snap := <-watcher.Snapshots():
		require.Equal(t, 1, snap.Processed)
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot was not delivered")
	}
}

func TestStartImportRequiresConnection(t *testing.T) {
	client := testRedis(t)
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), NewClient(ClientConfig{}), newMemoryRepo(), client, nil, &recordingEnqueuer{})

	_, _, err := svc.StartImport(context.Background(), "ws1", nil)
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestSaveAutoSyncRejectsUnknownInterval(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), nil, repo, nil, nil, nil)

	err := svc.SaveAutoSync(context.Background(), AutoSyncConfig{
		WorkspaceID: "ws1", ProductPush: SyncInterval("15m"), InventoryPull: IntervalOff,
	})
	require.ErrorIs(t, err, ErrBadInterval)

	require.NoError(t, svc.SaveAutoSync(context.Background(), AutoSyncConfig{
		WorkspaceID: "ws1", ProductPush: Interval4h, InventoryPull: Interval1d,
	}))
	saved := repo.autosync["ws1"]
	require.Equal(t, Interval4h, saved.ProductPush)
}

func TestAutoSyncDueSemantics(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	ran := now.Add(-45 * time.Minute)

	cfg := AutoSyncConfig{ProductPush: Interval30m, InventoryPull: Interval1h, LastProductRun: &ran, LastInventoryRun: &ran}
	require.True(t, cfg.DueProductPush(now))
	require.False(t, cfg.DueInventoryPull(now))

	cfg = AutoSyncConfig{ProductPush: IntervalOff}
	require.False(t, cfg.DueProductPush(now))

	cfg = AutoSyncConfig{ProductPush: Interval7d}
	require.True(t, cfg.DueProductPush(now), "a schedule that never ran is due")
}
