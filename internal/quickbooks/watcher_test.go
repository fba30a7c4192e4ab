package quickbooks

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type countingBumper struct {
	count atomic.Int32
}

func (c *countingBumper) Bump(context.Context, string) error {
	c.count.Add(1)
	return nil
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func collect(t *testing.T, w *Watcher, want int) []Snapshot {
	t.Helper()
	var got []Snapshot
	timeout := time.After(2 * time.Second)
	for len(got) < want {
		select {
		case snap, ok := <-w.Snapshots():
			if !ok {
				return got
			}
			got = append(got, snap)
		case <-timeout:
			t.Fatalf("timed out waiting for snapshots, got %d of %d", len(got), want)
		}
	}
	return got
}

func TestWatcherTracksProgressAndBumpsOnce(t *testing.T) {
	client := testRedis(t)
	bumper := &countingBumper{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := Watch(ctx, client, slog.New(slog.NewTextHandler(io.Discard, nil)), bumper, "ws1", "job-1")
	require.NoError(t, err)
	defer w.Stop()

	pub := NewPublisher(client)
	total := 100
	steps := []Snapshot{
		{JobID: "job-1", Status: JobRunning, Processed: 0},
		{JobID: "job-1", Status: JobRunning, Processed: 50, TotalItems: &total},
		{JobID: "job-1", Status: JobSuccess, Processed: 100, TotalItems: &total},
	}
	for _, snap := range steps {
		require.NoError(t, pub.Publish(ctx, snap))
	}

	got := collect(t, w, 3)
	require.Len(t, got, 3)

	_, known := got[0].Progress()
	require.False(t, known, "progress must be indeterminate before the total is known")

	pct, known := got[1].Progress()
	require.True(t, known)
	require.InDelta(t, 50, pct, 1e-9)

	require.True(t, got[2].Terminal())

	// Channel closes after the terminal snapshot; the bump happened once.
	_, open := <-w.Snapshots()
	require.False(t, open)
	require.Equal(t, int32(1), bumper.count.Load())
}

func TestWatcherSubscribesBeforeTrigger(t *testing.T) {
	client := testRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := Watch(ctx, client, slog.New(slog.NewTextHandler(io.Discard, nil)), nil, "ws1", "job-1")
	require.NoError(t, err)
	defer w.Stop()

	// A snapshot published immediately after Watch returns must be seen:
	// the subscription handshake completed inside Watch.
	require.NoError(t, NewPublisher(client).Publish(ctx, Snapshot{JobID: "job-1", Status: JobRunning, Processed: 1}))

	got := collect(t, w, 1)
	require.Len(t, got, 1)
	require.Equal(t, 1, got[0].Processed)
}

func TestWatcherIgnoresMalformedPayloads(t *testing.T) {
	client := testRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := Watch(ctx, client, slog.New(slog.NewTextHandler(io.Discard, nil)), nil, "ws1", "job-1")
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, client.Publish(ctx, ImportChannel("job-1"), "not json").Err())
	require.NoError(t, NewPublisher(client).Publish(ctx, Snapshot{JobID: "job-1", Status: JobFailed, ErrorMessage: "boom"}))

	got := collect(t, w, 1)
	require.Len(t, got, 1)
	require.Equal(t, JobFailed, got[0].Status)
	require.Equal(t, "boom", got[0].ErrorMessage)
}

func TestWatcherStopClosesStream(t *testing.T) {
	client := testRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := Watch(ctx, client, slog.New(slog.NewTextHandler(io.Discard, nil)), nil, "ws1", "job-1")
	require.NoError(t, err)

	w.Stop()
	w.Stop()

	select {
	case _, open := <-w.Snapshots():
		require.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot channel did not close after Stop")
	}
}
