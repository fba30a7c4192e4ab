package quickbooks

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// CacheBumper invalidates the workspace product cache.
type CacheBumper interface {
	Bump(ctx context.Context, workspaceID string) error
}

// Publisher emits job snapshots for watchers. The import runner publishes
// through it after every persisted progress update.
type Publisher struct {
	client *redis.Client
}

// NewPublisher constructs Publisher.
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish sends one snapshot on the job's channel.
func (p *Publisher) Publish(ctx context.Context, snap Snapshot) error {
	if p == nil || p.client == nil {
		return nil
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, ImportChannel(snap.JobID), raw).Err()
}

// Watcher follows one import job's snapshot stream. Callers must construct
// the watcher BEFORE enqueuing the import task so the first snapshot cannot
// be missed. On the first terminal snapshot the watcher bumps the product
// cache exactly once and stops.
type Watcher struct {
	workspaceID string
	jobID       string
	logger      *slog.Logger
	bumper      CacheBumper
	pubsub      *redis.PubSub

	snapshots chan Snapshot
	stopOnce  sync.Once
	bumpOnce  sync.Once
}

// Watch subscribes to the job channel and starts the forwarding loop.
func Watch(ctx context.Context, client *redis.Client, logger *slog.Logger, bumper CacheBumper, workspaceID, jobID string) (*Watcher, error) {
	pubsub := client.Subscribe(ctx, ImportChannel(jobID))
	// Force the SUBSCRIBE round trip so the broker registers us before the
	// import task is enqueued.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	w := &Watcher{
		workspaceID: workspaceID,
		jobID:       jobID,
		logger:      logger,
		bumper:      bumper,
		pubsub:      pubsub,
		snapshots:   make(chan Snapshot, 16),
	}
	go w.loop(ctx)
	return w, nil
}

// Snapshots streams progress updates. The channel closes after the terminal
// snapshot is delivered or the watcher stops.
func (w *Watcher) Snapshots() <-chan Snapshot {
	return w.snapshots
}

// Stop tears the subscription down. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		_ = w.pubsub.Close()
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.snapshots)
	defer w.Stop()

	ch := w.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var snap Snapshot
			if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
				w.logger.Warn("discarding malformed job snapshot", "job_id", w.jobID, "error", err)
				continue
			}
			select {
			case w.snapshots <- snap:
			case <-ctx.Done():
				return
			}
			if snap.Terminal() {
				w.bumpOnce.Do(func() {
					if w.bumper == nil {
						return
					}
					if err := w.bumper.Bump(ctx, w.workspaceID); err != nil {
						w.logger.Error("cache bump after import failed", "workspace_id", w.workspaceID, "error", err)
					}
				})
				return
			}
		}
	}
}
