package quickbooks

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RepositoryPort is the persistence surface the service needs.
type RepositoryPort interface {
	SaveConnection(ctx context.Context, conn Connection) error
	GetConnection(ctx context.Context, workspaceID string) (Connection, error)
	DeleteConnection(ctx context.Context, workspaceID string) error
	InsertJob(ctx context.Context, job ImportJob) error
	GetJob(ctx context.Context, workspaceID, jobID string) (ImportJob, error)
	ListJobs(ctx context.Context, workspaceID string, limit int) ([]ImportJob, error)
	GetAutoSync(ctx context.Context, workspaceID string) (AutoSyncConfig, error)
	SaveAutoSync(ctx context.Context, cfg AutoSyncConfig) error
}

// Enqueuer submits background sync tasks.
type Enqueuer interface {
	EnqueueImport(ctx context.Context, workspaceID, jobID string, allowedSKUs []string) error
	EnqueueProductPush(ctx context.Context, workspaceID string) error
	EnqueueInventoryPull(ctx context.Context, workspaceID string) error
}

// Service drives the QuickBooks integration: OAuth connection, imports and
// sync scheduling.
type Service struct {
	logger   *slog.Logger
	client   *Client
	repo     RepositoryPort
	redis    *redis.Client
	bumper   CacheBumper
	enqueuer Enqueuer
}

// NewService constructs Service.
func NewService(logger *slog.Logger, client *Client, repo RepositoryPort, rdb *redis.Client, bumper CacheBumper, enqueuer Enqueuer) *Service {
	return &Service{logger: logger, client: client, repo: repo, redis: rdb, bumper: bumper, enqueuer: enqueuer}
}

// AuthURL returns the authorization URL for the workspace. The workspace id
// rides along as OAuth state and comes back on the callback.
func (s *Service) AuthURL(workspaceID string) string {
	return s.client.AuthURL(workspaceID)
}

// CompleteOAuth exchanges the callback code and stores the connection.
func (s *Service) CompleteOAuth(ctx context.Context, workspaceID, code, realmID string) error {
	tokens, err := s.client.ExchangeCode(ctx, code)
	if err != nil {
		return err
	}
	now := time.Now()
	return s.repo.SaveConnection(ctx, Connection{
		WorkspaceID:  workspaceID,
		RealmID:      realmID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(tokens.ExpiresIn) * time.Second),
		ConnectedAt:  now,
	})
}

// Disconnect removes the stored connection.
func (s *Service) Disconnect(ctx context.Context, workspaceID string) error {
	return s.repo.DeleteConnection(ctx, workspaceID)
}

// Connection exposes the workspace connection with its tokens.
func (s *Service) Connection(ctx context.Context, workspaceID string) (Connection, error) {
	conn, err := s.repo.GetConnection(ctx, workspaceID)
	if err != nil {
		return Connection{}, err
	}
	if time.Now().After(conn.ExpiresAt.Add(-time.Minute)) {
		tokens, err := s.client.RefreshTokens(ctx, conn.RefreshToken)
		if err != nil {
			return Connection{}, err
		}
		conn.AccessToken = tokens.AccessToken
		conn.RefreshToken = tokens.RefreshToken
		conn.ExpiresAt = time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
		if err := s.repo.SaveConnection(ctx, conn); err != nil {
			return Connection{}, err
		}
	}
	return conn, nil
}

// ListItems fetches the connected company's inventory items.
func (s *Service) ListItems(ctx context.Context, workspaceID string) ([]Item, error) {
	conn, err := s.Connection(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return s.client.ListItems(ctx, conn)
}

// CreateInvoice posts an invoice against the connected company.
func (s *Service) CreateInvoice(ctx context.Context, workspaceID, customerID string, lines []InvoiceLine) (string, error) {
	conn, err := s.Connection(ctx, workspaceID)
	if err != nil {
		return "", err
	}
	return s.client.CreateInvoice(ctx, conn, customerID, lines)
}

// StartImport creates the running job record, subscribes a watcher on the
// job channel and only then enqueues the import task. The returned watcher
// is already receiving; the caller owns its lifecycle.
func (s *Service) StartImport(ctx context.Context, workspaceID string, allowedSKUs []string) (ImportJob, *Watcher, error) {
	if _, err := s.repo.GetConnection(ctx, workspaceID); err != nil {
		return ImportJob{}, nil, err
	}
	job := ImportJob{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Status:      JobRunning,
		AllowedSKUs: allowedSKUs,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.InsertJob(ctx, job); err != nil {
		return ImportJob{}, nil, err
	}

	watcher, err := Watch(ctx, s.redis, s.logger, s.bumper, workspaceID, job.ID)
	if err != nil {
		return ImportJob{}, nil, err
	}
	if err := s.enqueuer.EnqueueImport(ctx, workspaceID, job.ID, allowedSKUs); err != nil {
		watcher.Stop()
		return ImportJob{}, nil, err
	}
	return job, watcher, nil
}

// Job returns one import job record.
func (s *Service) Job(ctx context.Context, workspaceID, jobID string) (ImportJob, error) {
	return s.repo.GetJob(ctx, workspaceID, jobID)
}

// Jobs lists recent import jobs.
func (s *Service) Jobs(ctx context.Context, workspaceID string, limit int) ([]ImportJob, error) {
	return s.repo.ListJobs(ctx, workspaceID, limit)
}

// SyncProduct enqueues a one-off product push.
func (s *Service) SyncProduct(ctx context.Context, workspaceID string) error {
	if _, err := s.repo.GetConnection(ctx, workspaceID); err != nil {
		return err
	}
	return s.enqueuer.EnqueueProductPush(ctx, workspaceID)
}

// SyncInventory enqueues a one-off inventory pull.
func (s *Service) SyncInventory(ctx context.Context, workspaceID string) error {
	if _, err := s.repo.GetConnection(ctx, workspaceID); err != nil {
		return err
	}
	return s.enqueuer.EnqueueInventoryPull(ctx, workspaceID)
}

// AutoSync returns the workspace schedule.
func (s *Service) AutoSync(ctx context.Context, workspaceID string) (AutoSyncConfig, error) {
	return s.repo.GetAutoSync(ctx, workspaceID)
}

// SaveAutoSync validates and persists the schedule.
func (s *Service) SaveAutoSync(ctx context.Context, cfg AutoSyncConfig) error {
	if !cfg.ProductPush.Valid() || !cfg.InventoryPull.Valid() {
		return ErrBadInterval
	}
	return s.repo.SaveAutoSync(ctx, cfg)
}
