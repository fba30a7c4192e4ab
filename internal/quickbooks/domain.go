package quickbooks

import (
	"errors"
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of an import job. A job is terminal once
// the status leaves running.
type JobStatus string

const (
	JobRunning JobStatus = "running"
	JobSuccess JobStatus = "success"
	JobFailed  JobStatus = "failed"
)

// Terminal reports whether the status ends the job lifecycle.
func (s JobStatus) Terminal() bool {
	return s == JobSuccess || s == JobFailed
}

// ItemAction records what the import runner did with one QuickBooks item.
type ItemAction string

const (
	ActionImported ItemAction = "imported"
	ActionUpdated  ItemAction = "updated"
	ActionSkipped  ItemAction = "skipped"
	ActionError    ItemAction = "error"
)

// ItemLog is one entry of the per-item action log.
type ItemLog struct {
	SKU     string     `json:"sku"`
	Name    string     `json:"name"`
	Action  ItemAction `json:"action"`
	Message string     `json:"message,omitempty"`
}

// ImportJob tracks one product import from QuickBooks. Counters and the item
// log are mutated only by the import runner; the creator writes the initial
// running record with zeroed counters and a nil TotalItems.
type ImportJob struct {
	ID           string     `json:"id"`
	WorkspaceID  string     `json:"workspace_id"`
	Status       JobStatus  `json:"status"`
	Processed    int        `json:"processed"`
	TotalItems   *int       `json:"total_items"`
	Imported     int        `json:"imported"`
	Updated      int        `json:"updated"`
	Skipped      int        `json:"skipped"`
	Errors       int        `json:"errors"`
	AllowedSKUs  []string   `json:"allowed_skus,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Items        []ItemLog  `json:"items,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Snapshot is the progress view published over pub/sub while a job runs.
type Snapshot struct {
	JobID        string    `json:"job_id"`
	Status       JobStatus `json:"status"`
	Processed    int       `json:"processed"`
	TotalItems   *int      `json:"total_items"`
	Imported     int       `json:"imported"`
	Updated      int       `json:"updated"`
	Skipped      int       `json:"skipped"`
	Errors       int       `json:"errors"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Progress returns the completion percentage and whether it is known.
// Progress is indeterminate until the runner has learned the item total.
func (s Snapshot) Progress() (float64, bool) {
	if s.TotalItems == nil || *s.TotalItems <= 0 {
		return 0, false
	}
	return float64(s.Processed) / float64(*s.TotalItems) * 100, true
}

// Terminal reports whether this snapshot ends the job.
func (s Snapshot) Terminal() bool {
	return s.Status.Terminal()
}

// SnapshotOf projects a job record into its published form.
func SnapshotOf(job ImportJob) Snapshot {
	return Snapshot{
		JobID:        job.ID,
		Status:       job.Status,
		Processed:    job.Processed,
		TotalItems:   job.TotalItems,
		Imported:     job.Imported,
		Updated:      job.Updated,
		Skipped:      job.Skipped,
		Errors:       job.Errors,
		ErrorMessage: job.ErrorMessage,
	}
}

// ImportChannel names the pub/sub channel carrying snapshots for one job.
func ImportChannel(jobID string) string {
	return fmt.Sprintf("qb:import:%s", jobID)
}

// SyncInterval is a per-workspace auto-sync schedule selection.
type SyncInterval string

const (
	IntervalOff SyncInterval = "off"
	Interval30m SyncInterval = "30m"
	Interval1h  SyncInterval = "1h"
	Interval4h  SyncInterval = "4h"
	Interval1d  SyncInterval = "1d"
	Interval7d  SyncInterval = "7d"
)

var intervalDurations = map[SyncInterval]time.Duration{
	Interval30m: 30 * time.Minute,
	Interval1h:  time.Hour,
	Interval4h:  4 * time.Hour,
	Interval1d:  24 * time.Hour,
	Interval7d:  7 * 24 * time.Hour,
}

// Valid reports whether the interval is one of the supported selections.
func (i SyncInterval) Valid() bool {
	if i == IntervalOff {
		return true
	}
	_, ok := intervalDurations[i]
	return ok
}

// Duration returns the schedule period. Off has no period.
func (i SyncInterval) Duration() (time.Duration, bool) {
	d, ok := intervalDurations[i]
	return d, ok
}

// AutoSyncConfig is the per-workspace schedule for the two sync kinds.
// It changes only through an explicit save.
type AutoSyncConfig struct {
	WorkspaceID      string       `json:"workspace_id"`
	ProductPush      SyncInterval `json:"product_push"`
	InventoryPull    SyncInterval `json:"inventory_pull"`
	LastProductRun   *time.Time   `json:"last_product_run,omitempty"`
	LastInventoryRun *time.Time   `json:"last_inventory_run,omitempty"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// DueProductPush reports whether a scheduled product push is overdue.
func (c AutoSyncConfig) DueProductPush(now time.Time) bool {
	return due(c.ProductPush, c.LastProductRun, now)
}

// DueInventoryPull reports whether a scheduled inventory pull is overdue.
func (c AutoSyncConfig) DueInventoryPull(now time.Time) bool {
	return due(c.InventoryPull, c.LastInventoryRun, now)
}

func due(interval SyncInterval, lastRun *time.Time, now time.Time) bool {
	period, ok := interval.Duration()
	if !ok {
		return false
	}
	if lastRun == nil {
		return true
	}
	return now.Sub(*lastRun) >= period
}

// Connection holds the OAuth state for one workspace's QuickBooks company.
type Connection struct {
	WorkspaceID  string    `json:"workspace_id"`
	RealmID      string    `json:"realm_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	ConnectedAt  time.Time `json:"connected_at"`
}

var (
	ErrJobNotFound   = errors.New("quickbooks: import job not found")
	ErrNotConnected  = errors.New("quickbooks: workspace not connected")
	ErrBadInterval   = errors.New("quickbooks: unsupported sync interval")
	ErrOAuthDenied   = errors.New("quickbooks: authorization denied")
	ErrJobNotRunning = errors.New("quickbooks: job already terminal")
)
