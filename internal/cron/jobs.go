package cron

import (
	"context"
	"log/slog"

	"github.com/engramd/engram/internal/memory"
)

// StaleRequeuer is the subset of the queue processor needed by the
// requeue job. Defined here to avoid a dependency on the queue package.
type StaleRequeuer interface {
	RecoverStale(ctx context.Context) int
}

// StaleRequeueJob sweeps requests that were claimed but never answered
// (e.g. after a crash mid-processing) back into the input queue.
type StaleRequeueJob struct {
	Processor    StaleRequeuer
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"
}

var _ Job = (*StaleRequeueJob)(nil)

// Name implements Job.
func (j *StaleRequeueJob) Name() string { return "stale_requeue" }

// Schedule implements Job.
func (j *StaleRequeueJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run requeues stale in-flight requests.
func (j *StaleRequeueJob) Run(ctx context.Context) error {
	n := j.Processor.RecoverStale(ctx)
	if n > 0 {
		j.Logger.Info("cron: requeued stale requests", "count", n)
	}
	return nil
}

// Compactor is the subset of the archive needed by the maintenance job.
type Compactor interface {
	Vacuum(ctx context.Context) error
}

// ArchiveMaintenanceJob vacuums the conversation archive to reclaim
// space left behind by FTS index churn.
type ArchiveMaintenanceJob struct {
	Archive      Compactor
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 4 * * *"
}

var _ Job = (*ArchiveMaintenanceJob)(nil)

// Name implements Job.
func (j *ArchiveMaintenanceJob) Name() string { return "archive_maintenance" }

// Schedule implements Job.
func (j *ArchiveMaintenanceJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 4 * * *"
}

// Run compacts the archive database.
func (j *ArchiveMaintenanceJob) Run(ctx context.Context) error {
	if err := j.Archive.Vacuum(ctx); err != nil {
		return err
	}
	j.Logger.Debug("cron: archive compacted")
	return nil
}

// StatsReporter is the subset of the memory store needed by the
// snapshot job.
type StatsReporter interface {
	GetStats() memory.Stats
}

// StatsSnapshotJob periodically logs store-wide statistics, giving the
// daemon log a coarse growth record without scraping /metrics.
type StatsSnapshotJob struct {
	Store        StatsReporter
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 * * * *"
}

var _ Job = (*StatsSnapshotJob)(nil)

// Name implements Job.
func (j *StatsSnapshotJob) Name() string { return "stats_snapshot" }

// Schedule implements Job.
func (j *StatsSnapshotJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 * * * *"
}

// Run logs the current store statistics.
func (j *StatsSnapshotJob) Run(_ context.Context) error {
	stats := j.Store.GetStats()
	j.Logger.Info("memory stats",
		"items", stats.TotalItems,
		"bytes", stats.TotalSize,
		"by_category", stats.ItemsByCategory,
	)
	return nil
}
