package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/csnp/qbom/internal/backup"
	"github.com/csnp/qbom/internal/store"
)

// ReindexJob rebuilds the search index from the trace files. The index
// is derived data, so a periodic rebuild repairs any rows that went
// stale through crashes or manual edits to the data directory.
type ReindexJob struct {
	Store *store.Store
	Index *store.Index
}

func (j *ReindexJob) Name() string { return "reindex" }

func (j *ReindexJob) Run() error {
	return j.Index.Reindex(j.Store)
}

// BackupJob uploads a fresh archive of the trace store and rotates old
// archives per the retention policy.
type BackupJob struct {
	Service *backup.Service
	Timeout time.Duration
}

func (j *BackupJob) Name() string { return "backup" }

func (j *BackupJob) Run() error {
	timeout := j.Timeout
	if timeout == 0 {
		timeout = 15 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return j.Service.Run(ctx)
}

// MaintenanceJob keeps the index database lean: integrity check, WAL
// truncation and a VACUUM to reclaim free pages. VACUUM is expensive,
// so this belongs on an off-peak weekly schedule.
type MaintenanceJob struct {
	Index *store.Index
	Log   zerolog.Logger
}

func (j *MaintenanceJob) Name() string { return "maintenance" }

func (j *MaintenanceJob) Run() error {
	log := j.Log.With().Str("job", "maintenance").Logger()
	db := j.Index.DB()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := db.HealthCheck(ctx); err != nil {
		return err
	}

	before, err := db.GetStats()
	if err != nil {
		return err
	}

	if err := db.WALCheckpoint("TRUNCATE"); err != nil {
		return err
	}
	if err := db.Vacuum(); err != nil {
		return err
	}

	after, err := db.GetStats()
	if err != nil {
		return err
	}

	log.Info().
		Float64("size_before_mb", float64(before.SizeBytes)/(1024*1024)).
		Float64("size_after_mb", float64(after.SizeBytes)/(1024*1024)).
		Float64("wal_size_mb", float64(after.WALSizeBytes)/(1024*1024)).
		Int64("free_pages", after.FreelistCount).
		Msg("Index maintenance completed")

	return nil
}
