// Package main is the entry point for the qbom provenance server. It
// serves the trace store over a read-mostly HTTP API and runs the
// background maintenance jobs (index rebuild, cloud backup).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/csnp/qbom/internal/backup"
	"github.com/csnp/qbom/internal/config"
	"github.com/csnp/qbom/internal/scheduler"
	"github.com/csnp/qbom/internal/server"
	"github.com/csnp/qbom/internal/store"
	"github.com/csnp/qbom/pkg/logger"
)

// reindexSchedule rebuilds the search index hourly; the trace files are
// the source of truth so the rebuild is always safe.
const reindexSchedule = "@hourly"

// maintenanceSchedule runs index vacuum and WAL truncation early Sunday
// morning, when the VACUUM cost hurts least.
const maintenanceSchedule = "0 4 * * 0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting qbom server")

	st, err := store.New(cfg.DataDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open trace store")
	}

	ix, err := store.OpenIndex(cfg.DataDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open search index")
	}
	defer ix.Close()

	// The index may be stale or missing on first start; rebuild it from
	// the trace files before serving queries.
	if err := ix.Reindex(st); err != nil {
		log.Fatal().Err(err).Msg("Failed to build search index")
	}

	srv := server.New(server.Config{
		Log:     log,
		Store:   st,
		Index:   ix,
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
	})

	sched := scheduler.New(log)
	if err := sched.AddJob(reindexSchedule, &scheduler.ReindexJob{Store: st, Index: ix}); err != nil {
		log.Fatal().Err(err).Msg("Failed to register reindex job")
	}
	if err := sched.AddJob(maintenanceSchedule, &scheduler.MaintenanceJob{Index: ix, Log: log}); err != nil {
		log.Fatal().Err(err).Msg("Failed to register maintenance job")
	}

	if cfg.Backup != nil && cfg.Backup.Enabled {
		client, err := backup.NewClient(cfg.Backup, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize backup client")
		}
		svc := backup.NewService(st, client, cfg.Backup.RetentionCount, log)
		if err := sched.AddJob(cfg.Backup.Schedule, &scheduler.BackupJob{Service: svc}); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
		log.Info().Str("bucket", cfg.Backup.Bucket).Str("schedule", cfg.Backup.Schedule).Msg("Cloud backup enabled")
	} else {
		log.Debug().Msg("Cloud backup not configured")
	}

	sched.Start()
	defer sched.Stop()

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
