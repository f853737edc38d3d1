// prunejournal deletes presence_events rows older than the retention window.
// Usage: go run ./cmd/prunejournal -config configs/presenced.local.yaml -keep 720h
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/atria-live/presence/internal/config"
	"github.com/atria-live/presence/internal/database"
	"github.com/atria-live/presence/internal/version"
)

// deleteBatchSize bounds each DELETE so the tool never holds long row locks
// on a table the journal writer is actively inserting into.
const deleteBatchSize = 5000

func main() {
	configPath := flag.String("config", "configs/presenced.local.yaml", "path to config file")
	keep := flag.Duration("keep", 30*24*time.Hour, "retention window; rows older than this are deleted")
	dryRun := flag.Bool("dry-run", false, "report what would be deleted without deleting")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting prunejournal",
		"version", version.Version,
		"config", *configPath,
	)

	// Only the database section matters here, so skip full validation.
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if !cfg.Database.Enabled {
		logger.Error("journal database is not enabled in config")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.Database.Postgres)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	cutoff := time.Now().UTC().Add(-*keep)
	logger.Info("pruning journal", "cutoff", cutoff, "keep", *keep, "dry_run", *dryRun)

	if *dryRun {
		var n int64
		err := pool.QueryRow(ctx,
			`SELECT count(*) FROM presence_events WHERE time < $1`, cutoff,
		).Scan(&n)
		if err != nil {
			logger.Error("count failed", "error", err)
			os.Exit(1)
		}
		logger.Info("dry run complete", "would_delete", n)
		return
	}

	start := time.Now()
	var total int64
	for {
		ct, err := pool.Exec(ctx, `
			DELETE FROM presence_events
			WHERE ctid IN (
				SELECT ctid FROM presence_events
				WHERE time < $1
				LIMIT $2
			)
		`, cutoff, deleteBatchSize)
		if err != nil {
			logger.Error("delete batch failed", "error", err, "deleted_so_far", total)
			os.Exit(1)
		}

		n := ct.RowsAffected()
		total += n
		if n > 0 {
			logger.Info("deleted batch", "rows", n, "total", total)
		}
		if n < deleteBatchSize {
			break
		}
	}

	logger.Info("prune complete",
		"deleted", total,
		"cutoff", cutoff,
		"duration", time.Since(start),
	)
}
