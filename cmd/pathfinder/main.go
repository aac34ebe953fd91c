// Command pathfinder clusters the world snapshots, builds the two paths
// through the best cluster, writes paths.json and records the run.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/talgya/world-pathfinder/internal/config"
	"github.com/talgya/world-pathfinder/internal/persistence"
	"github.com/talgya/world-pathfinder/internal/pipeline"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.LogLevel(),
	}))
	slog.SetDefault(logger)

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("world pathfinder starting",
		"data_dir", cfg.DataDir,
		"cache_dir", cfg.CacheDir,
		"profile", cfg.Profile,
		"clusters", cfg.Clustering.Clusters,
		"days", cfg.Days,
	)

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Pipeline ──────────────────────────────────────────────────────
	run, err := pipeline.New(cfg).Run()
	if err != nil {
		slog.Error("pipeline failed", "error", err)
		db.Close()
		os.Exit(1)
	}
	for _, u := range run.Underflow {
		slog.Warn("short path exported", "path", u.Path, "entries", u.Entries, "want", u.Want)
	}
	if info, err := os.Stat(run.Output); err == nil {
		slog.Info("output", "path", run.Output, "size", humanize.Bytes(uint64(info.Size())))
	}

	// ── Record ────────────────────────────────────────────────────────
	if err := db.SaveRun(run); err != nil {
		slog.Error("failed to record run", "error", err)
		db.Close()
		os.Exit(1)
	}
	if err := db.SaveMeta("last_run", run.ID); err != nil {
		slog.Warn("failed to save metadata", "error", err)
	}

	slog.Info("run complete",
		"run", run.ID,
		"cache_hit", run.CacheHit,
		"best_label", run.Best.Label,
		"first", len(run.Paths.First),
		"second", len(run.Paths.Second),
	)
}
