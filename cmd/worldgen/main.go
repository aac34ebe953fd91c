// Command worldgen writes a synthetic world as per-day snapshot CSVs into
// the data directory, for running the pipeline without the reference data.
package main

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/talgya/world-pathfinder/internal/config"
	"github.com/talgya/world-pathfinder/internal/world"
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

	gen := world.DefaultGenConfig()
	gen.Bounds = world.Bounds{Size: cfg.GridSize, Days: cfg.Days}
	if s := os.Getenv("PATHFINDER_SEED"); s != "" {
		seed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			slog.Error("invalid PATHFINDER_SEED", "value", s, "error", err)
			os.Exit(1)
		}
		gen.Seed = seed
	}

	slog.Info("generating world", "size", gen.Bounds.Size, "days", gen.Bounds.Days, "seed", gen.Seed)
	ds := world.Generate(gen)
	for t, c := range world.TerrainCounts(ds, 0) {
		slog.Info("terrain", "type", world.TerrainName(t), "count", c)
	}

	if err := world.WriteCSV(cfg.DataDir, ds); err != nil {
		slog.Error("failed to write world", "error", err)
		os.Exit(1)
	}
	slog.Info("world written", "dir", cfg.DataDir, "resources", len(ds.Order))
}
