// Command guidata writes the per-day viewer document gui_data.json.
package main

import (
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/talgya/world-pathfinder/internal/config"
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

	out, err := pipeline.New(cfg).GUI()
	if err != nil {
		slog.Error("failed to build gui data", "error", err)
		os.Exit(1)
	}
	if info, err := os.Stat(out); err == nil {
		slog.Info("gui data ready", "path", out, "size", humanize.Bytes(uint64(info.Size())))
	}
}
