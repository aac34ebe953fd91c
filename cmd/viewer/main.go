// Command viewer serves run history and viewer data over HTTP.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/talgya/world-pathfinder/internal/api"
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

	os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	srv := &api.Server{
		Ctx:      pipeline.New(cfg),
		DB:       db,
		Port:     cfg.Port,
		AdminKey: os.Getenv("PATHFINDER_ADMIN_KEY"),
	}
	srv.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig.String())
}
