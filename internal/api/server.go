// Package api serves pipeline results to the viewer over HTTP.
// GET endpoints are public and read-only.
// POST /api/v1/runs starts a pipeline run and requires a bearer token.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/talgya/world-pathfinder/internal/dataset"
	"github.com/talgya/world-pathfinder/internal/gui"
	"github.com/talgya/world-pathfinder/internal/persistence"
	"github.com/talgya/world-pathfinder/internal/pipeline"
	"github.com/talgya/world-pathfinder/internal/world"
)

// Server serves run history and viewer data over HTTP.
type Server struct {
	Ctx      *pipeline.Context
	DB       *persistence.DB
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// Pipeline contexts are not safe for concurrent use.
	runMu sync.Mutex
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	// Rate limiters for endpoints that hit the disk or run the pipeline.
	guiLimiter := NewRateLimiter(120, time.Minute)
	runLimiter := NewRateLimiter(5, time.Hour)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/runs", s.handleRuns(runLimiter))
	mux.HandleFunc("/api/v1/runs/", s.handleRunDetail)
	mux.HandleFunc("/api/v1/paths", s.handlePaths)
	mux.HandleFunc("/api/v1/gui/", RateLimitMiddleware(guiLimiter, s.handleGUIDay))
	mux.HandleFunc("/api/v1/mask", RateLimitMiddleware(guiLimiter, s.handleMask))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := http.ListenAndServe(addr, s.Handler()); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.Ctx.Config()
	hasClusters, hasMask := s.Ctx.Cache().Exists()

	status := map[string]any{
		"name":          "world-pathfinder",
		"profile":       cfg.Profile,
		"clusters":      cfg.Clustering.Clusters,
		"days":          cfg.Days,
		"grid_size":     cfg.GridSize,
		"resources":     cfg.ResourceNames(),
		"gui_resources": cfg.GUIResources,
		"cache": map[string]bool{
			"clusters": hasClusters,
			"mask":     hasMask,
		},
		"latest_run": nil,
	}
	if latest, err := s.DB.LatestRun(); err == nil {
		status["latest_run"] = latest
	} else if !errors.Is(err, persistence.ErrNotFound) {
		slog.Error("latest run lookup failed", "error", err)
	}
	writeJSON(w, status)
}

// handleRuns lists runs on GET and starts one on an authorized POST.
func (s *Server) handleRuns(runLimiter *RateLimiter) http.HandlerFunc {
	start := RateLimitMiddleware(runLimiter, s.handleStartRun)
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.handleListRuns(w, r)
		case http.MethodPost:
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no PATHFINDER_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			start(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	runs, err := s.DB.ListRuns(limit)
	if err != nil {
		slog.Error("list runs failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	run, err := s.Ctx.Run()
	if err != nil {
		slog.Error("pipeline run failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := s.DB.SaveRun(run); err != nil {
		slog.Error("save run failed", "run", run.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	rec, err := s.DB.GetRun(run.ID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, http.StatusCreated, map[string]any{
		"run":       rec,
		"fallbacks": run.Fallbacks,
		"underflow": run.Underflow,
		"density":   run.Density,
	})
}

// handleRunDetail serves GET /api/v1/runs/:id.
func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/runs/"), "/")
	if id == "" {
		s.handleListRuns(w, r)
		return
	}

	rec, err := s.DB.GetRun(id)
	if errors.Is(err, persistence.ErrNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("get run failed", "run", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	clusters, err := s.DB.RunClusters(id)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	paths, err := s.DB.RunPaths(id)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"run":      rec,
		"clusters": clusters,
		"paths":    paths,
	})
}

// handlePaths serves the latest run's paths in the paths.json shape.
func (s *Server) handlePaths(w http.ResponseWriter, r *http.Request) {
	latest, err := s.DB.LatestRun()
	if errors.Is(err, persistence.ErrNotFound) {
		http.Error(w, "no runs recorded", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	paths, err := s.DB.RunPaths(latest.ID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, paths)
}

// handleGUIDay serves GET /api/v1/gui/:day for a 1-indexed day.
func (s *Server) handleGUIDay(w http.ResponseWriter, r *http.Request) {
	cfg := s.Ctx.Config()
	day, err := strconv.Atoi(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/gui/"), "/"))
	if err != nil || day < 1 || day > cfg.Days {
		http.Error(w, fmt.Sprintf("day must be an integer in 1..%d", cfg.Days), http.StatusBadRequest)
		return
	}

	doc, err := gui.BuildDay(s.Ctx.Loader(), day, cfg.GUIResources)
	if errors.Is(err, dataset.ErrSourceUnavailable) {
		http.Error(w, "source data unavailable", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("gui day failed", "day", day, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, doc)
}

// handleMask serves the cached presence mask as a list of set cells.
func (s *Server) handleMask(w http.ResponseWriter, r *http.Request) {
	cfg := s.Ctx.Config()

	s.runMu.Lock()
	_, mask, hit, err := s.Ctx.Cache().Load(cfg.ResourceNames())
	s.runMu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !hit {
		http.Error(w, "no cached mask", http.StatusNotFound)
		return
	}

	rows, cols := mask.Dims()
	cells := []world.Coord{}
	for x := 0; x < rows; x++ {
		for y := 0; y < cols; y++ {
			if mask.At(x, y) != 0 {
				cells = append(cells, world.Coord{X: x, Y: y})
			}
		}
	}
	writeJSON(w, map[string]any{
		"day":   cfg.MaskDay,
		"size":  rows,
		"cells": cells,
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
