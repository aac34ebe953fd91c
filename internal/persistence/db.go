// Package persistence provides SQLite-based storage of pipeline run history.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/world-pathfinder/internal/cluster"
	"github.com/talgya/world-pathfinder/internal/pathfind"
	"github.com/talgya/world-pathfinder/internal/pipeline"
	"github.com/talgya/world-pathfinder/internal/world"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("persistence: not found")

// DB wraps a SQLite connection for run history.
type DB struct {
	conn *sqlx.DB
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID        string  `db:"id" json:"id"`
	StartedAt string  `db:"started_at" json:"started_at"` // RFC 3339, UTC
	Profile   string  `db:"profile" json:"profile"`
	Clusters  int     `db:"clusters" json:"clusters"`
	Rows      int     `db:"row_count" json:"rows"`
	BestLabel int     `db:"best_label" json:"best_label"`
	BestScore float64 `db:"best_score" json:"best_score"`
	CacheHit  bool    `db:"cache_hit" json:"cache_hit"`
	Underflow int     `db:"underflow" json:"underflow"` // number of paths shorter than the day count
}

// PathPoint is one stored path entry.
type PathPoint struct {
	Path string `db:"path" json:"path"`
	Day  int    `db:"day" json:"day"`
	X    int    `db:"x" json:"x"`
	Y    int    `db:"y" json:"y"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		profile TEXT NOT NULL,
		clusters INTEGER NOT NULL,
		row_count INTEGER NOT NULL,
		best_label INTEGER NOT NULL,
		best_score REAL NOT NULL,
		cache_hit INTEGER NOT NULL,
		underflow INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cluster_stats (
		run_id TEXT NOT NULL REFERENCES runs(id),
		label INTEGER NOT NULL,
		score REAL NOT NULL,
		members INTEGER NOT NULL,
		PRIMARY KEY (run_id, label)
	);

	CREATE TABLE IF NOT EXISTS path_points (
		run_id TEXT NOT NULL REFERENCES runs(id),
		path TEXT NOT NULL,
		day INTEGER NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		PRIMARY KEY (run_id, path, day)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun writes a run with its cluster stats and path points in one
// transaction.
func (db *DB) SaveRun(run *pipeline.Run) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	cacheHit := 0
	if run.CacheHit {
		cacheHit = 1
	}
	_, err = tx.Exec(`INSERT INTO runs
		(id, started_at, profile, clusters, row_count, best_label, best_score, cache_hit, underflow)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), run.Profile, run.Clusters, run.Rows,
		run.Best.Label, run.Best.Score, cacheHit, len(run.Underflow),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for _, s := range run.Stats {
		_, err := tx.Exec(
			"INSERT INTO cluster_stats (run_id, label, score, members) VALUES (?, ?, ?, ?)",
			run.ID, s.Label, s.Score, s.Members,
		)
		if err != nil {
			return fmt.Errorf("insert cluster %d: %w", s.Label, err)
		}
	}

	stmt, err := tx.Preparex("INSERT INTO path_points (run_id, path, day, x, y) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range []struct {
		name   string
		points []world.Coord
	}{{pathfind.NameFirst, run.Paths.First}, {pathfind.NameSecond, run.Paths.Second}} {
		for day, c := range p.points {
			if _, err := stmt.Exec(run.ID, p.name, day, c.X, c.Y); err != nil {
				return fmt.Errorf("insert %s path day %d: %w", p.name, day, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("run saved", "run", run.ID, "clusters", len(run.Stats), "points", len(run.Paths.First)+len(run.Paths.Second))
	return nil
}

// GetRun returns one run by ID.
func (db *DB) GetRun(id string) (*RunRecord, error) {
	var r RunRecord
	err := db.conn.Get(&r, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestRun returns the most recently started run.
func (db *DB) LatestRun() (*RunRecord, error) {
	runs, err := db.ListRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: no runs recorded", ErrNotFound)
	}
	return &runs[0], nil
}

// ListRuns returns up to limit runs, newest first.
func (db *DB) ListRuns(limit int) ([]RunRecord, error) {
	runs := []RunRecord{}
	err := db.conn.Select(&runs,
		"SELECT * FROM runs ORDER BY started_at DESC, id LIMIT ?",
		limit,
	)
	return runs, err
}

// RunClusters returns the stored cluster stats of a run, best first.
func (db *DB) RunClusters(id string) ([]cluster.Stat, error) {
	stats := []cluster.Stat{}
	err := db.conn.Select(&stats,
		"SELECT label, score, members FROM cluster_stats WHERE run_id = ? ORDER BY score DESC, label",
		id,
	)
	return stats, err
}

// RunPaths returns the stored paths of a run.
func (db *DB) RunPaths(id string) (pathfind.Paths, error) {
	var points []PathPoint
	err := db.conn.Select(&points,
		"SELECT path, day, x, y FROM path_points WHERE run_id = ? ORDER BY path, day",
		id,
	)
	if err != nil {
		return pathfind.Paths{}, err
	}

	out := pathfind.Paths{First: []world.Coord{}, Second: []world.Coord{}}
	for _, p := range points {
		c := world.Coord{X: p.X, Y: p.Y}
		switch p.Path {
		case pathfind.NameFirst:
			out.First = append(out.First, c)
		case pathfind.NameSecond:
			out.Second = append(out.Second, c)
		}
	}
	return out, nil
}

// SaveMeta stores a key-value pair in metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}
