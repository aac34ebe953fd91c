// Package pipeline ties the loader, clusterer, scorer and path builder
// together behind an explicitly constructed Context.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/talgya/world-pathfinder/internal/cache"
	"github.com/talgya/world-pathfinder/internal/cluster"
	"github.com/talgya/world-pathfinder/internal/config"
	"github.com/talgya/world-pathfinder/internal/dataset"
	"github.com/talgya/world-pathfinder/internal/gui"
	"github.com/talgya/world-pathfinder/internal/pathfind"
	"github.com/talgya/world-pathfinder/internal/world"
)

// Output file names inside Config.OutputDir.
const (
	PathsFile = "paths.json"
	GUIFile   = "gui_data.json"
)

// ErrNoCluster means the labelled cube has no cluster with members.
var ErrNoCluster = errors.New("pipeline: no populated cluster")

// Context holds everything one run needs. The clustered cube is computed at
// most once per Context.
type Context struct {
	cfg    *config.Config
	loader *dataset.Loader
	store  *cache.Store

	cube     *dataset.Cube
	mask     *mat.Dense
	cacheHit bool
}

// Density is the spread of each exported path.
type Density struct {
	First  float64 `json:"first"`
	Second float64 `json:"second"`
}

// Run records the outcome of a full pipeline run.
type Run struct {
	ID        string
	StartedAt time.Time
	Profile   string
	Clusters  int // configured K
	Rows      int
	CacheHit  bool

	Best      cluster.Stat
	Stats     []cluster.Stat // populated clusters, best first
	Paths     pathfind.Paths
	Fallbacks []int
	Underflow []pathfind.Underflow
	Density   Density
	Output    string
}

// New creates a context for cfg.
func New(cfg *config.Config) *Context {
	bounds := world.Bounds{Size: cfg.GridSize, Days: cfg.Days}
	return &Context{
		cfg:    cfg,
		loader: dataset.NewLoader(cfg.DataDir, bounds),
		store:  cache.New(cfg.CacheDir),
	}
}

// Config returns the configuration the context was built with.
func (c *Context) Config() *config.Config {
	return c.cfg
}

// Loader returns the snapshot loader.
func (c *Context) Loader() *dataset.Loader {
	return c.loader
}

// Cache returns the cache store.
func (c *Context) Cache() *cache.Store {
	return c.store
}

// Clusters returns the labelled cube and the mask for Config.MaskDay. Cached
// artifacts are used when both exist; otherwise the cube is loaded,
// normalized and clustered, and the cache is written.
func (c *Context) Clusters() (*dataset.Cube, *mat.Dense, error) {
	if c.cube != nil {
		return c.cube, c.mask, nil
	}

	names := c.cfg.ResourceNames()
	cube, mask, hit, err := c.store.Load(names)
	if err != nil {
		return nil, nil, err
	}
	if hit {
		c.cube, c.mask, c.cacheHit = cube, mask, true
		return cube, mask, nil
	}

	slog.Info("cache miss, clustering", "dir", c.cfg.CacheDir, "profile", c.cfg.Profile)
	cube, err = c.loader.LoadCube(c.cfg.Resources)
	if err != nil {
		return nil, nil, err
	}
	if _, err := cluster.Label(cube, cluster.ParamsFrom(c.cfg.Clustering)); err != nil {
		return nil, nil, fmt.Errorf("cluster: %w", err)
	}
	mask = cube.Mask(c.cfg.MaskDay, c.cfg.GridSize)
	if err := c.store.Save(cube, mask); err != nil {
		return nil, nil, fmt.Errorf("write cache: %w", err)
	}

	c.cube, c.mask = cube, mask
	return cube, mask, nil
}

// CacheHit reports whether Clusters was served from the cache.
func (c *Context) CacheHit() bool {
	return c.cacheHit
}

// Run scores the clusters, builds both paths through the best one and
// writes paths.json.
func (c *Context) Run() (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Profile:   c.cfg.Profile,
		Clusters:  c.cfg.Clustering.Clusters,
		Output:    filepath.Join(c.cfg.OutputDir, PathsFile),
	}

	cube, _, err := c.Clusters()
	if err != nil {
		return nil, err
	}
	run.Rows = cube.Len()
	run.CacheHit = c.cacheHit

	scores, err := cluster.Score(cube)
	if err != nil {
		return nil, fmt.Errorf("score: %w", err)
	}
	best, ok := scores.Best()
	if !ok {
		return nil, ErrNoCluster
	}
	run.Best = best
	run.Stats = scores.Ranked()
	slog.Info("best cluster", "label", best.Label, "score", fmt.Sprintf("%.4f", best.Score), "members", best.Members)

	groups := pathfind.GroupByDay(cluster.Members(cube, best.Label), c.cfg.Days)
	res := pathfind.Build(groups, pathfind.RulesFrom(c.cfg.Paths))
	run.Paths = res.Paths()
	run.Fallbacks = res.Fallbacks
	run.Underflow = res.Underflow
	run.Density = Density{
		First:  pathfind.Density(run.Paths.First),
		Second: pathfind.Density(run.Paths.Second),
	}
	slog.Info("paths built",
		"first", len(run.Paths.First),
		"second", len(run.Paths.Second),
		"fallbacks", len(run.Fallbacks),
		"density_first", fmt.Sprintf("%.3f", run.Density.First),
		"density_second", fmt.Sprintf("%.3f", run.Density.Second),
	)

	if err := pathfind.WriteJSON(run.Output, run.Paths); err != nil {
		return nil, err
	}
	slog.Info("paths written", "path", run.Output, "run", run.ID)
	return run, nil
}

// GUI builds the viewer documents for every configured day and writes
// gui_data.json. It returns the output path.
func (c *Context) GUI() (string, error) {
	days, err := gui.Build(c.loader, c.cfg.Days, c.cfg.GUIResources)
	if err != nil {
		return "", err
	}
	out := filepath.Join(c.cfg.OutputDir, GUIFile)
	if err := gui.WriteJSON(out, days); err != nil {
		return "", err
	}
	slog.Info("gui data written", "path", out, "days", len(days))
	return out, nil
}
