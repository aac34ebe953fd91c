package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/world-pathfinder/internal/cache"
	"github.com/talgya/world-pathfinder/internal/config"
	"github.com/talgya/world-pathfinder/internal/dataset"
	"github.com/talgya/world-pathfinder/internal/pathfind"
	"github.com/talgya/world-pathfinder/internal/world"
)

// testConfig writes a small synthetic world and returns a config pointing
// at it.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	gen := world.SmallTestConfig()
	require.NoError(t, world.WriteCSV(filepath.Join(root, "data"), world.Generate(gen)))

	cfg := config.Default()
	cfg.DataDir = filepath.Join(root, "data")
	cfg.CacheDir = filepath.Join(root, "cache")
	cfg.OutputDir = filepath.Join(root, "out")
	cfg.Days = gen.Bounds.Days
	cfg.GridSize = gen.Bounds.Size
	cfg.MaskDay = 2
	cfg.Profile = config.ProfileCoarse
	cfg.Clustering = config.Clustering{Clusters: 3, Seed: 0, MaxIter: 200, Tolerance: 1e-4}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunWritesPaths(t *testing.T) {
	cfg := testConfig(t)
	ctx := New(cfg)

	run, err := ctx.Run()
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CacheHit)
	assert.Equal(t, config.ProfileCoarse, run.Profile)
	assert.Positive(t, run.Rows)
	assert.Positive(t, run.Best.Members)
	require.NotEmpty(t, run.Stats)
	assert.Equal(t, run.Best, run.Stats[0])
	assert.LessOrEqual(t, len(run.Paths.First), cfg.Days)
	assert.LessOrEqual(t, len(run.Paths.Second), cfg.Days)
	assert.NotEmpty(t, run.Paths.First)

	b, err := os.ReadFile(filepath.Join(cfg.OutputDir, PathsFile))
	require.NoError(t, err)
	var doc pathfind.Paths
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Equal(t, run.Paths.First, doc.First)
	assert.Equal(t, run.Paths.Second, doc.Second)

	hasClusters, hasMask := cache.New(cfg.CacheDir).Exists()
	assert.True(t, hasClusters)
	assert.True(t, hasMask)
}

func TestRunReusesCache(t *testing.T) {
	cfg := testConfig(t)

	first, err := New(cfg).Run()
	require.NoError(t, err)

	// Removing the sources proves the second run never reads them.
	require.NoError(t, os.RemoveAll(cfg.DataDir))

	ctx := New(cfg)
	second, err := ctx.Run()
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.True(t, ctx.CacheHit())
	assert.NotEqual(t, first.ID, second.ID)

	assert.Equal(t, first.Best, second.Best)
	if diff := cmp.Diff(first.Paths, second.Paths); diff != "" {
		t.Errorf("paths differ after cache reuse (-first +second):\n%s", diff)
	}
}

func TestClustersMemoized(t *testing.T) {
	ctx := New(testConfig(t))
	cube, mask, err := ctx.Clusters()
	require.NoError(t, err)

	again, againMask, err := ctx.Clusters()
	require.NoError(t, err)
	assert.Same(t, cube, again)
	assert.Same(t, mask, againMask)

	rows, cols := mask.Dims()
	assert.Equal(t, ctx.Config().GridSize, rows)
	assert.Equal(t, ctx.Config().GridSize, cols)
	for _, r := range cube.Rows {
		if r.Day == ctx.Config().MaskDay {
			assert.Equal(t, 1.0, mask.At(r.Coord.X, r.Coord.Y))
		}
	}
}

func TestRunDeterministic(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg).Run()
	require.NoError(t, err)

	require.NoError(t, New(cfg).Cache().Clear())
	b, err := New(cfg).Run()
	require.NoError(t, err)
	assert.False(t, b.CacheHit)
	assert.Equal(t, a.Best, b.Best)
	assert.Equal(t, a.Paths, b.Paths)
}

func TestRunMissingSource(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.Remove(filepath.Join(cfg.DataDir, world.ResourceFileName("coral", 2))))

	_, err := New(cfg).Run()
	assert.ErrorIs(t, err, dataset.ErrSourceUnavailable)
}

func TestRunCorruptCache(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.CacheDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.CacheDir, cache.MaskFile), []byte("junk"), 0644))

	_, err := New(cfg).Run()
	assert.ErrorIs(t, err, cache.ErrCacheCorrupt)
}

func TestGUI(t *testing.T) {
	cfg := testConfig(t)
	out, err := New(cfg).GUI()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.OutputDir, GUIFile), out)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	var days []map[string]any
	require.NoError(t, json.Unmarshal(b, &days))
	assert.Len(t, days, cfg.Days)
}
