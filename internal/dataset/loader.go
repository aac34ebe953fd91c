package dataset

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/talgya/world-pathfinder/internal/config"
	"github.com/talgya/world-pathfinder/internal/world"
)

// Sample is one present reading of a resource channel.
type Sample struct {
	Day   int
	Coord world.Coord
	Value float64
}

// Series is a resource channel across every loaded day.
type Series struct {
	Name    string
	Samples []Sample // sorted by day, x, y
	Stats   NormStats
}

// Loader reads snapshot files from a data directory. Days passed to its
// methods are 0-indexed and converted to the 1-indexed file names.
type Loader struct {
	Dir    string
	Bounds world.Bounds
}

// NewLoader creates a loader for dir covering the given bounds.
func NewLoader(dir string, bounds world.Bounds) *Loader {
	return &Loader{Dir: dir, Bounds: bounds}
}

// ResourcePath returns the snapshot path of a resource on a 0-indexed day.
func (l *Loader) ResourcePath(name string, day int) string {
	return filepath.Join(l.Dir, world.ResourceFileName(name, day+1))
}

// WorldPath returns the world array path for a 0-indexed day.
func (l *Loader) WorldPath(day int) string {
	return filepath.Join(l.Dir, world.WorldFileName(day+1))
}

// ReadResourceDay returns every row of one resource snapshot in file order,
// including rows without a value.
func (l *Loader) ReadResourceDay(name string, day int) ([]Reading, error) {
	readings, err := ReadTable(l.ResourcePath(name, day))
	if err != nil {
		return nil, fmt.Errorf("load %s day %d: %w", name, day+1, err)
	}
	return readings, nil
}

// ReadWorldDay returns the world array rows for a 0-indexed day.
func (l *Loader) ReadWorldDay(day int) ([]Reading, error) {
	readings, err := ReadTable(l.WorldPath(day))
	if err != nil {
		return nil, fmt.Errorf("load world day %d: %w", day+1, err)
	}
	return readings, nil
}

// LoadSeries reads a resource for every day. Missing values are dropped,
// as are rows outside the grid. A repeated coordinate within one day keeps
// its first reading.
func (l *Loader) LoadSeries(name string) (*Series, error) {
	s := &Series{Name: name}
	outside := 0
	for day := 0; day < l.Bounds.Days; day++ {
		readings, err := l.ReadResourceDay(name, day)
		if err != nil {
			return nil, err
		}
		seen := make(map[world.Coord]bool, len(readings))
		for _, rd := range readings {
			if !rd.Present {
				continue
			}
			if !l.Bounds.InGrid(rd.Coord) {
				outside++
				continue
			}
			if seen[rd.Coord] {
				continue
			}
			seen[rd.Coord] = true
			s.Samples = append(s.Samples, Sample{Day: day, Coord: rd.Coord, Value: rd.Value})
		}
	}
	if outside > 0 {
		slog.Warn("dropped readings outside grid", "resource", name, "count", outside)
	}

	sort.Slice(s.Samples, func(i, j int) bool {
		return lessKey(s.Samples[i].Day, s.Samples[i].Coord, s.Samples[j].Day, s.Samples[j].Coord)
	})
	return s, nil
}

// Normalize replaces the series values with their z-scores times scale.
func (s *Series) Normalize(scale float64) {
	vals := make([]float64, len(s.Samples))
	for i, smp := range s.Samples {
		vals[i] = smp.Value
	}
	norm, st := Normalize(vals, scale)
	for i := range s.Samples {
		s.Samples[i].Value = norm[i]
	}
	s.Stats = st
	if st.Degenerate {
		slog.Warn("degenerate normalization, channel zeroed", "resource", s.Name, "count", st.Count)
	}
}

// LoadCube loads and normalizes every resource of the table, then joins them
// on (day, x, y). Only keys present in every resource survive.
func (l *Loader) LoadCube(resources []config.Resource) (*Cube, error) {
	series := make([]*Series, 0, len(resources))
	for _, r := range resources {
		s, err := l.LoadSeries(r.Name)
		if err != nil {
			return nil, err
		}
		s.Normalize(r.Scale())
		slog.Info("resource loaded",
			"resource", r.Name,
			"samples", len(s.Samples),
			"mean", fmt.Sprintf("%.3f", s.Stats.Mean),
			"std", fmt.Sprintf("%.3f", s.Stats.StdDev),
			"invert", r.Invert,
		)
		series = append(series, s)
	}

	cube := Join(series)
	slog.Info("cube joined", "rows", cube.Len(), "resources", len(cube.Resources))
	return cube, nil
}

func lessKey(da int, a world.Coord, db int, b world.Coord) bool {
	if da != db {
		return da < db
	}
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Y < b.Y
}
