// Package gui assembles the per-day viewer document: every cell of the world
// array with its terrain and a rank for each configured resource.
package gui

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/talgya/world-pathfinder/internal/dataset"
	"github.com/talgya/world-pathfinder/internal/world"
)

// Cell is one world-array cell. A nil rank means the resource has no value
// for the cell on that day.
type Cell struct {
	X         int             `json:"x"`
	Y         int             `json:"y"`
	Type      string          `json:"type"`
	Resources map[string]*int `json:"resources"`
}

// Day is the document for one 1-indexed day.
type Day struct {
	Day   int    `json:"day"`
	Cells []Cell `json:"cells"`
}

// Rank assigns 1..M to the M present readings by descending value. Equal
// values keep their file order, so the ranks are always a permutation.
// Missing readings get nil.
func Rank(readings []dataset.Reading) []*int {
	idx := make([]int, 0, len(readings))
	for i, rd := range readings {
		if rd.Present {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return readings[idx[a]].Value > readings[idx[b]].Value
	})

	ranks := make([]*int, len(readings))
	for pos, i := range idx {
		r := pos + 1
		ranks[i] = &r
	}
	return ranks
}

// rankByCoord maps each coordinate to the rank of its first reading.
func rankByCoord(readings []dataset.Reading) map[world.Coord]*int {
	ranks := Rank(readings)
	out := make(map[world.Coord]*int, len(readings))
	for i, rd := range readings {
		if _, ok := out[rd.Coord]; ok {
			continue
		}
		out[rd.Coord] = ranks[i]
	}
	return out
}

// BuildDay builds the document for a 1-indexed day. Cells follow the world
// array's row order; a world value above zero is land.
func BuildDay(l *dataset.Loader, fileDay int, resources []string) (*Day, error) {
	day := fileDay - 1
	cells, err := l.ReadWorldDay(day)
	if err != nil {
		return nil, err
	}

	ranked := make(map[string]map[world.Coord]*int, len(resources))
	for _, name := range resources {
		readings, err := l.ReadResourceDay(name, day)
		if err != nil {
			return nil, err
		}
		ranked[name] = rankByCoord(readings)
	}

	doc := &Day{Day: fileDay, Cells: make([]Cell, len(cells))}
	for i, rd := range cells {
		terrain := world.TerrainWater
		if rd.Present {
			terrain = world.TerrainFromValue(rd.Value)
		}
		c := Cell{
			X:         rd.Coord.X,
			Y:         rd.Coord.Y,
			Type:      world.TerrainName(terrain),
			Resources: make(map[string]*int, len(resources)),
		}
		for _, name := range resources {
			c.Resources[name] = ranked[name][rd.Coord]
		}
		doc.Cells[i] = c
	}
	return doc, nil
}

// Build builds the documents for days 1..days.
func Build(l *dataset.Loader, days int, resources []string) ([]*Day, error) {
	out := make([]*Day, 0, days)
	for d := 1; d <= days; d++ {
		doc, err := BuildDay(l, d, resources)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	slog.Info("gui data built", "days", len(out), "resources", len(resources))
	return out, nil
}

// WriteJSON writes the documents as a single JSON array.
func WriteJSON(path string, days []*Day) error {
	if days == nil {
		days = []*Day{}
	}
	b, err := json.Marshal(days)
	if err != nil {
		return fmt.Errorf("marshal gui data: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("write gui data: %w", err)
	}
	return nil
}
