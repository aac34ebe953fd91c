// Package world provides the square world grid, its coordinates and terrain,
// and a synthetic generator for per-day resource snapshots.
// Days are 0-indexed here; file names carry 1-indexed days.
package world

import "fmt"

// Default grid dimensions of the simulated world.
const (
	DefaultSize = 100 // cells per side
	DefaultDays = 30  // daily snapshots
)

// Coord is a cell position on the grid.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns c offset by d.
func (c Coord) Add(d Coord) Coord {
	return Coord{X: c.X + d.X, Y: c.Y + d.Y}
}

// Delta returns the absolute per-axis differences between two coordinates.
func Delta(a, b Coord) (dx, dy int) {
	return abs(a.X - b.X), abs(a.Y - b.Y)
}

// Distance returns the Chebyshev distance between two coordinates.
func Distance(a, b Coord) int {
	dx, dy := Delta(a, b)
	if dy > dx {
		return dy
	}
	return dx
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Bounds describes the extent of a dataset in space and time.
type Bounds struct {
	Size int // grid is Size x Size
	Days int
}

// DefaultBounds returns the 100x100 grid over 30 days.
func DefaultBounds() Bounds {
	return Bounds{Size: DefaultSize, Days: DefaultDays}
}

// InGrid reports whether c lies within [0,Size) on both axes.
func (b Bounds) InGrid(c Coord) bool {
	return c.X >= 0 && c.X < b.Size && c.Y >= 0 && c.Y < b.Size
}

// InDays reports whether day lies within [0,Days).
func (b Bounds) InDays(day int) bool {
	return day >= 0 && day < b.Days
}

// Terrain classifies a cell from the world array.
type Terrain uint8

const (
	TerrainWater Terrain = iota
	TerrainLand
)

// TerrainFromValue maps a world array value to terrain; positive is land.
func TerrainFromValue(v float64) Terrain {
	if v > 0 {
		return TerrainLand
	}
	return TerrainWater
}

// TerrainName returns the name used in exported documents.
func TerrainName(t Terrain) string {
	switch t {
	case TerrainLand:
		return "land"
	case TerrainWater:
		return "water"
	default:
		return "unknown"
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
