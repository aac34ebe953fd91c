package pathfind

import (
	"math"

	"github.com/talgya/world-pathfinder/internal/world"
)

// Density approximates how spread out a set of points is as the mean
// Euclidean distance over all ordered pairs of distinct points. Fewer than
// two distinct points give 0.
func Density(points []world.Coord) float64 {
	total, pairs := 0.0, 0
	for i, a := range points {
		for j, b := range points {
			if i == j || a == b {
				continue
			}
			dx, dy := float64(a.X-b.X), float64(a.Y-b.Y)
			total += math.Hypot(dx, dy)
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return total / float64(pairs)
}
