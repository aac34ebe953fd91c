package dataset

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// NormStats records the moments a channel was normalized with.
type NormStats struct {
	Mean       float64
	StdDev     float64 // sample standard deviation (N-1)
	Count      int
	Degenerate bool // zero or undefined spread; every output is 0
}

// Normalize z-scores values and multiplies the result by scale (+1 or -1).
// The input must hold only present readings. When the standard deviation is
// zero or undefined (fewer than two values) every output is 0.
func Normalize(values []float64, scale float64) ([]float64, NormStats) {
	out := make([]float64, len(values))
	st := NormStats{Count: len(values)}
	if len(values) == 0 {
		st.Degenerate = true
		return out, st
	}

	st.Mean, st.StdDev = stat.MeanStdDev(values, nil)
	if len(values) < 2 || st.StdDev == 0 || math.IsNaN(st.StdDev) {
		st.Degenerate = true
		return out, st
	}

	for i, v := range values {
		out[i] = stat.StdScore(v, st.Mean, st.StdDev) * scale
	}
	return out, st
}
