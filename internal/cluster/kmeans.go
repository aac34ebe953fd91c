// Package cluster partitions cube rows with seeded k-means over
// max-abs-scaled features and scores the resulting clusters.
package cluster

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/talgya/world-pathfinder/internal/config"
	"github.com/talgya/world-pathfinder/internal/dataset"
)

var (
	// ErrEmptyCube means there are no rows to cluster.
	ErrEmptyCube = errors.New("cluster: cube has no rows")
	// ErrTooFewRows means the cube holds fewer rows than requested clusters.
	ErrTooFewRows = errors.New("cluster: fewer rows than clusters")
)

// Params configures a k-means run. Identical params over identical input
// always yield identical labels.
type Params struct {
	K         int
	Seed      int64
	MaxIter   int
	Tolerance float64 // relative to the mean feature variance
}

// ParamsFrom converts the clustering config.
func ParamsFrom(c config.Clustering) Params {
	return Params{K: c.Clusters, Seed: c.Seed, MaxIter: c.MaxIter, Tolerance: c.Tolerance}
}

// Result is the outcome of a k-means run.
type Result struct {
	Labels     []int
	Centroids  *mat.Dense
	Iterations int
	Inertia    float64 // sum of squared distances to assigned centroids
	Converged  bool
}

// MaxAbsScale returns a copy of m with each column divided by its largest
// absolute value. All-zero columns are left unchanged.
func MaxAbsScale(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.DenseCopyOf(m)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, m)
		scale := math.Max(math.Abs(floats.Max(col)), math.Abs(floats.Min(col)))
		if scale == 0 {
			continue
		}
		for i := 0; i < r; i++ {
			out.Set(i, j, col[i]/scale)
		}
	}
	return out
}

// KMeans runs Lloyd's algorithm with k-means++ seeding drawn from a
// rand.Rand seeded with p.Seed. Iteration stops when the total squared
// centroid shift falls to the tolerance, when no label changes, or after
// p.MaxIter rounds. A cluster that loses every member during an update is
// re-seeded with the row farthest from its centroid.
func KMeans(x *mat.Dense, p Params) (*Result, error) {
	if x == nil || x.IsEmpty() {
		return nil, ErrEmptyCube
	}
	n, dim := x.Dims()
	if p.K < 1 {
		return nil, fmt.Errorf("cluster: k must be positive, got %d", p.K)
	}
	if n < p.K {
		return nil, fmt.Errorf("%w: %d rows, %d clusters", ErrTooFewRows, n, p.K)
	}
	if p.MaxIter < 1 {
		p.MaxIter = 1
	}

	rng := rand.New(rand.NewSource(p.Seed))
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = x.RawRowView(i)
	}
	tol := p.Tolerance * meanVariance(x)

	centroids := seedPlusPlus(rows, p.K, rng)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}

	res := &Result{}
	next := make([][]float64, p.K)
	for k := range next {
		next[k] = make([]float64, dim)
	}
	counts := make([]int, p.K)

	for iter := 1; iter <= p.MaxIter; iter++ {
		res.Iterations = iter

		changed := assign(rows, centroids, labels)

		for k := range next {
			for j := range next[k] {
				next[k][j] = 0
			}
			counts[k] = 0
		}
		for i, row := range rows {
			floats.Add(next[labels[i]], row)
			counts[labels[i]]++
		}
		relocateEmpty(rows, centroids, labels, next, counts)
		for k := range next {
			if counts[k] == 0 {
				copy(next[k], centroids[k])
				continue
			}
			floats.Scale(1/float64(counts[k]), next[k])
		}

		shift := 0.0
		for k := range centroids {
			d := floats.Distance(centroids[k], next[k], 2)
			shift += d * d
			copy(centroids[k], next[k])
		}

		if changed == 0 || shift <= tol {
			// Final assignment against the updated centroids.
			assign(rows, centroids, labels)
			res.Converged = true
			break
		}
	}

	res.Labels = labels
	res.Centroids = mat.NewDense(p.K, dim, nil)
	for k, c := range centroids {
		res.Centroids.SetRow(k, c)
	}
	for i, row := range rows {
		d := floats.Distance(row, centroids[labels[i]], 2)
		res.Inertia += d * d
	}
	return res, nil
}

// Label scales the cube features, runs KMeans and stores the labels on the
// cube.
func Label(cube *dataset.Cube, p Params) (*Result, error) {
	if cube.Len() == 0 {
		return nil, ErrEmptyCube
	}
	res, err := KMeans(MaxAbsScale(cube.Features()), p)
	if err != nil {
		return nil, err
	}
	cube.Labels = res.Labels

	slog.Info("clustering complete",
		"rows", cube.Len(),
		"clusters", p.K,
		"iterations", res.Iterations,
		"converged", res.Converged,
		"inertia", fmt.Sprintf("%.4f", res.Inertia),
	)
	return res, nil
}

// assign labels each row with its nearest centroid (lowest index on ties)
// and returns how many labels changed.
func assign(rows, centroids [][]float64, labels []int) int {
	changed := 0
	for i, row := range rows {
		best, bestDist := 0, math.Inf(1)
		for k, c := range centroids {
			if d := sqDist(row, c); d < bestDist {
				best, bestDist = k, d
			}
		}
		if labels[i] != best {
			labels[i] = best
			changed++
		}
	}
	return changed
}

// relocateEmpty moves the row farthest from its centroid into each empty
// cluster. sums and counts are updated in place.
func relocateEmpty(rows, centroids [][]float64, labels []int, sums [][]float64, counts []int) {
	for k := range counts {
		if counts[k] > 0 {
			continue
		}
		far, farDist := -1, -1.0
		for i, row := range rows {
			if counts[labels[i]] < 2 {
				continue
			}
			if d := sqDist(row, centroids[labels[i]]); d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			continue
		}
		old := labels[far]
		floats.Sub(sums[old], rows[far])
		counts[old]--
		copy(sums[k], rows[far])
		counts[k] = 1
		labels[far] = k
	}
}

// seedPlusPlus picks k initial centroids with D² weighting.
func seedPlusPlus(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(rows)
	centroids := make([][]float64, 0, k)
	first := rows[rng.Intn(n)]
	centroids = append(centroids, append([]float64(nil), first...))

	dist := make([]float64, n)
	for i, row := range rows {
		dist[i] = sqDist(row, centroids[0])
	}

	for len(centroids) < k {
		total := floats.Sum(dist)
		idx := 0
		if total > 0 {
			target := rng.Float64() * total
			acc := 0.0
			idx = n - 1
			for i, d := range dist {
				acc += d
				if acc >= target && d > 0 {
					idx = i
					break
				}
			}
		} else {
			idx = rng.Intn(n)
		}
		c := append([]float64(nil), rows[idx]...)
		centroids = append(centroids, c)
		for i, row := range rows {
			if d := sqDist(row, c); d < dist[i] {
				dist[i] = d
			}
		}
	}
	return centroids
}

func meanVariance(x *mat.Dense) float64 {
	r, c := x.Dims()
	if r < 2 {
		return 0
	}
	col := make([]float64, r)
	total := 0.0
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		mean := floats.Sum(col) / float64(r)
		v := 0.0
		for _, f := range col {
			v += (f - mean) * (f - mean)
		}
		total += v / float64(r)
	}
	return total / float64(c)
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
