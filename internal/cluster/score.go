package cluster

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/talgya/world-pathfinder/internal/dataset"
)

// Stat summarizes one cluster label.
type Stat struct {
	Label   int     `json:"label" db:"label"`
	Score   float64 `json:"score" db:"score"` // mean of member row scores; NaN when empty
	Members int     `json:"members" db:"members"`
}

// Scores holds per-row and per-cluster scores of a labelled cube.
type Scores struct {
	Rows     []float64 // mean resource value of each row
	Clusters []Stat    // indexed by label
}

// Score computes row scores and per-label cluster scores. Labels range over
// [0, max label]; labels without members get a NaN score.
func Score(cube *dataset.Cube) (*Scores, error) {
	if cube.Len() == 0 {
		return nil, ErrEmptyCube
	}
	if len(cube.Labels) != cube.Len() {
		return nil, errors.New("cluster: cube is not labelled")
	}

	maxLabel := 0
	for _, l := range cube.Labels {
		if l < 0 {
			return nil, fmt.Errorf("cluster: negative label %d", l)
		}
		maxLabel = max(maxLabel, l)
	}

	sc := &Scores{
		Rows:     make([]float64, cube.Len()),
		Clusters: make([]Stat, maxLabel+1),
	}
	sums := make([]float64, maxLabel+1)
	for i, r := range cube.Rows {
		sc.Rows[i] = stat.Mean(r.Values, nil)
		l := cube.Labels[i]
		sums[l] += sc.Rows[i]
		sc.Clusters[l].Members++
	}
	for l := range sc.Clusters {
		sc.Clusters[l].Label = l
		if sc.Clusters[l].Members == 0 {
			sc.Clusters[l].Score = math.NaN()
			continue
		}
		sc.Clusters[l].Score = sums[l] / float64(sc.Clusters[l].Members)
	}
	return sc, nil
}

// Best returns the cluster with the highest score. Ties go to the lowest
// label. ok is false when no cluster has members.
func (s *Scores) Best() (best Stat, ok bool) {
	for _, c := range s.Clusters {
		if c.Members == 0 {
			continue
		}
		if !ok || c.Score > best.Score {
			best, ok = c, true
		}
	}
	return best, ok
}

// Ranked returns the non-empty clusters ordered by descending score, then
// ascending label.
func (s *Scores) Ranked() []Stat {
	out := make([]Stat, 0, len(s.Clusters))
	for _, c := range s.Clusters {
		if c.Members > 0 {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Members returns the rows of the cube carrying label.
func Members(cube *dataset.Cube, label int) []dataset.Row {
	var rows []dataset.Row
	for i, r := range cube.Rows {
		if cube.Labels[i] == label {
			rows = append(rows, r)
		}
	}
	return rows
}
