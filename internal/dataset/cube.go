package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/talgya/world-pathfinder/internal/world"
)

// Leading coordinate columns of the dense cube layout.
const (
	ColDay = iota
	ColX
	ColY
	coordCols
)

// Row is one (day, x, y) entry of the cube with a value per resource.
type Row struct {
	Day    int
	Coord  world.Coord
	Values []float64 // parallel to Cube.Resources
}

// Cube is the joined, normalized resource data. Labels is nil until the
// rows have been clustered.
type Cube struct {
	Resources []string
	Rows      []Row // sorted by day, x, y
	Labels    []int
}

type key struct {
	day   int
	coord world.Coord
}

// Join combines series on exact (day, x, y) matches. Keys missing from any
// series are dropped so every row carries a full vector.
func Join(series []*Series) *Cube {
	cube := &Cube{Resources: make([]string, len(series))}
	for i, s := range series {
		cube.Resources[i] = s.Name
	}
	if len(series) == 0 {
		return cube
	}

	lookup := make([]map[key]float64, len(series))
	for i, s := range series[1:] {
		m := make(map[key]float64, len(s.Samples))
		for _, smp := range s.Samples {
			m[key{smp.Day, smp.Coord}] = smp.Value
		}
		lookup[i+1] = m
	}

	for _, smp := range series[0].Samples {
		k := key{smp.Day, smp.Coord}
		vals := make([]float64, len(series))
		vals[0] = smp.Value
		complete := true
		for i := 1; i < len(series); i++ {
			v, ok := lookup[i][k]
			if !ok {
				complete = false
				break
			}
			vals[i] = v
		}
		if complete {
			cube.Rows = append(cube.Rows, Row{Day: smp.Day, Coord: smp.Coord, Values: vals})
		}
	}
	return cube
}

// Len returns the number of rows.
func (c *Cube) Len() int {
	return len(c.Rows)
}

// Features returns the resource values as an N x M matrix, coordinate
// columns excluded.
func (c *Cube) Features() *mat.Dense {
	m := len(c.Resources)
	if c.Len() == 0 || m == 0 {
		return nil
	}
	data := make([]float64, 0, c.Len()*m)
	for _, r := range c.Rows {
		data = append(data, r.Values...)
	}
	return mat.NewDense(c.Len(), m, data)
}

// Dense lays the cube out as N rows of [day, x, y, values..., label].
// The label column is present only once the cube is labelled.
func (c *Cube) Dense() *mat.Dense {
	if c.Len() == 0 {
		return nil
	}
	cols := coordCols + len(c.Resources)
	if c.Labels != nil {
		cols++
	}
	data := make([]float64, 0, c.Len()*cols)
	for i, r := range c.Rows {
		data = append(data, float64(r.Day), float64(r.Coord.X), float64(r.Coord.Y))
		data = append(data, r.Values...)
		if c.Labels != nil {
			data = append(data, float64(c.Labels[i]))
		}
	}
	return mat.NewDense(c.Len(), cols, data)
}

// FromDense rebuilds a labelled cube from the Dense layout.
func FromDense(m *mat.Dense, resources []string) (*Cube, error) {
	rows, cols := m.Dims()
	want := coordCols + len(resources) + 1
	if cols != want {
		return nil, fmt.Errorf("cube has %d columns, want %d for resources %v", cols, want, resources)
	}

	cube := &Cube{
		Resources: append([]string(nil), resources...),
		Rows:      make([]Row, rows),
		Labels:    make([]int, rows),
	}
	for i := 0; i < rows; i++ {
		raw := m.RawRowView(i)
		for _, j := range []int{ColDay, ColX, ColY, cols - 1} {
			if raw[j] != math.Trunc(raw[j]) {
				return nil, fmt.Errorf("row %d column %d: non-integral %v", i, j, raw[j])
			}
		}
		cube.Rows[i] = Row{
			Day:    int(raw[ColDay]),
			Coord:  world.Coord{X: int(raw[ColX]), Y: int(raw[ColY])},
			Values: append([]float64(nil), raw[coordCols:cols-1]...),
		}
		cube.Labels[i] = int(raw[cols-1])
	}
	return cube, nil
}

// Mask returns a size x size matrix holding 1 where the cube has a row on
// the given day and 0 elsewhere.
func (c *Cube) Mask(day, size int) *mat.Dense {
	mask := mat.NewDense(size, size, nil)
	for _, r := range c.Rows {
		if r.Day != day {
			continue
		}
		if r.Coord.X < 0 || r.Coord.X >= size || r.Coord.Y < 0 || r.Coord.Y >= size {
			continue
		}
		mask.Set(r.Coord.X, r.Coord.Y, 1)
	}
	return mask
}
