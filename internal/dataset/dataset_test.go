package dataset

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/talgya/world-pathfinder/internal/config"
	"github.com/talgya/world-pathfinder/internal/world"
)

// writeSnapshot writes a snapshot file for a 1-indexed day. Rows are
// "x,y,value" triples; an empty value marks a missing reading.
func writeSnapshot(t *testing.T, dir, resource string, fileDay int, rows ...string) {
	t.Helper()
	var b strings.Builder
	b.WriteString(",x,y,value\n")
	for i, r := range rows {
		fmt.Fprintf(&b, "%d,%s\n", i, r)
	}
	path := filepath.Join(dir, world.ResourceFileName(resource, fileDay))
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
}

func TestParseTable(t *testing.T) {
	in := ",x,y,value\n0,1,2,3.5\n1,4.0,5,\n2,6,7,NaN\n"
	readings, err := parseTable(strings.NewReader(in), "inline")
	require.NoError(t, err)

	want := []Reading{
		{Coord: world.Coord{X: 1, Y: 2}, Value: 3.5, Present: true},
		{Coord: world.Coord{X: 4, Y: 5}},
		{Coord: world.Coord{X: 6, Y: 7}},
	}
	if diff := cmp.Diff(want, readings); diff != "" {
		t.Errorf("parseTable mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTableMalformed(t *testing.T) {
	cases := map[string]string{
		"no value column": ",x,y\n0,1,2\n",
		"bad x":           "x,y,value\nA,1,2\n",
		"fractional y":    "x,y,value\n1,1.5,2\n",
		"bad value":       "x,y,value\n1,1,lots\n",
		"short row":       "x,y,value\n1,1\n",
		"empty":           "",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseTable(strings.NewReader(in), name)
			assert.True(t, errors.Is(err, ErrMalformedSource), "got %v", err)
		})
	}
}

func TestReadTableMissingFile(t *testing.T) {
	_, err := ReadTable(filepath.Join(t.TempDir(), "oil_data_day_1.csv"))
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
}

func TestNormalizeMoments(t *testing.T) {
	values := []float64{3, 7, 7, 19, 24, 1, 0.5, 12}
	for _, scale := range []float64{1, -1} {
		out, st := Normalize(values, scale)
		require.False(t, st.Degenerate)
		assert.InDelta(t, 0, stat.Mean(out, nil), 1e-12)
		assert.InDelta(t, 1, stat.StdDev(out, nil), 1e-12)
		assert.Equal(t, len(values), st.Count)
	}

	pos, _ := Normalize(values, 1)
	neg, _ := Normalize(values, -1)
	for i := range pos {
		assert.Equal(t, pos[i], -neg[i])
	}
}

func TestNormalizeDegenerate(t *testing.T) {
	cases := map[string][]float64{
		"constant": {4, 4, 4, 4},
		"single":   {9},
		"empty":    {},
	}
	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			out, st := Normalize(values, -1)
			assert.True(t, st.Degenerate)
			require.Len(t, out, len(values))
			for _, v := range out {
				assert.Equal(t, 0.0, v)
				assert.False(t, math.Signbit(v))
			}
		})
	}
}

func TestLoadSeries(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "oil", 1, "2,2,5", "1,1,", "1,0,3", "150,1,9", "1,0,4")
	writeSnapshot(t, dir, "oil", 2, "0,0,1")

	loader := NewLoader(dir, world.Bounds{Size: 100, Days: 2})
	s, err := loader.LoadSeries("oil")
	require.NoError(t, err)

	want := []Sample{
		{Day: 0, Coord: world.Coord{X: 1, Y: 0}, Value: 3},
		{Day: 0, Coord: world.Coord{X: 2, Y: 2}, Value: 5},
		{Day: 1, Coord: world.Coord{X: 0, Y: 0}, Value: 1},
	}
	assert.Equal(t, want, s.Samples)
}

func TestLoadSeriesMissingDay(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "oil", 1, "0,0,1")

	loader := NewLoader(dir, world.Bounds{Size: 10, Days: 2})
	_, err := loader.LoadSeries("oil")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
	assert.Contains(t, err.Error(), "oil day 2")
}

func TestLoadCubeJoinsOnAllResources(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "metal", 1, "0,0,1", "0,1,2", "0,2,3", "0,3,")
	writeSnapshot(t, dir, "coral", 1, "0,0,10", "0,2,30", "0,3,40")

	loader := NewLoader(dir, world.Bounds{Size: 10, Days: 1})
	cube, err := loader.LoadCube([]config.Resource{{Name: "metal"}, {Name: "coral", Invert: true}})
	require.NoError(t, err)

	require.Equal(t, []string{"metal", "coral"}, cube.Resources)
	require.Equal(t, 2, cube.Len())
	assert.Equal(t, world.Coord{X: 0, Y: 0}, cube.Rows[0].Coord)
	assert.Equal(t, world.Coord{X: 0, Y: 2}, cube.Rows[1].Coord)

	// metal is normalized over {1,2,3}; coral over {10,30,40} and inverted.
	metal, _ := Normalize([]float64{1, 2, 3}, 1)
	coral, _ := Normalize([]float64{10, 30, 40}, -1)
	assert.InDelta(t, metal[0], cube.Rows[0].Values[0], 1e-12)
	assert.InDelta(t, metal[2], cube.Rows[1].Values[0], 1e-12)
	assert.InDelta(t, coral[0], cube.Rows[0].Values[1], 1e-12)
	assert.InDelta(t, coral[1], cube.Rows[1].Values[1], 1e-12)
	assert.Nil(t, cube.Labels)
}

func TestCubeDenseRoundTrip(t *testing.T) {
	cube := &Cube{
		Resources: []string{"oil", "coral"},
		Rows: []Row{
			{Day: 0, Coord: world.Coord{X: 1, Y: 2}, Values: []float64{0.5, -1}},
			{Day: 3, Coord: world.Coord{X: 99, Y: 0}, Values: []float64{1.25, 2}},
		},
		Labels: []int{4, 0},
	}

	m := cube.Dense()
	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 6, c)
	assert.Equal(t, []float64{3, 99, 0, 1.25, 2, 0}, m.RawRowView(1))

	back, err := FromDense(m, cube.Resources)
	require.NoError(t, err)
	if diff := cmp.Diff(cube, back); diff != "" {
		t.Errorf("FromDense mismatch (-want +got):\n%s", diff)
	}

	_, err = FromDense(m, []string{"oil"})
	assert.Error(t, err)

	features := cube.Features()
	fr, fc := features.Dims()
	assert.Equal(t, 2, fr)
	assert.Equal(t, 2, fc)
}

func TestCubeMask(t *testing.T) {
	cube := &Cube{
		Resources: []string{"oil"},
		Rows: []Row{
			{Day: 1, Coord: world.Coord{X: 0, Y: 1}, Values: []float64{1}},
			{Day: 2, Coord: world.Coord{X: 2, Y: 2}, Values: []float64{1}},
			{Day: 2, Coord: world.Coord{X: 1, Y: 0}, Values: []float64{1}},
		},
	}
	mask := cube.Mask(2, 3)
	want := mat.NewDense(3, 3, []float64{
		0, 0, 0,
		1, 0, 0,
		0, 0, 1,
	})
	assert.True(t, mat.Equal(want, mask))
}
