package pathfind

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/world-pathfinder/internal/config"
	"github.com/talgya/world-pathfinder/internal/dataset"
	"github.com/talgya/world-pathfinder/internal/world"
)

func c(x, y int) world.Coord { return world.Coord{X: x, Y: y} }

func TestRulesFromConfig(t *testing.T) {
	assert.Equal(t, DefaultRules(), RulesFrom(config.Default().Paths))
}

func TestTrackAccessors(t *testing.T) {
	var empty Track
	assert.Equal(t, Empty, empty.State())
	_, ok := empty.Last()
	assert.False(t, ok)
	_, ok = empty.At(0)
	assert.False(t, ok)
	assert.Equal(t, []world.Coord{}, empty.Points())

	tr := NewTrack(c(1, 1), c(2, 3))
	assert.Equal(t, Tracking, tr.State())
	last, ok := tr.Last()
	require.True(t, ok)
	assert.Equal(t, c(2, 3), last)
	p, ok := tr.At(0)
	require.True(t, ok)
	assert.Equal(t, c(1, 1), p)
	_, ok = tr.At(2)
	assert.False(t, ok)
}

func TestOfferTransitions(t *testing.T) {
	r := DefaultRules()

	cases := []struct {
		name    string
		self    Track
		other   Track
		day     int
		p       world.Coord
		outcome Outcome
		want    []world.Coord
	}{
		{
			name: "empty track starts on any day",
			day:  4, p: c(10, 10),
			outcome: Started, want: []world.Coord{c(10, 10)},
		},
		{
			name:  "blocked near other entry",
			other: NewTrack(c(10, 10)),
			day:   0, p: c(11, 20),
			outcome: Blocked,
		},
		{
			name:  "separation needs both axes",
			other: NewTrack(c(10, 10)),
			day:   0, p: c(12, 12),
			outcome: Started, want: []world.Coord{c(12, 12)},
		},
		{
			name:  "other track without entry for day does not block",
			self:  NewTrack(c(5, 5)),
			other: NewTrack(c(5, 5)),
			day:   1, p: c(6, 6),
			outcome: Extended, want: []world.Coord{c(5, 5), c(6, 6)},
		},
		{
			name: "extend within step",
			self: NewTrack(c(5, 5)),
			day:  1, p: c(10, 0),
			outcome: Extended, want: []world.Coord{c(5, 5), c(10, 0)},
		},
		{
			name: "out of reach",
			self: NewTrack(c(5, 5)),
			day:  1, p: c(11, 5),
			outcome: OutOfReach, want: []world.Coord{c(5, 5)},
		},
		{
			name: "slot already filled",
			self: NewTrack(c(5, 5), c(6, 6)),
			day:  1, p: c(6, 7),
			outcome: NotNextSlot, want: []world.Coord{c(5, 5), c(6, 6)},
		},
		{
			name: "lagging track cannot catch up",
			self: NewTrack(c(5, 5)),
			day:  3, p: c(5, 6),
			outcome: NotNextSlot, want: []world.Coord{c(5, 5)},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := tc.self.Points()
			got, outcome := Offer(tc.self, tc.other, tc.day, tc.p, r)
			assert.Equal(t, tc.outcome, outcome, "outcome %s", outcome)

			want := tc.want
			if want == nil {
				want = before
			}
			if diff := cmp.Diff(want, got.Points()); diff != "" {
				t.Errorf("track mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, before, tc.self.Points(), "input track must not change")
			assert.Equal(t, outcome.Accepted(), got.Len() == tc.self.Len()+1)
		})
	}
}

func TestFallback(t *testing.T) {
	r := DefaultRules()

	got := Fallback(Track{}, 0, c(7, 7), r)
	assert.Equal(t, []world.Coord{c(7, 7)}, got.Points())

	got = Fallback(Track{}, 3, c(7, 7), r)
	assert.Equal(t, []world.Coord{c(7, 7)}, got.Points())

	got = Fallback(NewTrack(c(98, 99)), 1, c(0, 0), r)
	assert.Equal(t, []world.Coord{c(98, 99), c(100, 100)}, got.Points(), "offset may leave the grid")
}

func TestBuildThreeDays(t *testing.T) {
	groups := [][]world.Coord{
		{c(10, 10), c(30, 30)},
		{c(12, 11), c(32, 33)},
		{c(14, 12), c(60, 60)},
	}
	res := Build(groups, DefaultRules())

	assert.Equal(t, []world.Coord{c(10, 10), c(12, 11), c(14, 12)}, res.First.Points())
	assert.Equal(t, []world.Coord{c(30, 30), c(32, 33), c(34, 34)}, res.Second.Points())
	assert.Equal(t, []int{2}, res.Fallbacks, "fallback only on the day without a reachable candidate")
	assert.Empty(t, res.Underflow)
	assert.Empty(t, res.EmptyDays)
}

func TestBuildNoFallbackWhenSecondContinues(t *testing.T) {
	groups := [][]world.Coord{
		{c(10, 10), c(30, 30)},
		{c(12, 11), c(32, 33)},
		{c(14, 12), c(33, 35)},
	}
	res := Build(groups, DefaultRules())

	assert.Len(t, res.First.Points(), 3)
	assert.Equal(t, []world.Coord{c(30, 30), c(32, 33), c(33, 35)}, res.Second.Points())
	assert.Empty(t, res.Fallbacks)
}

func TestBuildSingleCandidateDayZero(t *testing.T) {
	// The only point seeds the first track, is blocked for the second, and
	// the day-0 fallback reuses it.
	res := Build([][]world.Coord{{c(4, 4)}}, DefaultRules())

	assert.Equal(t, []world.Coord{c(4, 4)}, res.First.Points())
	assert.Equal(t, []world.Coord{c(4, 4)}, res.Second.Points())
	assert.Equal(t, []int{0}, res.Fallbacks)
}

func TestBuildReportsUnderflow(t *testing.T) {
	groups := [][]world.Coord{
		{c(10, 10), c(40, 40)},
		nil,
		{c(11, 11), c(41, 41)},
	}
	res := Build(groups, DefaultRules())

	assert.Equal(t, []int{1}, res.EmptyDays)
	// Both tracks stall: day 1 is skipped so neither has its next slot on day 2.
	assert.Equal(t, 1, res.First.Len())
	require.Len(t, res.Underflow, 2)
	assert.Equal(t, Underflow{Path: NameFirst, Entries: 1, Want: 3, EmptyDays: []int{1}}, res.Underflow[0])
	assert.Equal(t, NameSecond, res.Underflow[1].Path)
	assert.Equal(t, 2, res.Second.Len(), "second track gets one fallback entry on day 2")
	assert.Equal(t, []int{2}, res.Fallbacks)
}

func TestGroupByDay(t *testing.T) {
	rows := []dataset.Row{
		{Day: 1, Coord: c(5, 2)},
		{Day: 0, Coord: c(3, 3)},
		{Day: 1, Coord: c(1, 9)},
		{Day: 1, Coord: c(5, 1)},
		{Day: 7, Coord: c(0, 0)},
	}
	groups := GroupByDay(rows, 3)

	require.Len(t, groups, 3)
	assert.Equal(t, []world.Coord{c(3, 3)}, groups[0])
	assert.Equal(t, []world.Coord{c(1, 9), c(5, 1), c(5, 2)}, groups[1])
	assert.Empty(t, groups[2])
}

func TestDensity(t *testing.T) {
	assert.Equal(t, 0.0, Density(nil))
	assert.Equal(t, 0.0, Density([]world.Coord{c(1, 1)}))
	assert.Equal(t, 0.0, Density([]world.Coord{c(1, 1), c(1, 1)}))
	assert.InDelta(t, 5.0, Density([]world.Coord{c(0, 0), c(3, 4)}), 1e-12)

	// Right triangle: three points, six ordered pairs.
	pts := []world.Coord{c(0, 0), c(2, 0), c(0, 2)}
	want := (2 + 2 + 2 + 2 + 2*math.Sqrt2 + 2*math.Sqrt2) / 6
	assert.InDelta(t, want, Density(pts), 1e-12)
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets", "paths.json")
	res := Build([][]world.Coord{{c(1, 2), c(9, 9)}}, DefaultRules())

	require.NoError(t, WriteJSON(path, res.Paths()))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"first":[{"x":1,"y":2}],"second":[{"x":9,"y":9}]}`, string(b))

	require.NoError(t, WriteJSON(path, Paths{}))
	b, err = os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string][]world.Coord
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.NotNil(t, doc["first"])
	assert.Empty(t, doc["second"])
}
