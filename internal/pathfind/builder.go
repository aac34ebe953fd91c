package pathfind

import (
	"log/slog"
	"sort"

	"github.com/talgya/world-pathfinder/internal/dataset"
	"github.com/talgya/world-pathfinder/internal/world"
)

// Track names used in exports and logs.
const (
	NameFirst  = "first"
	NameSecond = "second"
)

// Underflow reports a track that ended with fewer entries than days.
type Underflow struct {
	Path      string `json:"path"`
	Entries   int    `json:"entries"`
	Want      int    `json:"want"`
	EmptyDays []int  `json:"empty_days,omitempty"`
}

// Result is the output of Build.
type Result struct {
	Days      int
	First     Track
	Second    Track
	Fallbacks []int // days on which Second received a synthesized entry
	EmptyDays []int // days with no candidates
	Underflow []Underflow
}

// GroupByDay buckets cluster rows into one candidate list per day in
// [0,days). Candidates within a day are ordered by x, then y. Rows outside
// the day range are ignored.
func GroupByDay(rows []dataset.Row, days int) [][]world.Coord {
	groups := make([][]world.Coord, days)
	for _, r := range rows {
		if r.Day < 0 || r.Day >= days {
			continue
		}
		groups[r.Day] = append(groups[r.Day], r.Coord)
	}
	for _, g := range groups {
		sort.Slice(g, func(i, j int) bool {
			if g[i].X != g[j].X {
				return g[i].X < g[j].X
			}
			return g[i].Y < g[j].Y
		})
	}
	return groups
}

// Build runs both tracks over the day groups. For each candidate the first
// track is offered the point, then the second track (which sees the first
// track's update). After a day's last candidate, a second track still
// lacking that day's entry gets a Fallback entry. Days without candidates
// are skipped entirely.
func Build(groups [][]world.Coord, r Rules) *Result {
	res := &Result{Days: len(groups)}
	first, second := Track{}, Track{}

	for day, candidates := range groups {
		if len(candidates) == 0 {
			res.EmptyDays = append(res.EmptyDays, day)
			continue
		}
		for j, p := range candidates {
			first, _ = Offer(first, second, day, p, r)
			second, _ = Offer(second, first, day, p, r)

			if j == len(candidates)-1 && second.Len() <= day {
				second = Fallback(second, day, p, r)
				res.Fallbacks = append(res.Fallbacks, day)
			}
		}
	}

	res.First, res.Second = first, second
	for _, t := range []struct {
		name  string
		track Track
	}{{NameFirst, first}, {NameSecond, second}} {
		if t.track.Len() >= res.Days {
			continue
		}
		u := Underflow{Path: t.name, Entries: t.track.Len(), Want: res.Days, EmptyDays: res.EmptyDays}
		res.Underflow = append(res.Underflow, u)
		slog.Warn("path shorter than day count",
			"path", u.Path,
			"entries", u.Entries,
			"want", u.Want,
			"empty_days", len(u.EmptyDays),
		)
	}
	return res
}

// Paths is the exported document shape.
type Paths struct {
	First  []world.Coord `json:"first"`
	Second []world.Coord `json:"second"`
}

// Paths returns the exportable form of the result.
func (r *Result) Paths() Paths {
	return Paths{First: r.First.Points(), Second: r.Second.Points()}
}
