// Package pathfind builds two day-indexed tracks through the cells of the
// best cluster.
//
// Each track is a small state machine (Empty, then Tracking its last
// point). Offer is the pure transition applied to one candidate point; Build
// drives both tracks over every day's candidates and applies the second
// track's fallback step. The heuristic depends on candidate order and does
// not guarantee a full-length track, disjoint tracks, or in-grid fallback
// points; Build reports short tracks instead of padding them.
package pathfind

import (
	"github.com/talgya/world-pathfinder/internal/config"
	"github.com/talgya/world-pathfinder/internal/world"
)

// Rules holds the distance constants of the heuristic.
type Rules struct {
	MinSeparation  int         // candidate must differ by at least this on both axes from the other track's entry
	MaxStep        int         // candidate may differ by at most this on both axes from the track's last point
	FallbackOffset world.Coord // added to the second track's last point when a day yields nothing
}

// DefaultRules returns the reference constants.
func DefaultRules() Rules {
	return Rules{MinSeparation: 2, MaxStep: 5, FallbackOffset: world.Coord{X: 2, Y: 1}}
}

// RulesFrom converts the path config.
func RulesFrom(p config.Paths) Rules {
	return Rules{
		MinSeparation:  p.MinSeparation,
		MaxStep:        p.MaxStep,
		FallbackOffset: world.Coord{X: p.FallbackOffset[0], Y: p.FallbackOffset[1]},
	}
}

// TrackState is the state of a track.
type TrackState uint8

const (
	Empty    TrackState = iota // no points yet
	Tracking                   // has a last point
)

func (s TrackState) String() string {
	switch s {
	case Empty:
		return "empty"
	case Tracking:
		return "tracking"
	default:
		return "unknown"
	}
}

// Track is an immutable sequence of points; entry i is meant for day i.
type Track struct {
	points []world.Coord
}

// NewTrack returns a track holding the given points.
func NewTrack(points ...world.Coord) Track {
	return Track{points: append([]world.Coord(nil), points...)}
}

// State reports whether the track has started.
func (t Track) State() TrackState {
	if len(t.points) == 0 {
		return Empty
	}
	return Tracking
}

// Len returns the number of entries.
func (t Track) Len() int {
	return len(t.points)
}

// Last returns the most recent point.
func (t Track) Last() (world.Coord, bool) {
	if len(t.points) == 0 {
		return world.Coord{}, false
	}
	return t.points[len(t.points)-1], true
}

// At returns the entry for a day, if the track has one.
func (t Track) At(day int) (world.Coord, bool) {
	if day < 0 || day >= len(t.points) {
		return world.Coord{}, false
	}
	return t.points[day], true
}

// Points returns a copy of the entries.
func (t Track) Points() []world.Coord {
	return append([]world.Coord{}, t.points...)
}

// with returns a new track with p appended; t is unchanged.
func (t Track) with(p world.Coord) Track {
	pts := make([]world.Coord, len(t.points), len(t.points)+1)
	copy(pts, t.points)
	return Track{points: append(pts, p)}
}

// Outcome describes what a transition did with a candidate.
type Outcome uint8

const (
	Blocked     Outcome = iota // within MinSeparation of the other track's entry for the day
	Started                    // became the first point of an empty track
	Extended                   // appended as the entry for the day
	NotNextSlot                // the track's next slot is not this day
	OutOfReach                 // next slot, but further than MaxStep from the last point
)

func (o Outcome) String() string {
	switch o {
	case Blocked:
		return "blocked"
	case Started:
		return "started"
	case Extended:
		return "extended"
	case NotNextSlot:
		return "not-next-slot"
	case OutOfReach:
		return "out-of-reach"
	default:
		return "unknown"
	}
}

// Accepted reports whether the candidate was appended.
func (o Outcome) Accepted() bool {
	return o == Started || o == Extended
}

// Offer applies one candidate p for a day to self. other is the opposite
// track: when it already has an entry for the day, p must be separated from
// that entry by at least MinSeparation on both axes. An empty track takes p
// as its first point whatever the day. A tracking track takes p only when
// its next slot is this day and p lies within MaxStep of its last point on
// both axes.
func Offer(self, other Track, day int, p world.Coord, r Rules) (Track, Outcome) {
	if o, ok := other.At(day); ok {
		dx, dy := world.Delta(o, p)
		if dx < r.MinSeparation || dy < r.MinSeparation {
			return self, Blocked
		}
	}

	last, ok := self.Last()
	if !ok {
		return self.with(p), Started
	}
	if self.Len() != day {
		return self, NotNextSlot
	}
	dx, dy := world.Delta(last, p)
	if dx > r.MaxStep || dy > r.MaxStep {
		return self, OutOfReach
	}
	return self.with(p), Extended
}

// Fallback fills the second track's entry for a day whose candidates are
// exhausted. On day 0, or while the track is still empty, the day's last
// candidate is used; otherwise the last point is moved by FallbackOffset.
// The result may lie outside the grid.
func Fallback(self Track, day int, lastCandidate world.Coord, r Rules) Track {
	last, ok := self.Last()
	if day == 0 || !ok {
		return self.with(lastCandidate)
	}
	return self.with(last.Add(r.FallbackOffset))
}
