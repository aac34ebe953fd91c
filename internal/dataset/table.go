// Package dataset loads per-day resource snapshots into memory, normalizes
// each resource channel and joins the channels into a (day, x, y) cube.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/talgya/world-pathfinder/internal/world"
)

var (
	// ErrSourceUnavailable means a required snapshot file does not exist.
	// It is fatal for the run.
	ErrSourceUnavailable = errors.New("dataset: source data unavailable")
	// ErrMalformedSource means a snapshot file lacks the x, y or value
	// columns or holds unparsable numbers.
	ErrMalformedSource = errors.New("dataset: malformed source data")
)

// Reading is one row of a snapshot table, in file order.
type Reading struct {
	Coord   world.Coord
	Value   float64
	Present bool
}

// ReadTable reads a snapshot CSV with at least x, y and value columns.
// Empty or NaN values yield readings with Present unset.
func ReadTable(path string) ([]Reading, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return parseTable(f, path)
}

func parseTable(r io.Reader, name string) ([]Reading, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read header: %v", ErrMalformedSource, name, err)
	}
	xi, yi, vi := -1, -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case "x":
			xi = i
		case "y":
			yi = i
		case "value":
			vi = i
		}
	}
	if xi < 0 || yi < 0 || vi < 0 {
		return nil, fmt.Errorf("%w: %s: header %v lacks x, y or value", ErrMalformedSource, name, header)
	}
	need := max(xi, yi, vi)

	var readings []Reading
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrMalformedSource, name, line, err)
		}
		if len(rec) <= need {
			return nil, fmt.Errorf("%w: %s line %d: %d fields", ErrMalformedSource, name, line, len(rec))
		}

		x, err := parseCoord(rec[xi])
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: x: %v", ErrMalformedSource, name, line, err)
		}
		y, err := parseCoord(rec[yi])
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: y: %v", ErrMalformedSource, name, line, err)
		}

		rd := Reading{Coord: world.Coord{X: x, Y: y}}
		if s := strings.TrimSpace(rec[vi]); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s line %d: value: %v", ErrMalformedSource, name, line, err)
			}
			if !math.IsNaN(v) {
				rd.Value = v
				rd.Present = true
			}
		}
		readings = append(readings, rd)
	}
	return readings, nil
}

// parseCoord accepts integers and integral floats ("12.0").
func parseCoord(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("non-integral coordinate %q", s)
	}
	return int(f), nil
}
