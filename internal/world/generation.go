// Synthetic world generation using layered simplex noise.
// Produces a land/water world array and one value layer per resource per day;
// time is the third noise axis so values drift smoothly between days.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Medium restricts where a resource has readings.
type Medium uint8

const (
	MediumAny   Medium = iota // Readings on every cell
	MediumWater               // Missing on land
	MediumLand                // Missing on water
)

// ResourceProfile describes how one resource channel is synthesized.
type ResourceProfile struct {
	Name      string
	Medium    Medium
	Base      float64 // Added to the noise sample
	Amplitude float64 // Noise sample is scaled by this
	Frequency float64 // Spatial frequency of the first octave
	Drift     float64 // Temporal frequency (noise units per day)
	Binary    bool    // Values collapse to 0/1 (presence channels)
}

// DefaultProfiles returns profiles for the channels of the reference dataset.
func DefaultProfiles() []ResourceProfile {
	return []ResourceProfile{
		{Name: "oil", Medium: MediumWater, Base: 0, Amplitude: 120, Frequency: 0.05, Drift: 0.02},
		{Name: "metal", Medium: MediumWater, Base: 10, Amplitude: 80, Frequency: 0.07, Drift: 0.01},
		{Name: "helium", Medium: MediumWater, Base: 0, Amplitude: 40, Frequency: 0.04, Drift: 0.05},
		{Name: "ship", Medium: MediumWater, Amplitude: 1, Frequency: 0.15, Drift: 0.3, Binary: true},
		{Name: "coral", Medium: MediumWater, Base: 0, Amplitude: 100, Frequency: 0.09, Drift: 0.005},
		{Name: "species", Medium: MediumWater, Base: 5, Amplitude: 60, Frequency: 0.06, Drift: 0.03},
		{Name: "temperature", Medium: MediumAny, Base: 4, Amplitude: 26, Frequency: 0.02, Drift: 0.04},
		{Name: "algal", Medium: MediumWater, Base: 0, Amplitude: 50, Frequency: 0.08, Drift: 0.08},
		{Name: "wind", Medium: MediumAny, Base: 0, Amplitude: 35, Frequency: 0.03, Drift: 0.2},
	}
}

// GenConfig holds world generation parameters.
type GenConfig struct {
	Bounds   Bounds
	Seed     int64   // Random seed (0 = random)
	SeaLevel float64 // Elevation threshold for land (0.0–1.0)
	Dropout  float64 // Fraction of otherwise valid readings left missing
	Profiles []ResourceProfile
}

// DefaultGenConfig returns the configuration matching the reference dataset shape.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Bounds:   DefaultBounds(),
		Seed:     0,
		SeaLevel: 0.62,
		Dropout:  0.02,
		Profiles: DefaultProfiles(),
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Bounds:   Bounds{Size: 12, Days: 4},
		Seed:     42,
		SeaLevel: 0.7,
		Dropout:  0.05,
		Profiles: DefaultProfiles(),
	}
}

// Layer is one Size x Size plane of values. NaN marks a missing reading.
type Layer struct {
	Size   int
	Values []float64
}

// NewLayer returns a layer with every cell missing.
func NewLayer(size int) Layer {
	vals := make([]float64, size*size)
	for i := range vals {
		vals[i] = math.NaN()
	}
	return Layer{Size: size, Values: vals}
}

// At returns the value at c and whether it is present.
func (l Layer) At(c Coord) (float64, bool) {
	v := l.Values[c.X*l.Size+c.Y]
	return v, !math.IsNaN(v)
}

// Set stores v at c.
func (l Layer) Set(c Coord, v float64) {
	l.Values[c.X*l.Size+c.Y] = v
}

// Present counts the non-missing cells.
func (l Layer) Present() int {
	n := 0
	for _, v := range l.Values {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Dataset is a full synthetic world: one world array and one layer per
// resource for every day.
type Dataset struct {
	Bounds    Bounds
	World     []Layer            // per day; value > 0 is land
	Resources map[string][]Layer // resource name -> per day
	Order     []string           // resource names in profile order
}

// Generate creates a dataset from layered noise.
func Generate(cfg GenConfig) *Dataset {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	size, days := cfg.Bounds.Size, cfg.Bounds.Days

	elevNoise := opensimplex.NewNormalized(seed)
	tideNoise := opensimplex.NewNormalized(seed + 1)

	ds := &Dataset{
		Bounds:    cfg.Bounds,
		World:     make([]Layer, days),
		Resources: make(map[string][]Layer, len(cfg.Profiles)),
	}

	// Elevation is fixed; a small tide term shifts the coastline day to day.
	for d := 0; d < days; d++ {
		layer := NewLayer(size)
		tide := (tideNoise.Eval2(float64(d)*0.1, 0) - 0.5) * 0.02
		for x := 0; x < size; x++ {
			for y := 0; y < size; y++ {
				elev := octaveNoise3(elevNoise, float64(x), float64(y), 0, 4, 0.04, 0.5)
				layer.Set(Coord{X: x, Y: y}, elev-cfg.SeaLevel+tide)
			}
		}
		ds.World[d] = layer
	}

	for i, p := range cfg.Profiles {
		noise := opensimplex.NewNormalized(seed + 10 + int64(i))
		rng := rand.New(rand.NewSource(seed + 100 + int64(i)))

		layers := make([]Layer, days)
		for d := 0; d < days; d++ {
			layer := NewLayer(size)
			t := float64(d) * p.Drift / p.Frequency
			for x := 0; x < size; x++ {
				for y := 0; y < size; y++ {
					c := Coord{X: x, Y: y}
					world, _ := ds.World[d].At(c)
					land := TerrainFromValue(world) == TerrainLand
					if (p.Medium == MediumWater && land) || (p.Medium == MediumLand && !land) {
						continue
					}
					if rng.Float64() < cfg.Dropout {
						continue
					}
					v := octaveNoise3(noise, float64(x), float64(y), t, 3, p.Frequency, 0.5)
					if p.Binary {
						if v > 0.7 {
							layer.Set(c, 1)
						} else {
							layer.Set(c, 0)
						}
						continue
					}
					layer.Set(c, p.Base+v*p.Amplitude)
				}
			}
			layers[d] = layer
		}
		ds.Resources[p.Name] = layers
		ds.Order = append(ds.Order, p.Name)
	}

	return ds
}

// octaveNoise3 generates fractal noise by layering multiple frequencies.
// The time axis is not scaled by the octave frequency.
func octaveNoise3(noise opensimplex.Noise, x, y, t float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval3(x*frequency, y*frequency, t*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// TerrainCounts returns a summary of terrain distribution for one day.
func TerrainCounts(ds *Dataset, day int) map[Terrain]int {
	counts := make(map[Terrain]int)
	for _, v := range ds.World[day].Values {
		counts[TerrainFromValue(v)]++
	}
	return counts
}
