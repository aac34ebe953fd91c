// Package config holds the pipeline configuration: data locations, the
// resource table, clustering parameters and path heuristic constants.
// Values come from an optional YAML file layered over Default().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Clustering profiles. Each uses a different cluster count.
const (
	ProfileCoarse = "coarse"
	ProfileFine   = "fine"
)

// Resource is one entry of the resource table used to build the cube.
// Invert marks channels where a smaller raw value is better.
type Resource struct {
	Name   string `yaml:"name"`
	Invert bool   `yaml:"invert"`
}

// Scale returns the sign applied after normalization.
func (r Resource) Scale() float64 {
	if r.Invert {
		return -1
	}
	return 1
}

// Clustering configures the vector-quantization step.
type Clustering struct {
	Clusters  int     `yaml:"clusters"`
	Seed      int64   `yaml:"seed"`
	MaxIter   int     `yaml:"max_iter"`
	Tolerance float64 `yaml:"tolerance"`
}

// Paths configures the two-track path heuristic.
type Paths struct {
	MinSeparation  int    `yaml:"min_separation"`  // |dx| and |dy| at least this far from the other track
	MaxStep        int    `yaml:"max_step"`        // |dx| and |dy| at most this far from the previous day
	FallbackOffset [2]int `yaml:"fallback_offset"` // added to the second track when a day has no candidate
}

// Config is the root configuration.
type Config struct {
	DataDir   string `yaml:"data_dir"`
	CacheDir  string `yaml:"cache_dir"`
	OutputDir string `yaml:"output_dir"`
	DBPath    string `yaml:"db_path"`
	Port      int    `yaml:"port"`

	Days     int `yaml:"days"`
	GridSize int `yaml:"grid_size"`
	MaskDay  int `yaml:"mask_day"`

	Profile      string     `yaml:"profile"`
	Clustering   Clustering `yaml:"clustering"`
	Resources    []Resource `yaml:"resources"`
	GUIResources []string   `yaml:"gui_resources"`
	Paths        Paths      `yaml:"paths"`
}

// ProfileClustering returns the clustering parameters for a named profile.
func ProfileClustering(profile string) (Clustering, bool) {
	switch profile {
	case ProfileCoarse:
		return Clustering{Clusters: 10, Seed: 0, MaxIter: 1000, Tolerance: 1e-4}, true
	case ProfileFine:
		return Clustering{Clusters: 38, Seed: 0, MaxIter: 10000, Tolerance: 1e-4}, true
	default:
		return Clustering{}, false
	}
}

// DefaultResources is the resource table the cube is built from.
func DefaultResources() []Resource {
	return []Resource{
		{Name: "metal"},
		{Name: "helium"},
		{Name: "oil"},
		{Name: "coral", Invert: true},
		{Name: "species", Invert: true},
	}
}

// DefaultGUIResources lists the channels ranked for the viewer.
func DefaultGUIResources() []string {
	return []string{"oil", "metal", "helium", "ship", "coral", "species", "temperature", "algal", "wind"}
}

// Default returns the built-in configuration.
func Default() *Config {
	clustering, _ := ProfileClustering(ProfileFine)
	return &Config{
		DataDir:      "data",
		CacheDir:     "__datacache__",
		OutputDir:    "out",
		DBPath:       "data/pathfinder.db",
		Port:         8080,
		Days:         30,
		GridSize:     100,
		MaskDay:      20,
		Profile:      ProfileFine,
		Clustering:   clustering,
		Resources:    DefaultResources(),
		GUIResources: DefaultGUIResources(),
		Paths: Paths{
			MinSeparation:  2,
			MaxStep:        5,
			FallbackOffset: [2]int{2, 1},
		},
	}
}

// Load reads a YAML file over Default(). Fields omitted from the file keep
// their defaults. A profile named in the file selects the clustering block;
// clustering keys set in the same file override individual profile values.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var probe struct {
		Profile string `yaml:"profile"`
	}
	if err := yaml.Unmarshal(b, &probe); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := Default()
	if probe.Profile != "" {
		c, ok := ProfileClustering(probe.Profile)
		if !ok {
			return nil, fmt.Errorf("%w: unknown profile %q", ErrInvalidConfig, probe.Profile)
		}
		cfg.Clustering = c
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv loads PATHFINDER_CONFIG when set, then applies the directory and
// port overrides.
func FromEnv() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("PATHFINDER_CONFIG"); path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.DataDir = envOrDefault("PATHFINDER_DATA_DIR", cfg.DataDir)
	cfg.CacheDir = envOrDefault("PATHFINDER_CACHE_DIR", cfg.CacheDir)
	cfg.OutputDir = envOrDefault("PATHFINDER_OUT_DIR", cfg.OutputDir)
	cfg.DBPath = envOrDefault("PATHFINDER_DB", cfg.DBPath)
	cfg.Port = envIntOrDefault("PATHFINDER_PORT", cfg.Port)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Days < 1 {
		return fmt.Errorf("%w: days must be positive, got %d", ErrInvalidConfig, c.Days)
	}
	if c.GridSize < 1 {
		return fmt.Errorf("%w: grid_size must be positive, got %d", ErrInvalidConfig, c.GridSize)
	}
	if c.MaskDay < 0 || c.MaskDay >= c.Days {
		return fmt.Errorf("%w: mask_day %d outside [0,%d)", ErrInvalidConfig, c.MaskDay, c.Days)
	}
	if c.Clustering.Clusters < 1 {
		return fmt.Errorf("%w: clusters must be positive, got %d", ErrInvalidConfig, c.Clustering.Clusters)
	}
	if c.Clustering.MaxIter < 1 {
		return fmt.Errorf("%w: max_iter must be positive, got %d", ErrInvalidConfig, c.Clustering.MaxIter)
	}
	if c.Clustering.Tolerance < 0 {
		return fmt.Errorf("%w: tolerance must not be negative", ErrInvalidConfig)
	}
	if len(c.Resources) == 0 {
		return fmt.Errorf("%w: resource table is empty", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Resources))
	for _, r := range c.Resources {
		if r.Name == "" {
			return fmt.Errorf("%w: resource with empty name", ErrInvalidConfig)
		}
		if seen[r.Name] {
			return fmt.Errorf("%w: duplicate resource %q", ErrInvalidConfig, r.Name)
		}
		seen[r.Name] = true
	}
	if c.Paths.MinSeparation < 0 || c.Paths.MaxStep < 0 {
		return fmt.Errorf("%w: path distances must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ResourceNames returns the names of the resource table in order.
func (c *Config) ResourceNames() []string {
	names := make([]string, len(c.Resources))
	for i, r := range c.Resources {
		names[i] = r.Name
	}
	return names
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// LogLevel parses PATHFINDER_LOG_LEVEL, defaulting to info.
func LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(envOrDefault("PATHFINDER_LOG_LEVEL", "info"))); err != nil {
		return slog.LevelInfo
	}
	return level
}
