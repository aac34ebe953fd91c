// Package cache stores the labelled cube and the mask between runs so
// clustering is skipped when its output already exists on disk.
//
// Each artifact is a gonum matrix in its binary encoding, compressed with
// zstd. Writes are not atomic and concurrent runs against the same
// directory are not coordinated; a corrupt cache is reported and must be
// deleted by hand.
package cache

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"gonum.org/v1/gonum/mat"

	"github.com/talgya/world-pathfinder/internal/dataset"
)

// File names inside the cache directory.
const (
	ClustersFile = "clusters.bin.zst"
	MaskFile     = "mask.bin.zst"
)

// ErrCacheCorrupt means the cache directory holds artifacts that cannot be
// read back. The run stops rather than silently recomputing.
var ErrCacheCorrupt = errors.New("cache: corrupt cache")

// Store reads and writes the cache artifacts in Dir.
type Store struct {
	Dir string
}

// New returns a store rooted at dir. The directory is created on Save.
func New(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.Dir, name)
}

// Exists reports which artifacts are present.
func (s *Store) Exists() (clusters, mask bool) {
	return fileExists(s.path(ClustersFile)), fileExists(s.path(MaskFile))
}

// Load returns the cached labelled cube and mask. hit is false when neither
// artifact exists. Exactly one artifact present, or either one unreadable,
// wraps ErrCacheCorrupt.
func (s *Store) Load(resources []string) (cube *dataset.Cube, mask *mat.Dense, hit bool, err error) {
	hasClusters, hasMask := s.Exists()
	if !hasClusters && !hasMask {
		return nil, nil, false, nil
	}
	if hasClusters != hasMask {
		return nil, nil, false, s.corrupt("incomplete cache", nil)
	}

	dense, err := readMatrix(s.path(ClustersFile))
	if err != nil {
		return nil, nil, false, s.corrupt(ClustersFile, err)
	}
	cube, err = dataset.FromDense(dense, resources)
	if err != nil {
		return nil, nil, false, s.corrupt(ClustersFile, err)
	}
	mask, err = readMatrix(s.path(MaskFile))
	if err != nil {
		return nil, nil, false, s.corrupt(MaskFile, err)
	}

	slog.Info("cache hit", "dir", s.Dir, "rows", cube.Len())
	return cube, mask, true, nil
}

// Save writes the labelled cube and the mask, replacing earlier artifacts.
func (s *Store) Save(cube *dataset.Cube, mask *mat.Dense) error {
	if cube.Labels == nil {
		return fmt.Errorf("save cache: cube is not labelled")
	}
	dense := cube.Dense()
	if dense == nil {
		return fmt.Errorf("save cache: cube is empty")
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := writeMatrix(s.path(ClustersFile), dense); err != nil {
		return err
	}
	return writeMatrix(s.path(MaskFile), mask)
}

// Clear removes both artifacts. Missing files are not an error.
func (s *Store) Clear() error {
	for _, name := range []string{ClustersFile, MaskFile} {
		if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("clear cache: %w", err)
		}
	}
	return nil
}

func (s *Store) corrupt(what string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s in %s (delete %s)", ErrCacheCorrupt, what, s.Dir, s.Dir)
	}
	return fmt.Errorf("%w: %s: %v (delete %s)", ErrCacheCorrupt, what, err, s.Dir)
}

func writeMatrix(path string, m *mat.Dense) error {
	raw, err := m.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	bufWriter := bufio.NewWriterSize(file, 1024*1024)
	enc, err := zstd.NewWriter(bufWriter, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close encoder: %w", err)
	}
	if err := bufWriter.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}

	if info, err := file.Stat(); err == nil {
		slog.Info("cache written",
			"file", filepath.Base(path),
			"raw", humanize.Bytes(uint64(len(raw))),
			"compressed", humanize.Bytes(uint64(info.Size())),
		)
	}
	return file.Close()
}

func readMatrix(path string) (*mat.Dense, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	dec, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	var m mat.Dense
	if err := m.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("decode matrix: %w", err)
	}
	return &m, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
