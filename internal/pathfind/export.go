package pathfind

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/talgya/world-pathfinder/internal/world"
)

// WriteJSON writes the paths document to path, replacing any previous file.
func WriteJSON(path string, p Paths) error {
	if p.First == nil {
		p.First = []world.Coord{}
	}
	if p.Second == nil {
		p.Second = []world.Coord{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal paths: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("write paths: %w", err)
	}
	return nil
}
