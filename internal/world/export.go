package world

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ResourceFileName returns the snapshot file name for a resource on a
// 1-indexed day.
func ResourceFileName(resource string, fileDay int) string {
	return fmt.Sprintf("%s_data_day_%d.csv", resource, fileDay)
}

// WorldFileName returns the world array file name for a 1-indexed day.
func WorldFileName(fileDay int) string {
	return fmt.Sprintf("world_array_data_day_%d.csv", fileDay)
}

// WriteCSV writes every layer of ds under dir using the snapshot naming
// convention. Rows carry a leading index column; missing readings are
// written as empty values.
func WriteCSV(dir string, ds *Dataset) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	for d, layer := range ds.World {
		if err := writeLayer(filepath.Join(dir, WorldFileName(d+1)), layer); err != nil {
			return fmt.Errorf("write world day %d: %w", d+1, err)
		}
	}
	for _, name := range ds.Order {
		for d, layer := range ds.Resources[name] {
			if err := writeLayer(filepath.Join(dir, ResourceFileName(name, d+1)), layer); err != nil {
				return fmt.Errorf("write %s day %d: %w", name, d+1, err)
			}
		}
	}
	return nil
}

func writeLayer(path string, layer Layer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"", "x", "y", "value"}); err != nil {
		return err
	}

	row := 0
	for x := 0; x < layer.Size; x++ {
		for y := 0; y < layer.Size; y++ {
			value := ""
			if v, ok := layer.At(Coord{X: x, Y: y}); ok {
				value = strconv.FormatFloat(v, 'f', -1, 64)
			}
			rec := []string{strconv.Itoa(row), strconv.Itoa(x), strconv.Itoa(y), value}
			if err := w.Write(rec); err != nil {
				return err
			}
			row++
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
