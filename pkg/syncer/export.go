package syncer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"sellsync/pkg/catalog"
)

// WriteDiffCSV exports the three diff sets as single-column CSV files in
// dir, with titles unescaped back to their original form.
func WriteDiffCSV(dir string, res catalog.DiffResult) error {
	files := map[string][]string{
		"ebayOnly.csv":       res.LeftOnly,
		"shopifyOnly.csv":    res.RightOnly,
		"commonProducts.csv": res.Common,
	}
	for name, titles := range files {
		if err := writeTitlesCSV(filepath.Join(dir, name), titles); err != nil {
			return err
		}
	}
	return nil
}

func writeTitlesCSV(path string, titles []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write([]string{"title"}); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	for _, title := range titles {
		if err := w.Write([]string{catalog.UnescapeTitle(title)}); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}
