package unify

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/detectlab/corpusforge/internal/table"
)

// primaryFilePatterns pick the main data file of a dataset directory, most
// specific first.
var primaryFilePatterns = []string{"train_essay*.csv", "*train*.csv", "*.csv"}

// LoadFromDirectory loads one dataset per immediate subdirectory of dir,
// using the subdirectory name as the dataset name. Within each subdirectory
// the first file matching the primary file patterns is loaded; directories
// without a match are skipped with a warning and unreadable files are skipped
// with an error logged. Results follow the sorted subdirectory order.
func (u *Unifier) LoadFromDirectory(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading dataset directory %s: %w", dir, err)
	}

	sources := make([]Source, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		path, ok := primaryFile(filepath.Join(dir, name))
		if !ok {
			u.logger.Warn("no csv files found in dataset directory", "dataset", name)
			continue
		}
		f, err := table.ReadCSV(path)
		if err != nil {
			u.logger.Error("skipping unreadable dataset file", "path", path, "error", err)
			continue
		}
		u.logger.Info("loaded dataset", "dataset", name, "file", filepath.Base(path), "rows", f.RowCount())
		sources = append(sources, Source{Name: name, Frame: f})
	}
	return sources, nil
}

// primaryFile returns the first match of the highest-priority pattern that
// matches anything in dir. Glob results come back in lexical order.
func primaryFile(dir string) (string, bool) {
	for _, pattern := range primaryFilePatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil || len(matches) == 0 {
			continue
		}
		return matches[0], true
	}
	return "", false
}
