package unify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/detectlab/corpusforge/internal/table"
)

// Save writes the unified dataset at path in the given format ("parquet" or
// "csv", case-insensitive), forcing the extension to match the format.
// Parent directories are created as needed. It returns the path actually
// written.
func (u *Unifier) Save(f *table.Frame, path, format string) (string, error) {
	var write func(*table.Frame, string) error
	switch strings.ToLower(format) {
	case "parquet":
		path = forceExt(path, ".parquet")
		write = table.WriteParquet
	case "csv":
		path = forceExt(path, ".csv")
		write = table.WriteCSV
	default:
		return "", &UnsupportedFormatError{Format: format}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	if err := write(f, path); err != nil {
		return "", err
	}
	u.logger.Info("saved unified dataset", "path", path, "rows", f.RowCount())
	return path, nil
}

// WriteMetadataSidecar writes the metadata as indented JSON next to the
// dataset file, with the extension swapped for .json. It returns the sidecar
// path.
func WriteMetadataSidecar(meta Metadata, dataPath string) (string, error) {
	path := forceExt(dataPath, ".json")
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding metadata: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("writing metadata: %w", err)
	}
	return path, nil
}

// forceExt swaps path's extension for ext, appending when there is none.
func forceExt(path, ext string) string {
	if cur := filepath.Ext(path); cur == ext {
		return path
	} else if cur != "" {
		path = strings.TrimSuffix(path, cur)
	}
	return path + ext
}
