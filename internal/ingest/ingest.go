// Package ingest stages source datasets on the local filesystem.
package ingest

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DataDirNames are the stage directories kept under the data root.
var DataDirNames = []string{"raw", "interim", "processed", "external"}

// ScaffoldDataDirs creates the stage directories under base and returns their
// paths. Existing directories are left alone.
func ScaffoldDataDirs(base string) ([]string, error) {
	dirs := make([]string, 0, len(DataDirNames))
	for _, name := range DataDirNames {
		dir := filepath.Join(base, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

// ExtractZip unpacks an archive into destDir and returns the extracted file
// paths. Entries that would escape destDir are rejected.
func ExtractZip(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", zipPath, err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating extraction directory: %w", err)
	}

	root := filepath.Clean(destDir)
	var extracted []string
	for _, f := range r.File {
		dest := filepath.Join(root, f.Name)
		if dest != root && !strings.HasPrefix(dest, root+string(os.PathSeparator)) {
			return nil, fmt.Errorf("illegal path in archive: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return nil, fmt.Errorf("creating directory %s: %w", dest, err)
			}
			continue
		}
		if err := extractFile(f, dest); err != nil {
			return nil, err
		}
		extracted = append(extracted, dest)
	}
	return extracted, nil
}

func extractFile(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", dest, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening archive entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("extracting %s: %w", f.Name, err)
	}
	return out.Close()
}

// StageFile copies a source file into raw/{dataset}/ and returns the staged
// path.
func StageFile(src, rawDir, dataset string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("opening source file: %w", err)
	}
	defer in.Close()

	dir := filepath.Join(rawDir, dataset)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating dataset directory: %w", err)
	}

	dest := filepath.Join(dir, filepath.Base(src))
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("creating staged file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", fmt.Errorf("staging %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dest, nil
}
