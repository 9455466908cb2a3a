package commands

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed all:templates
var templateFS embed.FS

// Embedded template trees cannot hold real dotfiles, so they are stored
// bare and renamed on the way out.
var templateRenames = map[string]string{
	"gitignore": ".gitignore",
}

type templateEntry struct {
	// rel is the path relative to the template root, renames applied.
	rel   string
	src   string
	isDir bool
}

// templateEntries walks an embedded template and returns its entries in
// walk order, directories before their contents.
func templateEntries(templateName string) ([]templateEntry, error) {
	root := filepath.Join("templates", templateName)

	var entries []templateEntry
	err := fs.WalkDir(templateFS, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		base := filepath.Base(rel)
		if renamed, ok := templateRenames[base]; ok {
			rel = filepath.Join(filepath.Dir(rel), renamed)
		}
		entries = append(entries, templateEntry{rel: rel, src: path, isDir: d.IsDir()})
		return nil
	})
	return entries, err
}

// copyTemplate materializes an embedded template under the target directory.
// Existing files are left alone unless force is set.
func copyTemplate(templateName, targetDir string, force bool) error {
	entries, err := templateEntries(templateName)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		targetPath := filepath.Join(targetDir, entry.rel)

		if entry.isDir {
			if err := os.MkdirAll(targetPath, 0750); err != nil {
				return err
			}
			continue
		}

		if !force {
			if _, err := os.Stat(targetPath); err == nil {
				continue
			}
		}

		content, err := templateFS.ReadFile(entry.src)
		if err != nil {
			return err
		}
		if err := os.WriteFile(targetPath, content, 0600); err != nil {
			return err
		}
	}
	return nil
}

// listTemplateFiles returns the file paths a template creates, for display.
func listTemplateFiles(templateName string) ([]string, error) {
	entries, err := templateEntries(templateName)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.isDir {
			files = append(files, entry.rel)
		}
	}
	return files, nil
}
