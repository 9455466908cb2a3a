package schema_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestSchemaImportsOnly verifies internal/schema only imports allowed packages.
// The Golden Rule: internal/schema imports ONLY the YAML parser and stdlib, so
// every other package can depend on it without dragging in drivers or the CLI.
func TestSchemaImportsOnly(t *testing.T) {
	allowedExternal := map[string]bool{
		"gopkg.in/yaml.v3": true,
	}

	fset := token.NewFileSet()

	schemaDir := "."

	entries, err := os.ReadDir(schemaDir)
	if err != nil {
		t.Fatalf("Failed to read schema directory: %v", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".go") {
			continue
		}
		if strings.HasSuffix(entry.Name(), "_test.go") {
			continue
		}

		path := filepath.Join(schemaDir, entry.Name())
		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			t.Errorf("Failed to parse %s: %v", path, err)
			continue
		}

		for _, imp := range f.Imports {
			importPath := strings.Trim(imp.Path.Value, `"`)

			// Allow stdlib (no dots in path)
			if !strings.Contains(importPath, ".") {
				continue
			}

			if !allowedExternal[importPath] {
				t.Errorf("%s imports forbidden package: %s", entry.Name(), importPath)
			}
		}
	}
}

// TestSchemaDoesNotImportSiblings verifies internal/schema doesn't import any
// other corpusforge packages. Schema definitions are domain data that the
// validator, unifier, and CLI all consume; a cycle here breaks that layering.
func TestSchemaDoesNotImportSiblings(t *testing.T) {
	fset := token.NewFileSet()
	schemaDir := "."

	entries, err := os.ReadDir(schemaDir)
	if err != nil {
		t.Fatalf("Failed to read schema directory: %v", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".go") {
			continue
		}
		if strings.HasSuffix(entry.Name(), "_test.go") {
			continue
		}

		path := filepath.Join(schemaDir, entry.Name())
		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			t.Errorf("Failed to parse %s: %v", path, err)
			continue
		}

		for _, imp := range f.Imports {
			importPath := strings.Trim(imp.Path.Value, `"`)

			if strings.Contains(importPath, "detectlab/corpusforge/") {
				t.Errorf("%s imports sibling package: %s (schema must not depend on other corpusforge packages)", entry.Name(), importPath)
			}
		}
	}
}
