package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/detectlab/corpusforge/internal/schema"
)

// generateSchemaDocs generates dataset schema reference pages from the
// built-in registry.
func generateSchemaDocs(outDir string) error {
	log.Printf("Generating schema docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	registry := schema.NewRegistry()

	if err := generateSchemaIndex(registry, outDir); err != nil {
		return fmt.Errorf("failed to generate index: %w", err)
	}
	log.Printf("  Generated index.md")

	for _, name := range registry.Names() {
		ds, err := registry.Lookup(name)
		if err != nil {
			return err
		}
		if err := generateSchemaPage(ds, outDir); err != nil {
			return fmt.Errorf("failed to generate page for %s: %w", name, err)
		}
		log.Printf("  Generated %s.md", name)
	}

	return nil
}

// generateSchemaIndex generates the schema overview page.
func generateSchemaIndex(registry *schema.Registry, outDir string) error {
	w := NewMarkdownWriter()

	w.Frontmatter("Dataset Schemas", "Built-in dataset schema reference for corpusforge")
	w.GeneratedMarker()

	w.Header(1, "Dataset Schemas")
	w.Paragraph("Every staged dataset is validated against a schema before it enters the unified corpus. Schemas are resolved by name inference from the file name, and the built-in set below can be extended through a schemas.yaml overlay file.")

	headers := []string{"Schema", "Columns", "Minimum Rows"}
	var rows [][]string
	for _, name := range registry.Names() {
		ds, err := registry.Lookup(name)
		if err != nil {
			return err
		}
		link := fmt.Sprintf("[%s](/schemas/%s)", InlineCode(name), name)
		rows = append(rows, []string{link, strconv.Itoa(len(ds.Columns)), strconv.Itoa(ds.MinRows)})
	}
	w.Table(headers, rows)

	w.Header(2, "Overlay Files")
	w.Paragraph("Additional schemas are declared in YAML and loaded through the schemas_file configuration key:")
	w.CodeBlock("yaml", `schemas:
  - name: web_scrape
    min_rows: 50
    columns:
      - name: url
        type: text
        nullable: false
      - name: text
        type: text
        min_length: 10
    checks:
      - name: has_rows
        expr: row_count > 0`)

	filename := filepath.Join(outDir, "index.md")
	return os.WriteFile(filename, w.Bytes(), 0600)
}

// generateSchemaPage generates documentation for a single dataset schema.
func generateSchemaPage(ds schema.Dataset, outDir string) error {
	w := NewMarkdownWriter()

	w.Frontmatter(ds.Name, fmt.Sprintf("Schema reference for the %s dataset", ds.Name))
	w.GeneratedMarker()

	w.Header(1, ds.Name)

	bounds := fmt.Sprintf("Expects at least %d rows.", ds.MinRows)
	if ds.MaxRows != nil {
		bounds = fmt.Sprintf("Expects between %d and %d rows.", ds.MinRows, *ds.MaxRows)
	}
	w.Paragraph(bounds)

	w.Header(2, "Columns")
	headers := []string{"Column", "Type", "Constraints"}
	var rows [][]string
	for _, col := range ds.Columns {
		rows = append(rows, []string{InlineCode(col.Name), string(col.Type), columnConstraints(col)})
	}
	w.Table(headers, rows)

	if len(ds.Checks) > 0 {
		w.Header(2, "Checks")
		headers := []string{"Check", "Expression"}
		var rows [][]string
		for _, check := range ds.Checks {
			rows = append(rows, []string{InlineCode(check.Name), InlineCode(check.Expr)})
		}
		w.Table(headers, rows)
	}

	filename := filepath.Join(outDir, ds.Name+".md")
	return os.WriteFile(filename, w.Bytes(), 0600)
}

// columnConstraints renders a column's constraints as a comma-separated list.
func columnConstraints(col schema.Column) string {
	var parts []string
	if !col.Nullable {
		parts = append(parts, "required")
	}
	if col.Unique {
		parts = append(parts, "unique")
	}
	if col.MinLength != nil {
		parts = append(parts, fmt.Sprintf("length >= %d", *col.MinLength))
	}
	if col.MaxLength != nil {
		parts = append(parts, fmt.Sprintf("length <= %d", *col.MaxLength))
	}
	if len(col.AllowedValues) > 0 {
		parts = append(parts, "one of: "+strings.Join(col.AllowedValues, ", "))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}
