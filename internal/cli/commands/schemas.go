package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/detectlab/corpusforge/internal/schema"
)

// NewSchemasCommand creates the schemas command.
func NewSchemasCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "schemas [name]",
		Short: "List registered dataset schemas",
		Long: `List the dataset schemas the validator resolves against, or show the
column constraints of a single schema.

The registry starts from the built-in schemas; a schemas_file in the
configuration overlays or replaces them by name.`,
		Example: `  corpusforge schemas
  corpusforge schemas primary_competition_data
  corpusforge schemas --format json`,
		Args: cobra.MaximumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return schema.NewRegistry().Names(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchemas(cmd, format, args)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json")

	return cmd
}

func runSchemas(cmd *cobra.Command, format string, args []string) error {
	cmdCtx := NewCommandContext(cmd)

	registry, err := loadRegistry(cmdCtx.Cfg)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		return showDatasetSchema(cmd, registry, args[0], format)
	}
	return listSchemas(cmd, registry, format)
}

func listSchemas(cmd *cobra.Command, registry *schema.Registry, format string) error {
	w := cmd.OutOrStdout()
	names := registry.Names()

	if format == "json" {
		out := make([]schemaJSON, 0, len(names))
		for _, name := range names {
			ds, err := registry.Lookup(name)
			if err != nil {
				return err
			}
			out = append(out, describeSchema(ds))
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Dataset", "Columns", "Min Rows", "Checks"})
	for _, name := range names {
		ds, err := registry.Lookup(name)
		if err != nil {
			return err
		}
		t.AppendRow(table.Row{ds.Name, strings.Join(ds.ColumnNames(), ", "), ds.MinRows, len(ds.Checks)})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d schemas)\n", len(names))
	return nil
}

func showDatasetSchema(cmd *cobra.Command, registry *schema.Registry, name, format string) error {
	ds, err := registry.Lookup(name)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(describeSchema(ds))
	}

	_, _ = fmt.Fprintf(w, "Dataset: %s\n", ds.Name)
	if ds.MaxRows != nil {
		_, _ = fmt.Fprintf(w, "Rows:    %d to %d\n", ds.MinRows, *ds.MaxRows)
	} else {
		_, _ = fmt.Fprintf(w, "Rows:    at least %d\n", ds.MinRows)
	}
	_, _ = fmt.Fprintln(w, strings.Repeat("-", 60))

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Column", "Type", "Nullable", "Unique", "Length", "Allowed"})
	for _, col := range ds.Columns {
		t.AppendRow(table.Row{
			col.Name, string(col.Type), yesNo(col.Nullable), yesNo(col.Unique),
			lengthRange(col), strings.Join(col.AllowedValues, ", "),
		})
	}
	t.Render()

	if len(ds.Checks) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "Checks:")
		for _, check := range ds.Checks {
			_, _ = fmt.Fprintf(w, "  %s: %s\n", check.Name, check.Expr)
		}
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func lengthRange(col schema.Column) string {
	switch {
	case col.MinLength != nil && col.MaxLength != nil:
		return fmt.Sprintf("%d..%d", *col.MinLength, *col.MaxLength)
	case col.MinLength != nil:
		return fmt.Sprintf(">=%d", *col.MinLength)
	case col.MaxLength != nil:
		return fmt.Sprintf("<=%d", *col.MaxLength)
	default:
		return ""
	}
}

// schemaJSON is the machine-readable rendering of a dataset schema.
type schemaJSON struct {
	Name    string             `json:"name"`
	MinRows int                `json:"min_rows"`
	MaxRows *int               `json:"max_rows,omitempty"`
	Columns []schemaColumnJSON `json:"columns"`
	Checks  []schemaCheckJSON  `json:"checks,omitempty"`
}

type schemaColumnJSON struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	Nullable      bool     `json:"nullable"`
	Unique        bool     `json:"unique,omitempty"`
	MinLength     *int     `json:"min_length,omitempty"`
	MaxLength     *int     `json:"max_length,omitempty"`
	AllowedValues []string `json:"allowed_values,omitempty"`
}

type schemaCheckJSON struct {
	Name string `json:"name"`
	Expr string `json:"expr"`
}

func describeSchema(ds schema.Dataset) schemaJSON {
	out := schemaJSON{Name: ds.Name, MinRows: ds.MinRows, MaxRows: ds.MaxRows}
	for _, col := range ds.Columns {
		out.Columns = append(out.Columns, schemaColumnJSON{
			Name:          col.Name,
			Type:          string(col.Type),
			Nullable:      col.Nullable,
			Unique:        col.Unique,
			MinLength:     col.MinLength,
			MaxLength:     col.MaxLength,
			AllowedValues: col.AllowedValues,
		})
	}
	for _, check := range ds.Checks {
		out.Checks = append(out.Checks, schemaCheckJSON{Name: check.Name, Expr: check.Expr})
	}
	return out
}
