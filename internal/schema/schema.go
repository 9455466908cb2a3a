// Package schema defines declarative per-dataset column and row constraints
// and the registry that resolves dataset names to them.
//
// The registry is an immutable in-memory mapping constructed at startup;
// there is no dynamic registration. Overlay files extend the built-in
// datasets before the registry is handed to the validator.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

//go:generate go run ../../scripts/gendocs -gen=schemas -outdir=../../docs/schemas

// ColumnType is the declared coarse type of a column.
type ColumnType string

const (
	// TypeInteger declares an integer column.
	TypeInteger ColumnType = "integer"
	// TypeText declares a text column.
	TypeText ColumnType = "text"
)

// Column describes the constraints on one dataset column.
type Column struct {
	Name          string
	Type          ColumnType
	Nullable      bool
	Unique        bool
	MinLength     *int
	MaxLength     *int
	AllowedValues []string
}

// Check is a user-defined dataset assertion written as a Starlark
// expression. A falsy result fails the dataset.
type Check struct {
	Name string
	Expr string
}

// Dataset describes the expected shape of one dataset.
type Dataset struct {
	Name    string
	Columns []Column
	MinRows int
	MaxRows *int
	Checks  []Check
}

// Column returns the schema for the named column.
func (d Dataset) Column(name string) (Column, bool) {
	for _, col := range d.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the expected column names in declaration order.
func (d Dataset) ColumnNames() []string {
	names := make([]string, 0, len(d.Columns))
	for _, col := range d.Columns {
		names = append(names, col.Name)
	}
	return names
}

// Validate checks the dataset definition itself for consistency.
func (d Dataset) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("dataset has no name")
	}
	if d.MinRows < 0 {
		return fmt.Errorf("dataset %s: min_rows must not be negative", d.Name)
	}
	if d.MaxRows != nil && *d.MaxRows < d.MinRows {
		return fmt.Errorf("dataset %s: max_rows %d is below min_rows %d", d.Name, *d.MaxRows, d.MinRows)
	}
	if len(d.Columns) == 0 {
		return fmt.Errorf("dataset %s has no columns", d.Name)
	}
	seen := make(map[string]bool, len(d.Columns))
	for _, col := range d.Columns {
		if col.Name == "" {
			return fmt.Errorf("dataset %s has a column with no name", d.Name)
		}
		if seen[col.Name] {
			return fmt.Errorf("dataset %s: duplicate column %s", d.Name, col.Name)
		}
		seen[col.Name] = true
		if col.Type != TypeInteger && col.Type != TypeText {
			return fmt.Errorf("dataset %s: column %s has unknown type %q", d.Name, col.Name, col.Type)
		}
		if col.MinLength != nil && col.MaxLength != nil && *col.MinLength > *col.MaxLength {
			return fmt.Errorf("dataset %s: column %s min_length %d exceeds max_length %d",
				d.Name, col.Name, *col.MinLength, *col.MaxLength)
		}
	}
	return nil
}

// UnknownSchemaError is returned when a dataset name has no registered
// schema. Callers treat it as "no schema available", not a failure.
type UnknownSchemaError struct {
	Name      string
	Available []string
}

func (e *UnknownSchemaError) Error() string {
	return fmt.Sprintf("unknown dataset schema %q (available: %s)",
		e.Name, strings.Join(e.Available, ", "))
}

// Registry holds the dataset schemas known at startup.
type Registry struct {
	datasets map[string]Dataset
}

// NewRegistry creates a registry holding the built-in dataset schemas.
func NewRegistry() *Registry {
	r := &Registry{datasets: make(map[string]Dataset)}
	for _, ds := range builtinDatasets() {
		r.datasets[ds.Name] = ds
	}
	return r
}

// Lookup resolves a dataset name. Not-found returns an UnknownSchemaError.
func (r *Registry) Lookup(name string) (Dataset, error) {
	ds, ok := r.datasets[name]
	if !ok {
		return Dataset{}, &UnknownSchemaError{Name: name, Available: r.Names()}
	}
	return ds, nil
}

// Has reports whether a dataset name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.datasets[name]
	return ok
}

// Names returns the registered dataset names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.datasets))
	for name := range r.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
