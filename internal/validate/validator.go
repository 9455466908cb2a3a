// Package validate checks tabular datasets against registered schemas.
//
// Content problems (bad counts, nulls, duplicates, type or length
// violations) are reported as entries in a Result, never as Go errors.
// Go errors are reserved for unusable inputs at the batch boundary.
package validate

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/detectlab/corpusforge/internal/checks"
	"github.com/detectlab/corpusforge/internal/schema"
	"github.com/detectlab/corpusforge/internal/table"
)

// Result is the outcome of validating one dataset. Valid is true exactly
// when Errors is empty; Warnings never affect validity. Results are
// constructed fresh per call and not mutated after return.
type Result struct {
	DatasetName string   `json:"dataset_name"`
	Valid       bool     `json:"is_valid"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	RowCount    int      `json:"row_count"`
	ColumnCount int      `json:"column_count"`
}

func newResult(name string, rows, cols int) *Result {
	return &Result{
		DatasetName: name,
		Errors:      []string{},
		Warnings:    []string{},
		RowCount:    rows,
		ColumnCount: cols,
	}
}

func (r *Result) finish() *Result {
	r.Valid = len(r.Errors) == 0
	return r
}

// Validator checks frames against dataset schemas from a registry.
type Validator struct {
	registry *schema.Registry
	logger   *slog.Logger
}

// New creates a validator. A nil registry gets the built-in schemas and a
// nil logger discards output.
func New(registry *schema.Registry, logger *slog.Logger) *Validator {
	if registry == nil {
		registry = schema.NewRegistry()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Validator{registry: registry, logger: logger}
}

// Registry returns the registry the validator resolves schema names against.
func (v *Validator) Registry() *schema.Registry {
	return v.registry
}

// Validate checks a frame against a dataset schema. Row-count, column
// presence, per-column and dataset-check findings accumulate independently;
// no check short-circuits another.
func (v *Validator) Validate(f *table.Frame, ds schema.Dataset) *Result {
	result := newResult(ds.Name, f.RowCount(), f.ColumnCount())

	rows := f.RowCount()
	if rows < ds.MinRows {
		result.Errors = append(result.Errors, fmt.Sprintf("Insufficient rows: %d < %d", rows, ds.MinRows))
	}
	if ds.MaxRows != nil && rows > *ds.MaxRows {
		result.Errors = append(result.Errors, fmt.Sprintf("Too many rows: %d > %d", rows, *ds.MaxRows))
	}

	expected := ds.ColumnNames()
	expectedSet := make(map[string]bool, len(expected))
	for _, name := range expected {
		expectedSet[name] = true
	}

	var missing []string
	for _, name := range expected {
		if !f.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("Missing columns: %s", strings.Join(missing, ", ")))
	}

	var extra []string
	for _, name := range f.Columns() {
		if !expectedSet[name] {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		result.Warnings = append(result.Warnings, fmt.Sprintf("Extra columns found: %s", strings.Join(extra, ", ")))
	}

	for _, col := range ds.Columns {
		if !f.HasColumn(col.Name) {
			continue
		}
		v.validateColumn(f, col, result)
	}

	for _, check := range ds.Checks {
		pass, err := checks.Eval(f, check)
		if err != nil {
			v.logger.Warn("dataset check could not be evaluated",
				slog.String("dataset", ds.Name), slog.String("check", check.Name), slog.Any("error", err))
			result.Warnings = append(result.Warnings, fmt.Sprintf("Check '%s' could not be evaluated: %v", check.Name, err))
			continue
		}
		if !pass {
			result.Errors = append(result.Errors, fmt.Sprintf("Check '%s' failed", check.Name))
		}
	}

	return result.finish()
}

func (v *Validator) validateColumn(f *table.Frame, col schema.Column, result *Result) {
	values := f.Column(col.Name)

	if !col.Nullable {
		nullCount := 0
		for _, val := range values {
			if val == nil {
				nullCount++
			}
		}
		if nullCount > 0 {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Column '%s' has %d null values but nulls not allowed", col.Name, nullCount))
		}
	}

	if col.Unique {
		distinct := make(map[string]bool, len(values))
		nulls := 0
		for _, val := range values {
			if val == nil {
				nulls++
				continue
			}
			distinct[table.FormatValue(val)] = true
		}
		uniqueCount := len(distinct)
		if nulls > 0 {
			uniqueCount++
		}
		if dup := len(values) - uniqueCount; dup > 0 {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Column '%s' has %d duplicate values but must be unique", col.Name, dup))
		}
	}

	observed := f.ColumnKind(col.Name)
	if observed == table.KindEmpty {
		v.logger.Warn("could not check column type",
			slog.String("column", col.Name))
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Could not check type of column '%s': no values to inspect", col.Name))
	} else {
		switch col.Type {
		case schema.TypeInteger:
			if observed != table.KindInteger {
				result.Errors = append(result.Errors,
					fmt.Sprintf("Column '%s' expected integer but got %s", col.Name, observed))
			}
		case schema.TypeText:
			if observed != table.KindText {
				result.Errors = append(result.Errors,
					fmt.Sprintf("Column '%s' expected text but got %s", col.Name, observed))
			}
		}
	}

	if col.Type == schema.TypeText && (col.MinLength != nil || col.MaxLength != nil) {
		short, long := 0, 0
		for _, val := range values {
			if val == nil {
				continue
			}
			length := utf8.RuneCountInString(table.FormatValue(val))
			if col.MinLength != nil && length < *col.MinLength {
				short++
			}
			if col.MaxLength != nil && length > *col.MaxLength {
				long++
			}
		}
		if short > 0 {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Column '%s' has %d values shorter than %d", col.Name, short, *col.MinLength))
		}
		if long > 0 {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Column '%s' has %d values longer than %d", col.Name, long, *col.MaxLength))
		}
	}

	if len(col.AllowedValues) > 0 {
		allowed := make(map[string]bool, len(col.AllowedValues))
		for _, val := range col.AllowedValues {
			allowed[val] = true
		}
		invalidSet := make(map[string]bool)
		for _, val := range values {
			if val == nil {
				continue
			}
			canonical := table.FormatValue(val)
			if !allowed[canonical] {
				invalidSet[canonical] = true
			}
		}
		if len(invalidSet) > 0 {
			invalid := make([]string, 0, len(invalidSet))
			for val := range invalidSet {
				invalid = append(invalid, val)
			}
			sort.Strings(invalid)
			result.Errors = append(result.Errors,
				fmt.Sprintf("Column '%s' has invalid values: %s", col.Name, strings.Join(invalid, ", ")))
		}
	}
}

// ValidateFile loads a delimited-text or columnar-binary file and validates
// it. Missing files, unsupported extensions, and load failures all degrade
// to an invalid Result; this method never returns a Go error.
//
// Schema resolution: an explicit registered datasetName wins, else the name
// is inferred from the file stem, else the result reports that no schema
// was found.
func (v *Validator) ValidateFile(path string, datasetName string) *Result {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	fallback := datasetName
	if fallback == "" {
		fallback = stem
	}

	if _, err := os.Stat(path); err != nil {
		result := newResult(fallback, 0, 0)
		result.Errors = append(result.Errors, fmt.Sprintf("File does not exist: %s", path))
		return result.finish()
	}

	var (
		f   *table.Frame
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		f, err = table.ReadCSV(path)
	case ".parquet", ".pq":
		f, err = table.ReadParquet(path)
	default:
		result := newResult(fallback, 0, 0)
		result.Errors = append(result.Errors, fmt.Sprintf("Unsupported file format: %s", ext))
		return result.finish()
	}
	if err != nil {
		v.logger.Warn("failed to load file for validation",
			slog.String("path", path), slog.Any("error", err))
		result := newResult(fallback, 0, 0)
		result.Errors = append(result.Errors, fmt.Sprintf("Error loading file: %v", err))
		return result.finish()
	}

	ds, ok := v.resolveSchema(datasetName, stem)
	if !ok {
		result := newResult(fallback, f.RowCount(), f.ColumnCount())
		result.Errors = append(result.Errors, fmt.Sprintf("No schema found for dataset: %s", fallback))
		return result.finish()
	}

	v.logger.Debug("validating file",
		slog.String("path", path), slog.String("schema", ds.Name))
	return v.Validate(f, ds)
}

// ValidateNamed validates an in-memory frame under a dataset name, resolving
// the schema by exact registration first and name inference second. An
// unresolvable name degrades to an invalid Result, like ValidateFile.
func (v *Validator) ValidateNamed(f *table.Frame, name string) *Result {
	ds, ok := v.resolveSchema(name, name)
	if !ok {
		result := newResult(name, f.RowCount(), f.ColumnCount())
		result.Errors = append(result.Errors, fmt.Sprintf("No schema found for dataset: %s", name))
		return result.finish()
	}
	return v.Validate(f, ds)
}

// resolveSchema finds the dataset schema for an explicitly registered name,
// falling back to name inference on inferFrom.
func (v *Validator) resolveSchema(explicit, inferFrom string) (schema.Dataset, bool) {
	if explicit != "" && v.registry.Has(explicit) {
		ds, _ := v.registry.Lookup(explicit)
		return ds, true
	}
	if inferred, ok := v.registry.InferName(inferFrom); ok && v.registry.Has(inferred) {
		ds, _ := v.registry.Lookup(inferred)
		return ds, true
	}
	return schema.Dataset{}, false
}

// ValidateDirectory validates every delimited-text and columnar-binary file
// directly inside dir (non-recursive), keyed by filename. Individual file
// failures land in their Result and do not abort the batch; the returned
// error covers only an unreadable directory.
func (v *Validator) ValidateDirectory(dir string) (map[string]*Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".csv", ".parquet":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	results := make(map[string]*Result, len(names))
	for _, name := range names {
		results[name] = v.ValidateFile(filepath.Join(dir, name), "")
	}
	return results, nil
}
