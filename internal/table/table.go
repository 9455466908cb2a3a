// Package table provides the in-memory tabular frame that the validator
// and unifier operate on, plus CSV and Parquet readers and writers.
//
// A Frame is a bulk, whole-table value: transforms return new frames and
// never mutate their inputs, so no locking is needed across operations.
// A nil cell marks a missing value.
package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the coarse value category of a column.
type Kind string

const (
	// KindInteger marks a column whose non-null values all parse as integers.
	KindInteger Kind = "integer"
	// KindText marks any column with at least one non-integer value.
	KindText Kind = "text"
	// KindEmpty marks a column with no non-null values to inspect.
	KindEmpty Kind = "empty"
)

// Frame is an ordered collection of named columns of equal length.
// Column names must be unique within a frame.
type Frame struct {
	cols []string
	data map[string][]any
}

// New creates an empty frame with the given column order.
func New(columns ...string) *Frame {
	f := &Frame{
		cols: make([]string, 0, len(columns)),
		data: make(map[string][]any, len(columns)),
	}
	for _, name := range columns {
		if _, exists := f.data[name]; exists {
			continue
		}
		f.cols = append(f.cols, name)
		f.data[name] = nil
	}
	return f
}

// AppendRow adds one row of values in column order.
func (f *Frame) AppendRow(values ...any) error {
	if len(values) != len(f.cols) {
		return fmt.Errorf("row has %d values, frame has %d columns", len(values), len(f.cols))
	}
	for i, name := range f.cols {
		f.data[name] = append(f.data[name], values[i])
	}
	return nil
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.cols))
	copy(out, f.cols)
	return out
}

// RowCount returns the number of rows.
func (f *Frame) RowCount() int {
	if len(f.cols) == 0 {
		return 0
	}
	return len(f.data[f.cols[0]])
}

// ColumnCount returns the number of columns.
func (f *Frame) ColumnCount() int {
	return len(f.cols)
}

// HasColumn reports whether the named column exists.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.data[name]
	return ok
}

// Column returns the values of the named column, or nil if absent.
// The returned slice is the frame's backing storage and must not be modified.
func (f *Frame) Column(name string) []any {
	return f.data[name]
}

// Value returns the cell at the given row in the named column.
func (f *Frame) Value(row int, column string) any {
	col, ok := f.data[column]
	if !ok || row < 0 || row >= len(col) {
		return nil
	}
	return col[row]
}

// SetColumn replaces the named column's values, appending the column if
// absent. The value count must match the frame's row count unless the frame
// has no columns yet, in which case the column establishes it.
func (f *Frame) SetColumn(name string, values []any) error {
	if len(f.cols) > 0 && len(values) != f.RowCount() {
		return fmt.Errorf("column %s has %d values, frame has %d rows", name, len(values), f.RowCount())
	}
	if _, exists := f.data[name]; !exists {
		f.cols = append(f.cols, name)
	}
	f.data[name] = values
	return nil
}

// AddColumn appends a column filled with the given value for every existing
// row. Present columns are left untouched.
func (f *Frame) AddColumn(name string, fill any) {
	if _, exists := f.data[name]; exists {
		return
	}
	values := make([]any, f.RowCount())
	for i := range values {
		values[i] = fill
	}
	f.cols = append(f.cols, name)
	f.data[name] = values
}

// RenameColumns returns a new frame with columns renamed per the mapping.
// Columns absent from the mapping keep their names. The mapping must not
// produce duplicate names.
func (f *Frame) RenameColumns(mapping map[string]string) *Frame {
	out := &Frame{
		cols: make([]string, 0, len(f.cols)),
		data: make(map[string][]any, len(f.cols)),
	}
	for _, name := range f.cols {
		renamed := name
		if to, ok := mapping[name]; ok {
			renamed = to
		}
		out.cols = append(out.cols, renamed)
		out.data[renamed] = copyValues(f.data[name])
	}
	return out
}

// ReorderColumns returns a new frame with the listed columns first, in the
// given order, followed by the remaining columns in their existing order.
// Listed names absent from the frame are skipped.
func (f *Frame) ReorderColumns(first []string) *Frame {
	ordered := make([]string, 0, len(f.cols))
	taken := make(map[string]bool, len(first))
	for _, name := range first {
		if f.HasColumn(name) && !taken[name] {
			ordered = append(ordered, name)
			taken[name] = true
		}
	}
	for _, name := range f.cols {
		if !taken[name] {
			ordered = append(ordered, name)
		}
	}

	out := &Frame{
		cols: ordered,
		data: make(map[string][]any, len(ordered)),
	}
	for _, name := range ordered {
		out.data[name] = copyValues(f.data[name])
	}
	return out
}

// SelectRows returns a new frame containing the given rows in the given order.
func (f *Frame) SelectRows(indices []int) *Frame {
	out := New(f.cols...)
	for _, name := range f.cols {
		src := f.data[name]
		values := make([]any, 0, len(indices))
		for _, i := range indices {
			values = append(values, src[i])
		}
		out.data[name] = values
	}
	return out
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		cols: make([]string, len(f.cols)),
		data: make(map[string][]any, len(f.cols)),
	}
	copy(out.cols, f.cols)
	for name, values := range f.data {
		out.data[name] = copyValues(values)
	}
	return out
}

// Concat concatenates frames row-wise preserving input order. The result's
// column set is the union of all input columns in first-seen order; cells
// for columns a frame lacks are nil.
func Concat(frames ...*Frame) *Frame {
	var cols []string
	seen := make(map[string]bool)
	for _, f := range frames {
		for _, name := range f.cols {
			if !seen[name] {
				seen[name] = true
				cols = append(cols, name)
			}
		}
	}

	out := New(cols...)
	for _, f := range frames {
		rows := f.RowCount()
		for _, name := range cols {
			src, ok := f.data[name]
			dst := out.data[name]
			for i := 0; i < rows; i++ {
				if ok {
					dst = append(dst, src[i])
				} else {
					dst = append(dst, nil)
				}
			}
			out.data[name] = dst
		}
	}
	return out
}

// ColumnKind inspects the named column's non-null values and reports the
// coarse category: integer when every value parses as an integer, empty when
// there is nothing to inspect, text otherwise.
func (f *Frame) ColumnKind(name string) Kind {
	values, ok := f.data[name]
	if !ok {
		return KindEmpty
	}
	inspected := false
	for _, v := range values {
		if v == nil {
			continue
		}
		inspected = true
		if _, isInt := ToInt(v); !isInt {
			return KindText
		}
	}
	if !inspected {
		return KindEmpty
	}
	return KindInteger
}

// ToInt coerces a cell value to an integer, reporting whether the
// coercion succeeded. Strings must parse exactly; floats must be integral.
func ToInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint:
		return int64(t), true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		return int64(t), true
	case float32:
		if t == float32(int64(t)) {
			return int64(t), true
		}
		return 0, false
	case float64:
		if t == float64(int64(t)) {
			return int64(t), true
		}
		return 0, false
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// FormatValue renders a cell value as its canonical string form.
// nil renders as the empty string.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func copyValues(values []any) []any {
	out := make([]any, len(values))
	copy(out, values)
	return out
}
