// Package checks evaluates user-defined dataset assertions written as
// Starlark expressions.
//
// Each expression is evaluated once per table with two globals bound:
// "columns", a dict of column name to the list of cell values, and
// "row_count". Cell values keep their runtime types (strings from delimited
// text stay strings; expressions cast with int() as needed), with nil cells
// bound as None. A truthy result passes the check.
package checks

import (
	"fmt"
	"time"

	"go.starlark.net/starlark"

	"github.com/detectlab/corpusforge/internal/schema"
	"github.com/detectlab/corpusforge/internal/table"
)

// Eval evaluates one check against a frame. The returned error covers only
// expression failures (syntax errors, unknown names); callers decide whether
// those fail the dataset or degrade to a warning.
func Eval(f *table.Frame, check schema.Check) (bool, error) {
	globals, err := frameGlobals(f)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", check.Name, err)
	}

	thread := &starlark.Thread{
		Name:  "check:" + check.Name,
		Print: func(_ *starlark.Thread, _ string) {},
	}

	value, err := starlark.Eval(thread, check.Name, check.Expr, globals) //nolint:staticcheck // SA1019: will migrate to EvalOptions later
	if err != nil {
		return false, fmt.Errorf("check %s failed to evaluate: %w", check.Name, err)
	}
	return bool(value.Truth()), nil
}

func frameGlobals(f *table.Frame) (starlark.StringDict, error) {
	columns := starlark.NewDict(f.ColumnCount())
	for _, name := range f.Columns() {
		values := f.Column(name)
		list := make([]starlark.Value, len(values))
		for i, v := range values {
			sv, err := toStarlark(v)
			if err != nil {
				return nil, fmt.Errorf("column %s row %d: %w", name, i, err)
			}
			list[i] = sv
		}
		if err := columns.SetKey(starlark.String(name), starlark.NewList(list)); err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
	}

	return starlark.StringDict{
		"columns":   columns,
		"row_count": starlark.MakeInt(f.RowCount()),
	}, nil
}

func toStarlark(v any) (starlark.Value, error) {
	switch val := v.(type) {
	case nil:
		return starlark.None, nil
	case string:
		return starlark.String(val), nil
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int32:
		return starlark.MakeInt64(int64(val)), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float32:
		return starlark.Float(float64(val)), nil
	case float64:
		return starlark.Float(val), nil
	case time.Time:
		return starlark.String(val.UTC().Format(time.RFC3339)), nil
	default:
		return starlark.String(table.FormatValue(val)), nil
	}
}
