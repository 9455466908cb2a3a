package table

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// ReadParquet loads a columnar-binary file into a frame through an in-memory
// DuckDB session. Integer columns come back as int64 values, text as strings.
func ReadParquet(path string) (*Frame, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb session: %w", err)
	}
	defer func() { _ = db.Close() }()

	query := fmt.Sprintf("SELECT * FROM read_parquet(%s)", quoteLiteral(path))
	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet columns: %w", err)
	}

	frame := New(cols...)
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan parquet row: %w", err)
		}
		row := make([]any, len(cols))
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
			} else {
				row[i] = v
			}
		}
		if err := frame.AppendRow(row...); err != nil {
			return nil, fmt.Errorf("failed to append parquet row: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parquet rows: %w", err)
	}
	return frame, nil
}

// WriteParquet writes a frame as a columnar-binary file through an in-memory
// DuckDB session. Integer-kind columns are written as BIGINT, everything
// else as VARCHAR.
func WriteParquet(f *Frame, path string) error {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return fmt.Errorf("failed to open duckdb session: %w", err)
	}
	defer func() { _ = db.Close() }()

	cols := f.Columns()
	if len(cols) == 0 {
		return fmt.Errorf("cannot write parquet file with no columns")
	}

	kinds := make(map[string]Kind, len(cols))
	defs := make([]string, 0, len(cols))
	for _, name := range cols {
		kind := f.ColumnKind(name)
		kinds[name] = kind
		sqlType := "VARCHAR"
		if kind == KindInteger {
			sqlType = "BIGINT"
		}
		defs = append(defs, fmt.Sprintf("%s %s", quoteIdent(name), sqlType))
	}

	createSQL := fmt.Sprintf("CREATE TABLE staged (%s)", strings.Join(defs, ", "))
	if _, err := db.Exec(createSQL); err != nil {
		return fmt.Errorf("failed to stage parquet table: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
	insertSQL := fmt.Sprintf("INSERT INTO staged VALUES (%s)", placeholders)
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin staging transaction: %w", err)
	}
	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare staging insert: %w", err)
	}

	rowCount := f.RowCount()
	args := make([]any, len(cols))
	for i := 0; i < rowCount; i++ {
		for j, name := range cols {
			v := f.Value(i, name)
			if v == nil {
				args[j] = nil
				continue
			}
			if kinds[name] == KindInteger {
				n, _ := ToInt(v)
				args[j] = n
			} else {
				args[j] = FormatValue(v)
			}
		}
		if _, err := stmt.Exec(args...); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return fmt.Errorf("failed to stage row %d: %w", i, err)
		}
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to close staging insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit staged rows: %w", err)
	}

	copySQL := fmt.Sprintf("COPY staged TO %s (FORMAT PARQUET)", quoteLiteral(path))
	if _, err := db.Exec(copySQL); err != nil {
		return fmt.Errorf("failed to write parquet file: %w", err)
	}
	return nil
}

// quoteIdent quotes a SQL identifier for DuckDB.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral quotes a SQL string literal for DuckDB.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
