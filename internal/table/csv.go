package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadCSV loads a delimited-text file into a frame. The first record is the
// header; a UTF-8 BOM on the first header cell is stripped. Cells are kept as
// raw strings, with empty cells read as nil.
func ReadCSV(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv file %s has no header", path)
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	frame := New(header...)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}
		row := make([]any, len(record))
		for i, cell := range record {
			if cell == "" {
				row[i] = nil
			} else {
				row[i] = cell
			}
		}
		if err := frame.AppendRow(row...); err != nil {
			return nil, fmt.Errorf("failed to append csv record: %w", err)
		}
	}
	return frame, nil
}

// WriteCSV writes a frame as a delimited-text file with a header row.
// nil cells are written as empty strings.
func WriteCSV(f *Frame, path string) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close csv file: %w", cerr)
		}
	}()

	writer := csv.NewWriter(file)
	cols := f.Columns()
	if err := writer.Write(cols); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	rows := f.RowCount()
	record := make([]string, len(cols))
	for i := 0; i < rows; i++ {
		for j, name := range cols {
			record[j] = FormatValue(f.Value(i, name))
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv writer: %w", err)
	}
	return nil
}
