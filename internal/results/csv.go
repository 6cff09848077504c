// Package results decodes splunkd result streams into in-memory values.
//
// Decoders are pure functions of their input stream. The XML, json_cols and
// json_rows decoders go through a scratch artifact that is always removed
// before the decoder returns.
package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// Table is a CSV result set. Row i of the result is Rows[i].
type Table struct {
	Columns []string
	Rows    [][]string
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Record returns row i keyed by column name. Missing cells are omitted.
func (t *Table) Record(i int) map[string]string {
	row := t.Rows[i]
	rec := make(map[string]string, len(t.Columns))
	for j, col := range t.Columns {
		if j < len(row) {
			rec[col] = row[j]
		}
	}
	return rec
}

// DecodeCSV parses a csv result stream. The first record is the header.
// An empty stream yields an empty table.
func DecodeCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Table{Columns: []string{}, Rows: [][]string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	t := &Table{Columns: header, Rows: [][]string{}}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(t.Rows), err)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}
