package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Frame is a simple column-ordered table of string cells, the shape CSV
// uploads arrive in. Typed access happens at the call site via the parse
// helpers; cells keep their raw text so row counts and duplicates behave
// exactly like the uploaded file.
type Frame struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

// New creates a frame from a header and rows. Short rows are padded with
// empty cells so column access never goes out of range.
func New(columns []string, rows [][]string) *Frame {
	f := &Frame{Columns: columns, Rows: rows}
	for i, row := range f.Rows {
		if len(row) < len(columns) {
			padded := make([]string, len(columns))
			copy(padded, row)
			f.Rows[i] = padded
		}
	}
	f.reindex()
	return f
}

// FromCSV parses CSV data into a frame. Header names are whitespace-trimmed.
// Malformed rows (wrong field count) are skipped rather than failing the
// whole upload.
func FromCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("CSV has no columns")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}
		rows = append(rows, row)
	}

	return New(header, rows), nil
}

func (f *Frame) reindex() {
	f.index = make(map[string]int, len(f.Columns))
	for i, c := range f.Columns {
		f.index[c] = i
	}
}

// NumRows returns the row count.
func (f *Frame) NumRows() int { return len(f.Rows) }

// HasColumn reports whether the named column exists.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.index[name]
	return ok
}

// ColumnIndex returns the position of the named column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	if i, ok := f.index[name]; ok {
		return i
	}
	return -1
}

// Value returns the trimmed cell at (row, column). The empty string means
// either a missing column or an empty cell.
func (f *Frame) Value(row int, column string) string {
	i, ok := f.index[column]
	if !ok || i >= len(f.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(f.Rows[row][i])
}

// SetValue overwrites the cell at (row, column). No-op for unknown columns.
func (f *Frame) SetValue(row int, column, value string) {
	if i, ok := f.index[column]; ok && i < len(f.Rows[row]) {
		f.Rows[row][i] = value
	}
}

// Rename renames columns per mapping (old name → new name). Columns not in
// the mapping keep their name.
func (f *Frame) Rename(mapping map[string]string) {
	for i, c := range f.Columns {
		if renamed, ok := mapping[c]; ok {
			f.Columns[i] = renamed
		}
	}
	f.reindex()
}

// Filter returns a new frame containing only rows for which keep returns
// true. Column order is shared with the receiver.
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	kept := make([][]string, 0, len(f.Rows))
	for i := range f.Rows {
		if keep(i) {
			kept = append(kept, f.Rows[i])
		}
	}
	out := &Frame{Columns: f.Columns, Rows: kept}
	out.reindex()
	return out
}

// csvTimeLayouts covers the timestamp formats seen in retail exports,
// including the day-first and no-seconds variants of the classic online
/// retail dataset ("12/1/2010 8:26").
var csvTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"01/02/2006 15:04",
	"01/02/2006",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

// ParseTime parses a timestamp cell against the known retail layouts.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range csvTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseFloat parses a numeric cell, tolerating surrounding whitespace and a
// currency-style thousands comma ("1,234.50").
func ParseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
