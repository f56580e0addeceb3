// Package table holds a published spreadsheet as header-indexed string rows.
package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Sentinel errors.
var (
	ErrEmpty          = errors.New("table: empty csv")
	ErrMissingColumns = errors.New("missing columns")
)

// Table is a parsed sheet. Every row has len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string

	index map[string]int
}

var bom = []byte{0xEF, 0xBB, 0xBF} //nolint:gochecknoglobals // UTF-8 byte order mark

// Parse reads CSV into a Table. Header names are trimmed and BOM-stripped,
// short rows are padded, long rows truncated, and rows with no content dropped.
func Parse(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("table: read: %w", err)
	}
	data = bytes.TrimPrefix(data, bom)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("table: header: %w", err)
	}

	t := New(header)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("table: row: %w", err)
		}
		t.Append(row)
	}
	return t, nil
}

// New creates an empty table with the given header.
func New(header []string) *Table {
	t := &Table{Header: make([]string, len(header))}
	for i, h := range header {
		t.Header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	t.reindex()
	return t
}

// Append adds a row, normalizing its width. Blank rows are ignored.
func (t *Table) Append(row []string) {
	blank := true
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			blank = false
			break
		}
	}
	if blank {
		return
	}
	out := make([]string, len(t.Header))
	copy(out, row)
	t.Rows = append(t.Rows, out)
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Has reports whether every column exists.
func (t *Table) Has(cols ...string) bool {
	return len(t.Missing(cols...)) == 0
}

// Missing returns the columns that are absent, in argument order.
func (t *Table) Missing(cols ...string) []string {
	var missing []string
	for _, c := range cols {
		if _, ok := t.index[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

// Require returns an error wrapping ErrMissingColumns that names every absent column.
func (t *Table) Require(cols ...string) error {
	if missing := t.Missing(cols...); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}

// Rename changes a column name when from exists and to does not.
func (t *Table) Rename(from, to string) {
	i, ok := t.index[from]
	if !ok {
		return
	}
	if _, clash := t.index[to]; clash {
		return
	}
	t.Header[i] = to
	t.reindex()
}

// Value returns the trimmed cell of row at col, or "" when the column is absent.
func (t *Table) Value(row []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Column returns the index of col, or -1.
func (t *Table) Column(col string) int {
	if i, ok := t.index[col]; ok {
		return i
	}
	return -1
}
