// Package table provides the in-memory model shared by the enrichment and
// duplicate-detection engines: ordered columns, rows of scalar cells, and
// the batch merger that combines tables parsed from several source files.
//
// Column order is the insertion order of first appearance across all merged
// sources and is stable across runs for the same input, so row indices in a
// duplicate report always join back to the analyzed table.
package table

import "fmt"

// Reserved metadata columns stamped by the batch merger. They carry
// origin attribution for duplicate reports and are excluded from policy
// application and from export unless explicitly requested.
const (
	ColSourceFile = "__source_file"
	ColSourceRow  = "__source_row"
	ColBatchIndex = "__batch_index"
)

// IsMetaColumn reports whether name is one of the reserved metadata columns.
func IsMetaColumn(name string) bool {
	switch name {
	case ColSourceFile, ColSourceRow, ColBatchIndex:
		return true
	}
	return false
}

// MalformedRecordError reports a row whose width disagrees with the table's
// declared column list. It should not occur when ingestion is correct, but
// it is detected rather than silently padded.
type MalformedRecordError struct {
	Row  int // zero-based row index
	Have int // cells present in the row
	Want int // declared columns
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at row %d: has %d cells, table declares %d columns", e.Row, e.Have, e.Want)
}

// Table is an ordered set of columns and rows of scalar cells. Rows are
// addressed by position; every row has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]Value

	index map[string]int
}

// New creates an empty table with the given column order.
// Duplicate column names keep their first position.
func New(columns ...string) *Table {
	t := &Table{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		t.AddColumn(c)
	}
	return t
}

// AddColumn appends a column if not already present and returns its index.
// Existing rows are padded with empty cells.
func (t *Table) AddColumn(name string) int {
	if t.index == nil {
		t.index = make(map[string]int)
		for i, c := range t.Columns {
			t.index[c] = i
		}
	}
	if i, ok := t.index[name]; ok {
		return i
	}
	i := len(t.Columns)
	t.Columns = append(t.Columns, name)
	t.index[name] = i
	for r := range t.Rows {
		t.Rows[r] = append(t.Rows[r], Empty())
	}
	return i
}

// ColumnIndex returns the position of a column by name.
func (t *Table) ColumnIndex(name string) (int, bool) {
	if t.index == nil {
		t.index = make(map[string]int, len(t.Columns))
		for i, c := range t.Columns {
			t.index[c] = i
		}
	}
	i, ok := t.index[name]
	return i, ok
}

// AppendRow adds a row. Rows shorter than the column list are padded with
// empty cells (heterogeneous sources are expected); rows wider than the
// column list are malformed.
func (t *Table) AppendRow(cells []Value) error {
	if len(cells) > len(t.Columns) {
		return &MalformedRecordError{Row: len(t.Rows), Have: len(cells), Want: len(t.Columns)}
	}
	row := make([]Value, len(t.Columns))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Value returns the cell at (row, column name). Missing columns read as
// empty.
func (t *Table) Value(row int, col string) Value {
	i, ok := t.ColumnIndex(col)
	if !ok || row < 0 || row >= len(t.Rows) {
		return Empty()
	}
	return t.Rows[row][i]
}

// Set writes the cell at (row, column name), adding the column if needed.
func (t *Table) Set(row int, col string, v Value) {
	i := t.AddColumn(col)
	t.Rows[row][i] = v
}

// DataColumns returns the column names excluding reserved metadata columns,
// in table order.
func (t *Table) DataColumns() []string {
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !IsMetaColumn(c) {
			out = append(out, c)
		}
	}
	return out
}

// Clone returns a deep copy sharing nothing with the receiver.
func (t *Table) Clone() *Table {
	out := New(t.Columns...)
	out.Rows = make([][]Value, len(t.Rows))
	for i, row := range t.Rows {
		cp := make([]Value, len(row))
		copy(cp, row)
		out.Rows[i] = cp
	}
	return out
}

// Validate checks that every row has exactly one cell per declared column.
func (t *Table) Validate() error {
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return &MalformedRecordError{Row: i, Have: len(row), Want: len(t.Columns)}
		}
	}
	return nil
}
