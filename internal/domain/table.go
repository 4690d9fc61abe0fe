package domain

import (
	"fmt"
	"slices"
)

// Table is an ordered set of named columns over rows of dynamically typed
// cells. Cells hold string, int64, float64, bool, time.Time or nil.
//
// Transforming methods return a new Table and leave the receiver untouched.
// None of them reorder rows.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]any
}

// NewTable creates an empty table with the given column order.
func NewTable(columns ...string) (*Table, error) {
	t := &Table{columns: slices.Clone(columns)}
	if err := t.reindex(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) reindex() error {
	t.index = make(map[string]int, len(t.columns))
	for i, c := range t.columns {
		if _, dup := t.index[c]; dup {
			return fmt.Errorf("duplicate column %q", c)
		}
		t.index[c] = i
	}
	return nil
}

// Columns returns the column names in order.
func (t *Table) Columns() []string { return slices.Clone(t.columns) }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// HasColumn reports whether the table has a column called name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Append adds a row. The number of values must match the number of columns.
func (t *Table) Append(values ...any) error {
	if len(values) != len(t.columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.columns))
	}
	t.rows = append(t.rows, slices.Clone(values))
	return nil
}

// Get returns the cell at row i in column name, or nil if the column is absent.
func (t *Table) Get(i int, name string) any {
	j, ok := t.index[name]
	if !ok {
		return nil
	}
	return t.rows[i][j]
}

// Row returns a copy of row i in column order.
func (t *Table) Row(i int) []any { return slices.Clone(t.rows[i]) }

// Record returns row i keyed by column name.
func (t *Table) Record(i int) map[string]any {
	rec := make(map[string]any, len(t.columns))
	for j, c := range t.columns {
		rec[c] = t.rows[i][j]
	}
	return rec
}

// Column returns a copy of a column's values.
func (t *Table) Column(name string) ([]any, bool) {
	j, ok := t.index[name]
	if !ok {
		return nil, false
	}
	out := make([]any, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[j]
	}
	return out, true
}

// Drop removes the named columns. Names that are not present are ignored.
func (t *Table) Drop(names ...string) *Table {
	keep := make([]int, 0, len(t.columns))
	for j, c := range t.columns {
		if !slices.Contains(names, c) {
			keep = append(keep, j)
		}
	}

	out := &Table{columns: make([]string, len(keep)), rows: make([][]any, len(t.rows))}
	for k, j := range keep {
		out.columns[k] = t.columns[j]
	}
	for i, row := range t.rows {
		nr := make([]any, len(keep))
		for k, j := range keep {
			nr[k] = row[j]
		}
		out.rows[i] = nr
	}
	_ = out.reindex()
	return out
}

// Rename renames columns according to mapping (old name to new name).
// Mapping keys that are not columns are ignored. A rename that would produce
// two columns with the same name is an error.
func (t *Table) Rename(mapping map[string]string) (*Table, error) {
	out := t.clone()
	for j, c := range out.columns {
		if to, ok := mapping[c]; ok {
			out.columns[j] = to
		}
	}
	if err := out.reindex(); err != nil {
		return nil, fmt.Errorf("rename: %w", err)
	}
	return out, nil
}

// MapColumn replaces every value of a column with fn(value).
func (t *Table) MapColumn(name string, fn func(any) (any, error)) (*Table, error) {
	j, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("missing column %q", name)
	}
	out := t.clone()
	for i, row := range out.rows {
		v, err := fn(row[j])
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", name, i, err)
		}
		row[j] = v
	}
	return out, nil
}

// AddColumn appends a column whose value for each row is fn(row index).
func (t *Table) AddColumn(name string, fn func(i int) (any, error)) (*Table, error) {
	if t.HasColumn(name) {
		return nil, fmt.Errorf("column %q already exists", name)
	}
	out := t.clone()
	out.columns = append(out.columns, name)
	out.index[name] = len(out.columns) - 1
	for i := range out.rows {
		v, err := fn(i)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", name, i, err)
		}
		out.rows[i] = append(out.rows[i], v)
	}
	return out, nil
}

func (t *Table) clone() *Table {
	out := &Table{
		columns: slices.Clone(t.columns),
		index:   make(map[string]int, len(t.index)),
		rows:    make([][]any, len(t.rows)),
	}
	for k, v := range t.index {
		out.index[k] = v
	}
	for i, row := range t.rows {
		out.rows[i] = slices.Clip(slices.Clone(row))
	}
	return out
}
