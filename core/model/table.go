package model

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Table is a timestep-indexed table of named scalar series.
// Rows follow Timesteps, columns follow Columns.
type Table struct {
	Timesteps []time.Time
	Columns   []string

	data   *mat.Dense
	rows   map[int64]int
	colIdx map[string]int
}

// NewTable returns a zero-filled table with one row per timestep and one
// column per name.
func NewTable(timesteps []time.Time, columns []string) *Table {
	t := &Table{
		Timesteps: append([]time.Time(nil), timesteps...),
		Columns:   append([]string(nil), columns...),
		rows:      make(map[int64]int, len(timesteps)),
		colIdx:    make(map[string]int, len(columns)),
	}
	for i, ts := range t.Timesteps {
		t.rows[ts.UnixNano()] = i
	}
	for j, c := range t.Columns {
		t.colIdx[c] = j
	}
	// mat.NewDense panics on empty dimensions.
	if len(timesteps) > 0 && len(columns) > 0 {
		t.data = mat.NewDense(len(timesteps), len(columns), nil)
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Timesteps) }

// Row returns the row index of ts.
func (t *Table) Row(ts time.Time) (int, bool) {
	i, ok := t.rows[ts.UnixNano()]
	return i, ok
}

// Column returns the column index of name.
func (t *Table) Column(name string) (int, bool) {
	j, ok := t.colIdx[name]
	return j, ok
}

// Has reports whether the table carries a column called name.
func (t *Table) Has(name string) bool {
	_, ok := t.colIdx[name]
	return ok
}

// At returns the value at (ts, column). The boolean is false when either key
// is unknown.
func (t *Table) At(ts time.Time, column string) (float64, bool) {
	i, ok := t.Row(ts)
	if !ok {
		return 0, false
	}
	j, ok := t.Column(column)
	if !ok {
		return 0, false
	}
	return t.data.At(i, j), true
}

// AtIndex returns the value at row i, column j.
func (t *Table) AtIndex(i, j int) float64 { return t.data.At(i, j) }

// SetIndex sets the value at row i, column j.
func (t *Table) SetIndex(i, j int, v float64) { t.data.Set(i, j, v) }

// Set sets the value at (ts, column).
func (t *Table) Set(ts time.Time, column string, v float64) error {
	i, ok := t.Row(ts)
	if !ok {
		return fmt.Errorf("timestep %s not in table", ts.Format(time.RFC3339))
	}
	j, ok := t.Column(column)
	if !ok {
		return fmt.Errorf("column %q not in table", column)
	}
	t.data.Set(i, j, v)
	return nil
}

// Series returns a copy of one column.
func (t *Table) Series(column string) ([]float64, bool) {
	j, ok := t.Column(column)
	if !ok {
		return nil, false
	}
	out := make([]float64, t.Len())
	for i := range out {
		out[i] = t.data.At(i, j)
	}
	return out, true
}

// Copy returns a deep copy. Mutating the copy never affects t.
func (t *Table) Copy() *Table {
	cp := NewTable(t.Timesteps, t.Columns)
	if t.data != nil {
		cp.data.Copy(t.data)
	}
	return cp
}

// Covers reports the first timestep or column of the given sets missing from
// the table, or an empty string when everything is present.
func (t *Table) Covers(timesteps []time.Time, columns []string) string {
	for _, ts := range timesteps {
		if _, ok := t.Row(ts); !ok {
			return "timestep " + ts.Format(time.RFC3339)
		}
	}
	for _, c := range columns {
		if !t.Has(c) {
			return "column " + c
		}
	}
	return ""
}
