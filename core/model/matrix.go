package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a dense matrix whose rows and columns are addressed by name.
// A nil *Matrix reads as all zeros.
type Matrix struct {
	Rows []string
	Cols []string

	data   *mat.Dense
	rowIdx map[string]int
	colIdx map[string]int
}

// NewMatrix returns a zero matrix over the given row and column names.
func NewMatrix(rows, cols []string) *Matrix {
	m := &Matrix{
		Rows:   append([]string(nil), rows...),
		Cols:   append([]string(nil), cols...),
		rowIdx: make(map[string]int, len(rows)),
		colIdx: make(map[string]int, len(cols)),
	}
	for i, r := range m.Rows {
		m.rowIdx[r] = i
	}
	for j, c := range m.Cols {
		m.colIdx[c] = j
	}
	if len(rows) > 0 && len(cols) > 0 {
		m.data = mat.NewDense(len(rows), len(cols), nil)
	}
	return m
}

// NewMatrixFromDense wraps a gonum matrix whose shape must match the names.
func NewMatrixFromDense(rows, cols []string, d mat.Matrix) (*Matrix, error) {
	m := NewMatrix(rows, cols)
	if d == nil {
		return m, nil
	}
	r, c := d.Dims()
	if r != len(rows) || c != len(cols) {
		return nil, fmt.Errorf("%w: matrix is %dx%d, names are %dx%d", ErrInvalidBuilding, r, c, len(rows), len(cols))
	}
	if m.data != nil {
		m.data.Copy(d)
	}
	return m, nil
}

// Set assigns the entry at (row, col).
func (m *Matrix) Set(row, col string, v float64) error {
	i, ok := m.rowIdx[row]
	if !ok {
		return fmt.Errorf("unknown matrix row %q", row)
	}
	j, ok := m.colIdx[col]
	if !ok {
		return fmt.Errorf("unknown matrix column %q", col)
	}
	m.data.Set(i, j, v)
	return nil
}

// At returns the entry at (row, col). Unknown names read as zero.
func (m *Matrix) At(row, col string) float64 {
	if m == nil || m.data == nil {
		return 0
	}
	i, ok := m.rowIdx[row]
	if !ok {
		return 0
	}
	j, ok := m.colIdx[col]
	if !ok {
		return 0
	}
	return m.data.At(i, j)
}

// Dense exposes the underlying matrix, nil when a dimension is empty.
func (m *Matrix) Dense() *mat.Dense {
	if m == nil {
		return nil
	}
	return m.data
}

// within checks that every row and column name of m belongs to the given
// sets. Names absent from m read as zero.
func (m *Matrix) within(rows, cols []string) error {
	if m == nil {
		return nil
	}
	if err := subset(m.Rows, rows); err != nil {
		return fmt.Errorf("row %w", err)
	}
	if err := subset(m.Cols, cols); err != nil {
		return fmt.Errorf("column %w", err)
	}
	return nil
}

func subset(names, allowed []string) error {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	for _, n := range names {
		if _, ok := set[n]; !ok {
			return fmt.Errorf("%q is not a known name", n)
		}
	}
	return nil
}
