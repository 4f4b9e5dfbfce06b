package data

import (
	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// Matrix is a row-major matrix of float32.
type Matrix struct {
	reference.Reference

	rows, cols int
	values     []float32
}

func NewMatrix(rt graph.Runtime, rows, cols int) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, status.Errorf(status.InvalidDimension, "matrix %dx%d", rows, cols)
	}
	m := &Matrix{rows: rows, cols: cols, values: make([]float32, rows*cols)}
	if err := register(rt, m, reference.TypeMatrix); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Matrix) Release() error { return Release(m) }
func (m *Matrix) Rows() int      { return m.rows }
func (m *Matrix) Cols() int      { return m.cols }

// Values returns a copy of the matrix contents.
func (m *Matrix) Values() []float32 {
	m.Lock()
	defer m.Unlock()
	return append([]float32(nil), m.values...)
}

// SetValues replaces the matrix contents; len(v) must be rows*cols.
func (m *Matrix) SetValues(v []float32) error {
	if len(v) != m.rows*m.cols {
		return status.Errorf(status.InvalidParameters, "%d values for a %dx%d matrix", len(v), m.rows, m.cols)
	}
	m.Lock()
	copy(m.values, v)
	m.Unlock()
	return nil
}

func (m *Matrix) Meta() graph.Meta {
	return graph.Meta{Type: reference.TypeMatrix, Rows: m.rows, Cols: m.cols}
}

// Resolve only checks: matrices are never virtual.
func (m *Matrix) Resolve(meta graph.Meta) error { return meta.Check(m.Meta()) }
