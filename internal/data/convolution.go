package data

import (
	"math/bits"

	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// Convolution is an odd-sized int16 kernel with a power-of-two scale.
type Convolution struct {
	reference.Reference

	rows, cols int
	scale      uint32
	coeffs     []int16
}

func NewConvolution(rt graph.Runtime, rows, cols int) (*Convolution, error) {
	if rows < 3 || cols < 3 || rows%2 == 0 || cols%2 == 0 {
		return nil, status.Errorf(status.InvalidDimension, "convolution %dx%d must be odd and at least 3x3", rows, cols)
	}
	c := &Convolution{rows: rows, cols: cols, scale: 1, coeffs: make([]int16, rows*cols)}
	if err := register(rt, c, reference.TypeConvolution); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Convolution) Release() error { return Release(c) }
func (c *Convolution) Rows() int      { return c.rows }
func (c *Convolution) Cols() int      { return c.cols }

func (c *Convolution) Scale() uint32 {
	c.Lock()
	defer c.Unlock()
	return c.scale
}

// SetScale sets the divisor applied to every sum. It must be a power of two.
func (c *Convolution) SetScale(scale uint32) error {
	if bits.OnesCount32(scale) != 1 {
		return status.Errorf(status.InvalidValue, "convolution scale %d is not a power of two", scale)
	}
	c.Lock()
	c.scale = scale
	c.Unlock()
	return nil
}

func (c *Convolution) Coefficients() []int16 {
	c.Lock()
	defer c.Unlock()
	return append([]int16(nil), c.coeffs...)
}

func (c *Convolution) SetCoefficients(v []int16) error {
	if len(v) != c.rows*c.cols {
		return status.Errorf(status.InvalidParameters, "%d coefficients for a %dx%d convolution", len(v), c.rows, c.cols)
	}
	c.Lock()
	copy(c.coeffs, v)
	c.Unlock()
	return nil
}

func (c *Convolution) Meta() graph.Meta {
	return graph.Meta{Type: reference.TypeConvolution, Rows: c.rows, Cols: c.cols}
}

func (c *Convolution) Resolve(meta graph.Meta) error { return meta.Check(c.Meta()) }
