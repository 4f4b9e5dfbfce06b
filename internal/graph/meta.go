package graph

import (
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// Meta is the shape and format an output validator promises to produce.
// Zero-valued fields are unconstrained.
type Meta struct {
	Type     reference.Type
	Width    int
	Height   int
	Format   string
	ItemSize int
	Capacity int
	Rows     int
	Cols     int
	Bins     int
}

// Check reports the first way actual fails to satisfy m.
func (m Meta) Check(actual Meta) error {
	if m.Type != reference.TypeInvalid && m.Type != actual.Type {
		return status.Errorf(status.InvalidType, "expected %s, got %s", m.Type, actual.Type)
	}
	if m.Format != "" && m.Format != actual.Format {
		return status.Errorf(status.InvalidFormat, "expected format %s, got %s", m.Format, actual.Format)
	}
	dims := []struct {
		name       string
		want, have int
	}{
		{"width", m.Width, actual.Width},
		{"height", m.Height, actual.Height},
		{"item size", m.ItemSize, actual.ItemSize},
		{"capacity", m.Capacity, actual.Capacity},
		{"rows", m.Rows, actual.Rows},
		{"cols", m.Cols, actual.Cols},
		{"bins", m.Bins, actual.Bins},
	}
	for _, d := range dims {
		if d.want != 0 && d.want != d.have {
			return status.Errorf(status.InvalidDimension, "expected %s %d, got %d", d.name, d.want, d.have)
		}
	}
	return nil
}

// Shaped is implemented by data objects that can report, and for virtual
// objects resolve, their shape.
type Shaped interface {
	reference.Object
	Meta() Meta
	// Resolve fills unset fields of a virtual object from m. Fields already
	// set must agree with m.
	Resolve(m Meta) error
}
