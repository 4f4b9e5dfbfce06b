package data

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// Scalar holds a single number, string or bool. Its type is fixed at
// creation.
type Scalar struct {
	reference.Reference

	typ   cty.Type
	value cty.Value
}

// NewScalar creates a scalar holding v. v must be a known, non-null
// primitive value.
func NewScalar(rt graph.Runtime, v cty.Value) (*Scalar, error) {
	if err := checkScalar(v); err != nil {
		return nil, err
	}
	s := &Scalar{typ: v.Type(), value: v}
	if err := register(rt, s, reference.TypeScalar); err != nil {
		return nil, err
	}
	return s, nil
}

func checkScalar(v cty.Value) error {
	if v.IsNull() || !v.IsKnown() {
		return status.Errorf(status.InvalidValue, "scalar value must be known and non-null")
	}
	if !v.Type().IsPrimitiveType() {
		return status.Errorf(status.InvalidType, "scalar of %s", v.Type().FriendlyName())
	}
	return nil
}

func (s *Scalar) Release() error { return Release(s) }

// CtyType returns the type fixed at creation.
func (s *Scalar) CtyType() cty.Type { return s.typ }

func (s *Scalar) Value() cty.Value {
	s.Lock()
	defer s.Unlock()
	return s.value
}

// SetValue replaces the value. The new value must have the scalar's type.
func (s *Scalar) SetValue(v cty.Value) error {
	if err := checkScalar(v); err != nil {
		return err
	}
	if !v.Type().Equals(s.typ) {
		return status.Errorf(status.InvalidType, "%s scalar cannot hold %s", s.typ.FriendlyName(), v.Type().FriendlyName())
	}
	s.Lock()
	s.value = v
	s.Unlock()
	return nil
}

// Get decodes the value into the Go value pointed to by dst.
func (s *Scalar) Get(dst any) error {
	if err := gocty.FromCtyValue(s.Value(), dst); err != nil {
		return status.Wrap(status.InvalidType, err, "scalar read")
	}
	return nil
}

// Set encodes the Go value v with the scalar's type.
func (s *Scalar) Set(v any) error {
	cv, err := gocty.ToCtyValue(v, s.typ)
	if err != nil {
		return status.Wrap(status.InvalidType, err, fmt.Sprintf("scalar write of %T", v))
	}
	return s.SetValue(cv)
}

func (s *Scalar) Meta() graph.Meta {
	return graph.Meta{Type: reference.TypeScalar, Format: s.typ.FriendlyName()}
}

func (s *Scalar) Resolve(meta graph.Meta) error { return meta.Check(s.Meta()) }
