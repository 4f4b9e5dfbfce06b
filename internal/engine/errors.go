package engine

import (
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// ErrorObject stands for a failed creation. The context keeps one per status
// and hands it out where a caller wants an object rather than an error.
type ErrorObject struct {
	reference.Reference
	status status.Status
}

// Status returns the status the object stands for.
func (e *ErrorObject) Status() status.Status { return e.status }

func (c *Context) createErrorObjects() error {
	for _, s := range status.All() {
		e := &ErrorObject{status: s}
		if err := c.objects.Add(e, reference.TypeError, c.Base(), nil, reference.Internal); err != nil {
			return err
		}
		e.SetName(s.String())
		c.errors[s] = e
	}
	return nil
}

// ErrorObject returns the context's error object for s, or nil for SUCCESS
// and unknown codes.
func (c *Context) ErrorObject(s status.Status) *ErrorObject {
	return c.errors[s]
}

// StatusOf reports the status carried by obj: the code of an error object,
// INVALID_REFERENCE for nil or destroyed objects, SUCCESS otherwise.
func StatusOf(obj reference.Object) status.Status {
	if obj == nil {
		return status.InvalidReference
	}
	if e, ok := obj.(*ErrorObject); ok {
		if e == nil || !e.Valid() {
			return status.InvalidReference
		}
		return e.status
	}
	r := obj.Base()
	if r == nil || !r.Valid() {
		return status.InvalidReference
	}
	return status.Success
}
