package reference

import (
	"fmt"

	"github.com/specialistvlad/vxgrid/internal/slots"
)

// Table is the context-wide object table used for enumeration and leak
// detection.
type Table struct {
	slots *slots.Table[Object]
}

// NewTable creates an object table holding at most capacity objects.
func NewTable(capacity int) *Table {
	return &Table{slots: slots.New[Object](capacity)}
}

// Add initializes obj's Reference, inserts it, and gives it one reference of
// the given kind. A full table yields NO_RESOURCES and leaves obj invalid.
func (t *Table) Add(obj Object, typ Type, context, scope *Reference, kind Kind) error {
	r := obj.Base()
	h, err := t.slots.Insert(obj)
	if err != nil {
		return fmt.Errorf("register %s: %w", typ, err)
	}
	r.Init(typ, context, scope)
	r.table = t
	r.handle = h
	r.Increment(kind)
	return nil
}

// Len returns the number of live objects.
func (t *Table) Len() int { return t.slots.Len() }

// Cap returns the table capacity.
func (t *Table) Cap() int { return t.slots.Cap() }

// Lookup returns the object registered under h.
func (t *Table) Lookup(h slots.Handle) (Object, bool) {
	return t.slots.Get(h)
}

// Objects returns a snapshot of the live objects in slot order.
func (t *Table) Objects() []Object {
	var out []Object
	t.slots.Range(func(_ slots.Handle, o Object) bool {
		out = append(out, o)
		return true
	})
	return out
}
