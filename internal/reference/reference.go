package reference

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/vxgrid/internal/slots"
	"github.com/specialistvlad/vxgrid/internal/status"
)

const (
	magicLive uint32 = 0x0F00D1E5
	magicDead uint32 = 0xDEADBEEF
)

// Object is anything that embeds a Reference.
type Object interface {
	Base() *Reference
}

// Reference is the common record. The zero value is not valid until Init or
// Table.Add is called.
type Reference struct {
	mu sync.Mutex

	cmu      sync.Mutex
	external int
	internal int
	name     string

	typ        Type
	magic      atomic.Uint32
	context    *Reference
	scope      *Reference
	virtual    bool
	accessible atomic.Bool

	table      *Table
	handle     slots.Handle
	destructor func()
}

// Base lets a bare *Reference satisfy Object.
func (r *Reference) Base() *Reference { return r }

// Init marks r as a live object of type typ owned by context. It does not
// touch the counts and does not register r in any table.
func (r *Reference) Init(typ Type, context, scope *Reference) {
	r.typ = typ
	r.context = context
	r.scope = scope
	r.accessible.Store(true)
	r.magic.Store(magicLive)
}

// Valid reports whether r is non-nil and has not been destroyed.
func (r *Reference) Valid() bool {
	return r != nil && r.magic.Load() == magicLive
}

// ValidAs reports whether r is valid and of type typ.
func (r *Reference) ValidAs(typ Type) bool {
	return r.Valid() && r.typ == typ
}

func (r *Reference) Type() Type               { return r.typ }
func (r *Reference) Context() *Reference      { return r.context }
func (r *Reference) Scope() *Reference        { return r.scope }
func (r *Reference) Handle() slots.Handle     { return r.handle }
func (r *Reference) IsVirtual() bool          { return r.virtual }
func (r *Reference) IsAccessible() bool       { return r.accessible.Load() }
func (r *Reference) SetAccessible(on bool)    { r.accessible.Store(on) }
func (r *Reference) OnDestroy(destroy func()) { r.destructor = destroy }

// MarkVirtual flags r as graph-private. Virtual objects start inaccessible.
func (r *Reference) MarkVirtual() {
	r.virtual = true
	r.accessible.Store(false)
}

// Lock and Unlock guard the object's own mutable fields. They are never held
// together with a table lock.
func (r *Reference) Lock()   { r.mu.Lock() }
func (r *Reference) Unlock() { r.mu.Unlock() }

func (r *Reference) Name() string {
	r.cmu.Lock()
	defer r.cmu.Unlock()
	return r.name
}

func (r *Reference) SetName(name string) {
	r.cmu.Lock()
	r.name = name
	r.cmu.Unlock()
}

// Increment bumps the selected count and returns the new total.
func (r *Reference) Increment(kind Kind) int {
	r.cmu.Lock()
	defer r.cmu.Unlock()
	if kind == Internal {
		r.internal++
	} else {
		r.external++
	}
	return r.external + r.internal
}

// Decrement lowers the selected count and returns the new total. A count is
// never allowed below zero.
func (r *Reference) Decrement(kind Kind) (int, error) {
	r.cmu.Lock()
	defer r.cmu.Unlock()
	c := &r.external
	if kind == Internal {
		c = &r.internal
	}
	if *c == 0 {
		return r.external + r.internal, status.Errorf(status.InvalidReference,
			"%s has no %s references left", r.describe(), kind)
	}
	*c--
	return r.external + r.internal, nil
}

// Counts returns the external and internal counts.
func (r *Reference) Counts() (external, internal int) {
	r.cmu.Lock()
	defer r.cmu.Unlock()
	return r.external, r.internal
}

func (r *Reference) String() string {
	r.cmu.Lock()
	defer r.cmu.Unlock()
	return r.describe()
}

func (r *Reference) describe() string {
	if r.name != "" {
		return fmt.Sprintf("%s %s(%s)", r.typ, r.handle, r.name)
	}
	return fmt.Sprintf("%s %s", r.typ, r.handle)
}

// Release drops one reference of the given kind from obj. When the last
// reference goes, obj leaves its table and its destructor runs.
func Release(obj Object, kind Kind) error {
	if obj == nil {
		return status.Errorf(status.InvalidReference, "release of nil object")
	}
	r := obj.Base()
	if !r.Valid() {
		return status.Errorf(status.InvalidReference, "release of destroyed object")
	}
	total, err := r.Decrement(kind)
	if err != nil {
		return err
	}
	if total == 0 {
		r.destroy()
	}
	return nil
}

// ForceRelease zeroes both counts and destroys obj regardless of holders.
func ForceRelease(obj Object) {
	r := obj.Base()
	r.cmu.Lock()
	r.external, r.internal = 0, 0
	r.cmu.Unlock()
	r.destroy()
}

func (r *Reference) destroy() {
	if !r.magic.CompareAndSwap(magicLive, magicDead) {
		return
	}
	if r.table != nil {
		_, _ = r.table.slots.Remove(r.handle)
	}
	if r.destructor != nil {
		r.destructor()
	}
}
