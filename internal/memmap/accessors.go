package memmap

import (
	"context"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/slots"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// Accessor is one open buffer checkout.
type Accessor struct {
	Ref    *reference.Reference
	Usage  Usage
	Buffer []byte
	// Allocated is set when the runtime, not the caller, supplied Buffer.
	Allocated bool
	Extra     any
}

// Accessors is the accessor ledger.
type Accessors struct {
	table *slots.Table[*Accessor]
}

func NewAccessors(capacity int) *Accessors {
	return &Accessors{table: slots.New[*Accessor](capacity)}
}

// Add opens an accessor on ref. When buf is nil a buffer of size bytes is
// allocated and owned by the entry.
func (a *Accessors) Add(ref *reference.Reference, usage Usage, buf []byte, size int, extra any) (ID, []byte, error) {
	if !ref.Valid() {
		return ID{}, nil, status.Errorf(status.InvalidReference, "access of invalid object")
	}
	if !usage.Valid() {
		return ID{}, nil, status.Errorf(status.InvalidParameters, "access with %s", usage)
	}
	acc := &Accessor{Ref: ref, Usage: usage, Buffer: buf, Extra: extra}
	if buf == nil {
		if size < 0 {
			return ID{}, nil, status.Errorf(status.InvalidParameters, "negative buffer size %d", size)
		}
		acc.Buffer = make([]byte, size)
		acc.Allocated = true
	}
	id, err := a.table.Insert(acc)
	if err != nil {
		return ID{}, nil, status.Wrap(status.NoResources, err, "accessor table full")
	}
	return id, acc.Buffer, nil
}

// Find returns the open accessor for id.
func (a *Accessors) Find(id ID) (*Accessor, bool) { return a.table.Get(id) }

// Remove closes the accessor for id and hands the entry back so the caller
// can write the buffer back to the object.
func (a *Accessors) Remove(id ID) (*Accessor, error) {
	acc, err := a.table.Remove(id)
	if err != nil {
		return nil, status.Errorf(status.InvalidParameters, "release of unknown accessor %s", id)
	}
	return acc, nil
}

// Open returns the number of open accessors.
func (a *Accessors) Open() int { return a.table.Len() }

// ForceClose closes every open accessor, logging each one as an error.
func (a *Accessors) ForceClose(ctx context.Context) int {
	logger := ctxlog.FromContext(ctx)
	closed := 0
	a.table.Range(func(id ID, acc *Accessor) bool {
		if _, err := a.table.Remove(id); err == nil {
			logger.Error("Accessor still open at teardown.", "accessor_id", id.String(), "object", acc.Ref.String(), "allocated", acc.Allocated)
			acc.Buffer = nil
			closed++
		}
		return true
	})
	return closed
}
