package memmap

import (
	"context"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/slots"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// ID is the opaque identifier handed out for a map or accessor entry.
type ID = slots.Handle

// Mapping is one open memory map.
type Mapping struct {
	Ref    *reference.Reference
	Usage  Usage
	Buffer []byte
	// Extra holds owner-specific bookkeeping such as a patch rectangle.
	Extra any
}

// Maps is the memory-map ledger.
type Maps struct {
	table *slots.Table[*Mapping]
}

func NewMaps(capacity int) *Maps {
	return &Maps{table: slots.New[*Mapping](capacity)}
}

// Map records an open mapping of ref.
func (m *Maps) Map(ref *reference.Reference, usage Usage, buf []byte, extra any) (ID, error) {
	if !ref.Valid() {
		return ID{}, status.Errorf(status.InvalidReference, "map of invalid object")
	}
	if !usage.Valid() {
		return ID{}, status.Errorf(status.InvalidParameters, "map with %s", usage)
	}
	id, err := m.table.Insert(&Mapping{Ref: ref, Usage: usage, Buffer: buf, Extra: extra})
	if err != nil {
		return ID{}, status.Wrap(status.NoResources, err, "memory map table full")
	}
	return id, nil
}

// Lookup returns the open mapping for id.
func (m *Maps) Lookup(id ID) (*Mapping, bool) { return m.table.Get(id) }

// Unmap closes the mapping for id and returns it so the owner can write back.
func (m *Maps) Unmap(id ID) (*Mapping, error) {
	mp, err := m.table.Remove(id)
	if err != nil {
		return nil, status.Errorf(status.InvalidParameters, "unmap of unknown map id %s", id)
	}
	return mp, nil
}

// Open returns the number of open mappings.
func (m *Maps) Open() int { return m.table.Len() }

// ForceClose closes every open mapping, logging each one as an error, and
// returns how many were closed.
func (m *Maps) ForceClose(ctx context.Context) int {
	logger := ctxlog.FromContext(ctx)
	closed := 0
	m.table.Range(func(id ID, mp *Mapping) bool {
		if _, err := m.table.Remove(id); err == nil {
			logger.Error("Memory map still open at teardown.", "map_id", id.String(), "object", mp.Ref.String(), "usage", mp.Usage.String())
			closed++
		}
		return true
	})
	return closed
}
