package data

import (
	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/memmap"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// Array is a bounded list of fixed-size items.
type Array struct {
	reference.Reference

	rt       graph.Runtime
	itemSize int
	capacity int
	count    int
	items    []byte
}

// NewArray creates an empty array holding up to capacity items.
func NewArray(rt graph.Runtime, itemSize, capacity int) (*Array, error) {
	if itemSize <= 0 || capacity <= 0 {
		return nil, status.Errorf(status.InvalidParameters, "array of %d items of %d bytes", capacity, itemSize)
	}
	a := &Array{rt: rt, itemSize: itemSize, capacity: capacity, items: make([]byte, itemSize*capacity)}
	if err := register(rt, a, reference.TypeArray); err != nil {
		return nil, err
	}
	return a, nil
}

// NewVirtualArray creates a graph-private array. A zero item size or
// capacity is filled in when the graph is verified.
func NewVirtualArray(g *graph.Graph, itemSize, capacity int) (*Array, error) {
	if itemSize < 0 || capacity < 0 {
		return nil, status.Errorf(status.InvalidParameters, "array of %d items of %d bytes", capacity, itemSize)
	}
	a := &Array{itemSize: itemSize, capacity: capacity}
	if err := registerVirtual(g, a, reference.TypeArray); err != nil {
		return nil, err
	}
	a.rt = g.Runtime()
	return a, nil
}

func (a *Array) Release() error { return Release(a) }

func (a *Array) ItemSize() int {
	a.Lock()
	defer a.Unlock()
	return a.itemSize
}

func (a *Array) Capacity() int {
	a.Lock()
	defer a.Unlock()
	return a.capacity
}

// Len returns the number of items in the array.
func (a *Array) Len() int {
	a.Lock()
	defer a.Unlock()
	return a.count
}

// Stride returns the byte distance between items.
func (a *Array) Stride() int { return a.ItemSize() }

// Items returns the bytes of the items currently in the array.
func (a *Array) Items() []byte {
	a.Lock()
	defer a.Unlock()
	return a.items[:a.count*a.itemSize]
}

// Append adds the items packed in src.
func (a *Array) Append(src []byte) error {
	a.Lock()
	defer a.Unlock()
	if a.itemSize == 0 || len(src)%a.itemSize != 0 {
		return status.Errorf(status.InvalidParameters, "%d bytes is not a whole number of %d byte items", len(src), a.itemSize)
	}
	n := len(src) / a.itemSize
	if a.count+n > a.capacity {
		return status.Errorf(status.InvalidParameters, "array holds %d of %d items, cannot add %d", a.count, a.capacity, n)
	}
	copy(a.items[a.count*a.itemSize:], src)
	a.count += n
	return nil
}

// Truncate shortens the array to n items.
func (a *Array) Truncate(n int) error {
	a.Lock()
	defer a.Unlock()
	if n < 0 || n > a.count {
		return status.Errorf(status.InvalidParameters, "truncate %d items to %d", a.count, n)
	}
	a.count = n
	return nil
}

func (a *Array) Meta() graph.Meta {
	a.Lock()
	defer a.Unlock()
	return graph.Meta{Type: reference.TypeArray, ItemSize: a.itemSize, Capacity: a.capacity}
}

func (a *Array) Resolve(m graph.Meta) error {
	a.Lock()
	defer a.Unlock()
	if err := fill(&a.itemSize, m.ItemSize, "item size"); err != nil {
		return err
	}
	if err := fill(&a.capacity, m.Capacity, "capacity"); err != nil {
		return err
	}
	if a.itemSize == 0 || a.capacity == 0 {
		return status.Errorf(status.InvalidDimension, "virtual array shape unresolved")
	}
	if size := a.itemSize * a.capacity; len(a.items) != size {
		a.items = make([]byte, size)
		a.count = 0
	}
	return nil
}

type itemRange struct{ start, end int }

// MapRange maps items [start,end) for host access. Changes are written back
// by UnmapRange when usage writes.
func (a *Array) MapRange(start, end int, usage memmap.Usage) (memmap.ID, []byte, error) {
	if !a.Valid() {
		return memmap.ID{}, nil, status.Errorf(status.InvalidReference, "access to invalid array")
	}
	if !usage.Valid() {
		return memmap.ID{}, nil, status.Errorf(status.InvalidParameters, "range access with %s", usage)
	}
	if !a.IsAccessible() {
		return memmap.ID{}, nil, status.Errorf(status.InvalidReference, "%s memory is not accessible", a)
	}
	a.Lock()
	if start < 0 || end > a.count || start >= end {
		count := a.count
		a.Unlock()
		return memmap.ID{}, nil, status.Errorf(status.InvalidParameters, "range [%d,%d) outside %d items", start, end, count)
	}
	buf := make([]byte, (end-start)*a.itemSize)
	if usage.Reads() {
		copy(buf, a.items[start*a.itemSize:end*a.itemSize])
	}
	a.Unlock()

	id, err := a.rt.Maps().Map(&a.Reference, usage, buf, itemRange{start: start, end: end})
	if err != nil {
		return memmap.ID{}, nil, err
	}
	return id, buf, nil
}

// UnmapRange closes a map opened by MapRange on this array.
func (a *Array) UnmapRange(id memmap.ID) error {
	maps := a.rt.Maps()
	mp, ok := maps.Lookup(id)
	if !ok || mp.Ref != &a.Reference {
		return status.Errorf(status.InvalidParameters, "map id %s does not belong to %s", id, a)
	}
	if _, err := maps.Unmap(id); err != nil {
		return err
	}
	if mp.Usage.Writes() {
		r := mp.Extra.(itemRange)
		a.Lock()
		copy(a.items[r.start*a.itemSize:r.end*a.itemSize], mp.Buffer)
		a.Unlock()
	}
	return nil
}
