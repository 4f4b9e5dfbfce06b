package data

import (
	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// Distribution is a histogram of bins equal-width buckets covering
// [offset, offset+span).
type Distribution struct {
	reference.Reference

	bins   int
	offset int
	span   int
	counts []uint32
}

func NewDistribution(rt graph.Runtime, bins, offset, span int) (*Distribution, error) {
	if bins <= 0 || span <= 0 || bins > span {
		return nil, status.Errorf(status.InvalidParameters, "distribution of %d bins over %d values", bins, span)
	}
	d := &Distribution{bins: bins, offset: offset, span: span, counts: make([]uint32, bins)}
	if err := register(rt, d, reference.TypeDistribution); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Distribution) Release() error { return Release(d) }
func (d *Distribution) Bins() int      { return d.bins }
func (d *Distribution) Offset() int    { return d.offset }
func (d *Distribution) Range() int     { return d.span }

// Bin returns the bucket of value, or false if value is out of range.
func (d *Distribution) Bin(value int) (int, bool) {
	if value < d.offset || value >= d.offset+d.span {
		return 0, false
	}
	return (value - d.offset) * d.bins / d.span, true
}

// Add counts value; out-of-range values are ignored.
func (d *Distribution) Add(value int) {
	if b, ok := d.Bin(value); ok {
		d.Lock()
		d.counts[b]++
		d.Unlock()
	}
}

func (d *Distribution) Counts() []uint32 {
	d.Lock()
	defer d.Unlock()
	return append([]uint32(nil), d.counts...)
}

// SetCounts replaces every bucket count; len(counts) must equal Bins.
func (d *Distribution) SetCounts(counts []uint32) error {
	if len(counts) != d.bins {
		return status.Errorf(status.InvalidParameters, "%d counts for %d bins", len(counts), d.bins)
	}
	d.Lock()
	copy(d.counts, counts)
	d.Unlock()
	return nil
}

func (d *Distribution) Reset() {
	d.Lock()
	clear(d.counts)
	d.Unlock()
}

func (d *Distribution) Meta() graph.Meta {
	return graph.Meta{Type: reference.TypeDistribution, Bins: d.bins}
}

func (d *Distribution) Resolve(meta graph.Meta) error { return meta.Check(d.Meta()) }
