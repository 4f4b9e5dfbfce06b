package graph

import (
	"context"

	"github.com/specialistvlad/vxgrid/internal/memmap"
	"github.com/specialistvlad/vxgrid/internal/reference"
)

// Action is the per-node outcome that decides whether a run continues.
type Action int

const (
	ActionContinue Action = iota
	ActionAbandon
)

func (a Action) String() string {
	if a == ActionAbandon {
		return "abandon"
	}
	return "continue"
}

// Backend executes runs of nodes on one target.
type Backend interface {
	Name() string
	// Process executes nodes in order and stops at the first failure.
	Process(ctx context.Context, nodes []*Node) Action
	// Verify lets the target reject a node it cannot run.
	Verify(ctx context.Context, n *Node) error
}

// Runtime is what graphs and data objects need from their owning context.
type Runtime interface {
	// Base is the context's own reference, recorded as every object's owner.
	Base() *reference.Reference
	Objects() *reference.Table
	Maps() *memmap.Maps
	Accessors() *memmap.Accessors
	// Backend returns the target loaded at index affinity.
	Backend(affinity int) (Backend, error)
	PerfEnabled() bool
}
