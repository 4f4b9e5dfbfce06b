package target

import (
	"context"

	"github.com/specialistvlad/vxgrid/internal/graph"
)

// Module is the behavior behind a Target.
type Module interface {
	Name() string
	// Init prepares the backend and registers its kernels on t.
	Init(ctx context.Context, t *Target) error
	Deinit(ctx context.Context, t *Target) error
	// Process runs nodes in order and reports whether the run may continue.
	Process(ctx context.Context, t *Target, nodes []*graph.Node) graph.Action
	Verify(ctx context.Context, t *Target, n *graph.Node) error
}
