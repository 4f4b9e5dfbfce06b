package target

import (
	"context"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
	"github.com/specialistvlad/vxgrid/internal/graph"
)

// ProcessNodes is the sequential run loop shared by modules. Each node is
// executed through exec (the kernel body when exec is nil). A failing node
// abandons the run at once; a succeeding node's callback decides whether the
// run continues.
func ProcessNodes(ctx context.Context, t *Target, nodes []*graph.Node, exec graph.ExecuteFunc) graph.Action {
	logger := ctxlog.FromContext(ctx).With("target", t.Name())
	for i, n := range nodes {
		logger.Debug("Executing kernel.", "kernel", n.Kernel().Name(), "enum", n.Kernel().Enum(), "index", i)
		if err := n.Execute(ctx, exec); err != nil {
			logger.Warn("Kernel failed, abandoning run.", "kernel", n.Kernel().Name(), "error", err)
			return graph.ActionAbandon
		}
		if cb := n.Callback(); cb != nil {
			if action := cb(ctx, n); action != graph.ActionContinue {
				logger.Debug("Node callback abandoned the run.", "kernel", n.Kernel().Name())
				return graph.ActionAbandon
			}
		}
	}
	return graph.ActionContinue
}
