package graph

import (
	"context"
	"fmt"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// AbandonedError is returned when a run stops early. It matches
// status.ErrGraphAbandoned and unwraps to the failing node's error, so
// status.Of reports the status the node failed with.
type AbandonedError struct {
	Index int
	Node  string
	Err   error
}

func (e *AbandonedError) Error() string {
	return fmt.Sprintf("graph abandoned at node %d (%s): %v", e.Index, e.Node, e.Err)
}

func (e *AbandonedError) Unwrap() error { return e.Err }

func (e *AbandonedError) Is(target error) bool { return target == status.ErrGraphAbandoned }

// Process executes every node in list order, verifying the graph first if
// needed. Each call re-executes the whole graph.
func (g *Graph) Process(ctx context.Context) error {
	if !g.ValidAs(reference.TypeGraph) {
		return status.Errorf(status.InvalidReference, "process of invalid graph")
	}
	g.run.Lock()
	defer g.run.Unlock()

	if !g.verified.Load() {
		if err := g.verify(ctx); err != nil {
			return err
		}
	}
	logger := ctxlog.FromContext(ctx).With("graph", g.String())
	nodes := g.Nodes()
	for _, n := range nodes {
		n.reset()
	}

	g.state.Store(int32(StateRunning))
	perf := g.PerfEnabled()
	if perf {
		g.perf.Start()
	}
	action, err := g.runNodes(ctx, nodes)
	if perf {
		g.perf.Stop()
		for i, n := range nodes {
			s := n.Perf()
			logger.Debug("Node timing.", "index", i, "kernel", n.Kernel().Name(), "last", s.Tmp, "avg", s.Avg, "min", s.Min, "max", s.Max)
		}
	}

	if err == nil && action == ActionAbandon {
		err = abandonCause(nodes)
	}
	if err != nil {
		g.state.Store(int32(StateAbandoned))
		logger.Warn("Graph abandoned.", "error", err)
		return err
	}
	g.state.Store(int32(StateCompleted))
	logger.Debug("Graph completed.")
	return nil
}

// runNodes hands each maximal run of nodes sharing a target to that target.
func (g *Graph) runNodes(ctx context.Context, nodes []*Node) (Action, error) {
	logger := ctxlog.FromContext(ctx)
	for start := 0; start < len(nodes); {
		affinity := nodes[start].Affinity()
		end := start + 1
		for end < len(nodes) && nodes[end].Affinity() == affinity {
			end++
		}
		backend, err := g.rt.Backend(affinity)
		if err != nil {
			return ActionAbandon, &AbandonedError{Index: start, Node: nodes[start].String(), Err: err}
		}

		batch := nodes[start:end]
		for _, n := range batch {
			n.setVirtualAccess(true)
		}
		logger.Debug("Dispatching nodes.", "target", backend.Name(), "start", start, "count", len(batch))
		action := backend.Process(ctx, batch)
		for _, n := range batch {
			n.setVirtualAccess(false)
		}
		if action == ActionAbandon {
			return action, nil
		}
		start = end
	}
	return ActionContinue, nil
}

// abandonCause finds the node that stopped the run: the first one that
// failed, or else the last one executed, whose callback asked to abandon.
func abandonCause(nodes []*Node) error {
	last := -1
	for i, n := range nodes {
		if !n.Executed() {
			continue
		}
		last = i
		if err := n.Status(); err != nil {
			return &AbandonedError{Index: i, Node: n.String(), Err: err}
		}
	}
	if last < 0 {
		return &AbandonedError{Index: 0, Node: nodes[0].String(), Err: status.ErrGraphAbandoned}
	}
	return &AbandonedError{Index: last, Node: nodes[last].String(), Err: status.ErrGraphAbandoned}
}
