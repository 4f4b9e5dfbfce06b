package engine

import (
	"context"
	"fmt"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
	"github.com/specialistvlad/vxgrid/internal/workerpool"
)

// CreateGraph returns an empty graph owned by the context.
func (c *Context) CreateGraph() (*graph.Graph, error) {
	if !c.ValidAs(reference.TypeContext) {
		return nil, status.Errorf(status.InvalidReference, "create graph on destroyed context")
	}
	return graph.New(c)
}

// Immediate runs one kernel on params right away: it builds a single-node
// graph, verifies it, runs the node on the worker pool and releases the
// graph. The node takes the context's immediate border. The node's own
// error is returned on failure.
func (c *Context) Immediate(ctx context.Context, kernelName string, params ...reference.Object) error {
	k, err := c.FindKernelByName(kernelName)
	if err != nil {
		return err
	}
	defer func() { _ = c.ReleaseKernel(k) }()

	g, err := c.CreateGraph()
	if err != nil {
		return err
	}
	defer func() { _ = g.Release() }()

	n, err := g.AddNode(k, params...)
	if err != nil {
		return fmt.Errorf("immediate %s: %w", kernelName, err)
	}
	if err := n.SetBorder(c.ImmediateBorder()); err != nil {
		return err
	}
	if err := g.Verify(ctx); err != nil {
		return fmt.Errorf("immediate %s: %w", kernelName, err)
	}
	action, err := c.Dispatch(ctx, n)
	if err != nil {
		return err
	}
	if action == graph.ActionAbandon {
		if cause := n.Status(); cause != nil {
			return cause
		}
		return status.Errorf(status.GraphAbandoned, "immediate %s abandoned", kernelName)
	}
	return nil
}

// Dispatch runs nodes concurrently on the worker pool, each on its own
// target, and waits for all of them. The nodes must belong to verified
// graphs and must not depend on each other. A graph that is being verified
// or processed elsewhere is rejected with GRAPH_SCHEDULED.
func (c *Context) Dispatch(ctx context.Context, nodes ...*graph.Node) (graph.Action, error) {
	held := make(map[*graph.Graph]bool)
	var running *workerpool.Batch
	defer func() {
		unhold := func() {
			for g := range held {
				g.Unhold()
			}
		}
		if running == nil {
			unhold()
			return
		}
		// The nodes keep running after an early return from Wait.
		go func() {
			<-running.Done()
			unhold()
		}()
	}()

	items := make([]*workerpool.Item, 0, len(nodes))
	for _, n := range nodes {
		if n == nil || !n.Valid() {
			return graph.ActionAbandon, status.Errorf(status.InvalidReference, "dispatch of invalid node")
		}
		g := n.Graph()
		if !held[g] {
			if !g.TryHold() {
				return graph.ActionAbandon, status.Errorf(status.GraphScheduled, "dispatch of %s while its graph is running", n.String())
			}
			held[g] = true
		}
		if !g.IsVerified() {
			return graph.ActionAbandon, status.Errorf(status.InvalidGraph, "dispatch of %s from unverified graph", n.String())
		}
		backend, err := c.Backend(n.Affinity())
		if err != nil {
			return graph.ActionAbandon, err
		}
		items = append(items, &workerpool.Item{Backend: backend, Node: n})
	}
	batch, err := c.pool.Issue(ctx, items)
	if err != nil {
		return graph.ActionAbandon, err
	}
	running = batch
	action, err := batch.Wait(ctx)
	if err != nil {
		return action, err
	}
	ctxlog.FromContext(ctx).Debug("Dispatch complete.", "nodes", len(nodes), "action", action.String())
	return action, nil
}

// Schedule queues g on the streaming loop.
func (c *Context) Schedule(g *graph.Graph) error {
	if g == nil || g.Runtime() != graph.Runtime(c) {
		return status.Errorf(status.InvalidReference, "graph does not belong to %s", c.String())
	}
	return c.stream.Schedule(g)
}

// Wait blocks until the scheduled graph g has been processed and returns its
// result.
func (c *Context) Wait(ctx context.Context, g *graph.Graph) error {
	return c.stream.Wait(ctx, g)
}
