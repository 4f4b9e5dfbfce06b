package graph

import (
	"context"
	"fmt"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// Verify checks every node and initializes its kernel. On success the graph
// is verified and may be processed; on failure it stays unverified.
func (g *Graph) Verify(ctx context.Context) error {
	if !g.ValidAs(reference.TypeGraph) {
		return status.Errorf(status.InvalidReference, "verify of invalid graph")
	}
	g.run.Lock()
	defer g.run.Unlock()
	return g.verify(ctx)
}

func (g *Graph) verify(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("graph", g.String())
	nodes := g.Nodes()
	logger.Debug("Verifying graph.", "nodes", len(nodes))

	err := g.verifyNodes(ctx, nodes)
	if err != nil {
		logger.Warn("Graph verification failed.", "error", err)
		g.verified.Store(false)
		g.state.Store(int32(StateUnverified))
		return err
	}
	g.verified.Store(true)
	g.state.Store(int32(StateVerified))
	logger.Debug("Graph verified.")
	return nil
}

func (g *Graph) verifyNodes(ctx context.Context, nodes []*Node) error {
	if len(nodes) == 0 {
		return status.Errorf(status.InvalidGraph, "graph has no nodes")
	}
	// Re-verification starts from uninitialized kernels.
	for _, n := range nodes {
		if err := n.deinitialize(ctx); err != nil {
			return fmt.Errorf("node %s: deinitialize: %w", n, err)
		}
	}
	if err := checkWriters(nodes); err != nil {
		return err
	}
	for _, n := range nodes {
		if err := g.verifyNode(ctx, n); err != nil {
			return fmt.Errorf("node %s: %w", n, err)
		}
	}
	return nil
}

// checkWriters rejects graphs where two nodes output to the same object.
func checkWriters(nodes []*Node) error {
	writers := make(map[*reference.Reference]*Node)
	for _, n := range nodes {
		k := n.Kernel()
		for i, p := range n.Parameters() {
			if p == nil || k.Param(i).Direction != Output {
				continue
			}
			if prev, ok := writers[p.Base()]; ok && prev != n {
				return status.Errorf(status.InvalidGraph, "%s is written by both %s and %s", p.Base(), prev, n)
			}
			writers[p.Base()] = n
		}
	}
	return nil
}

func (g *Graph) verifyNode(ctx context.Context, n *Node) error {
	k := n.Kernel()
	if !k.ValidAs(reference.TypeKernel) {
		return status.Errorf(status.InvalidReference, "kernel has been released")
	}
	if !k.Enabled() {
		return status.Errorf(status.InvalidParameters, "kernel %s is disabled", k.Name())
	}
	params := n.Parameters()
	impl := k.Impl()

	for i, p := range params {
		sig := k.Param(i)
		if p == nil {
			if sig.State == Required {
				return status.Errorf(status.InvalidParameters, "required parameter %d is not bound", i)
			}
			continue
		}
		if err := n.checkParameter(i, p); err != nil {
			return err
		}
	}

	if iv, ok := impl.(InputValidator); ok {
		for i, p := range params {
			if p == nil || !k.Param(i).Direction.Reads() {
				continue
			}
			if err := iv.ValidateInput(n, i); err != nil {
				return fmt.Errorf("input %d: %w", i, err)
			}
		}
	}

	metas := make([]*Meta, len(params))
	ov, hasOV := impl.(OutputValidator)
	for i, p := range params {
		sig := k.Param(i)
		if p == nil || sig.Direction != Output {
			continue
		}
		meta := &Meta{Type: sig.Type}
		metas[i] = meta
		if !hasOV {
			continue
		}
		if err := ov.ValidateOutput(n, i, meta); err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
		if err := applyMeta(p, *meta); err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
	}

	if v, ok := impl.(Validator); ok {
		if err := v.Validate(n, params, metas); err != nil {
			return err
		}
	}

	backend, err := g.rt.Backend(n.Affinity())
	if err != nil {
		return err
	}
	if err := backend.Verify(ctx, n); err != nil {
		return fmt.Errorf("target %s: %w", backend.Name(), err)
	}

	if err := n.initialize(ctx); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return nil
}

// applyMeta resolves a virtual output from meta or checks a concrete one.
func applyMeta(obj reference.Object, meta Meta) error {
	shaped, ok := obj.(Shaped)
	if !ok {
		return nil
	}
	if obj.Base().IsVirtual() {
		return shaped.Resolve(meta)
	}
	return meta.Check(shaped.Meta())
}
