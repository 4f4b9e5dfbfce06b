package graph

import (
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// State is the lifecycle state of a graph.
type State int32

const (
	StateUnverified State = iota
	StateVerified
	StateRunning
	StateCompleted
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateVerified:
		return "verified"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAbandoned:
		return "abandoned"
	}
	return "unverified"
}

// Graph is an ordered, verifiable, executable collection of nodes.
type Graph struct {
	reference.Reference

	rt Runtime

	// run serializes Verify and Process.
	run sync.Mutex

	mu       sync.Mutex
	nodes    []*Node
	virtuals []reference.Object
	params   []Parameter

	verified  atomic.Bool
	state     atomic.Int32
	scheduled atomic.Bool
	perf      Perf
	perfMode  atomic.Int32
}

// New creates an empty graph owned by rt. The caller holds one external
// reference and must Release it.
func New(rt Runtime) (*Graph, error) {
	return newGraph(rt, nil, reference.External)
}

// NewChild creates the private graph of a composite node. The graph is
// scoped to parent, may use the parent graph's virtual objects, and is
// released by the parent node if its kernel does not release it first.
func NewChild(parent *Node) (*Graph, error) {
	if !parent.Valid() {
		return nil, status.Errorf(status.InvalidReference, "child graph of invalid node")
	}
	return newGraph(parent.graph.rt, &parent.Reference, reference.External)
}

func newGraph(rt Runtime, scope *reference.Reference, kind reference.Kind) (*Graph, error) {
	if rt == nil || !rt.Base().Valid() {
		return nil, status.Errorf(status.InvalidReference, "graph without a valid context")
	}
	g := &Graph{rt: rt}
	if err := rt.Objects().Add(g, reference.TypeGraph, rt.Base(), scope, kind); err != nil {
		return nil, err
	}
	g.OnDestroy(g.destroy)
	return g, nil
}

func (g *Graph) Runtime() Runtime { return g.rt }
func (g *Graph) IsVerified() bool { return g.verified.Load() }
func (g *Graph) State() State     { return State(g.state.Load()) }
func (g *Graph) Perf() PerfStats  { return g.perf.Stats() }

// Release drops the caller's external reference.
func (g *Graph) Release() error { return reference.Release(g, reference.External) }

// Nodes returns the nodes in execution order.
func (g *Graph) Nodes() []*Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Node(nil), g.nodes...)
}

// AddNode appends a node running k with the given parameters bound in order.
// The node belongs to the graph and is freed with it.
func (g *Graph) AddNode(k *Kernel, params ...reference.Object) (*Node, error) {
	if !g.ValidAs(reference.TypeGraph) {
		return nil, status.Errorf(status.InvalidReference, "add node to invalid graph")
	}
	if !k.ValidAs(reference.TypeKernel) {
		return nil, status.Errorf(status.InvalidReference, "add node with invalid kernel")
	}
	if !k.Enabled() {
		return nil, status.Errorf(status.InvalidParameters, "kernel %s is not finalized", k.Name())
	}
	if len(params) > k.NumParams() {
		return nil, status.Errorf(status.InvalidParameters, "%s takes %d parameters, got %d", k.Name(), k.NumParams(), len(params))
	}
	n := &Node{graph: g, kernel: k, params: make([]reference.Object, k.NumParams())}
	n.affinity.Store(int32(k.Affinity()))
	for i, p := range params {
		if err := n.checkParameter(i, p); err != nil {
			return nil, err
		}
		n.params[i] = p
	}
	if err := g.rt.Objects().Add(n, reference.TypeNode, g.rt.Base(), &g.Reference, reference.Internal); err != nil {
		return nil, err
	}
	k.Increment(reference.Internal)
	n.OnDestroy(n.destroy)
	n.SetName(k.Name())

	g.mu.Lock()
	g.nodes = append(g.nodes, n)
	g.mu.Unlock()
	g.invalidate()
	return n, nil
}

// RemoveNode takes n out of the graph and frees it.
func (g *Graph) RemoveNode(n *Node) error {
	g.mu.Lock()
	idx := -1
	for i, cur := range g.nodes {
		if cur == n {
			idx = i
			break
		}
	}
	if idx < 0 {
		g.mu.Unlock()
		return status.Errorf(status.InvalidReference, "node is not part of this graph")
	}
	g.nodes = append(g.nodes[:idx], g.nodes[idx+1:]...)
	kept := g.params[:0]
	for _, p := range g.params {
		if p.Node != n {
			kept = append(kept, p)
		}
	}
	g.params = kept
	g.mu.Unlock()

	g.invalidate()
	return reference.Release(n, reference.Internal)
}

// AdoptVirtual records a virtual object created in this graph's scope. The
// graph holds the object's internal reference and releases it on destroy.
func (g *Graph) AdoptVirtual(obj reference.Object) error {
	ref := obj.Base()
	if !ref.Valid() || !ref.IsVirtual() || ref.Scope() != &g.Reference {
		return status.Errorf(status.InvalidParameters, "object is not virtual in this graph")
	}
	g.mu.Lock()
	g.virtuals = append(g.virtuals, obj)
	g.mu.Unlock()
	return nil
}

// Virtuals returns the virtual objects owned by the graph.
func (g *Graph) Virtuals() []reference.Object {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]reference.Object(nil), g.virtuals...)
}

// MarkScheduled flags the graph as queued for asynchronous processing. It
// returns false if it already was.
func (g *Graph) MarkScheduled() bool { return g.scheduled.CompareAndSwap(false, true) }

// ClearScheduled ends the asynchronous submission started by MarkScheduled.
func (g *Graph) ClearScheduled() { g.scheduled.Store(false) }

// IsScheduled reports whether the graph is queued or being processed asynchronously.
func (g *Graph) IsScheduled() bool { return g.scheduled.Load() }

// TryHold takes the run lock for a caller that executes nodes outside
// Process. It reports false while the graph is verifying or processing.
func (g *Graph) TryHold() bool { return g.run.TryLock() }

// Unhold releases a hold taken by TryHold.
func (g *Graph) Unhold() { g.run.Unlock() }

func (g *Graph) invalidate() {
	g.verified.Store(false)
	g.state.CompareAndSwap(int32(StateVerified), int32(StateUnverified))
}

// inScope reports whether scope is this graph or one of its ancestors.
func (g *Graph) inScope(scope *reference.Reference) bool {
	for s := &g.Reference; s != nil; s = s.Scope() {
		if s == scope {
			return true
		}
	}
	return false
}

func (g *Graph) destroy() {
	g.mu.Lock()
	nodes, virtuals := g.nodes, g.virtuals
	g.nodes, g.virtuals, g.params = nil, nil, nil
	g.mu.Unlock()

	for i := len(nodes) - 1; i >= 0; i-- {
		_ = reference.Release(nodes[i], reference.Internal)
	}
	for _, v := range virtuals {
		_ = reference.Release(v, reference.Internal)
	}
}
