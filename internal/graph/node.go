package graph

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// NodeState tracks a node through one graph run.
type NodeState int32

const (
	NodeUnexecuted NodeState = iota
	NodeRunning
	NodeSucceeded
	NodeAbandoned
)

func (s NodeState) String() string {
	switch s {
	case NodeRunning:
		return "running"
	case NodeSucceeded:
		return "succeeded"
	case NodeAbandoned:
		return "abandoned"
	}
	return "unexecuted"
}

// BorderMode selects how kernels treat pixels outside an image.
type BorderMode int

const (
	BorderUndefined BorderMode = iota
	BorderConstant
	BorderReplicate
)

// Border is a node's border policy.
type Border struct {
	Mode     BorderMode
	Constant uint32
}

// Callback runs after a node succeeds. Returning ActionAbandon stops the run.
type Callback func(ctx context.Context, n *Node) Action

// Node binds a kernel to parameter objects inside one graph.
type Node struct {
	reference.Reference

	graph  *Graph
	kernel *Kernel

	mu          sync.Mutex
	params      []reference.Object
	border      Border
	callback    Callback
	child       *Graph
	local       any
	initialized bool
	lastErr     error

	affinity atomic.Int32
	executed atomic.Bool
	state    atomic.Int32
	perf     Perf
}

func (n *Node) Graph() *Graph { return n.graph }
func (n *Node) Kernel() *Kernel {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.kernel
}
func (n *Node) Affinity() int  { return int(n.affinity.Load()) }
func (n *Node) Executed() bool { return n.executed.Load() }
func (n *Node) State() NodeState {
	return NodeState(n.state.Load())
}
func (n *Node) Perf() PerfStats { return n.perf.Stats() }

// Status is the error returned by the node's last execution, nil on success.
func (n *Node) Status() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastErr
}

// Parameter returns the object bound at index, or nil.
func (n *Node) Parameter(index int) reference.Object {
	n.mu.Lock()
	defer n.mu.Unlock()
	if index < 0 || index >= len(n.params) {
		return nil
	}
	return n.params[index]
}

// Parameters returns a copy of the bound parameters.
func (n *Node) Parameters() []reference.Object {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]reference.Object(nil), n.params...)
}

// SetParameter binds obj at index. Binding invalidates the graph.
func (n *Node) SetParameter(index int, obj reference.Object) error {
	if !n.Valid() {
		return status.Errorf(status.InvalidReference, "node is not valid")
	}
	if err := n.checkParameter(index, obj); err != nil {
		return err
	}
	n.mu.Lock()
	n.params[index] = obj
	n.mu.Unlock()
	n.graph.invalidate()
	return nil
}

func (n *Node) checkParameter(index int, obj reference.Object) error {
	k := n.Kernel()
	if index < 0 || index >= k.NumParams() {
		return status.Errorf(status.InvalidParameters, "%s has no parameter %d", k.Name(), index)
	}
	if obj == nil {
		return nil
	}
	ref := obj.Base()
	want := k.Param(index).Type
	if !ref.Valid() {
		return status.Errorf(status.InvalidReference, "%s parameter %d is not a valid object", k.Name(), index)
	}
	if ref.Type() != want {
		return status.Errorf(status.InvalidType, "%s parameter %d wants %s, got %s", k.Name(), index, want, ref.Type())
	}
	if ref.IsVirtual() && !n.graph.inScope(ref.Scope()) {
		return status.Errorf(status.InvalidParameters, "%s parameter %d is virtual in another graph", k.Name(), index)
	}
	return nil
}

func (n *Node) Border() Border {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.border
}

func (n *Node) SetBorder(b Border) error {
	if b.Mode < BorderUndefined || b.Mode > BorderReplicate {
		return status.Errorf(status.InvalidValue, "unknown border mode %d", b.Mode)
	}
	n.mu.Lock()
	n.border = b
	n.mu.Unlock()
	return nil
}

func (n *Node) Callback() Callback {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.callback
}

// SetCallback attaches cb; nil removes it.
func (n *Node) SetCallback(cb Callback) {
	n.mu.Lock()
	n.callback = cb
	n.mu.Unlock()
}

// ChildGraph is the private graph built by a composite kernel, if any.
func (n *Node) ChildGraph() *Graph {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.child
}

// SetChildGraph records the composite kernel's child graph. The node
// releases a child still attached when it is destroyed.
func (n *Node) SetChildGraph(g *Graph) {
	n.mu.Lock()
	n.child = g
	n.mu.Unlock()
}

// LocalData and SetLocalData hold kernel-private state between Initialize
// and Deinitialize.
func (n *Node) LocalData() any {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.local
}

func (n *Node) SetLocalData(v any) {
	n.mu.Lock()
	n.local = v
	n.mu.Unlock()
}

// Rebind moves the node onto kernel k running on the target at affinity. k
// must implement the same operation: same base name and parameter signature.
func (n *Node) Rebind(k *Kernel, affinity int) error {
	if !k.Valid() {
		return status.Errorf(status.InvalidReference, "rebind to invalid kernel")
	}
	if !k.Enabled() {
		return status.Errorf(status.InvalidParameters, "rebind to disabled kernel %s", k.Name())
	}
	n.mu.Lock()
	old := n.kernel
	if k.BaseName() != old.BaseName() || !slices.Equal(k.params, old.params) {
		n.mu.Unlock()
		return status.Errorf(status.InvalidParameters, "rebind %s to %s", old.Name(), k.Name())
	}
	n.kernel = k
	n.mu.Unlock()
	if k != old {
		k.Increment(reference.Internal)
		_ = reference.Release(old, reference.Internal)
	}
	n.affinity.Store(int32(affinity))
	n.graph.invalidate()
	return nil
}

// Execute runs fn, or the kernel body when fn is nil, as one execution of the
// node: it captures perf when enabled, marks the node executed and records
// the returned status.
func (n *Node) Execute(ctx context.Context, fn ExecuteFunc) error {
	if fn == nil {
		fn = n.Kernel().Impl().Execute
	}
	perf := n.graph.PerfEnabled()
	n.state.Store(int32(NodeRunning))
	if perf {
		n.perf.Start()
	}
	err := fn(ctx, n, n.Parameters())
	if perf {
		n.perf.Stop()
	}
	n.executed.Store(true)
	n.mu.Lock()
	n.lastErr = err
	n.mu.Unlock()
	if err != nil {
		n.state.Store(int32(NodeAbandoned))
	} else {
		n.state.Store(int32(NodeSucceeded))
	}
	return err
}

func (n *Node) reset() {
	n.executed.Store(false)
	n.state.Store(int32(NodeUnexecuted))
	n.mu.Lock()
	n.lastErr = nil
	n.mu.Unlock()
}

func (n *Node) initialize(ctx context.Context) error {
	in, ok := n.Kernel().Impl().(Initializer)
	if !ok {
		return nil
	}
	if err := in.Initialize(ctx, n, n.Parameters()); err != nil {
		return err
	}
	n.mu.Lock()
	n.initialized = true
	n.mu.Unlock()
	return nil
}

func (n *Node) deinitialize(ctx context.Context) error {
	n.mu.Lock()
	was := n.initialized
	n.initialized = false
	n.mu.Unlock()
	if !was {
		return nil
	}
	if de, ok := n.Kernel().Impl().(Deinitializer); ok {
		return de.Deinitialize(ctx, n, n.Parameters())
	}
	return nil
}

func (n *Node) destroy() {
	_ = n.deinitialize(context.Background())
	if child := n.ChildGraph(); child != nil {
		n.SetChildGraph(nil)
		_ = child.Release()
	}
	_ = reference.Release(n.Kernel(), reference.Internal)
}

func (n *Node) setVirtualAccess(on bool) {
	for _, p := range n.Parameters() {
		if p != nil && p.Base().IsVirtual() {
			p.Base().SetAccessible(on)
		}
	}
}
