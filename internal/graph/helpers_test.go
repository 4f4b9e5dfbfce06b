package graph

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/vxgrid/internal/memmap"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

type testRuntime struct {
	base     reference.Reference
	objects  *reference.Table
	maps     *memmap.Maps
	access   *memmap.Accessors
	backends []Backend
	perf     bool
}

func newTestRuntime(backends ...Backend) *testRuntime {
	rt := &testRuntime{
		objects:  reference.NewTable(256),
		maps:     memmap.NewMaps(8),
		access:   memmap.NewAccessors(8),
		backends: backends,
	}
	rt.base.Init(reference.TypeContext, nil, nil)
	return rt
}

func (rt *testRuntime) Base() *reference.Reference   { return &rt.base }
func (rt *testRuntime) Objects() *reference.Table    { return rt.objects }
func (rt *testRuntime) Maps() *memmap.Maps           { return rt.maps }
func (rt *testRuntime) Accessors() *memmap.Accessors { return rt.access }
func (rt *testRuntime) PerfEnabled() bool            { return rt.perf }

func (rt *testRuntime) Backend(affinity int) (Backend, error) {
	if affinity < 0 || affinity >= len(rt.backends) {
		return nil, status.Errorf(status.InvalidReference, "no target %d", affinity)
	}
	return rt.backends[affinity], nil
}

// seqBackend runs nodes in order, stopping at the first failure.
type seqBackend struct {
	name      string
	verifyErr error

	mu   sync.Mutex
	runs [][]string
}

func (b *seqBackend) Name() string { return b.name }

func (b *seqBackend) Verify(context.Context, *Node) error { return b.verifyErr }

func (b *seqBackend) Process(ctx context.Context, nodes []*Node) Action {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name()
	}
	b.mu.Lock()
	b.runs = append(b.runs, names)
	b.mu.Unlock()

	for _, n := range nodes {
		if err := n.Execute(ctx, nil); err != nil {
			return ActionAbandon
		}
		if cb := n.Callback(); cb != nil && cb(ctx, n) == ActionAbandon {
			return ActionAbandon
		}
	}
	return ActionContinue
}

func (b *seqBackend) Runs() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.runs
}

// blob is a minimal shaped data object.
type blob struct {
	reference.Reference
	mu   sync.Mutex
	meta Meta
	data []int
}

func (b *blob) Meta() Meta {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.meta
}

func (b *blob) Resolve(m Meta) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.meta.Width != 0 && m.Width != 0 && b.meta.Width != m.Width {
		return status.Errorf(status.InvalidDimension, "width %d vs %d", b.meta.Width, m.Width)
	}
	if b.meta.Width == 0 {
		b.meta.Width = m.Width
	}
	b.data = make([]int, b.meta.Width)
	return nil
}

func newBlob(t *testing.T, rt Runtime, width int) *blob {
	t.Helper()
	b := &blob{meta: Meta{Type: reference.TypeArray, Width: width}, data: make([]int, width)}
	require.NoError(t, rt.Objects().Add(b, reference.TypeArray, rt.Base(), nil, reference.External))
	return b
}

func newVirtualBlob(t *testing.T, g *Graph) *blob {
	t.Helper()
	rt := g.Runtime()
	b := &blob{meta: Meta{Type: reference.TypeArray}}
	require.NoError(t, rt.Objects().Add(b, reference.TypeArray, rt.Base(), &g.Reference, reference.Internal))
	b.MarkVirtual()
	require.NoError(t, g.AdoptVirtual(b))
	return b
}

// newKernel registers a kernel the way a target would.
func newKernel(t *testing.T, rt Runtime, enum int, name string, params []Param, impl Executor, affinity int) *Kernel {
	t.Helper()
	k, err := NewKernel(KernelDef{Enum: enum, Name: name, Params: params, Impl: impl})
	require.NoError(t, err)
	require.NoError(t, rt.Objects().Add(k, reference.TypeKernel, rt.Base(), nil, reference.Internal))
	k.SetAffinity(affinity)
	return k
}

var inOut = []Param{
	{Direction: Input, Type: reference.TypeArray},
	{Direction: Output, Type: reference.TypeArray},
}

// copyKernel copies the input blob into the output blob.
type copyKernel struct{ outWidth int }

func (c copyKernel) Execute(_ context.Context, _ *Node, params []reference.Object) error {
	in, out := params[0].(*blob), params[1].(*blob)
	if !out.IsAccessible() {
		return status.Errorf(status.InvalidReference, "output not accessible")
	}
	copy(out.data, in.data)
	return nil
}

func (c copyKernel) ValidateOutput(n *Node, index int, meta *Meta) error {
	in := n.Parameter(0).(*blob)
	meta.Width = in.Meta().Width
	if c.outWidth != 0 {
		meta.Width = c.outWidth
	}
	return nil
}
