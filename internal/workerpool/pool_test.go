package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/memmap"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
	"github.com/specialistvlad/vxgrid/internal/testutil"
)

type runtime struct {
	base    reference.Reference
	objects *reference.Table
	backend graph.Backend
}

func newRuntime(b graph.Backend) *runtime {
	rt := &runtime{objects: reference.NewTable(64), backend: b}
	rt.base.Init(reference.TypeContext, nil, nil)
	return rt
}

func (r *runtime) Base() *reference.Reference         { return &r.base }
func (r *runtime) Objects() *reference.Table          { return r.objects }
func (r *runtime) Maps() *memmap.Maps                 { return memmap.NewMaps(1) }
func (r *runtime) Accessors() *memmap.Accessors       { return memmap.NewAccessors(1) }
func (r *runtime) PerfEnabled() bool                  { return false }
func (r *runtime) Backend(int) (graph.Backend, error) { return r.backend, nil }

// countingBackend executes the kernel body and remembers concurrency.
type countingBackend struct {
	active, peak atomic.Int32
	calls        atomic.Int32
}

func (b *countingBackend) Name() string                              { return "counting" }
func (b *countingBackend) Verify(context.Context, *graph.Node) error { return nil }
func (b *countingBackend) Process(ctx context.Context, nodes []*graph.Node) graph.Action {
	cur := b.active.Add(1)
	for {
		p := b.peak.Load()
		if cur <= p || b.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	defer b.active.Add(-1)
	b.calls.Add(1)
	for _, n := range nodes {
		if err := n.Execute(ctx, nil); err != nil {
			return graph.ActionAbandon
		}
	}
	return graph.ActionContinue
}

func newNodes(t *testing.T, rt *runtime, count int, body graph.ExecuteFunc) []*graph.Node {
	t.Helper()
	k, err := graph.NewKernel(graph.KernelDef{Enum: 1, Name: "work", Impl: body})
	require.NoError(t, err)
	require.NoError(t, rt.objects.Add(k, reference.TypeKernel, rt.Base(), nil, reference.Internal))
	k.SetAffinity(0)
	g, err := graph.New(rt)
	require.NoError(t, err)
	var nodes []*graph.Node
	for i := 0; i < count; i++ {
		n, err := g.AddNode(k)
		require.NoError(t, err)
		nodes = append(nodes, n)
	}
	return nodes
}

func TestPool_RunsEveryItem(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	backend := &countingBackend{}
	rt := newRuntime(backend)
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(3)
	nodes := newNodes(t, rt, 3, func(context.Context, *graph.Node, []reference.Object) error {
		started.Done()
		<-release
		return nil
	})
	pool, err := New(context.Background(), 3, 2)
	require.NoError(t, err)
	defer pool.Close()

	items := make([]*Item, len(nodes))
	for i, n := range nodes {
		items[i] = &Item{Backend: backend, Node: n}
	}

	// --- Act ---
	batch, err := pool.Issue(context.Background(), items)
	require.NoError(t, err)
	started.Wait()
	close(release)
	action, err := batch.Wait(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, graph.ActionContinue, action)
	assert.EqualValues(t, 3, backend.calls.Load())
	assert.EqualValues(t, 3, backend.peak.Load(), "round-robin spreads items over all workers")
	for _, n := range nodes {
		assert.True(t, n.Executed())
	}
}

func TestPool_ReportsAbandon(t *testing.T) {
	t.Parallel()

	backend := &countingBackend{}
	rt := newRuntime(backend)
	nodes := newNodes(t, rt, 2, func(_ context.Context, n *graph.Node, _ []reference.Object) error {
		return status.Errorf(status.Failure, "kernel failed")
	})
	pool, err := New(context.Background(), 1, 4)
	require.NoError(t, err)
	defer pool.Close()

	batch, err := pool.Issue(context.Background(), []*Item{{Backend: backend, Node: nodes[0]}})
	require.NoError(t, err)
	action, err := batch.Wait(context.Background())

	require.NoError(t, err)
	assert.Equal(t, graph.ActionAbandon, action)
	assert.ErrorIs(t, nodes[0].Status(), status.ErrFailure)
}

func TestPool_WaitHonorsContext(t *testing.T) {
	t.Parallel()

	backend := &countingBackend{}
	rt := newRuntime(backend)
	release := make(chan struct{})
	nodes := newNodes(t, rt, 1, func(context.Context, *graph.Node, []reference.Object) error {
		<-release
		return nil
	})
	pool, err := New(context.Background(), 1, 1)
	require.NoError(t, err)
	defer pool.Close()
	defer close(release)

	batch, err := pool.Issue(context.Background(), []*Item{{Backend: backend, Node: nodes[0]}})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = batch.Wait(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_BackendGetsCallerContext(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	backend := &countingBackend{}
	rt := newRuntime(backend)
	nodes := newNodes(t, rt, 2, func(ctx context.Context, _ *graph.Node, _ []reference.Object) error {
		ctxlog.FromContext(ctx).Info("Kernel body ran.")
		return nil
	})
	pool, err := New(context.Background(), 2, 1)
	require.NoError(t, err)
	defer pool.Close()
	ctx, logs := testutil.LogContext()

	// --- Act ---
	batch, err := pool.Issue(ctx, []*Item{{Backend: backend, Node: nodes[0]}, {Backend: backend, Node: nodes[1]}})
	require.NoError(t, err)
	action, err := batch.Wait(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, graph.ActionContinue, action)
	testutil.AssertLogged(t, logs, "Kernel body ran.", 2)
	assert.Contains(t, logs.String(), "workerID=")
}

func TestPool_EmptyBatchIsDone(t *testing.T) {
	t.Parallel()

	pool, err := New(context.Background(), 1, 1)
	require.NoError(t, err)
	defer pool.Close()

	batch, err := pool.Issue(context.Background(), nil)
	require.NoError(t, err)

	select {
	case <-batch.Done():
	default:
		t.Fatal("empty batch is not done")
	}
	action, err := batch.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, graph.ActionContinue, action)
}

func TestPool_ClosedRejectsWork(t *testing.T) {
	t.Parallel()

	pool, err := New(context.Background(), 2, 1)
	require.NoError(t, err)
	pool.Close()
	pool.Close()

	_, err = pool.Issue(context.Background(), nil)

	assert.ErrorIs(t, err, status.ErrNoResources)
}

func TestNew_RejectsBadSize(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), 0, 1)
	assert.ErrorIs(t, err, status.ErrInvalidValue)
}
