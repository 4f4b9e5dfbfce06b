package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/vxgrid/internal/data"
	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/kernels"
	"github.com/specialistvlad/vxgrid/internal/memmap"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
	"github.com/specialistvlad/vxgrid/internal/target"
	"github.com/specialistvlad/vxgrid/internal/targets/cmodel"
)

type host struct {
	base    reference.Reference
	objects *reference.Table
	maps    *memmap.Maps
	access  *memmap.Accessors
	targets []*target.Target
}

func (h *host) Base() *reference.Reference   { return &h.base }
func (h *host) Objects() *reference.Table    { return h.objects }
func (h *host) Maps() *memmap.Maps           { return h.maps }
func (h *host) Accessors() *memmap.Accessors { return h.access }
func (h *host) PerfEnabled() bool            { return false }
func (h *host) Backend(i int) (graph.Backend, error) {
	if i < 0 || i >= len(h.targets) {
		return nil, status.Errorf(status.InvalidReference, "no target %d", i)
	}
	return h.targets[i], nil
}

// newHost loads the device target at index 0 and the software target at 1.
func newHost(t *testing.T, opts ...Option) *host {
	t.Helper()
	h := &host{
		objects: reference.NewTable(256),
		maps:    memmap.NewMaps(8),
		access:  memmap.NewAccessors(8),
	}
	h.base.Init(reference.TypeContext, nil, nil)
	for i, m := range []target.Module{New(opts...), cmodel.New()} {
		tg, err := target.New(h, m, i, i+1)
		require.NoError(t, err)
		require.NoError(t, tg.Load(context.Background()))
		h.targets = append(h.targets, tg)
	}
	return h
}

func (h *host) kernel(t *testing.T, name string) *graph.Kernel {
	t.Helper()
	k, ok := h.targets[0].Supports(Name, name)
	require.True(t, ok, name)
	return k
}

func (h *host) image(t *testing.T, w, ht int, pixels ...byte) *data.Image {
	t.Helper()
	img, err := data.NewImage(h, w, ht, data.FormatU8)
	require.NoError(t, err)
	copy(img.Pixels(), pixels)
	return img
}

func TestInit_KernelTable(t *testing.T) {
	t.Parallel()

	h := newHost(t)

	ks := h.targets[0].Kernels()
	require.Len(t, ks, 8)
	for _, k := range ks {
		assert.Greater(t, k.Enum(), 0x100, k.Name())
		assert.Equal(t, 0, k.Affinity())
	}
}

func TestInit_RejectsBadTransferLimit(t *testing.T) {
	t.Parallel()

	h := &host{objects: reference.NewTable(16)}
	h.base.Init(reference.TypeContext, nil, nil)
	tg, err := target.New(h, New(WithTransfers(0)), 0, 1)
	require.NoError(t, err)

	err = tg.Load(context.Background())

	assert.ErrorIs(t, err, status.ErrInvalidValue)
	assert.False(t, tg.Enabled())
	assert.Zero(t, tg.NumKernels())
}

func TestRun_ImagePipeline(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	h := newHost(t, WithTransfers(1))
	a := h.image(t, 3, 3, 10, 10, 10, 10, 10, 10, 10, 10, 10)
	b := h.image(t, 3, 3, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	sum := h.image(t, 3, 3)
	gain, err := data.NewScalar(h, cty.NumberIntVal(2))
	require.NoError(t, err)
	dist, err := data.NewDistribution(h, 2, 0, 64)
	require.NoError(t, err)
	g, err := graph.New(h)
	require.NoError(t, err)
	defer g.Release()
	scaled, err := data.NewVirtualImage(g, 0, 0, "")
	require.NoError(t, err)
	_, err = g.AddNode(h.kernel(t, kernels.NameAdd), a, b, sum)
	require.NoError(t, err)
	_, err = g.AddNode(h.kernel(t, kernels.NameGain), sum, gain, scaled)
	require.NoError(t, err)
	_, err = g.AddNode(h.kernel(t, kernels.NameHistogram), scaled, dist)
	require.NoError(t, err)

	// --- Act ---
	err = g.Process(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []byte{11, 12, 13, 14, 15, 16, 17, 18, 19}, sum.Pixels())
	assert.Equal(t, []uint32{5, 4}, dist.Counts(), "22..30 and 32..38")
}

func TestRun_ConvolveMatchesSoftwareTarget(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	h := newHost(t)
	pixels := []byte{
		0, 50, 100, 150,
		200, 250, 200, 150,
		100, 50, 0, 50,
	}
	src := h.image(t, 4, 3, pixels...)
	conv, err := data.NewConvolution(h, 3, 3)
	require.NoError(t, err)
	require.NoError(t, conv.SetCoefficients([]int16{1, 2, 1, 0, 0, 0, -1, -2, -1}))
	require.NoError(t, conv.SetScale(4))
	onDevice, onHost := h.image(t, 4, 3), h.image(t, 4, 3)
	swConvolve, ok := h.targets[1].Supports(cmodel.Name, kernels.NameConvolve)
	require.True(t, ok)
	g, err := graph.New(h)
	require.NoError(t, err)
	defer g.Release()
	n0, err := g.AddNode(h.kernel(t, kernels.NameConvolve), src, conv, onDevice)
	require.NoError(t, err)
	n1, err := g.AddNode(swConvolve, src, conv, onHost)
	require.NoError(t, err)
	for _, n := range []*graph.Node{n0, n1} {
		require.NoError(t, n.SetBorder(graph.Border{Mode: graph.BorderReplicate}))
	}

	// --- Act ---
	err = g.Process(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, onHost.Pixels(), onDevice.Pixels())
	assert.Equal(t, 0, n0.Affinity())
	assert.Equal(t, 1, n1.Affinity())
}

func TestRun_MatrixAndArray(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	h := newHost(t)
	m, err := data.NewMatrix(h, 1, 3)
	require.NoError(t, err)
	require.NoError(t, m.SetValues([]float32{1.5, -2, 3}))
	mt, err := data.NewMatrix(h, 3, 1)
	require.NoError(t, err)
	src, err := data.NewArray(h, 4, 3)
	require.NoError(t, err)
	require.NoError(t, src.Append([]byte{1, 2, 3, 4, 5, 6, 7, 8}))
	dst, err := data.NewArray(h, 4, 3)
	require.NoError(t, err)
	require.NoError(t, dst.Append([]byte{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9}))
	g, err := graph.New(h)
	require.NoError(t, err)
	defer g.Release()
	_, err = g.AddNode(h.kernel(t, kernels.NameTranspose), m, mt)
	require.NoError(t, err)
	_, err = g.AddNode(h.kernel(t, kernels.NameCopyArray), src, dst)
	require.NoError(t, err)

	// --- Act ---
	err = g.Process(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, -2, 3}, mt.Values())
	assert.Equal(t, 2, dst.Len())
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, dst.Items())
}

func TestRun_KernelErrorAbandons(t *testing.T) {
	t.Parallel()

	h := newHost(t)
	gain, err := data.NewScalar(h, cty.NumberIntVal(-1))
	require.NoError(t, err)
	out := h.image(t, 1, 1, 5)
	g, err := graph.New(h)
	require.NoError(t, err)
	defer g.Release()
	_, err = g.AddNode(h.kernel(t, kernels.NameGain), h.image(t, 1, 1, 3), gain, out)
	require.NoError(t, err)

	err = g.Process(context.Background())

	assert.ErrorIs(t, err, status.ErrGraphAbandoned)
	assert.Equal(t, status.InvalidValue, status.Of(err))
	assert.Equal(t, byte(5), out.Pixels()[0], "no read back after a failed compute")
}

func TestVerify_ForeignKernel(t *testing.T) {
	t.Parallel()

	h := newHost(t)
	sw, ok := h.targets[1].Supports(cmodel.Name, kernels.NameCopy)
	require.True(t, ok)
	g, err := graph.New(h)
	require.NoError(t, err)
	defer g.Release()
	n, err := g.AddNode(sw, h.image(t, 1, 1), h.image(t, 1, 1))
	require.NoError(t, err)
	require.NoError(t, n.Rebind(sw, 0))

	err = g.Verify(context.Background())

	assert.ErrorIs(t, err, status.ErrNotSupported)
}

func TestRegister_Options(t *testing.T) {
	t.Parallel()

	c := target.NewCatalog()
	Register(c)
	factory, ok := c.Lookup(Name)
	require.True(t, ok)

	m, err := factory(target.Options{"transfers": cty.NumberIntVal(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, m.(*Module).transfers)

	_, err = factory(target.Options{"lanes": cty.NumberIntVal(2)})
	assert.ErrorIs(t, err, status.ErrInvalidParameters)
	_, err = factory(target.Options{"transfers": cty.StringVal("many")})
	assert.ErrorIs(t, err, status.ErrInvalidType)
}
