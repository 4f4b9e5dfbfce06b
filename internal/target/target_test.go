package target

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/memmap"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

type owner struct {
	base    reference.Reference
	objects *reference.Table
	targets []*Target
}

func newOwner() *owner {
	o := &owner{objects: reference.NewTable(128)}
	o.base.Init(reference.TypeContext, nil, nil)
	return o
}

func (o *owner) Base() *reference.Reference   { return &o.base }
func (o *owner) Objects() *reference.Table    { return o.objects }
func (o *owner) Maps() *memmap.Maps           { return memmap.NewMaps(1) }
func (o *owner) Accessors() *memmap.Accessors { return memmap.NewAccessors(1) }
func (o *owner) PerfEnabled() bool            { return false }
func (o *owner) Backend(i int) (graph.Backend, error) {
	if i < 0 || i >= len(o.targets) {
		return nil, status.Errorf(status.InvalidReference, "no target %d", i)
	}
	return o.targets[i], nil
}

type fakeModule struct {
	name    string
	defs    []graph.KernelDef
	initErr error
	deinits int
}

func (m *fakeModule) Name() string { return m.name }

func (m *fakeModule) Init(_ context.Context, t *Target) error {
	for _, d := range m.defs {
		if _, err := t.AddKernel(d); err != nil {
			return err
		}
	}
	return m.initErr
}

func (m *fakeModule) Deinit(context.Context, *Target) error {
	m.deinits++
	return nil
}

func (m *fakeModule) Process(ctx context.Context, t *Target, nodes []*graph.Node) graph.Action {
	return ProcessNodes(ctx, t, nodes, nil)
}

func (m *fakeModule) Verify(context.Context, *Target, *graph.Node) error { return nil }

func noop(context.Context, *graph.Node, []reference.Object) error { return nil }

func def(enum int, name string) graph.KernelDef {
	return graph.KernelDef{Enum: enum, Name: name, Impl: graph.ExecuteFunc(noop)}
}

func TestAddKernel_FirstFreeSlotUntilFull(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	o := newOwner()
	tg, err := New(o, &fakeModule{name: "khronos.c_model"}, 0, 1, WithKernelCapacity(2))
	require.NoError(t, err)

	// --- Act ---
	k1, err1 := tg.AddKernel(def(1, "a"))
	k2, err2 := tg.AddKernel(def(2, "b"))
	_, err3 := tg.AddKernel(def(3, "c"))

	// --- Assert ---
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.ErrorIs(t, err3, status.ErrNoResources)
	assert.Equal(t, []*graph.Kernel{k1, k2}, tg.Kernels())
	assert.Equal(t, 0, k1.Affinity())
	assert.Equal(t, "a", k1.Base().Name())
}

func TestAddKernel_DuplicateEnumAndGuard(t *testing.T) {
	t.Parallel()

	o := newOwner()
	taken := errors.New("taken")
	tg, err := New(o, &fakeModule{name: "t"}, 0, 1, WithEnumGuard(func(enum int) error {
		if enum == 9 {
			return status.Wrap(status.InvalidParameters, taken, "enum 9")
		}
		return nil
	}))
	require.NoError(t, err)

	_, err = tg.AddKernel(def(1, "a"))
	require.NoError(t, err)
	_, err = tg.AddKernel(def(1, "again"))
	assert.ErrorIs(t, err, status.ErrInvalidParameters)
	_, err = tg.AddKernel(def(9, "guarded"))
	assert.ErrorIs(t, err, taken)
	assert.Equal(t, 1, tg.NumKernels())
}

// validated is a kernel body with input and output validators.
type validated struct{}

func (validated) Execute(context.Context, *graph.Node, []reference.Object) error { return nil }
func (validated) ValidateInput(*graph.Node, int) error                           { return nil }
func (validated) ValidateOutput(*graph.Node, int, *graph.Meta) error             { return nil }

func TestRemoveKernel_UserKernelsOnly(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	o := newOwner()
	tg, err := New(o, &fakeModule{name: "t"}, 0, 1)
	require.NoError(t, err)
	builtin, err := tg.AddKernel(def(1, "builtin"))
	require.NoError(t, err)
	user, err := tg.AddKernel(graph.KernelDef{
		Enum:   2,
		Name:   "user",
		Params: []graph.Param{{Direction: graph.Input, Type: reference.TypeImage}},
		Impl:   validated{},
		User:   true,
	})
	require.NoError(t, err)

	// --- Act ---
	_, foundDisabled := tg.KernelByEnum(2)
	_, supportedDisabled := tg.Supports("default", "user")
	hasDisabled := tg.HasEnum(2)
	require.NoError(t, user.Finalize())
	_, foundEnabled := tg.KernelByEnum(2)
	builtinErr := tg.RemoveKernel(builtin)
	removeErr := tg.RemoveKernel(user)

	// --- Assert ---
	assert.False(t, foundDisabled)
	assert.False(t, supportedDisabled)
	assert.True(t, hasDisabled, "a disabled kernel still reserves its enumeration")
	assert.True(t, foundEnabled)
	assert.ErrorIs(t, builtinErr, status.ErrInvalidParameters)
	require.NoError(t, removeErr)
	assert.False(t, user.Valid())
	assert.False(t, tg.HasEnum(2))
	assert.Equal(t, 1, tg.NumKernels())
	assert.ErrorIs(t, tg.RemoveKernel(user), status.ErrInvalidParameters)
}

func TestLoad_FailureLeavesNoKernels(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	o := newOwner()
	mod := &fakeModule{name: "B", defs: []graph.KernelDef{def(5, "k")}, initErr: errors.New("no device")}
	tg, err := New(o, mod, 1, 1)
	require.NoError(t, err)
	before := o.objects.Len()

	// --- Act ---
	err = tg.Load(context.Background())

	// --- Assert ---
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no device")
	assert.False(t, tg.Enabled())
	assert.False(t, tg.Loaded())
	assert.Zero(t, tg.NumKernels())
	assert.Equal(t, before, o.objects.Len(), "the kernel object is released")
	require.NoError(t, tg.Unload(context.Background()))
	assert.Zero(t, mod.deinits, "deinit only runs for loaded targets")
}

func TestLoadUnload(t *testing.T) {
	t.Parallel()

	o := newOwner()
	mod := &fakeModule{name: "A", defs: []graph.KernelDef{def(5, "k"), def(6, "j")}}
	tg, err := New(o, mod, 0, 1)
	require.NoError(t, err)

	require.NoError(t, tg.Load(context.Background()))
	assert.True(t, tg.Enabled())
	assert.Equal(t, 2, tg.NumKernels())
	ks := tg.Kernels()

	require.NoError(t, tg.Unload(context.Background()))
	assert.Equal(t, 1, mod.deinits)
	assert.Zero(t, tg.NumKernels())
	for _, k := range ks {
		assert.False(t, k.Valid())
	}
	require.NoError(t, tg.Release())
	assert.Zero(t, o.objects.Len())
}

func TestSupports(t *testing.T) {
	t.Parallel()

	o := newOwner()
	tg, err := New(o, &fakeModule{name: "khronos.c_model"}, 0, 1)
	require.NoError(t, err)
	box, err := tg.AddKernel(def(1, "box_3x3:fast"))
	require.NoError(t, err)

	tests := []struct {
		target, kernel string
		want           bool
	}{
		{"khronos.c_model", "box_3x3", true},
		{"default", "box_3x3", true},
		{"power", "box_3x3", true},
		{"performance", "box_3x3", true},
		{"khronos.device", "box_3x3", false},
		{"default", "box_3x3:fast", false},
		{"default", "median", false},
	}
	for _, tc := range tests {
		k, ok := tg.Supports(tc.target, tc.kernel)
		assert.Equal(t, tc.want, ok, "%s/%s", tc.target, tc.kernel)
		if tc.want {
			assert.Same(t, box, k)
		}
	}
}

func TestMatchName(t *testing.T) {
	t.Parallel()

	assert.True(t, MatchName("khronos.c_model", "c_model"))
	assert.True(t, MatchName("khronos.c_model", "KHRONOS"))
	assert.True(t, MatchName("khronos.c_model", "khronos.c_model"))
	assert.True(t, MatchName("khronos.device.gpu", "device"))
	assert.False(t, MatchName("khronos.c_model", "model_x"))
	assert.False(t, MatchName("khronos.c_model", ""))
	assert.False(t, MatchName("xdevicex", "device"))
	assert.True(t, IsAlias("Default"))
	assert.False(t, IsAlias("khronos"))
}

func TestProcessNodes_StopsOnFailureAndCallback(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	o := newOwner()
	var ran []int
	fail := status.Errorf(status.Failure, "boom")
	body := func(enum int, err error) graph.KernelDef {
		return graph.KernelDef{Enum: enum, Name: "k", Impl: graph.ExecuteFunc(func(context.Context, *graph.Node, []reference.Object) error {
			ran = append(ran, enum)
			return err
		})}
	}
	mod := &fakeModule{name: "A", defs: []graph.KernelDef{body(1, nil), body(2, fail), body(3, nil)}}
	tg, err := New(o, mod, 0, 1)
	require.NoError(t, err)
	o.targets = append(o.targets, tg)
	require.NoError(t, tg.Load(context.Background()))

	g, err := graph.New(o)
	require.NoError(t, err)
	for _, k := range tg.Kernels() {
		_, err := g.AddNode(k)
		require.NoError(t, err)
	}

	// --- Act ---
	err = g.Process(context.Background())

	// --- Assert ---
	assert.ErrorIs(t, err, status.ErrGraphAbandoned)
	assert.Equal(t, []int{1, 2}, ran)

	// callback abandon on the first node
	ran = nil
	g.Nodes()[0].SetCallback(func(context.Context, *graph.Node) graph.Action { return graph.ActionAbandon })
	err = g.Process(context.Background())
	assert.ErrorIs(t, err, status.ErrGraphAbandoned)
	assert.Equal(t, []int{1}, ran)
}

func TestVerify_DisabledTarget(t *testing.T) {
	t.Parallel()

	o := newOwner()
	tg, err := New(o, &fakeModule{name: "A"}, 0, 1)
	require.NoError(t, err)

	err = tg.Verify(context.Background(), nil)

	assert.ErrorIs(t, err, status.ErrNotSupported)
}

func TestCatalog(t *testing.T) {
	t.Parallel()

	c := NewCatalog()
	c.Register("b", func(Options) (Module, error) { return &fakeModule{name: "b"}, nil })
	c.Register("a", func(Options) (Module, error) { return &fakeModule{name: "a"}, nil })

	assert.Equal(t, []string{"a", "b"}, c.Names())
	f, ok := c.Lookup("a")
	require.True(t, ok)
	m, err := f(nil)
	require.NoError(t, err)
	assert.Equal(t, "a", m.Name())
	_, ok = c.Lookup("zzz")
	assert.False(t, ok)
	assert.Panics(t, func() { c.Register("a", nil) })

	c.RegisterKernels("ext", func() KernelModule { return nil })
	_, ok = c.LookupKernels("ext")
	assert.True(t, ok)
	_, ok = c.LookupKernels("a")
	assert.False(t, ok, "target and kernel modules are separate")
	assert.Equal(t, []string{"ext"}, c.KernelModuleNames())
	assert.Panics(t, func() { c.RegisterKernels("ext", nil) })
}

func TestOptions(t *testing.T) {
	t.Parallel()

	opts := Options{
		"transfers": cty.NumberIntVal(3),
		"ratio":     cty.NumberFloatVal(0.5),
		"fast":      cty.True,
		"label":     cty.StringVal("x"),
	}

	n, err := opts.Int("transfers", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = opts.Int("missing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	_, err = opts.Int("ratio", 0)
	assert.ErrorIs(t, err, status.ErrInvalidValue)
	_, err = opts.Int("label", 0)
	assert.ErrorIs(t, err, status.ErrInvalidType)
	fast, err := opts.Bool("fast", false)
	require.NoError(t, err)
	assert.True(t, fast)
	assert.ElementsMatch(t, []string{"ratio", "fast", "label"}, opts.Unknown("transfers"))
}
