// Package device is an accelerator-class target. Each node runs as a
// command sequence against device-side buffers: writes for the inputs, an
// argument binding step, a compute range gated on the writes, and reads for
// the outputs gated on the compute.
//
// The command queue is simulated with errgroups so that the ordering and
// error propagation match a real queue while memory stays in process.
package device

import (
	"context"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/kernels"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
	"github.com/specialistvlad/vxgrid/internal/target"
)

// Name is the target name the module registers under.
const Name = "khronos.device"

// Kernel enumerations start above the software target's range.
const (
	EnumCopy = 0x100 + iota + 1
	EnumAdd
	EnumBox3x3
	EnumGain
	EnumConvolve
	EnumHistogram
	EnumTranspose
	EnumCopyArray
)

// DefaultTransfers is the number of buffer transfers in flight per command.
const DefaultTransfers = 4

// Module implements target.Module.
type Module struct {
	transfers int
	programs  map[int]program
}

// Option configures a Module.
type Option func(*Module)

// WithTransfers bounds how many buffer writes or reads run at once.
func WithTransfers(n int) Option {
	return func(m *Module) { m.transfers = n }
}

func New(opts ...Option) *Module {
	m := &Module{transfers: DefaultTransfers}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds the module to c. It reads the "transfers" option.
func Register(c *target.Catalog) {
	c.Register(Name, func(opts target.Options) (target.Module, error) {
		if unknown := opts.Unknown("transfers"); len(unknown) > 0 {
			return nil, status.Errorf(status.InvalidParameters, "%s: unknown options %v", Name, unknown)
		}
		n, err := opts.Int("transfers", DefaultTransfers)
		if err != nil {
			return nil, err
		}
		return New(WithTransfers(n)), nil
	})
}

func (m *Module) Name() string { return Name }

func (m *Module) Init(ctx context.Context, t *target.Target) error {
	if m.transfers <= 0 {
		return status.Errorf(status.InvalidValue, "device transfers %d", m.transfers)
	}
	logger := ctxlog.FromContext(ctx).With("target", t.Name())
	table := []struct {
		enum int
		name string
		prog program
	}{
		{EnumCopy, kernels.NameCopy, copyProgram},
		{EnumAdd, kernels.NameAdd, addProgram},
		{EnumBox3x3, kernels.NameBox3x3, boxProgram},
		{EnumGain, kernels.NameGain, gainProgram},
		{EnumConvolve, kernels.NameConvolve, convolveProgram},
		{EnumHistogram, kernels.NameHistogram, histogramProgram},
		{EnumTranspose, kernels.NameTranspose, transposeProgram},
		{EnumCopyArray, kernels.NameCopyArray, copyArrayProgram},
	}
	m.programs = make(map[int]program, len(table))
	for _, e := range table {
		prog := e.prog
		def, _ := kernels.Def(e.enum, e.name, func(ctx context.Context, n *graph.Node, params []reference.Object) error {
			return m.run(ctx, n, params, prog)
		})
		if _, err := t.AddKernel(def); err != nil {
			logger.Warn("Kernel not added.", "kernel", e.name, "enum", e.enum, "error", err)
			continue
		}
		m.programs[e.enum] = prog
	}
	if t.NumKernels() == 0 {
		return status.Errorf(status.NoResources, "no kernels registered")
	}
	return nil
}

func (m *Module) Deinit(context.Context, *target.Target) error {
	m.programs = nil
	return nil
}

func (m *Module) Process(ctx context.Context, t *target.Target, nodes []*graph.Node) graph.Action {
	return target.ProcessNodes(ctx, t, nodes, nil)
}

// Verify accepts nodes whose kernel has a compiled program on this target.
func (m *Module) Verify(_ context.Context, t *target.Target, n *graph.Node) error {
	k := n.Kernel()
	held, ok := t.KernelByEnum(k.Enum())
	if !ok || held != k {
		return status.Errorf(status.NotSupported, "%s does not hold kernel %s", t.Name(), k.Name())
	}
	if _, ok := m.programs[k.Enum()]; !ok {
		return status.Errorf(status.NotImplemented, "no device program for %s", k.Name())
	}
	return nil
}
