// Package cmodel is the reference software target. Its kernels run on the
// caller's goroutine directly against host memory.
package cmodel

import (
	"context"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/kernels"
	"github.com/specialistvlad/vxgrid/internal/status"
	"github.com/specialistvlad/vxgrid/internal/target"
)

// Name is the target name the module registers under.
const Name = "khronos.c_model"

// Kernel enumerations owned by this target.
const (
	EnumCopy = iota + 1
	EnumAdd
	EnumBox3x3
	EnumGain
	EnumConvolve
	EnumHistogram
	EnumTranspose
	EnumCopyArray
	EnumSmooth
	EnumFail
)

// Module implements target.Module.
type Module struct{}

func New() *Module { return &Module{} }

// Register adds the module to c. The software target takes no options.
func Register(c *target.Catalog) {
	c.Register(Name, func(opts target.Options) (target.Module, error) {
		if unknown := opts.Unknown(); len(unknown) > 0 {
			return nil, status.Errorf(status.InvalidParameters, "%s: unknown options %v", Name, unknown)
		}
		return New(), nil
	})
}

func (m *Module) Name() string { return Name }

// Init registers the kernel table. A kernel the context refuses, such as a
// duplicate enumeration, is logged and skipped.
func (m *Module) Init(ctx context.Context, t *target.Target) error {
	logger := ctxlog.FromContext(ctx).With("target", t.Name())
	for _, def := range m.kernelTable(t) {
		if _, err := t.AddKernel(def); err != nil {
			logger.Warn("Kernel not added.", "kernel", def.Name, "enum", def.Enum, "error", err)
		}
	}
	if t.NumKernels() == 0 {
		return status.Errorf(status.NoResources, "no kernels registered")
	}
	return nil
}

func (m *Module) Deinit(context.Context, *target.Target) error { return nil }

func (m *Module) Process(ctx context.Context, t *target.Target, nodes []*graph.Node) graph.Action {
	return target.ProcessNodes(ctx, t, nodes, nil)
}

// Verify accepts nodes whose kernel lives in this target's table.
func (m *Module) Verify(_ context.Context, t *target.Target, n *graph.Node) error {
	k, ok := t.KernelByEnum(n.Kernel().Enum())
	if !ok || k != n.Kernel() {
		return status.Errorf(status.NotSupported, "%s does not hold kernel %s", t.Name(), n.Kernel().Name())
	}
	return nil
}

func (m *Module) kernelTable(t *target.Target) []graph.KernelDef {
	bodies := []struct {
		enum int
		name string
		body graph.ExecuteFunc
	}{
		{EnumCopy, kernels.NameCopy, copyImage},
		{EnumAdd, kernels.NameAdd, add},
		{EnumBox3x3, kernels.NameBox3x3, box3x3},
		{EnumGain, kernels.NameGain, gain},
		{EnumConvolve, kernels.NameConvolve, convolve},
		{EnumHistogram, kernels.NameHistogram, histogram},
		{EnumTranspose, kernels.NameTranspose, transpose},
		{EnumCopyArray, kernels.NameCopyArray, copyArray},
		{EnumFail, kernels.NameFail, fail},
	}
	defs := make([]graph.KernelDef, 0, len(bodies)+1)
	for _, b := range bodies {
		def, _ := kernels.Def(b.enum, b.name, b.body)
		defs = append(defs, def)
	}
	defs = append(defs, graph.KernelDef{
		Enum:   EnumSmooth,
		Name:   kernels.NameSmooth,
		Params: kernels.Params(kernels.NameSmooth),
		Impl:   &smooth{target: t},
	})
	return defs
}
