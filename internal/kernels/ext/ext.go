// Package ext is the extension kernel module. It publishes host kernels onto
// the software target when a context loads it, and removes them on unload.
package ext

import (
	"context"
	"errors"
	"math"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
	"github.com/specialistvlad/vxgrid/internal/data"
	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/kernels"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
	"github.com/specialistvlad/vxgrid/internal/target"
	"github.com/specialistvlad/vxgrid/internal/targets/cmodel"
)

// Name is the module name contexts load it by.
const Name = kernels.ExtModule

// Kernel enumerations published by the module.
const (
	EnumInvert = 0x201 + iota
	EnumThreshold
)

// Module implements target.KernelModule.
type Module struct {
	published []*graph.Kernel
}

// Register adds the module to c.
func Register(c *target.Catalog) {
	c.RegisterKernels(Name, func() target.KernelModule { return &Module{} })
}

// Publish adds and finalizes every kernel of the module.
func (m *Module) Publish(ctx context.Context, p target.Publisher) error {
	bodies := []struct {
		enum int
		name string
		body graph.ExecuteFunc
	}{
		{EnumInvert, kernels.NameInvert, invert},
		{EnumThreshold, kernels.NameThreshold, threshold},
	}
	for _, b := range bodies {
		def, _ := kernels.Def(b.enum, b.name, b.body)
		k, err := p.AddUserKernel(ctx, cmodel.Name, def)
		if err != nil {
			return err
		}
		m.published = append(m.published, k)
		if err := p.FinalizeKernel(k); err != nil {
			return err
		}
	}
	ctxlog.FromContext(ctx).Debug("Extension kernels published.", "kernels", len(m.published))
	return nil
}

// Unpublish removes whatever Publish added, newest first.
func (m *Module) Unpublish(ctx context.Context, p target.Publisher) error {
	var errs []error
	for i := len(m.published) - 1; i >= 0; i-- {
		if err := p.RemoveKernel(ctx, m.published[i]); err != nil {
			errs = append(errs, err)
		}
	}
	m.published = nil
	return errors.Join(errs...)
}

func invert(_ context.Context, _ *graph.Node, params []reference.Object) error {
	src, dst := params[0].(*data.Image), params[1].(*data.Image)
	kernels.Invert(src.Pixels(), dst.Pixels())
	return nil
}

func threshold(_ context.Context, _ *graph.Node, params []reference.Object) error {
	src, level, dst := params[0].(*data.Image), params[1].(*data.Scalar), params[2].(*data.Image)
	var v float64
	if err := level.Get(&v); err != nil {
		return err
	}
	if v < 0 || v > math.MaxUint8 {
		return status.Errorf(status.InvalidValue, "threshold %g outside [0, 255]", v)
	}
	kernels.Threshold(src.Pixels(), dst.Pixels(), int(v))
	return nil
}
