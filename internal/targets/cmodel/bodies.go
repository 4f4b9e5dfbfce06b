package cmodel

import (
	"context"

	"github.com/specialistvlad/vxgrid/internal/data"
	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/kernels"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

func copyImage(_ context.Context, _ *graph.Node, params []reference.Object) error {
	src, dst := params[0].(*data.Image), params[1].(*data.Image)
	copy(dst.Pixels(), src.Pixels())
	return nil
}

func add(_ context.Context, _ *graph.Node, params []reference.Object) error {
	a, b, dst := params[0].(*data.Image), params[1].(*data.Image), params[2].(*data.Image)
	kernels.AddSaturate(a.Pixels(), b.Pixels(), dst.Pixels())
	return nil
}

func box3x3(_ context.Context, n *graph.Node, params []reference.Object) error {
	src, dst := params[0].(*data.Image), params[1].(*data.Image)
	kernels.Convolve(src.Pixels(), dst.Pixels(), src.Width(), src.Height(), kernels.BoxCoefficients, 3, 3, 9, n.Border())
	return nil
}

func gain(_ context.Context, _ *graph.Node, params []reference.Object) error {
	src, factor, dst := params[0].(*data.Image), params[1].(*data.Scalar), params[2].(*data.Image)
	var g float64
	if err := factor.Get(&g); err != nil {
		return err
	}
	if g < 0 {
		return status.Errorf(status.InvalidValue, "negative gain %g", g)
	}
	kernels.ApplyGain(src.Pixels(), dst.Pixels(), g)
	return nil
}

func convolve(_ context.Context, n *graph.Node, params []reference.Object) error {
	src, conv, dst := params[0].(*data.Image), params[1].(*data.Convolution), params[2].(*data.Image)
	kernels.Convolve(src.Pixels(), dst.Pixels(), src.Width(), src.Height(),
		conv.Coefficients(), conv.Rows(), conv.Cols(), int(conv.Scale()), n.Border())
	return nil
}

func histogram(_ context.Context, _ *graph.Node, params []reference.Object) error {
	src, dist := params[0].(*data.Image), params[1].(*data.Distribution)
	return dist.SetCounts(kernels.Histogram(src.Pixels(), dist.Bins(), dist.Offset(), dist.Range()))
}

func transpose(_ context.Context, _ *graph.Node, params []reference.Object) error {
	src, dst := params[0].(*data.Matrix), params[1].(*data.Matrix)
	return dst.SetValues(kernels.Transpose(src.Values(), src.Rows(), src.Cols()))
}

func copyArray(_ context.Context, _ *graph.Node, params []reference.Object) error {
	src, dst := params[0].(*data.Array), params[1].(*data.Array)
	if err := dst.Truncate(0); err != nil {
		return err
	}
	return dst.Append(src.Items())
}

// fail always fails. Graphs use it to exercise abandonment.
func fail(context.Context, *graph.Node, []reference.Object) error {
	return status.Errorf(status.Failure, "kernel failed on request")
}
