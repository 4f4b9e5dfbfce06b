package cmodel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
	"github.com/specialistvlad/vxgrid/internal/data"
	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/kernels"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
	"github.com/specialistvlad/vxgrid/internal/target"
)

// smooth is a composite kernel: two box filters through a virtual image.
// While a node's child graph exists it holds the extension kernel module,
// when the runtime can load one.
type smooth struct {
	target *target.Target
	held   sync.Map // *graph.Node -> target.KernelLoader
}

func (s *smooth) ValidateInput(n *graph.Node, index int) error {
	img, err := kernels.ImageAt(n, index)
	if err != nil {
		return err
	}
	if img.Format() != data.FormatU8 {
		return status.Errorf(status.InvalidFormat, "smooth needs %s input", data.FormatU8)
	}
	return nil
}

func (s *smooth) ValidateOutput(n *graph.Node, _ int, meta *graph.Meta) error {
	src, err := kernels.ImageAt(n, 0)
	if err != nil {
		return err
	}
	meta.Type = reference.TypeImage
	meta.Width, meta.Height, meta.Format = src.Width(), src.Height(), data.FormatU8
	return nil
}

// Initialize builds and verifies the child graph.
func (s *smooth) Initialize(ctx context.Context, n *graph.Node, params []reference.Object) error {
	box, ok := s.target.KernelByEnum(EnumBox3x3)
	if !ok {
		return status.Errorf(status.NotSupported, "%s has no box filter", s.target.Name())
	}
	child, err := graph.NewChild(n)
	if err != nil {
		return err
	}
	if err := s.build(ctx, child, box, n, params); err != nil {
		_ = child.Release()
		return fmt.Errorf("child graph: %w", err)
	}
	n.SetChildGraph(child)
	s.hold(ctx, n)
	return nil
}

func (s *smooth) hold(ctx context.Context, n *graph.Node) {
	loader, ok := n.Graph().Runtime().(target.KernelLoader)
	if !ok {
		return
	}
	if err := loader.LoadKernels(ctx, kernels.ExtModule); err != nil {
		ctxlog.FromContext(ctx).Debug("Smooth runs without the extension module.", "error", err)
		return
	}
	s.held.Store(n, loader)
}

func (s *smooth) build(ctx context.Context, child *graph.Graph, box *graph.Kernel, n *graph.Node, params []reference.Object) error {
	mid, err := data.NewVirtualImage(child, 0, 0, "")
	if err != nil {
		return err
	}
	first, err := child.AddNode(box, params[0], mid)
	if err != nil {
		return err
	}
	second, err := child.AddNode(box, mid, params[1])
	if err != nil {
		return err
	}
	for _, inner := range []*graph.Node{first, second} {
		if err := inner.SetBorder(n.Border()); err != nil {
			return err
		}
	}
	if err := child.AddParameter(first, 0); err != nil {
		return err
	}
	if err := child.AddParameter(second, 1); err != nil {
		return err
	}
	return child.Verify(ctx)
}

func (s *smooth) Execute(ctx context.Context, n *graph.Node, _ []reference.Object) error {
	child := n.ChildGraph()
	if child == nil {
		return status.Errorf(status.InvalidGraph, "smooth node has no child graph")
	}
	return child.Process(ctx)
}

// Deinitialize releases the child graph and gives back the module hold
// taken by Initialize.
func (s *smooth) Deinitialize(ctx context.Context, n *graph.Node, _ []reference.Object) error {
	var errs []error
	if loader, ok := s.held.LoadAndDelete(n); ok {
		if err := loader.(target.KernelLoader).UnloadKernels(ctx, kernels.ExtModule); err != nil {
			errs = append(errs, err)
		}
	}
	if child := n.ChildGraph(); child != nil {
		n.SetChildGraph(nil)
		errs = append(errs, child.Release())
	}
	return errors.Join(errs...)
}
