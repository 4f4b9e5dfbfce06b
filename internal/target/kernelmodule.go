package target

import (
	"context"

	"github.com/specialistvlad/vxgrid/internal/graph"
)

// KernelModule adds kernels to a running context and takes them away again.
// A context loads a module once and counts further loads.
type KernelModule interface {
	Publish(ctx context.Context, p Publisher) error
	Unpublish(ctx context.Context, p Publisher) error
}

// KernelModuleFactory creates a fresh KernelModule for one context.
type KernelModuleFactory func() KernelModule

// Publisher is the registration surface a KernelModule works against.
type Publisher interface {
	// AddUserKernel registers def on the named target, or on the first
	// loaded target when targetName is empty or an alias. The kernel
	// starts disabled.
	AddUserKernel(ctx context.Context, targetName string, def graph.KernelDef) (*graph.Kernel, error)
	FinalizeKernel(k *graph.Kernel) error
	RemoveKernel(ctx context.Context, k *graph.Kernel) error
}

// KernelLoader loads and unloads kernel modules by name. Composite kernels
// reach it through their node's runtime.
type KernelLoader interface {
	LoadKernels(ctx context.Context, name string) error
	UnloadKernels(ctx context.Context, name string) error
}
