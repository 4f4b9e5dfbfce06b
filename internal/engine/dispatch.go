package engine

import (
	"strings"

	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
	"github.com/specialistvlad/vxgrid/internal/target"
)

// TargetKind selects how SetNodeTarget picks a target.
type TargetKind int

const (
	// TargetAny takes the first loaded target able to run the node.
	TargetAny TargetKind = iota
	// TargetString takes the first loaded target whose name matches.
	TargetString
)

// FindKernelByName returns the kernel called name from the highest-priority
// enabled target that has it. The caller owns one external reference and
// must pass the kernel to ReleaseKernel.
func (c *Context) FindKernelByName(name string) (*graph.Kernel, error) {
	if strings.Contains(name, ":") {
		return nil, status.Errorf(status.InvalidParameters, "kernel name %q must not contain ':'", name)
	}
	k, t := c.scan(func(t *target.Target) (*graph.Kernel, bool) {
		return t.Supports("default", name)
	})
	if k == nil {
		return nil, status.Errorf(status.InvalidParameters, "failed to find kernel %s", name)
	}
	return c.hand(k, t), nil
}

// FindKernelByEnum is FindKernelByName keyed by enumeration.
func (c *Context) FindKernelByEnum(enum int) (*graph.Kernel, error) {
	k, t := c.scan(func(t *target.Target) (*graph.Kernel, bool) {
		return t.KernelByEnum(enum)
	})
	if k == nil {
		return nil, status.Errorf(status.InvalidParameters, "failed to find kernel %#x", enum)
	}
	return c.hand(k, t), nil
}

// ReleaseKernel drops a reference obtained from FindKernelByName or
// FindKernelByEnum.
func (c *Context) ReleaseKernel(k *graph.Kernel) error {
	if k == nil {
		return status.Errorf(status.InvalidReference, "release of nil kernel")
	}
	return reference.Release(k, reference.External)
}

func (c *Context) hand(k *graph.Kernel, t *target.Target) *graph.Kernel {
	k.SetAffinity(t.Index())
	k.Increment(reference.External)
	return k
}

// scan walks the priority list over enabled targets and returns the first
// hit of find.
func (c *Context) scan(find func(*target.Target) (*graph.Kernel, bool)) (*graph.Kernel, *target.Target) {
	for _, t := range c.Priority() {
		if !t.Enabled() {
			continue
		}
		if k, ok := find(t); ok {
			return k, t
		}
	}
	return nil, nil
}

// SetNodeTarget moves n onto another target. The chosen target must hold a
// kernel for the same operation: the same enumeration, or the same base
// name with an identical parameter signature.
func (c *Context) SetNodeTarget(n *graph.Node, kind TargetKind, name string) error {
	if n == nil || !n.Valid() {
		return status.Errorf(status.InvalidReference, "set target on invalid node")
	}
	current := n.Kernel()
	for _, t := range c.Priority() {
		if !t.Enabled() {
			continue
		}
		switch kind {
		case TargetAny:
		case TargetString:
			if !target.MatchName(t.Name(), name) {
				continue
			}
		default:
			return status.Errorf(status.NotSupported, "target kind %d", kind)
		}
		k, ok := t.KernelByEnum(current.Enum())
		if !ok {
			k, ok = t.Supports(t.Name(), current.BaseName())
		}
		if !ok {
			continue
		}
		if err := n.Rebind(k, t.Index()); err != nil {
			continue
		}
		return nil
	}
	return status.Errorf(status.NotSupported, "no target matching %q runs %s", name, current.Name())
}
