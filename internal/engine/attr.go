package engine

import (
	"context"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// Query returns the context attribute attr.
func (c *Context) Query(attr string) (cty.Value, error) {
	if !c.ValidAs(reference.TypeContext) {
		return cty.NilVal, status.Errorf(status.InvalidReference, "query of destroyed context")
	}
	switch attr {
	case "id":
		return cty.StringVal(c.id.String()), nil
	case "references":
		return cty.NumberIntVal(int64(c.objects.Len())), nil
	case "targets":
		var names []string
		for _, t := range c.Priority() {
			names = append(names, t.Name())
		}
		return graph.StringList(names), nil
	case "modules":
		return graph.StringList(c.KernelModules()), nil
	case "kernels":
		return graph.StringList(c.kernelNames()), nil
	case "unique_kernels":
		return cty.NumberIntVal(int64(len(c.kernelNames()))), nil
	case "perf_enabled":
		return cty.BoolVal(c.PerfEnabled()), nil
	case "immediate_border":
		return graph.BorderValue(c.ImmediateBorder()), nil
	}
	return cty.NilVal, graph.UnknownAttr(reference.TypeContext, attr)
}

// SetAttribute changes the context attribute attr. Only the immediate
// border is writable.
func (c *Context) SetAttribute(attr string, v cty.Value) error {
	if !c.ValidAs(reference.TypeContext) {
		return status.Errorf(status.InvalidReference, "set attribute of destroyed context")
	}
	switch attr {
	case "immediate_border":
		b, err := graph.BorderFromValue(v)
		if err != nil {
			return err
		}
		c.borderMu.Lock()
		c.immediateBorder = b
		c.borderMu.Unlock()
		return nil
	case "id", "references", "targets", "modules", "kernels", "unique_kernels", "perf_enabled":
		return graph.ReadOnlyAttr(reference.TypeContext, attr)
	}
	return graph.UnknownAttr(reference.TypeContext, attr)
}

// ImmediateBorder is the border Immediate gives its node.
func (c *Context) ImmediateBorder() graph.Border {
	c.borderMu.Lock()
	defer c.borderMu.Unlock()
	return c.immediateBorder
}

// Directive applies d to the whole context. Graphs with their own
// performance directive keep it.
func (c *Context) Directive(ctx context.Context, d graph.Directive) error {
	if !c.ValidAs(reference.TypeContext) {
		return status.Errorf(status.InvalidReference, "directive on destroyed context")
	}
	switch d {
	case graph.DirectiveEnablePerformance:
		c.perf.Store(true)
	case graph.DirectiveDisablePerformance:
		c.perf.Store(false)
	default:
		return status.Errorf(status.NotSupported, "context does not support %s", d)
	}
	ctxlog.FromContext(ctx).Debug("Directive applied.", "context", c.id.String(), "directive", d.String())
	return nil
}

// kernelNames lists the distinct names of enabled kernels on loaded targets.
func (c *Context) kernelNames() []string {
	seen := make(map[string]struct{})
	for _, t := range c.Priority() {
		for _, k := range t.Kernels() {
			if k.Enabled() {
				seen[k.Name()] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
