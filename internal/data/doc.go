// Package data implements the graph data objects: images, arrays,
// matrices, scalars, convolutions and distributions.
//
// Objects created with a runtime are held by the caller, who must Release
// them. Virtual objects are created inside a graph, have no memory until
// the graph is verified, and are freed with the graph.
//
// Host access to object memory goes through the runtime's memory-map and
// accessor tables, so open mappings show up in teardown reports.
package data

import (
	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

func register(rt graph.Runtime, obj reference.Object, typ reference.Type) error {
	if rt == nil || !rt.Base().Valid() {
		return status.Errorf(status.InvalidReference, "%s without a valid context", typ)
	}
	return rt.Objects().Add(obj, typ, rt.Base(), nil, reference.External)
}

func registerVirtual(g *graph.Graph, obj reference.Object, typ reference.Type) error {
	if g == nil || !g.ValidAs(reference.TypeGraph) {
		return status.Errorf(status.InvalidReference, "virtual %s without a valid graph", typ)
	}
	rt := g.Runtime()
	if err := rt.Objects().Add(obj, typ, rt.Base(), &g.Reference, reference.Internal); err != nil {
		return err
	}
	obj.Base().MarkVirtual()
	if err := g.AdoptVirtual(obj); err != nil {
		reference.ForceRelease(obj)
		return err
	}
	return nil
}

// Release drops the caller's reference to a data object.
func Release(obj reference.Object) error {
	return reference.Release(obj, reference.External)
}

func fill(have *int, want int, name string) error {
	switch {
	case want == 0:
	case *have == 0:
		*have = want
	case *have != want:
		return status.Errorf(status.InvalidDimension, "%s is %d, output needs %d", name, *have, want)
	}
	return nil
}
