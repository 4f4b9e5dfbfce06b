package graph

import (
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// Parameter exposes one node parameter as a parameter of the whole graph.
type Parameter struct {
	Node  *Node
	Index int
}

// AddParameter exposes parameter index of n, which must belong to g, as the
// next graph parameter.
func (g *Graph) AddParameter(n *Node, index int) error {
	if n == nil || !n.Valid() || n.graph != g {
		return status.Errorf(status.InvalidReference, "node is not part of this graph")
	}
	if index < 0 || index >= n.Kernel().NumParams() {
		return status.Errorf(status.InvalidParameters, "%s has no parameter %d", n.Kernel().Name(), index)
	}
	g.mu.Lock()
	g.params = append(g.params, Parameter{Node: n, Index: index})
	g.mu.Unlock()
	return nil
}

// NumParameters returns the number of graph parameters.
func (g *Graph) NumParameters() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.params)
}

// Parameter returns graph parameter i.
func (g *Graph) Parameter(i int) (Parameter, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i < 0 || i >= len(g.params) {
		return Parameter{}, status.Errorf(status.InvalidParameters, "graph has no parameter %d", i)
	}
	return g.params[i], nil
}

// SetParameter binds obj to the node parameter behind graph parameter i.
func (g *Graph) SetParameter(i int, obj reference.Object) error {
	p, err := g.Parameter(i)
	if err != nil {
		return err
	}
	return p.Node.SetParameter(p.Index, obj)
}
