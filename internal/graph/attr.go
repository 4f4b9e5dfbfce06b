package graph

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// Directive is a runtime switch applied to a context or a graph.
type Directive int

const (
	DirectiveEnablePerformance Directive = iota + 1
	DirectiveDisablePerformance
)

func (d Directive) String() string {
	switch d {
	case DirectiveEnablePerformance:
		return "enable_performance"
	case DirectiveDisablePerformance:
		return "disable_performance"
	}
	return fmt.Sprintf("directive(%d)", int(d))
}

// perfMode overrides the context's perf setting for one graph.
const (
	perfInherit int32 = iota
	perfOn
	perfOff
)

// PerfType is the object type of a "perf" attribute. Durations are in
// nanoseconds.
var PerfType = cty.Object(map[string]cty.Type{
	"num": cty.Number,
	"tmp": cty.Number,
	"sum": cty.Number,
	"avg": cty.Number,
	"min": cty.Number,
	"max": cty.Number,
})

// BorderType is the object type of a "border" attribute.
var BorderType = cty.Object(map[string]cty.Type{
	"mode":     cty.String,
	"constant": cty.Number,
})

type perfAttr struct {
	Num uint64 `cty:"num"`
	Tmp int64  `cty:"tmp"`
	Sum int64  `cty:"sum"`
	Avg int64  `cty:"avg"`
	Min int64  `cty:"min"`
	Max int64  `cty:"max"`
}

type borderAttr struct {
	Mode     string `cty:"mode"`
	Constant uint32 `cty:"constant"`
}

var borderModes = map[BorderMode]string{
	BorderUndefined: "undefined",
	BorderConstant:  "constant",
	BorderReplicate: "replicate",
}

func (m BorderMode) String() string {
	if s, ok := borderModes[m]; ok {
		return s
	}
	return fmt.Sprintf("border(%d)", int(m))
}

// PerfValue converts s to a PerfType object.
func PerfValue(s PerfStats) cty.Value {
	v, err := gocty.ToCtyValue(perfAttr{
		Num: s.Num,
		Tmp: int64(s.Tmp),
		Sum: int64(s.Sum),
		Avg: int64(s.Avg),
		Min: int64(s.Min),
		Max: int64(s.Max),
	}, PerfType)
	if err != nil {
		panic(err)
	}
	return v
}

// BorderValue converts b to a BorderType object.
func BorderValue(b Border) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"mode":     cty.StringVal(b.Mode.String()),
		"constant": cty.NumberUIntVal(uint64(b.Constant)),
	})
}

// BorderFromValue parses a BorderType object. The constant may be omitted
// for modes that do not use it.
func BorderFromValue(v cty.Value) (Border, error) {
	if v.IsNull() || !v.IsKnown() {
		return Border{}, status.Errorf(status.InvalidValue, "border is null")
	}
	if !v.Type().IsObjectType() || !v.Type().HasAttribute("mode") {
		return Border{}, status.Errorf(status.InvalidType, "border is %s, want object with mode", v.Type().FriendlyName())
	}
	var b borderAttr
	if err := gocty.FromCtyValue(v.GetAttr("mode"), &b.Mode); err != nil {
		return Border{}, status.Wrap(status.InvalidType, err, "border mode")
	}
	if v.Type().HasAttribute("constant") {
		if c := v.GetAttr("constant"); !c.IsNull() {
			if err := gocty.FromCtyValue(c, &b.Constant); err != nil {
				return Border{}, status.Wrap(status.InvalidValue, err, "border constant")
			}
		}
	}
	for mode, name := range borderModes {
		if name == b.Mode {
			return Border{Mode: mode, Constant: b.Constant}, nil
		}
	}
	return Border{}, status.Errorf(status.InvalidValue, "unknown border mode %q", b.Mode)
}

// StringAttr reads a string attribute value.
func StringAttr(attr string, v cty.Value) (string, error) {
	if v.IsNull() || !v.IsKnown() {
		return "", status.Errorf(status.InvalidValue, "attribute %s is null", attr)
	}
	if !v.Type().Equals(cty.String) {
		return "", status.Errorf(status.InvalidType, "attribute %s is %s, want string", attr, v.Type().FriendlyName())
	}
	return v.AsString(), nil
}

// StringList builds a list of strings, empty lists included.
func StringList(ss []string) cty.Value {
	if len(ss) == 0 {
		return cty.ListValEmpty(cty.String)
	}
	vals := make([]cty.Value, len(ss))
	for i, s := range ss {
		vals[i] = cty.StringVal(s)
	}
	return cty.ListVal(vals)
}

// UnknownAttr is the error for an attribute an object does not have.
func UnknownAttr(typ reference.Type, attr string) error {
	return status.Errorf(status.NotSupported, "%s has no attribute %q", typ, attr)
}

// ReadOnlyAttr is the error for setting an attribute that can only be queried.
func ReadOnlyAttr(typ reference.Type, attr string) error {
	return status.Errorf(status.InvalidParameters, "%s attribute %q is read-only", typ, attr)
}

// Query returns the graph attribute attr.
func (g *Graph) Query(attr string) (cty.Value, error) {
	if !g.ValidAs(reference.TypeGraph) {
		return cty.NilVal, status.Errorf(status.InvalidReference, "query of invalid graph")
	}
	switch attr {
	case "name":
		return cty.StringVal(g.Name()), nil
	case "state":
		return cty.StringVal(g.State().String()), nil
	case "verified":
		return cty.BoolVal(g.IsVerified()), nil
	case "nodes":
		return cty.NumberIntVal(int64(len(g.Nodes()))), nil
	case "parameters":
		g.mu.Lock()
		n := len(g.params)
		g.mu.Unlock()
		return cty.NumberIntVal(int64(n)), nil
	case "perf":
		return PerfValue(g.Perf()), nil
	case "perf_enabled":
		return cty.BoolVal(g.PerfEnabled()), nil
	}
	return cty.NilVal, UnknownAttr(reference.TypeGraph, attr)
}

// SetAttribute changes the graph attribute attr. Only the name is writable.
func (g *Graph) SetAttribute(attr string, v cty.Value) error {
	if !g.ValidAs(reference.TypeGraph) {
		return status.Errorf(status.InvalidReference, "set attribute of invalid graph")
	}
	switch attr {
	case "name":
		s, err := StringAttr(attr, v)
		if err != nil {
			return err
		}
		g.SetName(s)
		return nil
	case "state", "verified", "nodes", "parameters", "perf", "perf_enabled":
		return ReadOnlyAttr(reference.TypeGraph, attr)
	}
	return UnknownAttr(reference.TypeGraph, attr)
}

// Directive applies d to this graph only. Performance directives override
// the context's setting for later runs of the graph.
func (g *Graph) Directive(d Directive) error {
	if !g.ValidAs(reference.TypeGraph) {
		return status.Errorf(status.InvalidReference, "directive on invalid graph")
	}
	switch d {
	case DirectiveEnablePerformance:
		g.perfMode.Store(perfOn)
	case DirectiveDisablePerformance:
		g.perfMode.Store(perfOff)
	default:
		return status.Errorf(status.NotSupported, "graph does not support %s", d)
	}
	return nil
}

// PerfEnabled reports whether runs of the graph capture timings.
func (g *Graph) PerfEnabled() bool {
	switch g.perfMode.Load() {
	case perfOn:
		return true
	case perfOff:
		return false
	}
	return g.rt.PerfEnabled()
}

// Query returns the node attribute attr.
func (n *Node) Query(attr string) (cty.Value, error) {
	if !n.ValidAs(reference.TypeNode) {
		return cty.NilVal, status.Errorf(status.InvalidReference, "query of invalid node")
	}
	switch attr {
	case "name":
		return cty.StringVal(n.Name()), nil
	case "status":
		return cty.StringVal(status.Of(n.Status()).String()), nil
	case "state":
		return cty.StringVal(n.State().String()), nil
	case "kernel":
		return cty.StringVal(n.Kernel().Name()), nil
	case "affinity":
		return cty.NumberIntVal(int64(n.Affinity())), nil
	case "parameters":
		return cty.NumberIntVal(int64(n.Kernel().NumParams())), nil
	case "border":
		return BorderValue(n.Border()), nil
	case "perf":
		return PerfValue(n.Perf()), nil
	}
	return cty.NilVal, UnknownAttr(reference.TypeNode, attr)
}

// SetAttribute changes the node attribute attr. The border cannot change
// once the graph is verified.
func (n *Node) SetAttribute(attr string, v cty.Value) error {
	if !n.ValidAs(reference.TypeNode) {
		return status.Errorf(status.InvalidReference, "set attribute of invalid node")
	}
	switch attr {
	case "name":
		s, err := StringAttr(attr, v)
		if err != nil {
			return err
		}
		n.SetName(s)
		return nil
	case "border":
		if n.graph.IsVerified() {
			return status.Errorf(status.NotSupported, "border of %s is fixed once its graph is verified", n.String())
		}
		b, err := BorderFromValue(v)
		if err != nil {
			return err
		}
		return n.SetBorder(b)
	case "status", "state", "kernel", "affinity", "parameters", "perf":
		return ReadOnlyAttr(reference.TypeNode, attr)
	}
	return UnknownAttr(reference.TypeNode, attr)
}
