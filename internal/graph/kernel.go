package graph

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// MaxParams bounds the length of a kernel signature.
const MaxParams = 16

// Direction is the data-flow direction of a kernel parameter.
type Direction int

const (
	Input Direction = iota
	Output
	Bidirectional
)

func (d Direction) String() string {
	switch d {
	case Output:
		return "output"
	case Bidirectional:
		return "bidirectional"
	}
	return "input"
}

// Reads reports whether the kernel consumes the parameter's contents.
func (d Direction) Reads() bool { return d != Output }

// Writes reports whether the kernel produces the parameter's contents.
func (d Direction) Writes() bool { return d != Input }

// ParamState says whether a parameter must be bound before verification.
type ParamState int

const (
	Required ParamState = iota
	Optional
)

// Param describes one slot of a kernel signature.
type Param struct {
	Direction Direction
	Type      reference.Type
	State     ParamState
}

// Executor runs a kernel body. Every kernel implementation provides it; the
// optional callbacks below are discovered by type assertion.
type Executor interface {
	Execute(ctx context.Context, n *Node, params []reference.Object) error
}

// ExecuteFunc adapts a plain function to Executor.
type ExecuteFunc func(ctx context.Context, n *Node, params []reference.Object) error

func (f ExecuteFunc) Execute(ctx context.Context, n *Node, params []reference.Object) error {
	return f(ctx, n, params)
}

// Validator checks the node as a whole once all outputs have metadata.
type Validator interface {
	Validate(n *Node, params []reference.Object, metas []*Meta) error
}

// InputValidator checks one input or bidirectional parameter.
type InputValidator interface {
	ValidateInput(n *Node, index int) error
}

// OutputValidator fills meta with the shape the kernel will produce at index.
type OutputValidator interface {
	ValidateOutput(n *Node, index int, meta *Meta) error
}

// Initializer runs at the end of verification. Composite kernels build their
// child graph here.
type Initializer interface {
	Initialize(ctx context.Context, n *Node, params []reference.Object) error
}

// Deinitializer undoes Initialize when the graph is re-verified or released.
type Deinitializer interface {
	Deinitialize(ctx context.Context, n *Node, params []reference.Object) error
}

// KernelDef is the registration record a target module supplies per kernel.
// A User kernel is added at run time, starts disabled until Finalize, and
// can be removed again.
type KernelDef struct {
	Enum   int
	Name   string
	Params []Param
	Impl   Executor
	User   bool
}

// Kernel is a registered kernel. It is immutable once registered except for
// its enabled flag and its affinity, which lookups set to the index of the
// target they found it on.
type Kernel struct {
	reference.Reference

	enum     int
	name     string
	params   []Param
	impl     Executor
	user     bool
	enabled  atomic.Bool
	affinity atomic.Int32
}

// NewKernel checks def and builds an unregistered kernel. The caller registers
// it in an object table.
func NewKernel(def KernelDef) (*Kernel, error) {
	switch {
	case def.Name == "":
		return nil, status.Errorf(status.InvalidParameters, "kernel %d has no name", def.Enum)
	case def.Impl == nil:
		return nil, status.Errorf(status.InvalidParameters, "kernel %s has no implementation", def.Name)
	case len(def.Params) > MaxParams:
		return nil, status.Errorf(status.InvalidParameters, "kernel %s has %d parameters, limit is %d", def.Name, len(def.Params), MaxParams)
	}
	for i, p := range def.Params {
		if !p.Type.IsData() {
			return nil, status.Errorf(status.InvalidType, "kernel %s parameter %d has non-data type %s", def.Name, i, p.Type)
		}
	}
	if def.User {
		if len(def.Params) == 0 {
			return nil, status.Errorf(status.InvalidParameters, "user kernel %s has no parameters", def.Name)
		}
		if !validates(def.Impl) {
			return nil, status.Errorf(status.InvalidParameters, "user kernel %s needs a validator or input and output validators", def.Name)
		}
	}
	k := &Kernel{
		enum:   def.Enum,
		name:   def.Name,
		params: append([]Param(nil), def.Params...),
		impl:   def.Impl,
		user:   def.User,
	}
	k.enabled.Store(!def.User)
	k.affinity.Store(-1)
	return k, nil
}

func validates(impl Executor) bool {
	if _, ok := impl.(Validator); ok {
		return true
	}
	_, in := impl.(InputValidator)
	_, out := impl.(OutputValidator)
	return in && out
}

// Finalize checks the signature once more and enables the kernel. Nodes can
// only be created from enabled kernels.
func (k *Kernel) Finalize() error {
	if !k.ValidAs(reference.TypeKernel) {
		return status.Errorf(status.InvalidReference, "finalize of invalid kernel")
	}
	for i, p := range k.params {
		if p.Direction < Input || p.Direction > Bidirectional {
			return status.Errorf(status.InvalidParameters, "kernel %s parameter %d has direction %d", k.name, i, p.Direction)
		}
		if !p.Type.IsData() {
			return status.Errorf(status.InvalidParameters, "kernel %s parameter %d has type %s", k.name, i, p.Type)
		}
	}
	k.enabled.Store(true)
	return nil
}

// Disable takes the kernel out of lookups. Nodes already built on it keep
// their reference but no target will accept them again.
func (k *Kernel) Disable() { k.enabled.Store(false) }

func (k *Kernel) Enabled() bool { return k.enabled.Load() }
func (k *Kernel) IsUser() bool  { return k.user }

func (k *Kernel) Enum() int         { return k.enum }
func (k *Kernel) Name() string      { return k.name }
func (k *Kernel) Impl() Executor    { return k.impl }
func (k *Kernel) NumParams() int    { return len(k.params) }
func (k *Kernel) Param(i int) Param { return k.params[i] }

// Params returns a copy of the signature.
func (k *Kernel) Params() []Param { return append([]Param(nil), k.params...) }

// BaseName is the registered name without any ":variant" suffix.
func (k *Kernel) BaseName() string {
	base, _ := SplitKernelName(k.name)
	return base
}

// Variant is the ":variant" suffix, or "default".
func (k *Kernel) Variant() string {
	_, v := SplitKernelName(k.name)
	return v
}

func (k *Kernel) Affinity() int            { return int(k.affinity.Load()) }
func (k *Kernel) SetAffinity(affinity int) { k.affinity.Store(int32(affinity)) }

// SplitKernelName splits "name:variant". A missing variant is "default".
func SplitKernelName(full string) (name, variant string) {
	name, variant, found := strings.Cut(full, ":")
	if !found || variant == "" {
		variant = "default"
	}
	return name, variant
}
