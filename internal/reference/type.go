package reference

import "fmt"

// Type tags the concrete kind of object a Reference belongs to.
type Type int

const (
	TypeInvalid Type = iota
	TypeContext
	TypeGraph
	TypeNode
	TypeKernel
	TypeTarget
	TypeParameter
	TypeError
	TypeScalar
	TypeImage
	TypeArray
	TypeMatrix
	TypeConvolution
	TypeDistribution
)

var typeNames = [...]string{
	TypeInvalid:      "invalid",
	TypeContext:      "context",
	TypeGraph:        "graph",
	TypeNode:         "node",
	TypeKernel:       "kernel",
	TypeTarget:       "target",
	TypeParameter:    "parameter",
	TypeError:        "error",
	TypeScalar:       "scalar",
	TypeImage:        "image",
	TypeArray:        "array",
	TypeMatrix:       "matrix",
	TypeConvolution:  "convolution",
	TypeDistribution: "distribution",
}

func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// IsData reports whether t is a data object kind that can be bound to a node
// parameter and mapped.
func (t Type) IsData() bool {
	return t >= TypeScalar && t <= TypeDistribution
}

// Kind selects which of the two counts an operation applies to.
type Kind int

const (
	External Kind = iota
	Internal
)

func (k Kind) String() string {
	if k == Internal {
		return "internal"
	}
	return "external"
}
