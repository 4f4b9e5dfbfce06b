package status

import "fmt"

// Status is the outcome code reported by every runtime entry point.
type Status int

const (
	Success Status = iota
	Failure
	InvalidReference
	InvalidParameters
	InvalidValue
	InvalidType
	InvalidDimension
	InvalidFormat
	InvalidGraph
	NoResources
	NoMemory
	NotSupported
	NotImplemented
	GraphAbandoned
	GraphScheduled
)

var names = map[Status]string{
	Success:           "SUCCESS",
	Failure:           "FAILURE",
	InvalidReference:  "INVALID_REFERENCE",
	InvalidParameters: "INVALID_PARAMETERS",
	InvalidValue:      "INVALID_VALUE",
	InvalidType:       "INVALID_TYPE",
	InvalidDimension:  "INVALID_DIMENSION",
	InvalidFormat:     "INVALID_FORMAT",
	InvalidGraph:      "INVALID_GRAPH",
	NoResources:       "NO_RESOURCES",
	NoMemory:          "NO_MEMORY",
	NotSupported:      "NOT_SUPPORTED",
	NotImplemented:    "NOT_IMPLEMENTED",
	GraphAbandoned:    "GRAPH_ABANDONED",
	GraphScheduled:    "GRAPH_SCHEDULED",
}

// All lists every non-success status in declaration order.
func All() []Status {
	out := make([]Status, 0, len(names)-1)
	for s := Failure; s <= GraphScheduled; s++ {
		out = append(out, s)
	}
	return out
}

func (s Status) String() string {
	if n, ok := names[s]; ok {
		return n
	}
	return fmt.Sprintf("STATUS(%d)", int(s))
}
