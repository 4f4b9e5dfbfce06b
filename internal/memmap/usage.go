package memmap

import "fmt"

// Usage records how a mapped or accessed buffer may be used.
type Usage int

const (
	ReadOnly Usage = iota + 1
	WriteOnly
	ReadWrite
)

func (u Usage) String() string {
	switch u {
	case ReadOnly:
		return "read-only"
	case WriteOnly:
		return "write-only"
	case ReadWrite:
		return "read-write"
	}
	return fmt.Sprintf("usage(%d)", int(u))
}

// Valid reports whether u is one of the defined usages.
func (u Usage) Valid() bool { return u >= ReadOnly && u <= ReadWrite }

// Reads reports whether data must be staged into the buffer before use.
func (u Usage) Reads() bool { return u == ReadOnly || u == ReadWrite }

// Writes reports whether the buffer must be written back on close.
func (u Usage) Writes() bool { return u == WriteOnly || u == ReadWrite }
