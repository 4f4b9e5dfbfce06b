package device

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
	"github.com/specialistvlad/vxgrid/internal/data"
	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// arg is one bound kernel argument: the shape values derived from the
// object's type, plus its device buffer or scalar value.
type arg struct {
	obj    reference.Object
	dir    graph.Direction
	shape  []int
	buf    []byte
	scalar float64
}

// program is a compiled device kernel.
type program func(n *graph.Node, args []*arg) error

// Shape slots per object type.
const (
	imgWidth, imgHeight, imgStride = 0, 1, 2

	arrItemSize, arrCount, arrCapacity, arrStride = 0, 1, 2, 3

	matRows, matCols = 0, 1

	distBins, distOffset, distRange = 0, 1, 2

	convRows, convCols, convScale = 0, 1, 2
)

// run executes one node as a command sequence.
func (m *Module) run(ctx context.Context, n *graph.Node, params []reference.Object, prog program) error {
	logger := ctxlog.FromContext(ctx).With("kernel", n.Kernel().Name())
	sig := n.Kernel().Params()
	args := make([]*arg, len(params))
	for i, p := range params {
		if p == nil {
			continue
		}
		args[i] = &arg{obj: p, dir: sig[i].Direction}
		if err := bind(args[i]); err != nil {
			return err
		}
	}

	// Buffer writes for every object the kernel reads.
	writes, wctx := errgroup.WithContext(ctx)
	writes.SetLimit(m.transfers)
	for _, a := range args {
		if a == nil || !a.dir.Reads() {
			continue
		}
		writes.Go(func() error {
			if err := wctx.Err(); err != nil {
				return err
			}
			return enqueueWrite(a)
		})
	}

	// The compute range waits on the writes.
	if err := writes.Wait(); err != nil {
		logger.Warn("Device write failed.", "error", err)
		return fmt.Errorf("write: %w", err)
	}
	if err := prog(n, args); err != nil {
		logger.Warn("Device kernel failed.", "error", err)
		return err
	}

	// Reads for every object the kernel writes wait on the compute.
	reads, rctx := errgroup.WithContext(ctx)
	reads.SetLimit(m.transfers)
	for _, a := range args {
		if a == nil || !a.dir.Writes() {
			continue
		}
		reads.Go(func() error {
			if err := rctx.Err(); err != nil {
				return err
			}
			return enqueueRead(a)
		})
	}
	if err := reads.Wait(); err != nil {
		logger.Warn("Device read failed.", "error", err)
		return fmt.Errorf("read: %w", err)
	}
	return nil
}

// bind derives the kernel arguments for a's object and allocates its
// device buffer.
func bind(a *arg) error {
	switch o := a.obj.(type) {
	case *data.Image:
		a.shape = []int{o.Width(), o.Height(), o.Stride()}
		a.buf = make([]byte, o.Stride()*o.Height())
	case *data.Array:
		a.shape = []int{o.ItemSize(), o.Len(), o.Capacity(), o.Stride()}
		a.buf = make([]byte, o.ItemSize()*o.Capacity())
	case *data.Matrix:
		a.shape = []int{o.Rows(), o.Cols()}
		a.buf = make([]byte, 4*o.Rows()*o.Cols())
	case *data.Distribution:
		a.shape = []int{o.Bins(), o.Offset(), o.Range()}
		a.buf = make([]byte, 4*o.Bins())
	case *data.Convolution:
		a.shape = []int{o.Rows(), o.Cols(), int(o.Scale())}
		a.buf = make([]byte, 2*o.Rows()*o.Cols())
	case *data.Scalar:
		if err := o.Get(&a.scalar); err != nil {
			return err
		}
	default:
		return status.Errorf(status.NotSupported, "device cannot bind %s", a.obj.Base().Type())
	}
	return nil
}

func enqueueWrite(a *arg) error {
	switch o := a.obj.(type) {
	case *data.Image:
		copy(a.buf, o.Pixels())
	case *data.Array:
		copy(a.buf, o.Items())
	case *data.Matrix:
		putFloats(a.buf, o.Values())
	case *data.Distribution:
		putCounts(a.buf, o.Counts())
	case *data.Convolution:
		for i, c := range o.Coefficients() {
			binary.LittleEndian.PutUint16(a.buf[2*i:], uint16(c))
		}
	}
	return nil
}

func enqueueRead(a *arg) error {
	switch o := a.obj.(type) {
	case *data.Image:
		copy(o.Pixels(), a.buf)
	case *data.Array:
		if err := o.Truncate(0); err != nil {
			return err
		}
		return o.Append(a.buf[:a.shape[arrCount]*a.shape[arrItemSize]])
	case *data.Matrix:
		return o.SetValues(floats(a.buf))
	case *data.Distribution:
		return o.SetCounts(counts(a.buf))
	default:
		return status.Errorf(status.NotSupported, "device cannot read back %s", a.obj.Base().Type())
	}
	return nil
}

func putFloats(buf []byte, v []float32) {
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
}

func floats(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return out
}

func putCounts(buf []byte, v []uint32) {
	for i, c := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], c)
	}
}

func counts(buf []byte) []uint32 {
	out := make([]uint32, len(buf)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(buf[4*i:])
	}
	return out
}
