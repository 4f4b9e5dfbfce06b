package device

import (
	"encoding/binary"

	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/kernels"
	"github.com/specialistvlad/vxgrid/internal/status"
)

func copyProgram(_ *graph.Node, args []*arg) error {
	copy(args[1].buf, args[0].buf)
	return nil
}

func addProgram(_ *graph.Node, args []*arg) error {
	kernels.AddSaturate(args[0].buf, args[1].buf, args[2].buf)
	return nil
}

func boxProgram(n *graph.Node, args []*arg) error {
	src := args[0]
	kernels.Convolve(src.buf, args[1].buf, src.shape[imgWidth], src.shape[imgHeight], kernels.BoxCoefficients, 3, 3, 9, n.Border())
	return nil
}

func gainProgram(_ *graph.Node, args []*arg) error {
	if args[1].scalar < 0 {
		return status.Errorf(status.InvalidValue, "negative gain %g", args[1].scalar)
	}
	kernels.ApplyGain(args[0].buf, args[2].buf, args[1].scalar)
	return nil
}

func convolveProgram(n *graph.Node, args []*arg) error {
	src, conv := args[0], args[1]
	rows, cols := conv.shape[convRows], conv.shape[convCols]
	coeffs := make([]int16, rows*cols)
	for i := range coeffs {
		coeffs[i] = int16(binary.LittleEndian.Uint16(conv.buf[2*i:]))
	}
	kernels.Convolve(src.buf, args[2].buf, src.shape[imgWidth], src.shape[imgHeight], coeffs, rows, cols, conv.shape[convScale], n.Border())
	return nil
}

func histogramProgram(_ *graph.Node, args []*arg) error {
	dist := args[1]
	putCounts(dist.buf, kernels.Histogram(args[0].buf, dist.shape[distBins], dist.shape[distOffset], dist.shape[distRange]))
	return nil
}

func transposeProgram(_ *graph.Node, args []*arg) error {
	src := args[0]
	putFloats(args[1].buf, kernels.Transpose(floats(src.buf), src.shape[matRows], src.shape[matCols]))
	return nil
}

func copyArrayProgram(_ *graph.Node, args []*arg) error {
	src, dst := args[0], args[1]
	if src.shape[arrCount] > dst.shape[arrCapacity] {
		return status.Errorf(status.InvalidDimension, "%d items do not fit capacity %d", src.shape[arrCount], dst.shape[arrCapacity])
	}
	n := src.shape[arrCount] * src.shape[arrItemSize]
	copy(dst.buf[:n], src.buf[:n])
	dst.shape[arrCount] = src.shape[arrCount]
	return nil
}
