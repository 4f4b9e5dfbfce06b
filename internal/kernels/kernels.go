// Package kernels holds the kernel names shared by every target and the
// pixel arithmetic behind the demonstration kernels. The functions work on
// plain buffers so that both host and device targets can run them.
package kernels

import (
	"math"

	"github.com/specialistvlad/vxgrid/internal/graph"
)

// Kernel names. Targets may register them with a ":variant" suffix.
const (
	NameCopy      = "org.khronos.openvx.copy"
	NameAdd       = "org.khronos.openvx.add"
	NameBox3x3    = "org.khronos.openvx.box_3x3"
	NameConvolve  = "org.khronos.openvx.custom_convolution"
	NameHistogram = "org.khronos.openvx.histogram"
	NameGain      = "org.vxgrid.gain"
	NameTranspose = "org.vxgrid.matrix_transpose"
	NameCopyArray = "org.vxgrid.copy_array"
	NameSmooth    = "org.vxgrid.smooth"
	NameFail      = "org.vxgrid.fail"

	// Published by the extension kernel module, not by any target.
	NameInvert    = "org.vxgrid.invert"
	NameThreshold = "org.vxgrid.threshold"
)

// ExtModule is the name of the extension kernel module.
const ExtModule = "vxgrid.ext"

// BoxCoefficients is the 3x3 box filter as a convolution.
var BoxCoefficients = []int16{1, 1, 1, 1, 1, 1, 1, 1, 1}

func saturate(v int) byte {
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint8:
		return math.MaxUint8
	}
	return byte(v)
}

// AddSaturate writes a[i]+b[i], clamped to 255, into out.
func AddSaturate(a, b, out []byte) {
	for i := range out {
		out[i] = saturate(int(a[i]) + int(b[i]))
	}
}

// ApplyGain writes in[i]*gain, rounded and clamped, into out.
func ApplyGain(in, out []byte, gain float64) {
	for i := range out {
		out[i] = saturate(int(math.Round(float64(in[i]) * gain)))
	}
}

// Invert writes 255-in[i] into out.
func Invert(in, out []byte) {
	for i := range out {
		out[i] = math.MaxUint8 - in[i]
	}
}

// Threshold writes 255 where in[i] > level and 0 elsewhere.
func Threshold(in, out []byte, level int) {
	for i := range out {
		out[i] = 0
		if int(in[i]) > level {
			out[i] = math.MaxUint8
		}
	}
}

// Convolve filters a width x height U8 image with a rows x cols kernel and
// divides every sum by div. Pixels whose window leaves the image follow the
// border mode; with an undefined border they are left untouched.
func Convolve(in, out []byte, width, height int, coeffs []int16, rows, cols, div int, border graph.Border) {
	ry, rx := rows/2, cols/2
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			edge := x < rx || y < ry || x >= width-rx || y >= height-ry
			if edge && border.Mode == graph.BorderUndefined {
				continue
			}
			sum := 0
			for j := 0; j < rows; j++ {
				for i := 0; i < cols; i++ {
					// The kernel is applied flipped, as in a true convolution.
					c := int(coeffs[(rows-1-j)*cols+(cols-1-i)])
					sum += c * sample(in, width, height, x+i-rx, y+j-ry, border)
				}
			}
			out[y*width+x] = saturate(sum / div)
		}
	}
}

func sample(in []byte, width, height, x, y int, border graph.Border) int {
	if x >= 0 && y >= 0 && x < width && y < height {
		return int(in[y*width+x])
	}
	if border.Mode == graph.BorderConstant {
		return int(saturate(int(border.Constant)))
	}
	x = min(max(x, 0), width-1)
	y = min(max(y, 0), height-1)
	return int(in[y*width+x])
}

// Histogram counts in into bins equal buckets over [offset, offset+span).
func Histogram(in []byte, bins, offset, span int) []uint32 {
	counts := make([]uint32, bins)
	for _, v := range in {
		p := int(v)
		if p < offset || p >= offset+span {
			continue
		}
		counts[(p-offset)*bins/span]++
	}
	return counts
}

// Transpose returns the transpose of a row-major rows x cols matrix.
func Transpose(in []float32, rows, cols int) []float32 {
	out := make([]float32, len(in))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[c*rows+r] = in[r*cols+c]
		}
	}
	return out
}
