package kernels

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/vxgrid/internal/data"
	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// Impl pairs a target's execute body with the kernel's validators.
type Impl struct {
	Body   graph.ExecuteFunc
	input  func(n *graph.Node, index int) error
	output func(n *graph.Node, index int, meta *graph.Meta) error
}

func (k *Impl) Execute(ctx context.Context, n *graph.Node, params []reference.Object) error {
	return k.Body(ctx, n, params)
}

func (k *Impl) ValidateInput(n *graph.Node, index int) error {
	if k.input == nil {
		return nil
	}
	return k.input(n, index)
}

func (k *Impl) ValidateOutput(n *graph.Node, index int, meta *graph.Meta) error {
	if k.output == nil {
		return nil
	}
	return k.output(n, index, meta)
}

type entry struct {
	params []graph.Param
	input  func(n *graph.Node, index int) error
	output func(n *graph.Node, index int, meta *graph.Meta) error
}

func in(t reference.Type) graph.Param  { return graph.Param{Direction: graph.Input, Type: t} }
func out(t reference.Type) graph.Param { return graph.Param{Direction: graph.Output, Type: t} }

var entries = map[string]entry{
	NameCopy: {
		params: []graph.Param{in(reference.TypeImage), out(reference.TypeImage)},
		input:  anyImage,
		output: imageLike(""),
	},
	NameAdd: {
		params: []graph.Param{in(reference.TypeImage), in(reference.TypeImage), out(reference.TypeImage)},
		input:  sameSizeU8,
		output: imageLike(data.FormatU8),
	},
	NameBox3x3: {
		params: []graph.Param{in(reference.TypeImage), out(reference.TypeImage)},
		input:  u8Image,
		output: imageLike(data.FormatU8),
	},
	NameSmooth: {
		params: []graph.Param{in(reference.TypeImage), out(reference.TypeImage)},
		input:  u8Image,
		output: imageLike(data.FormatU8),
	},
	NameGain: {
		params: []graph.Param{in(reference.TypeImage), in(reference.TypeScalar), out(reference.TypeImage)},
		input:  gainInput,
		output: imageLike(data.FormatU8),
	},
	NameConvolve: {
		params: []graph.Param{in(reference.TypeImage), in(reference.TypeConvolution), out(reference.TypeImage)},
		input:  convolveInput,
		output: imageLike(data.FormatU8),
	},
	NameHistogram: {
		params: []graph.Param{in(reference.TypeImage), out(reference.TypeDistribution)},
		input:  u8Image,
		output: func(_ *graph.Node, _ int, meta *graph.Meta) error {
			meta.Type = reference.TypeDistribution
			return nil
		},
	},
	NameTranspose: {
		params: []graph.Param{in(reference.TypeMatrix), out(reference.TypeMatrix)},
		output: transposed,
	},
	NameCopyArray: {
		params: []graph.Param{in(reference.TypeArray), out(reference.TypeArray)},
		output: arrayLike,
	},
	NameFail: {},
	NameInvert: {
		params: []graph.Param{in(reference.TypeImage), out(reference.TypeImage)},
		input:  u8Image,
		output: imageLike(data.FormatU8),
	},
	NameThreshold: {
		params: []graph.Param{in(reference.TypeImage), in(reference.TypeScalar), out(reference.TypeImage)},
		input:  gainInput,
		output: imageLike(data.FormatU8),
	},
}

// Params returns the signature of the named kernel.
func Params(name string) []graph.Param {
	return entries[name].params
}

// Def builds the registration record of the named kernel with body as its
// execute function. It returns false for an unknown name.
func Def(enum int, name string, body graph.ExecuteFunc) (graph.KernelDef, bool) {
	base, _ := graph.SplitKernelName(name)
	e, ok := entries[base]
	if !ok {
		return graph.KernelDef{}, false
	}
	return graph.KernelDef{
		Enum:   enum,
		Name:   name,
		Params: e.params,
		Impl:   &Impl{Body: body, input: e.input, output: e.output},
	}, true
}

func anyImage(n *graph.Node, index int) error {
	_, err := ImageAt(n, index)
	return err
}

func u8Image(n *graph.Node, index int) error {
	img, err := ImageAt(n, index)
	if err != nil {
		return err
	}
	if f := img.Format(); f != data.FormatU8 {
		return status.Errorf(status.InvalidFormat, "parameter %d is %s, want %s", index, f, data.FormatU8)
	}
	return nil
}

func sameSizeU8(n *graph.Node, index int) error {
	if err := u8Image(n, index); err != nil {
		return err
	}
	if index == 0 {
		return nil
	}
	first, _ := ImageAt(n, 0)
	img, _ := ImageAt(n, index)
	if first == nil {
		return nil
	}
	if img.Width() != first.Width() || img.Height() != first.Height() {
		return status.Errorf(status.InvalidDimension, "inputs are %dx%d and %dx%d",
			first.Width(), first.Height(), img.Width(), img.Height())
	}
	return nil
}

func gainInput(n *graph.Node, index int) error {
	if index == 0 {
		return u8Image(n, index)
	}
	s, ok := n.Parameter(index).(*data.Scalar)
	if !ok {
		return status.Errorf(status.InvalidType, "parameter %d is not a scalar", index)
	}
	if !s.CtyType().Equals(cty.Number) {
		return status.Errorf(status.InvalidType, "gain is a %s scalar", s.CtyType().FriendlyName())
	}
	return nil
}

func convolveInput(n *graph.Node, index int) error {
	if index == 0 {
		return u8Image(n, index)
	}
	if _, ok := n.Parameter(index).(*data.Convolution); !ok {
		return status.Errorf(status.InvalidType, "parameter %d is not a convolution", index)
	}
	return nil
}

// imageLike shapes the output after input 0, in format when it is set.
func imageLike(format string) func(*graph.Node, int, *graph.Meta) error {
	return func(n *graph.Node, _ int, meta *graph.Meta) error {
		src, err := ImageAt(n, 0)
		if err != nil {
			return err
		}
		meta.Type = reference.TypeImage
		meta.Width = src.Width()
		meta.Height = src.Height()
		meta.Format = src.Format()
		if format != "" {
			meta.Format = format
		}
		return nil
	}
}

func transposed(n *graph.Node, _ int, meta *graph.Meta) error {
	m, ok := n.Parameter(0).(*data.Matrix)
	if !ok {
		return status.Errorf(status.InvalidType, "parameter 0 is not a matrix")
	}
	meta.Type = reference.TypeMatrix
	meta.Rows, meta.Cols = m.Cols(), m.Rows()
	return nil
}

func arrayLike(n *graph.Node, _ int, meta *graph.Meta) error {
	a, ok := n.Parameter(0).(*data.Array)
	if !ok {
		return status.Errorf(status.InvalidType, "parameter 0 is not an array")
	}
	meta.Type = reference.TypeArray
	meta.ItemSize = a.ItemSize()
	meta.Capacity = a.Capacity()
	return nil
}

// ImageAt returns node parameter index as an image.
func ImageAt(n *graph.Node, index int) (*data.Image, error) {
	img, ok := n.Parameter(index).(*data.Image)
	if !ok || img == nil {
		return nil, status.Errorf(status.InvalidType, "parameter %d is not an image", index)
	}
	return img, nil
}
