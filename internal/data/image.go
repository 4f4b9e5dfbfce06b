package data

import (
	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/memmap"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// Image formats and their bytes per pixel.
const (
	FormatU8   = "U8"
	FormatU16  = "U16"
	FormatS16  = "S16"
	FormatU32  = "U32"
	FormatRGB  = "RGB"
	FormatRGBX = "RGBX"
)

var pixelSizes = map[string]int{
	FormatU8:   1,
	FormatU16:  2,
	FormatS16:  2,
	FormatU32:  4,
	FormatRGB:  3,
	FormatRGBX: 4,
}

// PixelSize returns the bytes per pixel of format, or 0 if it is unknown.
func PixelSize(format string) int { return pixelSizes[format] }

// Rect is a half-open pixel rectangle [X0,X1) x [Y0,Y1).
type Rect struct {
	X0, Y0, X1, Y1 int
}

func (r Rect) Width() int  { return r.X1 - r.X0 }
func (r Rect) Height() int { return r.Y1 - r.Y0 }

// Image is a 2-D pixel buffer.
type Image struct {
	reference.Reference

	rt     graph.Runtime
	width  int
	height int
	format string
	pixels []byte
}

// NewImage creates an image with allocated, zeroed memory.
func NewImage(rt graph.Runtime, width, height int, format string) (*Image, error) {
	if PixelSize(format) == 0 {
		return nil, status.Errorf(status.InvalidFormat, "unknown image format %q", format)
	}
	if width <= 0 || height <= 0 {
		return nil, status.Errorf(status.InvalidDimension, "image %dx%d", width, height)
	}
	img := &Image{rt: rt, width: width, height: height, format: format}
	img.pixels = make([]byte, width*height*PixelSize(format))
	if err := register(rt, img, reference.TypeImage); err != nil {
		return nil, err
	}
	return img, nil
}

// NewVirtualImage creates a graph-private image. Zero dimensions and an
// empty format are filled in when the graph is verified.
func NewVirtualImage(g *graph.Graph, width, height int, format string) (*Image, error) {
	if format != "" && PixelSize(format) == 0 {
		return nil, status.Errorf(status.InvalidFormat, "unknown image format %q", format)
	}
	if width < 0 || height < 0 {
		return nil, status.Errorf(status.InvalidDimension, "image %dx%d", width, height)
	}
	img := &Image{width: width, height: height, format: format}
	if err := registerVirtual(g, img, reference.TypeImage); err != nil {
		return nil, err
	}
	img.rt = g.Runtime()
	return img, nil
}

func (img *Image) Release() error { return Release(img) }

func (img *Image) Width() int {
	img.Lock()
	defer img.Unlock()
	return img.width
}

func (img *Image) Height() int {
	img.Lock()
	defer img.Unlock()
	return img.height
}

func (img *Image) Format() string {
	img.Lock()
	defer img.Unlock()
	return img.format
}

// Stride returns the byte distance between rows.
func (img *Image) Stride() int {
	img.Lock()
	defer img.Unlock()
	return img.width * PixelSize(img.format)
}

// Pixels returns the backing buffer for kernels. It is nil for a virtual
// image that has not been resolved.
func (img *Image) Pixels() []byte {
	img.Lock()
	defer img.Unlock()
	return img.pixels
}

func (img *Image) Meta() graph.Meta {
	img.Lock()
	defer img.Unlock()
	return graph.Meta{Type: reference.TypeImage, Width: img.width, Height: img.height, Format: img.format}
}

func (img *Image) Resolve(m graph.Meta) error {
	img.Lock()
	defer img.Unlock()
	if err := fill(&img.width, m.Width, "width"); err != nil {
		return err
	}
	if err := fill(&img.height, m.Height, "height"); err != nil {
		return err
	}
	switch {
	case m.Format == "":
	case img.format == "":
		img.format = m.Format
	case img.format != m.Format:
		return status.Errorf(status.InvalidFormat, "format is %s, output needs %s", img.format, m.Format)
	}
	if img.width == 0 || img.height == 0 {
		return status.Errorf(status.InvalidDimension, "virtual image size unresolved")
	}
	if PixelSize(img.format) == 0 {
		return status.Errorf(status.InvalidFormat, "virtual image format unresolved")
	}
	if size := img.width * img.height * PixelSize(img.format); len(img.pixels) != size {
		img.pixels = make([]byte, size)
	}
	return nil
}

type patch struct {
	rect   Rect
	stride int
}

// MapPatch maps rect for host access and returns a copy of its pixels laid
// out with the returned stride. Changes are written back by UnmapPatch when
// usage writes.
func (img *Image) MapPatch(rect Rect, usage memmap.Usage) (memmap.ID, []byte, int, error) {
	buf, stride, err := img.readPatch(rect, usage)
	if err != nil {
		return memmap.ID{}, nil, 0, err
	}
	id, err := img.rt.Maps().Map(&img.Reference, usage, buf, patch{rect: rect, stride: stride})
	if err != nil {
		return memmap.ID{}, nil, 0, err
	}
	return id, buf, stride, nil
}

// UnmapPatch closes a map opened by MapPatch on this image.
func (img *Image) UnmapPatch(id memmap.ID) error {
	maps := img.rt.Maps()
	mp, ok := maps.Lookup(id)
	if !ok || mp.Ref != &img.Reference {
		return status.Errorf(status.InvalidParameters, "map id %s does not belong to %s", id, img)
	}
	if _, err := maps.Unmap(id); err != nil {
		return err
	}
	if mp.Usage.Writes() {
		p := mp.Extra.(patch)
		img.writePatch(p.rect, p.stride, mp.Buffer)
	}
	return nil
}

// AllocatePatch hands out a runtime-allocated buffer for rect through the
// accessor table.
func (img *Image) AllocatePatch(rect Rect, usage memmap.Usage) (memmap.ID, []byte, error) {
	src, stride, err := img.readPatch(rect, usage)
	if err != nil {
		return memmap.ID{}, nil, err
	}
	id, buf, err := img.rt.Accessors().Add(&img.Reference, usage, nil, len(src), patch{rect: rect, stride: stride})
	if err != nil {
		return memmap.ID{}, nil, err
	}
	copy(buf, src)
	return id, buf, nil
}

// ReleasePatch commits and closes an accessor opened by AllocatePatch.
func (img *Image) ReleasePatch(id memmap.ID) error {
	acc := img.rt.Accessors()
	a, ok := acc.Find(id)
	if !ok || a.Ref != &img.Reference {
		return status.Errorf(status.InvalidParameters, "accessor %s does not belong to %s", id, img)
	}
	if _, err := acc.Remove(id); err != nil {
		return err
	}
	if a.Usage.Writes() {
		p := a.Extra.(patch)
		img.writePatch(p.rect, p.stride, a.Buffer)
	}
	return nil
}

func (img *Image) readPatch(rect Rect, usage memmap.Usage) ([]byte, int, error) {
	if !img.Valid() {
		return nil, 0, status.Errorf(status.InvalidReference, "access to invalid image")
	}
	if !usage.Valid() {
		return nil, 0, status.Errorf(status.InvalidParameters, "patch access with %s", usage)
	}
	if !img.IsAccessible() {
		return nil, 0, status.Errorf(status.InvalidReference, "%s memory is not accessible", img)
	}
	img.Lock()
	defer img.Unlock()
	if rect.X0 < 0 || rect.Y0 < 0 || rect.X1 > img.width || rect.Y1 > img.height || rect.Width() <= 0 || rect.Height() <= 0 {
		return nil, 0, status.Errorf(status.InvalidParameters, "patch %v outside %dx%d image", rect, img.width, img.height)
	}
	bpp := PixelSize(img.format)
	stride := rect.Width() * bpp
	buf := make([]byte, stride*rect.Height())
	if usage.Reads() {
		full := img.width * bpp
		for y := 0; y < rect.Height(); y++ {
			off := (rect.Y0+y)*full + rect.X0*bpp
			copy(buf[y*stride:(y+1)*stride], img.pixels[off:off+stride])
		}
	}
	return buf, stride, nil
}

func (img *Image) writePatch(rect Rect, stride int, buf []byte) {
	img.Lock()
	defer img.Unlock()
	full := img.width * PixelSize(img.format)
	off0 := rect.X0 * PixelSize(img.format)
	for y := 0; y < rect.Height(); y++ {
		off := (rect.Y0+y)*full + off0
		copy(img.pixels[off:off+stride], buf[y*stride:(y+1)*stride])
	}
}
