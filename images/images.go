// Package images provides the float32 raster used by preprocessing and
// augmentation, and the geometric operations on it.
//
// An Image stores its pixels in height, width, channels (HWC) order,
// the layout of the batches handed to gomlx.
package images

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// ImageNetMean is the per-channel mean intensity, in R, G, B order, of
// the ImageNet training images.
var ImageNetMean = [3]float32{123.68, 116.779, 103.939}

// Image is a dense float32 raster in HWC order.
type Image struct {
	Height, Width, Channels int
	Pix                     []float32
}

// New allocates a zeroed Image.
func New(height, width, channels int) *Image {
	return &Image{
		Height:   height,
		Width:    width,
		Channels: channels,
		Pix:      make([]float32, height*width*channels),
	}
}

// FromImage converts img to a 3-channel RGB Image with values in [0, 255].
// The alpha channel is dropped without premultiplying.
func FromImage(img image.Image) *Image {
	b := img.Bounds()
	out := New(b.Dy(), b.Dx(), 3)
	if nrgba, ok := img.(*image.NRGBA); ok {
		for y := 0; y < out.Height; y++ {
			row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+4*out.Width]
			dst := out.Pix[y*out.Width*3 : (y+1)*out.Width*3]
			for x := 0; x < out.Width; x++ {
				dst[3*x] = float32(row[4*x])
				dst[3*x+1] = float32(row[4*x+1])
				dst[3*x+2] = float32(row[4*x+2])
			}
		}
		return out
	}
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := out.offset(y, x)
			out.Pix[i] = float32(c.R)
			out.Pix[i+1] = float32(c.G)
			out.Pix[i+2] = float32(c.B)
		}
	}
	return out
}

// ToNRGBA converts a 3-channel Image with values in [0, 255] back to an
// image, rounding and clamping each value.
func (m *Image) ToNRGBA() (*image.NRGBA, error) {
	if m.Channels != 3 {
		return nil, errors.Errorf("ToNRGBA needs 3 channels, image has %d", m.Channels)
	}
	img := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			src := m.offset(y, x)
			dst := img.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				img.Pix[dst+c] = toUint8(m.Pix[src+c])
			}
			img.Pix[dst+3] = 255
		}
	}
	return img, nil
}

func toUint8(v float32) uint8 {
	v = math32.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func (m *Image) offset(y, x int) int {
	return (y*m.Width + x) * m.Channels
}

// At returns the value of channel c at row y, column x.
func (m *Image) At(y, x, c int) float32 {
	return m.Pix[m.offset(y, x)+c]
}

// Set sets the value of channel c at row y, column x.
func (m *Image) Set(y, x, c int, v float32) {
	m.Pix[m.offset(y, x)+c] = v
}

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	out := *m
	out.Pix = append([]float32(nil), m.Pix...)
	return &out
}

// Equal reports whether both images have the same shape and bit-identical pixels.
func (m *Image) Equal(other *Image) bool {
	if m.Height != other.Height || m.Width != other.Width || m.Channels != other.Channels {
		return false
	}
	for i, v := range m.Pix {
		if math32.Float32bits(v) != math32.Float32bits(other.Pix[i]) {
			return false
		}
	}
	return true
}

// Shape returns the dimensions as [height, width, channels].
func (m *Image) Shape() []int {
	return []int{m.Height, m.Width, m.Channels}
}

// SubtractChannels subtracts values[c] from every pixel of channel c, in place.
func (m *Image) SubtractChannels(values []float32) {
	for i := range m.Pix {
		m.Pix[i] -= values[i%m.Channels]
	}
}

// ReverseChannels reverses the channel axis in place (RGB <-> BGR).
func (m *Image) ReverseChannels() {
	for i := 0; i < len(m.Pix); i += m.Channels {
		px := m.Pix[i : i+m.Channels]
		for l, r := 0, len(px)-1; l < r; l, r = l+1, r-1 {
			px[l], px[r] = px[r], px[l]
		}
	}
}

// FlipHorizontal returns a new image mirrored left to right.
func (m *Image) FlipHorizontal() *Image {
	out := New(m.Height, m.Width, m.Channels)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			copy(out.Pix[out.offset(y, m.Width-1-x):out.offset(y, m.Width-x)],
				m.Pix[m.offset(y, x):m.offset(y, x+1)])
		}
	}
	return out
}

// Box is a crop window in normalized coordinates: 0 is the first
// row/column and 1 the last one.
type Box struct {
	Y1, X1, Y2, X2 float32
}

// CropAndResize samples the box out of m into a new height×width image
// with bilinear interpolation. Sample points falling outside the image
// take the value extrapolate.
func (m *Image) CropAndResize(box Box, height, width int, extrapolate float32) *Image {
	out := New(height, width, m.Channels)
	maxY := float32(m.Height - 1)
	maxX := float32(m.Width - 1)

	var scaleY, scaleX float32
	if height > 1 {
		scaleY = (box.Y2 - box.Y1) * maxY / float32(height-1)
	}
	if width > 1 {
		scaleX = (box.X2 - box.X1) * maxX / float32(width-1)
	}
	for y := 0; y < height; y++ {
		inY := box.Y1*maxY + float32(y)*scaleY
		if height == 1 {
			inY = 0.5 * (box.Y1 + box.Y2) * maxY
		}
		if inY < 0 || inY > maxY {
			out.fillRow(y, extrapolate)
			continue
		}
		top := int(math32.Floor(inY))
		bottom := min(top+1, m.Height-1)
		dy := inY - float32(top)

		for x := 0; x < width; x++ {
			inX := box.X1*maxX + float32(x)*scaleX
			if width == 1 {
				inX = 0.5 * (box.X1 + box.X2) * maxX
			}
			dst := out.offset(y, x)
			if inX < 0 || inX > maxX {
				for c := 0; c < m.Channels; c++ {
					out.Pix[dst+c] = extrapolate
				}
				continue
			}
			left := int(math32.Floor(inX))
			right := min(left+1, m.Width-1)
			dx := inX - float32(left)
			for c := 0; c < m.Channels; c++ {
				tl := m.At(top, left, c)
				tr := m.At(top, right, c)
				bl := m.At(bottom, left, c)
				br := m.At(bottom, right, c)
				t := tl + (tr-tl)*dx
				b := bl + (br-bl)*dx
				out.Pix[dst+c] = t + (b-t)*dy
			}
		}
	}
	return out
}

func (m *Image) fillRow(y int, v float32) {
	row := m.Pix[m.offset(y, 0):m.offset(y+1, 0)]
	for i := range row {
		row[i] = v
	}
}
