package augment

import (
	"math/rand"

	"github.com/Noofbiz/datagen/images"
)

// Zoom crops a centered box and scales it back to the input size. Half
// of the times it is applied it leaves the image unchanged.
type Zoom struct {
	// Boxes are the candidate crops, one is picked uniformly.
	Boxes []images.Box
}

// NewZoom returns a Zoom with 20 centered crops keeping from 80% to 99%
// of each side, in steps of 1%.
func NewZoom() *Zoom {
	z := &Zoom{}
	for i := range 20 {
		scale := 0.80 + 0.01*float32(i)
		lo := 0.5 - 0.5*scale
		hi := 0.5 + 0.5*scale
		z.Boxes = append(z.Boxes, images.Box{Y1: lo, X1: lo, Y2: hi, X2: hi})
	}
	return z
}

func (*Zoom) Name() string { return "zoom" }

func (z *Zoom) Apply(img *images.Image, rng *rand.Rand) *images.Image {
	if rng.Float64() < 0.5 || len(z.Boxes) == 0 {
		return img
	}
	box := z.Boxes[rng.Intn(len(z.Boxes))]
	return img.CropAndResize(box, img.Height, img.Width, 0)
}
