package augment

import (
	"math"
	"math/rand"

	"github.com/Noofbiz/datagen/images"
	"github.com/lucasb-eyer/go-colorful"
)

// Color jitters hue, saturation, brightness and contrast, in that order,
// every time it is applied.
//
// It expects images centered on Mean and, if BGR is set, with reversed
// channels: the jitter itself happens on RGB intensities in [0, 1], and the
// result is converted back to the input convention.
type Color struct {
	MaxHueDelta                  float64 // fraction of a full turn
	MinSaturation, MaxSaturation float64
	MaxBrightnessDelta           float64
	MinContrast, MaxContrast     float64

	Mean [3]float32
	BGR  bool
}

// NewColor returns the jitter used for centered BGR images.
func NewColor() *Color {
	return &Color{
		MaxHueDelta:        0.08,
		MinSaturation:      0.6,
		MaxSaturation:      1.6,
		MaxBrightnessDelta: 0.05,
		MinContrast:        0.7,
		MaxContrast:        1.3,
		Mean:               images.ImageNetMean,
		BGR:                true,
	}
}

func (*Color) Name() string { return "color" }

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

func (c *Color) Apply(img *images.Image, rng *rand.Rand) *images.Image {
	hueDelta := uniform(rng, -c.MaxHueDelta, c.MaxHueDelta) * 360
	saturation := uniform(rng, c.MinSaturation, c.MaxSaturation)
	brightness := uniform(rng, -c.MaxBrightnessDelta, c.MaxBrightnessDelta)
	contrast := uniform(rng, c.MinContrast, c.MaxContrast)

	r, g, b := 0, 1, 2
	if c.BGR {
		r, b = 2, 0
	}
	numPixels := img.Height * img.Width
	rgb := make([][3]float64, numPixels)
	var sums [3]float64
	for i := range rgb {
		px := img.Pix[i*img.Channels : i*img.Channels+3]
		col := colorful.Color{
			R: float64(px[r]+c.Mean[0]) / 255,
			G: float64(px[g]+c.Mean[1]) / 255,
			B: float64(px[b]+c.Mean[2]) / 255,
		}
		h, s, v := col.Hsv()
		h = math.Mod(h+hueDelta+360, 360)
		s = math.Min(math.Max(s*saturation, 0), 1)
		col = colorful.Hsv(h, s, v)
		rgb[i] = [3]float64{col.R + brightness, col.G + brightness, col.B + brightness}
		for ch := range 3 {
			sums[ch] += rgb[i][ch]
		}
	}

	out := img.Clone()
	for i, px := range rgb {
		dst := out.Pix[i*out.Channels : i*out.Channels+3]
		for ch, idx := range [3]int{r, g, b} {
			mean := sums[ch] / float64(numPixels)
			v := (px[ch]-mean)*contrast + mean
			dst[idx] = float32(v*255) - c.Mean[ch]
		}
	}
	return out
}
