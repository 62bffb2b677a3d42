// Package preprocess turns a (image path, label) pair into a training sample:
// a 227×227×3 float32 image centered on the ImageNet mean with BGR channel
// order, and a one-hot label.
//
// In training mode the image may additionally go through an augmentation
// chain. In inference mode the output only depends on the image bytes.
package preprocess

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/rand"
	"os"

	"github.com/Noofbiz/datagen/augment"
	"github.com/Noofbiz/datagen/config"
	"github.com/Noofbiz/datagen/images"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Size is the height and width of every processed image.
const Size = 227

var (
	// ErrIO is returned when an image file can't be read.
	ErrIO = errors.New("image read failed")
	// ErrDecode is returned for malformed image data.
	ErrDecode = errors.New("image decode failed")
	// ErrRange is returned for labels outside [0, num_classes).
	ErrRange = errors.New("label out of range")
)

// Sample is one processed example.
type Sample struct {
	Path  string
	Label int

	// Image is Size×Size×3, mean centered, BGR.
	Image *images.Image

	// OneHot has length num_classes, with a 1 at Label.
	OneHot []float32
}

// Pipeline holds the per-sample processing configuration. It has no
// mutable state, so one Pipeline can be shared by concurrent workers as
// long as each of them uses its own rng.
type Pipeline struct {
	Mode       config.Mode
	NumClasses int

	// Chain is applied to training samples with probability AugmentProbability.
	Chain              *augment.Chain
	AugmentProbability float64
}

// New builds a Pipeline from the configuration.
func New(cfg config.Config) (*Pipeline, error) {
	chain, err := augment.New(cfg.Augmentations, cfg.GateProbability)
	if err != nil {
		return nil, errors.Wrapf(config.ErrConfig, "augmentations: %v", err)
	}
	return &Pipeline{
		Mode:               cfg.Mode,
		NumClasses:         cfg.NumClasses,
		Chain:              chain,
		AugmentProbability: cfg.AugmentProbability,
	}, nil
}

// Transform reads, decodes and processes the image at path. rng is only
// used in training mode, and may be nil in inference mode.
func (p *Pipeline) Transform(path string, label int, rng *rand.Rand) (*Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrIO, "%s: %v", path, err)
	}
	img, err := Decode(data)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	processed := Center(Resize(img))
	if p.Mode == config.Training && rng.Float64() < p.AugmentProbability {
		processed = p.Chain.Apply(processed, rng)
	}
	oneHot, err := OneHot(label, p.NumClasses)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return &Sample{Path: path, Label: label, Image: processed, OneHot: oneHot}, nil
}

// Decode decodes any registered image format (png, jpeg, gif, bmp, tiff,
// webp), applying the EXIF orientation if present.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(ErrDecode, "%v", err)
	}
	return img, nil
}

// Resize scales img to Size×Size with bilinear interpolation and converts
// it to a 3-channel RGB raster in [0, 255].
func Resize(img image.Image) *images.Image {
	return images.FromImage(imaging.Resize(img, Size, Size, imaging.Linear))
}

// Center subtracts the ImageNet mean from an RGB image and reverses its
// channels to BGR, in place. It returns img.
func Center(img *images.Image) *images.Image {
	img.SubtractChannels(images.ImageNetMean[:])
	img.ReverseChannels()
	return img
}

// OneHot encodes label as a vector of length numClasses.
func OneHot(label, numClasses int) ([]float32, error) {
	if label < 0 || label >= numClasses {
		return nil, errors.Wrapf(ErrRange, "label %d, num_classes %d", label, numClasses)
	}
	v := make([]float32, numClasses)
	v[label] = 1
	return v, nil
}
