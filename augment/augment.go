// Package augment implements the randomized image transformations applied
// to training samples.
//
// A Chain holds an ordered list of Transforms. Each transform is gated by
// an independent draw, so for a given image zero, one or several of them
// may fire. Transforms are selected by name, see New.
package augment

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/Noofbiz/datagen/images"
	"github.com/pkg/errors"
)

// ErrUnknownTransform is returned by New for names not in the registry.
var ErrUnknownTransform = errors.New("unknown augmentation")

// Transform is one randomized image transformation.
//
// Apply must not modify img: it returns either img itself or a new image.
// All randomness must come from rng, which is owned by the caller.
type Transform interface {
	Name() string
	Apply(img *images.Image, rng *rand.Rand) *images.Image
}

var registry = map[string]func() Transform{
	"flip":  func() Transform { return Flip{} },
	"color": func() Transform { return NewColor() },
	"zoom":  func() Transform { return NewZoom() },
}

// Names returns the registered transform names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Chain applies its transforms in order, each with probability GateProbability.
type Chain struct {
	Transforms      []Transform
	GateProbability float64
}

// New builds a Chain from transform names, e.g. []string{"flip", "zoom"}.
func New(names []string, gateProbability float64) (*Chain, error) {
	chain := &Chain{GateProbability: gateProbability}
	for _, name := range names {
		factory, ok := registry[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownTransform, "%q (known: %s)", name, strings.Join(Names(), ", "))
		}
		chain.Transforms = append(chain.Transforms, factory())
	}
	return chain, nil
}

// Apply runs the chain over img. img itself is never modified.
func (c *Chain) Apply(img *images.Image, rng *rand.Rand) *images.Image {
	for _, t := range c.Transforms {
		if rng.Float64() < c.GateProbability {
			img = t.Apply(img, rng)
		}
	}
	return img
}

// String lists the transform names of the chain.
func (c *Chain) String() string {
	names := make([]string, len(c.Transforms))
	for i, t := range c.Transforms {
		names[i] = t.Name()
	}
	return "[" + strings.Join(names, " ") + "]"
}

// Flip mirrors the image left to right half of the times it is applied.
type Flip struct{}

func (Flip) Name() string { return "flip" }

func (Flip) Apply(img *images.Image, rng *rand.Rand) *images.Image {
	if rng.Float64() < 0.5 {
		return img.FlipHorizontal()
	}
	return img
}
