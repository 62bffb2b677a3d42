package datasets

import (
	"context"
	"math/rand"

	"github.com/Noofbiz/datagen/preprocess"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
)

// This package turns an image manifest into batches suitable for model
// training.
//
// The manifest is read once, when the Generator is built. Images are only
// read when needed: every epoch a small pool of workers decodes, resizes,
// centers and (in training mode) augments the images, and the results are
// grouped into batches.
//
// Layout and intended usage:
//
// Generator
//   - Stores the image paths and labels of a manifest, optionally shuffled once
//   - Processes samples in parallel, in manifest order
//   - Passes them through a shuffle buffer (reshuffled every epoch)
//   - Yields Batch values: images [n, 227, 227, 3] (BGR, mean centered)
//     and one-hot labels [n, num_classes]
//
// The generator implements this interface in order to interact with GoMLX
// training loops, as well as with plain Go code that wants the float32
// buffers.
type Dataset interface {
	Len() int
	Example(i int, rng *rand.Rand) (*preprocess.Sample, error)
	Next(ctx context.Context) (*Batch, error)

	// To implement gomlx's train.Dataset interface
	Name() string
	Yield() (any, []*tensors.Tensor, []*tensors.Tensor, error)
	Reset()
}

var (
	_ Dataset       = (*Generator)(nil)
	_ train.Dataset = (*Generator)(nil)
)
