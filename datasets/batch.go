package datasets

import (
	"github.com/Noofbiz/datagen/preprocess"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Batch stores a batch of processed samples in flat contiguous buffers.
type Batch struct {
	// Images is shaped [BatchSize, Height, Width, Channels].
	Images []float32
	// Labels is shaped [BatchSize, NumClasses], one-hot.
	Labels []float32

	// Paths and Classes describe each sample, in batch order.
	Paths   []string
	Classes []int

	BatchSize  int
	Height     int
	Width      int
	Channels   int
	NumClasses int
}

// MakeBatch flattens samples into a Batch. All samples must share the
// same image shape and one-hot length.
func MakeBatch(samples []*preprocess.Sample) (*Batch, error) {
	if len(samples) == 0 {
		return nil, errors.New("empty batch")
	}
	first := samples[0]
	b := &Batch{
		BatchSize:  len(samples),
		Height:     first.Image.Height,
		Width:      first.Image.Width,
		Channels:   first.Image.Channels,
		NumClasses: len(first.OneHot),
		Paths:      make([]string, len(samples)),
		Classes:    make([]int, len(samples)),
	}
	imageSize := b.Height * b.Width * b.Channels
	b.Images = make([]float32, b.BatchSize*imageSize)
	b.Labels = make([]float32, b.BatchSize*b.NumClasses)

	for i, s := range samples {
		if s.Image.Height != b.Height || s.Image.Width != b.Width || s.Image.Channels != b.Channels {
			return nil, errors.Errorf("inconsistent shapes: sample 0 has shape %v, sample %d (%s) has shape %v",
				first.Image.Shape(), i, s.Path, s.Image.Shape())
		}
		if len(s.OneHot) != b.NumClasses {
			return nil, errors.Errorf("inconsistent label dimensions at sample %d: expected %d, got %d",
				i, b.NumClasses, len(s.OneHot))
		}
		copy(b.Images[i*imageSize:], s.Image.Pix)
		copy(b.Labels[i*b.NumClasses:], s.OneHot)
		b.Paths[i] = s.Path
		b.Classes[i] = s.Label
	}
	return b, nil
}

// Image returns the flat pixels of the i-th image of the batch.
func (b *Batch) Image(i int) []float32 {
	size := b.Height * b.Width * b.Channels
	return b.Images[i*size : (i+1)*size]
}

// OneHot returns the one-hot label of the i-th sample of the batch.
func (b *Batch) OneHot(i int) []float32 {
	return b.Labels[i*b.NumClasses : (i+1)*b.NumClasses]
}

// ToGomlxTensors converts the Batch to gomlx tensors: images shaped
// [batch, height, width, channels] and labels shaped [batch, num_classes].
func (b *Batch) ToGomlxTensors() (images *tensors.Tensor, labels *tensors.Tensor, err error) {
	if b.BatchSize == 0 {
		return nil, nil, errors.New("empty batch can't be converted to tensors")
	}
	images = tensors.FromFlatDataAndDimensions(b.Images, b.BatchSize, b.Height, b.Width, b.Channels)
	labels = tensors.FromFlatDataAndDimensions(b.Labels, b.BatchSize, b.NumClasses)
	return images, labels, nil
}
