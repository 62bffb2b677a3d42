// Package stats computes per-channel statistics of the images in a
// manifest, e.g. to derive the mean vector used for centering.
package stats

import (
	"context"
	"os"
	"sync"

	"github.com/Noofbiz/datagen/images"
	"github.com/Noofbiz/datagen/manifest"
	"github.com/Noofbiz/datagen/preprocess"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"k8s.io/klog/v2"
)

// Channels holds the RGB statistics of a set of images. Values are in
// [0, 255], computed on the resized (not centered) images.
type Channels struct {
	Images int
	Mean   [3]float64
	StdDev [3]float64
}

// ImageMeans returns the RGB mean of a single image.
func ImageMeans(img *images.Image) [3]float64 {
	var sums [3]float64
	for i := 0; i < len(img.Pix); i += img.Channels {
		for c := range 3 {
			sums[c] += float64(img.Pix[i+c])
		}
	}
	n := float64(img.Height * img.Width)
	for c := range sums {
		sums[c] /= n
	}
	return sums
}

// Compute reads every image of data with the given number of workers, and
// returns the mean and standard deviation over images of each channel
// mean. progress, if not nil, is called after each image.
func Compute(ctx context.Context, data *manifest.Dataset, workers int, progress func()) (*Channels, error) {
	if data.Len() == 0 {
		return nil, errors.New("no images")
	}
	if workers <= 0 {
		workers = 1
	}
	means := make([][3]float64, data.Len())

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range data.Paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				return errors.Wrapf(preprocess.ErrIO, "%s: %v", path, err)
			}
			decoded, err := preprocess.Decode(raw)
			if err != nil {
				return errors.WithMessage(err, path)
			}
			means[i] = ImageMeans(preprocess.Resize(decoded))
			if progress != nil {
				mu.Lock()
				progress()
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Channels{Images: len(means)}
	column := make([]float64, len(means))
	for c := range 3 {
		for i, m := range means {
			column[i] = m[c]
		}
		result.Mean[c], result.StdDev[c] = stat.MeanStdDev(column, nil)
	}
	klog.V(1).Infof("channel statistics over %d images: mean=%v std=%v", result.Images, result.Mean, result.StdDev)
	return result, nil
}
