package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Noofbiz/datagen/datasets"
	"github.com/Noofbiz/datagen/preprocess"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func newRunCmd(opts *options) *cobra.Command {
	var epochs int
	var quiet bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Iterate over the dataset for a number of epochs, reporting throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			g, err := datasets.NewGenerator(cfg)
			if err != nil {
				return err
			}
			defer g.Close()
			return runEpochs(cmd.Context(), g, epochs, quiet)
		},
	}
	cmd.Flags().IntVarP(&epochs, "epochs", "e", 1, "number of epochs")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "disable the progress bar")
	return cmd
}

func runEpochs(ctx context.Context, g *datasets.Generator, epochs int, quiet bool) error {
	fmt.Printf("Dataset %q: %s images, %s batches per epoch, mode %s\n",
		g.Name(), humanize.Comma(int64(g.Len())), humanize.Comma(int64(g.NumBatches())), g.Mode())

	for epoch := range epochs {
		var bar *progressbar.ProgressBar
		if !quiet {
			bar = progressbar.NewOptions(g.Len(),
				progressbar.OptionSetDescription(fmt.Sprintf("epoch %d/%d", epoch+1, epochs)),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("img"),
				progressbar.OptionShowCount(),
			)
		}
		start := time.Now()
		images, batches := 0, 0
		for {
			b, err := g.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				return errors.WithMessagef(err, "epoch %d, batch %d", epoch+1, batches)
			}
			if batches == 0 {
				klog.V(1).Infof("batch shape: images [%d %d %d %d], labels [%d %d]",
					b.BatchSize, b.Height, b.Width, b.Channels, b.BatchSize, b.NumClasses)
			}
			images += b.BatchSize
			batches++
			if bar != nil {
				_ = bar.Add(b.BatchSize)
			}
		}
		if bar != nil {
			_ = bar.Finish()
			fmt.Println()
		}
		elapsed := time.Since(start)
		rate := float64(images) / max(elapsed.Seconds(), 1e-9)
		fmt.Printf("Epoch %d: %s images in %s batches, %s (%.1f img/s, %s of pixels)\n",
			epoch+1, humanize.Comma(int64(images)), humanize.Comma(int64(batches)),
			elapsed.Round(time.Millisecond), rate,
			humanize.Bytes(uint64(images)*preprocess.Size*preprocess.Size*3*4))
		g.Reset()
	}
	return nil
}
