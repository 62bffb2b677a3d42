package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Noofbiz/datagen/datasets"
	"github.com/Noofbiz/datagen/images"
	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func newPreviewCmd(opts *options) *cobra.Command {
	var (
		outDir  string
		count   int
		repeats int
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Write processed samples back to PNG files",
		Long: `Preview processes the first images of the manifest the way the generator
does, and saves them as PNG. In training mode each image is written several
times, showing the random augmentations.`,
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
			if err := ensureDir(outDir); err != nil {
				return err
			}

			n, err := writePreviews(g, outDir, count, repeats)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %d previews to %s\n", n, outDir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "preview", "output directory")
	cmd.Flags().IntVar(&count, "count", 8, "number of manifest images")
	cmd.Flags().IntVar(&repeats, "repeats", 4, "samples per image")
	return cmd
}

// writePreviews saves repeats samples of each of the first count images.
// The sample rngs come from the generator, so they follow its seed.
func writePreviews(g *datasets.Generator, outDir string, count, repeats int) (int, error) {
	written := 0
	for i := range min(count, g.Len()) {
		for r := range repeats {
			s, err := g.Example(i, nil)
			if err != nil {
				return written, err
			}
			base := strings.TrimSuffix(filepath.Base(s.Path), filepath.Ext(s.Path))
			path := filepath.Join(outDir, fmt.Sprintf("%03d_%s_label%d_%d.png", i, base, s.Label, r))
			rgba, err := uncenter(s.Image).ToNRGBA()
			if err != nil {
				return written, err
			}
			if err := imaging.Save(rgba, path); err != nil {
				return written, err
			}
			klog.V(1).Infof("wrote %s", path)
			written++
		}
	}
	return written, nil
}

// uncenter reverts the centering of a processed image: it returns an RGB
// copy in [0, 255].
func uncenter(img *images.Image) *images.Image {
	out := img.Clone()
	out.ReverseChannels()
	neg := make([]float32, len(images.ImageNetMean))
	for i, m := range images.ImageNetMean {
		neg[i] = -m
	}
	out.SubtractChannels(neg)
	return out
}
