package main

import (
	"fmt"
	"image/color"
	"path/filepath"

	"github.com/Noofbiz/datagen/manifest"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

func newInspectCmd(opts *options) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize a manifest, validate its labels and plot the class histogram",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			data, err := manifest.Load(cfg.ManifestPath, cfg.RootDir)
			if err != nil {
				return err
			}
			numClasses := cfg.NumClasses
			if numClasses <= 0 {
				for _, l := range data.Labels {
					numClasses = max(numClasses, l+1)
				}
			}
			counts, outOfRange := data.ClassCounts(numClasses)

			fmt.Printf("Manifest %s\n", cfg.ManifestPath)
			fmt.Printf("  images:  %s\n", humanize.Comma(int64(data.Len())))
			fmt.Printf("  classes: %d\n", numClasses)
			for label, n := range counts {
				fmt.Printf("    %4d: %s\n", label, humanize.Comma(int64(n)))
			}
			if outOfRange > 0 {
				fmt.Printf("  labels out of range: %s\n", humanize.Comma(int64(outOfRange)))
			}

			if outDir != "" {
				if err := ensureDir(outDir); err != nil {
					return err
				}
				path := filepath.Join(outDir, "classes.png")
				if err := plotClasses(path, cfg.DatasetName(), counts); err != nil {
					return err
				}
				fmt.Printf("Class histogram written to %s\n", path)
			}
			return data.Validate(numClasses)
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "directory for the class histogram PNG")
	return cmd
}

// plotClasses draws the number of images per class as a bar chart.
func plotClasses(path, name string, counts []int) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Images per class: %s", name)
	p.X.Label.Text = "class"
	p.Y.Label.Text = "images"

	values := make(plotter.Values, len(counts))
	for i, n := range counts {
		values[i] = float64(n)
	}
	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return err
	}
	bars.Color = color.RGBA{R: 20, G: 80, B: 200, A: 220}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)

	ymax := 1.0
	for _, v := range values {
		ymax = max(ymax, v)
	}
	p.Y.Min, p.Y.Max = 0, ymax*1.06

	width := vg.Length(max(len(counts), 10)) * vg.Points(16)
	return p.Save(width+vg.Inch, 4*vg.Inch, path)
}
