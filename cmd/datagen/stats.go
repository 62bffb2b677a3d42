package main

import (
	"fmt"
	"os"

	"github.com/Noofbiz/datagen/manifest"
	"github.com/Noofbiz/datagen/stats"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newStatsCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Compute the per-channel mean and standard deviation of the images",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			data, err := manifest.Load(cfg.ManifestPath, cfg.RootDir)
			if err != nil {
				return err
			}
			if limit > 0 && limit < data.Len() {
				if cfg.Shuffle {
					data.Shuffle(cfg.Seed)
				}
				data.Paths, data.Labels = data.Paths[:limit], data.Labels[:limit]
			}

			bar := progressbar.NewOptions(data.Len(),
				progressbar.OptionSetDescription("stats"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWriter(os.Stderr),
			)
			channels, err := stats.Compute(cmd.Context(), data, cfg.Parallelism, func() { _ = bar.Add(1) })
			_ = bar.Finish()
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}
			out := map[string]any{
				"images": channels.Images,
				"mean":   channels.Mean[:],
				"stddev": channels.StdDev[:],
			}
			enc := yaml.NewEncoder(os.Stdout)
			defer enc.Close()
			return enc.Encode(out)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "only use this many images (0 for all)")
	return cmd
}
