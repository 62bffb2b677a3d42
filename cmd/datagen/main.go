// Command datagen inspects and exercises image classification datasets
// described by a manifest of "<path> <label>" lines.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/Noofbiz/datagen/config"
	"github.com/Noofbiz/datagen/datasets"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
)

// options holds the command line overrides of the configuration file.
type options struct {
	configPath string

	name          string
	manifestPath  string
	rootDir       string
	mode          string
	batchSize     int
	numClasses    int
	shuffle       bool
	bufferSize    int
	parallelism   int
	seed          int64
	augmentations string
	augmentProb   float64
	gateProb      float64
}

func main() {
	klog.InitFlags(nil)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	klog.Flush()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "datagen",
		Short:        "Batch generator for image classification datasets",
		SilenceUsage: true,
	}
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	opts.register(root.PersistentFlags())

	root.AddCommand(
		newRunCmd(opts),
		newInspectCmd(opts),
		newStatsCmd(opts),
		newPreviewCmd(opts),
	)
	return root
}

func (o *options) register(fs *pflag.FlagSet) {
	d := config.Default()
	fs.StringVarP(&o.configPath, "config", "c", "", "YAML configuration file; flags override its values")
	fs.StringVar(&o.name, "name", "", "dataset name (defaults to the manifest file name)")
	fs.StringVarP(&o.manifestPath, "manifest", "m", "", "manifest file, or a directory containing one")
	fs.StringVar(&o.rootDir, "root", "", "directory prefixed to relative manifest paths (defaults to the manifest directory)")
	fs.StringVar(&o.mode, "mode", "", "training or inference (required)")
	fs.IntVarP(&o.batchSize, "batch-size", "b", 32, "samples per batch")
	fs.IntVarP(&o.numClasses, "num-classes", "n", 0, "number of classes")
	fs.BoolVar(&o.shuffle, "shuffle", d.Shuffle, "shuffle the manifest and every epoch")
	fs.IntVar(&o.bufferSize, "shuffle-buffer", d.ShuffleBufferSize, "shuffle buffer size")
	fs.IntVarP(&o.parallelism, "workers", "w", d.Parallelism, "concurrent image workers")
	fs.Int64Var(&o.seed, "seed", 0, "random seed (0 uses the clock)")
	fs.StringVar(&o.augmentations, "augment", strings.Join(d.Augmentations, ","), "comma separated augmentations")
	fs.Float64Var(&o.augmentProb, "augment-prob", d.AugmentProbability, "probability of augmenting a training sample")
	fs.Float64Var(&o.gateProb, "gate-prob", d.GateProbability, "probability of each augmentation firing")
}

// load builds the configuration: the YAML file if any, then every flag
// explicitly set on the command line.
func (o *options) load(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return cfg, err
		}
	}
	fs := cmd.Flags()
	set := func(name string) bool {
		return o.configPath == "" || fs.Changed(name)
	}
	if set("name") {
		cfg.Name = o.name
	}
	if set("manifest") {
		cfg.ManifestPath = o.manifestPath
	}
	if set("root") {
		cfg.RootDir = o.rootDir
	}
	if set("mode") && o.mode != "" {
		mode, err := config.ParseMode(o.mode)
		if err != nil {
			return cfg, err
		}
		cfg.Mode = mode
	}
	if set("batch-size") {
		cfg.BatchSize = o.batchSize
	}
	if set("num-classes") {
		cfg.NumClasses = o.numClasses
	}
	if set("shuffle") {
		cfg.Shuffle = o.shuffle
	}
	if set("shuffle-buffer") {
		cfg.ShuffleBufferSize = o.bufferSize
	}
	if set("workers") {
		cfg.Parallelism = o.parallelism
	}
	if set("seed") {
		cfg.Seed = o.seed
	}
	if set("augment") {
		cfg.Augmentations = splitList(o.augmentations)
	}
	if set("augment-prob") {
		cfg.AugmentProbability = o.augmentProb
	}
	if set("gate-prob") {
		cfg.GateProbability = o.gateProb
	}

	if info, err := os.Stat(cfg.ManifestPath); err == nil && info.IsDir() {
		found, err := datasets.FindManifest(cfg.ManifestPath)
		if err != nil {
			return cfg, errors.WithMessagef(err, "manifest %s", cfg.ManifestPath)
		}
		cfg.ManifestPath = found
	}
	if cfg.RootDir == "" && cfg.ManifestPath != "" {
		cfg.RootDir = filepath.Dir(cfg.ManifestPath)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func ensureDir(path string) error {
	if path == "" {
		return nil
	}
	return os.MkdirAll(path, 0755)
}
