// Package config holds the configuration of the image data generator.
//
// A Config is usually read from a YAML file with Load and then adjusted
// by command line flags. Validate must be called before the Config is
// used to build a generator.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrConfig is returned (wrapped) for every invalid or unsupported
// configuration. It is always fatal.
var ErrConfig = errors.New("invalid configuration")

// Mode selects the sample parsing function.
type Mode int

const (
	// ModeUnset is the zero value; a Config must pick one of the modes below.
	ModeUnset Mode = iota
	// Training applies randomized augmentation.
	Training
	// Inference never augments, so its output is deterministic.
	Inference
)

func (m Mode) String() string {
	switch m {
	case Training:
		return "training"
	case Inference:
		return "inference"
	case ModeUnset:
		return ""
	}
	return "unknown"
}

// ParseMode converts "training" or "inference" into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "training":
		return Training, nil
	case "inference":
		return Inference, nil
	}
	return ModeUnset, errors.Wrapf(ErrConfig, "invalid mode %q", s)
}

// MarshalYAML writes the mode by name.
func (m Mode) MarshalYAML() (any, error) {
	return m.String(), nil
}

// UnmarshalYAML reads the mode by name.
func (m *Mode) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return errors.Wrapf(ErrConfig, "mode: %v", err)
	}
	mode, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// Defaults for the optional fields.
const (
	DefaultShuffleBufferSize  = 1000
	DefaultParallelism        = 8
	DefaultAugmentProbability = 0.5
	DefaultGateProbability    = 0.25
)

// DefaultAugmentations is the chain enabled when none is configured.
var DefaultAugmentations = []string{"flip"}

// Config holds all generator settings.
type Config struct {
	// Name given to the dataset. Defaults to the manifest file name.
	Name string `yaml:"name"`

	// ManifestPath is the text file listing "<path> <label>" lines.
	ManifestPath string `yaml:"manifest_path"`

	// RootDir is prefixed to every relative path of the manifest.
	RootDir string `yaml:"root_dir"`

	Mode       Mode `yaml:"mode"`
	BatchSize  int  `yaml:"batch_size"`
	NumClasses int  `yaml:"num_classes"`

	// Shuffle enables both the one-time permutation of the manifest and
	// the per-epoch buffer shuffle.
	Shuffle           bool `yaml:"shuffle"`
	ShuffleBufferSize int  `yaml:"shuffle_buffer_size"`

	// Parallelism is the number of workers decoding and transforming samples.
	Parallelism int `yaml:"parallelism"`

	// Seed for every random draw. Zero picks a time based seed.
	Seed int64 `yaml:"seed"`

	// Augmentations lists the enabled transforms, in order.
	Augmentations []string `yaml:"augmentations"`

	// AugmentProbability gates the whole chain for a training sample.
	AugmentProbability float64 `yaml:"augment_probability"`

	// GateProbability gates each transform of the chain independently.
	GateProbability float64 `yaml:"gate_probability"`
}

// Default returns a Config with every optional field set. The required
// fields, mode included, are left empty.
func Default() Config {
	return Config{
		Shuffle:            true,
		ShuffleBufferSize:  DefaultShuffleBufferSize,
		Parallelism:        DefaultParallelism,
		Augmentations:      append([]string(nil), DefaultAugmentations...),
		AugmentProbability: DefaultAugmentProbability,
		GateProbability:    DefaultGateProbability,
	}
}

// Load reads a YAML file on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(ErrConfig, "reading %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		if errors.Is(err, ErrConfig) {
			return cfg, err
		}
		return cfg, errors.Wrapf(ErrConfig, "parsing %s: %v", path, err)
	}
	return cfg, nil
}

// DatasetName returns Name, or the manifest file name without extension.
func (c Config) DatasetName() string {
	if c.Name != "" {
		return c.Name
	}
	base := filepath.Base(c.ManifestPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Validate checks every field, and returns the first problem wrapped
// in ErrConfig.
func (c Config) Validate() error {
	switch {
	case c.ManifestPath == "":
		return errors.Wrap(ErrConfig, "manifest_path is required")
	case c.RootDir == "":
		return errors.Wrap(ErrConfig, "root_dir is required")
	case c.Mode == ModeUnset:
		return errors.Wrap(ErrConfig, "mode is required")
	case c.Mode != Training && c.Mode != Inference:
		return errors.Wrapf(ErrConfig, "invalid mode %d", c.Mode)
	case c.BatchSize <= 0:
		return errors.Wrapf(ErrConfig, "batch_size must be positive, got %d", c.BatchSize)
	case c.NumClasses <= 0:
		return errors.Wrapf(ErrConfig, "num_classes must be positive, got %d", c.NumClasses)
	case c.ShuffleBufferSize <= 0:
		return errors.Wrapf(ErrConfig, "shuffle_buffer_size must be positive, got %d", c.ShuffleBufferSize)
	case c.Parallelism <= 0:
		return errors.Wrapf(ErrConfig, "parallelism must be positive, got %d", c.Parallelism)
	case c.AugmentProbability < 0 || c.AugmentProbability > 1:
		return errors.Wrapf(ErrConfig, "augment_probability %g not in [0, 1]", c.AugmentProbability)
	case c.GateProbability < 0 || c.GateProbability > 1:
		return errors.Wrapf(ErrConfig, "gate_probability %g not in [0, 1]", c.GateProbability)
	}
	return nil
}
