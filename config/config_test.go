package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Default()
	cfg.ManifestPath = "train.txt"
	cfg.RootDir = "/data"
	cfg.Mode = Training
	cfg.BatchSize = 32
	cfg.NumClasses = 10
	return cfg
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("training")
	require.NoError(t, err)
	assert.Equal(t, Training, m)

	m, err = ParseMode(" Inference ")
	require.NoError(t, err)
	assert.Equal(t, Inference, m)

	_, err = ParseMode("validation")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.Shuffle)
	assert.Equal(t, 1000, cfg.ShuffleBufferSize)
	assert.Equal(t, 8, cfg.Parallelism)
	assert.Equal(t, []string{"flip"}, cfg.Augmentations)
	assert.Equal(t, 0.5, cfg.AugmentProbability)
	assert.Equal(t, 0.25, cfg.GateProbability)
	assert.Equal(t, ModeUnset, cfg.Mode)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	for name, mutate := range map[string]func(*Config){
		"no manifest":      func(c *Config) { c.ManifestPath = "" },
		"no root":          func(c *Config) { c.RootDir = "" },
		"no mode":          func(c *Config) { c.Mode = ModeUnset },
		"bad mode":         func(c *Config) { c.Mode = Mode(7) },
		"zero batch":       func(c *Config) { c.BatchSize = 0 },
		"negative classes": func(c *Config) { c.NumClasses = -1 },
		"zero buffer":      func(c *Config) { c.ShuffleBufferSize = 0 },
		"zero parallelism": func(c *Config) { c.Parallelism = 0 },
		"augment prob > 1": func(c *Config) { c.AugmentProbability = 1.5 },
		"gate prob < 0":    func(c *Config) { c.GateProbability = -0.1 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfig), "got %v", err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gen.yaml")
	content := `
manifest_path: lists/train.txt
root_dir: /images
mode: inference
batch_size: 16
num_classes: 2
shuffle: false
augmentations: [flip, zoom]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Inference, cfg.Mode)
	assert.Equal(t, 16, cfg.BatchSize)
	assert.Equal(t, 2, cfg.NumClasses)
	assert.False(t, cfg.Shuffle)
	assert.Equal(t, []string{"flip", "zoom"}, cfg.Augmentations)
	// Untouched fields keep their defaults.
	assert.Equal(t, 1000, cfg.ShuffleBufferSize)
	assert.Equal(t, "train", cfg.DatasetName())
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("manifest_path: train.txt\nroot_dir: /data\nbatch_size: 4\nnum_classes: 2\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeUnset, cfg.Mode)
	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
	assert.Contains(t, err.Error(), "mode is required")
}

func TestLoadInvalidMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: validation\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
}
