package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsRunnableWithDataDir(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/tmp/frames"
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 15, cfg.Epochs)
	assert.Equal(t, 0.001, cfg.LearningRate)
	assert.Equal(t, 32, cfg.BatchSize)
	assert.Equal(t, 8, cfg.EvalBatchSize)
	assert.Equal(t, 150, cfg.Height)
	assert.Equal(t, 225, cfg.Width)
}

func TestLoadAppliesDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	body := "data_dir: /data/frames\nepochs: 3\nlearning_rate: 0.01\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/frames", cfg.DataDir)
	assert.Equal(t, 3, cfg.Epochs)
	assert.Equal(t, 0.01, cfg.LearningRate)
	assert.Equal(t, 32, cfg.BatchSize, "unset keys keep defaults")
	assert.Equal(t, "model.ckpt", cfg.Checkpoint)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("epochs: [oops\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	cfg.ApplyOverrides(Overrides{
		DataDir:      "/data/frames",
		Epochs:       2,
		LearningRate: 0.1,
		BatchSize:    4,
		Seed:         99,
		TestOnly:     true,
	})

	assert.Equal(t, "/data/frames", cfg.DataDir)
	assert.Equal(t, 2, cfg.Epochs)
	assert.Equal(t, 0.1, cfg.LearningRate)
	assert.Equal(t, 4, cfg.BatchSize)
	assert.Equal(t, int64(99), cfg.Seed)
	assert.True(t, cfg.TestOnly)
	assert.Equal(t, 8, cfg.EvalBatchSize, "zero override leaves default")
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing data dir", func(c *Config) { c.DataDir = "" }},
		{"missing checkpoint", func(c *Config) { c.Checkpoint = "" }},
		{"zero epochs", func(c *Config) { c.Epochs = 0 }},
		{"negative lr", func(c *Config) { c.LearningRate = -1 }},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }},
		{"zero eval batch", func(c *Config) { c.EvalBatchSize = 0 }},
		{"zero height", func(c *Config) { c.Height = 0 }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.DataDir = "/tmp/frames"
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateTestOnlySkipsTrainingKnobs(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/tmp/frames"
	cfg.TestOnly = true
	cfg.Epochs = 0
	cfg.LearningRate = 0
	assert.NoError(t, cfg.Validate())
}
