package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime knobs for a training or evaluation run.
type Config struct {
	DataDir       string  `yaml:"data_dir"`
	Checkpoint    string  `yaml:"checkpoint"`
	Epochs        int     `yaml:"epochs"`
	LearningRate  float64 `yaml:"learning_rate"`
	BatchSize     int     `yaml:"batch_size"`
	EvalBatchSize int     `yaml:"eval_batch_size"`
	Channels      int     `yaml:"channels"`
	Height        int     `yaml:"height"`
	Width         int     `yaml:"width"`
	Workers       int     `yaml:"workers"`
	Seed          int64   `yaml:"seed"`
	TestOnly      bool    `yaml:"test_only"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	DataDir       string
	Checkpoint    string
	Epochs        int
	LearningRate  float64
	BatchSize     int
	EvalBatchSize int
	Height        int
	Width         int
	Workers       int
	Seed          int64
	TestOnly      bool
}

// Default returns the configuration used when neither a config file nor a
// flag overrides a knob.
func Default() *Config {
	return &Config{
		Checkpoint:    "model.ckpt",
		Epochs:        15,
		LearningRate:  0.001,
		BatchSize:     32,
		EvalBatchSize: 8,
		Channels:      3,
		Height:        150,
		Width:         225,
		Workers:       1,
	}
}

// Load reads a Config from YAML, starting from the defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
	if o.Checkpoint != "" {
		c.Checkpoint = o.Checkpoint
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.LearningRate > 0 {
		c.LearningRate = o.LearningRate
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.EvalBatchSize > 0 {
		c.EvalBatchSize = o.EvalBatchSize
	}
	if o.Height > 0 {
		c.Height = o.Height
	}
	if o.Width > 0 {
		c.Width = o.Width
	}
	if o.Workers > 0 {
		c.Workers = o.Workers
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.TestOnly {
		c.TestOnly = true
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.DataDir == "" {
		return errors.New("data directory must be set")
	}
	if c.Checkpoint == "" {
		return errors.New("checkpoint path must be set")
	}
	if !c.TestOnly {
		if c.Epochs <= 0 {
			return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
		}
		if c.LearningRate <= 0 {
			return fmt.Errorf("learning_rate must be > 0 (got %g)", c.LearningRate)
		}
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.EvalBatchSize <= 0 {
		return fmt.Errorf("eval_batch_size must be > 0 (got %d)", c.EvalBatchSize)
	}
	if c.Channels <= 0 || c.Height <= 0 || c.Width <= 0 {
		return fmt.Errorf("image geometry must be positive (got %dx%dx%d)",
			c.Channels, c.Height, c.Width)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0 (got %d)", c.Workers)
	}
	return nil
}
