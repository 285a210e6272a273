package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"compressnet/internal/config"
	"compressnet/internal/dataset"
	"compressnet/internal/model"
	"compressnet/internal/trainer"
)

func main() {
	configureLogging()
	if err := newRootCmd().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func configureLogging() {
	if raw, ok := os.LookupEnv("LOG_LEVEL"); ok {
		if level, err := log.ParseLevel(raw); err == nil {
			log.SetLevel(level)
			return
		}
		log.Warn("Invalid log level. Defaulting to Info level.")
	}
	log.SetLevel(log.InfoLevel)
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath   string
		overrides config.Overrides
	)

	cmd := &cobra.Command{
		Use:           "compressnet",
		Short:         "Train and evaluate a convolutional autoencoder for lossy image compression",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfgPath, overrides)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgPath, "config", "", "optional YAML config file")
	flags.StringVar(&overrides.DataDir, "data", "", "directory of serialized array files")
	flags.IntVar(&overrides.Epochs, "epochs", 0, "training epoch count")
	flags.Float64Var(&overrides.LearningRate, "lr", 0, "optimizer learning rate")
	flags.IntVar(&overrides.BatchSize, "batch", 0, "training batch size")
	flags.IntVar(&overrides.EvalBatchSize, "eval-batch", 0, "evaluation batch size")
	flags.StringVar(&overrides.Checkpoint, "checkpoint", "", "checkpoint file to write (train) or read (--test)")
	flags.IntVar(&overrides.Height, "height", 0, "image height")
	flags.IntVar(&overrides.Width, "width", 0, "image width")
	flags.IntVar(&overrides.Workers, "workers", 0, "gradient worker count")
	flags.Int64Var(&overrides.Seed, "seed", 0, "PRNG seed (0 = time-derived)")
	flags.BoolVar(&overrides.TestOnly, "test", false, "skip training, only load checkpoint and evaluate")

	return cmd
}

func run(parent context.Context, cfgPath string, overrides config.Overrides) error {
	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.ApplyOverrides(overrides)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	geom := dataset.Geometry{Channels: cfg.Channels, Height: cfg.Height, Width: cfg.Width}
	log.WithFields(log.Fields{"dir": cfg.DataDir, "geometry": fmt.Sprintf("%dx%dx%d", geom.Channels, geom.Height, geom.Width)}).
		Info("loading dataset")
	ds, err := dataset.LoadDir(cfg.DataDir, geom)
	if err != nil {
		return err
	}

	trainIdx, testIdx := dataset.Split(ds.Len(), rng)
	log.WithFields(log.Fields{"images": ds.Len(), "train": len(trainIdx), "test": len(testIdx), "seed": seed}).
		Info("dataset loaded")

	var m *model.Autoencoder
	if cfg.TestOnly {
		m, err = model.LoadCheckpoint(cfg.Checkpoint, cfg.Channels, cfg.Height, cfg.Width)
		if err != nil {
			return err
		}
		log.WithField("checkpoint", cfg.Checkpoint).Info("checkpoint loaded")
	} else {
		m, err = model.New(cfg.Channels, cfg.Height, cfg.Width, seed)
		if err != nil {
			return err
		}

		trainLoader := dataset.NewLoader(ds, trainIdx, cfg.BatchSize, true, rng)
		losses, err := trainer.Train(ctx, m, trainLoader, trainer.RunConfig{
			Epochs:       cfg.Epochs,
			LearningRate: cfg.LearningRate,
			Workers:      cfg.Workers,
			Progress:     os.Stdout,
		})
		if err != nil {
			return err
		}
		log.WithField("final_loss", losses[len(losses)-1]).Debug("training finished")

		if err := m.Save(cfg.Checkpoint); err != nil {
			return err
		}
		log.WithField("checkpoint", cfg.Checkpoint).Info("checkpoint written")
	}

	evalLoader := dataset.NewLoader(ds, testIdx, cfg.EvalBatchSize, false, nil)
	mse, ssim, err := trainer.Evaluate(ctx, m, evalLoader)
	if err != nil {
		return err
	}

	fmt.Printf("Test MSE: %.6f\n", mse)
	fmt.Printf("Average SSIM: %.4f\n", ssim)
	return nil
}
