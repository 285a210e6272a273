// Package trainer runs the optimization and evaluation passes over a
// loaded dataset.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"compressnet/internal/dataset"
	"compressnet/internal/metrics"
	"compressnet/internal/model"
	"compressnet/internal/opt"
)

// RunConfig captures the knobs required by the training loop.
type RunConfig struct {
	Epochs       int
	LearningRate float64
	Workers      int
	// Progress receives the per-epoch loss lines. Defaults to stdout.
	Progress io.Writer
}

// Train performs cfg.Epochs full passes over the loader, updating m with
// Adam, and returns the ordered per-epoch mean losses. Gradients are
// computed on per-worker model replicas and merged before each step.
func Train(ctx context.Context, m *model.Autoencoder, loader *dataset.Loader, cfg RunConfig) ([]float64, error) {
	if cfg.Epochs <= 0 {
		return nil, errors.New("trainer: epochs must be > 0")
	}
	if cfg.LearningRate <= 0 {
		return nil, errors.New("trainer: learning rate must be > 0")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	progress := cfg.Progress
	if progress == nil {
		progress = os.Stdout
	}

	optimizer := opt.NewAdam(cfg.LearningRate)

	replicas := make([]*model.Autoencoder, cfg.Workers)
	replicas[0] = m
	for i := 1; i < cfg.Workers; i++ {
		replicas[i] = m.Clone()
	}
	for _, r := range replicas {
		r.SetTraining(true)
	}
	defer m.SetTraining(false)

	losses := make([]float64, 0, cfg.Epochs)
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		loader.Reset()
		var window metrics.Window

		for {
			batch, ok := loader.Next()
			if !ok {
				break
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			start := time.Now()
			loss, err := trainBatch(replicas, optimizer, batch)
			if err != nil {
				return nil, err
			}
			window.Record(len(batch), time.Since(start), loss)
		}

		snap := window.Snapshot()
		if snap.Batches == 0 {
			return nil, errors.New("trainer: training set is empty")
		}

		fmt.Fprintf(progress, "Epoch %d/%d – loss %.4f\n", epoch, cfg.Epochs, snap.MeanLoss)
		log.WithFields(log.Fields{
			"epoch":          epoch,
			"loss":           snap.MeanLoss,
			"images_per_sec": snap.ImagesPerSec,
			"batch_ms":       snap.AvgBatchMS,
		}).Debug("epoch complete")

		losses = append(losses, snap.MeanLoss)
	}

	return losses, nil
}

// trainBatch runs forward/backward over one batch, merges the replica
// gradients and applies a single optimizer step, then resynchronizes the
// replicas. Returns the batch mean reconstruction loss.
func trainBatch(replicas []*model.Autoencoder, optimizer opt.Optimizer, batch [][]float64) (float64, error) {
	workers := len(replicas)
	if workers > len(batch) {
		workers = len(batch)
	}
	for _, r := range replicas {
		r.ClearGradients()
	}

	scale := 1 / float64(len(batch))
	chunks := splitChunks(batch, workers)
	chunkLosses := make([]float64, workers)

	if workers == 1 {
		chunkLosses[0] = runChunk(replicas[0], chunks[0], scale)
	} else {
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				chunkLosses[w] = runChunk(replicas[w], chunks[w], scale)
			}(w)
		}
		wg.Wait()
	}

	grads := replicas[0].Gradients()
	for w := 1; w < workers; w++ {
		for i, g := range replicas[w].Gradients() {
			dst := grads[i]
			for j := range dst {
				dst[j] += g[j]
			}
		}
	}

	params := replicas[0].Params()
	for i := range params {
		optimizer.Step(i, params[i], grads[i])
	}
	for _, r := range replicas {
		if err := r.SetParams(params); err != nil {
			return 0, fmt.Errorf("trainer: resync replica: %w", err)
		}
	}

	var total float64
	for _, l := range chunkLosses {
		total += l
	}
	return total * scale, nil
}

// runChunk accumulates gradients for a slice of the batch on one replica
// and returns the summed per-image losses.
func runChunk(m *model.Autoencoder, images [][]float64, scale float64) float64 {
	grad := make([]float64, m.InputSize())
	var sum float64
	for _, x := range images {
		out := m.Forward(x)
		sum += lossAndGrad(out, x, scale, grad)
		m.Backward(grad)
	}
	return sum
}

// lossAndGrad computes the per-image mean squared error and writes
// scale * dMSE/dy into grad.
func lossAndGrad(output, target []float64, scale float64, grad []float64) float64 {
	n := float64(len(output))
	var sum float64
	for j := range output {
		d := output[j] - target[j]
		sum += d * d
		grad[j] = 2 * d / n * scale
	}
	return sum / n
}

// splitChunks divides batch into n contiguous, near-equal chunks.
func splitChunks(batch [][]float64, n int) [][][]float64 {
	chunks := make([][][]float64, n)
	base := len(batch) / n
	rem := len(batch) % n
	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		chunks[i] = batch[start : start+size]
		start += size
	}
	return chunks
}

// Evaluate runs the model over the loader without gradient tracking and
// returns the squared error normalized by total pixel count plus the mean
// per-image structural similarity, computed on the channel-mean of each
// original/reconstruction pair with a fixed data range of 1.0.
func Evaluate(ctx context.Context, m *model.Autoencoder, loader *dataset.Loader) (mse, ssim float64, err error) {
	m.SetTraining(false)

	channels := m.Channels()
	pixels := m.Height() * m.Width()
	origGray := make([]float64, pixels)
	reconGray := make([]float64, pixels)

	var acc metrics.Accumulator
	loader.Reset()
	for {
		batch, ok := loader.Next()
		if !ok {
			break
		}
		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		default:
		}

		for _, x := range batch {
			out := m.Forward(x)

			var sum float64
			for j := range out {
				d := out[j] - x[j]
				sum += d * d
			}
			acc.AddSquaredError(sum, len(x))

			channelMean(x, channels, pixels, origGray)
			channelMean(out, channels, pixels, reconGray)
			score, err := metrics.SSIM(origGray, reconGray, 1.0)
			if err != nil {
				return 0, 0, err
			}
			acc.AddSSIM(score)
		}
	}

	log.WithFields(log.Fields{
		"images": acc.Images(),
		"mse":    acc.MSE(),
		"ssim":   acc.MeanSSIM(),
	}).Debug("evaluation complete")

	return acc.MSE(), acc.MeanSSIM(), nil
}

// channelMean reduces a flattened CHW image to its per-pixel mean across
// channels.
func channelMean(img []float64, channels, pixels int, dst []float64) {
	inv := 1 / float64(channels)
	for p := 0; p < pixels; p++ {
		var s float64
		for c := 0; c < channels; c++ {
			s += img[c*pixels+p]
		}
		dst[p] = s * inv
	}
}
