// Package metrics implements reconstruction-quality measures and the
// running accumulators used while training and evaluating.
package metrics

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
)

// SSIM constants from Wang et al.; dataRange is the dynamic range of the
// inputs (1.0 for unit-normalized images).
const (
	ssimK1 = 0.01
	ssimK2 = 0.03
)

// SSIM returns the global structural similarity between two equally sized
// signals. The score lies in [-1, 1], with 1 for identical inputs.
func SSIM(x, y []float64, dataRange float64) (float64, error) {
	if len(x) == 0 || len(x) != len(y) {
		return 0, fmt.Errorf("ssim: mismatched lengths %d and %d", len(x), len(y))
	}

	c1 := (ssimK1 * dataRange) * (ssimK1 * dataRange)
	c2 := (ssimK2 * dataRange) * (ssimK2 * dataRange)

	muX := stat.Mean(x, nil)
	muY := stat.Mean(y, nil)
	sigmaX := stat.Variance(x, nil)
	sigmaY := stat.Variance(y, nil)
	sigmaXY := stat.Covariance(x, y, nil)

	num := (2*muX*muY + c1) * (2*sigmaXY + c2)
	den := (muX*muX + muY*muY + c1) * (sigmaX + sigmaY + c2)
	if den <= 0 {
		return 0, nil
	}
	return num / den, nil
}

// Accumulator gathers evaluation statistics over one pass.
type Accumulator struct {
	sqErr  float64
	count  int
	scores []float64
}

// AddSquaredError records the summed squared error over n scalar values.
func (a *Accumulator) AddSquaredError(sum float64, n int) {
	a.sqErr += sum
	a.count += n
}

// AddSSIM records one per-image similarity score.
func (a *Accumulator) AddSSIM(score float64) {
	a.scores = append(a.scores, score)
}

// Images returns the number of scored images.
func (a *Accumulator) Images() int {
	return len(a.scores)
}

// MSE returns the squared error normalized by the total value count.
func (a *Accumulator) MSE() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sqErr / float64(a.count)
}

// MeanSSIM returns the mean of the recorded similarity scores.
func (a *Accumulator) MeanSSIM() float64 {
	if len(a.scores) == 0 {
		return 0
	}
	return stat.Mean(a.scores, nil)
}

// Window accumulates loss and timing stats across the batches of one epoch.
type Window struct {
	samples int
	elapsed time.Duration
	steps   int
	loss    float64
}

// Record adds one batch measurement to the window.
func (w *Window) Record(batchSize int, elapsed time.Duration, loss float64) {
	w.samples += batchSize
	w.elapsed += elapsed
	w.steps++
	w.loss += loss
}

// Snapshot returns the aggregated view and resets the window.
type Snapshot struct {
	MeanLoss     float64
	ImagesPerSec float64
	AvgBatchMS   float64
	Batches      int
}

// Snapshot reduces the window to per-epoch aggregates and resets it.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{Batches: w.steps}
	if w.steps > 0 {
		snap.MeanLoss = w.loss / float64(w.steps)
		snap.AvgBatchMS = (w.elapsed.Seconds() * 1000) / float64(w.steps)
	}
	if w.elapsed > 0 {
		snap.ImagesPerSec = float64(w.samples) / w.elapsed.Seconds()
	}

	w.samples = 0
	w.elapsed = 0
	w.steps = 0
	w.loss = 0
	return snap
}
