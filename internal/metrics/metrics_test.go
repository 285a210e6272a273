package metrics

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSIMIdenticalImagesScoreOne(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	x := make([]float64, 256)
	for i := range x {
		x[i] = rng.Float64()
	}
	score, err := SSIM(x, x, 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestSSIMConstantImages(t *testing.T) {
	x := make([]float64, 64)
	y := make([]float64, 64)
	for i := range x {
		x[i] = 0.5
		y[i] = 0.5
	}
	score, err := SSIM(x, y, 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestSSIMWithinValidRange(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	x := make([]float64, 512)
	y := make([]float64, 512)
	for i := range x {
		x[i] = rng.Float64()
		y[i] = rng.Float64()
	}
	score, err := SSIM(x, y, 1.0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, -1.0)
	assert.LessOrEqual(t, score, 1.0)
	assert.Less(t, score, 0.9, "unrelated noise should not look similar")
}

func TestSSIMLengthMismatch(t *testing.T) {
	_, err := SSIM([]float64{1, 2}, []float64{1}, 1.0)
	assert.Error(t, err)
	_, err = SSIM(nil, nil, 1.0)
	assert.Error(t, err)
}

func TestAccumulatorReductions(t *testing.T) {
	var acc Accumulator
	acc.AddSquaredError(2.0, 4)
	acc.AddSquaredError(1.0, 2)
	acc.AddSSIM(0.5)
	acc.AddSSIM(1.0)

	assert.InDelta(t, 0.5, acc.MSE(), 1e-12)
	assert.InDelta(t, 0.75, acc.MeanSSIM(), 1e-12)
	assert.Equal(t, 2, acc.Images())
}

func TestAccumulatorEmpty(t *testing.T) {
	var acc Accumulator
	assert.Zero(t, acc.MSE())
	assert.Zero(t, acc.MeanSSIM())
	assert.Zero(t, acc.Images())
}

func TestWindowSnapshotResets(t *testing.T) {
	var w Window
	w.Record(4, 20*time.Millisecond, 0.6)
	w.Record(4, 20*time.Millisecond, 0.2)

	snap := w.Snapshot()
	assert.InDelta(t, 0.4, snap.MeanLoss, 1e-12)
	assert.InDelta(t, 20.0, snap.AvgBatchMS, 1e-9)
	assert.InDelta(t, 200.0, snap.ImagesPerSec, 1e-9)
	assert.Equal(t, 2, snap.Batches)

	empty := w.Snapshot()
	assert.Zero(t, empty.MeanLoss)
	assert.Zero(t, empty.Batches)
}
