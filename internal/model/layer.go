// Package model implements the convolutional autoencoder and its layers.
package model

import (
	"fmt"
	"math"
	"math/rand"
)

// Layer is the contract shared by the autoencoder's building blocks.
// Forward and Backward operate on one image at a time, flattened in
// channel-first order. Backward accumulates parameter gradients until
// ClearGradients is called.
type Layer interface {
	Forward(input []float64) []float64
	Backward(grad []float64) []float64
	Params() []float64
	SetParams(params []float64)
	Gradients() []float64
	ClearGradients()
	SetTraining(training bool)
	Clone() Layer
}

// convOutSize applies the convolution output-size formula.
func convOutSize(in, kernel, stride, padding int) int {
	return (in+2*padding-kernel)/stride + 1
}

// transposeOutSize applies the transposed-convolution output-size formula.
func transposeOutSize(in, kernel, stride, padding, outputPadding int) int {
	return (in-1)*stride - 2*padding + kernel + outputPadding
}

// transposeOutputPadding returns the smallest output padding that makes a
// transposed convolution over `in` produce exactly `target`. The decoder's
// padding values are derived this way instead of being fixed constants so
// that any configured resolution round-trips exactly.
func transposeOutputPadding(in, target, kernel, stride, padding int) (int, error) {
	base := transposeOutSize(in, kernel, stride, padding, 0)
	op := target - base
	if op < 0 || op >= stride {
		return 0, fmt.Errorf("no output padding in [0,%d) maps %d back to %d", stride, in, target)
	}
	return op, nil
}

// heInit draws a weight from the He-uniform range for fan-in.
func heInit(rng *rand.Rand, fanIn int) float64 {
	scale := math.Sqrt(2.0 / float64(fanIn))
	return rng.Float64()*2*scale - scale
}
