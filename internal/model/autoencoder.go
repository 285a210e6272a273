package model

import (
	"fmt"
	"math/rand"
)

// Fixed topology: two stride-2 convolutions into an 8-channel bottleneck,
// mirrored by two stride-2 transposed convolutions back to the input shape.
const (
	encoderWidth = 32
	bottleneck   = 8
	kernelSize   = 3
	stride       = 2
	convPadding  = 1
)

// Autoencoder compresses a (channels, height, width) image through a
// convolutional bottleneck and reconstructs it with values in (0,1).
type Autoencoder struct {
	channels int
	height   int
	width    int
	layers   []Layer
}

// New builds the autoencoder for the given geometry. The decoder's output
// padding is derived from the transpose-convolution size formula so that
// its output spatial size equals the encoder's input exactly; geometries
// for which that is impossible are rejected.
func New(channels, height, width int, seed int64) (*Autoencoder, error) {
	if channels <= 0 || height <= 0 || width <= 0 {
		return nil, fmt.Errorf("invalid geometry %dx%dx%d", channels, height, width)
	}

	rng := rand.New(rand.NewSource(seed))

	h1 := convOutSize(height, kernelSize, stride, convPadding)
	w1 := convOutSize(width, kernelSize, stride, convPadding)
	h2 := convOutSize(h1, kernelSize, stride, convPadding)
	w2 := convOutSize(w1, kernelSize, stride, convPadding)
	if h2 < 1 || w2 < 1 {
		return nil, fmt.Errorf("geometry %dx%d too small for two stride-%d stages", height, width, stride)
	}

	opH1, err := transposeOutputPadding(h2, h1, kernelSize, stride, convPadding)
	if err != nil {
		return nil, fmt.Errorf("decoder stage 1 height: %w", err)
	}
	opW1, err := transposeOutputPadding(w2, w1, kernelSize, stride, convPadding)
	if err != nil {
		return nil, fmt.Errorf("decoder stage 1 width: %w", err)
	}
	opH2, err := transposeOutputPadding(h1, height, kernelSize, stride, convPadding)
	if err != nil {
		return nil, fmt.Errorf("decoder stage 2 height: %w", err)
	}
	opW2, err := transposeOutputPadding(w1, width, kernelSize, stride, convPadding)
	if err != nil {
		return nil, fmt.Errorf("decoder stage 2 width: %w", err)
	}

	layers := []Layer{
		NewConv2D(channels, encoderWidth, kernelSize, stride, convPadding, height, width, ReLU{}, rng),
		NewConv2D(encoderWidth, bottleneck, kernelSize, stride, convPadding, h1, w1, ReLU{}, rng),
		NewConvTranspose2D(bottleneck, encoderWidth, kernelSize, stride, convPadding, h2, w2, opH1, opW1, ReLU{}, rng),
		NewConvTranspose2D(encoderWidth, channels, kernelSize, stride, convPadding, h1, w1, opH2, opW2, Sigmoid{}, rng),
	}

	return &Autoencoder{
		channels: channels,
		height:   height,
		width:    width,
		layers:   layers,
	}, nil
}

// Channels returns the image channel count.
func (a *Autoencoder) Channels() int { return a.channels }

// Height returns the image height.
func (a *Autoencoder) Height() int { return a.height }

// Width returns the image width.
func (a *Autoencoder) Width() int { return a.width }

// InputSize returns the flattened image length the model consumes and emits.
func (a *Autoencoder) InputSize() int {
	return a.channels * a.height * a.width
}

// Forward reconstructs one flattened channel-first image. The result is a
// reused buffer owned by the final layer, valid until the next call.
func (a *Autoencoder) Forward(x []float64) []float64 {
	out := x
	for _, l := range a.layers {
		out = l.Forward(out)
	}
	return out
}

// Backward propagates the loss gradient w.r.t. the reconstruction through
// all layers, accumulating parameter gradients.
func (a *Autoencoder) Backward(grad []float64) {
	for i := len(a.layers) - 1; i >= 0; i-- {
		grad = a.layers[i].Backward(grad)
	}
}

// Params returns per-layer parameter copies.
func (a *Autoencoder) Params() [][]float64 {
	params := make([][]float64, len(a.layers))
	for i, l := range a.layers {
		params[i] = l.Params()
	}
	return params
}

// SetParams overwrites all layer parameters.
func (a *Autoencoder) SetParams(params [][]float64) error {
	if len(params) != len(a.layers) {
		return fmt.Errorf("expected %d parameter groups, got %d", len(a.layers), len(params))
	}
	for i, l := range a.layers {
		if len(params[i]) != len(l.Params()) {
			return fmt.Errorf("parameter group %d: expected %d values, got %d",
				i, len(l.Params()), len(params[i]))
		}
		l.SetParams(params[i])
	}
	return nil
}

// Gradients returns per-layer accumulated gradient copies.
func (a *Autoencoder) Gradients() [][]float64 {
	grads := make([][]float64, len(a.layers))
	for i, l := range a.layers {
		grads[i] = l.Gradients()
	}
	return grads
}

// ClearGradients zeroes every layer's accumulated gradients.
func (a *Autoencoder) ClearGradients() {
	for _, l := range a.layers {
		l.ClearGradients()
	}
}

// SetTraining toggles gradient bookkeeping on all layers.
func (a *Autoencoder) SetTraining(training bool) {
	for _, l := range a.layers {
		l.SetTraining(training)
	}
}

// Clone returns a model replica with copied parameters and independent
// buffers, suitable for concurrent gradient computation.
func (a *Autoencoder) Clone() *Autoencoder {
	layers := make([]Layer, len(a.layers))
	for i, l := range a.layers {
		layers[i] = l.Clone()
	}
	return &Autoencoder{
		channels: a.channels,
		height:   a.height,
		width:    a.width,
		layers:   layers,
	}
}
