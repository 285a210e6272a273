package model

import "math/rand"

// Conv2D is a strided 2D convolution with a baked-in activation.
// Weights are stored flattened as [outChannels][inChannels][kernel][kernel].
type Conv2D struct {
	inChannels  int
	outChannels int
	kernel      int
	stride      int
	padding     int
	inH, inW    int
	outH, outW  int

	weights []float64
	biases  []float64

	gradWeights []float64
	gradBiases  []float64

	act Activation

	preAct     []float64
	output     []float64
	gradIn     []float64
	savedInput []float64
	training   bool
}

// NewConv2D creates a convolution layer for a fixed input geometry.
func NewConv2D(inC, outC, kernel, stride, padding, inH, inW int, act Activation, rng *rand.Rand) *Conv2D {
	outH := convOutSize(inH, kernel, stride, padding)
	outW := convOutSize(inW, kernel, stride, padding)

	weights := make([]float64, outC*inC*kernel*kernel)
	biases := make([]float64, outC)
	fanIn := inC * kernel * kernel
	for i := range weights {
		weights[i] = heInit(rng, fanIn)
	}
	for i := range biases {
		biases[i] = rng.Float64()*0.2 - 0.1
	}

	return &Conv2D{
		inChannels:  inC,
		outChannels: outC,
		kernel:      kernel,
		stride:      stride,
		padding:     padding,
		inH:         inH,
		inW:         inW,
		outH:        outH,
		outW:        outW,
		weights:     weights,
		biases:      biases,
		gradWeights: make([]float64, len(weights)),
		gradBiases:  make([]float64, len(biases)),
		act:         act,
		preAct:      make([]float64, outC*outH*outW),
		output:      make([]float64, outC*outH*outW),
		gradIn:      make([]float64, inC*inH*inW),
		savedInput:  make([]float64, inC*inH*inW),
	}
}

// OutputSize returns the flattened output length.
func (c *Conv2D) OutputSize() int {
	return c.outChannels * c.outH * c.outW
}

// Forward computes activation(conv(input) + bias). The returned slice is a
// reused buffer valid until the next Forward call.
func (c *Conv2D) Forward(input []float64) []float64 {
	if c.training {
		copy(c.savedInput, input)
	}

	for i := range c.preAct {
		c.preAct[i] = 0
	}

	outSize := c.outH * c.outW
	icStride := c.kernel * c.kernel
	ocStride := c.inChannels * icStride

	for oc := 0; oc < c.outChannels; oc++ {
		ocWeightBase := oc * ocStride
		ocOutBase := oc * outSize

		for ic := 0; ic < c.inChannels; ic++ {
			icWeightBase := ocWeightBase + ic*icStride
			inBase := ic * c.inH * c.inW

			for kh := 0; kh < c.kernel; kh++ {
				khWeightBase := icWeightBase + kh*c.kernel

				for kw := 0; kw < c.kernel; kw++ {
					w := c.weights[khWeightBase+kw]

					for oh := 0; oh < c.outH; oh++ {
						ih := oh*c.stride + kh - c.padding
						if ih < 0 || ih >= c.inH {
							continue
						}
						ihBase := inBase + ih*c.inW
						ohBase := ocOutBase + oh*c.outW
						for ow := 0; ow < c.outW; ow++ {
							iw := ow*c.stride + kw - c.padding
							if iw < 0 || iw >= c.inW {
								continue
							}
							c.preAct[ohBase+ow] += w * input[ihBase+iw]
						}
					}
				}
			}
		}

		bias := c.biases[oc]
		for i := ocOutBase; i < ocOutBase+outSize; i++ {
			z := c.preAct[i] + bias
			c.preAct[i] = z
			c.output[i] = c.act.Activate(z)
		}
	}

	return c.output
}

// Backward propagates grad (w.r.t. the activated output) through the layer,
// accumulating weight and bias gradients, and returns the gradient w.r.t.
// the input. Valid only after a training-mode Forward.
func (c *Conv2D) Backward(grad []float64) []float64 {
	for i := range c.gradIn {
		c.gradIn[i] = 0
	}

	outSize := c.outH * c.outW
	icStride := c.kernel * c.kernel
	ocStride := c.inChannels * icStride

	for oc := 0; oc < c.outChannels; oc++ {
		ocWeightBase := oc * ocStride
		ocOutBase := oc * outSize

		for oh := 0; oh < c.outH; oh++ {
			ohBase := ocOutBase + oh*c.outW
			for ow := 0; ow < c.outW; ow++ {
				pos := ohBase + ow
				g := grad[pos] * c.act.Derivative(c.preAct[pos])
				if g == 0 {
					continue
				}
				c.gradBiases[oc] += g

				for ic := 0; ic < c.inChannels; ic++ {
					icWeightBase := ocWeightBase + ic*icStride
					inBase := ic * c.inH * c.inW

					for kh := 0; kh < c.kernel; kh++ {
						ih := oh*c.stride + kh - c.padding
						if ih < 0 || ih >= c.inH {
							continue
						}
						ihBase := inBase + ih*c.inW
						khWeightBase := icWeightBase + kh*c.kernel

						for kw := 0; kw < c.kernel; kw++ {
							iw := ow*c.stride + kw - c.padding
							if iw < 0 || iw >= c.inW {
								continue
							}
							c.gradWeights[khWeightBase+kw] += g * c.savedInput[ihBase+iw]
							c.gradIn[ihBase+iw] += g * c.weights[khWeightBase+kw]
						}
					}
				}
			}
		}
	}

	return c.gradIn
}

// Params returns weights and biases flattened into one copy.
func (c *Conv2D) Params() []float64 {
	params := make([]float64, len(c.weights)+len(c.biases))
	copy(params, c.weights)
	copy(params[len(c.weights):], c.biases)
	return params
}

// SetParams overwrites weights and biases from a flattened slice.
func (c *Conv2D) SetParams(params []float64) {
	copy(c.weights, params[:len(c.weights)])
	copy(c.biases, params[len(c.weights):])
}

// Gradients returns accumulated gradients flattened into one copy.
func (c *Conv2D) Gradients() []float64 {
	grads := make([]float64, len(c.gradWeights)+len(c.gradBiases))
	copy(grads, c.gradWeights)
	copy(grads[len(c.gradWeights):], c.gradBiases)
	return grads
}

// ClearGradients zeroes the accumulated gradients.
func (c *Conv2D) ClearGradients() {
	for i := range c.gradWeights {
		c.gradWeights[i] = 0
	}
	for i := range c.gradBiases {
		c.gradBiases[i] = 0
	}
}

// SetTraining toggles gradient bookkeeping for the forward pass.
func (c *Conv2D) SetTraining(training bool) {
	c.training = training
}

// Clone returns a deep copy with its own buffers.
func (c *Conv2D) Clone() Layer {
	// Fresh rng only seeds throwaway values; params are copied over.
	clone := NewConv2D(c.inChannels, c.outChannels, c.kernel, c.stride, c.padding,
		c.inH, c.inW, c.act, rand.New(rand.NewSource(0)))
	copy(clone.weights, c.weights)
	copy(clone.biases, c.biases)
	clone.training = c.training
	return clone
}
