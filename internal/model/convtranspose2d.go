package model

import "math/rand"

// ConvTranspose2D is a strided transposed convolution with a baked-in
// activation and per-axis output padding. Weights are stored flattened as
// [inChannels][outChannels][kernel][kernel].
type ConvTranspose2D struct {
	inChannels  int
	outChannels int
	kernel      int
	stride      int
	padding     int
	outPadH     int
	outPadW     int
	inH, inW    int
	outH, outW  int

	weights []float64
	biases  []float64

	gradWeights []float64
	gradBiases  []float64

	act Activation

	preAct     []float64
	output     []float64
	gradZ      []float64
	gradIn     []float64
	savedInput []float64
	training   bool
}

// NewConvTranspose2D creates a transposed convolution layer for a fixed
// input geometry. outPadH and outPadW extend the bottom/right edge so the
// output reaches an exact target size.
func NewConvTranspose2D(inC, outC, kernel, stride, padding, inH, inW, outPadH, outPadW int,
	act Activation, rng *rand.Rand) *ConvTranspose2D {

	outH := transposeOutSize(inH, kernel, stride, padding, outPadH)
	outW := transposeOutSize(inW, kernel, stride, padding, outPadW)

	weights := make([]float64, inC*outC*kernel*kernel)
	biases := make([]float64, outC)
	fanIn := inC * kernel * kernel
	for i := range weights {
		weights[i] = heInit(rng, fanIn)
	}
	for i := range biases {
		biases[i] = rng.Float64()*0.2 - 0.1
	}

	return &ConvTranspose2D{
		inChannels:  inC,
		outChannels: outC,
		kernel:      kernel,
		stride:      stride,
		padding:     padding,
		outPadH:     outPadH,
		outPadW:     outPadW,
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
		gradZ:       make([]float64, outC*outH*outW),
		gradIn:      make([]float64, inC*inH*inW),
		savedInput:  make([]float64, inC*inH*inW),
	}
}

// OutputSize returns the flattened output length.
func (c *ConvTranspose2D) OutputSize() int {
	return c.outChannels * c.outH * c.outW
}

// Forward scatters every input position through the kernel into the larger
// output grid, then applies bias and activation. The returned slice is a
// reused buffer valid until the next Forward call.
func (c *ConvTranspose2D) Forward(input []float64) []float64 {
	if c.training {
		copy(c.savedInput, input)
	}

	for i := range c.preAct {
		c.preAct[i] = 0
	}

	outSize := c.outH * c.outW
	ocStride := c.kernel * c.kernel
	icStride := c.outChannels * ocStride

	for ic := 0; ic < c.inChannels; ic++ {
		icWeightBase := ic * icStride
		inBase := ic * c.inH * c.inW

		for oc := 0; oc < c.outChannels; oc++ {
			ocWeightBase := icWeightBase + oc*ocStride
			ocOutBase := oc * outSize

			for kh := 0; kh < c.kernel; kh++ {
				khWeightBase := ocWeightBase + kh*c.kernel

				for kw := 0; kw < c.kernel; kw++ {
					w := c.weights[khWeightBase+kw]

					for ih := 0; ih < c.inH; ih++ {
						oh := ih*c.stride + kh - c.padding
						if oh < 0 || oh >= c.outH {
							continue
						}
						ihBase := inBase + ih*c.inW
						ohBase := ocOutBase + oh*c.outW
						for iw := 0; iw < c.inW; iw++ {
							ow := iw*c.stride + kw - c.padding
							if ow < 0 || ow >= c.outW {
								continue
							}
							c.preAct[ohBase+ow] += w * input[ihBase+iw]
						}
					}
				}
			}
		}
	}

	for oc := 0; oc < c.outChannels; oc++ {
		bias := c.biases[oc]
		base := oc * outSize
		for i := base; i < base+outSize; i++ {
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
func (c *ConvTranspose2D) Backward(grad []float64) []float64 {
	outSize := c.outH * c.outW
	for oc := 0; oc < c.outChannels; oc++ {
		base := oc * outSize
		var biasGrad float64
		for i := base; i < base+outSize; i++ {
			g := grad[i] * c.act.Derivative(c.preAct[i])
			c.gradZ[i] = g
			biasGrad += g
		}
		c.gradBiases[oc] += biasGrad
	}

	for i := range c.gradIn {
		c.gradIn[i] = 0
	}

	ocStride := c.kernel * c.kernel
	icStride := c.outChannels * ocStride

	for ic := 0; ic < c.inChannels; ic++ {
		icWeightBase := ic * icStride
		inBase := ic * c.inH * c.inW

		for oc := 0; oc < c.outChannels; oc++ {
			ocWeightBase := icWeightBase + oc*ocStride
			ocOutBase := oc * outSize

			for kh := 0; kh < c.kernel; kh++ {
				khWeightBase := ocWeightBase + kh*c.kernel

				for kw := 0; kw < c.kernel; kw++ {
					idx := khWeightBase + kw
					w := c.weights[idx]

					for ih := 0; ih < c.inH; ih++ {
						oh := ih*c.stride + kh - c.padding
						if oh < 0 || oh >= c.outH {
							continue
						}
						ihBase := inBase + ih*c.inW
						ohBase := ocOutBase + oh*c.outW
						for iw := 0; iw < c.inW; iw++ {
							ow := iw*c.stride + kw - c.padding
							if ow < 0 || ow >= c.outW {
								continue
							}
							g := c.gradZ[ohBase+ow]
							c.gradWeights[idx] += g * c.savedInput[ihBase+iw]
							c.gradIn[ihBase+iw] += g * w
						}
					}
				}
			}
		}
	}

	return c.gradIn
}

// Params returns weights and biases flattened into one copy.
func (c *ConvTranspose2D) Params() []float64 {
	params := make([]float64, len(c.weights)+len(c.biases))
	copy(params, c.weights)
	copy(params[len(c.weights):], c.biases)
	return params
}

// SetParams overwrites weights and biases from a flattened slice.
func (c *ConvTranspose2D) SetParams(params []float64) {
	copy(c.weights, params[:len(c.weights)])
	copy(c.biases, params[len(c.weights):])
}

// Gradients returns accumulated gradients flattened into one copy.
func (c *ConvTranspose2D) Gradients() []float64 {
	grads := make([]float64, len(c.gradWeights)+len(c.gradBiases))
	copy(grads, c.gradWeights)
	copy(grads[len(c.gradWeights):], c.gradBiases)
	return grads
}

// ClearGradients zeroes the accumulated gradients.
func (c *ConvTranspose2D) ClearGradients() {
	for i := range c.gradWeights {
		c.gradWeights[i] = 0
	}
	for i := range c.gradBiases {
		c.gradBiases[i] = 0
	}
}

// SetTraining toggles gradient bookkeeping for the forward pass.
func (c *ConvTranspose2D) SetTraining(training bool) {
	c.training = training
}

// Clone returns a deep copy with its own buffers.
func (c *ConvTranspose2D) Clone() Layer {
	clone := NewConvTranspose2D(c.inChannels, c.outChannels, c.kernel, c.stride, c.padding,
		c.inH, c.inW, c.outPadH, c.outPadW, c.act, rand.New(rand.NewSource(0)))
	copy(clone.weights, c.weights)
	copy(clone.biases, c.biases)
	clone.training = c.training
	return clone
}
