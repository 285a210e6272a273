package model

import "math"

// Activation is an elementwise activation with its derivative, both taken
// at the pre-activation value.
type Activation interface {
	Activate(x float64) float64
	Derivative(x float64) float64
}

// ReLU activation.
type ReLU struct{}

func (ReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

func (ReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

// Sigmoid activation, bounding outputs to (0,1).
type Sigmoid struct{}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func (Sigmoid) Activate(x float64) float64 {
	return sigmoid(x)
}

func (Sigmoid) Derivative(x float64) float64 {
	s := sigmoid(x)
	return s * (1 - s)
}
