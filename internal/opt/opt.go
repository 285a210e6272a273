// Package opt provides gradient-based parameter update rules.
package opt

import "math"

// Optimizer applies one update step to a parameter group. The group index
// identifies the layer so stateful optimizers can keep per-group moments.
type Optimizer interface {
	Step(group int, params, grads []float64)
}

// SGD is plain stochastic gradient descent.
type SGD struct {
	LearningRate float64
}

// Step updates params in place: params -= lr * grads.
func (s SGD) Step(_ int, params, grads []float64) {
	for i := range params {
		params[i] -= s.LearningRate * grads[i]
	}
}

// Adam implements adaptive moment estimation with bias correction.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	m map[int][]float64
	v map[int][]float64
	t map[int]int
}

// NewAdam creates an Adam optimizer with the conventional defaults.
func NewAdam(learningRate float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		m:            make(map[int][]float64),
		v:            make(map[int][]float64),
		t:            make(map[int]int),
	}
}

// Step updates params in place using bias-corrected first and second
// moment estimates tracked per group.
func (a *Adam) Step(group int, params, grads []float64) {
	m, ok := a.m[group]
	if !ok {
		m = make([]float64, len(params))
		a.m[group] = m
	}
	v, ok := a.v[group]
	if !ok {
		v = make([]float64, len(params))
		a.v[group] = v
	}

	a.t[group]++
	t := float64(a.t[group])
	mCorr := 1 - math.Pow(a.Beta1, t)
	vCorr := 1 - math.Pow(a.Beta2, t)

	for i := range params {
		g := grads[i]
		m[i] = a.Beta1*m[i] + (1-a.Beta1)*g
		v[i] = a.Beta2*v[i] + (1-a.Beta2)*g*g
		mHat := m[i] / mCorr
		vHat := v[i] / vCorr
		params[i] -= a.LearningRate * mHat / (math.Sqrt(vHat) + a.Epsilon)
	}
}
