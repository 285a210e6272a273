package model

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvOutSizeProgression(t *testing.T) {
	// 150x225 halves (rounding up) at each stride-2 stage.
	assert.Equal(t, 75, convOutSize(150, 3, 2, 1))
	assert.Equal(t, 38, convOutSize(75, 3, 2, 1))
	assert.Equal(t, 113, convOutSize(225, 3, 2, 1))
	assert.Equal(t, 57, convOutSize(113, 3, 2, 1))
}

func TestTransposeOutputPaddingDerivation(t *testing.T) {
	// The 150x225 geometry needs (0,0) for the first decoder stage and
	// (1,0) for the second.
	cases := []struct {
		in, target, want int
	}{
		{38, 75, 0},
		{57, 113, 0},
		{75, 150, 1},
		{113, 225, 0},
	}
	for _, tc := range cases {
		got, err := transposeOutputPadding(tc.in, tc.target, 3, 2, 1)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "in=%d target=%d", tc.in, tc.target)

		assert.Equal(t, tc.target, transposeOutSize(tc.in, 3, 2, 1, got))
	}
}

func TestTransposeOutputPaddingImpossible(t *testing.T) {
	_, err := transposeOutputPadding(10, 30, 3, 2, 1)
	assert.Error(t, err)
	_, err = transposeOutputPadding(10, 15, 3, 2, 1)
	assert.Error(t, err)
}

func TestForwardShapeRoundTrip(t *testing.T) {
	m, err := New(3, 150, 225, 1)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(2))
	x := make([]float64, m.InputSize())
	for i := range x {
		x[i] = rng.Float64()
	}

	out := m.Forward(x)
	assert.Len(t, out, 3*150*225)
	for i, v := range out {
		if v <= 0 || v >= 1 {
			t.Fatalf("output %d = %v outside (0,1)", i, v)
		}
	}
}

func TestForwardShapeRoundTripOddGeometries(t *testing.T) {
	for _, geom := range [][2]int{{8, 12}, {9, 13}, {10, 15}, {150, 225}} {
		m, err := New(1, geom[0], geom[1], 1)
		require.NoError(t, err, "geometry %v", geom)
		x := make([]float64, m.InputSize())
		assert.Len(t, m.Forward(x), m.InputSize(), "geometry %v", geom)
	}
}

func TestGeometryTooSmall(t *testing.T) {
	_, err := New(3, 1, 1, 1)
	assert.Error(t, err)
}

// sumForward is the scalar objective used by the finite-difference checks.
func sumForward(l Layer, x []float64) float64 {
	out := l.Forward(x)
	var s float64
	for _, v := range out {
		s += v
	}
	return s
}

func checkLayerGradients(t *testing.T, l Layer, inSize, outSize int) {
	t.Helper()
	rng := rand.New(rand.NewSource(3))
	x := make([]float64, inSize)
	for i := range x {
		x[i] = rng.Float64()*2 - 1
	}

	l.SetTraining(true)
	l.ClearGradients()
	l.Forward(x)
	ones := make([]float64, outSize)
	for i := range ones {
		ones[i] = 1
	}
	l.Backward(ones)
	analytic := l.Gradients()

	const eps = 1e-6
	params := l.Params()
	for i := range params {
		orig := params[i]
		params[i] = orig + eps
		l.SetParams(params)
		plus := sumForward(l, x)
		params[i] = orig - eps
		l.SetParams(params)
		minus := sumForward(l, x)
		params[i] = orig
		l.SetParams(params)

		fd := (plus - minus) / (2 * eps)
		assert.InDelta(t, fd, analytic[i], 1e-4, "param %d", i)
	}
}

func TestConv2DGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	l := NewConv2D(2, 2, 3, 2, 1, 4, 5, Sigmoid{}, rng)
	checkLayerGradients(t, l, 2*4*5, l.OutputSize())
}

func TestConvTranspose2DGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	l := NewConvTranspose2D(2, 2, 3, 2, 1, 3, 4, 1, 0, Sigmoid{}, rng)
	checkLayerGradients(t, l, 2*3*4, l.OutputSize())
}

func TestCloneIsIndependent(t *testing.T) {
	m, err := New(1, 8, 12, 6)
	require.NoError(t, err)
	clone := m.Clone()

	x := make([]float64, m.InputSize())
	for i := range x {
		x[i] = 0.5
	}
	want := append([]float64(nil), m.Forward(x)...)
	assert.InDeltaSlice(t, want, clone.Forward(x), 1e-12)

	// Perturbing the clone must not affect the original.
	params := clone.Params()
	params[0][0] += 1
	require.NoError(t, clone.SetParams(params))
	assert.InDeltaSlice(t, want, m.Forward(x), 1e-12)
}

func TestCheckpointRoundTrip(t *testing.T) {
	m, err := New(1, 8, 12, 7)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.ckpt")
	require.NoError(t, m.Save(path))

	loaded, err := LoadCheckpoint(path, 1, 8, 12)
	require.NoError(t, err)

	x := make([]float64, m.InputSize())
	for i := range x {
		x[i] = float64(i%7) / 7
	}
	want := append([]float64(nil), m.Forward(x)...)
	assert.InDeltaSlice(t, want, loaded.Forward(x), 1e-12)
}

func TestCheckpointGeometryMismatch(t *testing.T) {
	m, err := New(1, 8, 12, 7)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.ckpt")
	require.NoError(t, m.Save(path))

	_, err = LoadCheckpoint(path, 3, 150, 225)
	assert.ErrorContains(t, err, "geometry")
}

func TestLoadCheckpointMissingFile(t *testing.T) {
	_, err := LoadCheckpoint(filepath.Join(t.TempDir(), "absent.ckpt"), 3, 150, 225)
	assert.Error(t, err)
}
