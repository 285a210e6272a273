package dataset

import (
	"fmt"
	"os"

	"gorgonia.org/tensor"
)

// Geometry is the fixed per-image shape every array file must conform to.
type Geometry struct {
	Channels int
	Height   int
	Width    int
}

// ImageSize returns the number of scalar values in one image.
func (g Geometry) ImageSize() int {
	return g.Channels * g.Height * g.Width
}

// Pixels returns the spatial size of one channel.
func (g Geometry) Pixels() int {
	return g.Height * g.Width
}

// readArray loads one .npy file and returns its values as a flat float64
// slice in the file's own (row-major) element order.
func readArray(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open array: %w", err)
	}
	defer f.Close()

	var t tensor.Dense
	if err := t.ReadNpy(f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	switch data := t.Data().(type) {
	case []float64:
		out := make([]float64, len(data))
		copy(out, data)
		return out, nil
	case []float32:
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = float64(v)
		}
		return out, nil
	case []uint8:
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = float64(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("read %s: unsupported dtype %v", path, t.Dtype())
	}
}
