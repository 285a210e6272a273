// Package dataset loads directories of serialized image arrays into a
// normalized channel-first tensor and serves batches of it.
package dataset

import (
	"fmt"
	"math/rand"

	"gorgonia.org/tensor"
)

// Dataset holds the full image tensor: shape (N, C, H, W), values in [0,1].
type Dataset struct {
	images  *tensor.Dense
	backing []float64
	geom    Geometry
}

// LoadDir discovers every array file beneath root, stacks them and
// normalizes pixel intensities to [0,1]. Each file must hold whole images
// in (H, W, C) element order with values in [0,255]; any malformed file
// aborts the load.
func LoadDir(root string, geom Geometry) (*Dataset, error) {
	files, err := Discover(root)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no array files found under %s", root)
	}

	imageSize := geom.ImageSize()
	pixels := geom.Pixels()
	backing := make([]float64, 0)
	n := 0

	for _, path := range files {
		raw, err := readArray(path)
		if err != nil {
			return nil, err
		}
		if len(raw) == 0 || len(raw)%imageSize != 0 {
			return nil, fmt.Errorf("%s: %d values are not reshapable to (*, %d, %d, %d)",
				path, len(raw), geom.Height, geom.Width, geom.Channels)
		}

		count := len(raw) / imageSize
		chw := make([]float64, count*imageSize)
		// HWC to CHW, scaled by 1/255.
		for img := 0; img < count; img++ {
			src := raw[img*imageSize : (img+1)*imageSize]
			dst := chw[img*imageSize : (img+1)*imageSize]
			for h := 0; h < geom.Height; h++ {
				for w := 0; w < geom.Width; w++ {
					base := (h*geom.Width + w) * geom.Channels
					for c := 0; c < geom.Channels; c++ {
						dst[c*pixels+h*geom.Width+w] = src[base+c] / 255.0
					}
				}
			}
		}
		backing = append(backing, chw...)
		n += count
	}

	images := tensor.New(
		tensor.WithShape(n, geom.Channels, geom.Height, geom.Width),
		tensor.WithBacking(backing),
	)
	return &Dataset{images: images, backing: backing, geom: geom}, nil
}

// Len returns the number of images.
func (d *Dataset) Len() int {
	return d.images.Shape()[0]
}

// Geometry returns the per-image shape.
func (d *Dataset) Geometry() Geometry {
	return d.geom
}

// Image returns a zero-copy view of image i in flattened CHW order.
func (d *Dataset) Image(i int) []float64 {
	size := d.geom.ImageSize()
	return d.backing[i*size : (i+1)*size]
}

// Split partitions [0, n) into disjoint train and test index sets with
// trainLen = floor(0.8*n). Ordering depends on rng, so an unseeded rng
// yields a different test set composition every run.
func Split(n int, rng *rand.Rand) (train, test []int) {
	perm := rng.Perm(n)
	trainLen := n * 4 / 5
	return perm[:trainLen], perm[trainLen:]
}

// Loader produces batches of images over a fixed index set.
type Loader struct {
	ds        *Dataset
	indices   []int
	batchSize int
	shuffle   bool
	rng       *rand.Rand
	cursor    int
}

// NewLoader wraps an index set in a batch iterator. A shuffling loader
// reorders its indices on every Reset; rng may be nil when shuffle is off.
func NewLoader(ds *Dataset, indices []int, batchSize int, shuffle bool, rng *rand.Rand) *Loader {
	owned := append([]int(nil), indices...)
	return &Loader{
		ds:        ds,
		indices:   owned,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rng,
	}
}

// Len returns the number of images the loader iterates over.
func (l *Loader) Len() int {
	return len(l.indices)
}

// Reset rewinds the loader for another pass, reshuffling if configured.
func (l *Loader) Reset() {
	l.cursor = 0
	if l.shuffle && l.rng != nil {
		l.rng.Shuffle(len(l.indices), func(i, j int) {
			l.indices[i], l.indices[j] = l.indices[j], l.indices[i]
		})
	}
}

// Next returns the next batch as per-image views into the dataset backing.
// The final batch may be short. ok is false once the pass is exhausted.
func (l *Loader) Next() (batch [][]float64, ok bool) {
	if l.cursor >= len(l.indices) {
		return nil, false
	}
	end := l.cursor + l.batchSize
	if end > len(l.indices) {
		end = len(l.indices)
	}
	batch = make([][]float64, 0, end-l.cursor)
	for _, idx := range l.indices[l.cursor:end] {
		batch = append(batch, l.ds.Image(idx))
	}
	l.cursor = end
	return batch, true
}
