package model

import (
	"encoding/gob"
	"fmt"
	"os"
)

const checkpointVersion = 1

// checkpoint is the gob-encoded on-disk snapshot of a trained model.
// It carries the geometry so a loaded file can be validated against the
// architecture it is poured into.
type checkpoint struct {
	Version  int
	Channels int
	Height   int
	Width    int
	Layers   [][]float64
}

// Save persists the model's learnable parameters.
func (a *Autoencoder) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	defer file.Close()

	ck := checkpoint{
		Version:  checkpointVersion,
		Channels: a.channels,
		Height:   a.height,
		Width:    a.width,
		Layers:   a.Params(),
	}
	if err := gob.NewEncoder(file).Encode(ck); err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint constructs a fresh model for the given geometry and fills
// it with the parameters stored at path. The file must have been written
// for the same geometry.
func LoadCheckpoint(path string, channels, height, width int) (*Autoencoder, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer file.Close()

	var ck checkpoint
	if err := gob.NewDecoder(file).Decode(&ck); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	if ck.Version != checkpointVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d", ck.Version)
	}
	if ck.Channels != channels || ck.Height != height || ck.Width != width {
		return nil, fmt.Errorf("checkpoint geometry %dx%dx%d does not match configured %dx%dx%d",
			ck.Channels, ck.Height, ck.Width, channels, height, width)
	}

	// Initialization seed is irrelevant; every parameter is overwritten.
	m, err := New(channels, height, width, 0)
	if err != nil {
		return nil, err
	}
	if err := m.SetParams(ck.Layers); err != nil {
		return nil, fmt.Errorf("checkpoint does not match architecture: %w", err)
	}
	return m, nil
}
