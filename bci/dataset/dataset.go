// Package dataset loads raw recording tensors and prepares epochs for
// classification: reading little-endian float64 tensor files, windowing
// epochs at a fixed offset, and channel subsetting via tensor.Subset.
package dataset

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/cwbudde/algo-bci/bci/tensor"
)

// Read decodes a training tensor from a stream of little-endian float64
// values in the canonical dataset axis order [channels, samples, targets,
// blocks], channel axis outermost. Exactly channels*samples*targets*blocks
// values are consumed.
func Read(r io.Reader, channels, samples, targets, blocks int) (*tensor.Training, error) {
	if channels <= 0 || samples <= 0 || targets <= 0 || blocks <= 0 {
		return nil, fmt.Errorf("dataset: non-positive dimension [%d %d %d %d]", channels, samples, targets, blocks)
	}
	data := make([]float64, channels*samples*targets*blocks)
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("dataset: reading %d values: %w", len(data), err)
	}
	return tensor.NewTraining(channels, samples, targets, blocks, data)
}

// ReadFile reads a training tensor from a raw little-endian float64 file.
func ReadFile(path string, channels, samples, targets, blocks int) (*tensor.Training, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()
	return Read(bufio.NewReader(f), channels, samples, targets, blocks)
}

// Window extracts a fixed-length sample window starting at offset from every
// epoch of the tensor, returning a new tensor. The source is not modified.
// Offset is typically cue duration plus visual latency in samples; length is
// the decision-buffer duration times the sampling rate.
func Window(tr *tensor.Training, offset, length int) (*tensor.Training, error) {
	if tr == nil {
		return nil, fmt.Errorf("dataset: nil tensor")
	}
	if offset < 0 || length < 1 || offset+length > tr.Samples() {
		return nil, fmt.Errorf("dataset: window [%d, %d) outside epoch of %d samples",
			offset, offset+length, tr.Samples())
	}

	epochs := make([][][][]float64, tr.Targets())
	for t := range epochs {
		epochs[t] = make([][][]float64, tr.Blocks())
		for b := range epochs[t] {
			full := tr.Epoch(t, b)
			windowed := make([][]float64, len(full))
			for c, row := range full {
				windowed[c] = row[offset : offset+length]
			}
			epochs[t][b] = windowed
		}
	}
	return tensor.TrainingFromEpochs(epochs)
}
