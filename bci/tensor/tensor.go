package tensor

import "fmt"

// Training is an immutable 4-D epoch container covering every target and
// block of a recording session. Storage is epoch-contiguous: all samples of
// one channel of one trial form a single backing-array run, so Epoch returns
// copy-free views.
type Training struct {
	channels int
	samples  int
	targets  int
	blocks   int
	data     []float64 // layout: [target][block][channel][sample]
}

// Test is a 3-D epoch container holding one held-out trial per target.
type Test struct {
	channels int
	samples  int
	targets  int
	data     []float64 // layout: [target][channel][sample]
}

// NewTraining builds a training tensor from data laid out in the canonical
// dataset axis order [channels, samples, targets, blocks], channel axis
// outermost. The data is reordered into epoch-contiguous storage; the input
// slice is not retained.
func NewTraining(channels, samples, targets, blocks int, data []float64) (*Training, error) {
	if channels <= 0 || samples <= 0 || targets <= 0 || blocks <= 0 {
		return nil, fmt.Errorf("tensor: non-positive dimension [%d %d %d %d]", channels, samples, targets, blocks)
	}
	want := channels * samples * targets * blocks
	if len(data) != want {
		return nil, fmt.Errorf("tensor: data length %d, want %d", len(data), want)
	}

	tr := &Training{
		channels: channels,
		samples:  samples,
		targets:  targets,
		blocks:   blocks,
		data:     make([]float64, want),
	}
	for c := 0; c < channels; c++ {
		for s := 0; s < samples; s++ {
			for t := 0; t < targets; t++ {
				for b := 0; b < blocks; b++ {
					src := ((c*samples+s)*targets + t) * blocks + b
					tr.data[tr.index(t, b, c, s)] = data[src]
				}
			}
		}
	}
	return tr, nil
}

// NewTest builds a test tensor from data in axis order [channels, samples,
// targets], channel axis outermost.
func NewTest(channels, samples, targets int, data []float64) (*Test, error) {
	if channels <= 0 || samples <= 0 || targets <= 0 {
		return nil, fmt.Errorf("tensor: non-positive dimension [%d %d %d]", channels, samples, targets)
	}
	want := channels * samples * targets
	if len(data) != want {
		return nil, fmt.Errorf("tensor: data length %d, want %d", len(data), want)
	}

	te := &Test{
		channels: channels,
		samples:  samples,
		targets:  targets,
		data:     make([]float64, want),
	}
	for c := 0; c < channels; c++ {
		for s := 0; s < samples; s++ {
			for t := 0; t < targets; t++ {
				src := (c*samples+s)*targets + t
				te.data[(t*channels+c)*samples+s] = data[src]
			}
		}
	}
	return te, nil
}

// TrainingFromEpochs builds a training tensor from per-target, per-block
// epochs, each a channels x samples matrix. All epochs must agree in shape.
func TrainingFromEpochs(epochs [][][][]float64) (*Training, error) {
	if len(epochs) == 0 || len(epochs[0]) == 0 {
		return nil, fmt.Errorf("tensor: no epochs")
	}
	targets := len(epochs)
	blocks := len(epochs[0])
	first := epochs[0][0]
	if len(first) == 0 || len(first[0]) == 0 {
		return nil, fmt.Errorf("tensor: empty epoch")
	}
	channels := len(first)
	samples := len(first[0])

	tr := &Training{
		channels: channels,
		samples:  samples,
		targets:  targets,
		blocks:   blocks,
		data:     make([]float64, channels*samples*targets*blocks),
	}
	for t, blockSet := range epochs {
		if len(blockSet) != blocks {
			return nil, fmt.Errorf("tensor: target %d has %d blocks, want %d", t, len(blockSet), blocks)
		}
		for b, epoch := range blockSet {
			if len(epoch) != channels {
				return nil, fmt.Errorf("tensor: epoch (%d,%d) has %d channels, want %d", t, b, len(epoch), channels)
			}
			for c, row := range epoch {
				if len(row) != samples {
					return nil, fmt.Errorf("tensor: epoch (%d,%d) channel %d has %d samples, want %d", t, b, c, len(row), samples)
				}
				copy(tr.data[tr.index(t, b, c, 0):tr.index(t, b, c, 0)+samples], row)
			}
		}
	}
	return tr, nil
}

// TestFromEpochs builds a test tensor from one channels x samples epoch per
// target.
func TestFromEpochs(epochs [][][]float64) (*Test, error) {
	if len(epochs) == 0 {
		return nil, fmt.Errorf("tensor: no epochs")
	}
	targets := len(epochs)
	first := epochs[0]
	if len(first) == 0 || len(first[0]) == 0 {
		return nil, fmt.Errorf("tensor: empty epoch")
	}
	channels := len(first)
	samples := len(first[0])

	te := &Test{
		channels: channels,
		samples:  samples,
		targets:  targets,
		data:     make([]float64, channels*samples*targets),
	}
	for t, epoch := range epochs {
		if len(epoch) != channels {
			return nil, fmt.Errorf("tensor: epoch %d has %d channels, want %d", t, len(epoch), channels)
		}
		for c, row := range epoch {
			if len(row) != samples {
				return nil, fmt.Errorf("tensor: epoch %d channel %d has %d samples, want %d", t, c, len(row), samples)
			}
			base := (t*channels + c) * samples
			copy(te.data[base:base+samples], row)
		}
	}
	return te, nil
}

func (tr *Training) index(target, block, channel, sample int) int {
	return (((target*tr.blocks+block)*tr.channels + channel) * tr.samples) + sample
}

// Channels returns the channel count C.
func (tr *Training) Channels() int { return tr.channels }

// Samples returns the per-epoch sample count S.
func (tr *Training) Samples() int { return tr.samples }

// Targets returns the stimulus target count T.
func (tr *Training) Targets() int { return tr.targets }

// Blocks returns the repetition block count B.
func (tr *Training) Blocks() int { return tr.blocks }

// Epoch returns the channels x samples trial for (target, block) as
// read-only row views into the tensor's backing storage.
func (tr *Training) Epoch(target, block int) [][]float64 {
	rows := make([][]float64, tr.channels)
	for c := range rows {
		base := tr.index(target, block, c, 0)
		rows[c] = tr.data[base : base+tr.samples : base+tr.samples]
	}
	return rows
}

// Channels returns the channel count C.
func (te *Test) Channels() int { return te.channels }

// Samples returns the per-epoch sample count S.
func (te *Test) Samples() int { return te.samples }

// Targets returns the stimulus target count T.
func (te *Test) Targets() int { return te.targets }

// Epoch returns the channels x samples held-out trial for the given target
// slot as read-only row views.
func (te *Test) Epoch(target int) [][]float64 {
	rows := make([][]float64, te.channels)
	for c := range rows {
		base := (target*te.channels + c) * te.samples
		rows[c] = te.data[base : base+te.samples : base+te.samples]
	}
	return rows
}
