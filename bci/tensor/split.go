package tensor

import "fmt"

// DropBlock splits a training tensor into a reduced training tensor over all
// blocks except the held-out one, and a test tensor built from the held-out
// block's trial of every target. The source tensor is never modified.
func DropBlock(tr *Training, block int) (*Training, *Test, error) {
	if tr.blocks < 2 {
		return nil, nil, fmt.Errorf("tensor: cannot drop a block from %d block(s)", tr.blocks)
	}
	if block < 0 || block >= tr.blocks {
		return nil, nil, fmt.Errorf("tensor: block %d out of range [0,%d)", block, tr.blocks)
	}

	reduced := &Training{
		channels: tr.channels,
		samples:  tr.samples,
		targets:  tr.targets,
		blocks:   tr.blocks - 1,
		data:     make([]float64, tr.channels*tr.samples*tr.targets*(tr.blocks-1)),
	}
	held := &Test{
		channels: tr.channels,
		samples:  tr.samples,
		targets:  tr.targets,
		data:     make([]float64, tr.channels*tr.samples*tr.targets),
	}

	epochLen := tr.channels * tr.samples
	for t := 0; t < tr.targets; t++ {
		dstBlock := 0
		for b := 0; b < tr.blocks; b++ {
			src := tr.data[tr.index(t, b, 0, 0) : tr.index(t, b, 0, 0)+epochLen]
			if b == block {
				base := t * epochLen
				copy(held.data[base:base+epochLen], src)
				continue
			}
			base := reduced.index(t, dstBlock, 0, 0)
			copy(reduced.data[base:base+epochLen], src)
			dstBlock++
		}
	}

	return reduced, held, nil
}

// Subset returns a new training tensor restricted to the given channel
// indices, in the order listed. Indices may repeat; each must be in range.
func (tr *Training) Subset(channels []int) (*Training, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("tensor: empty channel subset")
	}
	for _, c := range channels {
		if c < 0 || c >= tr.channels {
			return nil, fmt.Errorf("tensor: channel %d out of range [0,%d)", c, tr.channels)
		}
	}

	sub := &Training{
		channels: len(channels),
		samples:  tr.samples,
		targets:  tr.targets,
		blocks:   tr.blocks,
		data:     make([]float64, len(channels)*tr.samples*tr.targets*tr.blocks),
	}
	for t := 0; t < tr.targets; t++ {
		for b := 0; b < tr.blocks; b++ {
			for dst, src := range channels {
				from := tr.index(t, b, src, 0)
				to := sub.index(t, b, dst, 0)
				copy(sub.data[to:to+tr.samples], tr.data[from:from+tr.samples])
			}
		}
	}
	return sub, nil
}

// Subset returns a new test tensor restricted to the given channel indices.
func (te *Test) Subset(channels []int) (*Test, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("tensor: empty channel subset")
	}
	for _, c := range channels {
		if c < 0 || c >= te.channels {
			return nil, fmt.Errorf("tensor: channel %d out of range [0,%d)", c, te.channels)
		}
	}

	sub := &Test{
		channels: len(channels),
		samples:  te.samples,
		targets:  te.targets,
		data:     make([]float64, len(channels)*te.samples*te.targets),
	}
	for t := 0; t < te.targets; t++ {
		for dst, src := range channels {
			from := (t*te.channels + src) * te.samples
			to := (t*sub.channels + dst) * sub.samples
			copy(sub.data[to:to+te.samples], te.data[from:from+te.samples])
		}
	}
	return sub, nil
}
