// Package filterbank splits multichannel epochs into harmonic sub-bands.
//
// Sub-band n covers the n-th harmonic region of the stimulus frequency
// range: its low edge is n times the range's lower bound while the high
// edge stays at the upper bound, so higher sub-bands isolate progressively
// higher harmonics of the steady-state response. Filtering is zero-phase
// (forward-backward Butterworth band-pass), which keeps the filtered epochs
// phase-aligned with their templates.
package filterbank

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-bci/dsp/filter/biquad"
	"github.com/cwbudde/algo-bci/dsp/filter/design/pass"
)

const (
	defaultLowerHz = 8.0
	defaultUpperHz = 88.0
	defaultOrder   = 4

	// Band upper edges are clamped below Nyquist to keep the Butterworth
	// design well conditioned.
	nyquistFraction = 0.45
)

type config struct {
	lowerHz float64
	upperHz float64
	order   int
}

// Option configures a Decomposer.
type Option func(*config)

// WithFrequencyRange sets the stimulus frequency range in Hz. The first
// sub-band spans [lower, upper]; sub-band n starts at n*lower.
func WithFrequencyRange(lowerHz, upperHz float64) Option {
	return func(cfg *config) {
		if lowerHz > 0 && upperHz > lowerHz {
			cfg.lowerHz = lowerHz
			cfg.upperHz = upperHz
		}
	}
}

// WithOrder sets the Butterworth order per band edge.
// Must be a positive even integer; defaults to 4.
func WithOrder(n int) Option {
	return func(cfg *config) {
		if n > 0 && n%2 == 0 {
			cfg.order = n
		}
	}
}

// Decomposer produces band-limited copies of an epoch, one per sub-band.
// A Decomposer is immutable after construction and safe for concurrent use;
// filter state is created per Apply call.
type Decomposer struct {
	sampleRate float64
	bands      [][]biquad.Coefficients // nil entry = broadband pass-through
}

// New builds a decomposer for the given sample rate and sub-band count.
// With numBands == 1 filtering is disabled and Apply returns the broadband
// signal unmodified.
func New(sampleRate float64, numBands int, opts ...Option) (*Decomposer, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) {
		return nil, fmt.Errorf("filterbank: invalid sample rate %.3f", sampleRate)
	}
	if numBands < 1 {
		return nil, fmt.Errorf("filterbank: band count must be >= 1: %d", numBands)
	}

	cfg := config{
		lowerHz: defaultLowerHz,
		upperHz: defaultUpperHz,
		order:   defaultOrder,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	d := &Decomposer{
		sampleRate: sampleRate,
		bands:      make([][]biquad.Coefficients, numBands),
	}

	if numBands == 1 {
		return d, nil
	}

	upper := math.Min(cfg.upperHz, nyquistFraction*sampleRate)
	for n := range d.bands {
		low := cfg.lowerHz * float64(n+1)
		if low >= upper {
			return nil, fmt.Errorf("filterbank: sub-band %d collapses: [%.1f, %.1f] Hz", n+1, low, upper)
		}
		sections := pass.ButterworthBP(low, upper, cfg.order, sampleRate)
		if sections == nil {
			return nil, fmt.Errorf("filterbank: cannot design sub-band %d at [%.1f, %.1f] Hz", n+1, low, upper)
		}
		d.bands[n] = sections
	}
	return d, nil
}

// Bands returns the number of sub-bands.
func (d *Decomposer) Bands() int { return len(d.bands) }

// Apply decomposes one channels x samples epoch into an ordered sequence of
// band-limited copies, one per sub-band, each with the input's shape.
// The input is never modified.
func (d *Decomposer) Apply(epoch [][]float64) ([][][]float64, error) {
	out := make([][][]float64, len(d.bands))
	for n := range d.bands {
		banded, err := d.Band(epoch, n)
		if err != nil {
			return nil, err
		}
		out[n] = banded
	}
	return out, nil
}

// Band returns the band-limited copy of the epoch for sub-band n (0-based).
func (d *Decomposer) Band(epoch [][]float64, n int) ([][]float64, error) {
	if n < 0 || n >= len(d.bands) {
		return nil, fmt.Errorf("filterbank: band %d out of range [0,%d)", n, len(d.bands))
	}
	if len(epoch) == 0 {
		return nil, fmt.Errorf("filterbank: empty epoch")
	}

	samples := len(epoch[0])
	out := make([][]float64, len(epoch))
	for c, row := range epoch {
		if len(row) != samples {
			return nil, fmt.Errorf("filterbank: ragged epoch: channel %d has %d samples, want %d", c, len(row), samples)
		}
		filtered := make([]float64, samples)
		copy(filtered, row)
		if d.bands[n] != nil {
			zeroPhase(biquad.NewChain(d.bands[n]), filtered)
		}
		out[c] = filtered
	}
	return out, nil
}

// zeroPhase runs buf through the cascade forward and backward, cancelling
// the filter's phase response at the cost of doubled magnitude order.
func zeroPhase(chain *biquad.Chain, buf []float64) {
	chain.ProcessBlock(buf)
	reverse(buf)
	chain.Reset()
	chain.ProcessBlock(buf)
	reverse(buf)
}

func reverse(buf []float64) {
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
}
