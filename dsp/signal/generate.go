// Package signal creates deterministic test and simulation signals.
package signal

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-bci/dsp/core"
)

// Generator creates deterministic signals from a shared configuration.
type Generator struct {
	cfg  core.ProcessorConfig
	seed int64
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed sets deterministic random seed for noise generation.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.seed = seed
	}
}

// NewGenerator creates a configured signal generator.
func NewGenerator(coreOpts []core.ProcessorOption, opts ...Option) *Generator {
	g := &Generator{
		cfg:  core.ApplyProcessorOptions(coreOpts...),
		seed: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Config returns the generator processor configuration.
func (g *Generator) Config() core.ProcessorConfig {
	return g.cfg
}

// Sine generates a sine wave with the given initial phase in radians.
func (g *Generator) Sine(freqHz, amplitude, phase float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("signal: sine samples must be > 0: %d", samples)
	}
	if g.cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("signal: sine sample rate must be > 0: %f", g.cfg.SampleRate)
	}
	out := make([]float64, samples)
	step := 2 * math.Pi * freqHz / g.cfg.SampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i)+phase)
	}
	return out, nil
}

// GaussianNoise generates deterministic zero-mean Gaussian noise with the
// given standard deviation. The generator seed is offset by stream so that
// independent noise realizations can be drawn from one Generator.
func (g *Generator) GaussianNoise(sigma float64, samples int, stream int64) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("signal: noise samples must be > 0: %d", samples)
	}
	if sigma < 0 {
		return nil, fmt.Errorf("signal: noise sigma must be >= 0: %f", sigma)
	}
	out := make([]float64, samples)
	rng := rand.New(rand.NewSource(g.seed + stream))
	for i := range out {
		out[i] = rng.NormFloat64() * sigma
	}
	return out, nil
}

// Add sums two equal-length signals into a new slice.
func Add(a, b []float64) ([]float64, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("signal: add length mismatch: %d vs %d", len(a), len(b))
	}
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out, nil
}
