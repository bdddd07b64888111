package ssvep

import (
	"errors"
	"fmt"
	"math"
	"runtime"
)

const (
	maxBands = 7

	defaultFusionA = 1.25
	defaultFusionB = 0.25

	// Epochs shorter than this fraction of the sample rate carry too little
	// signal for stable covariance estimates.
	minEpochSeconds = 0.2
)

var (
	// ErrConfiguration reports an invalid sub-band or reconstruction
	// channel setting.
	ErrConfiguration = errors.New("ssvep: invalid configuration")

	// ErrShapeMismatch reports disagreeing train/test tensor dimensions.
	ErrShapeMismatch = errors.New("ssvep: train/test shape mismatch")

	// ErrInsufficientData reports too few channels, targets, blocks or
	// samples to classify at all.
	ErrInsufficientData = errors.New("ssvep: insufficient data")

	// ErrNumericalInstability is the class sentinel carried by CellError.
	ErrNumericalInstability = errors.New("ssvep: numerically unstable cell")
)

// CellError reports a numerically unstable (target, band) training cell.
// Target is the 1-based target label, Band the 1-based sub-band index.
// Other cells keep training when one fails; Classify surfaces the first
// failed cell since a complete score row cannot be produced without it.
type CellError struct {
	Target int
	Band   int
	Cond   float64
}

func (e *CellError) Error() string {
	return fmt.Sprintf("ssvep: target %d band %d: covariance condition number %.3g beyond tolerance", e.Target, e.Band, e.Cond)
}

// Unwrap lets errors.Is match against ErrNumericalInstability.
func (e *CellError) Unwrap() error { return ErrNumericalInstability }

// Config holds the classifier settings. The zero value is invalid; every
// field must be set explicitly.
type Config struct {
	// SampleRate of the recording in Hz.
	SampleRate int
	// NumBands is the filter-bank sub-band count K, in [1, 7].
	NumBands int
	// Recon is the reconstructed channel count R, in [1, blocks-1].
	Recon int
}

type options struct {
	lowerHz     float64
	upperHz     float64
	filterOrder int
	ridge       float64
	condTol     float64
	fusionA     float64
	fusionB     float64
	parallelism int
}

// Option tunes classifier behavior beyond the required Config fields.
type Option func(*options)

// WithFrequencyRange sets the stimulus frequency range used to anchor the
// filter-bank sub-bands (default 8-88 Hz).
func WithFrequencyRange(lowerHz, upperHz float64) Option {
	return func(o *options) {
		if lowerHz > 0 && upperHz > lowerHz {
			o.lowerHz = lowerHz
			o.upperHz = upperHz
		}
	}
}

// WithFilterOrder sets the Butterworth order per band edge (positive even,
// default 4).
func WithFilterOrder(n int) Option {
	return func(o *options) {
		if n > 0 && n%2 == 0 {
			o.filterOrder = n
		}
	}
}

// WithRidge sets the relative ridge added to auto-covariance diagonals
// during spatial-filter learning (default 1e-6).
func WithRidge(eps float64) Option {
	return func(o *options) {
		if eps >= 0 {
			o.ridge = eps
		}
	}
}

// WithCondTolerance sets the covariance condition-number limit beyond which
// a (target, band) cell is reported unstable (default 1e12).
func WithCondTolerance(tol float64) Option {
	return func(o *options) {
		if tol > 0 {
			o.condTol = tol
		}
	}
}

// WithFusion overrides the sub-band fusion weighting law
// weight(n) = n^(-a) + b. Defaults a=1.25, b=0.25.
func WithFusion(a, b float64) Option {
	return func(o *options) {
		o.fusionA = a
		o.fusionB = b
	}
}

// WithParallelism bounds the worker count used to train (target, band)
// cells. Defaults to GOMAXPROCS; 1 forces fully serial training.
func WithParallelism(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{
		lowerHz:     0, // 0 keeps the filterbank package defaults
		upperHz:     0,
		filterOrder: 0,
		ridge:       1e-6,
		condTol:     1e12,
		fusionA:     defaultFusionA,
		fusionB:     defaultFusionB,
		parallelism: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// fusionWeight returns the fixed fusion weight for 1-based sub-band n.
func (o *options) fusionWeight(n int) float64 {
	return math.Pow(float64(n), -o.fusionA) + o.fusionB
}
