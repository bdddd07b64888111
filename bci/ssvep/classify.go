package ssvep

import (
	"fmt"

	"github.com/cwbudde/algo-bci/bci/filterbank"
	"github.com/cwbudde/algo-bci/bci/tensor"
	"github.com/cwbudde/algo-bci/stats/corr"
)

// Result bundles the classification decision with its diagnostics.
type Result struct {
	// Labels holds one 1-based predicted target label per test slot.
	Labels []int
	// Scores is the full T x T fused-score matrix: row = test slot,
	// column = candidate target.
	Scores [][]float64
}

// Classify trains per-target spatial filters and templates on the training
// tensor and scores every test-slot trial against every candidate target.
//
// All validation runs before any computation; on a validation error nothing
// is partially computed. A numerically unstable (target, band) cell is
// reported as a CellError after all other cells finished training.
func Classify(cfg Config, train *tensor.Training, test *tensor.Test, opts ...Option) (*Result, error) {
	if err := validate(cfg, train, test); err != nil {
		return nil, err
	}
	o := applyOptions(opts)

	var fbOpts []filterbank.Option
	if o.lowerHz > 0 {
		fbOpts = append(fbOpts, filterbank.WithFrequencyRange(o.lowerHz, o.upperHz))
	}
	if o.filterOrder > 0 {
		fbOpts = append(fbOpts, filterbank.WithOrder(o.filterOrder))
	}
	dec, err := filterbank.New(float64(cfg.SampleRate), cfg.NumBands, fbOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	m, err := trainModel(dec, train, cfg.Recon, o)
	if err != nil {
		return nil, err
	}
	if err := m.firstCellError(); err != nil {
		return nil, err
	}

	targets := train.Targets()
	result := &Result{
		Labels: make([]int, targets),
		Scores: make([][]float64, targets),
	}
	for slot := 0; slot < targets; slot++ {
		row, err := scoreRow(dec, m, test.Epoch(slot), o)
		if err != nil {
			return nil, err
		}
		result.Scores[slot] = row
		result.Labels[slot] = argmax(row) + 1
	}
	return result, nil
}

// scoreRow fuses the per-band squared correlations of one test epoch
// against every candidate target's templates.
func scoreRow(dec *filterbank.Decomposer, m *model, epoch [][]float64, o options) ([]float64, error) {
	banded := make([][][]float64, m.bands)
	for n := 0; n < m.bands; n++ {
		b, err := dec.Band(epoch, n)
		if err != nil {
			return nil, err
		}
		banded[n] = b
	}

	row := make([]float64, m.targets)
	for t := 0; t < m.targets; t++ {
		score := 0.0
		for n := 0; n < m.bands; n++ {
			c := m.cell(t, n)

			proj, err := c.filter.Project(banded[n])
			if err != nil {
				return nil, err
			}
			// R rows reduce to the mean of squared per-row Pearson
			// correlations, keeping the score sign-invariant.
			r2, err := corr.MeanSquared(proj, c.template)
			if err != nil {
				return nil, err
			}
			score += o.fusionWeight(n+1) * r2
		}
		row[t] = score
	}
	return row, nil
}

// argmax returns the index of the largest value; ties go to the smallest
// index.
func argmax(row []float64) int {
	best := 0
	for i := 1; i < len(row); i++ {
		if row[i] > row[best] {
			best = i
		}
	}
	return best
}

// validate enforces the entry contract before any computation starts.
// Minimum-data checks run before the reconstruction-channel bound: with
// fewer than two blocks the range [1, B-1] is empty and the real defect is
// the missing data, not the setting.
func validate(cfg Config, train *tensor.Training, test *tensor.Test) error {
	if cfg.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d must be positive", ErrConfiguration, cfg.SampleRate)
	}
	if cfg.NumBands < 1 || cfg.NumBands > maxBands {
		return fmt.Errorf("%w: sub-band count %d not in [1, %d]", ErrConfiguration, cfg.NumBands, maxBands)
	}
	if train == nil || test == nil {
		return fmt.Errorf("%w: nil tensor", ErrInsufficientData)
	}
	if train.Channels() < 2 {
		return fmt.Errorf("%w: need at least 2 channels, got %d", ErrInsufficientData, train.Channels())
	}
	if train.Targets() < 2 {
		return fmt.Errorf("%w: need at least 2 targets, got %d", ErrInsufficientData, train.Targets())
	}
	if train.Blocks() < 2 {
		return fmt.Errorf("%w: need at least 2 blocks, got %d", ErrInsufficientData, train.Blocks())
	}
	if minSamples := int(minEpochSeconds * float64(cfg.SampleRate)); train.Samples() < minSamples {
		return fmt.Errorf("%w: %d samples below minimum %d at %d Hz", ErrInsufficientData,
			train.Samples(), minSamples, cfg.SampleRate)
	}
	if cfg.Recon < 1 || cfg.Recon > train.Blocks()-1 {
		return fmt.Errorf("%w: reconstruction channels %d not in [1, %d]", ErrConfiguration, cfg.Recon, train.Blocks()-1)
	}
	if train.Channels() != test.Channels() || train.Samples() != test.Samples() {
		return fmt.Errorf("%w: train %dch x %ds vs test %dch x %ds", ErrShapeMismatch,
			train.Channels(), train.Samples(), test.Channels(), test.Samples())
	}
	if train.Targets() != test.Targets() {
		return fmt.Errorf("%w: train has %d targets, test %d", ErrShapeMismatch, train.Targets(), test.Targets())
	}
	return nil
}
