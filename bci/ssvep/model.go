package ssvep

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cwbudde/algo-bci/bci/filterbank"
	"github.com/cwbudde/algo-bci/bci/gcca"
	"github.com/cwbudde/algo-bci/bci/tensor"
)

// cell holds the learned state for one (target, band) pair: the spatial
// filter and the block-averaged template, or the error that prevented
// learning it.
type cell struct {
	filter   *gcca.Filter
	template [][]float64
	err      error
}

// model is the per-call arena of trained cells, indexed target*bands+band.
// Cells are written by disjoint workers during training and read-only
// afterwards.
type model struct {
	cells   []cell
	targets int
	bands   int
}

func (m *model) cell(target, band int) *cell {
	return &m.cells[target*m.bands+band]
}

// firstCellError returns the lowest-indexed training failure, if any.
func (m *model) firstCellError() error {
	for i := range m.cells {
		if m.cells[i].err != nil {
			return m.cells[i].err
		}
	}
	return nil
}

// trainModel learns spatial filters and templates for every (target, band)
// pair. Pairs are independent: each worker reads immutable training epochs
// and writes its own arena slot, so no locking is needed beyond the job
// feed.
func trainModel(dec *filterbank.Decomposer, train *tensor.Training, recon int, o options) (*model, error) {
	targets := train.Targets()
	bands := dec.Bands()
	blocks := train.Blocks()

	m := &model{
		cells:   make([]cell, targets*bands),
		targets: targets,
		bands:   bands,
	}

	type job struct{ target, band int }
	jobs := make(chan job)

	workers := o.parallelism
	if workers > len(m.cells) {
		workers = len(m.cells)
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				m.cell(j.target, j.band).learn(dec, train, j.target, j.band, blocks, recon, o)
			}
		}()
	}
	for t := 0; t < targets; t++ {
		for n := 0; n < bands; n++ {
			jobs <- job{target: t, band: n}
		}
	}
	close(jobs)
	wg.Wait()

	// Non-instability failures are unexpected after validation and abort
	// the call outright.
	for i := range m.cells {
		err := m.cells[i].err
		if err != nil && !errors.Is(err, ErrNumericalInstability) {
			return nil, err
		}
	}
	return m, nil
}

// learn fills one arena cell: band-filter the target's trials, fit the
// spatial filter, project the trials and average them into the template.
func (c *cell) learn(dec *filterbank.Decomposer, train *tensor.Training, target, band, blocks, recon int, o options) {
	trials := make([][][]float64, blocks)
	for b := 0; b < blocks; b++ {
		banded, err := dec.Band(train.Epoch(target, b), band)
		if err != nil {
			c.err = fmt.Errorf("ssvep: target %d band %d: %w", target+1, band+1, err)
			return
		}
		trials[b] = banded
	}

	filter, err := gcca.Learn(trials, recon,
		gcca.WithRidge(o.ridge), gcca.WithCondTolerance(o.condTol))
	if err != nil {
		var inst *gcca.InstabilityError
		if errors.As(err, &inst) {
			c.err = &CellError{Target: target + 1, Band: band + 1, Cond: inst.Cond}
			return
		}
		c.err = fmt.Errorf("ssvep: target %d band %d: %w", target+1, band+1, err)
		return
	}

	template, err := averageProjected(filter, trials)
	if err != nil {
		c.err = fmt.Errorf("ssvep: target %d band %d: %w", target+1, band+1, err)
		return
	}

	c.filter = filter
	c.template = template
}

// averageProjected builds the canonical reference waveform: the element-wise
// mean over blocks of the spatially filtered trials.
func averageProjected(filter *gcca.Filter, trials [][][]float64) ([][]float64, error) {
	var sum [][]float64
	for _, trial := range trials {
		proj, err := filter.Project(trial)
		if err != nil {
			return nil, err
		}
		if sum == nil {
			sum = proj
			continue
		}
		for r := range sum {
			for s := range sum[r] {
				sum[r][s] += proj[r][s]
			}
		}
	}

	inv := 1 / float64(len(trials))
	for r := range sum {
		for s := range sum[r] {
			sum[r][s] *= inv
		}
	}
	return sum, nil
}
