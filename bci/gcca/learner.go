package gcca

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

const (
	defaultRidge   = 1e-6
	defaultCondTol = 1e12
)

var (
	// ErrInsufficientData is returned when fewer than two trial blocks are
	// supplied; cross-trial covariance needs at least one block pair.
	ErrInsufficientData = errors.New("gcca: need at least two trial blocks")

	// ErrConfiguration is returned for an out-of-range reconstruction
	// channel count. A B-view analysis has at most B-1 non-trivial shared
	// directions; requesting more is an error, never silently clamped.
	ErrConfiguration = errors.New("gcca: invalid reconstruction channel count")

	// ErrNumericalInstability is the class sentinel wrapped by
	// InstabilityError.
	ErrNumericalInstability = errors.New("gcca: covariance numerically unstable")

	// ErrShape is returned when trial matrices disagree in shape.
	ErrShape = errors.New("gcca: trial shape mismatch")
)

// InstabilityError reports a covariance matrix too ill-conditioned to solve,
// with the estimated condition number (Inf if factorization failed outright).
type InstabilityError struct {
	Cond float64
}

func (e *InstabilityError) Error() string {
	return fmt.Sprintf("gcca: auto-covariance condition number %.3g beyond tolerance", e.Cond)
}

// Unwrap lets errors.Is match against ErrNumericalInstability.
func (e *InstabilityError) Unwrap() error { return ErrNumericalInstability }

type config struct {
	ridge   float64
	condTol float64
}

// Option configures the learner.
type Option func(*config)

// WithRidge sets the relative ridge regularization added to the summed
// auto-covariance diagonal, as a fraction of its mean diagonal entry.
// Defaults to 1e-6.
func WithRidge(eps float64) Option {
	return func(cfg *config) {
		if eps >= 0 {
			cfg.ridge = eps
		}
	}
}

// WithCondTolerance sets the condition-number threshold beyond which the
// regularized auto-covariance is treated as numerically unstable.
// Defaults to 1e12.
func WithCondTolerance(tol float64) Option {
	return func(cfg *config) {
		if tol > 0 {
			cfg.condTol = tol
		}
	}
}

// Filter is a learned spatial projection from channel space onto the
// reconstructed common-source components. Immutable after Learn.
type Filter struct {
	w        [][]float64 // recon x channels
	eigs     []float64   // descending, one per reconstructed component
	channels int
}

// Learn computes the spatial filter for one (target, sub-band) cell from B
// trials, each a channels x samples matrix of the same shape. recon selects
// how many leading eigenvectors form the projection; it must lie in
// [1, B-1].
func Learn(trials [][][]float64, recon int, opts ...Option) (*Filter, error) {
	blocks := len(trials)
	if blocks < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientData, blocks)
	}
	if recon < 1 || recon > blocks-1 {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrConfiguration, recon, blocks-1)
	}

	channels := len(trials[0])
	if channels == 0 || len(trials[0][0]) == 0 {
		return nil, fmt.Errorf("%w: empty trial", ErrShape)
	}
	samples := len(trials[0][0])
	for b, trial := range trials {
		if len(trial) != channels {
			return nil, fmt.Errorf("%w: block %d has %d channels, want %d", ErrShape, b, len(trial), channels)
		}
		for c, row := range trial {
			if len(row) != samples {
				return nil, fmt.Errorf("%w: block %d channel %d has %d samples, want %d", ErrShape, b, c, len(row), samples)
			}
		}
	}
	if recon > channels {
		return nil, fmt.Errorf("%w: %d exceeds channel count %d", ErrConfiguration, recon, channels)
	}

	cfg := config{ridge: defaultRidge, condTol: defaultCondTol}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	sAuto, sCross := covariances(trials, channels, samples)

	ridgeRegularize(sAuto, cfg.ridge)

	var chol mat.Cholesky
	if ok := chol.Factorize(sAuto); !ok {
		return nil, &InstabilityError{Cond: math.Inf(1)}
	}
	if cond := chol.Cond(); cond > cfg.condTol {
		return nil, &InstabilityError{Cond: cond}
	}

	// Reduce the pencil (Σ_cross, Σ_auto) to the standard eigenproblem of
	// Σ_auto⁻¹·Σ_cross. Both matrices are symmetric and Σ_auto is positive
	// definite after the ridge, so the spectrum is real; residual imaginary
	// parts are numeric noise and are dropped.
	var m mat.Dense
	if err := chol.SolveTo(&m, sCross); err != nil {
		return nil, &InstabilityError{Cond: chol.Cond()}
	}

	var eig mat.Eigen
	if ok := eig.Factorize(&m, mat.EigenRight); !ok {
		return nil, &InstabilityError{Cond: chol.Cond()}
	}

	values := eig.Values(nil)
	var vectors mat.CDense
	eig.VectorsTo(&vectors)

	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return real(values[order[i]]) > real(values[order[j]])
	})

	f := &Filter{
		w:        make([][]float64, recon),
		eigs:     make([]float64, recon),
		channels: channels,
	}
	for r := 0; r < recon; r++ {
		idx := order[r]
		f.eigs[r] = real(values[idx])

		row := make([]float64, channels)
		norm := 0.0
		for c := 0; c < channels; c++ {
			v := real(vectors.At(c, idx))
			row[c] = v
			norm += v * v
		}
		// Eigenvector scale is arbitrary; unit-normalize for stable
		// projections. Sign stays arbitrary, scoring is sign-invariant.
		if norm > 0 {
			inv := 1 / math.Sqrt(norm)
			for c := range row {
				row[c] *= inv
			}
		}
		f.w[r] = row
	}
	return f, nil
}

// covariances accumulates the summed auto-covariance and the summed
// pairwise cross-covariance of the row-centered trials. The cross term uses
// the identity Σ_{b≠c} X_b·X_cᵀ = (Σ_b X_b)(Σ_b X_b)ᵀ − Σ_b X_b·X_bᵀ,
// avoiding the quadratic sweep over block pairs.
func covariances(trials [][][]float64, channels, samples int) (*mat.SymDense, *mat.Dense) {
	centered := make([]*mat.Dense, len(trials))
	total := mat.NewDense(channels, samples, nil)
	for b, trial := range trials {
		x := mat.NewDense(channels, samples, nil)
		for c, row := range trial {
			mean := 0.0
			for _, v := range row {
				mean += v
			}
			mean /= float64(samples)
			for s, v := range row {
				x.Set(c, s, v-mean)
			}
		}
		centered[b] = x
		total.Add(total, x)
	}

	autoSum := mat.NewDense(channels, channels, nil)
	var tmp mat.Dense
	for _, x := range centered {
		tmp.Mul(x, x.T())
		autoSum.Add(autoSum, &tmp)
	}

	var grand mat.Dense
	grand.Mul(total, total.T())

	cross := mat.NewDense(channels, channels, nil)
	cross.Sub(&grand, autoSum)

	invS := 1 / float64(samples)
	autoSum.Scale(invS, autoSum)
	cross.Scale(invS, cross)

	sAuto := mat.NewSymDense(channels, nil)
	for i := 0; i < channels; i++ {
		for j := i; j < channels; j++ {
			sAuto.SetSym(i, j, 0.5*(autoSum.At(i, j)+autoSum.At(j, i)))
		}
	}
	return sAuto, cross
}

// ridgeRegularize adds eps times the mean diagonal entry to the diagonal,
// guarding against singularity when samples are few or channels collinear.
func ridgeRegularize(s *mat.SymDense, eps float64) {
	if eps == 0 {
		return
	}
	n := s.SymmetricDim()
	trace := 0.0
	for i := 0; i < n; i++ {
		trace += s.At(i, i)
	}
	ridge := eps * trace / float64(n)
	if ridge == 0 {
		ridge = eps
	}
	for i := 0; i < n; i++ {
		s.SetSym(i, i, s.At(i, i)+ridge)
	}
}

// Project maps a channels x samples epoch through the filter, producing the
// recon x samples reconstructed-component signal.
func (f *Filter) Project(epoch [][]float64) ([][]float64, error) {
	if len(epoch) != f.channels {
		return nil, fmt.Errorf("%w: epoch has %d channels, filter expects %d", ErrShape, len(epoch), f.channels)
	}
	if len(epoch) == 0 || len(epoch[0]) == 0 {
		return nil, fmt.Errorf("%w: empty epoch", ErrShape)
	}
	samples := len(epoch[0])
	for c, row := range epoch {
		if len(row) != samples {
			return nil, fmt.Errorf("%w: ragged epoch at channel %d", ErrShape, c)
		}
	}

	out := make([][]float64, len(f.w))
	for r, weights := range f.w {
		row := make([]float64, samples)
		for c, wc := range weights {
			if wc == 0 {
				continue
			}
			src := epoch[c]
			for s := range row {
				row[s] += wc * src[s]
			}
		}
		out[r] = row
	}
	return out, nil
}

// Recon returns the number of reconstructed components.
func (f *Filter) Recon() int { return len(f.w) }

// Channels returns the expected input channel count.
func (f *Filter) Channels() int { return f.channels }

// Weights returns the descending eigenvalues of the retained components.
// They measure the aggregate cross-trial correlation each component captures
// and can serve as optional quality weights.
func (f *Filter) Weights() []float64 {
	out := make([]float64, len(f.eigs))
	copy(out, f.eigs)
	return out
}

// Row returns the channel weights of the r-th reconstructed component.
func (f *Filter) Row(r int) []float64 {
	out := make([]float64, f.channels)
	copy(out, f.w[r])
	return out
}
