package eval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/cwbudde/algo-bci/bci/ssvep"
	"github.com/cwbudde/algo-bci/bci/tensor"
)

const defaultGazeShiftSeconds = 0.5

// FoldResult holds the outcome of one cross-validation fold.
type FoldResult struct {
	// Block is the index of the held-out block.
	Block int
	// Labels are the 1-based predictions, one per target slot.
	Labels []int
	// Accuracy is the fraction of slots predicted correctly.
	Accuracy float64
}

// Report aggregates a full leave-one-block-out run.
type Report struct {
	// Folds lists successful folds in block order.
	Folds []FoldResult
	// Failed lists the block indices of folds skipped due to
	// numerical instability.
	Failed []int
	// Accuracy is the mean accuracy over successful folds.
	Accuracy float64
	// ITRBitsPerMin is the information transfer rate at the mean
	// accuracy, or NaN where the formula is undefined.
	ITRBitsPerMin float64
	// SelectionTime is the per-selection duration in seconds used for
	// the rate, window length plus gaze-shift time.
	SelectionTime float64
}

type options struct {
	gazeShift   float64
	parallelism int
	classifier  []ssvep.Option
}

// Option adjusts cross-validation behaviour.
type Option func(*options)

// WithGazeShift sets the gaze-shift time in seconds added to the decision
// window when computing selection time. Default 0.5.
func WithGazeShift(seconds float64) Option {
	return func(o *options) { o.gazeShift = seconds }
}

// WithParallelism bounds the number of folds evaluated concurrently.
// Default runtime.GOMAXPROCS(0).
func WithParallelism(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithClassifierOptions passes options through to each fold's classifier
// invocation.
func WithClassifierOptions(opts ...ssvep.Option) Option {
	return func(o *options) { o.classifier = opts }
}

func applyOptions(opts []Option) options {
	o := options{
		gazeShift:   defaultGazeShiftSeconds,
		parallelism: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type foldOutcome struct {
	result   FoldResult
	err      error
	unstable bool
}

// CrossValidate runs leave-one-block-out cross-validation of the classifier
// over the full tensor: each of the B blocks is held out once as test data
// while the remaining B-1 blocks train the model. The context is checked
// between folds; a cancelled context stops the run and returns ctx.Err().
//
// Folds failing with ssvep.ErrNumericalInstability are recorded in
// Report.Failed and excluded from the accuracy mean. Any other classifier
// error aborts the run. If every fold fails, the last instability error is
// returned.
func CrossValidate(ctx context.Context, cfg ssvep.Config, full *tensor.Training, opts ...Option) (*Report, error) {
	if full == nil {
		return nil, fmt.Errorf("%w: nil training tensor", ssvep.ErrInsufficientData)
	}
	o := applyOptions(opts)

	blocks := full.Blocks()
	outcomes := make([]foldOutcome, blocks)

	workers := o.parallelism
	if workers > blocks {
		workers = blocks
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range jobs {
				outcomes[b] = runFold(cfg, full, b, o.classifier)
			}
		}()
	}

feed:
	for b := 0; b < blocks; b++ {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- b:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{
		SelectionTime: float64(full.Samples())/float64(cfg.SampleRate) + o.gazeShift,
	}
	var lastUnstable error
	sum := 0.0
	for b := 0; b < blocks; b++ {
		out := outcomes[b]
		if out.err != nil {
			if !out.unstable {
				return nil, out.err
			}
			lastUnstable = out.err
			report.Failed = append(report.Failed, b)
			continue
		}
		report.Folds = append(report.Folds, out.result)
		sum += out.result.Accuracy
	}
	if len(report.Folds) == 0 {
		return nil, fmt.Errorf("eval: all %d folds failed: %w", blocks, lastUnstable)
	}

	report.Accuracy = sum / float64(len(report.Folds))
	rate, err := ITR(report.Accuracy, full.Targets(), report.SelectionTime)
	if err != nil {
		rate = math.NaN()
	}
	report.ITRBitsPerMin = rate
	return report, nil
}

func runFold(cfg ssvep.Config, full *tensor.Training, block int, clsOpts []ssvep.Option) foldOutcome {
	train, test, err := tensor.DropBlock(full, block)
	if err != nil {
		return foldOutcome{err: err}
	}
	res, err := ssvep.Classify(cfg, train, test, clsOpts...)
	if err != nil {
		return foldOutcome{err: err, unstable: errors.Is(err, ssvep.ErrNumericalInstability)}
	}

	correct := 0
	for slot, label := range res.Labels {
		if label == slot+1 {
			correct++
		}
	}
	return foldOutcome{result: FoldResult{
		Block:    block,
		Labels:   res.Labels,
		Accuracy: float64(correct) / float64(len(res.Labels)),
	}}
}
