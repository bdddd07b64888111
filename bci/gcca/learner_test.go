package gcca

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-bci/internal/testutil"
	"github.com/cwbudde/algo-bci/stats/corr"
)

// mixedTrials builds B trials sharing a common 10 Hz source mixed into all
// channels, plus block-specific noise.
func mixedTrials(blocks, channels, samples int, noise float64) [][][]float64 {
	const sampleRate = 250
	mix := []float64{1.0, -0.6, 0.8, 0.3, -0.2, 0.5, 0.9, -0.4}

	trials := make([][][]float64, blocks)
	for b := 0; b < blocks; b++ {
		source := testutil.DeterministicSine(10, sampleRate, 1, 0, samples)
		trial := make([][]float64, channels)
		for c := 0; c < channels; c++ {
			n := testutil.DeterministicNoise(int64(b*100+c+1), noise, samples)
			row := make([]float64, samples)
			for s := range row {
				row[s] = mix[c%len(mix)]*source[s] + n[s]
			}
			trial[c] = row
		}
		trials[b] = trial
	}
	return trials
}

func TestLearn_FilterShape(t *testing.T) {
	trials := mixedTrials(4, 6, 200, 0.3)

	for recon := 1; recon <= 3; recon++ {
		f, err := Learn(trials, recon)
		if err != nil {
			t.Fatalf("recon=%d: %v", recon, err)
		}
		if f.Recon() != recon || f.Channels() != 6 {
			t.Fatalf("recon=%d: filter is %dx%d, want %dx6", recon, f.Recon(), f.Channels(), recon)
		}
		for r := 0; r < recon; r++ {
			if len(f.Row(r)) != 6 {
				t.Fatalf("row %d has %d weights, want 6", r, len(f.Row(r)))
			}
		}
	}
}

func TestLearn_ReconBounds(t *testing.T) {
	trials := mixedTrials(3, 4, 100, 0.2)

	// recon == blocks is out of the B-1 budget and must fail, not clamp.
	_, err := Learn(trials, 3)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("recon=blocks: got %v, want ErrConfiguration", err)
	}

	if _, err := Learn(trials, 0); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("recon=0: got %v, want ErrConfiguration", err)
	}

	if _, err := Learn(trials, 2); err != nil {
		t.Fatalf("recon=B-1 must be accepted: %v", err)
	}
}

func TestLearn_InsufficientBlocks(t *testing.T) {
	trials := mixedTrials(1, 4, 100, 0.2)
	if _, err := Learn(trials, 1); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("got %v, want ErrInsufficientData", err)
	}
}

func TestLearn_ShapeMismatch(t *testing.T) {
	trials := mixedTrials(3, 4, 100, 0.2)
	trials[1] = trials[1][:3] // drop a channel from one block

	if _, err := Learn(trials, 1); !errors.Is(err, ErrShape) {
		t.Fatalf("got %v, want ErrShape", err)
	}
}

func TestLearn_EigenvaluesDescending(t *testing.T) {
	trials := mixedTrials(5, 6, 300, 0.4)
	f, err := Learn(trials, 4)
	if err != nil {
		t.Fatal(err)
	}

	w := f.Weights()
	for i := 1; i < len(w); i++ {
		if w[i] > w[i-1]+1e-12 {
			t.Fatalf("eigenvalues not descending: %v", w)
		}
	}
}

func TestLearn_RecoversCommonSource(t *testing.T) {
	trials := mixedTrials(4, 6, 400, 0.5)
	f, err := Learn(trials, 1)
	if err != nil {
		t.Fatal(err)
	}

	// The leading component projected from different blocks must be highly
	// correlated in magnitude: that is the common source.
	p0, err := f.Project(trials[0])
	if err != nil {
		t.Fatal(err)
	}
	p1, err := f.Project(trials[1])
	if err != nil {
		t.Fatal(err)
	}

	r, err := corr.Pearson(p0[0], p1[0])
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(r) < 0.9 {
		t.Fatalf("cross-block correlation |r|=%v, want > 0.9", math.Abs(r))
	}
}

func TestLearn_NoiseOnlyHasWeakCommonSource(t *testing.T) {
	// Independent noise across blocks: leading eigenvalue should be far
	// below the value seen with a genuine shared source.
	samples := 400
	noiseTrials := make([][][]float64, 4)
	for b := range noiseTrials {
		trial := make([][]float64, 4)
		for c := range trial {
			trial[c] = testutil.DeterministicNoise(int64(b*50+c+1), 1, samples)
		}
		noiseTrials[b] = trial
	}

	fn, err := Learn(noiseTrials, 1)
	if err != nil {
		t.Fatal(err)
	}
	fs, err := Learn(mixedTrials(4, 4, samples, 0.3), 1)
	if err != nil {
		t.Fatal(err)
	}

	if fn.Weights()[0] >= fs.Weights()[0] {
		t.Fatalf("noise eigenvalue %v not below signal eigenvalue %v",
			fn.Weights()[0], fs.Weights()[0])
	}
}

func TestLearn_SingularCovarianceWithoutRidge(t *testing.T) {
	// Perfectly collinear channels make the auto-covariance singular; with
	// the ridge disabled this must surface as a scoped instability error.
	samples := 100
	trials := make([][][]float64, 3)
	for b := range trials {
		base := testutil.DeterministicNoise(int64(b+1), 1, samples)
		dup := make([]float64, samples)
		copy(dup, base)
		trials[b] = [][]float64{base, dup}
	}

	_, err := Learn(trials, 1, WithRidge(0))
	if !errors.Is(err, ErrNumericalInstability) {
		t.Fatalf("got %v, want ErrNumericalInstability", err)
	}

	var inst *InstabilityError
	if !errors.As(err, &inst) {
		t.Fatalf("error %v does not carry InstabilityError detail", err)
	}
}

func TestLearn_RidgeRescuesCollinearChannels(t *testing.T) {
	samples := 100
	trials := make([][][]float64, 3)
	for b := range trials {
		base := testutil.DeterministicNoise(int64(b+1), 1, samples)
		dup := make([]float64, samples)
		copy(dup, base)
		trials[b] = [][]float64{base, dup}
	}

	if _, err := Learn(trials, 1, WithRidge(1e-4)); err != nil {
		t.Fatalf("ridge should rescue collinear channels: %v", err)
	}
}

func TestLearn_CondToleranceTriggers(t *testing.T) {
	// An absurdly tight tolerance turns any real covariance into an
	// instability report.
	trials := mixedTrials(3, 4, 200, 0.3)
	_, err := Learn(trials, 1, WithCondTolerance(1+1e-15))
	if !errors.Is(err, ErrNumericalInstability) {
		t.Fatalf("got %v, want ErrNumericalInstability", err)
	}
}

func TestProject_ShapeChecks(t *testing.T) {
	trials := mixedTrials(3, 4, 100, 0.2)
	f, err := Learn(trials, 2)
	if err != nil {
		t.Fatal(err)
	}

	out, err := f.Project(trials[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || len(out[0]) != 100 {
		t.Fatalf("projection %dx%d, want 2x100", len(out), len(out[0]))
	}

	if _, err := f.Project(trials[0][:2]); !errors.Is(err, ErrShape) {
		t.Fatalf("got %v, want ErrShape for wrong channel count", err)
	}
}
