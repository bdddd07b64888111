package ssvep

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-bci/bci/tensor"
	"github.com/cwbudde/algo-bci/internal/testutil"
)

const testRate = 250

// synthTraining builds a training tensor where target t carries a sine at
// freqs[t] with phase phases[t], mixed into all channels with
// channel-specific gains, plus block-specific Gaussian noise.
func synthTraining(t *testing.T, freqs, phases []float64, channels, samples, blocks int, sigma float64) *tensor.Training {
	t.Helper()
	epochs := make([][][][]float64, len(freqs))
	for tt := range freqs {
		epochs[tt] = make([][][]float64, blocks)
		for b := 0; b < blocks; b++ {
			epochs[tt][b] = synthEpoch(freqs[tt], phases[tt], channels, samples, sigma,
				int64(tt*1000+b*100+1))
		}
	}
	tr, err := tensor.TrainingFromEpochs(epochs)
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func synthTest(t *testing.T, freqs, phases []float64, channels, samples int, sigma float64, seed int64) *tensor.Test {
	t.Helper()
	epochs := make([][][]float64, len(freqs))
	for tt := range freqs {
		epochs[tt] = synthEpoch(freqs[tt], phases[tt], channels, samples, sigma, seed+int64(tt*31))
	}
	te, err := tensor.TestFromEpochs(epochs)
	if err != nil {
		t.Fatal(err)
	}
	return te
}

func synthEpoch(freq, phase float64, channels, samples int, sigma float64, seed int64) [][]float64 {
	gains := []float64{1.0, 0.8, -0.6, 0.9, 0.5, -0.7, 0.4, 1.1}
	clean := testutil.DeterministicSine(freq, testRate, 1, phase, samples)
	epoch := make([][]float64, channels)
	for c := range epoch {
		noise := testutil.DeterministicNoise(seed+int64(c)*131, sigma, samples)
		row := make([]float64, samples)
		for s := range row {
			row[s] = gains[c%len(gains)]*clean[s] + noise[s]
		}
		epoch[c] = row
	}
	return epoch
}

func TestClassify_TwoTargetSineCosine(t *testing.T) {
	// Two targets at the same frequency, a quarter phase apart, three
	// blocks: train on two, classify the third.
	freqs := []float64{10, 10}
	phases := []float64{0, math.Pi / 2}

	full := synthTraining(t, freqs, phases, 2, 50, 3, 0.05)
	train, test, err := tensor.DropBlock(full, 2)
	if err != nil {
		t.Fatal(err)
	}

	cfg := Config{SampleRate: testRate, NumBands: 1, Recon: 1}
	res, err := Classify(cfg, train, test)
	if err != nil {
		t.Fatal(err)
	}

	if res.Labels[0] != 1 || res.Labels[1] != 2 {
		t.Fatalf("labels=%v, want [1 2]", res.Labels)
	}
}

func TestClassify_RoundTripMultiTarget(t *testing.T) {
	freqs := []float64{10, 12, 15}
	phases := []float64{0, 0.4, 1.1}

	train := synthTraining(t, freqs, phases, 4, 250, 3, 0.3)
	test := synthTest(t, freqs, phases, 4, 250, 0.3, 99999)

	cfg := Config{SampleRate: testRate, NumBands: 3, Recon: 2}
	res, err := Classify(cfg, train, test)
	if err != nil {
		t.Fatal(err)
	}

	for slot, label := range res.Labels {
		if label != slot+1 {
			t.Fatalf("slot %d classified as %d, scores=%v", slot, label, res.Scores[slot])
		}
	}
}

func TestClassify_LabelsAlwaysInRange(t *testing.T) {
	// Pure-noise input: predictions are arbitrary but must stay in [1, T].
	freqs := []float64{10, 12, 14, 16}
	phases := []float64{0, 0, 0, 0}

	train := synthTraining(t, freqs, phases, 3, 100, 3, 5)
	test := synthTest(t, freqs, phases, 3, 100, 5, 4242)

	cfg := Config{SampleRate: testRate, NumBands: 2, Recon: 1}
	res, err := Classify(cfg, train, test)
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Labels) != 4 || len(res.Scores) != 4 {
		t.Fatalf("result sized %d/%d, want 4/4", len(res.Labels), len(res.Scores))
	}
	for slot, label := range res.Labels {
		if label < 1 || label > 4 {
			t.Fatalf("slot %d: label %d out of [1,4]", slot, label)
		}
		if len(res.Scores[slot]) != 4 {
			t.Fatalf("slot %d: score row length %d, want 4", slot, len(res.Scores[slot]))
		}
		testutil.RequireFinite(t, res.Scores[slot])
	}
}

func TestClassify_SingleBandRankingInvariantToFusionOffset(t *testing.T) {
	// With one sub-band the fused score is a single positive weight times
	// the squared correlation; changing the additive constant rescales every
	// score identically and cannot change the ranking.
	freqs := []float64{10, 13}
	phases := []float64{0, 0.8}

	train := synthTraining(t, freqs, phases, 3, 150, 3, 0.8)
	test := synthTest(t, freqs, phases, 3, 150, 0.8, 777)

	cfg := Config{SampleRate: testRate, NumBands: 1, Recon: 2}

	base, err := Classify(cfg, train, test)
	if err != nil {
		t.Fatal(err)
	}
	shifted, err := Classify(cfg, train, test, WithFusion(1.25, 9.75))
	if err != nil {
		t.Fatal(err)
	}

	for slot := range base.Labels {
		if base.Labels[slot] != shifted.Labels[slot] {
			t.Fatalf("slot %d: label changed %d -> %d under fusion offset",
				slot, base.Labels[slot], shifted.Labels[slot])
		}
	}
}

func TestClassify_DeterministicAcrossParallelism(t *testing.T) {
	freqs := []float64{10, 12, 15}
	phases := []float64{0, 0.5, 1.0}

	train := synthTraining(t, freqs, phases, 4, 200, 4, 0.5)
	test := synthTest(t, freqs, phases, 4, 200, 0.5, 1234)

	cfg := Config{SampleRate: testRate, NumBands: 2, Recon: 2}

	serial, err := Classify(cfg, train, test, WithParallelism(1))
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := Classify(cfg, train, test, WithParallelism(8))
	if err != nil {
		t.Fatal(err)
	}

	for slot := range serial.Scores {
		testutil.RequireSliceNearlyEqual(t, parallel.Scores[slot], serial.Scores[slot], 1e-12)
	}
}

func TestClassify_ValidationErrors(t *testing.T) {
	freqs := []float64{10, 12}
	phases := []float64{0, 0}
	train := synthTraining(t, freqs, phases, 3, 100, 3, 0.3)
	test := synthTest(t, freqs, phases, 3, 100, 0.3, 555)

	cases := []struct {
		name string
		cfg  Config
		tr   *tensor.Training
		te   *tensor.Test
		want error
	}{
		{"zero sample rate", Config{SampleRate: 0, NumBands: 1, Recon: 1}, train, test, ErrConfiguration},
		{"bands too low", Config{SampleRate: testRate, NumBands: 0, Recon: 1}, train, test, ErrConfiguration},
		{"bands too high", Config{SampleRate: testRate, NumBands: 8, Recon: 1}, train, test, ErrConfiguration},
		{"recon equals blocks", Config{SampleRate: testRate, NumBands: 1, Recon: 3}, train, test, ErrConfiguration},
		{"recon zero", Config{SampleRate: testRate, NumBands: 1, Recon: 0}, train, test, ErrConfiguration},
		{"nil test", Config{SampleRate: testRate, NumBands: 1, Recon: 1}, train, nil, ErrInsufficientData},
		{"too few samples", Config{SampleRate: 2000, NumBands: 1, Recon: 1}, train, test, ErrInsufficientData},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Classify(c.cfg, c.tr, c.te)
			if !errors.Is(err, c.want) {
				t.Fatalf("got %v, want %v", err, c.want)
			}
		})
	}
}

func TestClassify_ShapeMismatchBeforeComputation(t *testing.T) {
	freqs := []float64{10, 12}
	phases := []float64{0, 0}

	train := synthTraining(t, freqs, phases, 8, 100, 3, 0.3)
	test := synthTest(t, freqs, phases, 9, 100, 0.3, 1)

	cfg := Config{SampleRate: testRate, NumBands: 1, Recon: 1}
	_, err := Classify(cfg, train, test)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("got %v, want ErrShapeMismatch", err)
	}
}

func TestClassify_InsufficientChannelsAndTargets(t *testing.T) {
	freqs := []float64{10, 12}
	phases := []float64{0, 0}

	oneChan := synthTraining(t, freqs, phases, 1, 100, 3, 0.3)
	oneChanTest := synthTest(t, freqs, phases, 1, 100, 0.3, 1)
	cfg := Config{SampleRate: testRate, NumBands: 1, Recon: 1}
	if _, err := Classify(cfg, oneChan, oneChanTest); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("1 channel: got %v, want ErrInsufficientData", err)
	}

	oneTarget := synthTraining(t, freqs[:1], phases[:1], 3, 100, 3, 0.3)
	oneTargetTest := synthTest(t, freqs[:1], phases[:1], 3, 100, 0.3, 1)
	if _, err := Classify(cfg, oneTarget, oneTargetTest); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("1 target: got %v, want ErrInsufficientData", err)
	}
}

func TestClassify_UnstableCellSurfacesAsCellError(t *testing.T) {
	// Duplicated channel rows make every auto-covariance singular; with the
	// ridge disabled the first cell failure must surface as a CellError.
	freqs := []float64{10, 12}
	phases := []float64{0, 0}

	epochs := make([][][][]float64, 2)
	for tt := range epochs {
		epochs[tt] = make([][][]float64, 3)
		for b := range epochs[tt] {
			base := synthEpoch(freqs[tt], phases[tt], 1, 100, 0.3, int64(tt*100+b))[0]
			dup := make([]float64, len(base))
			copy(dup, base)
			epochs[tt][b] = [][]float64{base, dup}
		}
	}
	train, err := tensor.TrainingFromEpochs(epochs)
	if err != nil {
		t.Fatal(err)
	}
	test := synthTest(t, freqs, phases, 2, 100, 0.3, 9)

	cfg := Config{SampleRate: testRate, NumBands: 1, Recon: 1}
	_, err = Classify(cfg, train, test, WithRidge(0))
	if !errors.Is(err, ErrNumericalInstability) {
		t.Fatalf("got %v, want ErrNumericalInstability", err)
	}

	var cellErr *CellError
	if !errors.As(err, &cellErr) {
		t.Fatalf("error %v does not carry CellError detail", err)
	}
	if cellErr.Target < 1 || cellErr.Band != 1 {
		t.Fatalf("cell error scope target=%d band=%d", cellErr.Target, cellErr.Band)
	}
}

func TestFusionWeight_Law(t *testing.T) {
	o := applyOptions(nil)

	if got := o.fusionWeight(1); math.Abs(got-1.25) > 1e-12 {
		t.Fatalf("weight(1)=%v, want 1.25", got)
	}
	want2 := math.Pow(2, -1.25) + 0.25
	if got := o.fusionWeight(2); math.Abs(got-want2) > 1e-12 {
		t.Fatalf("weight(2)=%v, want %v", got, want2)
	}

	// Weights decrease with sub-band index.
	prev := o.fusionWeight(1)
	for n := 2; n <= 7; n++ {
		w := o.fusionWeight(n)
		if w >= prev {
			t.Fatalf("weight(%d)=%v not below weight(%d)=%v", n, w, n-1, prev)
		}
		prev = w
	}
}

func TestArgmax_TieBreaksToSmallestIndex(t *testing.T) {
	if got := argmax([]float64{0.5, 0.5, 0.2}); got != 0 {
		t.Fatalf("argmax=%d, want 0 on tie", got)
	}
	if got := argmax([]float64{0.1, 0.9, 0.9}); got != 1 {
		t.Fatalf("argmax=%d, want 1 on tie", got)
	}
}
