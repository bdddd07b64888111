package filterbank

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-bci/internal/testutil"
	"github.com/cwbudde/algo-bci/stats/corr"
)

func sineEpoch(freqHz, sampleRate float64, channels, samples int) [][]float64 {
	epoch := make([][]float64, channels)
	for c := range epoch {
		epoch[c] = testutil.DeterministicSine(freqHz, sampleRate, 1, 0, samples)
	}
	return epoch
}

func rms(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(0, 3); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
	if _, err := New(250, 0); err == nil {
		t.Fatal("expected error for zero bands")
	}
	// 7th band low edge 7*8=56 against upper min(88, 0.45*128)=57.6 still
	// works at 128 Hz; at 100 Hz it collapses (45 Hz upper).
	if _, err := New(100, 7); err == nil {
		t.Fatal("expected collapsed band error at low sample rate")
	}
}

func TestApply_ShapeAndOrder(t *testing.T) {
	d, err := New(250, 5)
	if err != nil {
		t.Fatal(err)
	}
	if d.Bands() != 5 {
		t.Fatalf("bands=%d, want 5", d.Bands())
	}

	epoch := sineEpoch(12, 250, 3, 200)
	out, err := d.Apply(epoch)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 5 {
		t.Fatalf("got %d sub-bands, want 5", len(out))
	}
	for n, banded := range out {
		if len(banded) != 3 || len(banded[0]) != 200 {
			t.Fatalf("band %d shape %dx%d, want 3x200", n, len(banded), len(banded[0]))
		}
		testutil.RequireMatrixFinite(t, banded)
	}
}

func TestApply_SingleBandPassThrough(t *testing.T) {
	d, err := New(250, 1)
	if err != nil {
		t.Fatal(err)
	}

	epoch := sineEpoch(12, 250, 2, 100)
	out, err := d.Apply(epoch)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireMatrixNearlyEqual(t, out[0], epoch, 0)

	// Pass-through still copies: mutating the output must not touch the input.
	out[0][0][0] = 999
	if epoch[0][0] == 999 {
		t.Fatal("pass-through aliases the input")
	}
}

func TestApply_DoesNotModifyInput(t *testing.T) {
	d, err := New(250, 3)
	if err != nil {
		t.Fatal(err)
	}

	epoch := sineEpoch(12, 250, 2, 150)
	orig := make([]float64, len(epoch[0]))
	copy(orig, epoch[0])

	if _, err := d.Apply(epoch); err != nil {
		t.Fatal(err)
	}
	testutil.RequireSliceNearlyEqual(t, epoch[0], orig, 0)
}

func TestApply_Deterministic(t *testing.T) {
	d, err := New(250, 4)
	if err != nil {
		t.Fatal(err)
	}

	epoch := sineEpoch(14, 250, 2, 250)
	a, err := d.Apply(epoch)
	if err != nil {
		t.Fatal(err)
	}
	b, err := d.Apply(epoch)
	if err != nil {
		t.Fatal(err)
	}
	for n := range a {
		testutil.RequireMatrixNearlyEqual(t, a[n], b[n], 0)
	}
}

func TestBand_SelectsHarmonicRegions(t *testing.T) {
	// 10 Hz fundamental sits in band 0's passband [8, 88] but below band 2's
	// low edge of 24 Hz, so band 2 should strongly attenuate it.
	d, err := New(250, 3)
	if err != nil {
		t.Fatal(err)
	}

	epoch := sineEpoch(10, 250, 1, 500)
	b0, err := d.Band(epoch, 0)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := d.Band(epoch, 2)
	if err != nil {
		t.Fatal(err)
	}

	// Skip edge transients when comparing energies.
	r0 := rms(b0[0][100:400])
	r2 := rms(b2[0][100:400])
	if r2 > r0/5 {
		t.Fatalf("band 2 rms %v not well below band 0 rms %v", r2, r0)
	}
}

func TestBand_ZeroPhase(t *testing.T) {
	// Forward-backward filtering must leave an in-band sine phase-aligned
	// with the original. Compare away from the edges.
	d, err := New(250, 2)
	if err != nil {
		t.Fatal(err)
	}

	epoch := sineEpoch(15, 250, 1, 1000)
	banded, err := d.Band(epoch, 0)
	if err != nil {
		t.Fatal(err)
	}

	r, err := corr.Pearson(epoch[0][200:800], banded[0][200:800])
	if err != nil {
		t.Fatal(err)
	}
	if r < 0.99 {
		t.Fatalf("in-band correlation %v, want > 0.99 (phase preserved)", r)
	}
}

func TestBand_Errors(t *testing.T) {
	d, err := New(250, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Band(sineEpoch(10, 250, 1, 50), 5); err == nil {
		t.Fatal("expected out-of-range band error")
	}
	if _, err := d.Band(nil, 0); err == nil {
		t.Fatal("expected empty epoch error")
	}
	if _, err := d.Band([][]float64{{1, 2}, {1}}, 0); err == nil {
		t.Fatal("expected ragged epoch error")
	}
}
