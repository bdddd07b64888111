// Package snr measures the narrow-band signal-to-noise ratio of a learned
// template: power at the stimulus frequency and its harmonics against the
// spectral floor in the neighboring bins. Diagnostic output for evaluation
// tooling; the classifier itself never consults it.
package snr

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-bci/dsp/core"
	"github.com/cwbudde/algo-bci/dsp/window"
	"github.com/cwbudde/algo-vecmath"
)

const (
	defaultHarmonics    = 4
	defaultNeighborBins = 10
	guardBins           = 1
)

// Config holds SNR analysis parameters.
type Config struct {
	// SampleRate in Hz. Required.
	SampleRate float64
	// StimulusFreq is the flicker frequency in Hz. Required.
	StimulusFreq float64
	// FFTSize defaults to the next power of two above the row length.
	FFTSize int
	// Harmonics counts stimulus multiples treated as signal, fundamental
	// included. Default 4; multiples beyond Nyquist are skipped.
	Harmonics int
	// NeighborBins is the one-sided width of the noise-floor region around
	// each harmonic bin. Default 10.
	NeighborBins int
	// WindowType defaults to Hann.
	WindowType window.Type
}

// Result holds the analysis outcome, averaged over template rows.
type Result struct {
	// SNR is the linear signal-to-noise power ratio.
	SNR float64
	// SNRdB is 10·log10(SNR), -Inf when no signal power was found.
	SNRdB float64
	// HarmonicPower lists the absolute power captured per harmonic.
	HarmonicPower []float64
	// BinHz is the spectral resolution of the analysis.
	BinHz float64
}

// Analyze computes the narrow-band SNR of a template, one row per
// reconstructed channel, and averages the ratio over rows.
func Analyze(template [][]float64, cfg Config) (Result, error) {
	if len(template) == 0 || len(template[0]) == 0 {
		return Result{}, fmt.Errorf("snr: empty template")
	}
	if cfg.SampleRate <= 0 {
		return Result{}, fmt.Errorf("snr: sample rate %g must be positive", cfg.SampleRate)
	}
	if cfg.StimulusFreq <= 0 || cfg.StimulusFreq >= cfg.SampleRate/2 {
		return Result{}, fmt.Errorf("snr: stimulus frequency %g outside (0, %g)", cfg.StimulusFreq, cfg.SampleRate/2)
	}

	samples := len(template[0])
	for r, row := range template {
		if len(row) != samples {
			return Result{}, fmt.Errorf("snr: row %d has %d samples, want %d", r, len(row), samples)
		}
	}

	fftSize := cfg.FFTSize
	if fftSize <= 0 {
		fftSize = core.NextPowerOfTwo(samples)
	}
	if fftSize < samples {
		return Result{}, fmt.Errorf("snr: fft size %d below row length %d", fftSize, samples)
	}

	harmonics := cfg.Harmonics
	if harmonics <= 0 {
		harmonics = defaultHarmonics
	}
	neighbor := cfg.NeighborBins
	if neighbor <= 0 {
		neighbor = defaultNeighborBins
	}
	winType := cfg.WindowType
	if winType == 0 {
		winType = window.TypeHann
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return Result{}, fmt.Errorf("snr: %w", err)
	}
	coeffs := window.Generate(winType, samples)

	binHz := cfg.SampleRate / float64(fftSize)
	binCount := fftSize/2 + 1

	in := make([]complex128, fftSize)
	out := make([]complex128, fftSize)
	re := make([]float64, binCount)
	im := make([]float64, binCount)
	power := make([]float64, binCount)

	res := Result{
		BinHz:         binHz,
		HarmonicPower: make([]float64, harmonics),
	}
	snrSum := 0.0
	for _, row := range template {
		windowed, err := window.ApplyCoefficients(row, coeffs)
		if err != nil {
			return Result{}, fmt.Errorf("snr: %w", err)
		}
		for i := range in {
			if i < len(windowed) {
				in[i] = complex(windowed[i], 0)
			} else {
				in[i] = 0
			}
		}
		if err := plan.Forward(out, in); err != nil {
			return Result{}, fmt.Errorf("snr: %w", err)
		}
		for i := 0; i < binCount; i++ {
			re[i] = real(out[i])
			im[i] = imag(out[i])
		}
		vecmath.Power(power, re, im)

		rowSNR := rowRatio(power, binHz, cfg.StimulusFreq, harmonics, neighbor, res.HarmonicPower)
		snrSum += rowSNR
	}

	res.SNR = snrSum / float64(len(template))
	if res.SNR > 0 {
		res.SNRdB = 10 * math.Log10(res.SNR)
	} else {
		res.SNRdB = math.Inf(-1)
	}
	for k := range res.HarmonicPower {
		res.HarmonicPower[k] /= float64(len(template))
	}
	return res, nil
}

// rowRatio evaluates one row's spectrum: signal power at the harmonic bins
// over the mean power of the surrounding noise floor. harmonicAcc accumulates
// per-harmonic power across rows.
func rowRatio(power []float64, binHz, freq float64, harmonics, neighbor int, harmonicAcc []float64) float64 {
	maxBin := len(power) - 1
	signal := 0.0
	noiseSum := 0.0
	noiseCount := 0

	for k := 1; k <= harmonics; k++ {
		bin := int(math.Round(freq * float64(k) / binHz))
		if bin < 1 || bin > maxBin {
			break
		}

		signal += power[bin]
		harmonicAcc[k-1] += power[bin]

		for off := guardBins + 1; off <= guardBins+neighbor; off++ {
			if lo := bin - off; lo >= 1 {
				noiseSum += power[lo]
				noiseCount++
			}
			if hi := bin + off; hi <= maxBin {
				noiseSum += power[hi]
				noiseCount++
			}
		}
	}

	if noiseCount == 0 || noiseSum == 0 {
		if signal > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return signal / (noiseSum / float64(noiseCount))
}
