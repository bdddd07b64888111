package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates a deterministic sine wave with initial phase.
func DeterministicSine(freqHz, sampleRate, amplitude, phase float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i)+phase)
	}
	return out
}

// DeterministicNoise generates zero-mean Gaussian noise with a fixed seed.
func DeterministicNoise(seed int64, sigma float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = rng.NormFloat64() * sigma
	}
	return out
}

// NoisyEpoch builds a channels x samples epoch where every channel carries
// the same oscillation plus channel-specific Gaussian noise. Each channel's
// noise stream is seeded independently from seed.
func NoisyEpoch(freqHz, sampleRate, amplitude, phase, sigma float64, channels, samples int, seed int64) [][]float64 {
	epoch := make([][]float64, channels)
	for ch := range epoch {
		clean := DeterministicSine(freqHz, sampleRate, amplitude, phase, samples)
		noise := DeterministicNoise(seed+int64(ch)*7919, sigma, samples)
		row := make([]float64, samples)
		for i := range row {
			row[i] = clean[i] + noise[i]
		}
		epoch[ch] = row
	}
	return epoch
}
