// Package corr provides Pearson correlation measures for sampled signals.
package corr

import (
	"fmt"
	"math"
)

// Pearson returns the Pearson correlation coefficient between x and y.
// If either signal has zero variance the correlation is defined as 0.
func Pearson(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("corr: length mismatch: %d vs %d", len(x), len(y))
	}
	if len(x) == 0 {
		return 0, fmt.Errorf("corr: empty input")
	}

	n := float64(len(x))

	var sumX, sumY float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
	}
	meanX := sumX / n
	meanY := sumY / n

	var sxy, sxx, syy float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}

	if sxx == 0 || syy == 0 {
		return 0, nil
	}

	return sxy / math.Sqrt(sxx*syy), nil
}

// MeanSquared returns the mean of squared per-row Pearson correlations
// between two equally shaped multichannel signals. Rows with zero variance
// contribute 0.
func MeanSquared(a, b [][]float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("corr: row count mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("corr: empty input")
	}

	sum := 0.0
	for i := range a {
		r, err := Pearson(a[i], b[i])
		if err != nil {
			return 0, fmt.Errorf("corr: row %d: %w", i, err)
		}
		sum += r * r
	}

	return sum / float64(len(a)), nil
}
