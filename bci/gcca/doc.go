// Package gcca learns spatial filters via generalized canonical correlation
// analysis over repeated trial blocks.
//
// Given B trials of the same stimulus, the learner finds channel projections
// that maximize the summed correlation of the projected signals across
// blocks. The maximizers solve the generalized eigenproblem
//
//	Σ_cross · w = λ · Σ_auto · w
//
// where Σ_cross sums the cross-covariances of every ordered block pair and
// Σ_auto sums the per-block auto-covariances. Components with large λ carry
// the trial-invariant response; trial-specific noise lands in components
// with small λ and is discarded. No stimulus reference waveform is involved:
// the common source is identified purely from cross-trial statistics.
package gcca
