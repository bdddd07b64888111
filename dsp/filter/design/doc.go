// Package design provides biquad coefficient design routines.
//
// The top-level functions implement the standard RBJ cookbook formulas for
// second-order sections. Higher-order Butterworth cascades used for
// band-pass decomposition live in the pass subpackage.
package design
