// Package eval provides the leave-one-block-out cross-validation driver for
// the SSVEP classifier, together with accuracy aggregation and the
// information-transfer-rate (ITR) metric.
//
// Each fold holds out one block of the training tensor as test data and
// trains on the remainder; the true label of test slot i is i+1. Folds that
// fail with a numerical-instability error are recorded and skipped rather
// than aborting the run. Cancellation via context is checked between folds.
package eval
