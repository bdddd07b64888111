// Package tensor holds the training and test epoch containers for the
// SSVEP classifier.
//
// A training tensor spans [channels, samples, targets, blocks]; a test
// tensor spans [channels, samples, targets] with one held-out trial per
// target. Epoch accessors return channel-row views into shared backing
// storage; callers must treat them as read-only. All split and subset
// operations are pure and return new tensors.
package tensor
