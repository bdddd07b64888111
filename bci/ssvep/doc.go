// Package ssvep classifies attended flicker stimuli from multichannel EEG.
//
// The pipeline is filter-bank decomposition, per-target spatial filtering
// learned by cross-trial generalized canonical correlation (package gcca),
// template matching against block-averaged reference waveforms, and weighted
// fusion of the per-sub-band correlation scores. Classify is the single
// entry point; all learned state lives and dies inside one call.
package ssvep
