// Command bcieval runs leave-one-block-out evaluation of the filter-bank
// GCCA SSVEP classifier over a recorded session.
//
// Usage:
//
//	bcieval -file session.f64 -channels 9 -samples 1500 -targets 12 -blocks 6 [flags]
//	bcieval -demo [flags]
//
// The dataset file is a raw stream of little-endian float64 values in axis
// order [channels, samples, targets, blocks], channel axis outermost. The
// -demo flag evaluates a synthetic sine dataset instead of loading a file.
//
// Examples:
//
//	bcieval -demo -bands 5 -recon 2
//	bcieval -file s1.f64 -channels 9 -samples 1500 -targets 12 -blocks 6 \
//	    -pick 0,1,2,3,4,5,6,7,8 -offset 160 -window 250 -bands 5 -recon 1
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	osignal "os/signal"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cwbudde/algo-bci/bci/dataset"
	"github.com/cwbudde/algo-bci/bci/eval"
	"github.com/cwbudde/algo-bci/bci/ssvep"
	"github.com/cwbudde/algo-bci/bci/tensor"
	"github.com/cwbudde/algo-bci/dsp/core"
	"github.com/cwbudde/algo-bci/dsp/signal"
	"github.com/cwbudde/algo-bci/measure/snr"
)

func main() {
	file := flag.String("file", "", "dataset path (raw little-endian float64)")
	channels := flag.Int("channels", 0, "dataset channel count")
	samples := flag.Int("samples", 0, "dataset samples per epoch")
	targets := flag.Int("targets", 0, "dataset target count")
	blocks := flag.Int("blocks", 0, "dataset block count")
	pick := flag.String("pick", "", "comma-separated channel indices to keep (default all)")
	offset := flag.Int("offset", 0, "epoch window start in samples (cue duration + visual latency)")
	length := flag.Int("window", 0, "epoch window length in samples (0 keeps the full epoch)")
	rate := flag.Int("rate", 250, "sampling rate in Hz")
	bands := flag.Int("bands", 5, "number of filter-bank sub-bands (1..7)")
	recon := flag.Int("recon", 1, "reconstructed channels per spatial filter")
	gaze := flag.Float64("gaze", 0.5, "gaze-shift time in seconds added to the selection time")
	freqs := flag.String("freqs", "", "comma-separated stimulus frequencies in Hz for the SNR table")
	demo := flag.Bool("demo", false, "evaluate a synthetic sine dataset instead of a file")
	noise := flag.Float64("noise", 0.5, "demo dataset noise standard deviation")
	verbose := flag.Bool("v", false, "verbose progress logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bcieval [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Runs leave-one-block-out evaluation of the SSVEP classifier.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  bcieval -demo -bands 5 -recon 2\n")
		fmt.Fprintf(os.Stderr, "  bcieval -file s1.f64 -channels 9 -samples 1500 -targets 12 -blocks 6 -offset 160 -window 250\n")
	}
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := osignal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stimulusFreqs, err := parseFloats(*freqs)
	if err != nil {
		fatalf("invalid -freqs: %v", err)
	}

	var full *tensor.Training
	if *demo {
		if len(stimulusFreqs) == 0 {
			stimulusFreqs = []float64{9.25, 11.25, 13.25, 15.25}
		}
		full, err = demoDataset(stimulusFreqs, float64(*rate), *noise)
		if err != nil {
			fatalf("building demo dataset: %v", err)
		}
		log.Info().Int("targets", full.Targets()).Int("blocks", full.Blocks()).Msg("synthetic dataset ready")
	} else {
		if *file == "" {
			flag.Usage()
			os.Exit(2)
		}
		full, err = dataset.ReadFile(*file, *channels, *samples, *targets, *blocks)
		if err != nil {
			fatalf("loading dataset: %v", err)
		}
		log.Info().Str("file", *file).
			Int("channels", full.Channels()).Int("samples", full.Samples()).
			Int("targets", full.Targets()).Int("blocks", full.Blocks()).
			Msg("dataset loaded")
	}

	if *pick != "" {
		indices, err := parseInts(*pick)
		if err != nil {
			fatalf("invalid -pick: %v", err)
		}
		full, err = full.Subset(indices)
		if err != nil {
			fatalf("channel subset: %v", err)
		}
		log.Info().Ints("channels", indices).Msg("channel subset applied")
	}

	if *length > 0 {
		full, err = dataset.Window(full, *offset, *length)
		if err != nil {
			fatalf("windowing: %v", err)
		}
		log.Info().Int("offset", *offset).Int("length", *length).Msg("epoch window applied")
	}

	cfg := ssvep.Config{SampleRate: *rate, NumBands: *bands, Recon: *recon}
	report, err := eval.CrossValidate(ctx, cfg, full, eval.WithGazeShift(*gaze))
	if err != nil {
		fatalf("evaluation: %v", err)
	}

	printReport(report, full.Targets())
	if len(stimulusFreqs) > 0 {
		printSNRTable(full, stimulusFreqs, float64(*rate))
	}
}

func printReport(report *eval.Report, targets int) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Fold\tHeld-out block\tAccuracy\tPredictions\n")
	fmt.Fprintf(tw, "----\t--------------\t--------\t-----------\n")
	for i, fold := range report.Folds {
		fmt.Fprintf(tw, "%d\t%d\t%.4f\t%v\n", i+1, fold.Block, fold.Accuracy, fold.Labels)
	}
	tw.Flush()

	fmt.Println()
	tw = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Targets\t%d\n", targets)
	fmt.Fprintf(tw, "Mean accuracy\t%.4f\n", report.Accuracy)
	fmt.Fprintf(tw, "Selection time\t%.3f s\n", report.SelectionTime)
	if math.IsNaN(report.ITRBitsPerMin) {
		fmt.Fprintf(tw, "ITR\tundefined\n")
	} else {
		fmt.Fprintf(tw, "ITR\t%.2f bits/min\n", report.ITRBitsPerMin)
	}
	if len(report.Failed) > 0 {
		fmt.Fprintf(tw, "Failed folds\t%v\n", report.Failed)
	}
	tw.Flush()
}

// printSNRTable reports the narrow-band SNR of each target's block-averaged
// raw epoch at its stimulus frequency.
func printSNRTable(full *tensor.Training, stimulusFreqs []float64, rate float64) {
	fmt.Println()
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Target\tStimulus [Hz]\tSNR\tSNR [dB]\n")
	fmt.Fprintf(tw, "------\t-------------\t---\t--------\n")
	for t := 0; t < full.Targets() && t < len(stimulusFreqs); t++ {
		res, err := snr.Analyze(blockMeanEpoch(full, t), snr.Config{
			SampleRate:   rate,
			StimulusFreq: stimulusFreqs[t],
		})
		if err != nil {
			log.Warn().Int("target", t+1).Err(err).Msg("snr analysis failed")
			continue
		}
		fmt.Fprintf(tw, "%d\t%.2f\t%.2f\t%.2f\n", t+1, stimulusFreqs[t], res.SNR, res.SNRdB)
	}
	tw.Flush()
}

func blockMeanEpoch(full *tensor.Training, target int) [][]float64 {
	mean := make([][]float64, full.Channels())
	for c := range mean {
		mean[c] = make([]float64, full.Samples())
	}
	for b := 0; b < full.Blocks(); b++ {
		epoch := full.Epoch(target, b)
		for c, row := range epoch {
			for s, v := range row {
				mean[c][s] += v
			}
		}
	}
	scale := 1 / float64(full.Blocks())
	for c := range mean {
		for s := range mean[c] {
			mean[c][s] *= scale
		}
	}
	return mean
}

// demoDataset synthesizes one epoch per (target, block): a target-specific
// sine mixed into every channel with distinct gains, plus independent noise.
func demoDataset(stimulusFreqs []float64, rate, sigma float64) (*tensor.Training, error) {
	const (
		demoChannels = 4
		demoBlocks   = 4
		demoSeconds  = 1.0
	)
	gains := []float64{1.0, 0.8, -0.6, 0.9}
	samples := int(demoSeconds * rate)

	gen := signal.NewGenerator([]core.ProcessorOption{core.WithSampleRate(rate)}, signal.WithSeed(1))

	epochs := make([][][][]float64, len(stimulusFreqs))
	for t, freq := range stimulusFreqs {
		epochs[t] = make([][][]float64, demoBlocks)
		for b := 0; b < demoBlocks; b++ {
			epoch := make([][]float64, demoChannels)
			for c := 0; c < demoChannels; c++ {
				sine, err := gen.Sine(freq, gains[c], 0.35*float64(t), samples)
				if err != nil {
					return nil, err
				}
				noise, err := gen.GaussianNoise(sigma, samples, int64(t*1000+b*100+c))
				if err != nil {
					return nil, err
				}
				row, err := signal.Add(sine, noise)
				if err != nil {
					return nil, err
				}
				epoch[c] = row
			}
			epochs[t][b] = epoch
		}
	}
	return tensor.TrainingFromEpochs(epochs)
}

func parseInts(csv string) ([]int, error) {
	parts := strings.Split(csv, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseFloats(csv string) ([]float64, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
