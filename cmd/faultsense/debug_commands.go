package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"faultsense/internal/corpus"
	"faultsense/internal/features"
	"faultsense/internal/waveform"
)

func newFeaturesCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "features FILE.wav",
		Short: "Print the feature tensor summary for one recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			w, err := waveform.Load(args[0], cfg.Audio)
			if err != nil {
				return err
			}
			extractor, err := features.NewExtractor(cfg.Audio)
			if err != nil {
				return err
			}
			tensor, err := extractor.Extract(w)
			if err != nil {
				return err
			}
			fitted, resized := features.Adapter{Mels: cfg.Model.InputMels, Frames: cfg.Model.InputFrames}.Fit(tensor)
			stats := tensor.Stats()

			if jsonOutput {
				return writeJSON(cmd, map[string]any{
					"path":          args[0],
					"shape":         tensor.Shape(),
					"model_shape":   fitted.Shape(),
					"resized":       resized,
					"mean":          stats.Mean,
					"std":           stats.Std,
					"min":           stats.Min,
					"max":           stats.Max,
					"finite":        stats.Finite,
					"digest":        tensor.Digest(),
					"fitted_digest": fitted.Digest(),
				})
			}

			shape, modelShape := tensor.Shape(), fitted.Shape()
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Feature", "Value"}, [][]string{
				{"File", args[0]},
				{"Samples", fmt.Sprintf("%d @ %d Hz", len(w.Samples), w.SampleRate)},
				{"Shape", fmt.Sprintf("%d x %d x %d", shape[0], shape[1], shape[2])},
				{"Model shape", fmt.Sprintf("%d x %d x %d (resized: %s)", modelShape[0], modelShape[1], modelShape[2], yesNo(resized))},
				{"Mean", fmt.Sprintf("%.6f", stats.Mean)},
				{"Std", fmt.Sprintf("%.6f", stats.Std)},
				{"Range", fmt.Sprintf("[%.4f, %.4f]", stats.Min, stats.Max)},
				{"Finite", yesNo(stats.Finite)},
				{"Digest", tensor.Digest()},
			}, nil))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var datasets []string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Count labeled recordings per machine group without loading audio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.session()
			if err != nil {
				return err
			}
			roots := datasets
			if len(roots) == 0 {
				roots = cfg.Paths.DatasetRoots
			}
			scanner, err := corpus.NewScanner(roots, logger)
			if err != nil {
				return err
			}

			var tally corpus.Tally
			skipped := 0
			for entry, err := range scanner.Entries() {
				if err != nil {
					if isSkip(err) {
						skipped++
						continue
					}
					return err
				}
				tally.Add(entry)
			}

			out := cmd.OutOrStdout()
			groups := tally.Groups()
			if len(groups) == 0 {
				fmt.Fprintln(out, "No labeled recordings found")
				return nil
			}
			rows := make([][]string, 0, len(groups)+1)
			for _, g := range groups {
				rows = append(rows, []string{
					g,
					strconv.Itoa(tally.Count(g, corpus.LabelNormal)),
					strconv.Itoa(tally.Count(g, corpus.LabelAbnormal)),
				})
			}
			rows = append(rows, []string{
				"total",
				strconv.Itoa(tally.Total(corpus.LabelNormal)),
				strconv.Itoa(tally.Total(corpus.LabelAbnormal)),
			})
			fmt.Fprint(out, renderTable([]string{"Group", "Normal", "Abnormal"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignRight}))
			if skipped > 0 {
				fmt.Fprintf(out, "%d paths skipped (see log)\n", skipped)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&datasets, "dataset", nil, "Corpus root directory (repeatable; defaults to paths.dataset_roots)")
	return cmd
}
