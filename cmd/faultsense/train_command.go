package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"faultsense/internal/checkpoint"
	"faultsense/internal/config"
	"faultsense/internal/corpus"
	"faultsense/internal/dataset"
	"faultsense/internal/featurecache"
	"faultsense/internal/history"
	"faultsense/internal/logging"
	"faultsense/internal/training"
)

func newTrainCommand(ctx *commandContext) *cobra.Command {
	var datasets []string
	var resume bool
	var allowFresh bool
	var force bool

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the classifier on one or more corpus roots",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.session()
			if err != nil {
				return err
			}
			roots := datasets
			if len(roots) == 0 {
				roots = cfg.Paths.DatasetRoots
			}

			ds, report, err := buildDataset(cmd.Context(), cfg, roots, logger)
			if err != nil {
				return err
			}
			prepared, err := training.Prepare(ds, cfg.Training, logger)
			if err != nil {
				return err
			}

			store, err := checkpoint.Open(cfg.Paths.CheckpointDir, logger)
			if err != nil {
				return err
			}
			hist, err := history.Open(cmd.Context(), cfg.HistoryPath())
			if err != nil {
				logging.WarnWithContext(logger, "run history unavailable", "history_unavailable",
					logging.String(logging.FieldPath, cfg.HistoryPath()),
					logging.Error(err),
					logging.String(logging.FieldImpact, "this run will not appear in faultsense history"))
				hist = nil
			} else {
				defer hist.Close()
			}

			trainer := training.NewTrainer(cfg, store, hist, logger)
			result, err := trainer.Run(cmd.Context(), prepared, training.Options{
				Resume:     resume,
				AllowFresh: allowFresh || cfg.Training.AllowFreshFallback,
				Force:      force,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := [][]string{
				{"Run", result.RunID},
				{"Samples", fmt.Sprintf("%d loaded, %d skipped, %d cached", report.Loaded, report.Skipped, report.Cached)},
				{"Train / validation", fmt.Sprintf("%d / %d", len(prepared.Train), len(prepared.Validation))},
				{"Epochs", fmt.Sprintf("%d", result.State.Epoch)},
				{"Resumed", yesNo(result.Resumed)},
			}
			if result.State.BestMetric != nil {
				rows = append(rows, []string{"Best " + result.State.Monitor, fmt.Sprintf("%.4f (epoch %d)", *result.State.BestMetric, result.State.BestEpoch)})
			}
			rows = append(rows,
				[]string{"Best model", result.State.BestCheckpoint},
				[]string{"Final model", result.FinalPath})
			fmt.Fprint(out, renderTable([]string{"Training", "Value"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&datasets, "dataset", nil, "Corpus root directory (repeatable; defaults to paths.dataset_roots)")
	cmd.Flags().BoolVar(&resume, "resume", false, "Continue the previous run from its latest checkpoint")
	cmd.Flags().BoolVar(&allowFresh, "allow-fresh", false, "With --resume, start fresh when no checkpoint exists")
	cmd.Flags().BoolVar(&force, "force", false, "Start a new run even if a previous run's state exists")
	return cmd
}

// buildDataset scans roots and extracts every sample, using the feature
// cache when it is enabled.
func buildDataset(ctx context.Context, cfg *config.Config, roots []string, logger *slog.Logger) (dataset.Dataset, dataset.Report, error) {
	scanner, err := corpus.NewScanner(roots, logger)
	if err != nil {
		return nil, dataset.Report{}, err
	}

	var opts []dataset.Option
	if cfg.FeatureCache.Enabled {
		cache, err := featurecache.Open(ctx, cfg.FeatureCache.Path, cfg.Audio.Fingerprint(), logger)
		if err != nil {
			return nil, dataset.Report{}, err
		}
		defer cache.Close()
		if pruned, err := cache.Prune(ctx); err != nil {
			logger.Warn("feature cache prune failed", logging.Error(err))
		} else if pruned > 0 {
			logger.Info("pruned stale feature cache entries", logging.Int64("entries", pruned))
		}
		opts = append(opts, dataset.WithCache(cache))
	}

	builder, err := dataset.NewBuilder(cfg, logger, opts...)
	if err != nil {
		return nil, dataset.Report{}, err
	}
	return builder.Build(ctx, scanner.Entries())
}
