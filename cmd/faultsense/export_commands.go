package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"faultsense/internal/export"
	"faultsense/internal/logging"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var modelPath string
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the quantized on-device artifact with reference vectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.session()
			if err != nil {
				return err
			}
			if strings.TrimSpace(modelPath) == "" {
				modelPath = cfg.BestModelPath()
			}
			if strings.TrimSpace(outPath) == "" {
				outPath = filepath.Join(cfg.Paths.CheckpointDir, "model.fsq")
			}

			artifact, err := export.Build(cfg, modelPath)
			if err != nil {
				return err
			}
			digest, err := export.Write(outPath, artifact)
			if err != nil {
				return err
			}
			logging.NewComponentLogger(logger, "export").Info("artifact exported",
				logging.String(logging.FieldPath, outPath),
				logging.String("digest", digest),
				logging.String(logging.FieldRunID, artifact.SourceRunID))

			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Export", "Value"}, [][]string{
				{"Artifact", outPath},
				{"Digest", digest},
				{"Source", fmt.Sprintf("%s (run %s, epoch %d)", modelPath, artifact.SourceRunID, artifact.SourceEpoch)},
				{"Input shape", fmt.Sprintf("%d x %d", artifact.Model.Mels, artifact.Model.Frames)},
				{"Reference score", fmt.Sprintf("%.6f", artifact.Reference.Score)},
			}, nil))
			return nil
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "Model snapshot (defaults to the best checkpoint)")
	cmd.Flags().StringVar(&outPath, "out", "", "Artifact path (defaults to <checkpoint_dir>/model.fsq)")
	return cmd
}

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify ARTIFACT",
		Short: "Check that this build reproduces an artifact's reference vectors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := ctx.session()
			if err != nil {
				return err
			}
			artifact, err := export.Read(args[0])
			if err != nil {
				return err
			}
			report, verr := export.Verify(artifact, logger)
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Check", "Match"}, [][]string{
				{"Reference input", yesNo(report.InputMatch)},
				{"Feature tensor", yesNo(report.FeatureMatch)},
				{"Model input", yesNo(report.FittedMatch)},
				{"Score", yesNo(report.ScoreMatch)},
			}, nil))
			if verr != nil {
				return verr
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Artifact verified")
			return nil
		},
	}
}
