package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"faultsense/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var listRuns bool
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show per-epoch metrics of a training run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cmd.Context(), cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if listRuns {
				runs, err := store.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No training runs recorded")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"Run", "Started", "Status", "Epochs", "Monitor", "Datasets"},
					buildRunRows(runs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			}

			id := strings.TrimSpace(runID)
			if id == "" {
				latest, err := store.LatestRun(cmd.Context())
				if history.IsNotFound(err) {
					fmt.Fprintln(out, "No training runs recorded")
					return nil
				}
				if err != nil {
					return err
				}
				id = latest.ID
			}
			epochs, err := store.Epochs(cmd.Context(), id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, epochs)
			}
			fmt.Fprintf(out, "Run %s\n", id)
			if len(epochs) == 0 {
				fmt.Fprintln(out, "No epochs recorded")
				return nil
			}
			fmt.Fprint(out, renderTable(
				[]string{"Epoch", "Train loss", "Train acc", "Val loss", "Val acc", "Best"},
				buildEpochRows(epochs),
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run id (defaults to the most recent run)")
	cmd.Flags().BoolVar(&listRuns, "runs", false, "List runs instead of epochs")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func buildEpochRows(epochs []history.Epoch) [][]string {
	rows := make([][]string, 0, len(epochs))
	for _, e := range epochs {
		best := ""
		if e.Improved {
			best = "*"
		}
		rows = append(rows, []string{
			strconv.Itoa(e.Epoch),
			fmt.Sprintf("%.4f", e.TrainLoss),
			fmt.Sprintf("%.2f%%", e.TrainAccuracy*100),
			fmt.Sprintf("%.4f", e.ValLoss),
			fmt.Sprintf("%.2f%%", e.ValAccuracy*100),
			best,
		})
	}
	return rows
}

func buildRunRows(runs []history.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Status,
			strconv.Itoa(r.EpochsPlanned),
			r.Monitor,
			strings.Join(r.DatasetRoots, ", "),
		})
	}
	return rows
}
