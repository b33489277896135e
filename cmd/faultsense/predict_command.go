package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"faultsense/internal/corpus"
	"faultsense/internal/inference"
)

type predictionOutput struct {
	Path    string             `json:"path"`
	Verdict *inference.Verdict `json:"verdict,omitempty"`
	Label   string             `json:"label,omitempty"`
	Error   string             `json:"error,omitempty"`
}

func newPredictCommand(ctx *commandContext) *cobra.Command {
	var modelPath string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "predict [FILE.wav...]",
		Short: "Classify recordings as normal or abnormal",
		Long: "Classify recordings as normal or abnormal.\n\n" +
			"Without file arguments, predict reads one path per line from stdin until EOF or \"quit\".",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.session()
			if err != nil {
				return err
			}
			if strings.TrimSpace(modelPath) == "" {
				modelPath = cfg.BestModelPath()
			}
			predictor, err := inference.NewPredictor(cfg, modelPath, logger)
			if err != nil {
				return err
			}

			colorize := shouldColorize(cmd.OutOrStdout())
			if len(args) == 0 {
				return predictInteractive(cmd, predictor, colorize)
			}

			var outputs []predictionOutput
			var firstErr error
			for _, path := range args {
				verdict, err := predictor.PredictFile(path)
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					outputs = append(outputs, predictionOutput{Path: path, Error: err.Error()})
					if !jsonOutput {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					}
					continue
				}
				outputs = append(outputs, predictionOutput{Path: path, Verdict: &verdict, Label: verdictLabel(verdict)})
				if !jsonOutput {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", path, formatVerdict(verdict, colorize))
				}
			}
			if jsonOutput {
				if err := writeJSON(cmd, outputs); err != nil {
					return err
				}
			}
			return firstErr
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "Model snapshot (defaults to the best checkpoint)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	return cmd
}

func predictInteractive(cmd *cobra.Command, predictor *inference.Predictor, colorize bool) error {
	out := cmd.OutOrStdout()
	if predictor.Demo() {
		fmt.Fprintln(out, "No trained model loaded; verdicts are demo results.")
	}
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "audio file> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		path := strings.Trim(strings.TrimSpace(scanner.Text()), `"'`)
		switch strings.ToLower(path) {
		case "":
			continue
		case "quit", "exit", "q":
			return nil
		}
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		verdict, err := predictor.PredictFile(path)
		if err != nil {
			printPredictError(out, path, err)
			continue
		}
		fmt.Fprintf(out, "%s: %s\n", path, formatVerdict(verdict, colorize))
	}
}

func printPredictError(out io.Writer, path string, err error) {
	if isSkip(err) {
		fmt.Fprintf(out, "%s: unreadable audio (%v)\n", path, err)
		return
	}
	fmt.Fprintf(out, "%s: %v\n", path, err)
}

func verdictLabel(v inference.Verdict) string {
	if v.Demo {
		return "demo"
	}
	return v.Label.String()
}

func formatVerdict(v inference.Verdict, colorize bool) string {
	s := v.String()
	if !colorize {
		return s
	}
	switch {
	case v.Demo:
		return text.Colors{text.FgYellow}.Sprint(s)
	case v.Label == corpus.LabelAbnormal:
		return text.Colors{text.FgRed, text.Bold}.Sprint(s)
	default:
		return text.Colors{text.FgGreen}.Sprint(s)
	}
}
