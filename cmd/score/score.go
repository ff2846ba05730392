// Package score implements the okn score command, which scores an exported
// gaze trace offline.
package score

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tphakala/okn-go/internal/gain"
	"github.com/tphakala/okn-go/internal/session"
)

type options struct {
	chartPath      string
	jsonOutput     bool
	sampleInterval float64
}

// Command creates the score command.
func Command() *cobra.Command {
	var o options

	cmd := &cobra.Command{
		Use:   "score <trace.json|trace.csv>",
		Short: "Score an exported gaze trace",
		Long: "Read a trial exported from GET /api/v1/trial (JSON) or a CSV with " +
			"timestamp,gazeX,gazeY columns and print the gain and its classification.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trace, err := LoadTrace(args[0])
			if err != nil {
				return err
			}
			return execute(cmd.OutOrStdout(), trace, o)
		},
	}

	cmd.Flags().StringVar(&o.chartPath, "chart", "", "Write an HTML chart of the gaze trace to this path")
	cmd.Flags().BoolVar(&o.jsonOutput, "json", false, "Print the result as JSON")
	cmd.Flags().Float64Var(&o.sampleInterval, "interval", gain.DefaultSampleInterval, "Sample interval in seconds")

	return cmd
}

func execute(w io.Writer, trace session.TrialExport, o options) error {
	result := gain.Estimate(trace.GazeX, o.sampleInterval)

	if o.chartPath != "" {
		if err := writeChart(o.chartPath, trace, result); err != nil {
			return err
		}
	}

	if o.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return printResult(w, trace, result)
}

func printResult(w io.Writer, trace session.TrialExport, r gain.Result) error {
	id := trace.ID
	if id == "" {
		id = "-"
	}
	_, err := fmt.Fprintf(w,
		"Trial:          %s\nSamples:        %d\nMean velocity:  %.4f /s\nGain:           %.3f\nResult:         %s\n                %s\n",
		id, r.Samples, r.MeanVelocity, r.Gain, r.Interpretation, r.Advice)
	return err
}

func writeChart(path string, trace session.TrialExport, r gain.Result) error {
	f, err := os.Create(path) //nolint:gosec // path is supplied by the operator
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	if err := renderChart(f, trace, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
