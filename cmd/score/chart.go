package score

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/tphakala/okn-go/internal/gain"
	"github.com/tphakala/okn-go/internal/session"
)

// newTraceChart plots both gaze channels against time.
func newTraceChart(trace session.TrialExport, r gain.Result) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Gaze trace",
			Subtitle: fmt.Sprintf("gain %.3f, %s", r.Gain, r.Interpretation),
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Type: "value",
			Name: "seconds",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type:  "value",
			Scale: opts.Bool(true),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	gazeX := make([]opts.LineData, 0, trace.Len())
	gazeY := make([]opts.LineData, 0, trace.Len())
	for i, ts := range trace.Timestamp {
		gazeX = append(gazeX, opts.LineData{Value: []interface{}{ts, trace.GazeX[i]}})
		gazeY = append(gazeY, opts.LineData{Value: []interface{}{ts, trace.GazeY[i]}})
	}

	line.AddSeries("gazeX", gazeX).
		AddSeries("gazeY", gazeY).
		SetSeriesOptions(charts.WithLineStyleOpts(opts.LineStyle{Width: 2}))
	return line
}

func renderChart(w io.Writer, trace session.TrialExport, r gain.Result) error {
	if err := newTraceChart(trace, r).Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
