package export

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/buildopt/core/model"
)

// WriteChartHTML renders t as a standalone HTML line chart with one series
// per column.
func WriteChartHTML(w io.Writer, title string, t *model.Table) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Timestep"}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)

	xAxis := make([]string, len(t.Timesteps))
	for i, ts := range t.Timesteps {
		xAxis[i] = ts.Format("2006-01-02 15:04")
	}
	line.SetXAxis(xAxis)
	for j, name := range t.Columns {
		data := make([]opts.LineData, len(t.Timesteps))
		for i := range t.Timesteps {
			data[i] = opts.LineData{Value: t.AtIndex(i, j)}
		}
		line.AddSeries(name, data)
	}
	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
