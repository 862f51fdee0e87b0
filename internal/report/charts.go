package report

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/couchcryptid/wind-explorer/internal/domain"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	chartWidth  = 16 * vg.Centimeter
	chartHeight = 8 * vg.Centimeter
)

// Chart is a rendered PNG image with its caption.
type Chart struct {
	Name  string
	Title string
	PNG   []byte
}

// RenderCharts draws every non-empty series of the bundle as a PNG. Empty
// series are skipped, so the result may be empty.
func RenderCharts(b domain.ChartBundle) ([]Chart, error) {
	unit := b.Unit.Label()
	var charts []Chart

	if len(b.TimeSeries) > 0 {
		pts := make(plotter.XYs, len(b.TimeSeries))
		for i, p := range b.TimeSeries {
			pts[i] = plotter.XY{X: float64(i), Y: p.Speed}
		}
		c, err := lineChart("timeseries", "Wind Speed Time Series", "Sample", "Speed ("+unit+")", pts)
		if err != nil {
			return nil, err
		}
		charts = append(charts, c)
	}

	if len(b.Histogram) > 0 {
		values := make(plotter.Values, len(b.Histogram))
		names := make([]string, len(b.Histogram))
		for i, bin := range b.Histogram {
			values[i] = bin.Frequency
			names[i] = strconv.FormatFloat(bin.Speed, 'f', 1, 64)
		}
		c, err := barChart("histogram", "Wind Speed Distribution", "Speed ("+unit+")", "Frequency", values, names)
		if err != nil {
			return nil, err
		}
		charts = append(charts, c)
	}

	if len(b.WindRose) > 0 {
		values := make(plotter.Values, len(b.WindRose))
		names := make([]string, len(b.WindRose))
		for i, s := range b.WindRose {
			values[i] = s.Total
			names[i] = s.Direction
		}
		c, err := barChart("windrose", "Wind Direction Frequency", "Direction", "Frequency (%)", values, names)
		if err != nil {
			return nil, err
		}
		charts = append(charts, c)
	}

	if len(b.Hourly) > 0 {
		pts := make(plotter.XYs, len(b.Hourly))
		for i, h := range b.Hourly {
			pts[i] = plotter.XY{X: float64(h.Hour), Y: h.Speed}
		}
		c, err := lineChart("hourly", "Mean Speed by Hour", "Hour", "Speed ("+unit+")", pts)
		if err != nil {
			return nil, err
		}
		charts = append(charts, c)
	}

	if len(b.Monthly) > 0 {
		values := make(plotter.Values, len(b.Monthly))
		names := make([]string, len(b.Monthly))
		for i, m := range b.Monthly {
			values[i] = m.MeanSpeed
			names[i] = m.Name[:min(3, len(m.Name))]
		}
		c, err := barChart("monthly", "Mean Speed by Month", "Month", "Speed ("+unit+")", values, names)
		if err != nil {
			return nil, err
		}
		charts = append(charts, c)
	}
	return charts, nil
}

func lineChart(name, title, xLabel, yLabel string, pts plotter.XYs) (Chart, error) {
	p := newPlot(title, xLabel, yLabel)
	line, err := plotter.NewLine(pts)
	if err != nil {
		return Chart{}, fmt.Errorf("build %s chart: %w", name, err)
	}
	line.Width = vg.Points(1.5)
	p.Add(line)
	return encode(p, name, title)
}

func barChart(name, title, xLabel, yLabel string, values plotter.Values, names []string) (Chart, error) {
	p := newPlot(title, xLabel, yLabel)
	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return Chart{}, fmt.Errorf("build %s chart: %w", name, err)
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)
	return encode(p, name, title)
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(12)
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	return p
}

func encode(p *plot.Plot, name, title string) (Chart, error) {
	wt, err := p.WriterTo(chartWidth, chartHeight, "png")
	if err != nil {
		return Chart{}, fmt.Errorf("render %s chart: %w", name, err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return Chart{}, fmt.Errorf("encode %s chart: %w", name, err)
	}
	return Chart{Name: name, Title: title, PNG: buf.Bytes()}, nil
}
