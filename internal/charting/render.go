package charting

import (
	"bytes"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// RenderOptions size the produced image.
type RenderOptions struct {
	Width  int
	Height int
}

var lineColor = drawing.Color{R: 175, G: 82, B: 191, A: 255}

// Render draws a bucketed series as a PNG line chart. Gap buckets break the
// line into separate segments; they are never interpolated. An all-gap series
// renders an empty chart rather than failing.
func Render(buckets []Bucket, title, xAxisNote string, opts RenderOptions) ([]byte, error) {
	width := opts.Width
	if width <= 0 {
		width = 600
	}
	height := opts.Height
	if height <= 0 {
		height = 300
	}

	graph := chart.Chart{
		Title:  title,
		Width:  width,
		Height: height,
		XAxis: chart.XAxis{
			Name:  xAxisNote,
			Ticks: axisTicks(buckets),
			Range: &chart.ContinuousRange{Min: 0, Max: float64(len(buckets) - 1)},
		},
		Series: segmentSeries(buckets),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func axisTicks(buckets []Bucket) []chart.Tick {
	ticks := make([]chart.Tick, 0, len(buckets))
	for i, b := range buckets {
		label := b.Label
		if b.DateLabel != "" {
			label = label + " " + b.DateLabel
		}
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: label})
	}
	return ticks
}

// segmentSeries splits the bucket sequence into one continuous series per
// run of non-gap buckets, so gaps show as breaks in the line.
func segmentSeries(buckets []Bucket) []chart.Series {
	style := chart.Style{
		StrokeColor: lineColor,
		StrokeWidth: 2,
		DotColor:    lineColor,
		DotWidth:    2,
	}

	var series []chart.Series
	var xs []float64
	var ys []float64

	flush := func() {
		if len(xs) == 0 {
			return
		}
		series = append(series, chart.ContinuousSeries{
			XValues: xs,
			YValues: ys,
			Style:   style,
		})
		xs, ys = nil, nil
	}

	for i, b := range buckets {
		if b.Gap {
			flush()
			continue
		}
		xs = append(xs, float64(i))
		ys = append(ys, b.Value.InexactFloat64())
	}
	flush()

	if len(series) == 0 {
		// keep an all-gap window renderable: an invisible series establishes
		// the axis ranges
		series = append(series, chart.ContinuousSeries{
			XValues: []float64{0, float64(len(buckets) - 1)},
			YValues: []float64{0, 1},
			Style: chart.Style{
				StrokeColor: chart.ColorTransparent,
				StrokeWidth: 1,
			},
		})
	}
	return series
}
