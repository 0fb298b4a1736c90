package visualiser

import (
	"fmt"
	"image/color"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var waveColor = color.RGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}

// RenderHTML writes an interactive go-echarts page plotting the trace's
// square wave, with the SQI and SNR in the subtitle.
func RenderHTML(w io.Writer, tr Trace, title string) error {
	data := make([]opts.LineData, 0, len(tr.Points))
	for _, p := range tr.Points {
		data = append(data, opts.LineData{Value: []interface{}{p.X, p.Y}})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "1200px", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle(tr)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "bit", NameLocation: "middle", NameGap: 25, Min: 0}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: -1.5, Max: 1.5}),
	)
	line.AddSeries("NRZ-L", data)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render trace chart: %w", err)
	}
	return nil
}

func subtitle(tr Trace) string {
	return fmt.Sprintf("bits=%d SQI=%d SNR: %s dB", len(tr.Bits), tr.SQI, tr.SNR)
}

// Plot builds a gonum plot of the trace's square wave.
func Plot(tr Trace, title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%s)", title, subtitle(tr))
	p.X.Label.Text = "bit"
	p.Y.Label.Text = "level"
	p.Y.Min, p.Y.Max = -1.5, 1.5
	p.Add(plotter.NewGrid())

	if len(tr.Points) == 0 {
		return p, nil
	}

	xys := make(plotter.XYs, len(tr.Points))
	for i, pt := range tr.Points {
		xys[i].X, xys[i].Y = pt.X, pt.Y
	}
	l, err := plotter.NewLine(xys)
	if err != nil {
		return nil, fmt.Errorf("build trace line: %w", err)
	}
	l.Color = waveColor
	l.Width = vg.Points(1.5)
	p.Add(l)
	return p, nil
}

// RenderPNG saves the trace as a PNG image at path.
func RenderPNG(path string, tr Trace, title string) error {
	p, err := Plot(tr, title)
	if err != nil {
		return err
	}
	if err := p.Save(14*vg.Inch, 3*vg.Inch, path); err != nil {
		return fmt.Errorf("save trace plot: %w", err)
	}
	return nil
}

// WritePNG writes the trace as PNG to w.
func WritePNG(w io.Writer, tr Trace, title string) error {
	p, err := Plot(tr, title)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(14*vg.Inch, 3*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("encode trace plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
