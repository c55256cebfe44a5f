// Package export renders stored trajectories to image files.
package export

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// OutputTrajectories plots every output channel over time and writes
// the result to path; the format follows the file extension (png, svg,
// pdf).
func OutputTrajectories(times []float64, outputs [][]float64, path string) error {
	if len(times) == 0 || len(outputs) == 0 {
		return fmt.Errorf("export: empty trajectory")
	}

	p := plot.New()
	p.Title.Text = "Output trajectory"
	p.X.Label.Text = "t"
	p.Y.Label.Text = "y"

	channels := len(outputs[0])
	for ch := 0; ch < channels; ch++ {
		pts := make(plotter.XYs, 0, len(times))
		for k, t := range times {
			if ch >= len(outputs[k]) {
				continue
			}
			pts = append(pts, plotter.XY{X: t, Y: outputs[k][ch]})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(ch)
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("y%d", ch), line)
	}

	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}

// PhasePlane plots output channel j against channel i, one line per
// batch element block of width dimOut.
func PhasePlane(outputs [][]float64, dimOut, i, j int, path string) error {
	if len(outputs) == 0 {
		return fmt.Errorf("export: empty trajectory")
	}
	if i >= dimOut || j >= dimOut {
		return fmt.Errorf("export: channel out of range: %d, %d with width %d", i, j, dimOut)
	}

	p := plot.New()
	p.Title.Text = "Output phase plane"
	p.X.Label.Text = fmt.Sprintf("y%d", i)
	p.Y.Label.Text = fmt.Sprintf("y%d", j)

	batch := len(outputs[0]) / dimOut
	for b := 0; b < batch; b++ {
		pts := make(plotter.XYs, 0, len(outputs))
		for _, row := range outputs {
			off := b * dimOut
			if off+dimOut > len(row) {
				continue
			}
			pts = append(pts, plotter.XY{X: row[off+i], Y: row[off+j]})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(b)
		p.Add(line)
	}

	return p.Save(6*vg.Inch, 6*vg.Inch, path)
}

// MetricDecay plots a scalar series, typically the P-weighted state
// norm, on a time axis.
func MetricDecay(times, values []float64, path string) error {
	if len(times) != len(values) || len(times) == 0 {
		return fmt.Errorf("export: series length mismatch")
	}

	p := plot.New()
	p.Title.Text = "Contraction metric decay"
	p.X.Label.Text = "t"
	p.Y.Label.Text = "V(x)"

	pts := make(plotter.XYs, len(times))
	for k := range times {
		pts[k] = plotter.XY{X: times[k], Y: values[k]}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Width = vg.Points(2)
	p.Add(line)

	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}
