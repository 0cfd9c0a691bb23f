package external

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotHook is the plotting boundary of spec.md §6: an optional
// collaborator the CLI driver may invoke after a search completes.
// The core itself never calls it.
type PlotHook interface {
	Plot(title string, marginal, cumulative []float64, path string) error
}

// TrajectoryPlot is the default PlotHook: it renders the marginal and
// cumulative score trajectories of a search as two lines over step
// index, built directly on the teacher's own plotting dependency
// (gonum.org/v1/plot), in the style of dsp/window/cmd/leakage's
// plot.New/plotter.NewLine/p.Save sequence.
type TrajectoryPlot struct {
	WidthCM, HeightCM float64
}

func (t TrajectoryPlot) Plot(title string, marginal, cumulative []float64, path string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "step"
	p.Y.Label.Text = "score"
	p.Add(plotter.NewGrid())

	marginalXY := make(plotter.XYs, len(marginal))
	for i, v := range marginal {
		marginalXY[i] = plotter.XY{X: float64(i), Y: v}
	}
	marginalLine, err := plotter.NewLine(marginalXY)
	if err != nil {
		return fmt.Errorf("external: marginal trajectory line: %w", err)
	}
	marginalLine.Color = plotter.DefaultLineStyle.Color

	cumulativeXY := make(plotter.XYs, len(cumulative))
	for i, v := range cumulative {
		cumulativeXY[i] = plotter.XY{X: float64(i), Y: v}
	}
	cumulativeLine, err := plotter.NewLine(cumulativeXY)
	if err != nil {
		return fmt.Errorf("external: cumulative trajectory line: %w", err)
	}

	p.Add(marginalLine, cumulativeLine)
	p.Legend.Add("marginal", marginalLine)
	p.Legend.Add("cumulative", cumulativeLine)

	width, height := t.WidthCM, t.HeightCM
	if width <= 0 {
		width = 16
	}
	if height <= 0 {
		height = 10
	}
	if err := p.Save(vg.Length(width)*vg.Centimeter, vg.Length(height)*vg.Centimeter, path); err != nil {
		return fmt.Errorf("external: saving trajectory plot: %w", err)
	}
	return nil
}
