package main

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/quillml/textsolve/engine"
)

// plotHistory writes a PNG of per-epoch loss curves: training loss in blue
// and, when the run had a validation split, validation loss in red.
func plotHistory(history *engine.History, title, outPath string) error {
	if history == nil || len(history.Epochs) == 0 {
		return fmt.Errorf("empty history")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s loss per epoch", title)
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "loss"

	trainXY := make(plotter.XYs, 0, len(history.Epochs))
	valXY := make(plotter.XYs, 0, len(history.Epochs))
	hasVal := false
	for i, m := range history.Epochs {
		trainXY = append(trainXY, plotter.XY{X: float64(i + 1), Y: m.Loss})
		if m.HasValidation {
			valXY = append(valXY, plotter.XY{X: float64(i + 1), Y: m.ValLoss})
			hasVal = true
		}
	}

	trainLine, err := plotter.NewLine(trainXY)
	if err != nil {
		return err
	}
	trainLine.Color = color.RGBA{R: 20, G: 80, B: 200, A: 255}
	trainLine.Width = vg.Points(1.2)
	p.Add(trainLine)
	p.Legend.Add("loss", trainLine)

	if hasVal {
		valLine, err := plotter.NewLine(valXY)
		if err != nil {
			return err
		}
		valLine.Color = color.RGBA{R: 200, G: 30, B: 30, A: 255}
		valLine.Width = vg.Points(1.2)
		p.Add(valLine)
		p.Legend.Add("val_loss", valLine)
	}
	p.Add(plotter.NewGrid())

	if dir := filepath.Dir(outPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return p.Save(8*vg.Inch, 6*vg.Inch, outPath)
}
