package autozi

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
)

// History records the per-epoch losses of a training run.
type History struct {
	TrainLoss      []float64 `json:"train_loss" yaml:"train_loss,flow"`
	ValidationLoss []float64 `json:"validation_loss" yaml:"validation_loss,flow"`
}

func (h *History) append(train, validation float64) {
	h.TrainLoss = append(h.TrainLoss, train)
	h.ValidationLoss = append(h.ValidationLoss, validation)
}

// Len returns the number of recorded epochs.
func (h *History) Len() int {
	return len(h.TrainLoss)
}

// SavePlot writes the training curves to path. The image format follows the
// file extension (.png, .svg, .pdf, ...).
func (h *History) SavePlot(path string) error {
	if h.Len() == 0 {
		return errors.NewModelError("History.SavePlot", "no epochs recorded", errors.ErrEmptyData)
	}
	p := plot.New()
	p.Title.Text = "AutoZI training"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "-ELBO per cell"

	train := make(plotter.XYs, h.Len())
	validation := make(plotter.XYs, h.Len())
	for i := range train {
		train[i].X = float64(i + 1)
		train[i].Y = h.TrainLoss[i]
		validation[i].X = float64(i + 1)
		validation[i].Y = h.ValidationLoss[i]
	}

	trainLine, err := plotter.NewLine(train)
	if err != nil {
		return errors.Wrap(err, "autozi: train loss line")
	}
	validationLine, err := plotter.NewLine(validation)
	if err != nil {
		return errors.Wrap(err, "autozi: validation loss line")
	}
	validationLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(trainLine, validationLine)
	p.Legend.Add("train", trainLine)
	p.Legend.Add("validation", validationLine)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "autozi: save plot %s", path)
	}
	return nil
}
