package autozi

import "math"

// EarlyStopping tracks the best validation loss and counts epochs without
// strict improvement.
type EarlyStopping struct {
	Patience        int     // Epochs without improvement before stopping
	BestLoss        float64 // Best validation loss so far
	BestEpoch       int     // Epoch with the best loss
	RoundsNoImprove int     // Current epochs without improvement
	Enabled         bool
}

// NewEarlyStopping creates a handler. A non-positive patience disables it.
func NewEarlyStopping(patience int) *EarlyStopping {
	if patience <= 0 {
		return &EarlyStopping{Enabled: false, BestLoss: math.Inf(1)}
	}
	return &EarlyStopping{
		Patience: patience,
		BestLoss: math.Inf(1),
		Enabled:  true,
	}
}

// Update records the validation loss of an epoch and reports whether
// training should stop.
func (es *EarlyStopping) Update(epoch int, loss float64) bool {
	if loss < es.BestLoss {
		es.BestLoss = loss
		es.BestEpoch = epoch
		es.RoundsNoImprove = 0
	} else {
		es.RoundsNoImprove++
	}
	return es.ShouldStop()
}

// ShouldStop returns whether training should stop.
func (es *EarlyStopping) ShouldStop() bool {
	if !es.Enabled {
		return false
	}
	return es.RoundsNoImprove >= es.Patience
}
