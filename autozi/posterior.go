package autozi

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-autozi/anndata"
	"github.com/YuminosukeSato/scigo-autozi/core/parallel"
	"github.com/YuminosukeSato/scigo-autozi/distributions"
	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
	"github.com/YuminosukeSato/scigo-autozi/pkg/log"
)

// LatentEmbedding holds one latent mean vector per cell.
type LatentEmbedding struct {
	// Values has shape (cells, latent_dim).
	Values  *mat.Dense
	CellIDs []string
}

// Dims returns the number of cells and latent dimensions.
func (l *LatentEmbedding) Dims() (cells, latentDim int) {
	return l.Values.Dims()
}

// latentChunk is the number of cells encoded per worker call.
const latentChunk = 256

// GetLatent encodes every cell with the encoder mean pathway (no sampling,
// no dropout). Batches must belong to the training vocabulary and the feature
// count must match the model.
func GetLatent(m *Model, counts *anndata.CountMatrix, batch *anndata.BatchLabel) (*LatentEmbedding, error) {
	if err := m.state.RequireTrained(ModelName, "GetLatent"); err != nil {
		return nil, err
	}
	if counts == nil || batch == nil {
		return nil, errors.NewConfigurationError("counts", "count matrix and batch labels are required", nil)
	}
	in, err := m.prepareInputs(counts, batch)
	if err != nil {
		return nil, err
	}

	n := in.numCells()
	out := mat.NewDense(n, m.config.LatentDim, nil)
	err = m.state.WithState(func() error {
		chunks := (n + latentChunk - 1) / latentChunk
		parallel.Parallelize(chunks, func(start, end int) {
			for ch := start; ch < end; ch++ {
				lo := ch * latentChunk
				hi := lo + latentChunk
				if hi > n {
					hi = n
				}
				logX := in.logX.Slice(lo, hi, 0, m.NumFeatures()).(*mat.Dense)
				onehot := in.onehot.Slice(lo, hi, 0, len(m.batches)).(*mat.Dense)
				mean := m.params.encodeMean(logX, onehot)
				out.Slice(lo, hi, 0, m.config.LatentDim).(*mat.Dense).Copy(mean)
			}
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("Latent representation computed",
		log.OperationKey, log.OperationLatent,
		log.SamplesKey, n,
		log.LatentDimKey, m.config.LatentDim,
	)
	return &LatentEmbedding{Values: out, CellIDs: counts.CellIDs()}, nil
}

// GetZIPosterior returns copies of the posterior Beta shapes (alpha, beta)
// of every feature.
func GetZIPosterior(m *Model) (alpha, beta []float64, err error) {
	if err := m.state.RequireTrained(ModelName, "GetZIPosterior"); err != nil {
		return nil, nil, err
	}
	err = m.state.WithState(func() error {
		alpha = m.params.Alpha()
		beta = m.params.Beta()
		return nil
	})
	return alpha, beta, err
}

// PosteriorMeans returns E[δ_g] = α_g / (α_g + β_g) for every feature.
func PosteriorMeans(alpha, beta []float64) []float64 {
	out := make([]float64, len(alpha))
	for g := range alpha {
		out[g] = distributions.BetaMean(alpha[g], beta[g])
	}
	return out
}

// GetLatent is a convenience wrapper around the package-level GetLatent.
func (m *Model) GetLatent(counts *anndata.CountMatrix, batch *anndata.BatchLabel) (*LatentEmbedding, error) {
	return GetLatent(m, counts, batch)
}

// GetZIPosterior is a convenience wrapper around the package-level
// GetZIPosterior.
func (m *Model) GetZIPosterior() (alpha, beta []float64, err error) {
	return GetZIPosterior(m)
}
