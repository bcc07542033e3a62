package autozi

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-autozi/anndata"
	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
	"github.com/YuminosukeSato/scigo-autozi/pkg/log"
)

// Synthetic layout: the first nZI features have a high rate and extra zeros,
// the next block is Poisson with a moderate rate, and the last nLow features
// are Poisson with a rate far below one.
const (
	synthZIRate       = 8.0
	synthZIZeroProb   = 0.6
	synthLowRate      = 0.2
	synthBatchEffect  = 1.2
	synthBatchA       = "batch_a"
	synthBatchB       = "batch_b"
	synthDefaultGenes = 50
)

type synthetic struct {
	counts   *anndata.CountMatrix
	batch    *anndata.BatchLabel
	ziGenes  []int
	lowGenes []int
}

func poisson(rng *rand.Rand, lambda float64) float64 {
	limit := math.Exp(-lambda)
	k, p := 0, 1.0
	for {
		p *= rng.Float64()
		if p <= limit {
			return float64(k)
		}
		k++
	}
}

func makeSynthetic(t testing.TB, nCells, nFeatures, nZI, nLow int, seed int64) synthetic {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))

	rates := make([]float64, nFeatures)
	var s synthetic
	for g := range rates {
		switch {
		case g < nZI:
			rates[g] = synthZIRate
			s.ziGenes = append(s.ziGenes, g)
		case g >= nFeatures-nLow:
			rates[g] = synthLowRate
			s.lowGenes = append(s.lowGenes, g)
		default:
			rates[g] = 3 + 4*rng.Float64()
		}
	}

	data := mat.NewDense(nCells, nFeatures, nil)
	labels := make([]string, nCells)
	for i := 0; i < nCells; i++ {
		effect := 1.0
		labels[i] = synthBatchA
		if i%2 == 1 {
			effect = synthBatchEffect
			labels[i] = synthBatchB
		}
		for g := 0; g < nFeatures; g++ {
			if g < nZI && rng.Float64() < synthZIZeroProb {
				continue
			}
			data.Set(i, g, poisson(rng, rates[g]*effect))
		}
	}

	features := make([]string, nFeatures)
	for g := range features {
		features[g] = fmt.Sprintf("gene_%02d", g)
	}
	counts, err := anndata.NewCountMatrix(data, nil, features)
	require.NoError(t, err)
	batch, err := anndata.NewBatchLabel(labels)
	require.NoError(t, err)
	s.counts = counts
	s.batch = batch
	return s
}

// smallModel sets up a cheap model for behavioural tests.
func smallModel(t testing.TB, s synthetic, opts ...Option) *Model {
	t.Helper()
	logger := log.NewTestLogger(log.LevelWarn)
	base := []Option{
		WithLatentDim(3),
		WithHiddenSize(8),
		WithDropoutRate(0.1),
		WithSeed(7),
		WithLogger(logger),
	}
	m, err := Setup(s.counts, s.batch, append(base, opts...)...)
	require.NoError(t, err)
	return m
}

func quickTrainConfig(epochs int) TrainConfig {
	cfg := DefaultTrainConfig()
	cfg.MaxEpochs = epochs
	cfg.BatchSize = 16
	cfg.EarlyStopping = false
	cfg.Seed = 3
	return cfg
}

func newQuietTrainer(t testing.TB, cfg TrainConfig) *Trainer {
	t.Helper()
	tr, err := NewTrainer(cfg)
	require.NoError(t, err)
	logger := log.NewTestLogger(log.LevelWarn)
	return tr.WithLogger(logger)
}

// captureWarnings routes library warnings into a slice for the duration of
// the test.
func captureWarnings(t testing.TB) *[]error {
	t.Helper()
	var warnings []error
	errors.SetZerologWarnFunc(func(w error) { warnings = append(warnings, w) })
	t.Cleanup(func() {
		errors.SetZerologWarnFunc(func(w error) {
			log.GetLoggerWithName("warnings").Warn(w.Error(), "warning", w)
		})
	})
	return &warnings
}
