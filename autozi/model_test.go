package autozi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-autozi/anndata"
	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
	"github.com/YuminosukeSato/scigo-autozi/pkg/log"
)

func TestSetup(t *testing.T) {
	s := makeSynthetic(t, 20, 6, 2, 1, 1)
	m := smallModel(t, s)

	assert.Equal(t, 6, m.NumFeatures())
	assert.Equal(t, []string{synthBatchA, synthBatchB}, m.Batches())
	assert.Equal(t, s.counts.FeatureNames(), m.FeatureNames())
	assert.False(t, m.IsTrained())
	assert.Equal(t, 0, m.Steps())
	assert.NotEmpty(t, m.RunID())
	assert.Contains(t, m.String(), "AutoZI(features=6, batches=2")

	// Beta shapes start at the prior
	for g := 0; g < 6; g++ {
		assert.InDelta(t, DefaultPriorAlpha, m.params.Alpha()[g], 1e-12)
		assert.InDelta(t, DefaultPriorBeta, m.params.Beta()[g], 1e-12)
	}
}

func TestSetup_Returns(t *testing.T) {
	s := makeSynthetic(t, 20, 6, 2, 1, 1)
	done := make(chan error, 1)
	go func() {
		_, err := Setup(s.counts, s.batch, WithLatentDim(2), WithHiddenSize(4), WithLogger(log.NewTestLogger(log.LevelWarn)))
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Setup did not return")
	}
}

func TestSetup_Validation(t *testing.T) {
	s := makeSynthetic(t, 10, 4, 1, 1, 1)

	tests := []struct {
		name  string
		setup func() (*Model, error)
		param string
	}{
		{
			name: "labels one shorter than cells",
			setup: func() (*Model, error) {
				labels := s.batch.Labels()
				return SetupMatrix(s.counts.Matrix(), labels[:len(labels)-1])
			},
			param: "batch",
		},
		{
			name: "negative count",
			setup: func() (*Model, error) {
				bad := mat.DenseCopyOf(s.counts.Matrix())
				bad.Set(3, 2, -1)
				return SetupMatrix(bad, s.batch.Labels())
			},
			param: "counts",
		},
		{
			name:  "zero latent dimension",
			setup: func() (*Model, error) { return Setup(s.counts, s.batch, WithLatentDim(0)) },
			param: "latent_dim",
		},
		{
			name:  "dropout rate of one",
			setup: func() (*Model, error) { return Setup(s.counts, s.batch, WithDropoutRate(1)) },
			param: "dropout_rate",
		},
		{
			name: "prior length mismatch",
			setup: func() (*Model, error) {
				return Setup(s.counts, s.batch, WithFeaturePriors([]float64{1, 1}, []float64{1, 1}))
			},
			param: "prior_alpha",
		},
		{
			name:  "non-positive prior",
			setup: func() (*Model, error) { return Setup(s.counts, s.batch, WithPrior(0.5, 0)) },
			param: "prior_beta",
		},
		{
			name:  "missing batch",
			setup: func() (*Model, error) { return Setup(s.counts, nil) },
			param: "batch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.setup()
			require.Error(t, err)
			assert.Nil(t, m)
			var cfgErr *errors.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.param, cfgErr.ParamName)
		})
	}
}

func TestSetupAnnData(t *testing.T) {
	s := makeSynthetic(t, 12, 5, 1, 1, 2)
	adata, err := anndata.NewAnnotatedData(s.counts, s.batch)
	require.NoError(t, err)

	m, err := SetupAnnData(adata, WithLatentDim(2), WithHiddenSize(4))
	require.NoError(t, err)
	assert.Equal(t, 5, m.NumFeatures())

	_, err = SetupAnnData(nil)
	assert.Error(t, err)
}

func TestModel_NotTrained(t *testing.T) {
	s := makeSynthetic(t, 10, 4, 1, 1, 1)
	m := smallModel(t, s)

	_, _, err := m.GetZIPosterior()
	var notTrained *errors.NotTrainedError
	require.True(t, errors.As(err, &notTrained))
	assert.Equal(t, "GetZIPosterior", notTrained.Method)

	_, err = m.GetLatent(s.counts, s.batch)
	assert.True(t, errors.As(err, &notTrained))
}

func TestModel_Evaluate(t *testing.T) {
	s := makeSynthetic(t, 20, 6, 2, 1, 1)
	m := smallModel(t, s)

	all, err := m.Evaluate(nil)
	require.NoError(t, err)
	again, err := m.Evaluate(nil)
	require.NoError(t, err)
	// mean pathway, no noise
	assert.Equal(t, all.ELBO, again.ELBO)
	assert.InDelta(t, all.Reconstruction-all.KLLatent-all.KLBeta/20, all.ELBO, 1e-9)
	assert.Equal(t, -all.ELBO, all.Loss())
	// the posterior starts at the prior
	assert.InDelta(t, 0, all.KLBeta, 1e-12)

	_, err = m.Evaluate([]int{})
	assert.Error(t, err)
	_, err = m.Evaluate([]int{20})
	var cfgErr *errors.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestModel_ExportImportWeights(t *testing.T) {
	s := makeSynthetic(t, 10, 4, 1, 1, 1)
	src := smallModel(t, s, WithSeed(1))
	dst := smallModel(t, s, WithSeed(2))

	w, err := src.ExportWeights()
	require.NoError(t, err)
	assert.Equal(t, ModelName, w.ModelType)
	assert.Equal(t, src.RunID(), w.RunID)
	names, err := w.Label(labelFeatures)
	require.NoError(t, err)
	assert.Equal(t, src.FeatureNames(), names)

	require.NoError(t, dst.ImportWeights(w))
	assert.Equal(t, src.params.LogAlpha, dst.params.LogAlpha)
	assert.True(t, mat.Equal(src.params.EncHidden.W, dst.params.EncHidden.W))
	// importing is not a training step
	assert.Equal(t, 0, dst.Steps())

	w.ModelType = "Other"
	assert.Error(t, dst.ImportWeights(w))
}

func TestModel_ImportWeights_ShapeMismatch(t *testing.T) {
	s := makeSynthetic(t, 10, 4, 1, 1, 1)
	src := smallModel(t, s, WithHiddenSize(6))
	dst := smallModel(t, s, WithHiddenSize(8))

	w, err := src.ExportWeights()
	require.NoError(t, err)
	err = dst.ImportWeights(w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shape mismatch")
}
