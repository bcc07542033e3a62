// Package autozi implements a zero-inflation-aware variational model for
// single-cell count data.
//
// A cell's counts are encoded, together with its batch, into a Gaussian
// latent variable. The decoder maps a latent sample back to per-feature
// negative binomial rates and excess-zero probabilities. Each feature g has a
// mixing weight δ_g ~ Beta(α_g, β_g), shared across cells, that selects the
// plain negative binomial (weight δ_g) over its zero-inflated counterpart
// (weight 1-δ_g). A feature is called zero-inflated when the posterior puts
// more than half of its mass on δ_g ≤ 0.5.
//
// Typical use:
//
//	m, err := autozi.Setup(counts, batch, autozi.WithLatentDim(30))
//	trainer, err := autozi.NewTrainer(autozi.DefaultTrainConfig())
//	result, err := trainer.Train(ctx, m)
//	latent, err := autozi.GetLatent(m, counts, batch)
//	alpha, beta, err := autozi.GetZIPosterior(m)
package autozi

import (
	"fmt"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-autozi/anndata"
	"github.com/YuminosukeSato/scigo-autozi/core/model"
	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
	"github.com/YuminosukeSato/scigo-autozi/pkg/log"
)

// ModelName identifies the model in logs, errors and saved weights.
const ModelName = "AutoZI"

// Model is the zero-inflated count model. All learnable state lives in
// params and is mutated only by a Trainer; once training finishes the model
// is frozen.
type Model struct {
	config ModelConfig
	state  *model.StateManager
	logger log.Logger
	runID  string

	params *Params

	featureNames []string
	batches      []string

	// training inputs, read-only
	data *inputs

	// nTrain scales the Beta KL term; it is the training split size once a
	// Trainer has run and the number of cells before that.
	nTrain int
}

// Setup validates the data and configuration and initializes a model.
// Any validation failure is a ConfigurationError.
func Setup(counts *anndata.CountMatrix, batch *anndata.BatchLabel, opts ...Option) (*Model, error) {
	cfg := DefaultModelConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if counts == nil {
		return nil, errors.NewConfigurationError("counts", "count matrix is required", nil)
	}
	if batch == nil {
		return nil, errors.NewConfigurationError("batch", "batch labels are required", nil)
	}
	nCells, nFeatures := counts.Dims()
	if batch.Len() != nCells {
		return nil, errors.NewConfigurationError("batch",
			"number of batch labels must equal the number of cells",
			map[string]int{"labels": batch.Len(), "cells": nCells})
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	alpha0, err := expandPrior("prior_alpha", cfg.PriorAlpha, nFeatures)
	if err != nil {
		return nil, err
	}
	beta0, err := expandPrior("prior_beta", cfg.PriorBeta, nFeatures)
	if err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = log.GetLoggerWithName("autozi")
	}
	runID := uuid.NewString()
	logger = logger.With(log.ModelNameKey, ModelName, log.EstimatorIDKey, runID)

	vocab := batch.Categories()
	m := &Model{
		config:       cfg,
		state:        model.NewStateManager(),
		logger:       logger,
		runID:        runID,
		params:       newParams(nFeatures, len(vocab), cfg, alpha0, beta0),
		featureNames: counts.FeatureNames(),
		batches:      vocab,
		nTrain:       nCells,
	}
	m.data, err = m.prepareInputs(counts, batch)
	if err != nil {
		return nil, err
	}
	m.state.SetDimensions(nFeatures, nCells)

	logger.Info("Model setup complete",
		log.OperationKey, log.OperationSetup,
		log.SamplesKey, nCells,
		log.FeaturesKey, nFeatures,
		log.BatchesKey, len(vocab),
		log.LatentDimKey, cfg.LatentDim,
		log.RandomSeedKey, cfg.Seed,
	)
	return m, nil
}

// SetupMatrix builds the count matrix and batch labels from raw inputs and
// calls Setup. Negative counts and a label count different from the number
// of rows are ConfigurationErrors.
func SetupMatrix(counts mat.Matrix, labels []string, opts ...Option) (*Model, error) {
	c, err := anndata.NewCountMatrix(counts, nil, nil)
	if err != nil {
		return nil, err
	}
	b, err := anndata.NewBatchLabel(labels)
	if err != nil {
		return nil, err
	}
	return Setup(c, b, opts...)
}

// SetupAnnData sets up a model on an annotated dataset.
func SetupAnnData(a *anndata.AnnotatedData, opts ...Option) (*Model, error) {
	if a == nil {
		return nil, errors.NewConfigurationError("adata", "annotated data is required", nil)
	}
	return Setup(a.Counts, a.Batch, opts...)
}

// Evaluate computes the objective on the given training cells with the
// encoder mean pathway and no dropout. A nil cells slice evaluates all cells.
func (m *Model) Evaluate(cells []int) (*ForwardResult, error) {
	if m.data == nil {
		return nil, errors.NewModelError("Evaluate", "no training data attached to this model", errors.ErrEmptyData)
	}
	if cells == nil {
		cells = make([]int, m.data.numCells())
		for i := range cells {
			cells[i] = i
		}
	}
	if len(cells) == 0 {
		return nil, errors.NewModelError("Evaluate", "no cells to evaluate", errors.ErrEmptyData)
	}
	for _, i := range cells {
		if i < 0 || i >= m.data.numCells() {
			return nil, errors.NewConfigurationError("cells", "cell index out of range", i)
		}
	}
	var res *ForwardResult
	err := m.state.WithState(func() error {
		res = m.params.evaluate(m.data.minibatch(cells), noise{}, m.nTrain)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RunID identifies this model instance in logs and saved artifacts.
func (m *Model) RunID() string { return m.runID }

// Logger returns the logger tagged with this model's run ID.
func (m *Model) Logger() log.Logger { return m.logger }

// Config returns the setup configuration.
func (m *Model) Config() ModelConfig { return m.config }

// NumFeatures returns G.
func (m *Model) NumFeatures() int { return len(m.featureNames) }

// FeatureNames returns a copy of the feature names seen at setup.
func (m *Model) FeatureNames() []string { return append([]string(nil), m.featureNames...) }

// Batches returns a copy of the batch vocabulary.
func (m *Model) Batches() []string { return append([]string(nil), m.batches...) }

// IsTrained reports whether training completed at least one update.
func (m *Model) IsTrained() bool { return m.state.IsTrained() }

// Steps returns the number of optimizer updates applied.
func (m *Model) Steps() int { return m.state.Steps() }

// ExportWeights returns a snapshot of the parameters.
func (m *Model) ExportWeights() (*model.ModelWeights, error) {
	w := model.NewModelWeights(ModelName, weightsVersion)
	err := m.state.WithState(func() error {
		m.params.export(w)
		return nil
	})
	if err != nil {
		return nil, err
	}
	w.RunID = m.runID
	w.State = m.state.GetState()
	w.SetLabels(labelFeatures, m.featureNames)
	w.SetLabels(labelBatches, m.batches)
	w.Hyperparameters["latent_dim"] = m.config.LatentDim
	w.Hyperparameters["hidden_size"] = m.config.HiddenSize
	w.Hyperparameters["dropout_rate"] = m.config.DropoutRate
	w.Hyperparameters["seed"] = m.config.Seed
	w.Hyperparameters["n_train"] = m.nTrain
	return w, nil
}

// ImportWeights replaces the parameters and training state of a model that
// is not frozen.
func (m *Model) ImportWeights(w *model.ModelWeights) error {
	if err := w.Validate(); err != nil {
		return errors.NewModelError("ImportWeights", "invalid weights", err)
	}
	if w.ModelType != ModelName {
		return errors.NewModelError("ImportWeights", "unexpected model type", errors.Newf("%q", w.ModelType))
	}
	return m.state.Restore(w.State, func() error {
		return m.params.importInto(w)
	})
}

var (
	_ model.WeightExporter = (*Model)(nil)
	_ model.Persistable    = (*Model)(nil)
)

func errShape(name string, wantR, wantC, gotR, gotC int) error {
	return errors.NewModelError("ImportWeights", "shape mismatch",
		errors.Newf("%s: expected %dx%d, got %dx%d", name, wantR, wantC, gotR, gotC))
}

func (m *Model) String() string {
	return fmt.Sprintf("%s(features=%d, batches=%d, latent_dim=%d, hidden=%d, dropout=%.2f, trained=%t)",
		ModelName, m.NumFeatures(), len(m.batches), m.config.LatentDim, m.config.HiddenSize,
		m.config.DropoutRate, m.IsTrained())
}
