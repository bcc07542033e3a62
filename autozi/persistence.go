package autozi

import (
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/scigo-autozi/core/model"
	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
	"github.com/YuminosukeSato/scigo-autozi/pkg/log"
)

// Files written by Save.
const (
	WeightsFile = "model.json"
	SetupFile   = "setup.yaml"
)

const (
	weightsVersion = "1"
	labelFeatures  = "feature_names"
	labelBatches   = "batch_vocabulary"
)

// SetupSummary is the human-readable description written to setup.yaml.
type SetupSummary struct {
	Model       string           `yaml:"model"`
	RunID       string           `yaml:"run_id"`
	Config      ModelConfig      `yaml:"config"`
	NumFeatures int              `yaml:"n_features"`
	Batches     []string         `yaml:"batches,flow"`
	State       model.ModelState `yaml:"state"`
}

// Save writes the model to dir. If dir already holds a saved model it is
// replaced only when overwrite is set; otherwise an error wrapping
// fs.ErrExist is returned.
func Save(m *Model, dir string, overwrite bool) error {
	weightsPath := filepath.Join(dir, WeightsFile)
	if !overwrite {
		if _, err := os.Stat(weightsPath); err == nil {
			return errors.Wrapf(fs.ErrExist, "autozi: %s already exists; pass overwrite to replace it", weightsPath)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "autozi: create %s", dir)
	}

	w, err := m.ExportWeights()
	if err != nil {
		return err
	}
	data, err := w.ToJSON()
	if err != nil {
		return errors.Wrap(err, "autozi: encode weights")
	}
	if err := os.WriteFile(weightsPath, data, 0o644); err != nil {
		return errors.Wrapf(err, "autozi: write %s", weightsPath)
	}

	summary := SetupSummary{
		Model:       ModelName,
		RunID:       m.runID,
		Config:      m.config,
		NumFeatures: m.NumFeatures(),
		Batches:     m.batches,
		State:       w.State,
	}
	setup, err := yaml.Marshal(summary)
	if err != nil {
		return errors.Wrap(err, "autozi: encode setup")
	}
	setupPath := filepath.Join(dir, SetupFile)
	if err := os.WriteFile(setupPath, setup, 0o644); err != nil {
		return errors.Wrapf(err, "autozi: write %s", setupPath)
	}

	m.logger.Info("Model saved",
		log.OperationKey, log.OperationSave,
		log.PathKey, dir,
	)
	return nil
}

// Save implements model.Persistable.
func (m *Model) Save(dir string, overwrite bool) error {
	return Save(m, dir, overwrite)
}

// Load restores a model written by Save. The loaded model carries no
// training data; it can be used for GetLatent and GetZIPosterior.
func Load(dir string, opts ...Option) (*Model, error) {
	weightsPath := filepath.Join(dir, WeightsFile)
	data, err := os.ReadFile(weightsPath)
	if err != nil {
		return nil, errors.Wrapf(err, "autozi: read %s", weightsPath)
	}
	var w model.ModelWeights
	if err := w.FromJSON(data); err != nil {
		return nil, errors.Wrapf(err, "autozi: decode %s", weightsPath)
	}
	if err := w.Validate(); err != nil {
		return nil, errors.NewModelError("Load", "invalid weights", err)
	}
	if w.ModelType != ModelName {
		return nil, errors.NewModelError("Load", "unexpected model type", errors.Newf("%q", w.ModelType))
	}

	cfg := DefaultModelConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.LatentDim, err = hyperInt(w.Hyperparameters, "latent_dim"); err != nil {
		return nil, err
	}
	if cfg.HiddenSize, err = hyperInt(w.Hyperparameters, "hidden_size"); err != nil {
		return nil, err
	}
	if cfg.DropoutRate, err = hyperFloat(w.Hyperparameters, "dropout_rate"); err != nil {
		return nil, err
	}
	seed, err := hyperInt(w.Hyperparameters, "seed")
	if err != nil {
		return nil, err
	}
	cfg.Seed = int64(seed)
	nTrain, err := hyperInt(w.Hyperparameters, "n_train")
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	features, err := w.Label(labelFeatures)
	if err != nil {
		return nil, errors.NewModelError("Load", "missing feature names", err)
	}
	batches, err := w.Label(labelBatches)
	if err != nil {
		return nil, errors.NewModelError("Load", "missing batch vocabulary", err)
	}
	alpha0, err := w.Vector(vecAlpha0)
	if err != nil {
		return nil, errors.NewModelError("Load", "missing prior", err)
	}
	beta0, err := w.Vector(vecBeta0)
	if err != nil {
		return nil, errors.NewModelError("Load", "missing prior", err)
	}
	cfg.PriorAlpha, cfg.PriorBeta = alpha0, beta0
	if alpha0, err = expandPrior("prior_alpha", alpha0, len(features)); err != nil {
		return nil, err
	}
	if beta0, err = expandPrior("prior_beta", beta0, len(features)); err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = log.GetLoggerWithName("autozi")
	}
	m := &Model{
		config:       cfg,
		state:        model.NewStateManager(),
		logger:       logger.With(log.ModelNameKey, ModelName, log.EstimatorIDKey, w.RunID),
		runID:        w.RunID,
		params:       newParams(len(features), len(batches), cfg, alpha0, beta0),
		featureNames: features,
		batches:      batches,
		nTrain:       nTrain,
	}
	if err := m.ImportWeights(&w); err != nil {
		return nil, err
	}

	m.logger.Info("Model loaded",
		log.OperationKey, log.OperationLoad,
		log.PathKey, dir,
		log.FeaturesKey, len(features),
		log.BatchesKey, len(batches),
	)
	return m, nil
}

func hyperFloat(hp map[string]interface{}, key string) (float64, error) {
	v, ok := hp[key]
	if !ok {
		return 0, errors.NewModelError("Load", "missing hyperparameter", errors.Newf("%s", key))
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	default:
		return 0, errors.NewModelError("Load", "hyperparameter has unexpected type", errors.Newf("%s: %T", key, v))
	}
}

func hyperInt(hp map[string]interface{}, key string) (int, error) {
	f, err := hyperFloat(hp, key)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
