package autozi

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/YuminosukeSato/scigo-autozi/nn"
	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
	"github.com/YuminosukeSato/scigo-autozi/pkg/log"
)

// Training defaults.
const (
	DefaultTrainSize    = 0.9
	DefaultMaxEpochs    = 300
	DefaultBatchSize    = 64
	DefaultLearningRate = 5e-3
	DefaultWeightDecay  = 1e-2
	DefaultPatience     = 30
)

// TrainConfig controls a training run.
type TrainConfig struct {
	TrainSize     float64 `json:"train_size" yaml:"train_size"`
	MaxEpochs     int     `json:"max_epochs" yaml:"max_epochs"`
	BatchSize     int     `json:"batch_size" yaml:"batch_size"`
	LearningRate  float64 `json:"lr" yaml:"lr"`
	WeightDecay   float64 `json:"weight_decay" yaml:"weight_decay"`
	EarlyStopping bool    `json:"early_stopping" yaml:"early_stopping"`
	Patience      int     `json:"early_stopping_patience" yaml:"early_stopping_patience"`

	// Seed drives the train/validation split, minibatch order, dropout and
	// latent sampling.
	Seed int64 `json:"seed" yaml:"seed"`

	Callbacks []Callback `json:"-" yaml:"-"`
}

// DefaultTrainConfig returns the default training configuration.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		TrainSize:     DefaultTrainSize,
		MaxEpochs:     DefaultMaxEpochs,
		BatchSize:     DefaultBatchSize,
		LearningRate:  DefaultLearningRate,
		WeightDecay:   DefaultWeightDecay,
		EarlyStopping: true,
		Patience:      DefaultPatience,
	}
}

// Validate reports the first invalid setting as a ConfigurationError.
func (c TrainConfig) Validate() error {
	if !(c.TrainSize > 0 && c.TrainSize < 1) {
		return errors.NewConfigurationError("train_size", "must lie in (0, 1)", c.TrainSize)
	}
	if c.MaxEpochs < 1 {
		return errors.NewConfigurationError("max_epochs", "must be at least 1", c.MaxEpochs)
	}
	if c.BatchSize < 1 {
		return errors.NewConfigurationError("batch_size", "must be at least 1", c.BatchSize)
	}
	if !(c.LearningRate > 0) || math.IsInf(c.LearningRate, 0) {
		return errors.NewConfigurationError("lr", "must be positive and finite", c.LearningRate)
	}
	if !(c.WeightDecay >= 0) || math.IsInf(c.WeightDecay, 0) {
		return errors.NewConfigurationError("weight_decay", "must be non-negative and finite", c.WeightDecay)
	}
	if c.EarlyStopping {
		if c.Patience < 1 {
			return errors.NewConfigurationError("early_stopping_patience", "must be at least 1", c.Patience)
		}
		if c.Patience >= c.MaxEpochs {
			return errors.NewConfigurationError("early_stopping_patience", "must be smaller than max_epochs",
				map[string]int{"patience": c.Patience, "max_epochs": c.MaxEpochs})
		}
	}
	return nil
}

// Split is a partition of cell indices into training and validation sets.
type Split struct {
	Train      []int
	Validation []int
}

// NewSplit shuffles 0..n-1 with a seeded Fisher-Yates permutation and puts
// the first ceil(trainSize·n) cells in the training set.
func NewSplit(n int, trainSize float64, seed int64) Split {
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	nTrain := int(math.Ceil(trainSize * float64(n)))
	if nTrain > n {
		nTrain = n
	}
	return Split{
		Train:      append([]int(nil), perm[:nTrain]...),
		Validation: append([]int(nil), perm[nTrain:]...),
	}
}

// TrainResult describes a finished training run.
type TrainResult struct {
	EpochsRun      int
	StoppedEarly   bool
	Interrupted    bool
	BestEpoch      int
	BestValidation float64
	Split          Split
	History        History
	Duration       time.Duration
}

// Trainer fits a model by stochastic variational inference.
type Trainer struct {
	config TrainConfig
	logger log.Logger

	// validate computes the validation loss of an epoch.
	validate func(p *Params, mb *minibatch, nTrain int) float64
}

func validationLoss(p *Params, mb *minibatch, nTrain int) float64 {
	return p.evaluate(mb, noise{}, nTrain).Loss()
}

// NewTrainer validates cfg and creates a Trainer.
func NewTrainer(cfg TrainConfig) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Trainer{config: cfg, validate: validationLoss}, nil
}

// WithLogger replaces the trainer's logger. Without one the trainer logs
// through the model's logger.
func (t *Trainer) WithLogger(l log.Logger) *Trainer {
	t.logger = l
	return t
}

// Config returns the training configuration.
func (t *Trainer) Config() TrainConfig {
	return t.config
}

// Train optimizes m in place. On success m is trained and frozen.
//
// A non-finite training or validation objective aborts with a
// NumericalInstabilityError; the parameters are then restored to their
// values before training and m stays untrained. Cancelling ctx stops
// training between epochs: if at least one epoch finished the run is
// kept and marked Interrupted, otherwise the context error is returned.
func (t *Trainer) Train(ctx context.Context, m *Model) (result *TrainResult, err error) {
	defer errors.Recover(&err, "Trainer.Train")

	if m == nil {
		return nil, errors.NewConfigurationError("model", "model is required", nil)
	}
	if m.state.IsFrozen() {
		return nil, errors.NewModelError("Trainer.Train", "model already trained", errors.ErrModelFrozen)
	}
	if m.data == nil {
		return nil, errors.NewModelError("Trainer.Train", "no training data attached to this model", errors.ErrEmptyData)
	}

	cfg := t.config
	logger := m.Logger()
	if t.logger != nil {
		logger = t.logger.With(log.ModelNameKey, ModelName, log.EstimatorIDKey, m.runID)
	}
	start := time.Now()

	split := NewSplit(m.data.numCells(), cfg.TrainSize, cfg.Seed)
	validation := split.Validation
	if len(validation) == 0 {
		// too few cells for a validation set: monitor the training cells
		validation = split.Train
	}
	m.nTrain = len(split.Train)

	opt, err := nn.Adam().
		LearningRate(cfg.LearningRate).
		WeightDecay(cfg.WeightDecay).
		Done(m.params.optimizerParams())
	if err != nil {
		return nil, err
	}

	logger.Info("Training started",
		log.OperationKey, log.OperationTrain,
		log.TrainSamplesKey, len(split.Train),
		log.ValidationSamplesKey, len(split.Validation),
		log.BatchSizeKey, cfg.BatchSize,
		log.LearningRateKey, cfg.LearningRate,
		log.RegularizationKey, cfg.WeightDecay,
		log.RandomSeedKey, cfg.Seed,
	)

	snapshot := m.params.clone()
	rng := rand.New(rand.NewSource(cfg.Seed + 1))
	es := NewEarlyStopping(0)
	if cfg.EarlyStopping {
		es = NewEarlyStopping(cfg.Patience)
	}
	callbacks := newCallbackList(m, cfg.MaxEpochs, cfg.Callbacks...)
	validationBatch := m.data.minibatch(validation)
	order := append([]int(nil), split.Train...)

	result = &TrainResult{Split: split, BestValidation: math.Inf(1)}
	fail := func(cause error) (*TrainResult, error) {
		m.state.Rollback(func() { m.params.restore(snapshot) })
		m.nTrain = m.data.numCells()
		logger.Error("Training failed", cause, log.EpochKey, result.EpochsRun+1)
		return nil, cause
	}

	for epoch := 1; epoch <= cfg.MaxEpochs; epoch++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if result.EpochsRun == 0 {
				return fail(errors.Wrap(ctxErr, "autozi: training cancelled before the first epoch"))
			}
			result.Interrupted = true
			break
		}
		callbacks.beforeEpoch(epoch)

		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		var lossSum float64
		for it, startIdx := 0, 0; startIdx < len(order); it, startIdx = it+1, startIdx+cfg.BatchSize {
			end := startIdx + cfg.BatchSize
			if end > len(order) {
				end = len(order)
			}
			cells := order[startIdx:end]
			mb := m.data.minibatch(cells)
			nz := drawNoise(rng, len(cells), m.config.LatentDim, m.config.HiddenSize, m.config.DropoutRate)

			var res *ForwardResult
			stepErr := m.state.WithStateMut(func() error {
				var cache *forwardCache
				res, cache = m.params.forward(mb, nz, m.nTrain)
				if err := errors.CheckScalar("elbo_train", res.ELBO, epoch, it); err != nil {
					return err
				}
				m.params.backward(mb, nz, cache, m.nTrain)
				opt.Step()
				if err := errors.CheckNumericalStability("log_alpha", m.params.LogAlpha, epoch, it); err != nil {
					return err
				}
				return errors.CheckNumericalStability("log_beta", m.params.LogBeta, epoch, it)
			})
			if stepErr != nil {
				return fail(stepErr)
			}
			lossSum += res.Loss() * float64(len(cells))
		}
		trainLoss := lossSum / float64(len(order))

		var valLoss float64
		if err := m.state.WithState(func() error {
			valLoss = t.validate(m.params, validationBatch, m.nTrain)
			return nil
		}); err != nil {
			return fail(err)
		}
		if err := errors.CheckScalar("elbo_validation", valLoss, epoch, -1); err != nil {
			return fail(err)
		}

		result.EpochsRun = epoch
		result.History.append(trainLoss, valLoss)
		logger.Debug("Epoch finished",
			log.EpochKey, epoch,
			log.LossKey, trainLoss,
			log.ValidationLossKey, valLoss,
		)

		stop := es.Update(epoch, valLoss)
		if err := callbacks.afterEpoch(trainLoss, valLoss); err != nil {
			return fail(errors.Wrapf(err, "autozi: callback failed at epoch %d", epoch))
		}
		if stop {
			result.StoppedEarly = true
			logger.Info("Early stopping",
				log.EpochKey, epoch,
				log.BestEpochKey, es.BestEpoch,
				log.ValidationLossKey, es.BestLoss,
			)
			break
		}
		if callbacks.shouldStop() {
			result.Interrupted = true
			break
		}
	}

	result.BestEpoch = es.BestEpoch
	result.BestValidation = es.BestLoss
	result.Duration = time.Since(start)

	if cfg.EarlyStopping && !result.StoppedEarly && !result.Interrupted {
		errors.Warn(errors.NewConvergenceWarning(ModelName, result.EpochsRun,
			"early stopping did not trigger before max_epochs"))
	}

	m.state.MarkTrained()
	logger.Info("Training finished",
		log.EpochKey, result.EpochsRun,
		log.BestEpochKey, result.BestEpoch,
		log.ValidationLossKey, result.BestValidation,
		log.DurationMsKey, result.Duration.Milliseconds(),
	)
	return result, nil
}
