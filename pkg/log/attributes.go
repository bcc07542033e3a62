// Package log defines standard attribute keys for modeling runs.
//
// The keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples") so that training logs can be filtered consistently.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of model. Example: "AutoZI".
	ModelNameKey = "model.name"

	// EstimatorIDKey identifies a specific model instance (run UUID).
	EstimatorIDKey = "estimator.id"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which component or package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the model lifecycle.
	PhaseKey = "ml.phase"

	// LatentDimKey records the latent dimensionality K.
	LatentDimKey = "model.latent_dim"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of cells.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (genes or isoforms).
	FeaturesKey = "data.features"

	// BatchesKey indicates the number of distinct batch labels.
	BatchesKey = "data.batches"

	// TrainSamplesKey and ValidationSamplesKey record the split sizes.
	TrainSamplesKey      = "data.train_samples"
	ValidationSamplesKey = "data.validation_samples"

	// BatchSizeKey indicates the minibatch size.
	BatchSizeKey = "data.batch_size"

	// PathKey records a file or directory read or written.
	PathKey = "data.path"
)

// Performance and Training Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// LossKey records the training loss (negative ELBO per cell).
	LossKey = "metrics.loss"

	// ValidationLossKey records the validation loss (negative ELBO per cell).
	ValidationLossKey = "metrics.validation_loss"

	// EpochKey records the current epoch number during training.
	EpochKey = "training.epoch"

	// BestEpochKey records the epoch with the best validation loss.
	BestEpochKey = "training.best_epoch"

	// IterationKey records the minibatch index inside an epoch.
	IterationKey = "training.iteration"
)

// Zero-inflation Results
const (
	// ZIFractionKey records the fraction of features called zero-inflated.
	ZIFractionKey = "zi.fraction"

	// ExpressedFractionKey records the fraction of features with mean count > 1.
	ExpressedFractionKey = "zi.expressed_fraction"

	// ZIExpressedFractionKey records the zero-inflated fraction among expressed features.
	ZIExpressedFractionKey = "zi.expressed_zi_fraction"
)

// Error and Warning Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// SuggestionKey provides helpful suggestions for resolving issues.
	SuggestionKey = "error.suggestion"
)

// Hyperparameters and Configuration
const (
	// LearningRateKey records the optimizer learning rate.
	LearningRateKey = "hyperparams.learning_rate"

	// RegularizationKey records the weight decay.
	RegularizationKey = "hyperparams.regularization"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Standard attribute values.
const (
	OperationSetup    = "setup"
	OperationTrain    = "train"
	OperationLatent   = "get_latent"
	OperationClassify = "classify"
	OperationSave     = "save"
	OperationLoad     = "load"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseInference  = "inference"

	ErrorNotTrained   = "NOT_TRAINED"
	ErrorInvalidInput = "INVALID_INPUT"
	ErrorNumerical    = "NUMERICAL_INSTABILITY"
)
