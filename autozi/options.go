package autozi

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
	"github.com/YuminosukeSato/scigo-autozi/pkg/log"
)

// Model defaults.
const (
	DefaultLatentDim   = 30
	DefaultHiddenSize  = 128
	DefaultDropoutRate = 0.4
	DefaultPriorAlpha  = 0.5
	DefaultPriorBeta   = 0.5

	// minDropoutProb bounds the per-entry excess-zero probability away from 0.
	minDropoutProb = 0.01

	// varianceFloor is added to the encoder variance.
	varianceFloor = 1e-4
)

// ModelConfig holds the architecture and prior settings fixed at setup.
type ModelConfig struct {
	LatentDim   int     `json:"latent_dim" yaml:"latent_dim"`
	HiddenSize  int     `json:"hidden_size" yaml:"hidden_size"`
	DropoutRate float64 `json:"dropout_rate" yaml:"dropout_rate"`
	Seed        int64   `json:"seed" yaml:"seed"`

	// PriorAlpha and PriorBeta hold one value per feature, or a single value
	// broadcast to all features.
	PriorAlpha []float64 `json:"prior_alpha" yaml:"prior_alpha,flow"`
	PriorBeta  []float64 `json:"prior_beta" yaml:"prior_beta,flow"`

	logger log.Logger
}

// DefaultModelConfig returns the configuration used when no options are given.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		LatentDim:   DefaultLatentDim,
		HiddenSize:  DefaultHiddenSize,
		DropoutRate: DefaultDropoutRate,
		PriorAlpha:  []float64{DefaultPriorAlpha},
		PriorBeta:   []float64{DefaultPriorBeta},
	}
}

// Option configures a Model at setup.
type Option func(*ModelConfig)

// WithLatentDim sets the latent dimensionality K.
func WithLatentDim(k int) Option {
	return func(c *ModelConfig) { c.LatentDim = k }
}

// WithHiddenSize sets the width of the encoder and decoder hidden layers.
func WithHiddenSize(h int) Option {
	return func(c *ModelConfig) { c.HiddenSize = h }
}

// WithDropoutRate sets the encoder dropout rate.
func WithDropoutRate(rate float64) Option {
	return func(c *ModelConfig) { c.DropoutRate = rate }
}

// WithPrior sets a Beta(alpha, beta) prior shared by all features.
func WithPrior(alpha, beta float64) Option {
	return func(c *ModelConfig) {
		c.PriorAlpha = []float64{alpha}
		c.PriorBeta = []float64{beta}
	}
}

// WithFeaturePriors sets per-feature Beta prior shapes.
func WithFeaturePriors(alpha, beta []float64) Option {
	return func(c *ModelConfig) {
		c.PriorAlpha = append([]float64(nil), alpha...)
		c.PriorBeta = append([]float64(nil), beta...)
	}
}

// WithSeed sets the seed of the weight initialization.
func WithSeed(seed int64) Option {
	return func(c *ModelConfig) { c.Seed = seed }
}

// WithLogger overrides the default logger.
func WithLogger(l log.Logger) Option {
	return func(c *ModelConfig) { c.logger = l }
}

func (c ModelConfig) validate() error {
	if c.LatentDim < 1 {
		return errors.NewConfigurationError("latent_dim", "must be at least 1", c.LatentDim)
	}
	if c.HiddenSize < 1 {
		return errors.NewConfigurationError("hidden_size", "must be at least 1", c.HiddenSize)
	}
	if c.DropoutRate < 0 || c.DropoutRate >= 1 || math.IsNaN(c.DropoutRate) {
		return errors.NewConfigurationError("dropout_rate", "must lie in [0, 1)", c.DropoutRate)
	}
	return nil
}

// expandPrior broadcasts a scalar prior to nFeatures values and checks
// positivity.
func expandPrior(name string, values []float64, nFeatures int) ([]float64, error) {
	var out []float64
	switch len(values) {
	case 1:
		out = make([]float64, nFeatures)
		for i := range out {
			out[i] = values[0]
		}
	case nFeatures:
		out = append([]float64(nil), values...)
	default:
		return nil, errors.NewConfigurationError(name,
			fmt.Sprintf("expected 1 or %d values", nFeatures), len(values))
	}
	for g, v := range out {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, errors.NewConfigurationError(name,
				fmt.Sprintf("prior shape for feature %d must be positive and finite", g), v)
		}
	}
	return out, nil
}
