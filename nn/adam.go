package nn

import (
	"math"

	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
)

const (
	// AdamDefaultLearningRate is used when LearningRate is not set.
	AdamDefaultLearningRate = 1e-3

	// AdamDefaultEpsilon is added to the second moment root.
	AdamDefaultEpsilon = 1e-8
)

// Param is a trainable parameter registered with an optimizer. Value and Grad
// alias the backing storage of the owning layer, so updates are visible
// without copying.
type Param struct {
	Name  string
	Value []float64
	Grad  []float64

	// Decay enables decoupled weight decay for this parameter.
	Decay bool
}

// AdamConfig builds an Adam optimizer. With a positive weight decay it
// behaves as AdamW for parameters that opt in via Param.Decay.
type AdamConfig struct {
	learningRate float64
	beta1, beta2 float64
	epsilon      float64
	weightDecay  float64
}

// Adam returns an AdamConfig with the usual defaults.
func Adam() *AdamConfig {
	return &AdamConfig{
		learningRate: AdamDefaultLearningRate,
		beta1:        0.9,
		beta2:        0.999,
		epsilon:      AdamDefaultEpsilon,
	}
}

// LearningRate sets the step size.
func (c *AdamConfig) LearningRate(value float64) *AdamConfig {
	c.learningRate = value
	return c
}

// Betas sets the exponential decay of the first and second moments.
func (c *AdamConfig) Betas(beta1, beta2 float64) *AdamConfig {
	c.beta1, c.beta2 = beta1, beta2
	return c
}

// Epsilon sets the denominator offset.
func (c *AdamConfig) Epsilon(epsilon float64) *AdamConfig {
	c.epsilon = epsilon
	return c
}

// WeightDecay sets the decoupled weight decay applied to parameters with
// Decay set.
func (c *AdamConfig) WeightDecay(weightDecay float64) *AdamConfig {
	c.weightDecay = weightDecay
	return c
}

// Done validates the configuration and creates the optimizer for params.
func (c *AdamConfig) Done(params []*Param) (*AdamOptimizer, error) {
	if c.learningRate <= 0 || math.IsNaN(c.learningRate) || math.IsInf(c.learningRate, 0) {
		return nil, errors.NewConfigurationError("learning_rate", "must be positive and finite", c.learningRate)
	}
	if c.weightDecay < 0 || math.IsNaN(c.weightDecay) {
		return nil, errors.NewConfigurationError("weight_decay", "must be non-negative", c.weightDecay)
	}
	if c.beta1 < 0 || c.beta1 >= 1 || c.beta2 < 0 || c.beta2 >= 1 {
		return nil, errors.NewConfigurationError("adam_betas", "must lie in [0, 1)", [2]float64{c.beta1, c.beta2})
	}
	states := make([]adamState, len(params))
	for i, p := range params {
		if len(p.Value) != len(p.Grad) {
			return nil, errors.Newf("nn: param %s has %d values but %d gradients", p.Name, len(p.Value), len(p.Grad))
		}
		states[i] = adamState{
			m1: make([]float64, len(p.Value)),
			m2: make([]float64, len(p.Value)),
		}
	}
	return &AdamOptimizer{config: *c, params: params, states: states}, nil
}

type adamState struct {
	m1, m2 []float64
}

// AdamOptimizer applies Adam(W) updates to a fixed set of parameters.
type AdamOptimizer struct {
	config AdamConfig
	params []*Param
	states []adamState
	step   int
}

// Step applies one update using the gradients currently stored in each
// Param. Gradients are treated as gradients of a loss to minimize.
func (o *AdamOptimizer) Step() {
	o.step++
	c := o.config
	debias1 := 1 / (1 - math.Pow(c.beta1, float64(o.step)))
	debias2 := 1 / (1 - math.Pow(c.beta2, float64(o.step)))

	for i, p := range o.params {
		st := o.states[i]
		for j, g := range p.Grad {
			st.m1[j] = c.beta1*st.m1[j] + (1-c.beta1)*g
			st.m2[j] = c.beta2*st.m2[j] + (1-c.beta2)*g*g
			update := st.m1[j] * debias1 / (math.Sqrt(st.m2[j]*debias2) + c.epsilon)
			if p.Decay && c.weightDecay > 0 {
				update += c.weightDecay * p.Value[j]
			}
			p.Value[j] -= c.learningRate * update
		}
	}
}

// Steps returns the number of updates applied so far.
func (o *AdamOptimizer) Steps() int {
	return o.step
}

// Params returns the registered parameters.
func (o *AdamOptimizer) Params() []*Param {
	return o.params
}
