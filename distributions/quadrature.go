package distributions

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate/quad"

	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
)

// DefaultBetaQuadratureNodes is the node count used by the mixture
// objective.
const DefaultBetaQuadratureNodes = 48

// quadratureWarp clusters the nodes near 0 and 1 where Beta densities with
// shapes below one concentrate their mass.
const quadratureWarp = 3

// BetaQuadrature approximates expectations under Beta(α, β) by a weighted
// sum over fixed nodes δ_k in (0, 1).
//
// The nodes are Gauss-Legendre points pushed through
// δ(t) = t^p / (t^p + (1-t)^p). The weights are the Beta density times the
// quadrature measure, normalized to sum to one, so the expectation of a
// constant is exact and the derivative of Σ_k w_k f(δ_k) with respect to α is
// exactly Σ_k w_k f(δ_k) (log δ_k - Σ_j w_j log δ_j).
type BetaQuadrature struct {
	// LogDelta and Log1mDelta hold log δ_k and log(1-δ_k).
	LogDelta   []float64
	Log1mDelta []float64

	logMeasure []float64
}

// NewBetaQuadrature builds a rule with n nodes.
func NewBetaQuadrature(n int) *BetaQuadrature {
	t := make([]float64, n)
	w := make([]float64, n)
	quad.Legendre{}.FixedLocations(t, w, 0, 1)

	q := &BetaQuadrature{
		LogDelta:   make([]float64, n),
		Log1mDelta: make([]float64, n),
		logMeasure: make([]float64, n),
	}
	p := float64(quadratureWarp)
	for k := range t {
		lt, l1t := math.Log(t[k]), math.Log1p(-t[k])
		la, lb := p*lt, p*l1t
		lden := errors.LogAddExp(la, lb)
		q.LogDelta[k] = la - lden
		q.Log1mDelta[k] = lb - lden
		// dδ/dt = p t^(p-1) (1-t)^(p-1) / (t^p + (1-t)^p)^2
		q.logMeasure[k] = math.Log(w[k]) + math.Log(p) + (p-1)*(lt+l1t) - 2*lden
	}
	return q
}

// Len returns the number of nodes.
func (q *BetaQuadrature) Len() int {
	return len(q.LogDelta)
}

// Weights writes the normalized Beta(alpha, beta) weights into w and
// returns the weighted means of log δ and log(1-δ).
func (q *BetaQuadrature) Weights(alpha, beta float64, w []float64) (eLog, eLog1m float64) {
	for k := range w {
		w[k] = (alpha-1)*q.LogDelta[k] + (beta-1)*q.Log1mDelta[k] + q.logMeasure[k]
	}
	norm := floats.LogSumExp(w)
	for k := range w {
		w[k] = math.Exp(w[k] - norm)
		eLog += w[k] * q.LogDelta[k]
		eLog1m += w[k] * q.Log1mDelta[k]
	}
	return eLog, eLog1m
}
