// Package distributions implements the count likelihoods and the Beta/Gaussian
// divergences used by the zero-inflation model, together with their analytic
// gradients.
package distributions

import (
	"math"

	"gonum.org/v1/gonum/mathext"
)

// Eps keeps logarithms of rates and dispersions finite.
const Eps = 1e-8

// Digamma returns ψ(x).
func Digamma(x float64) float64 {
	return mathext.Digamma(x)
}

// Trigamma returns ψ'(x) for x > 0.
//
// The argument is shifted above 10 with ψ'(x) = ψ'(x+1) + 1/x² before the
// asymptotic expansion is applied.
func Trigamma(x float64) float64 {
	if x <= 0 || math.IsNaN(x) {
		return math.NaN()
	}
	if math.IsInf(x, 1) {
		return 0
	}
	var r float64
	for x < 10 {
		r += 1 / (x * x)
		x++
	}
	inv := 1 / x
	inv2 := inv * inv
	series := 1.0/6 - inv2*(1.0/30-inv2*(1.0/42-inv2*(1.0/30-inv2*5.0/66)))
	return r + inv + inv2/2 + inv*inv2*series
}

// Lgamma returns log|Γ(x)|.
func Lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

// Sigmoid returns 1/(1+exp(-x)) without overflow.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}
