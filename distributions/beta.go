package distributions

import (
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// KLBeta returns KL(Beta(alpha, beta) || Beta(alpha0, beta0)).
func KLBeta(alpha, beta, alpha0, beta0 float64) float64 {
	psiSum := Digamma(alpha + beta)
	return mathext.Lbeta(alpha0, beta0) - mathext.Lbeta(alpha, beta) +
		(alpha-alpha0)*Digamma(alpha) +
		(beta-beta0)*Digamma(beta) +
		(alpha0-alpha+beta0-beta)*psiSum
}

// KLBetaGrad returns the partial derivatives of KLBeta with respect to alpha
// and beta.
func KLBetaGrad(alpha, beta, alpha0, beta0 float64) (dAlpha, dBeta float64) {
	tSum := Trigamma(alpha + beta)
	excess := alpha + beta - alpha0 - beta0
	dAlpha = (alpha-alpha0)*Trigamma(alpha) - excess*tSum
	dBeta = (beta-beta0)*Trigamma(beta) - excess*tSum
	return dAlpha, dBeta
}

// BetaCDF returns P(δ ≤ x) for δ ~ Beta(alpha, beta).
//
// For alpha == beta the distribution is symmetric and the median is exactly
// 0.5, which the incomplete beta evaluation only reproduces up to rounding.
func BetaCDF(x, alpha, beta float64) float64 {
	if alpha == beta && x == 0.5 {
		return 0.5
	}
	return distuv.Beta{Alpha: alpha, Beta: beta}.CDF(x)
}

// BetaMean returns alpha / (alpha + beta).
func BetaMean(alpha, beta float64) float64 {
	return alpha / (alpha + beta)
}
