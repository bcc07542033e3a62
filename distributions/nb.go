package distributions

import "math"

// NBTerms holds a negative binomial log-probability and its partial
// derivatives with respect to the mean and the inverse dispersion.
type NBTerms struct {
	LogProb float64
	DMu     float64
	DTheta  float64
}

// ZINBTerms extends NBTerms with the derivative with respect to the
// excess-zero probability.
type ZINBTerms struct {
	NBTerms
	DPi float64
}

// NegBinomialLogProb returns log NB(x; mu, theta) in the mean/inverse
// dispersion parameterization: Var = mu + mu²/theta.
func NegBinomialLogProb(x, mu, theta float64) float64 {
	return NegBinomial(x, mu, theta).LogProb
}

// NegBinomial evaluates the negative binomial log-probability and its
// gradient. mu and theta must be positive.
func NegBinomial(x, mu, theta float64) NBTerms {
	logThetaMu := math.Log(theta + mu + Eps)
	logTheta := math.Log(theta + Eps)
	logp := theta*(logTheta-logThetaMu) +
		x*(math.Log(mu+Eps)-logThetaMu) +
		Lgamma(x+theta) - Lgamma(theta) - Lgamma(x+1)

	dMu := x/(mu+Eps) - (theta+x)/(theta+mu+Eps)
	dTheta := logTheta - logThetaMu + theta/(theta+Eps) - (theta+x)/(theta+mu+Eps) +
		Digamma(x+theta) - Digamma(theta)

	return NBTerms{LogProb: logp, DMu: dMu, DTheta: dTheta}
}

// ZINBLogProb returns the log-probability of x under a negative binomial
// mixed with a point mass at zero of weight pi.
func ZINBLogProb(x, mu, theta, pi float64) float64 {
	return ZeroInflatedNegBinomial(x, mu, theta, pi).LogProb
}

// ZeroInflatedNegBinomial evaluates the zero-inflated negative binomial
// log-probability and its gradient. pi must lie in (0, 1).
func ZeroInflatedNegBinomial(x, mu, theta, pi float64) ZINBTerms {
	if x > 0 {
		nb := NegBinomial(x, mu, theta)
		nb.LogProb += math.Log1p(-pi)
		return ZINBTerms{NBTerms: nb, DPi: -1 / (1 - pi)}
	}

	logThetaMu := math.Log(theta + mu + Eps)
	logTheta := math.Log(theta + Eps)
	logN0 := theta * (logTheta - logThetaMu)
	n0 := math.Exp(logN0)
	denom := pi + (1-pi)*n0

	// d log(denom) / d logN0
	w := (1 - pi) * n0 / denom
	return ZINBTerms{
		NBTerms: NBTerms{
			LogProb: math.Log(denom),
			DMu:     w * (-theta / (theta + mu + Eps)),
			DTheta:  w * (logTheta - logThetaMu + theta/(theta+Eps) - theta/(theta+mu+Eps)),
		},
		DPi: (1 - n0) / denom,
	}
}
