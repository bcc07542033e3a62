package distributions

import "math"

// KLNormalStd returns KL(N(mean, diag(variance)) || N(0, I)).
func KLNormalStd(mean, variance []float64) float64 {
	var kl float64
	for i, m := range mean {
		v := variance[i]
		kl += v + m*m - 1 - math.Log(v)
	}
	return 0.5 * kl
}

// KLNormalStdGrad writes dKL/dmean and dKL/dvariance into dMean and dVar.
func KLNormalStdGrad(mean, variance, dMean, dVar []float64) {
	for i, m := range mean {
		dMean[i] = m
		dVar[i] = 0.5 * (1 - 1/variance[i])
	}
}
