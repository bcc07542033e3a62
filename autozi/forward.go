package autozi

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-autozi/core/parallel"
	"github.com/YuminosukeSato/scigo-autozi/distributions"
	"github.com/YuminosukeSato/scigo-autozi/nn"
	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
)

// ForwardResult summarizes one evaluation of the objective on a minibatch.
type ForwardResult struct {
	// ELBO is the per-cell evidence lower bound: Reconstruction - KLLatent -
	// KLBeta / nTrain.
	ELBO float64

	// Reconstruction is the mean over cells of Σ_g E[log p(x_g | z, b, δ_g)].
	Reconstruction float64

	// KLLatent is the mean over cells of KL(q(z|x,b) || N(0, I)).
	KLLatent float64

	// KLBeta is Σ_g KL(Beta(α_g, β_g) || Beta(α0_g, β0_g)).
	KLBeta float64

	// Alpha and Beta are the posterior shapes the result was computed with.
	Alpha []float64
	Beta  []float64
}

// Loss returns -ELBO.
func (r *ForwardResult) Loss() float64 {
	return -r.ELBO
}

// minibatch holds the model inputs of a set of cells.
type minibatch struct {
	counts  *mat.Dense
	logX    *mat.Dense
	onehot  *mat.Dense
	library []float64
}

// noise carries the random draws of a training pass. A nil eps selects the
// encoder mean pathway and a nil mask disables dropout.
type noise struct {
	eps  *mat.Dense
	mask *mat.Dense
}

// drawNoise generates all random numbers of one training step up front so
// that parallel sections never touch the generator.
func drawNoise(rng *rand.Rand, n, latentDim, hidden int, dropoutRate float64) noise {
	eps := make([]float64, n*latentDim)
	for i := range eps {
		eps[i] = rng.NormFloat64()
	}
	return noise{
		eps:  mat.NewDense(n, latentDim, eps),
		mask: nn.DropoutMask(n, hidden, dropoutRate, rng),
	}
}

// forwardCache keeps the intermediate values needed by backward.
type forwardCache struct {
	encIn, encPre, encH *mat.Dense
	mean, variance, z   *mat.Dense
	decIn, decPre, decH *mat.Dense
	scale, dropLogits   *mat.Dense

	theta, alpha, beta []float64

	// Per-entry responsibility of the plain component and derivatives of the
	// entry's mixture log-likelihood.
	resp, dMu, dTheta, dPi *mat.Dense
	dAlpha, dBeta          *mat.Dense
}

// mixtureQuadrature integrates the mixture log-likelihood over q(δ). It is
// read-only after construction.
var mixtureQuadrature = distributions.NewBetaQuadrature(distributions.DefaultBetaQuadratureNodes)

// encodeMean runs the encoder mean pathway without dropout.
func (p *Params) encodeMean(logX, onehot *mat.Dense) *mat.Dense {
	h := nn.ReLU(p.EncHidden.Forward(nn.ConcatColumns(logX, onehot)))
	return p.EncMean.Forward(h)
}

// forward evaluates the objective. It reads p but never writes to it.
func (p *Params) forward(mb *minibatch, nz noise, nTrain int) (*ForwardResult, *forwardCache) {
	n, nFeatures := mb.counts.Dims()
	c := &forwardCache{}

	// encoder
	c.encIn = nn.ConcatColumns(mb.logX, mb.onehot)
	c.encPre = p.EncHidden.Forward(c.encIn)
	c.encH = nn.ReLU(c.encPre)
	nn.ApplyMask(c.encH, nz.mask)
	c.mean = p.EncMean.Forward(c.encH)
	logVar := p.EncLogVar.Forward(c.encH)

	_, k := c.mean.Dims()
	c.variance = mat.NewDense(n, k, nil)
	c.variance.Apply(func(_, _ int, v float64) float64 {
		return math.Exp(v) + varianceFloor
	}, logVar)
	c.z = mat.DenseCopyOf(c.mean)
	if nz.eps != nil {
		c.z.Apply(func(i, j int, m float64) float64 {
			return m + math.Sqrt(c.variance.At(i, j))*nz.eps.At(i, j)
		}, c.z)
	}

	// decoder
	c.decIn = nn.ConcatColumns(c.z, mb.onehot)
	c.decPre = p.DecHidden.Forward(c.decIn)
	c.decH = nn.ReLU(c.decPre)
	c.scale = nn.SoftmaxRows(p.DecScale.Forward(c.decH))
	c.dropLogits = p.DecDropout.Forward(c.decH)

	c.theta = p.Theta()
	c.alpha = p.Alpha()
	c.beta = p.Beta()

	// E_q[log(δ·NB + (1-δ)·ZINB)] is evaluated on fixed nodes so that the
	// bound is tight whenever both components assign the same likelihood.
	nodes := mixtureQuadrature.Len()
	weights := make([]float64, nFeatures*nodes)
	centLog := make([]float64, nFeatures*nodes)
	centLog1m := make([]float64, nFeatures*nodes)
	for g := 0; g < nFeatures; g++ {
		span := g * nodes
		betaNodes(c.alpha[g], c.beta[g],
			weights[span:span+nodes], centLog[span:span+nodes], centLog1m[span:span+nodes])
	}

	c.resp = mat.NewDense(n, nFeatures, nil)
	c.dMu = mat.NewDense(n, nFeatures, nil)
	c.dTheta = mat.NewDense(n, nFeatures, nil)
	c.dPi = mat.NewDense(n, nFeatures, nil)
	c.dAlpha = mat.NewDense(n, nFeatures, nil)
	c.dBeta = mat.NewDense(n, nFeatures, nil)
	recon := make([]float64, n)
	klz := make([]float64, n)

	parallel.ParallelizeWithThreshold(n, parallel.MinRowsPerWorker, func(start, end int) {
		for i := start; i < end; i++ {
			x := mb.counts.RawRowView(i)
			scale := c.scale.RawRowView(i)
			logits := c.dropLogits.RawRowView(i)
			resp := c.resp.RawRowView(i)
			dMu := c.dMu.RawRowView(i)
			dTheta := c.dTheta.RawRowView(i)
			dPi := c.dPi.RawRowView(i)
			dAlpha := c.dAlpha.RawRowView(i)
			dBeta := c.dBeta.RawRowView(i)
			lib := mb.library[i]

			var ll float64
			for g, xg := range x {
				mu := lib * scale[g]
				pi := minDropoutProb + (1-minDropoutProb)*distributions.Sigmoid(logits[g])
				nb := distributions.NegBinomial(xg, mu, c.theta[g])
				zi := distributions.ZeroInflatedNegBinomial(xg, mu, c.theta[g], pi)

				span := g * nodes
				l, r, da, db := mixtureLogLik(nb.LogProb, zi.LogProb,
					weights[span:span+nodes], centLog[span:span+nodes], centLog1m[span:span+nodes])

				ll += l
				resp[g] = r
				dMu[g] = r*nb.DMu + (1-r)*zi.DMu
				dTheta[g] = r*nb.DTheta + (1-r)*zi.DTheta
				dPi[g] = (1 - r) * zi.DPi
				dAlpha[g] = da
				dBeta[g] = db
			}
			recon[i] = ll
			klz[i] = distributions.KLNormalStd(c.mean.RawRowView(i), c.variance.RawRowView(i))
		}
	})

	var reconSum, klzSum, klBeta float64
	for i := 0; i < n; i++ {
		reconSum += recon[i]
		klzSum += klz[i]
	}
	for g := 0; g < nFeatures; g++ {
		klBeta += distributions.KLBeta(c.alpha[g], c.beta[g], p.Alpha0[g], p.Beta0[g])
	}

	res := &ForwardResult{
		Reconstruction: reconSum / float64(n),
		KLLatent:       klzSum / float64(n),
		KLBeta:         klBeta,
		Alpha:          c.alpha,
		Beta:           c.beta,
	}
	res.ELBO = res.Reconstruction - res.KLLatent - klBeta/float64(nTrain)
	return res, c
}

// betaNodes fills the quadrature weights of Beta(alpha, beta) and the
// centered node logarithms used by mixtureLogLik.
func betaNodes(alpha, beta float64, w, cl, cl1m []float64) {
	eLog, eLog1m := mixtureQuadrature.Weights(alpha, beta, w)
	for k := range w {
		cl[k] = mixtureQuadrature.LogDelta[k] - eLog
		cl1m[k] = mixtureQuadrature.Log1mDelta[k] - eLog1m
	}
}

// mixtureLogLik returns E_q[log(δ·e^logNB + (1-δ)·e^logZINB)] on the
// quadrature nodes, the expected responsibility of the plain component, and
// the derivatives of the expectation with respect to α and β. cl and cl1m are
// log δ_k and log(1-δ_k) centered by their weighted means.
func mixtureLogLik(logNB, logZINB float64, w, cl, cl1m []float64) (l, r, dAlpha, dBeta float64) {
	for k, wk := range w {
		if wk == 0 {
			continue
		}
		lnb := mixtureQuadrature.LogDelta[k] + logNB
		fk := errors.LogAddExp(lnb, mixtureQuadrature.Log1mDelta[k]+logZINB)
		l += wk * fk
		r += wk * math.Exp(lnb-fk)
		// shifting f by a constant leaves the centered sums unchanged
		dAlpha += wk * (fk - logNB) * cl[k]
		dBeta += wk * (fk - logNB) * cl1m[k]
	}
	return l, errors.ClipValue(r, 0, 1), dAlpha, dBeta
}

// evaluate returns the objective without keeping the backward cache.
func (p *Params) evaluate(mb *minibatch, nz noise, nTrain int) *ForwardResult {
	res, _ := p.forward(mb, nz, nTrain)
	return res
}

// backward writes the gradients of -ELBO for the pass recorded in c into
// the gradient storage of p.
func (p *Params) backward(mb *minibatch, nz noise, c *forwardCache, nTrain int) {
	n, nFeatures := mb.counts.Dims()
	inv := 1 / float64(n)

	dScaleLogits := mat.NewDense(n, nFeatures, nil)
	dDropLogits := mat.NewDense(n, nFeatures, nil)
	parallel.ParallelizeWithThreshold(n, parallel.MinRowsPerWorker, func(start, end int) {
		dScale := make([]float64, nFeatures)
		for i := start; i < end; i++ {
			lib := mb.library[i]
			dMu := c.dMu.RawRowView(i)
			dPi := c.dPi.RawRowView(i)
			logits := c.dropLogits.RawRowView(i)
			dDrop := dDropLogits.RawRowView(i)
			for g := range dScale {
				dScale[g] = -inv * dMu[g] * lib
				s := distributions.Sigmoid(logits[g])
				dDrop[g] = -inv * dPi[g] * (1 - minDropoutProb) * s * (1 - s)
			}
			nn.SoftmaxBackwardRow(c.scale.RawRowView(i), dScale, dScaleLogits.RawRowView(i))
		}
	})

	// feature-level reductions run in a fixed order
	sumDA := make([]float64, nFeatures)
	sumDB := make([]float64, nFeatures)
	for g := range p.DLogTheta {
		p.DLogTheta[g] = 0
	}
	for i := 0; i < n; i++ {
		dTheta := c.dTheta.RawRowView(i)
		dAlpha := c.dAlpha.RawRowView(i)
		dBeta := c.dBeta.RawRowView(i)
		for g := 0; g < nFeatures; g++ {
			sumDA[g] += dAlpha[g]
			sumDB[g] += dBeta[g]
			p.DLogTheta[g] -= inv * dTheta[g] * c.theta[g]
		}
	}
	for g := 0; g < nFeatures; g++ {
		a, b := c.alpha[g], c.beta[g]
		klA, klB := distributions.KLBetaGrad(a, b, p.Alpha0[g], p.Beta0[g])
		dA := -inv*sumDA[g] + klA/float64(nTrain)
		dB := -inv*sumDB[g] + klB/float64(nTrain)
		p.DLogAlpha[g] = dA * a
		p.DLogBeta[g] = dB * b
	}

	// decoder
	dDecH := p.DecScale.Backward(c.decH, dScaleLogits, true)
	dDecH.Add(dDecH, p.DecDropout.Backward(c.decH, dDropLogits, true))
	nn.ReLUBackward(dDecH, c.decPre)
	dDecIn := p.DecHidden.Backward(c.decIn, dDecH, true)

	// reparameterized latent sample and its KL term
	_, k := c.mean.Dims()
	dMean := mat.NewDense(n, k, nil)
	dLogVar := mat.NewDense(n, k, nil)
	dVar := make([]float64, k)
	for i := 0; i < n; i++ {
		variance := c.variance.RawRowView(i)
		dm := dMean.RawRowView(i)
		dlv := dLogVar.RawRowView(i)
		distributions.KLNormalStdGrad(c.mean.RawRowView(i), variance, dm, dVar)
		for j := 0; j < k; j++ {
			dz := dDecIn.At(i, j)
			dm[j] = dz + inv*dm[j]
			dv := inv * dVar[j]
			if nz.eps != nil {
				dv += dz * nz.eps.At(i, j) / (2 * math.Sqrt(variance[j]))
			}
			dlv[j] = dv * (variance[j] - varianceFloor)
		}
	}

	// encoder
	dEncH := p.EncMean.Backward(c.encH, dMean, true)
	dEncH.Add(dEncH, p.EncLogVar.Backward(c.encH, dLogVar, true))
	nn.ApplyMask(dEncH, nz.mask)
	nn.ReLUBackward(dEncH, c.encPre)
	p.EncHidden.Backward(c.encIn, dEncH, false)
}

// gatherRows copies the given rows of src into a new matrix.
func gatherRows(src *mat.Dense, idx []int) *mat.Dense {
	_, cols := src.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	for k, i := range idx {
		copy(out.RawRowView(k), src.RawRowView(i))
	}
	return out
}
