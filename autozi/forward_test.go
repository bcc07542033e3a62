package autozi

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-autozi/distributions"
)

// gradCase is one scalar parameter and the analytic gradient read after
// backward.
type gradCase struct {
	name  string
	value *float64
	grad  func() float64
}

func denseCases(name string, w, dw []float64, idx ...int) []gradCase {
	out := make([]gradCase, 0, len(idx))
	for _, i := range idx {
		i := i
		out = append(out, gradCase{name: name, value: &w[i], grad: func() float64 { return dw[i] }})
	}
	return out
}

func TestForwardBackward_GradientCheck(t *testing.T) {
	s := makeSynthetic(t, 12, 6, 2, 1, 5)
	m := smallModel(t, s, WithLatentDim(2), WithHiddenSize(5), WithDropoutRate(0.3))
	p := m.params
	// move the Beta shapes and dispersions off their initial values
	for g := range p.LogAlpha {
		p.LogAlpha[g] = 0.3 * float64(g%3)
		p.LogBeta[g] = -0.2 * float64(g%2)
		p.LogTheta[g] = 0.5 - 0.1*float64(g)
	}

	cells := []int{0, 3, 4, 7, 9, 11}
	mb := m.data.minibatch(cells)
	nz := drawNoise(rand.New(rand.NewSource(11)), len(cells), 2, 5, 0.3)
	const nTrain = 10

	loss := func() float64 {
		res, _ := p.forward(mb, nz, nTrain)
		return res.Loss()
	}

	_, cache := p.forward(mb, nz, nTrain)
	p.backward(mb, nz, cache, nTrain)

	var cases []gradCase
	for _, l := range p.layers() {
		w := l.W.RawMatrix().Data
		dw := l.DW.RawMatrix().Data
		cases = append(cases, denseCases(l.Name+".W", w, dw, 0, len(w)/2, len(w)-1)...)
		cases = append(cases, denseCases(l.Name+".b", l.B, l.DB, 0, len(l.B)-1)...)
	}
	for _, g := range []int{0, 2, 5} {
		cases = append(cases, denseCases("log_theta", p.LogTheta, p.DLogTheta, g)...)
		cases = append(cases, denseCases("log_alpha", p.LogAlpha, p.DLogAlpha, g)...)
		cases = append(cases, denseCases("log_beta", p.LogBeta, p.DLogBeta, g)...)
	}
	// snapshot analytic values before the finite differences perturb anything
	analytic := make([]float64, len(cases))
	for i, c := range cases {
		analytic[i] = c.grad()
	}

	const h = 1e-5
	for i, c := range cases {
		orig := *c.value
		*c.value = orig + h
		up := loss()
		*c.value = orig - h
		down := loss()
		*c.value = orig

		numeric := (up - down) / (2 * h)
		tol := 1e-5 + 1e-4*math.Abs(numeric)
		assert.InDelta(t, numeric, analytic[i], tol, "%s (case %d)", c.name, i)
	}
}

func TestForward_MeanPathwayIgnoresDropoutRate(t *testing.T) {
	s := makeSynthetic(t, 8, 5, 1, 1, 2)
	m := smallModel(t, s)
	mb := m.data.minibatch([]int{0, 1, 2})

	res, cache := m.params.forward(mb, noise{}, 8)
	require.NotNil(t, cache)
	assert.True(t, mat.Equal(cache.z, cache.mean))
	assert.False(t, math.IsNaN(res.ELBO))

	// responsibilities are probabilities
	r, c := cache.resp.Dims()
	for i := 0; i < r; i++ {
		for g := 0; g < c; g++ {
			v := cache.resp.At(i, g)
			assert.True(t, v >= 0 && v <= 1, "resp[%d,%d] = %v", i, g, v)
		}
	}
}

func newNodes(alpha, beta float64) (w, cl, cl1m []float64) {
	n := mixtureQuadrature.Len()
	w, cl, cl1m = make([]float64, n), make([]float64, n), make([]float64, n)
	betaNodes(alpha, beta, w, cl, cl1m)
	return w, cl, cl1m
}

func TestMixtureLogLik_TightWhenComponentsAgree(t *testing.T) {
	// the expectation must not depend on q(δ) when both components agree,
	// so the shapes receive no gradient from such entries
	for _, shape := range [][2]float64{{0.5, 0.5}, {1.54, 13.4}, {30, 2}} {
		w, cl, cl1m := newNodes(shape[0], shape[1])
		l, r, dA, dB := mixtureLogLik(-2.75, -2.75, w, cl, cl1m)
		assert.InDelta(t, -2.75, l, 1e-12, "shape %v", shape)
		assert.InDelta(t, distributions.BetaMean(shape[0], shape[1]), r, 1e-4, "shape %v", shape)
		assert.InDelta(t, 0, dA, 1e-12, "shape %v", shape)
		assert.InDelta(t, 0, dB, 1e-12, "shape %v", shape)
	}
}

func TestMixtureLogLik_ShapeGradients(t *testing.T) {
	alpha, beta := 1.54, 13.4
	w, cl, cl1m := newNodes(alpha, beta)

	// the plain component explains the entry better: mass moves toward δ = 1
	_, _, dA, dB := mixtureLogLik(-1.0, -1.2, w, cl, cl1m)
	assert.Greater(t, dA, 0.0)
	assert.Less(t, dB, 0.0)

	_, _, dA, dB = mixtureLogLik(-3.0, -1.0, w, cl, cl1m)
	assert.Less(t, dA, 0.0)
	assert.Greater(t, dB, 0.0)

	// matches finite differences of the quadrature expectation
	expect := func(a, b float64) float64 {
		w, cl, cl1m := newNodes(a, b)
		l, _, _, _ := mixtureLogLik(-1.0, -1.2, w, cl, cl1m)
		return l
	}
	_, _, dA, dB = mixtureLogLik(-1.0, -1.2, w, cl, cl1m)
	const h = 1e-6
	assert.InDelta(t, (expect(alpha+h, beta)-expect(alpha-h, beta))/(2*h), dA, 1e-8)
	assert.InDelta(t, (expect(alpha, beta+h)-expect(alpha, beta-h))/(2*h), dB, 1e-8)
}

func TestDrawNoise(t *testing.T) {
	a := drawNoise(rand.New(rand.NewSource(1)), 4, 3, 6, 0.5)
	b := drawNoise(rand.New(rand.NewSource(1)), 4, 3, 6, 0.5)
	assert.True(t, mat.Equal(a.eps, b.eps))
	assert.True(t, mat.Equal(a.mask, b.mask))

	noDrop := drawNoise(rand.New(rand.NewSource(1)), 4, 3, 6, 0)
	assert.Nil(t, noDrop.mask)
}
