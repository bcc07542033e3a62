package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
)

// loss = sum(y * c) for a fixed matrix c, so dL/dy = c.
func denseLoss(d *Dense, x, c *mat.Dense) float64 {
	y := d.Forward(x)
	y.MulElem(y, c)
	return mat.Sum(y)
}

func TestDense_ForwardBackward(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d := NewDense("layer", 3, 2, rng)

	bound := 1 / math.Sqrt(3)
	for _, v := range d.W.RawMatrix().Data {
		assert.LessOrEqual(t, math.Abs(v), bound)
	}

	x := mat.NewDense(4, 3, []float64{1, 2, 3, -1, 0, 1, 0.5, 0.5, 0.5, 2, -2, 0})
	c := mat.NewDense(4, 2, []float64{1, -1, 0.5, 2, 3, 0, -1, 1})

	dx := d.Backward(x, c, true)
	require.NotNil(t, dx)

	const h = 1e-6
	w := d.W.RawMatrix().Data
	dw := d.DW.RawMatrix().Data
	for i := range w {
		orig := w[i]
		w[i] = orig + h
		up := denseLoss(d, x, c)
		w[i] = orig - h
		down := denseLoss(d, x, c)
		w[i] = orig
		assert.InDelta(t, (up-down)/(2*h), dw[i], 1e-6)
	}
	for j := range d.B {
		orig := d.B[j]
		d.B[j] = orig + h
		up := denseLoss(d, x, c)
		d.B[j] = orig - h
		down := denseLoss(d, x, c)
		d.B[j] = orig
		assert.InDelta(t, (up-down)/(2*h), d.DB[j], 1e-6)
	}
	xr := x.RawMatrix().Data
	dxr := dx.RawMatrix().Data
	for i := range xr {
		orig := xr[i]
		xr[i] = orig + h
		up := denseLoss(d, x, c)
		xr[i] = orig - h
		down := denseLoss(d, x, c)
		xr[i] = orig
		assert.InDelta(t, (up-down)/(2*h), dxr[i], 1e-6)
	}

	assert.Nil(t, d.Backward(x, c, false))
}

func TestDense_CloneAndCopy(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	d := NewDense("l", 2, 2, rng)
	clone := d.Clone()
	d.W.Set(0, 0, 42)
	d.B[0] = 42
	assert.NotEqual(t, 42.0, clone.W.At(0, 0))

	d.CopyFrom(clone)
	assert.True(t, mat.Equal(d.W, clone.W))
	assert.Equal(t, clone.B, d.B)

	params := d.Params()
	require.Len(t, params, 2)
	assert.True(t, params[0].Decay)
	assert.False(t, params[1].Decay)
	params[1].Value[0] = 7
	assert.Equal(t, 7.0, d.B[0])
}

func TestReLU(t *testing.T) {
	pre := mat.NewDense(1, 3, []float64{-1, 0, 2})
	out := ReLU(pre)
	assert.Equal(t, []float64{0, 0, 2}, out.RawRowView(0))

	grad := mat.NewDense(1, 3, []float64{5, 5, 5})
	ReLUBackward(grad, pre)
	assert.Equal(t, []float64{0, 0, 5}, grad.RawRowView(0))
}

func TestDropoutMask(t *testing.T) {
	assert.Nil(t, DropoutMask(2, 2, 0, rand.New(rand.NewSource(1))))

	mask := DropoutMask(200, 50, 0.4, rand.New(rand.NewSource(1)))
	var kept int
	for _, v := range mask.RawMatrix().Data {
		if v != 0 {
			assert.InDelta(t, 1/0.6, v, 1e-12)
			kept++
		}
	}
	assert.InDelta(t, 0.6, float64(kept)/10000, 0.03)

	x := mat.NewDense(1, 2, []float64{1, 1})
	ApplyMask(x, nil)
	assert.Equal(t, []float64{1, 1}, x.RawRowView(0))
}

func TestSoftmax(t *testing.T) {
	x := mat.NewDense(2, 3, []float64{1, 2, 3, 1000, 1000, -1000})
	p := SoftmaxRows(x)
	for i := 0; i < 2; i++ {
		assert.InDelta(t, 1, floats.Sum(p.RawRowView(i)), 1e-12)
	}
	assert.InDelta(t, 0.5, p.At(1, 0), 1e-12)

	// d/dlogits of sum(p * c)
	logits := []float64{0.3, -1.2, 2}
	c := []float64{1, 2, -1}
	f := func(l []float64) float64 {
		out := SoftmaxRows(mat.NewDense(1, 3, l)).RawRowView(0)
		return floats.Dot(out, c)
	}
	probs := SoftmaxRows(mat.NewDense(1, 3, logits)).RawRowView(0)
	grad := make([]float64, 3)
	SoftmaxBackwardRow(probs, c, grad)
	const h = 1e-6
	for j := range logits {
		up := append([]float64(nil), logits...)
		down := append([]float64(nil), logits...)
		up[j] += h
		down[j] -= h
		assert.InDelta(t, (f(up)-f(down))/(2*h), grad[j], 1e-8)
	}
}

func TestConcatColumns(t *testing.T) {
	a := mat.NewDense(2, 1, []float64{1, 2})
	b := mat.NewDense(2, 2, []float64{3, 4, 5, 6})
	out := ConcatColumns(a, b)
	assert.Equal(t, []float64{1, 3, 4, 2, 5, 6}, out.RawMatrix().Data)
}

func TestAdam_MinimizesQuadratic(t *testing.T) {
	value := []float64{5, -3}
	grad := make([]float64, 2)
	opt, err := Adam().LearningRate(0.1).Done([]*Param{{Name: "x", Value: value, Grad: grad}})
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		// f(x) = (x0-1)^2 + (x1+2)^2
		grad[0] = 2 * (value[0] - 1)
		grad[1] = 2 * (value[1] + 2)
		opt.Step()
	}
	assert.InDelta(t, 1, value[0], 1e-2)
	assert.InDelta(t, -2, value[1], 1e-2)
	assert.Equal(t, 500, opt.Steps())
}

func TestAdam_DecoupledWeightDecay(t *testing.T) {
	decayed := []float64{1}
	plain := []float64{1}
	zero := []float64{0}
	opt, err := Adam().LearningRate(0.1).WeightDecay(0.5).Done([]*Param{
		{Name: "w", Value: decayed, Grad: []float64{0}, Decay: true},
		{Name: "b", Value: plain, Grad: zero},
	})
	require.NoError(t, err)
	opt.Step()

	assert.InDelta(t, 1-0.1*0.5, decayed[0], 1e-12)
	assert.Equal(t, 1.0, plain[0])
}

func TestAdam_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  *AdamConfig
	}{
		{"zero lr", Adam().LearningRate(0)},
		{"negative decay", Adam().WeightDecay(-1)},
		{"bad beta", Adam().Betas(1, 0.999)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Done(nil)
			var cfgErr *errors.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}

	_, err := Adam().Done([]*Param{{Name: "bad", Value: []float64{1}, Grad: nil}})
	assert.Error(t, err)
}
