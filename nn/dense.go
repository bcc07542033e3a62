// Package nn provides the small set of neural network building blocks used by
// the AutoZI encoder and decoder: fully connected layers with explicit
// backward passes, activations, dropout and an Adam(W) optimizer.
//
// Layers are plain parameter holders. Forward and backward passes are pure
// functions of the parameters and their inputs so that the same layer can be
// evaluated for training and validation without hidden state.
package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Dense is a fully connected layer computing y = x·W + b for row-major
// minibatches x of shape (batch, In).
type Dense struct {
	Name string

	// W has shape (In, Out).
	W *mat.Dense
	B []float64

	// Gradient accumulators with the same shapes as W and B.
	DW *mat.Dense
	DB []float64
}

// NewDense creates a layer whose weights and biases are drawn uniformly from
// ±1/√in.
func NewDense(name string, in, out int, rng *rand.Rand) *Dense {
	bound := 1 / math.Sqrt(float64(in))
	w := make([]float64, in*out)
	for i := range w {
		w[i] = (2*rng.Float64() - 1) * bound
	}
	b := make([]float64, out)
	for i := range b {
		b[i] = (2*rng.Float64() - 1) * bound
	}
	return &Dense{
		Name: name,
		W:    mat.NewDense(in, out, w),
		B:    b,
		DW:   mat.NewDense(in, out, nil),
		DB:   make([]float64, out),
	}
}

// In returns the input width.
func (d *Dense) In() int {
	r, _ := d.W.Dims()
	return r
}

// Out returns the output width.
func (d *Dense) Out() int {
	_, c := d.W.Dims()
	return c
}

// Forward returns x·W + b.
func (d *Dense) Forward(x mat.Matrix) *mat.Dense {
	n, _ := x.Dims()
	out := mat.NewDense(n, d.Out(), nil)
	out.Mul(x, d.W)
	raw := out.RawMatrix()
	for i := 0; i < n; i++ {
		floats.Add(raw.Data[i*raw.Stride:i*raw.Stride+raw.Cols], d.B)
	}
	return out
}

// Backward overwrites DW and DB with the gradients for upstream gradient dOut
// and input x, and returns the gradient with respect to x when needInput is
// set.
func (d *Dense) Backward(x mat.Matrix, dOut *mat.Dense, needInput bool) *mat.Dense {
	d.DW.Mul(x.T(), dOut)

	for j := range d.DB {
		d.DB[j] = 0
	}
	raw := dOut.RawMatrix()
	for i := 0; i < raw.Rows; i++ {
		floats.Add(d.DB, raw.Data[i*raw.Stride:i*raw.Stride+raw.Cols])
	}

	if !needInput {
		return nil
	}
	n, _ := x.Dims()
	dx := mat.NewDense(n, d.In(), nil)
	dx.Mul(dOut, d.W.T())
	return dx
}

// Params registers the layer's weights and biases for an optimizer.
// Weights are subject to weight decay; biases are not.
func (d *Dense) Params() []*Param {
	return []*Param{
		{Name: d.Name + ".W", Value: d.W.RawMatrix().Data, Grad: d.DW.RawMatrix().Data, Decay: true},
		{Name: d.Name + ".b", Value: d.B, Grad: d.DB},
	}
}

// Clone returns a deep copy of the layer's parameters with zeroed gradients.
func (d *Dense) Clone() *Dense {
	in, out := d.W.Dims()
	b := make([]float64, len(d.B))
	copy(b, d.B)
	return &Dense{
		Name: d.Name,
		W:    mat.DenseCopyOf(d.W),
		B:    b,
		DW:   mat.NewDense(in, out, nil),
		DB:   make([]float64, out),
	}
}

// CopyFrom overwrites the parameters with those of src, which must have the
// same shape.
func (d *Dense) CopyFrom(src *Dense) {
	d.W.Copy(src.W)
	copy(d.B, src.B)
}
